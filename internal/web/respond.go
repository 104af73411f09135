package web

import (
	"encoding/json"
	"net/http"
)

// Envelope uniforme de respuesta: {status, data|message}.
// Antes writeJSON vivía duplicado en cada handler; al llegar a cinco módulos
// lo extraemos aquí junto con el mapeo de errores de dominio a status HTTP.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func OK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Status: "success", Data: data})
}

func Fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Status: "error", Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
