package notify

import "context"

// Tipos de notificación que emite el core.
const (
	TypeStockAlert       = "STOCK_ALERT"
	TypeStockRecovered   = "STOCK_RECOVERED"
	TypeDispenseComplete = "DISPENSE_COMPLETE"
	TypeLabResults       = "LAB_RESULTS"
)

// Notifier es el contrato fire-and-forget hacia el colaborador de notificaciones.
// La entrega, lectura y reintentos quedan del lado del colaborador; el core
// solo encola y nunca bloquea una transacción esperando la entrega.
type Notifier interface {
	Notify(ctx context.Context, userID, typ, title, message string, payload map[string]any)
}

// Noop descarta todo. Útil en tests y modo dev sin webhook configurado.
type Noop struct{}

func (Noop) Notify(context.Context, string, string, string, string, map[string]any) {}
