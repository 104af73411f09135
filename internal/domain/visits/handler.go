package visits

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"vetclinic-api/internal/domain/pets"
	"vetclinic-api/internal/middleware"
	"vetclinic-api/internal/ports/auth"
	"vetclinic-api/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/visits", func(vr chi.Router) {
		vr.Post("/", checkInHandler(svc))
		vr.Get("/{visitID}", getVisitHandler(svc))
		vr.Post("/{visitID}/triage", triageHandler(svc))
		vr.Post("/{visitID}/events", eventHandler(svc))
		vr.Post("/{visitID}/discharge", dischargeHandler(svc))
	})
	r.Get("/pets/{petID}/visits", listVisitsByPetHandler(svc))
}

type checkInRequest struct {
	PetID  string `json:"pet_id"`
	Reason string `json:"reason"`
}

type triageRequest struct {
	Priority string  `json:"priority"`
	WeightKg float64 `json:"weight_kg"`
	Vitals   string  `json:"vitals"`
}

type eventRequest struct {
	Event string `json:"event"`
}

type dischargeRequest struct {
	PaymentTotal  string `json:"payment_total"` // decimal como string
	PaymentMethod string `json:"payment_method"`
}

type visitResponse struct {
	ID            string     `json:"id"`
	PetID         string     `json:"pet_id"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason,omitempty"`
	Priority      string     `json:"priority"`
	WeightKg      float64    `json:"weight_kg,omitempty"`
	Vitals        string     `json:"vitals,omitempty"`
	ArrivedAt     time.Time  `json:"arrived_at"`
	DischargedAt  *time.Time `json:"discharged_at,omitempty"`
	PaymentTotal  string     `json:"payment_total,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func checkInHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !claims.HasRole(auth.RoleReception) {
			web.Fail(w, http.StatusForbidden, "forbidden")
			return
		}

		var req checkInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			web.Fail(w, http.StatusBadRequest, "invalid json")
			return
		}

		v, err := svc.CheckIn(r.Context(), CheckInInput{PetID: req.PetID, Reason: req.Reason})
		if err != nil {
			writeVisitError(w, err)
			return
		}
		web.OK(w, http.StatusCreated, toVisitResponse(v))
	}
}

func triageHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !claims.HasRole(auth.RoleReception, auth.RoleDoctor) {
			web.Fail(w, http.StatusForbidden, "forbidden")
			return
		}

		var req triageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			web.Fail(w, http.StatusBadRequest, "invalid json")
			return
		}

		v, err := svc.TriageComplete(r.Context(), chi.URLParam(r, "visitID"), TriageInput{
			Priority: Priority(req.Priority),
			WeightKg: req.WeightKg,
			Vitals:   req.Vitals,
		})
		if err != nil {
			writeVisitError(w, err)
			return
		}
		web.OK(w, http.StatusOK, toVisitResponse(v))
	}
}

func eventHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !claims.HasRole(auth.RoleDoctor) {
			web.Fail(w, http.StatusForbidden, "forbidden")
			return
		}

		var req eventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			web.Fail(w, http.StatusBadRequest, "invalid json")
			return
		}

		v, err := svc.Dispatch(r.Context(), chi.URLParam(r, "visitID"), Event(req.Event))
		if err != nil {
			writeVisitError(w, err)
			return
		}
		web.OK(w, http.StatusOK, toVisitResponse(v))
	}
}

func dischargeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !claims.HasRole(auth.RoleReception) {
			web.Fail(w, http.StatusForbidden, "forbidden")
			return
		}

		var req dischargeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			web.Fail(w, http.StatusBadRequest, "invalid json")
			return
		}

		total, err := decimal.NewFromString(req.PaymentTotal)
		if err != nil {
			web.Fail(w, http.StatusBadRequest, "payment_total must be a decimal string")
			return
		}

		v, err := svc.Discharge(r.Context(), chi.URLParam(r, "visitID"), PaymentInput{
			Total:  total,
			Method: req.PaymentMethod,
		})
		if err != nil {
			writeVisitError(w, err)
			return
		}
		web.OK(w, http.StatusOK, toVisitResponse(v))
	}
}

func getVisitHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetClaims(r.Context()); !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		v, err := svc.GetByID(r.Context(), chi.URLParam(r, "visitID"))
		if err != nil {
			web.Fail(w, http.StatusNotFound, "visit not found")
			return
		}
		web.OK(w, http.StatusOK, toVisitResponse(v))
	}
}

func listVisitsByPetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetClaims(r.Context()); !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		items, err := svc.ListByPet(r.Context(), chi.URLParam(r, "petID"))
		if err != nil {
			web.Fail(w, http.StatusInternalServerError, "internal error")
			return
		}

		out := make([]visitResponse, 0, len(items))
		for _, v := range items {
			out = append(out, toVisitResponse(v))
		}
		web.OK(w, http.StatusOK, out)
	}
}

func writeVisitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrPaymentRequired):
		web.Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		web.Fail(w, http.StatusNotFound, "visit not found")
	case errors.Is(err, pets.ErrNotFound):
		web.Fail(w, http.StatusNotFound, "pet not found")
	case errors.Is(err, ErrVisitAlreadyOpen):
		web.Fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidStateTransition):
		web.Fail(w, http.StatusConflict, err.Error())
	default:
		web.Fail(w, http.StatusInternalServerError, "internal error")
	}
}

func toVisitResponse(v Visit) visitResponse {
	out := visitResponse{
		ID:            v.ID,
		PetID:         v.PetID,
		Status:        string(v.Status),
		Reason:        v.Reason,
		Priority:      string(v.Priority),
		WeightKg:      v.WeightKg,
		Vitals:        v.Vitals,
		ArrivedAt:     v.ArrivedAt,
		DischargedAt:  v.DischargedAt,
		PaymentMethod: v.PaymentMethod,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
	if !v.PaymentTotal.IsZero() {
		out.PaymentTotal = v.PaymentTotal.StringFixed(2)
	}
	return out
}
