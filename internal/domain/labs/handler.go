package labs

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"vetclinic-api/internal/domain/consultations"
	"vetclinic-api/internal/domain/visits"
	"vetclinic-api/internal/middleware"
	"vetclinic-api/internal/ports/auth"
	"vetclinic-api/internal/web"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/lab-requests", func(lr chi.Router) {
		lr.Post("/", requestLabHandler(svc))
		lr.Get("/{labRequestID}", getLabRequestHandler(svc))
		lr.Put("/{labRequestID}/results", submitResultsHandler(svc))
	})
	r.Get("/visits/{visitID}/lab-requests", listLabsByVisitHandler(svc))
}

type requestLabRequest struct {
	ConsultationID string `json:"consultation_id"`
	Kind           string `json:"kind"`
	Notes          string `json:"notes"`
}

type resultsRequest struct {
	Results string `json:"results"`
}

type labRequestResponse struct {
	ID             string     `json:"id"`
	ConsultationID string     `json:"consultation_id"`
	VisitID        string     `json:"visit_id"`
	Kind           string     `json:"kind"`
	Notes          string     `json:"notes,omitempty"`
	Status         string     `json:"status"`
	Results        string     `json:"results,omitempty"`
	ResultsBy      string     `json:"results_by,omitempty"`
	ResultsAt      *time.Time `json:"results_at,omitempty"`
	RequestedBy    string     `json:"requested_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func requestLabHandler(svc *Service) http.HandlerFunc {
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

		var req requestLabRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			web.Fail(w, http.StatusBadRequest, "invalid json")
			return
		}

		lr, err := svc.Request(r.Context(), RequestInput{
			ConsultationID: req.ConsultationID,
			Kind:           req.Kind,
			Notes:          req.Notes,
		}, claims.UserID)
		if err != nil {
			writeLabError(w, err)
			return
		}
		web.OK(w, http.StatusCreated, toLabResponse(lr))
	}
}

func submitResultsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !claims.HasRole(auth.RoleLab) {
			web.Fail(w, http.StatusForbidden, "forbidden")
			return
		}

		var req resultsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			web.Fail(w, http.StatusBadRequest, "invalid json")
			return
		}

		lr, err := svc.SubmitResults(r.Context(), chi.URLParam(r, "labRequestID"), req.Results, claims.UserID)
		if err != nil {
			writeLabError(w, err)
			return
		}
		web.OK(w, http.StatusOK, toLabResponse(lr))
	}
}

func getLabRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetClaims(r.Context()); !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		lr, err := svc.GetByID(r.Context(), chi.URLParam(r, "labRequestID"))
		if err != nil {
			web.Fail(w, http.StatusNotFound, "lab request not found")
			return
		}
		web.OK(w, http.StatusOK, toLabResponse(lr))
	}
}

func listLabsByVisitHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetClaims(r.Context()); !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		items, err := svc.ListByVisit(r.Context(), chi.URLParam(r, "visitID"))
		if err != nil {
			web.Fail(w, http.StatusInternalServerError, "internal error")
			return
		}

		out := make([]labRequestResponse, 0, len(items))
		for _, lr := range items {
			out = append(out, toLabResponse(lr))
		}
		web.OK(w, http.StatusOK, out)
	}
}

func writeLabError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		web.Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		web.Fail(w, http.StatusNotFound, "lab request not found")
	case errors.Is(err, consultations.ErrNotFound):
		web.Fail(w, http.StatusNotFound, "consultation not found")
	case errors.Is(err, ErrAlreadyDone), errors.Is(err, visits.ErrInvalidStateTransition):
		web.Fail(w, http.StatusConflict, err.Error())
	default:
		web.Fail(w, http.StatusInternalServerError, "internal error")
	}
}

func toLabResponse(lr LabRequest) labRequestResponse {
	return labRequestResponse{
		ID:             lr.ID,
		ConsultationID: lr.ConsultationID,
		VisitID:        lr.VisitID,
		Kind:           lr.Kind,
		Notes:          lr.Notes,
		Status:         string(lr.Status),
		Results:        lr.Results,
		ResultsBy:      lr.ResultsBy,
		ResultsAt:      lr.ResultsAt,
		RequestedBy:    lr.RequestedBy,
		CreatedAt:      lr.CreatedAt,
		UpdatedAt:      lr.UpdatedAt,
	}
}
