package consultations

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"vetclinic-api/internal/domain/visits"
	"vetclinic-api/internal/middleware"
	"vetclinic-api/internal/ports/auth"
	"vetclinic-api/internal/web"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/consultations", func(cr chi.Router) {
		cr.Post("/", startConsultationHandler(svc))
		cr.Get("/{consultationID}", getConsultationHandler(svc))
		cr.Patch("/{consultationID}", updateNotesHandler(svc))
		cr.Post("/{consultationID}/complete", completeConsultationHandler(svc))
	})
}

type startConsultationRequest struct {
	VisitID string `json:"visit_id"`
}

type notesRequest struct {
	Subjective *string `json:"subjective"`
	Objective  *string `json:"objective"`
	Assessment *string `json:"assessment"`
	Plan       *string `json:"plan"`
	Diagnosis  *string `json:"diagnosis"`
}

type consultationResponse struct {
	ID          string     `json:"id"`
	VisitID     string     `json:"visit_id"`
	DoctorID    string     `json:"doctor_id"`
	Subjective  string     `json:"subjective,omitempty"`
	Objective   string     `json:"objective,omitempty"`
	Assessment  string     `json:"assessment,omitempty"`
	Plan        string     `json:"plan,omitempty"`
	Diagnosis   string     `json:"diagnosis,omitempty"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func startConsultationHandler(svc *Service) http.HandlerFunc {
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

		var req startConsultationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			web.Fail(w, http.StatusBadRequest, "invalid json")
			return
		}

		c, err := svc.Start(r.Context(), req.VisitID, claims.UserID)
		if err != nil {
			writeConsultationError(w, err)
			return
		}
		web.OK(w, http.StatusCreated, toConsultationResponse(c))
	}
}

func getConsultationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetClaims(r.Context()); !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		c, err := svc.GetByID(r.Context(), chi.URLParam(r, "consultationID"))
		if err != nil {
			web.Fail(w, http.StatusNotFound, "consultation not found")
			return
		}
		web.OK(w, http.StatusOK, toConsultationResponse(c))
	}
}

func updateNotesHandler(svc *Service) http.HandlerFunc {
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

		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()

		var req notesRequest
		if err := dec.Decode(&req); err != nil {
			web.Fail(w, http.StatusBadRequest, "invalid json")
			return
		}

		c, err := svc.UpdateNotes(r.Context(), chi.URLParam(r, "consultationID"), NotesInput{
			Subjective: req.Subjective,
			Objective:  req.Objective,
			Assessment: req.Assessment,
			Plan:       req.Plan,
			Diagnosis:  req.Diagnosis,
		})
		if err != nil {
			writeConsultationError(w, err)
			return
		}
		web.OK(w, http.StatusOK, toConsultationResponse(c))
	}
}

func completeConsultationHandler(svc *Service) http.HandlerFunc {
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

		c, err := svc.Complete(r.Context(), chi.URLParam(r, "consultationID"))
		if err != nil {
			writeConsultationError(w, err)
			return
		}
		web.OK(w, http.StatusOK, toConsultationResponse(c))
	}
}

func writeConsultationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		web.Fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		web.Fail(w, http.StatusNotFound, "consultation not found")
	case errors.Is(err, visits.ErrNotFound):
		web.Fail(w, http.StatusNotFound, "visit not found")
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrNotOpen),
		errors.Is(err, visits.ErrInvalidStateTransition):
		web.Fail(w, http.StatusConflict, err.Error())
	default:
		web.Fail(w, http.StatusInternalServerError, "internal error")
	}
}

func toConsultationResponse(c Consultation) consultationResponse {
	return consultationResponse{
		ID:          c.ID,
		VisitID:     c.VisitID,
		DoctorID:    c.DoctorID,
		Subjective:  c.Subjective,
		Objective:   c.Objective,
		Assessment:  c.Assessment,
		Plan:        c.Plan,
		Diagnosis:   c.Diagnosis,
		Status:      string(c.Status),
		CompletedAt: c.CompletedAt,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
