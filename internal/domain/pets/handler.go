package pets

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"vetclinic-api/internal/middleware"
	"vetclinic-api/internal/ports/auth"
	"vetclinic-api/internal/web"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/pets", func(pr chi.Router) {
		pr.Post("/", createPetHandler(svc))
		pr.Get("/", listPetsHandler(svc))
		pr.Get("/{petID}", getPetHandler(svc))
		pr.Patch("/{petID}", updatePetHandler(svc))
		pr.Post("/{petID}/deactivate", deactivatePetHandler(svc))
	})
}

type createPetRequest struct {
	OwnerID   string  `json:"owner_id"`
	Name      string  `json:"name"`
	Species   string  `json:"species"`
	Breed     string  `json:"breed"`
	Sex       string  `json:"sex"`
	BirthDate string  `json:"birth_date"` // YYYY-MM-DD opcional
	WeightKg  float64 `json:"weight_kg"`
	Microchip string  `json:"microchip"`
	Notes     string  `json:"notes"`
}

type petResponse struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Name      string     `json:"name"`
	Species   string     `json:"species"`
	Breed     string     `json:"breed"`
	Sex       string     `json:"sex"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	WeightKg  float64    `json:"weight_kg"`
	Microchip string     `json:"microchip,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Estado    string     `json:"estado"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type updatePetRequest struct {
	Name      *string  `json:"name"`
	Breed     *string  `json:"breed"`
	Sex       *string  `json:"sex"`
	WeightKg  *float64 `json:"weight_kg"`
	Microchip *string  `json:"microchip"`
	Notes     *string  `json:"notes"`
}

func createPetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req createPetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			web.Fail(w, http.StatusBadRequest, "invalid json")
			return
		}

		var bd *time.Time
		if strings.TrimSpace(req.BirthDate) != "" {
			t, err := time.Parse("2006-01-02", req.BirthDate)
			if err != nil {
				web.Fail(w, http.StatusBadRequest, "birth_date must be YYYY-MM-DD")
				return
			}
			bd = &t
		}

		// Recepción registra mascotas a nombre del dueño; si no viene owner_id,
		// se asume que el propio usuario es el dueño.
		ownerID := strings.TrimSpace(req.OwnerID)
		if ownerID == "" {
			ownerID = claims.UserID
		}

		p, err := svc.Create(r.Context(), ownerID, CreateInput{
			Name:      req.Name,
			Species:   Species(req.Species),
			Breed:     req.Breed,
			Sex:       Sex(req.Sex),
			BirthDate: bd,
			WeightKg:  req.WeightKg,
			Microchip: req.Microchip,
			Notes:     req.Notes,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				web.Fail(w, http.StatusBadRequest, err.Error())
				return
			}
			web.Fail(w, http.StatusInternalServerError, "internal error")
			return
		}

		web.OK(w, http.StatusCreated, toPetResponse(p))
	}
}

func listPetsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
		if ownerID == "" {
			ownerID = claims.UserID
		}

		items, err := svc.ListByOwner(r.Context(), ownerID)
		if err != nil {
			web.Fail(w, http.StatusInternalServerError, "internal error")
			return
		}

		out := make([]petResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toPetResponse(p))
		}
		web.OK(w, http.StatusOK, out)
	}
}

func getPetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetClaims(r.Context()); !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		p, err := svc.GetByID(r.Context(), chi.URLParam(r, "petID"))
		if err != nil {
			web.Fail(w, http.StatusNotFound, "pet not found")
			return
		}
		web.OK(w, http.StatusOK, toPetResponse(p))
	}
}

func updatePetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.GetClaims(r.Context()); !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()

		var req updatePetRequest
		if err := dec.Decode(&req); err != nil {
			web.Fail(w, http.StatusBadRequest, "invalid json")
			return
		}

		var sex *Sex
		if req.Sex != nil {
			s := Sex(*req.Sex)
			sex = &s
		}

		p, err := svc.UpdateProfile(r.Context(), chi.URLParam(r, "petID"), UpdateProfileInput{
			Name:      req.Name,
			Breed:     req.Breed,
			Sex:       sex,
			WeightKg:  req.WeightKg,
			Microchip: req.Microchip,
			Notes:     req.Notes,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				web.Fail(w, http.StatusBadRequest, err.Error())
			case errors.Is(err, ErrNotFound):
				web.Fail(w, http.StatusNotFound, "pet not found")
			default:
				web.Fail(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		web.OK(w, http.StatusOK, toPetResponse(p))
	}
}

func deactivatePetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			web.Fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !claims.HasRole(auth.RoleAdmin) {
			web.Fail(w, http.StatusForbidden, "forbidden")
			return
		}

		p, err := svc.Deactivate(r.Context(), chi.URLParam(r, "petID"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				web.Fail(w, http.StatusNotFound, "pet not found")
				return
			}
			web.Fail(w, http.StatusInternalServerError, "internal error")
			return
		}
		web.OK(w, http.StatusOK, toPetResponse(p))
	}
}

func toPetResponse(p Pet) petResponse {
	return petResponse{
		ID:        p.ID,
		OwnerID:   p.OwnerID,
		Name:      p.Name,
		Species:   string(p.Species),
		Breed:     p.Breed,
		Sex:       string(p.Sex),
		BirthDate: p.BirthDate,
		WeightKg:  p.WeightKg,
		Microchip: p.Microchip,
		Notes:     p.Notes,
		Estado:    string(p.Estado),
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
