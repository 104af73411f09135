package memory

import (
	"context"
	"errors"
	"sort"

	"vetclinic-api/internal/domain/pets"
	"vetclinic-api/internal/domain/visits"
)

type visitRepo struct {
	s *Store
}

func (r *visitRepo) Create(ctx context.Context, v visits.Visit, estado pets.Estado) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if v.ID == "" {
		return errors.New("visit id required")
	}
	p, ok := r.s.pets[v.PetID]
	if !ok {
		return pets.ErrNotFound
	}
	// El chequeo se repite bajo el lock: el del servicio corre sin él y dos
	// check-in concurrentes podrían pasarlo a la vez.
	for _, existing := range r.s.visits {
		if existing.PetID == v.PetID && existing.Open() {
			return visits.ErrVisitAlreadyOpen
		}
	}

	r.s.visits[v.ID] = v
	p.Estado = estado
	p.UpdatedAt = v.UpdatedAt
	r.s.pets[v.PetID] = p
	return nil
}

func (r *visitRepo) GetByID(ctx context.Context, id string) (visits.Visit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.visits[id]
	if !ok {
		return visits.Visit{}, visits.ErrNotFound
	}
	return v, nil
}

func (r *visitRepo) ListByPet(ctx context.Context, petID string) ([]visits.Visit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]visits.Visit, 0)
	for _, v := range r.s.visits {
		if v.PetID == petID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ArrivedAt.After(out[j].ArrivedAt)
	})
	return out, nil
}

func (r *visitRepo) OpenByPet(ctx context.Context, petID string) (visits.Visit, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, v := range r.s.visits {
		if v.PetID == petID && v.Open() {
			return v, true, nil
		}
	}
	return visits.Visit{}, false, nil
}

// Transition serializa eventos concurrentes sobre la misma visita: fn corre
// bajo el lock y visita + estado de mascota se escriben juntos o nada.
func (r *visitRepo) Transition(ctx context.Context, visitID string, fn func(v *visits.Visit) (pets.Estado, error)) (visits.Visit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.visits[visitID]
	if !ok {
		return visits.Visit{}, visits.ErrNotFound
	}

	estado, err := fn(&v)
	if err != nil {
		return visits.Visit{}, err
	}

	r.s.visits[visitID] = v
	if p, ok := r.s.pets[v.PetID]; ok {
		p.Estado = estado
		p.UpdatedAt = v.UpdatedAt
		r.s.pets[v.PetID] = p
	}
	return v, nil
}
