package memory

import (
	"context"
	"errors"

	"vetclinic-api/internal/domain/consultations"
)

type consultationRepo struct {
	s *Store
}

func (r *consultationRepo) Create(ctx context.Context, c consultations.Consultation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if c.ID == "" {
		return errors.New("consultation id required")
	}
	if _, exists := r.s.consultations[c.ID]; exists {
		return errors.New("consultation already exists")
	}
	r.s.consultations[c.ID] = c
	return nil
}

func (r *consultationRepo) Update(ctx context.Context, c consultations.Consultation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.consultations[c.ID]; !exists {
		return consultations.ErrNotFound
	}
	r.s.consultations[c.ID] = c
	return nil
}

func (r *consultationRepo) GetByID(ctx context.Context, id string) (consultations.Consultation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.consultations[id]
	if !ok {
		return consultations.Consultation{}, consultations.ErrNotFound
	}
	return c, nil
}

func (r *consultationRepo) GetByVisit(ctx context.Context, visitID string) (consultations.Consultation, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.consultations {
		if c.VisitID == visitID {
			return c, true, nil
		}
	}
	return consultations.Consultation{}, false, nil
}
