package memory

import (
	"context"
	"errors"
	"sort"

	"vetclinic-api/internal/domain/labs"
)

type labRepo struct {
	s *Store
}

func (r *labRepo) Create(ctx context.Context, lr labs.LabRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if lr.ID == "" {
		return errors.New("lab request id required")
	}
	if _, exists := r.s.labRequests[lr.ID]; exists {
		return errors.New("lab request already exists")
	}
	r.s.labRequests[lr.ID] = lr
	return nil
}

func (r *labRepo) Update(ctx context.Context, lr labs.LabRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.labRequests[lr.ID]; !exists {
		return labs.ErrNotFound
	}
	r.s.labRequests[lr.ID] = lr
	return nil
}

func (r *labRepo) GetByID(ctx context.Context, id string) (labs.LabRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	lr, ok := r.s.labRequests[id]
	if !ok {
		return labs.LabRequest{}, labs.ErrNotFound
	}
	return lr, nil
}

func (r *labRepo) ListByVisit(ctx context.Context, visitID string) ([]labs.LabRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]labs.LabRequest, 0)
	for _, lr := range r.s.labRequests {
		if lr.VisitID == visitID {
			out = append(out, lr)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
