package consultations

import "context"

type Repository interface {
	Create(ctx context.Context, c Consultation) error
	Update(ctx context.Context, c Consultation) error
	GetByID(ctx context.Context, id string) (Consultation, error)
	GetByVisit(ctx context.Context, visitID string) (Consultation, bool, error)
}
