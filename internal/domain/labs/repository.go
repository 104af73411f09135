package labs

import "context"

type Repository interface {
	Create(ctx context.Context, lr LabRequest) error
	Update(ctx context.Context, lr LabRequest) error
	GetByID(ctx context.Context, id string) (LabRequest, error)
	ListByVisit(ctx context.Context, visitID string) ([]LabRequest, error)
}
