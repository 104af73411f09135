package visits

import (
	"context"

	"vetclinic-api/internal/domain/pets"
)

type Repository interface {
	// Create persiste la visita y actualiza el estado de la mascota en la
	// misma transacción. Si la mascota ya tiene una visita abierta debe
	// devolver ErrVisitAlreadyOpen.
	Create(ctx context.Context, v Visit, estado pets.Estado) error

	GetByID(ctx context.Context, id string) (Visit, error)
	ListByPet(ctx context.Context, petID string) ([]Visit, error)
	OpenByPet(ctx context.Context, petID string) (Visit, bool, error)

	// Transition carga la visita con lock de fila, ejecuta fn sobre ella y
	// persiste visita + estado de mascota en una sola transacción. Si fn
	// devuelve error no se persiste nada. Eventos concurrentes sobre la
	// misma visita serializan aquí.
	Transition(ctx context.Context, visitID string, fn func(v *Visit) (pets.Estado, error)) (Visit, error)
}
