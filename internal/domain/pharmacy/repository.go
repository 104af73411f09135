package pharmacy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository agrupa las lecturas/escrituras de farmacia. Las operaciones
// que tocan stock, recetas y despachos juntos corren dentro de InTx.
type Repository interface {
	CreateMedication(ctx context.Context, m Medication) error
	UpdateMedication(ctx context.Context, m Medication) error
	GetMedication(ctx context.Context, id string) (Medication, error)
	ListMedications(ctx context.Context, f MedicationFilter) ([]Medication, error)
	ListMovements(ctx context.Context, medicationID string, f MovementFilter) ([]StockMovement, error)
	ListAlerts(ctx context.Context, f AlertFilter) ([]StockAlert, error)

	CreatePrescription(ctx context.Context, p Prescription, items []PrescriptionItem) error
	GetPrescription(ctx context.Context, id string) (Prescription, []PrescriptionItem, error)
	ListPrescriptionsByConsultation(ctx context.Context, consultationID string) ([]Prescription, error)
	UpdatePrescriptionStatus(ctx context.Context, id string, status PrescriptionStatus) error
	OpenPrescriptionsExist(ctx context.Context, consultationID string) (bool, error)

	GetDispense(ctx context.Context, id string) (Dispense, []DispenseItem, error)

	// InTx ejecuta fn como unidad de trabajo atómica: si fn devuelve error,
	// nada de lo hecho vía Tx queda persistido.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx son las operaciones disponibles dentro de la transacción de despacho
// o de ajuste manual. El adaptador postgres bloquea la fila del
// medicamento (FOR UPDATE); el de memoria serializa con su mutex.
type Tx interface {
	MedicationForUpdate(ctx context.Context, id string) (Medication, error)
	SetMedicationStock(ctx context.Context, id string, newStock int, at time.Time) error
	AppendMovement(ctx context.Context, m StockMovement) error

	ActiveAlert(ctx context.Context, medicationID string, typ AlertType) (StockAlert, bool, error)
	CreateAlert(ctx context.Context, a StockAlert) error
	ResolveAlert(ctx context.Context, alertID string, at time.Time) error

	PrescriptionForUpdate(ctx context.Context, id string) (Prescription, []PrescriptionItem, error)
	UpdatePrescriptionStatus(ctx context.Context, id string, status PrescriptionStatus) error

	CreateDispense(ctx context.Context, d Dispense) error
	SetDispenseTotal(ctx context.Context, id string, total decimal.Decimal) error
	CreateDispenseItem(ctx context.Context, it DispenseItem) error
}
