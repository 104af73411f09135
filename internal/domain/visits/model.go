package visits

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status es el estado de una visita (un episodio de atención).
type Status string

const (
	StatusArrived           Status = "ARRIVED"
	StatusTriagedWaiting    Status = "TRIAGED_WAITING"
	StatusInConsultation    Status = "IN_CONSULTATION"
	StatusAwaitingStudies   Status = "AWAITING_STUDIES"
	StatusAwaitingSurgery   Status = "AWAITING_SURGERY"
	StatusInSurgery         Status = "IN_SURGERY"
	StatusHospitalized      Status = "HOSPITALIZED"
	StatusReadyForDischarge Status = "READY_FOR_DISCHARGE"
	StatusAwaitingPharmacy  Status = "AWAITING_PHARMACY"
	StatusReadyForPayment   Status = "READY_FOR_PAYMENT"
	StatusDischarged        Status = "DISCHARGED" // terminal
)

// Priority asignada en triaje.
type Priority string

const (
	PriorityLow    Priority = "BAJA"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "URGENTE"
)

// Visit es un episodio de atención de una mascota, del check-in al alta.
// Una mascota tiene a lo sumo una visita abierta (no DISCHARGED) a la vez.
type Visit struct {
	ID    string
	PetID string

	Status Status
	Reason string

	// Triaje
	Priority Priority
	WeightKg float64
	Vitals   string

	ArrivedAt    time.Time
	DischargedAt *time.Time

	// Pago registrado en la misma operación del alta.
	PaymentTotal  decimal.Decimal
	PaymentMethod string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Open indica si la visita sigue en curso.
func (v Visit) Open() bool {
	return v.Status != StatusDischarged
}
