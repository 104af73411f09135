package pharmacy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Medication es un ítem del inventario de farmacia. CurrentStock solo se
// muta a través del Ledger (AdjustStock); nadie más escribe ese campo.
type Medication struct {
	ID           string
	Name         string
	Presentation string // tabletas 500mg, suspensión 120ml, etc.
	Unit         string

	CurrentStock int
	MinStock     int

	SalePrice decimal.Decimal
	CostPrice decimal.Decimal

	Controlled   bool
	Refrigerated bool
	Active       bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

type MovementDirection string

const (
	MovementIn  MovementDirection = "IN"
	MovementOut MovementDirection = "OUT"
)

// StockMovement es la fila de auditoría de cada cambio de stock.
// Append-only: nunca se actualiza ni se borra.
type StockMovement struct {
	ID           string
	MedicationID string
	Direction    MovementDirection
	Quantity     int // siempre positivo; la dirección lleva el signo
	StockBefore  int
	StockAfter   int
	Reason       string
	DispenseID   *string
	ActorID      string
	CreatedAt    time.Time
}

type AlertType string

const (
	AlertLowStock   AlertType = "LOW_STOCK"
	AlertOutOfStock AlertType = "OUT_OF_STOCK"
)

type AlertPriority string

const (
	AlertPriorityMedium AlertPriority = "MEDIUM"
	AlertPriorityHigh   AlertPriority = "HIGH"
)

type AlertStatus string

const (
	AlertActive   AlertStatus = "ACTIVE"
	AlertResolved AlertStatus = "RESOLVED"
)

// StockAlert: a lo sumo una ACTIVE por (medicamento, tipo).
type StockAlert struct {
	ID           string
	MedicationID string
	Type         AlertType
	Priority     AlertPriority
	Message      string
	StockLevel   int
	MinStock     int
	Status       AlertStatus
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

type PrescriptionStatus string

const (
	PrescriptionPendiente     PrescriptionStatus = "PENDIENTE"
	PrescriptionEnPreparacion PrescriptionStatus = "EN_PREPARACION"
	PrescriptionDespachada    PrescriptionStatus = "DESPACHADA"
	PrescriptionCancelada     PrescriptionStatus = "CANCELADA"
)

// Terminal indica si el estado ya no admite despacho.
func (s PrescriptionStatus) Terminal() bool {
	return s == PrescriptionDespachada || s == PrescriptionCancelada
}

// Prescription es la orden del médico, ligada a una consulta.
type Prescription struct {
	ID             string
	ConsultationID string
	DoctorID       string
	Status         PrescriptionStatus
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PrescriptionItem conserva el orden de emisión vía Position.
type PrescriptionItem struct {
	ID             string
	PrescriptionID string
	MedicationID   string
	Quantity       int
	Dosage         string
	Position       int
}

// Dispense es un evento de despacho contra una receta.
type Dispense struct {
	ID             string
	PrescriptionID string
	PharmacistID   string
	Signature      string
	Notes          string
	Total          decimal.Decimal
	CreatedAt      time.Time
}

// DispenseItem registra el medicamento efectivamente entregado. Si hubo
// sustitución, queda el flag y el motivo para la auditoría.
type DispenseItem struct {
	ID                 string
	DispenseID         string
	PrescriptionItemID string
	MedicationID       string // el efectivo (original o sustituto)
	Quantity           int
	UnitPrice          decimal.Decimal // precio al momento del despacho
	Subtotal           decimal.Decimal
	Substituted        bool
	SubstitutionReason string
	LotNumber          string
}

// Filtros tipados (nada de maps sueltos).

type MedicationFilter struct {
	Name         string // substring, case-insensitive
	Active       *bool
	LowStockOnly bool
}

type MovementFilter struct {
	Direction *MovementDirection
	From      *time.Time
	To        *time.Time
	Limit     int
}

type AlertFilter struct {
	MedicationID string
	Status       *AlertStatus
	Type         *AlertType
}
