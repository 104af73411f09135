package labs

import "time"

type Status string

const (
	StatusSolicitado Status = "SOLICITADO"
	StatusCompletado Status = "COMPLETADO"
)

// LabRequest es un pedido de estudios ligado a una consulta. Mientras está
// SOLICITADO la visita queda en AWAITING_STUDIES.
type LabRequest struct {
	ID             string
	ConsultationID string
	VisitID        string

	Kind  string // hemograma, radiografía, ecografía, etc.
	Notes string

	Status    Status
	Results   string
	ResultsBy string
	ResultsAt *time.Time

	RequestedBy string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
