package consultations

import "time"

type Status string

const (
	StatusEnProgreso Status = "EN_PROGRESO"
	StatusCompletada Status = "COMPLETADA"
)

// Consultation es el registro del examen médico de una visita.
// Una visita tiene a lo sumo una consulta.
type Consultation struct {
	ID       string
	VisitID  string
	DoctorID string

	// Notas SOAP
	Subjective string
	Objective  string
	Assessment string
	Plan       string

	Diagnosis string

	Status      Status
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
