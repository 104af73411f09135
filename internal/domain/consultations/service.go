package consultations

import (
	"context"
	"errors"
	"strings"
	"time"

	"vetclinic-api/internal/domain/visits"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("consultation not found")
	ErrAlreadyExists = errors.New("visit already has a consultation")
	ErrNotOpen       = errors.New("consultation is not in progress")
)

// VisitFlow son las transiciones de visita que dispara este módulo.
type VisitFlow interface {
	ConsultationStart(ctx context.Context, visitID string) (visits.Visit, error)
	ConsultationComplete(ctx context.Context, visitID string, pharmacyPending bool) (visits.Visit, error)
}

// PrescriptionChecker responde si la consulta tiene recetas sin despachar.
// Lo implementa el módulo de farmacia; se enlaza en el router.
type PrescriptionChecker interface {
	HasOpenPrescriptions(ctx context.Context, consultationID string) (bool, error)
}

type Service struct {
	repo          Repository
	flow          VisitFlow
	prescriptions PrescriptionChecker
	now           func() time.Time
}

func NewService(repo Repository, flow VisitFlow) *Service {
	return &Service{
		repo: repo,
		flow: flow,
		now:  time.Now,
	}
}

// BindPrescriptions enlaza el verificador de recetas. Se setea después de
// construir ambos servicios porque farmacia también depende de este módulo.
func (s *Service) BindPrescriptions(p PrescriptionChecker) {
	s.prescriptions = p
}

// Start abre la consulta de una visita en espera. La transición de la
// visita (TRIAGED_WAITING -> IN_CONSULTATION) hace de guard: si la visita
// no está en espera, falla sin crear nada.
func (s *Service) Start(ctx context.Context, visitID, doctorID string) (Consultation, error) {
	if strings.TrimSpace(visitID) == "" || strings.TrimSpace(doctorID) == "" {
		return Consultation{}, ErrInvalidInput
	}

	if _, exists, err := s.repo.GetByVisit(ctx, visitID); err != nil {
		return Consultation{}, err
	} else if exists {
		return Consultation{}, ErrAlreadyExists
	}

	if _, err := s.flow.ConsultationStart(ctx, visitID); err != nil {
		return Consultation{}, err
	}

	now := s.now()
	c := Consultation{
		ID:        uuid.NewString(),
		VisitID:   visitID,
		DoctorID:  doctorID,
		Status:    StatusEnProgreso,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Consultation{}, err
	}
	return c, nil
}

type NotesInput struct {
	Subjective *string
	Objective  *string
	Assessment *string
	Plan       *string
	Diagnosis  *string
}

func (s *Service) UpdateNotes(ctx context.Context, id string, in NotesInput) (Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Consultation{}, err
	}
	if c.Status != StatusEnProgreso {
		return Consultation{}, ErrNotOpen
	}

	if in.Subjective != nil {
		c.Subjective = strings.TrimSpace(*in.Subjective)
	}
	if in.Objective != nil {
		c.Objective = strings.TrimSpace(*in.Objective)
	}
	if in.Assessment != nil {
		c.Assessment = strings.TrimSpace(*in.Assessment)
	}
	if in.Plan != nil {
		c.Plan = strings.TrimSpace(*in.Plan)
	}
	if in.Diagnosis != nil {
		c.Diagnosis = strings.TrimSpace(*in.Diagnosis)
	}

	c.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, c); err != nil {
		return Consultation{}, err
	}
	return c, nil
}

// Complete cierra la consulta. El destino de la visita se recalcula aquí
// preguntando a farmacia si quedan recetas sin despachar; nunca se guarda
// la decisión.
func (s *Service) Complete(ctx context.Context, id string) (Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Consultation{}, err
	}
	if c.Status != StatusEnProgreso {
		return Consultation{}, ErrNotOpen
	}

	pending := false
	if s.prescriptions != nil {
		pending, err = s.prescriptions.HasOpenPrescriptions(ctx, c.ID)
		if err != nil {
			return Consultation{}, err
		}
	}

	if _, err := s.flow.ConsultationComplete(ctx, c.VisitID, pending); err != nil {
		return Consultation{}, err
	}

	now := s.now()
	c.Status = StatusCompletada
	c.CompletedAt = &now
	c.UpdatedAt = now
	if err := s.repo.Update(ctx, c); err != nil {
		return Consultation{}, err
	}
	return c, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Consultation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Consultation{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByVisit(ctx context.Context, visitID string) (Consultation, bool, error) {
	return s.repo.GetByVisit(ctx, visitID)
}

// Lookup expone lo mínimo que farmacia necesita saber de una consulta sin
// acoplar tipos entre módulos (mismo truco que OwnerOf en pets).
func (s *Service) Lookup(ctx context.Context, consultationID string) (visitID, doctorID string, open bool, err error) {
	c, err := s.repo.GetByID(ctx, consultationID)
	if err != nil {
		return "", "", false, err
	}
	return c.VisitID, c.DoctorID, c.Status == StatusEnProgreso, nil
}
