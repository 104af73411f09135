package labs

import (
	"context"
	"errors"
	"strings"
	"time"

	"vetclinic-api/internal/domain/visits"
	"vetclinic-api/internal/ports/notify"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("lab request not found")
	ErrAlreadyDone  = errors.New("lab request already completed")
)

// VisitFlow son las transiciones de visita que dispara el laboratorio.
type VisitFlow interface {
	StudiesRequested(ctx context.Context, visitID string) (visits.Visit, error)
	StudiesComplete(ctx context.Context, visitID string) (visits.Visit, error)
}

// ConsultationDirectory resuelve la visita y el médico de una consulta.
type ConsultationDirectory interface {
	Lookup(ctx context.Context, consultationID string) (visitID, doctorID string, open bool, err error)
}

type Service struct {
	repo          Repository
	flow          VisitFlow
	consultations ConsultationDirectory
	notifier      notify.Notifier
	now           func() time.Time
}

func NewService(repo Repository, flow VisitFlow, consultations ConsultationDirectory, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{
		repo:          repo,
		flow:          flow,
		consultations: consultations,
		notifier:      notifier,
		now:           time.Now,
	}
}

type RequestInput struct {
	ConsultationID string
	Kind           string
	Notes          string
}

// Request crea el pedido y mueve la visita a AWAITING_STUDIES. La
// transición hace de guard: solo se piden estudios desde la consulta.
func (s *Service) Request(ctx context.Context, in RequestInput, requestedBy string) (LabRequest, error) {
	if strings.TrimSpace(in.ConsultationID) == "" || strings.TrimSpace(in.Kind) == "" {
		return LabRequest{}, ErrInvalidInput
	}

	visitID, _, open, err := s.consultations.Lookup(ctx, in.ConsultationID)
	if err != nil {
		return LabRequest{}, err
	}
	if !open {
		return LabRequest{}, ErrInvalidInput
	}

	if _, err := s.flow.StudiesRequested(ctx, visitID); err != nil {
		return LabRequest{}, err
	}

	now := s.now()
	lr := LabRequest{
		ID:             uuid.NewString(),
		ConsultationID: in.ConsultationID,
		VisitID:        visitID,
		Kind:           strings.TrimSpace(in.Kind),
		Notes:          strings.TrimSpace(in.Notes),
		Status:         StatusSolicitado,
		RequestedBy:    requestedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, lr); err != nil {
		return LabRequest{}, err
	}
	return lr, nil
}

// SubmitResults registra resultados y devuelve la visita al médico.
func (s *Service) SubmitResults(ctx context.Context, id, results, actorID string) (LabRequest, error) {
	if strings.TrimSpace(results) == "" {
		return LabRequest{}, ErrInvalidInput
	}

	lr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return LabRequest{}, err
	}
	if lr.Status == StatusCompletado {
		return LabRequest{}, ErrAlreadyDone
	}

	if _, err := s.flow.StudiesComplete(ctx, lr.VisitID); err != nil {
		return LabRequest{}, err
	}

	now := s.now()
	lr.Status = StatusCompletado
	lr.Results = strings.TrimSpace(results)
	lr.ResultsBy = actorID
	lr.ResultsAt = &now
	lr.UpdatedAt = now
	if err := s.repo.Update(ctx, lr); err != nil {
		return LabRequest{}, err
	}

	if _, doctorID, _, err := s.consultations.Lookup(ctx, lr.ConsultationID); err == nil {
		s.notifier.Notify(ctx, doctorID, notify.TypeLabResults,
			"Resultados de laboratorio",
			"Resultados disponibles: "+lr.Kind,
			map[string]any{"lab_request_id": lr.ID, "visit_id": lr.VisitID})
	}

	return lr, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (LabRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return LabRequest{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByVisit(ctx context.Context, visitID string) ([]LabRequest, error) {
	return s.repo.ListByVisit(ctx, visitID)
}
