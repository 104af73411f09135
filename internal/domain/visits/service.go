package visits

import (
	"context"
	"errors"
	"strings"
	"time"

	"vetclinic-api/internal/domain/pets"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFound               = errors.New("visit not found")
	ErrVisitAlreadyOpen       = errors.New("pet already has an open visit")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPaymentRequired        = errors.New("payment required for discharge")
)

// PetDirectory es lo mínimo que la máquina de estados necesita del módulo pets.
type PetDirectory interface {
	GetByID(ctx context.Context, id string) (pets.Pet, error)
}

type Service struct {
	repo Repository
	pets PetDirectory
	now  func() time.Time
}

func NewService(repo Repository, petDir PetDirectory) *Service {
	return &Service{
		repo: repo,
		pets: petDir,
		now:  time.Now,
	}
}

type CheckInInput struct {
	PetID  string
	Reason string
}

// CheckIn abre una visita en ARRIVED y pone a la mascota EN_SALA.
// Se rechaza si ya existe una visita abierta para la mascota.
func (s *Service) CheckIn(ctx context.Context, in CheckInInput) (Visit, error) {
	if strings.TrimSpace(in.PetID) == "" {
		return Visit{}, ErrInvalidInput
	}

	p, err := s.pets.GetByID(ctx, in.PetID)
	if err != nil {
		return Visit{}, err
	}
	if !p.Active {
		return Visit{}, ErrInvalidInput
	}

	if _, open, err := s.repo.OpenByPet(ctx, p.ID); err != nil {
		return Visit{}, err
	} else if open {
		return Visit{}, ErrVisitAlreadyOpen
	}

	now := s.now()
	v := Visit{
		ID:           uuid.NewString(),
		PetID:        p.ID,
		Status:       StatusArrived,
		Reason:       strings.TrimSpace(in.Reason),
		Priority:     PriorityNormal,
		ArrivedAt:    now,
		PaymentTotal: decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// El repo reimpone la unicidad de visita abierta dentro de su transacción,
	// por si dos check-ins del mismo paciente corren a la vez.
	if err := s.repo.Create(ctx, v, pets.EstadoEnSala); err != nil {
		return Visit{}, err
	}
	return v, nil
}

type TriageInput struct {
	Priority Priority
	WeightKg float64
	Vitals   string
}

func (s *Service) TriageComplete(ctx context.Context, visitID string, in TriageInput) (Visit, error) {
	if in.WeightKg < 0 {
		return Visit{}, ErrInvalidInput
	}
	return s.transition(ctx, visitID, EventTriageComplete, func(v *Visit) {
		if in.Priority != "" {
			v.Priority = in.Priority
		}
		if in.WeightKg > 0 {
			v.WeightKg = in.WeightKg
		}
		v.Vitals = strings.TrimSpace(in.Vitals)
	})
}

func (s *Service) ConsultationStart(ctx context.Context, visitID string) (Visit, error) {
	return s.transition(ctx, visitID, EventConsultationStart, nil)
}

// ConsultationComplete cierra la consulta en la visita. La decisión
// farmacia/pago se recalcula en cada llamada, nunca se cachea.
func (s *Service) ConsultationComplete(ctx context.Context, visitID string, pharmacyPending bool) (Visit, error) {
	ev := EventConsultationPayment
	if pharmacyPending {
		ev = EventConsultationPharmacy
	}
	return s.transition(ctx, visitID, ev, nil)
}

func (s *Service) StudiesRequested(ctx context.Context, visitID string) (Visit, error) {
	return s.transition(ctx, visitID, EventStudiesRequested, nil)
}

func (s *Service) StudiesComplete(ctx context.Context, visitID string) (Visit, error) {
	return s.transition(ctx, visitID, EventStudiesComplete, nil)
}

// Dispatch aplica eventos del flujo quirúrgico/hospitalario que llegan por
// el endpoint genérico de eventos. Los eventos con operación propia
// (check-in, triaje, consulta, farmacia, alta) no pasan por aquí.
func (s *Service) Dispatch(ctx context.Context, visitID string, ev Event) (Visit, error) {
	switch ev {
	case EventSurgeryScheduled, EventSurgeryStart, EventSurgeryAmbulatory,
		EventSurgeryHospitalized, EventDischargeReady, EventWardRelease:
		return s.transition(ctx, visitID, ev, nil)
	default:
		return Visit{}, ErrInvalidInput
	}
}

// DispenseComplete lo emite el motor de despacho cuando la última receta
// pendiente de la consulta queda resuelta. Si la visita no está esperando
// farmacia el evento es un no-op: la decisión se recalcula en cada cambio
// de estado de receta.
func (s *Service) DispenseComplete(ctx context.Context, visitID string) (Visit, error) {
	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return Visit{}, err
	}
	if v.Status != StatusAwaitingPharmacy {
		return v, nil
	}
	return s.transition(ctx, visitID, EventDispenseComplete, nil)
}

type PaymentInput struct {
	Total  decimal.Decimal
	Method string
}

// Discharge cierra la visita. El pago viaja en la misma operación: sin
// método no hay alta. Total cero es válido (visita bonificada); negativo no.
func (s *Service) Discharge(ctx context.Context, visitID string, payment PaymentInput) (Visit, error) {
	if payment.Total.IsNegative() || strings.TrimSpace(payment.Method) == "" {
		return Visit{}, ErrPaymentRequired
	}
	return s.transition(ctx, visitID, EventDischarge, func(v *Visit) {
		now := s.now()
		v.DischargedAt = &now
		v.PaymentTotal = payment.Total
		v.PaymentMethod = strings.TrimSpace(payment.Method)
	})
}

func (s *Service) GetByID(ctx context.Context, id string) (Visit, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPet(ctx context.Context, petID string) ([]Visit, error) {
	return s.repo.ListByPet(ctx, petID)
}

func (s *Service) OpenByPet(ctx context.Context, petID string) (Visit, bool, error) {
	return s.repo.OpenByPet(ctx, petID)
}

// transition resuelve la tabla y delega la escritura atómica
// (visita + mascota) al repositorio.
func (s *Service) transition(ctx context.Context, visitID string, ev Event, mutate func(v *Visit)) (Visit, error) {
	if strings.TrimSpace(visitID) == "" {
		return Visit{}, ErrNotFound
	}
	return s.repo.Transition(ctx, visitID, func(v *Visit) (pets.Estado, error) {
		to, estado, err := apply(v.Status, ev)
		if err != nil {
			return "", err
		}
		v.Status = to
		if mutate != nil {
			mutate(v)
		}
		v.UpdatedAt = s.now()
		return estado, nil
	})
}
