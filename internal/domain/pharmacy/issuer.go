package pharmacy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vetclinic-api/internal/domain/visits"

	"github.com/google/uuid"
)

// VisitFlow es la señal hacia la máquina de estados cuando la última
// receta abierta de una consulta queda resuelta. *visits.Service la
// satisface directo.
type VisitFlow interface {
	DispenseComplete(ctx context.Context, visitID string) (visits.Visit, error)
}

// ConsultationDirectory resuelve lo mínimo que farmacia necesita de una
// consulta. Lo implementa el módulo de consultas; se enlaza en el router.
type ConsultationDirectory interface {
	Lookup(ctx context.Context, consultationID string) (visitID, doctorID string, open bool, err error)
}

// Issuer emite recetas contra una consulta abierta. El chequeo de stock
// aquí es consultivo: no reserva nada y el médico puede forzarlo, porque
// el chequeo vinculante lo hace el motor de despacho al confirmar.
type Issuer struct {
	repo          Repository
	ledger        *Ledger
	consultations ConsultationDirectory
	flow          VisitFlow
	now           func() time.Time
}

func NewIssuer(repo Repository, ledger *Ledger, consultations ConsultationDirectory, flow VisitFlow) *Issuer {
	return &Issuer{
		repo:          repo,
		ledger:        ledger,
		consultations: consultations,
		flow:          flow,
		now:           time.Now,
	}
}

type IssueItem struct {
	MedicationID string
	Quantity     int
	Dosage       string
}

type IssueInput struct {
	ConsultationID string
	Items          []IssueItem
	Notes          string

	// AllowShortage salta el chequeo consultivo de stock. La receta se
	// emite igual; el faltante se resolverá (o no) al despachar.
	AllowShortage bool
}

func (i *Issuer) Issue(ctx context.Context, in IssueInput, doctorID string) (Prescription, []PrescriptionItem, error) {
	if strings.TrimSpace(in.ConsultationID) == "" || len(in.Items) == 0 {
		return Prescription{}, nil, ErrInvalidInput
	}
	for _, it := range in.Items {
		if strings.TrimSpace(it.MedicationID) == "" || it.Quantity <= 0 {
			return Prescription{}, nil, ErrInvalidInput
		}
	}

	_, _, open, err := i.consultations.Lookup(ctx, in.ConsultationID)
	if err != nil {
		return Prescription{}, nil, err
	}
	if !open {
		return Prescription{}, nil, ErrConsultationClosed
	}

	if !in.AllowShortage {
		for _, it := range in.Items {
			ok, err := i.ledger.CheckAvailability(ctx, it.MedicationID, it.Quantity)
			if err != nil {
				return Prescription{}, nil, err
			}
			if !ok {
				return Prescription{}, nil, fmt.Errorf("%w: medication %s, requested %d",
					ErrInsufficientStockAdvisory, it.MedicationID, it.Quantity)
			}
		}
	}

	now := i.now()
	p := Prescription{
		ID:             uuid.NewString(),
		ConsultationID: in.ConsultationID,
		DoctorID:       doctorID,
		Status:         PrescriptionPendiente,
		Notes:          strings.TrimSpace(in.Notes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	items := make([]PrescriptionItem, 0, len(in.Items))
	for idx, it := range in.Items {
		items = append(items, PrescriptionItem{
			ID:             uuid.NewString(),
			PrescriptionID: p.ID,
			MedicationID:   it.MedicationID,
			Quantity:       it.Quantity,
			Dosage:         strings.TrimSpace(it.Dosage),
			Position:       idx,
		})
	}

	if err := i.repo.CreatePrescription(ctx, p, items); err != nil {
		return Prescription{}, nil, err
	}
	return p, items, nil
}

// MarkInPreparation: la farmacia toma la receta (PENDIENTE -> EN_PREPARACION).
func (i *Issuer) MarkInPreparation(ctx context.Context, id string) (Prescription, error) {
	p, _, err := i.repo.GetPrescription(ctx, id)
	if err != nil {
		return Prescription{}, err
	}
	if p.Status != PrescriptionPendiente {
		return Prescription{}, fmt.Errorf("%w: prescription is %s", ErrStateConflict, p.Status)
	}
	if err := i.repo.UpdatePrescriptionStatus(ctx, id, PrescriptionEnPreparacion); err != nil {
		return Prescription{}, err
	}
	p.Status = PrescriptionEnPreparacion
	return p, nil
}

// Cancel anula una receta no terminal y reevalúa la visita: si era la
// última abierta de la consulta, la visita sale de AWAITING_PHARMACY.
func (i *Issuer) Cancel(ctx context.Context, id string) (Prescription, error) {
	p, _, err := i.repo.GetPrescription(ctx, id)
	if err != nil {
		return Prescription{}, err
	}
	if p.Status == PrescriptionDespachada {
		return Prescription{}, ErrAlreadyDispensed
	}
	if p.Status == PrescriptionCancelada {
		return Prescription{}, ErrPrescriptionCancelled
	}

	if err := i.repo.UpdatePrescriptionStatus(ctx, id, PrescriptionCancelada); err != nil {
		return Prescription{}, err
	}
	p.Status = PrescriptionCancelada

	if i.flow != nil {
		remaining, err := i.repo.OpenPrescriptionsExist(ctx, p.ConsultationID)
		if err == nil && !remaining {
			if visitID, _, _, err := i.consultations.Lookup(ctx, p.ConsultationID); err == nil {
				_, _ = i.flow.DispenseComplete(ctx, visitID)
			}
		}
	}

	return p, nil
}

func (i *Issuer) Get(ctx context.Context, id string) (Prescription, []PrescriptionItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Prescription{}, nil, ErrNotFound
	}
	return i.repo.GetPrescription(ctx, id)
}

func (i *Issuer) ListByConsultation(ctx context.Context, consultationID string) ([]Prescription, error) {
	return i.repo.ListPrescriptionsByConsultation(ctx, consultationID)
}

// HasOpenPrescriptions lo consume el módulo de consultas al cerrar: decide
// si la visita pasa por farmacia o directo a pago. Se recalcula siempre.
func (i *Issuer) HasOpenPrescriptions(ctx context.Context, consultationID string) (bool, error) {
	return i.repo.OpenPrescriptionsExist(ctx, consultationID)
}
