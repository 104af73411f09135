package pharmacy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vetclinic-api/internal/platform/logger"
	"vetclinic-api/internal/ports/notify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine ejecuta el despacho de una receta como una sola transacción
// todo-o-nada: cabecera, ítems, decrementos de stock, filas de auditoría,
// evaluación de alertas y cambio de estado de la receta confirman juntos
// o no confirma nada.
type Engine struct {
	repo          Repository
	ledger        *Ledger
	monitor       *AlertMonitor
	consultations ConsultationDirectory
	flow          VisitFlow
	notifier      notify.Notifier
	log           logger.Logger
	now           func() time.Time
}

func NewEngine(repo Repository, ledger *Ledger, monitor *AlertMonitor,
	consultations ConsultationDirectory, flow VisitFlow,
	notifier notify.Notifier, log logger.Logger) *Engine {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Engine{
		repo:          repo,
		ledger:        ledger,
		monitor:       monitor,
		consultations: consultations,
		flow:          flow,
		notifier:      notifier,
		log:           log,
		now:           time.Now,
	}
}

type DispenseItemInput struct {
	PrescriptionItemID string
	Quantity           int

	// Sustitución: la farmacia entrega otro medicamento que el recetado.
	// El motivo es obligatorio y queda en la auditoría.
	SubstituteMedicationID string
	SubstitutionReason     string

	LotNumber string
}

type DispenseInput struct {
	PrescriptionID string
	Signature      string
	Notes          string
	Items          []DispenseItemInput
}

// Dispense despacha una receta. Los ítems se procesan en el orden
// enviado; el primer fallo aborta y revierte todo. El precio unitario se
// toma del medicamento al momento del despacho, no al de la emisión.
func (e *Engine) Dispense(ctx context.Context, in DispenseInput, pharmacistID string) (Dispense, []DispenseItem, error) {
	if strings.TrimSpace(in.PrescriptionID) == "" || len(in.Items) == 0 {
		return Dispense{}, nil, ErrInvalidInput
	}
	for _, it := range in.Items {
		if strings.TrimSpace(it.PrescriptionItemID) == "" || it.Quantity <= 0 {
			return Dispense{}, nil, ErrInvalidInput
		}
		if it.SubstituteMedicationID != "" && strings.TrimSpace(it.SubstitutionReason) == "" {
			return Dispense{}, nil, fmt.Errorf("%w: substitution requires a reason", ErrInvalidInput)
		}
	}

	var (
		header         Dispense
		dispensedItems []DispenseItem
		alertEvents    []AlertEvent
		consultationID string
	)

	err := e.repo.InTx(ctx, func(tx Tx) error {
		p, pitems, err := tx.PrescriptionForUpdate(ctx, in.PrescriptionID)
		if err != nil {
			return err
		}
		switch p.Status {
		case PrescriptionDespachada:
			return ErrAlreadyDispensed
		case PrescriptionCancelada:
			return ErrPrescriptionCancelled
		}
		consultationID = p.ConsultationID

		byID := make(map[string]PrescriptionItem, len(pitems))
		for _, pi := range pitems {
			byID[pi.ID] = pi
		}

		now := e.now()
		header = Dispense{
			ID:             uuid.NewString(),
			PrescriptionID: p.ID,
			PharmacistID:   pharmacistID,
			Signature:      strings.TrimSpace(in.Signature),
			Notes:          strings.TrimSpace(in.Notes),
			Total:          decimal.Zero,
			CreatedAt:      now,
		}
		if err := tx.CreateDispense(ctx, header); err != nil {
			return err
		}

		seen := make(map[string]bool, len(in.Items))
		total := decimal.Zero

		for _, it := range in.Items {
			pi, ok := byID[it.PrescriptionItemID]
			if !ok {
				return fmt.Errorf("%w: item %s does not belong to prescription %s",
					ErrInvalidInput, it.PrescriptionItemID, p.ID)
			}
			if seen[it.PrescriptionItemID] {
				return fmt.Errorf("%w: item %s referenced twice", ErrInvalidInput, it.PrescriptionItemID)
			}
			seen[it.PrescriptionItemID] = true

			// Medicamento efectivo: el recetado o el sustituto.
			effectiveID := pi.MedicationID
			substituted := false
			if it.SubstituteMedicationID != "" && it.SubstituteMedicationID != pi.MedicationID {
				effectiveID = it.SubstituteMedicationID
				substituted = true
			}

			// Releer stock dentro de la transacción: el chequeo de la
			// emisión es consultivo y puede estar vencido.
			med, err := tx.MedicationForUpdate(ctx, effectiveID)
			if err != nil {
				return err
			}
			if it.Quantity > med.CurrentStock {
				return fmt.Errorf("%w: %s has %d, requested %d",
					ErrInsufficientStock, med.Name, med.CurrentStock, it.Quantity)
			}

			unitPrice := med.SalePrice
			subtotal := unitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))

			if _, err := e.ledger.AdjustStockTx(ctx, tx, effectiveID, -it.Quantity,
				"dispense:"+p.ID, pharmacistID, &header.ID); err != nil {
				return err
			}

			evs, err := e.monitor.EvaluateTx(ctx, tx, effectiveID)
			if err != nil {
				return err
			}
			alertEvents = append(alertEvents, evs...)

			di := DispenseItem{
				ID:                 uuid.NewString(),
				DispenseID:         header.ID,
				PrescriptionItemID: pi.ID,
				MedicationID:       effectiveID,
				Quantity:           it.Quantity,
				UnitPrice:          unitPrice,
				Subtotal:           subtotal,
				Substituted:        substituted,
				SubstitutionReason: strings.TrimSpace(it.SubstitutionReason),
				LotNumber:          strings.TrimSpace(it.LotNumber),
			}
			if err := tx.CreateDispenseItem(ctx, di); err != nil {
				return err
			}
			dispensedItems = append(dispensedItems, di)
			total = total.Add(subtotal)
		}

		// La receta solo queda DESPACHADA con todos sus ítems cubiertos:
		// un despacho parcial no existe, se corrige la receta o se cancela.
		if len(seen) != len(pitems) {
			return fmt.Errorf("%w: dispense covers %d of %d prescription items",
				ErrInvalidInput, len(seen), len(pitems))
		}

		if err := tx.SetDispenseTotal(ctx, header.ID, total); err != nil {
			return err
		}
		header.Total = total

		return tx.UpdatePrescriptionStatus(ctx, p.ID, PrescriptionDespachada)
	})
	if err != nil {
		return Dispense{}, nil, err
	}

	// Post-commit: alertas, señal a la visita y notificación. Nada de esto
	// puede revertir el despacho ya confirmado.
	e.monitor.Publish(ctx, alertEvents)
	e.afterDispense(ctx, consultationID, header)

	return header, dispensedItems, nil
}

// afterDispense reevalúa la consulta: si no quedan recetas abiertas,
// emite dispense-complete hacia la máquina de estados de la visita.
func (e *Engine) afterDispense(ctx context.Context, consultationID string, d Dispense) {
	remaining, err := e.repo.OpenPrescriptionsExist(ctx, consultationID)
	if err != nil {
		if e.log != nil {
			e.log.Error("post-dispense check failed", map[string]any{
				"consultation_id": consultationID, "err": err.Error(),
			})
		}
		return
	}

	visitID, doctorID, _, err := e.consultations.Lookup(ctx, consultationID)
	if err != nil {
		return
	}

	if !remaining && e.flow != nil {
		if _, err := e.flow.DispenseComplete(ctx, visitID); err != nil && e.log != nil {
			e.log.Warn("dispense-complete transition failed", map[string]any{
				"visit_id": visitID, "err": err.Error(),
			})
		}
	}

	e.notifier.Notify(ctx, doctorID, notify.TypeDispenseComplete,
		"Receta despachada",
		fmt.Sprintf("Despacho %s completado (total %s)", d.ID, d.Total.StringFixed(2)),
		map[string]any{
			"dispense_id":     d.ID,
			"prescription_id": d.PrescriptionID,
			"visit_id":        visitID,
		})
}

func (e *Engine) GetDispense(ctx context.Context, id string) (Dispense, []DispenseItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Dispense{}, nil, ErrNotFound
	}
	return e.repo.GetDispense(ctx, id)
}
