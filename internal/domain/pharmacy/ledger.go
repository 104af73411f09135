package pharmacy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger es el dueño del stock de medicamentos y de su bitácora de
// movimientos. AdjustStock es la única vía sancionada para mutar
// CurrentStock; cada cambio deja exactamente una fila de StockMovement
// en la misma transacción.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

type CreateMedicationInput struct {
	Name         string
	Presentation string
	Unit         string
	InitialStock int
	MinStock     int
	SalePrice    decimal.Decimal
	CostPrice    decimal.Decimal
	Controlled   bool
	Refrigerated bool
}

func (l *Ledger) CreateMedication(ctx context.Context, in CreateMedicationInput, actorID string) (Medication, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Medication{}, ErrInvalidInput
	}
	if in.InitialStock < 0 || in.MinStock < 0 {
		return Medication{}, ErrInvalidInput
	}
	if in.SalePrice.IsNegative() || in.CostPrice.IsNegative() {
		return Medication{}, ErrInvalidInput
	}

	now := l.now()
	m := Medication{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Presentation: strings.TrimSpace(in.Presentation),
		Unit:         strings.TrimSpace(in.Unit),
		CurrentStock: 0,
		MinStock:     in.MinStock,
		SalePrice:    in.SalePrice,
		CostPrice:    in.CostPrice,
		Controlled:   in.Controlled,
		Refrigerated: in.Refrigerated,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := l.repo.CreateMedication(ctx, m); err != nil {
		return Medication{}, err
	}

	// El stock inicial entra como movimiento IN para que la bitácora
	// arranque consistente desde la primera unidad.
	if in.InitialStock > 0 {
		adj, err := l.AdjustStock(ctx, m.ID, in.InitialStock, "stock inicial", actorID)
		if err != nil {
			return Medication{}, err
		}
		m.CurrentStock = adj.NewStock
	}
	return m, nil
}

func (l *Ledger) GetMedication(ctx context.Context, id string) (Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Medication{}, ErrNotFound
	}
	return l.repo.GetMedication(ctx, id)
}

func (l *Ledger) ListMedications(ctx context.Context, f MedicationFilter) ([]Medication, error) {
	return l.repo.ListMedications(ctx, f)
}

func (l *Ledger) Movements(ctx context.Context, medicationID string, f MovementFilter) ([]StockMovement, error) {
	return l.repo.ListMovements(ctx, medicationID, f)
}

func (l *Ledger) Alerts(ctx context.Context, f AlertFilter) ([]StockAlert, error) {
	return l.repo.ListAlerts(ctx, f)
}

// StockAdjustment es el resultado de un ajuste aplicado.
type StockAdjustment struct {
	MedicationID  string
	PreviousStock int
	NewStock      int
	Movement      StockMovement
}

// AdjustStock aplica un ajuste en su propia transacción (ajuste manual,
// recepción de compra). Falla con ErrInsufficientStock si el resultado
// sería negativo; en ese caso nada queda persistido.
func (l *Ledger) AdjustStock(ctx context.Context, medicationID string, delta int, reason, actorID string) (StockAdjustment, error) {
	var out StockAdjustment
	err := l.repo.InTx(ctx, func(tx Tx) error {
		adj, err := l.AdjustStockTx(ctx, tx, medicationID, delta, reason, actorID, nil)
		if err != nil {
			return err
		}
		out = adj
		return nil
	})
	if err != nil {
		return StockAdjustment{}, err
	}
	return out, nil
}

// AdjustStockEvaluated es AdjustStock más la evaluación de alertas en la
// misma transacción: una merma que cruza el mínimo crea la alerta y un
// reingreso resuelve las activas, sin ventana entre ajuste y evaluación.
// Las notificaciones salen después del commit.
func (l *Ledger) AdjustStockEvaluated(ctx context.Context, monitor *AlertMonitor, medicationID string, delta int, reason, actorID string) (StockAdjustment, error) {
	var (
		out    StockAdjustment
		events []AlertEvent
	)
	err := l.repo.InTx(ctx, func(tx Tx) error {
		adj, err := l.AdjustStockTx(ctx, tx, medicationID, delta, reason, actorID, nil)
		if err != nil {
			return err
		}
		evs, err := monitor.EvaluateTx(ctx, tx, medicationID)
		if err != nil {
			return err
		}
		out, events = adj, evs
		return nil
	})
	if err != nil {
		return StockAdjustment{}, err
	}
	monitor.Publish(ctx, events)
	return out, nil
}

// AdjustStockTx es la variante para correr dentro de una transacción ajena
// (el motor de despacho la usa para que stock, auditoría y despacho
// confirmen o reviertan juntos). Relee el stock con lock de fila: el valor
// visto fuera de la transacción no cuenta.
func (l *Ledger) AdjustStockTx(ctx context.Context, tx Tx, medicationID string, delta int, reason, actorID string, dispenseID *string) (StockAdjustment, error) {
	if delta == 0 {
		return StockAdjustment{}, ErrInvalidInput
	}

	m, err := tx.MedicationForUpdate(ctx, medicationID)
	if err != nil {
		return StockAdjustment{}, err
	}

	newStock := m.CurrentStock + delta
	if newStock < 0 {
		return StockAdjustment{}, fmt.Errorf("%w: %s has %d, requested %d",
			ErrInsufficientStock, m.Name, m.CurrentStock, -delta)
	}

	now := l.now()
	if err := tx.SetMedicationStock(ctx, m.ID, newStock, now); err != nil {
		return StockAdjustment{}, err
	}

	dir := MovementIn
	qty := delta
	if delta < 0 {
		dir = MovementOut
		qty = -delta
	}
	mv := StockMovement{
		ID:           uuid.NewString(),
		MedicationID: m.ID,
		Direction:    dir,
		Quantity:     qty,
		StockBefore:  m.CurrentStock,
		StockAfter:   newStock,
		Reason:       strings.TrimSpace(reason),
		DispenseID:   dispenseID,
		ActorID:      actorID,
		CreatedAt:    now,
	}
	if err := tx.AppendMovement(ctx, mv); err != nil {
		return StockAdjustment{}, err
	}

	return StockAdjustment{
		MedicationID:  m.ID,
		PreviousStock: m.CurrentStock,
		NewStock:      newStock,
		Movement:      mv,
	}, nil
}

// CheckAvailability es una lectura consultiva: no reserva stock y puede
// quedar desactualizada frente a despachos concurrentes. El chequeo
// vinculante vive en AdjustStockTx.
func (l *Ledger) CheckAvailability(ctx context.Context, medicationID string, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, ErrInvalidInput
	}
	m, err := l.repo.GetMedication(ctx, medicationID)
	if err != nil {
		return false, err
	}
	return m.CurrentStock >= quantity, nil
}
