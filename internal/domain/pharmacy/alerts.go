package pharmacy

import (
	"context"
	"fmt"
	"time"

	"vetclinic-api/internal/platform/logger"
	"vetclinic-api/internal/ports/notify"

	"github.com/google/uuid"
)

// AlertMonitor evalúa el stock después de cada movimiento y mantiene el
// invariante de a lo sumo una alerta ACTIVE por (medicamento, tipo).
// La evaluación corre dentro de la misma transacción que disparó el
// cambio de stock; las notificaciones salen recién después del commit.
type AlertMonitor struct {
	notifier notify.Notifier
	log      logger.Logger
	notifyTo string // destinatario de las alertas (mesa de farmacia)
	now      func() time.Time
}

func NewAlertMonitor(notifier notify.Notifier, log logger.Logger, notifyTo string) *AlertMonitor {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if notifyTo == "" {
		notifyTo = "pharmacy"
	}
	return &AlertMonitor{
		notifier: notifier,
		log:      log,
		notifyTo: notifyTo,
		now:      time.Now,
	}
}

// AlertEvent es lo que pasó durante una evaluación, para publicar
// después del commit.
type AlertEvent struct {
	Alert    StockAlert
	Resolved bool
}

// EvaluateTx compara stock actual contra mínimo dentro de la transacción
// del llamador. Dedupe y creación ocurren bajo el mismo lock de fila del
// medicamento, así dos despachos concurrentes no duplican alertas.
func (m *AlertMonitor) EvaluateTx(ctx context.Context, tx Tx, medicationID string) ([]AlertEvent, error) {
	med, err := tx.MedicationForUpdate(ctx, medicationID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	var events []AlertEvent

	resolve := func(typ AlertType) error {
		a, exists, err := tx.ActiveAlert(ctx, med.ID, typ)
		if err != nil || !exists {
			return err
		}
		if err := tx.ResolveAlert(ctx, a.ID, now); err != nil {
			return err
		}
		a.Status = AlertResolved
		a.ResolvedAt = &now
		events = append(events, AlertEvent{Alert: a, Resolved: true})
		return nil
	}

	// Stock recuperado por encima del mínimo: resolver todo lo activo.
	if med.CurrentStock > med.MinStock {
		if err := resolve(AlertLowStock); err != nil {
			return nil, err
		}
		if err := resolve(AlertOutOfStock); err != nil {
			return nil, err
		}
		return events, nil
	}

	// Hay unidades otra vez: el quiebre total ya no aplica aunque el
	// nivel siga bajo.
	if med.CurrentStock > 0 {
		if err := resolve(AlertOutOfStock); err != nil {
			return nil, err
		}
	}

	typ := AlertLowStock
	priority := AlertPriorityMedium
	msg := fmt.Sprintf("Stock bajo de %s: quedan %d (mínimo %d)", med.Name, med.CurrentStock, med.MinStock)
	if med.CurrentStock == 0 {
		typ = AlertOutOfStock
		priority = AlertPriorityHigh
		msg = fmt.Sprintf("Sin stock de %s", med.Name)
	}

	if _, exists, err := tx.ActiveAlert(ctx, med.ID, typ); err != nil {
		return nil, err
	} else if !exists {
		a := StockAlert{
			ID:           uuid.NewString(),
			MedicationID: med.ID,
			Type:         typ,
			Priority:     priority,
			Message:      msg,
			StockLevel:   med.CurrentStock,
			MinStock:     med.MinStock,
			Status:       AlertActive,
			CreatedAt:    now,
		}
		if err := tx.CreateAlert(ctx, a); err != nil {
			return nil, err
		}
		events = append(events, AlertEvent{Alert: a})
	}

	return events, nil
}

// Publish encola las notificaciones de los eventos ya confirmados.
// Fire-and-forget: un fallo de notificación jamás afecta la operación.
func (m *AlertMonitor) Publish(ctx context.Context, events []AlertEvent) {
	for _, ev := range events {
		typ := notify.TypeStockAlert
		title := "Alerta de stock"
		if ev.Resolved {
			typ = notify.TypeStockRecovered
			title = "Stock recuperado"
		}
		m.notifier.Notify(ctx, m.notifyTo, typ, title, ev.Alert.Message, map[string]any{
			"medication_id": ev.Alert.MedicationID,
			"alert_id":      ev.Alert.ID,
			"alert_type":    string(ev.Alert.Type),
			"stock_level":   ev.Alert.StockLevel,
		})
		if m.log != nil {
			m.log.Info("stock alert", map[string]any{
				"medication_id": ev.Alert.MedicationID,
				"type":          string(ev.Alert.Type),
				"resolved":      ev.Resolved,
				"stock":         ev.Alert.StockLevel,
			})
		}
	}
}
