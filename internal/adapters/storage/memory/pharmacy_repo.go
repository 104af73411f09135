package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"vetclinic-api/internal/domain/pharmacy"

	"github.com/shopspring/decimal"
)

type pharmacyRepo struct {
	s *Store
}

func (r *pharmacyRepo) CreateMedication(ctx context.Context, m pharmacy.Medication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if m.ID == "" {
		return errors.New("medication id required")
	}
	if _, exists := r.s.medications[m.ID]; exists {
		return errors.New("medication already exists")
	}
	r.s.medications[m.ID] = m
	return nil
}

func (r *pharmacyRepo) UpdateMedication(ctx context.Context, m pharmacy.Medication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.medications[m.ID]; !exists {
		return pharmacy.ErrNotFound
	}
	r.s.medications[m.ID] = m
	return nil
}

func (r *pharmacyRepo) GetMedication(ctx context.Context, id string) (pharmacy.Medication, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.medications[id]
	if !ok {
		return pharmacy.Medication{}, pharmacy.ErrNotFound
	}
	return m, nil
}

func (r *pharmacyRepo) ListMedications(ctx context.Context, f pharmacy.MedicationFilter) ([]pharmacy.Medication, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]pharmacy.Medication, 0)
	for _, m := range r.s.medications {
		if f.Name != "" && !strings.Contains(strings.ToLower(m.Name), strings.ToLower(f.Name)) {
			continue
		}
		if f.Active != nil && m.Active != *f.Active {
			continue
		}
		if f.LowStockOnly && m.CurrentStock > m.MinStock {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *pharmacyRepo) ListMovements(ctx context.Context, medicationID string, f pharmacy.MovementFilter) ([]pharmacy.StockMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]pharmacy.StockMovement, 0)
	for _, mv := range r.s.movements {
		if mv.MedicationID != medicationID {
			continue
		}
		if f.Direction != nil && mv.Direction != *f.Direction {
			continue
		}
		if f.From != nil && mv.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && mv.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, mv)
	}
	// Más reciente primero, como lo muestra la bitácora.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *pharmacyRepo) ListAlerts(ctx context.Context, f pharmacy.AlertFilter) ([]pharmacy.StockAlert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]pharmacy.StockAlert, 0)
	for _, a := range r.s.alerts {
		if f.MedicationID != "" && a.MedicationID != f.MedicationID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Type != nil && a.Type != *f.Type {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *pharmacyRepo) CreatePrescription(ctx context.Context, p pharmacy.Prescription, items []pharmacy.PrescriptionItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p.ID == "" {
		return errors.New("prescription id required")
	}
	if _, exists := r.s.prescriptions[p.ID]; exists {
		return errors.New("prescription already exists")
	}
	r.s.prescriptions[p.ID] = p
	r.s.prescriptionItems[p.ID] = append([]pharmacy.PrescriptionItem(nil), items...)
	return nil
}

func (r *pharmacyRepo) GetPrescription(ctx context.Context, id string) (pharmacy.Prescription, []pharmacy.PrescriptionItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return getPrescriptionLocked(r.s, id)
}

func (r *pharmacyRepo) ListPrescriptionsByConsultation(ctx context.Context, consultationID string) ([]pharmacy.Prescription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]pharmacy.Prescription, 0)
	for _, p := range r.s.prescriptions {
		if p.ConsultationID == consultationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *pharmacyRepo) UpdatePrescriptionStatus(ctx context.Context, id string, status pharmacy.PrescriptionStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return updatePrescriptionStatusLocked(r.s, id, status)
}

func (r *pharmacyRepo) OpenPrescriptionsExist(ctx context.Context, consultationID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.prescriptions {
		if p.ConsultationID == consultationID && !p.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (r *pharmacyRepo) GetDispense(ctx context.Context, id string) (pharmacy.Dispense, []pharmacy.DispenseItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.dispenses[id]
	if !ok {
		return pharmacy.Dispense{}, nil, pharmacy.ErrNotFound
	}
	items := append([]pharmacy.DispenseItem(nil), r.s.dispenseItems[id]...)
	return d, items, nil
}

// InTx toma el lock por toda la unidad de trabajo y guarda una copia del
// estado de farmacia antes de correr fn. Si fn falla se restaura la copia:
// rollback de verdad, igual que el adaptador postgres.
func (r *pharmacyRepo) InTx(ctx context.Context, fn func(tx pharmacy.Tx) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	snap := snapshotPharmacy(r.s)
	if err := fn(&pharmacyTx{s: r.s}); err != nil {
		restorePharmacy(r.s, snap)
		return err
	}
	return nil
}

type pharmacySnapshot struct {
	medications       map[string]pharmacy.Medication
	movements         []pharmacy.StockMovement
	alerts            map[string]pharmacy.StockAlert
	prescriptions     map[string]pharmacy.Prescription
	prescriptionItems map[string][]pharmacy.PrescriptionItem
	dispenses         map[string]pharmacy.Dispense
	dispenseItems     map[string][]pharmacy.DispenseItem
}

func snapshotPharmacy(s *Store) pharmacySnapshot {
	snap := pharmacySnapshot{
		medications:       make(map[string]pharmacy.Medication, len(s.medications)),
		movements:         append([]pharmacy.StockMovement(nil), s.movements...),
		alerts:            make(map[string]pharmacy.StockAlert, len(s.alerts)),
		prescriptions:     make(map[string]pharmacy.Prescription, len(s.prescriptions)),
		prescriptionItems: make(map[string][]pharmacy.PrescriptionItem, len(s.prescriptionItems)),
		dispenses:         make(map[string]pharmacy.Dispense, len(s.dispenses)),
		dispenseItems:     make(map[string][]pharmacy.DispenseItem, len(s.dispenseItems)),
	}
	for k, v := range s.medications {
		snap.medications[k] = v
	}
	for k, v := range s.alerts {
		snap.alerts[k] = v
	}
	for k, v := range s.prescriptions {
		snap.prescriptions[k] = v
	}
	for k, v := range s.prescriptionItems {
		snap.prescriptionItems[k] = append([]pharmacy.PrescriptionItem(nil), v...)
	}
	for k, v := range s.dispenses {
		snap.dispenses[k] = v
	}
	for k, v := range s.dispenseItems {
		snap.dispenseItems[k] = append([]pharmacy.DispenseItem(nil), v...)
	}
	return snap
}

func restorePharmacy(s *Store, snap pharmacySnapshot) {
	s.medications = snap.medications
	s.movements = snap.movements
	s.alerts = snap.alerts
	s.prescriptions = snap.prescriptions
	s.prescriptionItems = snap.prescriptionItems
	s.dispenses = snap.dispenses
	s.dispenseItems = snap.dispenseItems
}

// pharmacyTx opera directo sobre el store; el mutex ya lo tiene InTx.
type pharmacyTx struct {
	s *Store
}

func (t *pharmacyTx) MedicationForUpdate(ctx context.Context, id string) (pharmacy.Medication, error) {
	m, ok := t.s.medications[id]
	if !ok {
		return pharmacy.Medication{}, pharmacy.ErrNotFound
	}
	return m, nil
}

func (t *pharmacyTx) SetMedicationStock(ctx context.Context, id string, newStock int, at time.Time) error {
	m, ok := t.s.medications[id]
	if !ok {
		return pharmacy.ErrNotFound
	}
	m.CurrentStock = newStock
	m.UpdatedAt = at
	t.s.medications[id] = m
	return nil
}

func (t *pharmacyTx) AppendMovement(ctx context.Context, mv pharmacy.StockMovement) error {
	t.s.movements = append(t.s.movements, mv)
	return nil
}

func (t *pharmacyTx) ActiveAlert(ctx context.Context, medicationID string, typ pharmacy.AlertType) (pharmacy.StockAlert, bool, error) {
	for _, a := range t.s.alerts {
		if a.MedicationID == medicationID && a.Type == typ && a.Status == pharmacy.AlertActive {
			return a, true, nil
		}
	}
	return pharmacy.StockAlert{}, false, nil
}

func (t *pharmacyTx) CreateAlert(ctx context.Context, a pharmacy.StockAlert) error {
	t.s.alerts[a.ID] = a
	return nil
}

func (t *pharmacyTx) ResolveAlert(ctx context.Context, alertID string, at time.Time) error {
	a, ok := t.s.alerts[alertID]
	if !ok {
		return pharmacy.ErrNotFound
	}
	a.Status = pharmacy.AlertResolved
	a.ResolvedAt = &at
	t.s.alerts[alertID] = a
	return nil
}

func (t *pharmacyTx) PrescriptionForUpdate(ctx context.Context, id string) (pharmacy.Prescription, []pharmacy.PrescriptionItem, error) {
	return getPrescriptionLocked(t.s, id)
}

func (t *pharmacyTx) UpdatePrescriptionStatus(ctx context.Context, id string, status pharmacy.PrescriptionStatus) error {
	return updatePrescriptionStatusLocked(t.s, id, status)
}

func (t *pharmacyTx) CreateDispense(ctx context.Context, d pharmacy.Dispense) error {
	if _, exists := t.s.dispenses[d.ID]; exists {
		return errors.New("dispense already exists")
	}
	t.s.dispenses[d.ID] = d
	return nil
}

func (t *pharmacyTx) SetDispenseTotal(ctx context.Context, id string, total decimal.Decimal) error {
	d, ok := t.s.dispenses[id]
	if !ok {
		return pharmacy.ErrNotFound
	}
	d.Total = total
	t.s.dispenses[id] = d
	return nil
}

func (t *pharmacyTx) CreateDispenseItem(ctx context.Context, it pharmacy.DispenseItem) error {
	t.s.dispenseItems[it.DispenseID] = append(t.s.dispenseItems[it.DispenseID], it)
	return nil
}

func getPrescriptionLocked(s *Store, id string) (pharmacy.Prescription, []pharmacy.PrescriptionItem, error) {
	p, ok := s.prescriptions[id]
	if !ok {
		return pharmacy.Prescription{}, nil, pharmacy.ErrNotFound
	}
	items := append([]pharmacy.PrescriptionItem(nil), s.prescriptionItems[id]...)
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return p, items, nil
}

func updatePrescriptionStatusLocked(s *Store, id string, status pharmacy.PrescriptionStatus) error {
	p, ok := s.prescriptions[id]
	if !ok {
		return pharmacy.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	s.prescriptions[id] = p
	return nil
}
