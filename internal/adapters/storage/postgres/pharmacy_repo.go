package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"vetclinic-api/internal/domain/pharmacy"

	"github.com/shopspring/decimal"
)

type PharmacyRepo struct {
	db *sql.DB
}

func NewPharmacyRepo(db *sql.DB) *PharmacyRepo {
	return &PharmacyRepo{db: db}
}

const medicationColumns = `
	id, name, presentation, unit,
	current_stock, min_stock,
	sale_price, cost_price,
	controlled, refrigerated, active,
	created_at, updated_at
`

func scanMedication(row interface{ Scan(...any) error }) (pharmacy.Medication, error) {
	var m pharmacy.Medication
	if err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Presentation,
		&m.Unit,
		&m.CurrentStock,
		&m.MinStock,
		&m.SalePrice,
		&m.CostPrice,
		&m.Controlled,
		&m.Refrigerated,
		&m.Active,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return pharmacy.Medication{}, err
	}
	return m, nil
}

func (r *PharmacyRepo) CreateMedication(ctx context.Context, m pharmacy.Medication) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medications (
			id, name, presentation, unit,
			current_stock, min_stock,
			sale_price, cost_price,
			controlled, refrigerated, active,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		m.ID, m.Name, m.Presentation, m.Unit,
		m.CurrentStock, m.MinStock,
		m.SalePrice, m.CostPrice,
		m.Controlled, m.Refrigerated, m.Active,
		m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *PharmacyRepo) UpdateMedication(ctx context.Context, m pharmacy.Medication) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE medications
		SET
			name = $2,
			presentation = $3,
			unit = $4,
			min_stock = $5,
			sale_price = $6,
			cost_price = $7,
			controlled = $8,
			refrigerated = $9,
			active = $10,
			updated_at = $11
		WHERE id = $1
	`,
		m.ID, m.Name, m.Presentation, m.Unit,
		m.MinStock, m.SalePrice, m.CostPrice,
		m.Controlled, m.Refrigerated, m.Active,
		m.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pharmacy.ErrNotFound
	}
	return nil
}

func (r *PharmacyRepo) GetMedication(ctx context.Context, id string) (pharmacy.Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return pharmacy.Medication{}, pharmacy.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+medicationColumns+` FROM medications WHERE id = $1`, id)
	m, err := scanMedication(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return pharmacy.Medication{}, pharmacy.ErrNotFound
		}
		return pharmacy.Medication{}, err
	}
	return m, nil
}

func (r *PharmacyRepo) ListMedications(ctx context.Context, f pharmacy.MedicationFilter) ([]pharmacy.Medication, error) {
	q := `SELECT ` + medicationColumns + ` FROM medications WHERE 1=1`
	args := []any{}
	if f.Name != "" {
		args = append(args, "%"+strings.ToLower(f.Name)+"%")
		q += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		q += fmt.Sprintf(" AND active = $%d", len(args))
	}
	if f.LowStockOnly {
		q += " AND current_stock <= min_stock"
	}
	q += " ORDER BY name"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pharmacy.Medication, 0)
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const movementColumns = `
	id, medication_id, direction, quantity,
	stock_before, stock_after,
	reason, dispense_id, actor_id, created_at
`

func scanMovement(row interface{ Scan(...any) error }) (pharmacy.StockMovement, error) {
	var mv pharmacy.StockMovement
	var dispenseID sql.NullString
	if err := row.Scan(
		&mv.ID,
		&mv.MedicationID,
		&mv.Direction,
		&mv.Quantity,
		&mv.StockBefore,
		&mv.StockAfter,
		&mv.Reason,
		&dispenseID,
		&mv.ActorID,
		&mv.CreatedAt,
	); err != nil {
		return pharmacy.StockMovement{}, err
	}
	if dispenseID.Valid {
		mv.DispenseID = &dispenseID.String
	}
	return mv, nil
}

func (r *PharmacyRepo) ListMovements(ctx context.Context, medicationID string, f pharmacy.MovementFilter) ([]pharmacy.StockMovement, error) {
	q := `SELECT ` + movementColumns + ` FROM stock_movements WHERE medication_id = $1`
	args := []any{medicationID}
	if f.Direction != nil {
		args = append(args, *f.Direction)
		q += fmt.Sprintf(" AND direction = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		q += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		q += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	q += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pharmacy.StockMovement, 0)
	for rows.Next() {
		mv, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mv)
	}
	return out, rows.Err()
}

const alertColumns = `
	id, medication_id, type, priority, message,
	stock_level, min_stock, status,
	created_at, resolved_at
`

func scanAlert(row interface{ Scan(...any) error }) (pharmacy.StockAlert, error) {
	var a pharmacy.StockAlert
	var ra sql.NullTime
	if err := row.Scan(
		&a.ID,
		&a.MedicationID,
		&a.Type,
		&a.Priority,
		&a.Message,
		&a.StockLevel,
		&a.MinStock,
		&a.Status,
		&a.CreatedAt,
		&ra,
	); err != nil {
		return pharmacy.StockAlert{}, err
	}
	a.ResolvedAt = fromNullTime(ra)
	return a, nil
}

func (r *PharmacyRepo) ListAlerts(ctx context.Context, f pharmacy.AlertFilter) ([]pharmacy.StockAlert, error) {
	q := `SELECT ` + alertColumns + ` FROM stock_alerts WHERE 1=1`
	args := []any{}
	if f.MedicationID != "" {
		args = append(args, f.MedicationID)
		q += fmt.Sprintf(" AND medication_id = $%d", len(args))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Type != nil {
		args = append(args, *f.Type)
		q += fmt.Sprintf(" AND type = $%d", len(args))
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pharmacy.StockAlert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PharmacyRepo) CreatePrescription(ctx context.Context, p pharmacy.Prescription, items []pharmacy.PrescriptionItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO prescriptions (
			id, consultation_id, doctor_id, status, notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, p.ID, p.ConsultationID, p.DoctorID, p.Status, p.Notes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}

	for _, it := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO prescription_items (
				id, prescription_id, medication_id, quantity, dosage, "position"
			) VALUES ($1,$2,$3,$4,$5,$6)
		`, it.ID, it.PrescriptionID, it.MedicationID, it.Quantity, it.Dosage, it.Position)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

const prescriptionColumns = `
	id, consultation_id, doctor_id, status, notes, created_at, updated_at
`

func scanPrescription(row interface{ Scan(...any) error }) (pharmacy.Prescription, error) {
	var p pharmacy.Prescription
	if err := row.Scan(
		&p.ID,
		&p.ConsultationID,
		&p.DoctorID,
		&p.Status,
		&p.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return pharmacy.Prescription{}, err
	}
	return p, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getPrescription(ctx context.Context, q queryer, id string, forUpdate bool) (pharmacy.Prescription, []pharmacy.PrescriptionItem, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	p, err := scanPrescription(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return pharmacy.Prescription{}, nil, pharmacy.ErrNotFound
		}
		return pharmacy.Prescription{}, nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, prescription_id, medication_id, quantity, dosage, "position"
		FROM prescription_items
		WHERE prescription_id = $1
		ORDER BY "position"
	`, id)
	if err != nil {
		return pharmacy.Prescription{}, nil, err
	}
	defer rows.Close()

	items := make([]pharmacy.PrescriptionItem, 0)
	for rows.Next() {
		var it pharmacy.PrescriptionItem
		if err := rows.Scan(&it.ID, &it.PrescriptionID, &it.MedicationID, &it.Quantity, &it.Dosage, &it.Position); err != nil {
			return pharmacy.Prescription{}, nil, err
		}
		items = append(items, it)
	}
	return p, items, rows.Err()
}

func (r *PharmacyRepo) GetPrescription(ctx context.Context, id string) (pharmacy.Prescription, []pharmacy.PrescriptionItem, error) {
	return getPrescription(ctx, r.db, id, false)
}

func (r *PharmacyRepo) ListPrescriptionsByConsultation(ctx context.Context, consultationID string) ([]pharmacy.Prescription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prescriptionColumns+`
		FROM prescriptions
		WHERE consultation_id = $1
		ORDER BY created_at
	`, consultationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pharmacy.Prescription, 0)
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func updatePrescriptionStatus(ctx context.Context, q queryer, id string, status pharmacy.PrescriptionStatus) error {
	res, err := q.ExecContext(ctx,
		`UPDATE prescriptions SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now())
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pharmacy.ErrNotFound
	}
	return nil
}

func (r *PharmacyRepo) UpdatePrescriptionStatus(ctx context.Context, id string, status pharmacy.PrescriptionStatus) error {
	return updatePrescriptionStatus(ctx, r.db, id, status)
}

func (r *PharmacyRepo) OpenPrescriptionsExist(ctx context.Context, consultationID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM prescriptions
			WHERE consultation_id = $1 AND status NOT IN ('DESPACHADA','CANCELADA')
		)
	`, consultationID).Scan(&exists)
	return exists, err
}

func (r *PharmacyRepo) GetDispense(ctx context.Context, id string) (pharmacy.Dispense, []pharmacy.DispenseItem, error) {
	var d pharmacy.Dispense
	err := r.db.QueryRowContext(ctx, `
		SELECT id, prescription_id, pharmacist_id, signature, notes, total, created_at
		FROM dispenses
		WHERE id = $1
	`, id).Scan(&d.ID, &d.PrescriptionID, &d.PharmacistID, &d.Signature, &d.Notes, &d.Total, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return pharmacy.Dispense{}, nil, pharmacy.ErrNotFound
		}
		return pharmacy.Dispense{}, nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, dispense_id, prescription_item_id, medication_id,
			quantity, unit_price, subtotal,
			substituted, substitution_reason, lot_number
		FROM dispense_items
		WHERE dispense_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return pharmacy.Dispense{}, nil, err
	}
	defer rows.Close()

	items := make([]pharmacy.DispenseItem, 0)
	for rows.Next() {
		var it pharmacy.DispenseItem
		if err := rows.Scan(
			&it.ID, &it.DispenseID, &it.PrescriptionItemID, &it.MedicationID,
			&it.Quantity, &it.UnitPrice, &it.Subtotal,
			&it.Substituted, &it.SubstitutionReason, &it.LotNumber,
		); err != nil {
			return pharmacy.Dispense{}, nil, err
		}
		items = append(items, it)
	}
	return d, items, rows.Err()
}

// InTx abre la transacción SQL y corre fn sobre ella. Los locks de fila
// (FOR UPDATE sobre medicamentos y recetas) serializan despachos
// concurrentes del mismo medicamento.
func (r *PharmacyRepo) InTx(ctx context.Context, fn func(tx pharmacy.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&pharmacyTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type pharmacyTx struct {
	tx *sql.Tx
}

func (t *pharmacyTx) MedicationForUpdate(ctx context.Context, id string) (pharmacy.Medication, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+medicationColumns+` FROM medications WHERE id = $1 FOR UPDATE`, id)
	m, err := scanMedication(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return pharmacy.Medication{}, pharmacy.ErrNotFound
		}
		return pharmacy.Medication{}, err
	}
	return m, nil
}

func (t *pharmacyTx) SetMedicationStock(ctx context.Context, id string, newStock int, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE medications SET current_stock = $2, updated_at = $3 WHERE id = $1`,
		id, newStock, at)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pharmacy.ErrNotFound
	}
	return nil
}

func (t *pharmacyTx) AppendMovement(ctx context.Context, mv pharmacy.StockMovement) error {
	var dispenseID sql.NullString
	if mv.DispenseID != nil {
		dispenseID = sql.NullString{String: *mv.DispenseID, Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO stock_movements (
			id, medication_id, direction, quantity,
			stock_before, stock_after,
			reason, dispense_id, actor_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		mv.ID, mv.MedicationID, mv.Direction, mv.Quantity,
		mv.StockBefore, mv.StockAfter,
		mv.Reason, dispenseID, mv.ActorID, mv.CreatedAt,
	)
	return err
}

func (t *pharmacyTx) ActiveAlert(ctx context.Context, medicationID string, typ pharmacy.AlertType) (pharmacy.StockAlert, bool, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+alertColumns+`
		FROM stock_alerts
		WHERE medication_id = $1 AND type = $2 AND status = 'ACTIVE'
	`, medicationID, typ)
	a, err := scanAlert(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return pharmacy.StockAlert{}, false, nil
		}
		return pharmacy.StockAlert{}, false, err
	}
	return a, true, nil
}

func (t *pharmacyTx) CreateAlert(ctx context.Context, a pharmacy.StockAlert) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO stock_alerts (
			id, medication_id, type, priority, message,
			stock_level, min_stock, status,
			created_at, resolved_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		a.ID, a.MedicationID, a.Type, a.Priority, a.Message,
		a.StockLevel, a.MinStock, a.Status,
		a.CreatedAt, toNullTime(a.ResolvedAt),
	)
	return err
}

func (t *pharmacyTx) ResolveAlert(ctx context.Context, alertID string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE stock_alerts SET status = 'RESOLVED', resolved_at = $2 WHERE id = $1`,
		alertID, at)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pharmacy.ErrNotFound
	}
	return nil
}

func (t *pharmacyTx) PrescriptionForUpdate(ctx context.Context, id string) (pharmacy.Prescription, []pharmacy.PrescriptionItem, error) {
	return getPrescription(ctx, t.tx, id, true)
}

func (t *pharmacyTx) UpdatePrescriptionStatus(ctx context.Context, id string, status pharmacy.PrescriptionStatus) error {
	return updatePrescriptionStatus(ctx, t.tx, id, status)
}

func (t *pharmacyTx) CreateDispense(ctx context.Context, d pharmacy.Dispense) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO dispenses (
			id, prescription_id, pharmacist_id, signature, notes, total, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, d.ID, d.PrescriptionID, d.PharmacistID, d.Signature, d.Notes, d.Total, d.CreatedAt)
	return err
}

func (t *pharmacyTx) SetDispenseTotal(ctx context.Context, id string, total decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE dispenses SET total = $2 WHERE id = $1`, id, total)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pharmacy.ErrNotFound
	}
	return nil
}

func (t *pharmacyTx) CreateDispenseItem(ctx context.Context, it pharmacy.DispenseItem) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO dispense_items (
			id, dispense_id, prescription_item_id, medication_id,
			quantity, unit_price, subtotal,
			substituted, substitution_reason, lot_number
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		it.ID, it.DispenseID, it.PrescriptionItemID, it.MedicationID,
		it.Quantity, it.UnitPrice, it.Subtotal,
		it.Substituted, it.SubstitutionReason, it.LotNumber,
	)
	return err
}
