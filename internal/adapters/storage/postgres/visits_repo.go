package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"vetclinic-api/internal/domain/pets"
	"vetclinic-api/internal/domain/visits"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type VisitsRepo struct {
	db *sql.DB
}

func NewVisitsRepo(db *sql.DB) *VisitsRepo {
	return &VisitsRepo{db: db}
}

const visitColumns = `
	id, pet_id,
	status, reason,
	priority, weight_kg, vitals,
	arrived_at, discharged_at,
	payment_total, payment_method,
	created_at, updated_at
`

func scanVisit(row interface{ Scan(...any) error }) (visits.Visit, error) {
	var v visits.Visit
	var da sql.NullTime
	var total decimal.NullDecimal
	if err := row.Scan(
		&v.ID,
		&v.PetID,
		&v.Status,
		&v.Reason,
		&v.Priority,
		&v.WeightKg,
		&v.Vitals,
		&v.ArrivedAt,
		&da,
		&total,
		&v.PaymentMethod,
		&v.CreatedAt,
		&v.UpdatedAt,
	); err != nil {
		return visits.Visit{}, err
	}
	v.DischargedAt = fromNullTime(da)
	if total.Valid {
		v.PaymentTotal = total.Decimal
	}
	return v, nil
}

// Create inserta la visita y mueve el estado de la mascota en una sola
// transacción. El índice único parcial sobre visitas abiertas convierte el
// doble check-in concurrente en violación 23505.
func (r *VisitsRepo) Create(ctx context.Context, v visits.Visit, estado pets.Estado) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO visits (
			id, pet_id,
			status, reason,
			priority, weight_kg, vitals,
			arrived_at, discharged_at,
			payment_total, payment_method,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		v.ID,
		v.PetID,
		v.Status,
		v.Reason,
		v.Priority,
		v.WeightKg,
		v.Vitals,
		v.ArrivedAt,
		toNullTime(v.DischargedAt),
		v.PaymentTotal,
		v.PaymentMethod,
		v.CreatedAt,
		v.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return visits.ErrVisitAlreadyOpen
		}
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE pets SET estado = $2, updated_at = $3 WHERE id = $1`,
		v.PetID, estado, v.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pets.ErrNotFound
	}

	return tx.Commit()
}

func (r *VisitsRepo) GetByID(ctx context.Context, id string) (visits.Visit, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return visits.Visit{}, visits.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, id)
	v, err := scanVisit(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return visits.Visit{}, visits.ErrNotFound
		}
		return visits.Visit{}, err
	}
	return v, nil
}

func (r *VisitsRepo) ListByPet(ctx context.Context, petID string) ([]visits.Visit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE pet_id = $1
		ORDER BY arrived_at DESC
	`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]visits.Visit, 0)
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *VisitsRepo) OpenByPet(ctx context.Context, petID string) (visits.Visit, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE pet_id = $1 AND status <> 'DISCHARGED'
	`, petID)
	v, err := scanVisit(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return visits.Visit{}, false, nil
		}
		return visits.Visit{}, false, err
	}
	return v, true, nil
}

// Transition carga la visita con FOR UPDATE, aplica fn y persiste visita +
// estado de mascota juntos. Dos eventos concurrentes sobre la misma visita
// serializan en el lock de fila; el segundo ve el estado ya movido.
func (r *VisitsRepo) Transition(ctx context.Context, visitID string, fn func(v *visits.Visit) (pets.Estado, error)) (visits.Visit, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return visits.Visit{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE id = $1 FOR UPDATE`, visitID)
	v, err := scanVisit(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return visits.Visit{}, visits.ErrNotFound
		}
		return visits.Visit{}, err
	}

	estado, err := fn(&v)
	if err != nil {
		return visits.Visit{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE visits
		SET
			status = $2,
			priority = $3,
			weight_kg = $4,
			vitals = $5,
			discharged_at = $6,
			payment_total = $7,
			payment_method = $8,
			updated_at = $9
		WHERE id = $1
	`,
		v.ID,
		v.Status,
		v.Priority,
		v.WeightKg,
		v.Vitals,
		toNullTime(v.DischargedAt),
		v.PaymentTotal,
		v.PaymentMethod,
		v.UpdatedAt,
	)
	if err != nil {
		return visits.Visit{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE pets SET estado = $2, updated_at = $3 WHERE id = $1`,
		v.PetID, estado, v.UpdatedAt)
	if err != nil {
		return visits.Visit{}, err
	}

	if err := tx.Commit(); err != nil {
		return visits.Visit{}, err
	}
	return v, nil
}
