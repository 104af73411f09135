package postgres

import (
	"context"
	"database/sql"
	"strings"

	"vetclinic-api/internal/domain/consultations"
)

type ConsultationsRepo struct {
	db *sql.DB
}

func NewConsultationsRepo(db *sql.DB) *ConsultationsRepo {
	return &ConsultationsRepo{db: db}
}

const consultationColumns = `
	id, visit_id, doctor_id,
	subjective, objective, assessment, plan,
	diagnosis,
	status, completed_at,
	created_at, updated_at
`

func scanConsultation(row interface{ Scan(...any) error }) (consultations.Consultation, error) {
	var c consultations.Consultation
	var ca sql.NullTime
	if err := row.Scan(
		&c.ID,
		&c.VisitID,
		&c.DoctorID,
		&c.Subjective,
		&c.Objective,
		&c.Assessment,
		&c.Plan,
		&c.Diagnosis,
		&c.Status,
		&ca,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return consultations.Consultation{}, err
	}
	c.CompletedAt = fromNullTime(ca)
	return c, nil
}

func (r *ConsultationsRepo) Create(ctx context.Context, c consultations.Consultation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO consultations (
			id, visit_id, doctor_id,
			subjective, objective, assessment, plan,
			diagnosis,
			status, completed_at,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		c.ID,
		c.VisitID,
		c.DoctorID,
		c.Subjective,
		c.Objective,
		c.Assessment,
		c.Plan,
		c.Diagnosis,
		c.Status,
		toNullTime(c.CompletedAt),
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (r *ConsultationsRepo) Update(ctx context.Context, c consultations.Consultation) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE consultations
		SET
			subjective = $2,
			objective = $3,
			assessment = $4,
			plan = $5,
			diagnosis = $6,
			status = $7,
			completed_at = $8,
			updated_at = $9
		WHERE id = $1
	`,
		c.ID,
		c.Subjective,
		c.Objective,
		c.Assessment,
		c.Plan,
		c.Diagnosis,
		c.Status,
		toNullTime(c.CompletedAt),
		c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return consultations.ErrNotFound
	}
	return nil
}

func (r *ConsultationsRepo) GetByID(ctx context.Context, id string) (consultations.Consultation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return consultations.Consultation{}, consultations.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+consultationColumns+` FROM consultations WHERE id = $1`, id)
	c, err := scanConsultation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return consultations.Consultation{}, consultations.ErrNotFound
		}
		return consultations.Consultation{}, err
	}
	return c, nil
}

func (r *ConsultationsRepo) GetByVisit(ctx context.Context, visitID string) (consultations.Consultation, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+consultationColumns+` FROM consultations WHERE visit_id = $1`, visitID)
	c, err := scanConsultation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return consultations.Consultation{}, false, nil
		}
		return consultations.Consultation{}, false, err
	}
	return c, true, nil
}
