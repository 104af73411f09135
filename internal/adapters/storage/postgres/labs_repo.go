package postgres

import (
	"context"
	"database/sql"
	"strings"

	"vetclinic-api/internal/domain/labs"
)

type LabsRepo struct {
	db *sql.DB
}

func NewLabsRepo(db *sql.DB) *LabsRepo {
	return &LabsRepo{db: db}
}

const labColumns = `
	id, consultation_id, visit_id,
	kind, notes,
	status, results, results_by, results_at,
	requested_by,
	created_at, updated_at
`

func scanLabRequest(row interface{ Scan(...any) error }) (labs.LabRequest, error) {
	var lr labs.LabRequest
	var ra sql.NullTime
	if err := row.Scan(
		&lr.ID,
		&lr.ConsultationID,
		&lr.VisitID,
		&lr.Kind,
		&lr.Notes,
		&lr.Status,
		&lr.Results,
		&lr.ResultsBy,
		&ra,
		&lr.RequestedBy,
		&lr.CreatedAt,
		&lr.UpdatedAt,
	); err != nil {
		return labs.LabRequest{}, err
	}
	lr.ResultsAt = fromNullTime(ra)
	return lr, nil
}

func (r *LabsRepo) Create(ctx context.Context, lr labs.LabRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lab_requests (
			id, consultation_id, visit_id,
			kind, notes,
			status, results, results_by, results_at,
			requested_by,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		lr.ID,
		lr.ConsultationID,
		lr.VisitID,
		lr.Kind,
		lr.Notes,
		lr.Status,
		lr.Results,
		lr.ResultsBy,
		toNullTime(lr.ResultsAt),
		lr.RequestedBy,
		lr.CreatedAt,
		lr.UpdatedAt,
	)
	return err
}

func (r *LabsRepo) Update(ctx context.Context, lr labs.LabRequest) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lab_requests
		SET
			notes = $2,
			status = $3,
			results = $4,
			results_by = $5,
			results_at = $6,
			updated_at = $7
		WHERE id = $1
	`,
		lr.ID,
		lr.Notes,
		lr.Status,
		lr.Results,
		lr.ResultsBy,
		toNullTime(lr.ResultsAt),
		lr.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return labs.ErrNotFound
	}
	return nil
}

func (r *LabsRepo) GetByID(ctx context.Context, id string) (labs.LabRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return labs.LabRequest{}, labs.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+labColumns+` FROM lab_requests WHERE id = $1`, id)
	lr, err := scanLabRequest(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return labs.LabRequest{}, labs.ErrNotFound
		}
		return labs.LabRequest{}, err
	}
	return lr, nil
}

func (r *LabsRepo) ListByVisit(ctx context.Context, visitID string) ([]labs.LabRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+labColumns+`
		FROM lab_requests
		WHERE visit_id = $1
		ORDER BY created_at
	`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]labs.LabRequest, 0)
	for rows.Next() {
		lr, err := scanLabRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lr)
	}
	return out, rows.Err()
}
