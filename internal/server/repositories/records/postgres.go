package records

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/wxcounter/internal/dbx"
	"github.com/dmitrijs2005/wxcounter/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, record *models.CounterRecord) (*models.CounterRecord, error) {
	query :=
		`INSERT INTO counter_records (counter_id, step, begin_value, end_value)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`

	rec := *record
	err := r.db.QueryRowContext(ctx, query, record.CounterID, record.Step, record.Begin, record.End).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &rec, nil
}

func (r *PostgresRepository) ListByCounter(ctx context.Context, counterID int64) ([]*models.CounterRecord, error) {
	query :=
		`SELECT id, counter_id, step, begin_value, end_value, created_at, updated_at
		 FROM counter_records
		 WHERE counter_id = $1
		 ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query, counterID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.CounterRecord, 0)
	for rows.Next() {
		rec := &models.CounterRecord{}
		if err := rows.Scan(&rec.ID, &rec.CounterID, &rec.Step, &rec.Begin, &rec.End, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) DeleteByCounter(ctx context.Context, counterID int64) (int64, error) {
	query :=
		`DELETE FROM counter_records
		 WHERE counter_id = $1`

	res, err := r.db.ExecContext(ctx, query, counterID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}
