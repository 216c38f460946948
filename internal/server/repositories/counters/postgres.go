package counters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wxcounter/internal/common"
	"github.com/dmitrijs2005/wxcounter/internal/dbx"
	"github.com/dmitrijs2005/wxcounter/internal/server/models"
)

const counterColumns = `id, user_id, name, value, step, input_step, sequence, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCounter(row scanner) (*models.Counter, error) {
	c := &models.Counter{}
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Value, &c.Step, &c.InputStep, &c.Sequence, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, counter *models.Counter) (*models.Counter, error) {
	query :=
		`INSERT INTO counters (user_id, name, value, step, input_step, sequence)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING ` + counterColumns

	c, err := scanCounter(r.db.QueryRowContext(ctx, query,
		counter.UserID, counter.Name, counter.Value, counter.Step, counter.InputStep, counter.Sequence))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}

func (r *PostgresRepository) GetForOwner(ctx context.Context, id, userID int64) (*models.Counter, error) {
	query := `SELECT ` + counterColumns + ` FROM counters
		 WHERE id = $1 AND user_id = $2`

	return r.getOne(ctx, query, id, userID)
}

func (r *PostgresRepository) GetForOwnerForUpdate(ctx context.Context, id, userID int64) (*models.Counter, error) {
	query := `SELECT ` + counterColumns + ` FROM counters
		 WHERE id = $1 AND user_id = $2
		 FOR UPDATE`

	return r.getOne(ctx, query, id, userID)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, id, userID int64) (*models.Counter, error) {
	c, err := scanCounter(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, userID int64) ([]*models.Counter, error) {
	query := `SELECT ` + counterColumns + ` FROM counters
		 WHERE user_id = $1
		 ORDER BY sequence DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Counter, 0)
	for rows.Next() {
		c, err := scanCounter(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) MaxSequence(ctx context.Context, userID int64) (int64, error) {
	query :=
		`SELECT COALESCE(MAX(sequence), 0) FROM counters
		 WHERE user_id = $1`

	var seq int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return seq, nil
}

func (r *PostgresRepository) MaxSequenceExcept(ctx context.Context, userID, id int64) (int64, error) {
	query :=
		`SELECT COALESCE(MAX(sequence), 0) FROM counters
		 WHERE user_id = $1 AND id <> $2`

	var seq int64
	if err := r.db.QueryRowContext(ctx, query, userID, id).Scan(&seq); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return seq, nil
}

func (r *PostgresRepository) UpdateSettings(ctx context.Context, id, userID int64, name string, step int64, inputStep bool) error {
	query :=
		`UPDATE counters SET name = $1, step = $2, input_step = $3, updated_at = now()
		 WHERE id = $4 AND user_id = $5`

	return r.execOne(ctx, query, name, step, inputStep, id, userID)
}

func (r *PostgresRepository) SetValue(ctx context.Context, id, userID, value int64) error {
	query :=
		`UPDATE counters SET value = $1, updated_at = now()
		 WHERE id = $2 AND user_id = $3`

	return r.execOne(ctx, query, value, id, userID)
}

func (r *PostgresRepository) SetSequence(ctx context.Context, id, userID, sequence int64) error {
	query :=
		`UPDATE counters SET sequence = $1, updated_at = now()
		 WHERE id = $2 AND user_id = $3`

	return r.execOne(ctx, query, sequence, id, userID)
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID int64) error {
	query :=
		`DELETE FROM counters
		 WHERE id = $1 AND user_id = $2`

	return r.execOne(ctx, query, id, userID)
}

// execOne runs a statement expected to touch exactly one owned row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
