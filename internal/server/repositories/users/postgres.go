package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wxcounter/internal/common"
	"github.com/dmitrijs2005/wxcounter/internal/dbx"
	"github.com/dmitrijs2005/wxcounter/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, openID, sessionKey string) (*models.User, error) {
	query :=
		`INSERT INTO users (openid, session_key)
		 VALUES ($1, $2)
		 ON CONFLICT (openid) DO UPDATE SET session_key = EXCLUDED.session_key, updated_at = now()
		 RETURNING id, openid, session_key, created_at, updated_at
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, openID, sessionKey).
		Scan(&user.ID, &user.OpenID, &user.SessionKey, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) Lock(ctx context.Context, userID int64) error {
	query :=
		`SELECT id FROM users
		 WHERE id = $1
		 FOR UPDATE
		 `

	var id int64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
