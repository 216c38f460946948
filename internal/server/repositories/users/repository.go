package users

import (
	"context"

	"github.com/dmitrijs2005/wxcounter/internal/server/models"
)

type Repository interface {
	// Upsert inserts a user for openID or refreshes the session key of the
	// existing one, returning the stored row.
	Upsert(ctx context.Context, openID, sessionKey string) (*models.User, error)
	// Lock takes a row lock on the user until the surrounding tx ends.
	Lock(ctx context.Context, userID int64) error
}
