package counters

import (
	"context"

	"github.com/dmitrijs2005/wxcounter/internal/server/models"
)

// Repository persists counters. Every lookup and write is filtered by both
// the counter id and the owner id; a miss is reported as common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, counter *models.Counter) (*models.Counter, error)
	GetForOwner(ctx context.Context, id, userID int64) (*models.Counter, error)
	// GetForOwnerForUpdate is GetForOwner plus a row lock held until the
	// surrounding transaction ends.
	GetForOwnerForUpdate(ctx context.Context, id, userID int64) (*models.Counter, error)
	ListByOwner(ctx context.Context, userID int64) ([]*models.Counter, error)
	// MaxSequence returns the highest sequence among the owner's counters, 0 if none.
	MaxSequence(ctx context.Context, userID int64) (int64, error)
	// MaxSequenceExcept is MaxSequence ignoring the counter with the given id.
	MaxSequenceExcept(ctx context.Context, userID, id int64) (int64, error)
	UpdateSettings(ctx context.Context, id, userID int64, name string, step int64, inputStep bool) error
	SetValue(ctx context.Context, id, userID, value int64) error
	SetSequence(ctx context.Context, id, userID, sequence int64) error
	Delete(ctx context.Context, id, userID int64) error
}
