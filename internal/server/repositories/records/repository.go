package records

import (
	"context"

	"github.com/dmitrijs2005/wxcounter/internal/server/models"
)

// Repository persists the append-only history of a counter. Callers are
// expected to have checked ownership of the counter beforehand.
type Repository interface {
	Create(ctx context.Context, record *models.CounterRecord) (*models.CounterRecord, error)
	// ListByCounter returns records newest first.
	ListByCounter(ctx context.Context, counterID int64) ([]*models.CounterRecord, error)
	DeleteByCounter(ctx context.Context, counterID int64) (int64, error)
}
