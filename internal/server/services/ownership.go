package services

import (
	"context"

	"github.com/dmitrijs2005/wxcounter/internal/dbx"
	"github.com/dmitrijs2005/wxcounter/internal/server/models"
	"github.com/dmitrijs2005/wxcounter/internal/server/repositories/repomanager"
)

// OwnershipGuard is the only way services look up an existing counter.
// A counter that does not exist and one owned by someone else both come
// back as common.ErrorNotFound.
type OwnershipGuard struct {
	repomanager repomanager.RepositoryManager
}

func NewOwnershipGuard(m repomanager.RepositoryManager) *OwnershipGuard {
	return &OwnershipGuard{repomanager: m}
}

// Resolve returns the counter with id if it belongs to ownerID.
func (g *OwnershipGuard) Resolve(ctx context.Context, db dbx.DBTX, id, ownerID int64) (*models.Counter, error) {
	return g.repomanager.Counters(db).GetForOwner(ctx, id, ownerID)
}

// ResolveForUpdate is Resolve inside a transaction; the row stays locked
// until tx ends, so a read-modify-write on it cannot lose updates.
func (g *OwnershipGuard) ResolveForUpdate(ctx context.Context, tx dbx.DBTX, id, ownerID int64) (*models.Counter, error) {
	return g.repomanager.Counters(tx).GetForOwnerForUpdate(ctx, id, ownerID)
}
