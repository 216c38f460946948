package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/wxcounter/internal/dbx"
	"github.com/dmitrijs2005/wxcounter/internal/server/repositories/counters"
	"github.com/dmitrijs2005/wxcounter/internal/server/repositories/records"
	"github.com/dmitrijs2005/wxcounter/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a *sql.DB or an open *sql.Tx,
// so services can run several repositories inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Counters(db dbx.DBTX) counters.Repository
	Records(db dbx.DBTX) records.Repository
}
