// Package services contains server-side business logic. CounterService owns
// the counter ledger: every write that touches a counter and its history runs
// in a single transaction, and every lookup goes through the OwnershipGuard.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/wxcounter/internal/common"
	"github.com/dmitrijs2005/wxcounter/internal/dbx"
	"github.com/dmitrijs2005/wxcounter/internal/server/models"
	"github.com/dmitrijs2005/wxcounter/internal/server/repositories/repomanager"
)

// NewCounter is the input of CounterService.Create.
type NewCounter struct {
	Name      string
	Value     int64
	Step      int64
	InputStep bool
}

// CounterSettings is the part of a counter that Reconfigure may change.
type CounterSettings struct {
	Name      string
	Step      int64
	InputStep bool
}

type CounterService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	guard       *OwnershipGuard
	observer    LedgerObserver
}

type CounterOption func(*CounterService)

// WithObserver reports every operation to o.
func WithObserver(o LedgerObserver) CounterOption {
	return func(s *CounterService) {
		if o != nil {
			s.observer = o
		}
	}
}

func NewCounterService(db *sql.DB, m repomanager.RepositoryManager, opts ...CounterOption) *CounterService {
	s := &CounterService{
		db:          db,
		repomanager: m,
		guard:       NewOwnershipGuard(m),
		observer:    nopObserver{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *CounterService) observe(op string, start time.Time, err error) {
	s.observer.ObserveLedgerOp(op, err, time.Since(start))
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is empty", common.ErrorValidation)
	}
	return nil
}

// Create inserts a counter at the top of the owner's list. The owner's user
// row is locked so concurrent creates see each other's sequence.
func (s *CounterService) Create(ctx context.Context, ownerID int64, in NewCounter) (c *models.Counter, err error) {
	defer func(start time.Time) { s.observe(OpCreate, start, err) }(time.Now())

	if err := validateName(in.Name); err != nil {
		return nil, err
	}

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Counter, error) {
		if err := s.repomanager.Users(tx).Lock(ctx, ownerID); err != nil {
			return nil, err
		}

		repo := s.repomanager.Counters(tx)
		maxSeq, err := repo.MaxSequence(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		return repo.Create(ctx, &models.Counter{
			UserID:    ownerID,
			Name:      in.Name,
			Value:     in.Value,
			Step:      in.Step,
			InputStep: in.InputStep,
			Sequence:  maxSeq + 1,
		})
	})
}

// List returns the owner's counters, highest sequence first.
func (s *CounterService) List(ctx context.Context, ownerID int64) (list []*models.Counter, err error) {
	defer func(start time.Time) { s.observe(OpList, start, err) }(time.Now())

	return s.repomanager.Counters(s.db).ListByOwner(ctx, ownerID)
}

func (s *CounterService) Get(ctx context.Context, id, ownerID int64) (c *models.Counter, err error) {
	defer func(start time.Time) { s.observe(OpGet, start, err) }(time.Now())

	return s.guard.Resolve(ctx, s.db, id, ownerID)
}

// Reconfigure changes name, step and input_step only.
func (s *CounterService) Reconfigure(ctx context.Context, id, ownerID int64, in CounterSettings) (err error) {
	defer func(start time.Time) { s.observe(OpReconfigure, start, err) }(time.Now())

	if err := validateName(in.Name); err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.guard.ResolveForUpdate(ctx, tx, id, ownerID); err != nil {
			return err
		}
		return s.repomanager.Counters(tx).UpdateSettings(ctx, id, ownerID, in.Name, in.Step, in.InputStep)
	})
}

// Delete removes the counter together with its history.
func (s *CounterService) Delete(ctx context.Context, id, ownerID int64) (err error) {
	defer func(start time.Time) { s.observe(OpDelete, start, err) }(time.Now())

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.guard.ResolveForUpdate(ctx, tx, id, ownerID); err != nil {
			return err
		}
		if _, err := s.repomanager.Records(tx).DeleteByCounter(ctx, id); err != nil {
			return fmt.Errorf("error deleting records: %w", err)
		}
		if err := s.repomanager.Counters(tx).Delete(ctx, id, ownerID); err != nil {
			return fmt.Errorf("error deleting counter: %w", err)
		}
		return nil
	})
}

// ApplyDelta appends a record {begin: value, end: value+step} and moves the
// counter to the new value. The counter row is locked for the whole
// read-modify-write, so concurrent deltas on one counter serialize.
func (s *CounterService) ApplyDelta(ctx context.Context, id, ownerID, step int64) (rec *models.CounterRecord, err error) {
	defer func(start time.Time) { s.observe(OpApplyDelta, start, err) }(time.Now())

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.CounterRecord, error) {
		c, err := s.guard.ResolveForUpdate(ctx, tx, id, ownerID)
		if err != nil {
			return nil, err
		}

		next := c.Value + step
		rec, err := s.repomanager.Records(tx).Create(ctx, &models.CounterRecord{
			CounterID: c.ID,
			Step:      step,
			Begin:     c.Value,
			End:       next,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating record: %w", err)
		}

		if err := s.repomanager.Counters(tx).SetValue(ctx, c.ID, ownerID, next); err != nil {
			return nil, fmt.Errorf("error updating value: %w", err)
		}
		return rec, nil
	})
}

// Reorder brings the counter to the top of the owner's list. Only the target
// row changes; if it already holds the strictly largest sequence it is left
// as is.
func (s *CounterService) Reorder(ctx context.Context, id, ownerID int64) (seq int64, err error) {
	defer func(start time.Time) { s.observe(OpReorder, start, err) }(time.Now())

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (int64, error) {
		if err := s.repomanager.Users(tx).Lock(ctx, ownerID); err != nil {
			return 0, err
		}

		c, err := s.guard.ResolveForUpdate(ctx, tx, id, ownerID)
		if err != nil {
			return 0, err
		}

		repo := s.repomanager.Counters(tx)
		others, err := repo.MaxSequenceExcept(ctx, ownerID, c.ID)
		if err != nil {
			return 0, err
		}
		if c.Sequence > others {
			return c.Sequence, nil
		}

		next := others + 1
		if err := repo.SetSequence(ctx, c.ID, ownerID, next); err != nil {
			return 0, err
		}
		return next, nil
	})
}

// ListRecords returns the counter's history, newest first. The ownership
// check and the read share one snapshot, so a concurrent Delete yields either
// the full history or NotFound.
func (s *CounterService) ListRecords(ctx context.Context, id, ownerID int64) (list []*models.CounterRecord, err error) {
	defer func(start time.Time) { s.observe(OpListRecords, start, err) }(time.Now())

	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

	return dbx.WithTxResult(ctx, s.db, opts, func(ctx context.Context, tx dbx.DBTX) ([]*models.CounterRecord, error) {
		c, err := s.guard.Resolve(ctx, tx, id, ownerID)
		if err != nil {
			return nil, err
		}
		return s.repomanager.Records(tx).ListByCounter(ctx, c.ID)
	})
}
