package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/wxcounter/internal/common"
	"github.com/dmitrijs2005/wxcounter/internal/dbx"
	"github.com/dmitrijs2005/wxcounter/internal/server/models"
	"github.com/dmitrijs2005/wxcounter/internal/server/repositories/counters"
	"github.com/dmitrijs2005/wxcounter/internal/server/repositories/records"
	"github.com/dmitrijs2005/wxcounter/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

// --- in-memory store with per-transaction working copies ---

type memState struct {
	users    map[int64]models.User
	counters map[int64]models.Counter
	records  map[int64]models.CounterRecord
}

func newMemState() *memState {
	return &memState{
		users:    map[int64]models.User{},
		counters: map[int64]models.Counter{},
		records:  map[int64]models.CounterRecord{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	return c
}

// memManager implements repomanager.RepositoryManager. Repositories bound to a
// *sql.Tx write into a working copy that settle publishes or drops, mirroring
// what the database does on commit or rollback.
type memManager struct {
	mu        sync.Mutex
	committed *memState
	pending   map[dbx.DBTX]*memState
	nextID    int64

	failLock          error
	failRecordCreate  error
	failSetValue      error
	failDeleteRecords error
	failDeleteCounter error
	failList          error

	plainReads        int
	lockedReads       int
	beforeListRecords func()
}

func newMemManager() *memManager {
	return &memManager{committed: newMemState(), pending: map[dbx.DBTX]*memState{}}
}

func (m *memManager) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memManager) state(db dbx.DBTX) *memState {
	if _, ok := db.(*sql.DB); ok {
		return m.committed
	}
	st, ok := m.pending[db]
	if !ok {
		st = m.committed.clone()
		m.pending[db] = st
	}
	return st
}

func (m *memManager) settle(commit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if commit {
		for _, st := range m.pending {
			m.committed = st
		}
	}
	m.pending = map[dbx.DBTX]*memState{}
}

func (m *memManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memManager) Users(db dbx.DBTX) users.Repository        { return &memUsers{m: m, db: db} }
func (m *memManager) Counters(db dbx.DBTX) counters.Repository  { return &memCounters{m: m, db: db} }
func (m *memManager) Records(db dbx.DBTX) records.Repository    { return &memRecords{m: m, db: db} }

func (m *memManager) resetReads() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plainReads, m.lockedReads = 0, 0
}

// addUser seeds a committed user row.
func (m *memManager) addUser(openID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.committed.users[id] = models.User{ID: id, OpenID: openID}
	return id
}

type memUsers struct {
	m  *memManager
	db dbx.DBTX
}

func (r *memUsers) Upsert(ctx context.Context, openID, sessionKey string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	st := r.m.state(r.db)
	for id, u := range st.users {
		if u.OpenID == openID {
			u.SessionKey = sessionKey
			u.UpdatedAt = time.Now()
			st.users[id] = u
			return &u, nil
		}
	}
	now := time.Now()
	u := models.User{ID: r.m.id(), OpenID: openID, SessionKey: sessionKey, CreatedAt: now, UpdatedAt: now}
	st.users[u.ID] = u
	return &u, nil
}

func (r *memUsers) Lock(ctx context.Context, userID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failLock != nil {
		return r.m.failLock
	}
	if _, ok := r.m.state(r.db).users[userID]; !ok {
		return common.ErrorNotFound
	}
	return nil
}

type memCounters struct {
	m  *memManager
	db dbx.DBTX
}

func (r *memCounters) Create(ctx context.Context, c *models.Counter) (*models.Counter, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := time.Now()
	row := *c
	row.ID = r.m.id()
	row.CreatedAt, row.UpdatedAt = now, now
	r.m.state(r.db).counters[row.ID] = row
	return &row, nil
}

func (r *memCounters) get(id, userID int64) (*models.Counter, error) {
	c, ok := r.m.state(r.db).counters[id]
	if !ok || c.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return &c, nil
}

func (r *memCounters) GetForOwner(ctx context.Context, id, userID int64) (*models.Counter, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.plainReads++
	return r.get(id, userID)
}

func (r *memCounters) GetForOwnerForUpdate(ctx context.Context, id, userID int64) (*models.Counter, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.lockedReads++
	return r.get(id, userID)
}

func (r *memCounters) ListByOwner(ctx context.Context, userID int64) ([]*models.Counter, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failList != nil {
		return nil, r.m.failList
	}
	out := make([]*models.Counter, 0)
	for _, c := range r.m.state(r.db).counters {
		if c.UserID == userID {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence > out[j].Sequence
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *memCounters) maxSeq(userID, except int64) int64 {
	var max int64
	for _, c := range r.m.state(r.db).counters {
		if c.UserID == userID && c.ID != except && c.Sequence > max {
			max = c.Sequence
		}
	}
	return max
}

func (r *memCounters) MaxSequence(ctx context.Context, userID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.maxSeq(userID, 0), nil
}

func (r *memCounters) MaxSequenceExcept(ctx context.Context, userID, id int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.maxSeq(userID, id), nil
}

func (r *memCounters) update(id, userID int64, fn func(c *models.Counter)) error {
	c, err := r.get(id, userID)
	if err != nil {
		return err
	}
	fn(c)
	c.UpdatedAt = time.Now()
	r.m.state(r.db).counters[id] = *c
	return nil
}

func (r *memCounters) UpdateSettings(ctx context.Context, id, userID int64, name string, step int64, inputStep bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.update(id, userID, func(c *models.Counter) {
		c.Name, c.Step, c.InputStep = name, step, inputStep
	})
}

func (r *memCounters) SetValue(ctx context.Context, id, userID, value int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failSetValue != nil {
		return r.m.failSetValue
	}
	return r.update(id, userID, func(c *models.Counter) { c.Value = value })
}

func (r *memCounters) SetSequence(ctx context.Context, id, userID, sequence int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.update(id, userID, func(c *models.Counter) { c.Sequence = sequence })
}

func (r *memCounters) Delete(ctx context.Context, id, userID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failDeleteCounter != nil {
		return r.m.failDeleteCounter
	}
	if _, err := r.get(id, userID); err != nil {
		return err
	}
	delete(r.m.state(r.db).counters, id)
	return nil
}

type memRecords struct {
	m  *memManager
	db dbx.DBTX
}

func (r *memRecords) Create(ctx context.Context, rec *models.CounterRecord) (*models.CounterRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failRecordCreate != nil {
		return nil, r.m.failRecordCreate
	}
	now := time.Now()
	row := *rec
	row.ID = r.m.id()
	row.CreatedAt, row.UpdatedAt = now, now
	r.m.state(r.db).records[row.ID] = row
	return &row, nil
}

func (r *memRecords) ListByCounter(ctx context.Context, counterID int64) ([]*models.CounterRecord, error) {
	if hook := r.m.beforeListRecords; hook != nil {
		hook()
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]*models.CounterRecord, 0)
	for _, rec := range r.m.state(r.db).records {
		if rec.CounterID == counterID {
			rec := rec
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memRecords) DeleteByCounter(ctx context.Context, counterID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failDeleteRecords != nil {
		return 0, r.m.failDeleteRecords
	}
	st := r.m.state(r.db)
	var n int64
	for id, rec := range st.records {
		if rec.CounterID == counterID {
			delete(st.records, id)
			n++
		}
	}
	return n, nil
}

// --- test environment ---

type testEnv struct {
	db   *sql.DB
	mock sqlmock.Sqlmock
	rm   *memManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &testEnv{db: db, mock: mock, rm: newMemManager()}
}

// inTx runs a transactional call, checking it commits on success and rolls
// back on failure, then publishes or drops its writes accordingly.
func (e *testEnv) inTx(t *testing.T, call func() error) error {
	t.Helper()
	return e.inTxExpect(t, true, call)
}

func (e *testEnv) inTxExpect(t *testing.T, commit bool, call func() error) error {
	t.Helper()
	e.mock.ExpectBegin()
	if commit {
		e.mock.ExpectCommit()
	} else {
		e.mock.ExpectRollback()
	}
	err := call()
	e.rm.settle(err == nil)
	require.NoError(t, e.mock.ExpectationsWereMet())
	return err
}

type recordedOp struct {
	op  string
	err error
}

type fakeObserver struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (o *fakeObserver) ObserveLedgerOp(op string, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, recordedOp{op: op, err: err})
}
