package records

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/wxcounter/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+counter_records\s*\(counter_id,\s*step,\s*begin_value,\s*end_value\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id,\s*created_at,\s*updated_at$`

	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs(int64(3), int64(-3), int64(10), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), now, now))

	in := &models.CounterRecord{CounterID: 3, Step: -3, Begin: 10, End: 7}
	got, err := repo.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 11 || got.Begin != 10 || got.End != 7 || got.Step != -3 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if in.ID != 0 {
		t.Fatalf("input record must not be mutated: %+v", in)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+counter_records`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.CounterRecord{CounterID: 1})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestListByCounter_NewestFirst(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*counter_id,\s*step,\s*begin_value,\s*end_value,\s*created_at,\s*updated_at\s+FROM\s+counter_records\s+WHERE\s+counter_id\s*=\s*\$1\s+ORDER\s+BY\s+id\s+DESC$`

	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "counter_id", "step", "begin_value", "end_value", "created_at", "updated_at"}).
			AddRow(int64(2), int64(3), int64(-3), int64(10), int64(7), now, now).
			AddRow(int64(1), int64(3), int64(10), int64(0), int64(10), now, now))

	got, err := repo.ListByCounter(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListByCounter error: %v", err)
	}
	if len(got) != 2 || got[0].ID != 2 || got[1].Begin != 0 || got[0].Begin != got[1].End {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func TestListByCounter_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+counter_records`).WithArgs(int64(3)).WillReturnError(errors.New("db err"))

	if _, err := repo.ListByCounter(context.Background(), 3); err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestDeleteByCounter(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+counter_records\s+WHERE\s+counter_id\s*=\s*\$1$`

	mock.ExpectExec(q).WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 2))
	n, err := repo.DeleteByCounter(context.Background(), 3)
	if err != nil || n != 2 {
		t.Fatalf("DeleteByCounter = %d, %v; want 2", n, err)
	}

	mock.ExpectExec(q).WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 0))
	n, err = repo.DeleteByCounter(context.Background(), 4)
	if err != nil || n != 0 {
		t.Fatalf("DeleteByCounter with no history = %d, %v; want 0", n, err)
	}
}
