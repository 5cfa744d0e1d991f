package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

var anyTime = ArgumentMatcherFunc(func(v interface{}) bool {
	_, ok := v.(time.Time)
	return ok
})

func utcTime(want time.Time) ArgumentMatcherFunc {
	return func(v interface{}) bool {
		got, ok := v.(time.Time)
		return ok && got.Equal(want) && got.Location() == time.UTC
	}
}

func newStore(t *testing.T) (*Store, pgxmock.PgxPoolIface, *observer.ObservedLogs) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	core, logs := observer.New(zapcore.ErrorLevel)
	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, zap.New(core))
	require.NoError(t, err)
	return s, mockPool, logs
}

func sampleReport() *schemas.RunReport {
	ny, _ := time.LoadLocation("America/New_York")
	started := time.Date(2026, 3, 1, 7, 0, 0, 0, ny)
	return &schemas.RunReport{
		RunID:    "run-1",
		Suite:    "Shop",
		Started:  started,
		Duration: 2500 * time.Millisecond,
		Results: []schemas.TestResult{
			{Suite: "Shop: ff", Name: "login", Browser: "ff", Script: "/s/login.html", Groups: []string{"smoke"}, Status: schemas.StatusPassed, Started: started, Duration: time.Second},
			{Suite: "Shop: ff", Name: "checkout", Browser: "ff", Status: schemas.StatusFailed, Message: "mismatch", Started: started, Duration: 1500 * time.Millisecond},
		},
	}
}

func TestNewStore(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)

	_, err = New(context.Background(), mockPool, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	s, mockPool, _ := newStore(t)
	mockPool.ExpectExec(flexibleSQLMatcher(schemaSQL)).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPersistRun(t *testing.T) {
	ctx := context.Background()

	t.Run("persists run, results and history", func(t *testing.T) {
		s, mockPool, logs := newStore(t)
		report := sampleReport()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs("run-1", "Shop", utcTime(report.Started), int64(2500), 1, 1, 0, 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"test_results"}, resultColumns).WillReturnResult(2)

		batch := mockPool.ExpectBatch()
		batch.ExpectExec(flexibleSQLMatcher(sqlUpsertHistory)).
			WithArgs("Shop: ff", "login", "ff", "run-1", "passed", 0, anyTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		batch.ExpectExec(flexibleSQLMatcher(sqlUpsertHistory)).
			WithArgs("Shop: ff", "checkout", "ff", "run-1", "failed", 1, anyTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.PersistRun(ctx, report))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, logs.All(), "no errors expected on a committed transaction")
	})

	t.Run("empty report skips results", func(t *testing.T) {
		s, mockPool, _ := newStore(t)
		report := &schemas.RunReport{RunID: "run-2", Suite: "Empty", Started: time.Now()}

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs("run-2", "Empty", anyTime, int64(0), 0, 0, 0, 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.PersistRun(ctx, report))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("copy failure rolls back", func(t *testing.T) {
		s, mockPool, _ := newStore(t)
		copyErr := errors.New("disk full")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs("run-1", "Shop", anyTime, int64(2500), 1, 1, 0, 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"test_results"}, resultColumns).WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err := s.PersistRun(ctx, sampleReport())
		require.Error(t, err)
		assert.ErrorIs(t, err, copyErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("copy count mismatch", func(t *testing.T) {
		s, mockPool, _ := newStore(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs("run-1", "Shop", anyTime, int64(2500), 1, 1, 0, 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"test_results"}, resultColumns).WillReturnResult(1)
		mockPool.ExpectRollback()

		err := s.PersistRun(ctx, sampleReport())
		assert.ErrorContains(t, err, "mismatch in copied results count")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		s, mockPool, _ := newStore(t)
		mockPool.ExpectBegin().WillReturnError(errors.New("no connection"))

		err := s.PersistRun(ctx, sampleReport())
		assert.ErrorContains(t, err, "failed to begin transaction")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGetResultsByRunID(t *testing.T) {
	s, mockPool, _ := newStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"suite", "name", "browser", "script", "groups", "status", "message", "started_at", "duration_ms"}).
		AddRow("Shop: ff", "login", "ff", "/s/login.html", []string{"smoke"}, "passed", "", started, int64(1000)).
		AddRow("Shop: ff", "checkout", "ff", "", []string{}, "failed", "mismatch", started, int64(1500))
	mockPool.ExpectQuery(`SELECT suite, name, browser`).WithArgs("run-1").WillReturnRows(rows)

	results, err := s.GetResultsByRunID(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, schemas.StatusPassed, results[0].Status)
	assert.Equal(t, []string{"smoke"}, results[0].Groups)
	assert.Equal(t, 1500*time.Millisecond, results[1].Duration)
	assert.Equal(t, "mismatch", results[1].Message)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestGetRun(t *testing.T) {
	ctx := context.Background()

	t.Run("run with results", func(t *testing.T) {
		s, mockPool, _ := newStore(t)
		started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		mockPool.ExpectQuery(`SELECT suite, started_at, duration_ms FROM runs`).WithArgs("run-1").
			WillReturnRows(pgxmock.NewRows([]string{"suite", "started_at", "duration_ms"}).AddRow("Shop", started, int64(2500)))
		mockPool.ExpectQuery(`SELECT suite, name, browser`).WithArgs("run-1").
			WillReturnRows(pgxmock.NewRows([]string{"suite", "name", "browser", "script", "groups", "status", "message", "started_at", "duration_ms"}).
				AddRow("Shop: ff", "login", "ff", "", []string{}, "passed", "", started, int64(1000)))

		report, err := s.GetRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, "Shop", report.Suite)
		assert.Equal(t, 2500*time.Millisecond, report.Duration)
		require.Len(t, report.Results, 1)
		assert.Equal(t, "login", report.Results[0].Name)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("unknown run", func(t *testing.T) {
		s, mockPool, _ := newStore(t)
		mockPool.ExpectQuery(`SELECT suite, started_at, duration_ms FROM runs`).WithArgs("nope").
			WillReturnRows(pgxmock.NewRows([]string{"suite", "started_at", "duration_ms"}))

		_, err := s.GetRun(ctx, "nope")
		assert.ErrorIs(t, err, pgx.ErrNoRows)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
