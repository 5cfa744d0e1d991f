// Package store persists run reports to PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/selenium-suite/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    suite       TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL,
    passed      INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    errors      INTEGER NOT NULL,
    skipped     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS test_results (
    run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position    INTEGER NOT NULL,
    suite       TEXT NOT NULL,
    name        TEXT NOT NULL,
    browser     TEXT NOT NULL,
    script      TEXT NOT NULL,
    groups      TEXT[] NOT NULL,
    status      TEXT NOT NULL,
    message     TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL,
    PRIMARY KEY (run_id, position)
);
CREATE TABLE IF NOT EXISTS test_history (
    suite       TEXT NOT NULL,
    name        TEXT NOT NULL,
    browser     TEXT NOT NULL,
    last_run_id TEXT NOT NULL,
    last_status TEXT NOT NULL,
    runs        INTEGER NOT NULL,
    failures    INTEGER NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (suite, name, browser)
);`

const sqlInsertRun = `
    INSERT INTO runs (id, suite, started_at, duration_ms, passed, failed, errors, skipped)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

const sqlUpsertHistory = `
    INSERT INTO test_history (suite, name, browser, last_run_id, last_status, runs, failures, updated_at)
    VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
    ON CONFLICT (suite, name, browser) DO UPDATE SET
        last_run_id = EXCLUDED.last_run_id,
        last_status = EXCLUDED.last_status,
        runs = test_history.runs + 1,
        failures = test_history.failures + EXCLUDED.failures,
        updated_at = EXCLUDED.updated_at;`

var resultColumns = []string{"run_id", "position", "suite", "name", "browser", "script", "groups", "status", "message", "started_at", "duration_ms"}

// Store persists run reports.
type Store struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
		now:  time.Now,
	}, nil
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// PersistRun stores the run, its results and the per-test history in one transaction.
func (s *Store) PersistRun(ctx context.Context, report *schemas.RunReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	counts := report.Counts()
	if _, err := tx.Exec(ctx, sqlInsertRun,
		report.RunID, report.Suite, report.Started.UTC(), report.Duration.Milliseconds(),
		counts[schemas.StatusPassed], counts[schemas.StatusFailed],
		counts[schemas.StatusError], counts[schemas.StatusSkipped],
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}

	if len(report.Results) > 0 {
		if err := s.persistResults(ctx, tx, report); err != nil {
			return err
		}
		if err := s.persistHistory(ctx, tx, report); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Run persisted", zap.String("run_id", report.RunID), zap.Int("results", len(report.Results)))
	return nil
}

func (s *Store) persistResults(ctx context.Context, tx pgx.Tx, report *schemas.RunReport) error {
	rows := make([][]interface{}, len(report.Results))
	for i, r := range report.Results {
		groups := r.Groups
		if groups == nil {
			groups = []string{}
		}
		rows[i] = []interface{}{
			report.RunID, i, r.Suite, r.Name, r.Browser, r.Script,
			groups, string(r.Status), r.Message,
			r.Started.UTC(), r.Duration.Milliseconds(),
		}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"test_results"}, resultColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy results: %w", err)
	}
	if int(copyCount) != len(rows) {
		return fmt.Errorf("mismatch in copied results count: expected %d, got %d", len(rows), copyCount)
	}
	return nil
}

func (s *Store) persistHistory(ctx context.Context, tx pgx.Tx, report *schemas.RunReport) error {
	batch := &pgx.Batch{}
	now := s.now().UTC()
	for _, r := range report.Results {
		failures := 0
		if r.Status == schemas.StatusFailed || r.Status == schemas.StatusError {
			failures = 1
		}
		batch.Queue(sqlUpsertHistory, r.Suite, r.Name, r.Browser, report.RunID, string(r.Status), failures, now)
	}

	br := tx.SendBatch(ctx, batch)
	if br == nil {
		return fmt.Errorf("failed to send batch: batch results is nil")
	}
	defer func() {
		_ = br.Close()
	}()

	for i, r := range report.Results {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to update history for %s/%s (index %d): %w", r.Suite, r.Name, i, err)
		}
	}
	return nil
}

// GetRun loads a persisted run with its results. pgx.ErrNoRows is returned,
// wrapped, when runID is unknown.
func (s *Store) GetRun(ctx context.Context, runID string) (*schemas.RunReport, error) {
	report := &schemas.RunReport{RunID: runID}
	var durationMS int64
	err := s.pool.QueryRow(ctx, `SELECT suite, started_at, duration_ms FROM runs WHERE id = $1`, runID).
		Scan(&report.Suite, &report.Started, &durationMS)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	report.Duration = time.Duration(durationMS) * time.Millisecond

	results, err := s.GetResultsByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	report.Results = results
	return report, nil
}

// GetResultsByRunID returns the stored results of one run in their original order.
func (s *Store) GetResultsByRunID(ctx context.Context, runID string) ([]schemas.TestResult, error) {
	query := `
        SELECT suite, name, browser, script, groups, status, message, started_at, duration_ms
        FROM test_results
        WHERE run_id = $1
        ORDER BY position ASC;
    `
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []schemas.TestResult
	for rows.Next() {
		var r schemas.TestResult
		var status string
		var durationMS int64
		if err := rows.Scan(&r.Suite, &r.Name, &r.Browser, &r.Script, &r.Groups, &status, &r.Message, &r.Started, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		r.Status = schemas.Status(status)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return results, nil
}
