package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunLedger = (*SQLiteLedger)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	started_at      TEXT NOT NULL,
	finished_at     TEXT NOT NULL,
	collection_date TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL,
	failed_stage    TEXT NOT NULL DEFAULT '',
	records         INTEGER NOT NULL DEFAULT 0,
	dropped         INTEGER NOT NULL DEFAULT 0,
	bucket          TEXT NOT NULL DEFAULT '',
	object_key      TEXT NOT NULL DEFAULT '',
	size            INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
CREATE INDEX IF NOT EXISTS runs_collection_date ON runs (collection_date);
`

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const runColumns = `id, started_at, finished_at, collection_date, state, failed_stage,
	records, dropped, bucket, object_key, size, error`

// SQLiteLedger implements RunLedger backed by a SQLite database.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens (or creates) a SQLite database at dbPath, creating the
// parent directory and the schema when missing.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// The pipeline has a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating ledger: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

// RecordRun inserts the run, replacing any earlier record with the same ID.
func (s *SQLiteLedger) RecordRun(ctx context.Context, r RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.StartedAt.UTC().Format(timeLayout),
		r.FinishedAt.UTC().Format(timeLayout),
		r.CollectionDate,
		r.State,
		r.FailedStage,
		r.Records,
		r.Dropped,
		r.Bucket,
		r.Key,
		r.Size,
		r.Error,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A limit <= 0 returns
// every run.
func (s *SQLiteLedger) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastSuccess returns the newest successful run for collectionDate.
func (s *SQLiteLedger) LastSuccess(ctx context.Context, collectionDate string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs
		WHERE collection_date = ? AND failed_stage = '' AND error = ''
		ORDER BY started_at DESC LIMIT 1`, collectionDate)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var (
		r                 RunRecord
		started, finished string
	)
	err := sc.Scan(&r.ID, &started, &finished, &r.CollectionDate, &r.State, &r.FailedStage,
		&r.Records, &r.Dropped, &r.Bucket, &r.Key, &r.Size, &r.Error)
	if err != nil {
		return RunRecord{}, err
	}
	if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return RunRecord{}, fmt.Errorf("run %s: started_at: %w", r.ID, err)
	}
	if r.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return RunRecord{}, fmt.Errorf("run %s: finished_at: %w", r.ID, err)
	}
	return r, nil
}
