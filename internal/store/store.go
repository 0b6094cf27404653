// Package store holds the pipeline's local persistence: the scratch area where
// a run stages its artifacts before upload, and the run ledger that records
// the outcome of every run.
package store

import (
	"context"
	"time"

	"ibovtech/internal/domain"
)

// Scratch stages a batch on local disk for the duration of a run.
type Scratch interface {
	// Stage writes batch as CSV and the serialized artifact next to it. The
	// pipeline passes the batch as extracted, before normalization, so the CSV
	// keeps the rows that normalization dropped. It returns the paths it created, in creation order.
	Stage(batch domain.CollectionBatch, payload []byte) ([]string, error)

	// Dir returns the scratch directory.
	Dir() string
}

// RunRecord is one row of the run ledger.
type RunRecord struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	CollectionDate string // YYYYMMDD, empty when the run failed before fetching finished
	State          string
	FailedStage    string
	Records        int
	Dropped        int
	Bucket         string
	Key            string
	Size           int64
	Error          string
}

// Duration returns how long the run took.
func (r RunRecord) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Succeeded reports whether the run reached its final state without error.
func (r RunRecord) Succeeded() bool { return r.Error == "" && r.FailedStage == "" }

// RunLedger persists and retrieves run records.
type RunLedger interface {
	// RecordRun inserts or replaces the record with the same ID.
	RecordRun(ctx context.Context, run RunRecord) error

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// LastSuccess returns the most recent successful run for a collection
	// date, or nil when there is none.
	LastSuccess(ctx context.Context, collectionDate string) (*RunRecord, error)
}
