// Package pipeline runs one extract, transform, publish and cleanup cycle as
// a single unit of work.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ibovtech/internal/domain"
	"ibovtech/internal/extract"
	"ibovtech/internal/store"
	"ibovtech/internal/transform"
)

// Publisher uploads a serialized batch for a collection date.
type Publisher interface {
	Publish(ctx context.Context, date time.Time, payload []byte) (domain.PublishedArtifact, error)
}

// Cleaner removes staged files.
type Cleaner interface {
	Cleanup(paths []string) error
}

// Ledger records finished runs and looks up earlier ones.
type Ledger interface {
	RecordRun(ctx context.Context, run store.RunRecord) error
	LastSuccess(ctx context.Context, collectionDate string) (*store.RunRecord, error)
}

// Deps are the collaborators of an Orchestrator. Ledger is optional.
type Deps struct {
	Extractor extract.Extractor
	Scratch   store.Scratch
	Publisher Publisher
	Cleaner   Cleaner
	Ledger    Ledger
}

// Report describes one run.
type Report struct {
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	State          State
	FailedStage    State
	CollectionDate time.Time
	Records        int
	Dropped        int
	ScratchPaths   []string
	Artifact       domain.PublishedArtifact
	Err            error
}

// RunRecord converts the report into a ledger row.
func (r *Report) RunRecord() store.RunRecord {
	rec := store.RunRecord{
		ID:         r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		State:      r.State.String(),
		Records:    r.Records,
		Dropped:    r.Dropped,
		Bucket:     r.Artifact.Bucket,
		Key:        r.Artifact.Key,
		Size:       r.Artifact.Size,
	}
	if !r.CollectionDate.IsZero() {
		rec.CollectionDate = r.CollectionDate.Format(domain.DateLayout)
	}
	if r.State == Failed {
		rec.FailedStage = r.FailedStage.String()
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

// Orchestrator drives the state machine
//
//	Idle -> Fetching -> Transforming -> Publishing -> CleaningUp -> Done
//
// with Failed reachable from any working state. A failed stage skips every
// later stage, including cleanup, so staged files stay on disk for
// inspection. There are no retries within a run.
type Orchestrator struct {
	deps Deps
	log  *slog.Logger
	now  func() time.Time
}

// New creates an Orchestrator.
func New(deps Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{deps: deps, log: logger.With("component", "pipeline"), now: time.Now}
}

// run carries the mutable state of a single Run call.
type run struct {
	o      *Orchestrator
	log    *slog.Logger
	report *Report
}

// Run executes one pipeline cycle. The returned report is never nil. On
// failure the error is a *StageError wrapping the domain error of the stage
// that failed.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	id := uuid.NewString()
	r := &run{
		o:      o,
		log:    o.log.With("run_id", id),
		report: &Report{RunID: id, StartedAt: o.now(), State: Idle},
	}
	r.log.Info("run started")

	err := r.execute(ctx)
	r.report.FinishedAt = o.now()
	if err != nil {
		r.report.Err = err
		r.log.Error("run failed", "stage", r.report.FailedStage.String(), "error", err,
			"scratch", r.report.ScratchPaths)
	} else {
		r.log.Info("run finished", "key", r.report.Artifact.Key, "records", r.report.Records,
			"elapsed", r.report.FinishedAt.Sub(r.report.StartedAt))
	}

	if o.deps.Ledger != nil {
		if lerr := o.deps.Ledger.RecordRun(context.WithoutCancel(ctx), r.report.RunRecord()); lerr != nil {
			r.log.Warn("recording run", "error", lerr)
		}
	}
	return r.report, err
}

func (r *run) execute(ctx context.Context) error {
	d := r.o.deps

	// Fetching
	r.transition(Fetching)
	batch, err := d.Extractor.Fetch(ctx)
	if err != nil {
		return r.fail(err)
	}
	r.report.CollectionDate = batch.CollectionDate
	r.checkRepublish(ctx, batch.DateKey())

	// Transforming
	r.transition(Transforming)
	raw := batch
	batch, dropped := transform.NormalizeReport(raw)
	for _, v := range dropped {
		r.log.Warn("row dropped", "error", v)
	}
	r.report.Records = batch.Len()
	r.report.Dropped = len(dropped)

	payload, err := transform.Serialize(batch)
	if err != nil {
		return r.fail(err)
	}
	paths, err := d.Scratch.Stage(raw, payload)
	r.report.ScratchPaths = paths
	if err != nil {
		return r.fail(fmt.Errorf("staging artifact: %w", err))
	}

	// Publishing
	r.transition(Publishing)
	art, err := d.Publisher.Publish(ctx, batch.CollectionDate, payload)
	if err != nil {
		return r.fail(err)
	}
	r.report.Artifact = art

	// CleaningUp
	r.transition(CleaningUp)
	if err := d.Cleaner.Cleanup(paths); err != nil {
		return r.fail(err)
	}
	r.report.ScratchPaths = nil

	r.transition(Done)
	return nil
}

// checkRepublish logs when an earlier run already published date. The new
// run still overwrites the object.
func (r *run) checkRepublish(ctx context.Context, date string) {
	if r.o.deps.Ledger == nil {
		return
	}
	prev, err := r.o.deps.Ledger.LastSuccess(ctx, date)
	if err != nil {
		r.log.Warn("looking up previous run", "date", date, "error", err)
		return
	}
	if prev != nil {
		r.log.Info("republishing collection date", "date", date,
			"previous_run", prev.ID, "previous_key", prev.Key)
	}
}

func (r *run) transition(to State) {
	from := r.report.State
	if !canTransition(from, to) {
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s", from, to))
	}
	r.report.State = to
	r.log.Info("transition", "from", from.String(), "to", to.String())
}

func (r *run) fail(err error) error {
	stage := r.report.State
	r.report.FailedStage = stage
	r.transition(Failed)
	return &StageError{Stage: stage, Err: err}
}
