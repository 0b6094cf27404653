// Package scheduler triggers pipeline runs on a weekday wall-clock schedule
// with at most one run in flight.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"ibovtech/internal/config"
	"ibovtech/internal/util"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// StatusSink receives run lifecycle notifications.
type StatusSink interface {
	RunStarted(at time.Time)
	RunFinished(at time.Time, err error)
}

// Spec builds the cron expression for cfg in loc. A raw cfg.Spec wins over
// Time and Weekdays; a CRON_TZ prefix is added when the expression has none.
func Spec(cfg config.ScheduleConfig, loc *time.Location) (string, error) {
	expr := strings.TrimSpace(cfg.Spec)
	if expr == "" {
		hour, minute, err := util.ParseClock(cfg.Time)
		if err != nil {
			return "", err
		}
		days, err := util.ParseWeekdays(cfg.Weekdays)
		if err != nil {
			return "", err
		}
		expr = fmt.Sprintf("%d %d * * %s", minute, hour, days.CronField())
	}
	if !strings.HasPrefix(expr, "CRON_TZ=") && !strings.HasPrefix(expr, "TZ=") {
		expr = "CRON_TZ=" + loc.String() + " " + expr
	}
	return expr, nil
}

// Scheduler fires a Job at every activation of a cron schedule. A trigger
// that arrives while the previous run is still going is skipped, never queued.
type Scheduler struct {
	spec       string
	schedule   cron.Schedule
	job        Job
	runOnStart bool
	sink       StatusSink
	log        *slog.Logger
	now        func() time.Time

	busy    atomic.Bool
	skipped atomic.Int64
	wg      sync.WaitGroup
}

// New parses the schedule in cfg and returns a Scheduler for job.
func New(cfg config.ScheduleConfig, loc *time.Location, job Job, logger *slog.Logger) (*Scheduler, error) {
	spec, err := Spec(cfg, loc)
	if err != nil {
		return nil, err
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}
	if schedule.Next(time.Now()).IsZero() {
		return nil, fmt.Errorf("schedule %q never fires", spec)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		spec:       spec,
		schedule:   schedule,
		job:        job,
		runOnStart: cfg.RunOnStart,
		log:        logger.With("component", "scheduler"),
		now:        time.Now,
	}, nil
}

// WithStatusSink registers sink for run notifications.
func (s *Scheduler) WithStatusSink(sink StatusSink) *Scheduler {
	s.sink = sink
	return s
}

// SpecString returns the parsed cron expression.
func (s *Scheduler) SpecString() string { return s.spec }

// Next returns the first activation strictly after t, or the zero time when
// the schedule has no further activation.
func (s *Scheduler) Next(t time.Time) time.Time { return s.schedule.Next(t) }

// Busy reports whether a run is in flight.
func (s *Scheduler) Busy() bool { return s.busy.Load() }

// Skipped returns how many triggers were dropped because a run was in flight.
func (s *Scheduler) Skipped() int64 { return s.skipped.Load() }

// Trigger starts the job in the background unless a run is already in
// flight. It reports whether a run was started.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.busy.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.log.Warn("previous run still in progress, skipping trigger")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)

		start := s.now()
		if s.sink != nil {
			s.sink.RunStarted(start)
		}
		err := s.job(ctx)
		if s.sink != nil {
			s.sink.RunFinished(s.now(), err)
		}
		if err != nil {
			s.log.Error("scheduled run failed", "error", err, "elapsed", time.Since(start))
			return
		}
		s.log.Info("scheduled run succeeded", "elapsed", time.Since(start))
	}()
	return true
}

// Wait blocks until the in-flight run, if any, has returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Run waits for each activation and triggers the job until ctx is done, then
// waits for the in-flight run before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.Wait()

	s.log.Info("scheduler started", "spec", s.spec, "run_on_start", s.runOnStart)
	if s.runOnStart {
		s.Trigger(ctx)
	}

	for {
		now := s.now()
		next := s.Next(now)
		if next.IsZero() {
			s.log.Warn("schedule has no further activations")
			<-ctx.Done()
			s.log.Info("scheduler stopping")
			return nil
		}
		wait := next.Sub(now)
		s.log.Info("next run scheduled", "at", next.Format(time.RFC3339), "in", wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("scheduler stopping")
			return nil
		case <-timer.C:
			s.Trigger(ctx)
		}
	}
}
