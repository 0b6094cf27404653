package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"ibovtech/internal/api"
	"ibovtech/internal/config"
	"ibovtech/internal/pipeline"
	"ibovtech/internal/scheduler"
	"ibovtech/internal/util"
)

func init() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
}

func main() {
	cfgPath := "config/ibovtech.yaml"
	if p := os.Getenv("IBOVTECH_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}

	if err := run(cfg, loc, logger); err != nil {
		logger.Error("scheduler exited", "error", err)
		os.Exit(1)
	}
	logger.Info("ibov-scheduler stopped")
}

// run owns the ledger for the process lifetime and closes it before
// returning, on every path.
func run(cfg *config.Config, loc *time.Location, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch, closeLedger, err := pipeline.Build(ctx, cfg, pipeline.BuildOptions{}, logger)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	defer func() {
		if err := closeLedger(); err != nil {
			logger.Warn("closing ledger", "error", err)
		}
	}()

	job := func(ctx context.Context) error {
		_, err := orch.Run(ctx)
		return err
	}
	sched, err := scheduler.New(cfg.Schedule, loc, job, logger)
	if err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.HealthAddr != "" {
		srv := api.NewServer(cfg.Server, logger)
		sched.WithStatusSink(srv.Status())
		g.Go(func() error { return srv.ListenAndServe(gctx) })
	}
	g.Go(func() error { return sched.Run(gctx) })

	logger.Info("ibov-scheduler started", "spec", sched.SpecString(), "timezone", loc.String())
	return g.Wait()
}
