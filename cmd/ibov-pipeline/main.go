package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ibovtech/internal/config"
	"ibovtech/internal/pipeline"
	"ibovtech/internal/util"
)

func init() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
}

func main() {
	dryRun := flag.Bool("dry-run", false, "publish to an in-memory store instead of S3")
	noLedger := flag.Bool("no-ledger", false, "do not record the run in the SQLite ledger")
	flag.Parse()

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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch, closeLedger, err := pipeline.Build(ctx, cfg, pipeline.BuildOptions{DryRun: *dryRun, NoLedger: *noLedger}, logger)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	report, runErr := orch.Run(ctx)
	if err := closeLedger(); err != nil {
		logger.Warn("closing ledger", "error", err)
	}
	if runErr != nil {
		logger.Error("pipeline failed", "run_id", report.RunID, "stage", report.FailedStage.String(), "error", runErr)
		os.Exit(1)
	}
	logger.Info("pipeline succeeded", "run_id", report.RunID, "bucket", report.Artifact.Bucket,
		"key", report.Artifact.Key, "records", report.Records, "dropped", report.Dropped)
}
