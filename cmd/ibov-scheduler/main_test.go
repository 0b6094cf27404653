package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ibovtech/internal/config"
)

func TestRunReturnsScheduleError(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Storage.DataDir = filepath.Join(dir, "scratch")
	cfg.Storage.LedgerPath = filepath.Join(dir, "ledger", "runs.db")
	cfg.Schedule.Spec = "0 0 30 2 *"

	err := run(cfg, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatal("run should fail for a schedule that never fires")
	}
	if !strings.Contains(err.Error(), "never fires") {
		t.Errorf("error = %v, want the schedule error", err)
	}

	// The ledger was opened before the schedule was rejected.
	if _, statErr := os.Stat(cfg.Storage.LedgerPath); statErr != nil {
		t.Errorf("ledger file should exist: %v", statErr)
	}
}
