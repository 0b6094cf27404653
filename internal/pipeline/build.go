package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"ibovtech/internal/cleanup"
	"ibovtech/internal/config"
	"ibovtech/internal/extract"
	"ibovtech/internal/publish"
	"ibovtech/internal/store"
)

// BuildOptions adjust how Build wires collaborators.
type BuildOptions struct {
	// DryRun publishes into an in-memory store instead of S3.
	DryRun bool
	// NoLedger skips opening the SQLite run ledger.
	NoLedger bool
}

// Build wires an Orchestrator from configuration. The returned close
// function releases the ledger and must be called once the orchestrator is no
// longer used.
func Build(ctx context.Context, cfg *config.Config, opts BuildOptions, logger *slog.Logger) (*Orchestrator, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	var objects publish.ObjectStore
	if opts.DryRun {
		logger.Info("dry run: publishing to memory", "bucket", cfg.S3.Bucket)
		objects = publish.NewMemoryStore(cfg.S3.Bucket)
	} else {
		s3store, err := publish.NewS3Store(ctx, cfg.S3, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.S3.CreateBucket {
			if err := s3store.EnsureBucket(ctx); err != nil {
				return nil, nil, err
			}
		}
		objects = s3store
	}

	deps := Deps{
		Extractor: extract.NewB3Extractor(cfg.Extract, loc, logger),
		Scratch:   store.NewScratchStore(cfg.Storage.DataDir),
		Publisher: publish.NewPublisher(objects, publish.KeyBuilder{
			Prefix:   cfg.S3.KeyPrefix,
			FileName: cfg.S3.FileName,
		}, logger),
		Cleaner: cleanup.New(cfg.Storage.DataDir, logger),
	}

	closeFn := func() error { return nil }
	if !opts.NoLedger && cfg.Storage.LedgerPath != "" {
		ledger, err := store.NewSQLiteLedger(cfg.Storage.LedgerPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening run ledger: %w", err)
		}
		deps.Ledger = ledger
		closeFn = ledger.Close
	}

	return New(deps, logger), closeFn, nil
}
