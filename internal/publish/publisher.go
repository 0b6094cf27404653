package publish

import (
	"context"
	"log/slog"
	"time"

	"ibovtech/internal/domain"
)

// ObjectStore is the subset of an S3-compatible store the publisher needs.
type ObjectStore interface {
	// PutObject writes body at key, replacing any existing object.
	PutObject(ctx context.Context, key string, body []byte) error

	// EnsureBucket creates the bucket when it does not exist.
	EnsureBucket(ctx context.Context) error

	// Bucket returns the bucket name objects are written to.
	Bucket() string
}

// Publisher uploads artifacts with an unconditional put: the last write for a
// date wins and there is no existence check.
type Publisher struct {
	store ObjectStore
	keys  KeyBuilder
	log   *slog.Logger
}

// NewPublisher creates a Publisher writing through store.
func NewPublisher(store ObjectStore, keys KeyBuilder, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, keys: keys, log: logger.With("component", "publish")}
}

// Publish writes payload at the key for date. Key and store failures are
// returned as *domain.PublishError.
func (p *Publisher) Publish(ctx context.Context, date time.Time, payload []byte) (domain.PublishedArtifact, error) {
	key, err := p.keys.ObjectKey(date)
	if err != nil {
		return domain.PublishedArtifact{}, err
	}

	start := time.Now()
	if err := p.store.PutObject(ctx, key, payload); err != nil {
		return domain.PublishedArtifact{}, &domain.PublishError{Key: key, Err: err}
	}

	art := domain.PublishedArtifact{Bucket: p.store.Bucket(), Key: key, Size: int64(len(payload))}
	p.log.Info("artifact published", "bucket", art.Bucket, "key", key, "bytes", art.Size, "elapsed", time.Since(start))
	return art, nil
}
