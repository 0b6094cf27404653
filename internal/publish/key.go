// Package publish uploads serialized collection batches to object storage at
// a date-partitioned key.
package publish

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"ibovtech/internal/domain"
)

const (
	// DefaultPrefix is the top-level key prefix for raw artifacts.
	DefaultPrefix = "raw"
	// DefaultFileName is the artifact name inside each date partition.
	DefaultFileName = "ibov_composition.parquet"
)

var errInvalidDate = errors.New("invalid collection date")

// KeyBuilder builds object keys of the form <prefix>/<YYYYMMDD>/<file>.
type KeyBuilder struct {
	Prefix   string
	FileName string
}

// ObjectKey returns the key for date. The same date always maps to the same
// key, which is what makes a republish replace the earlier artifact.
func (b KeyBuilder) ObjectKey(date time.Time) (string, error) {
	if date.IsZero() || date.Year() < 1900 || date.Year() > 9999 {
		return "", &domain.PublishError{Err: fmt.Errorf("%w: %v", errInvalidDate, date)}
	}
	prefix := strings.Trim(b.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	name := b.FileName
	if name == "" {
		name = DefaultFileName
	}
	return path.Join(prefix, date.Format(domain.DateLayout), name), nil
}

// ObjectKey builds a key with the default prefix and file name.
func ObjectKey(date time.Time) (string, error) {
	return KeyBuilder{}.ObjectKey(date)
}
