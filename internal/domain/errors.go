package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyBatch is returned when an empty batch reaches a stage that requires
// at least one record.
var ErrEmptyBatch = errors.New("empty collection batch")

// FetchError reports that the source page was unreachable, structurally
// invalid, or yielded no rows.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError reports a single row that was rejected. It is never fatal:
// the row is dropped and the batch continues.
type ValidationError struct {
	Row    int
	Symbol string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("row %d (%s): %s", e.Row, e.Symbol, e.Reason)
}

// SerializationError reports a failure to encode a batch into its columnar
// artifact.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize batch: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// PublishError reports a failed upload or an object key that could not be
// built.
type PublishError struct {
	Key string
	Err error
}

func (e *PublishError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("publish: %v", e.Err)
	}
	return fmt.Sprintf("publish %s: %v", e.Key, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
