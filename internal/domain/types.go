// Package domain defines the core data model for the IBOV composition
// pipeline: scraped composition rows, their enriched form, the per-day
// collection batch, and the artifact published to object storage.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the compact business-date format used in object keys,
// scratch file names, and the collection_date Parquet column.
const DateLayout = "20060102"

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

// CompositionRecord is one row of the published index composition.
type CompositionRecord struct {
	Symbol              string
	Company             string
	ShareClass          string
	TheoreticalQuantity int64
	WeightPercent       decimal.Decimal
}

// EnrichedRecord is a CompositionRecord plus fields derived from the batch it
// was collected in.
type EnrichedRecord struct {
	CompositionRecord
	DaysSinceCollection      int64
	TotalTheoreticalQuantity int64
}

// CollectionBatch is every record collected in a single extraction run. It is
// the unit of publish: one batch, one artifact, one object key.
type CollectionBatch struct {
	CollectionDate time.Time
	SourceURL      string
	Records        []EnrichedRecord
}

// Len returns the number of records in the batch.
func (b CollectionBatch) Len() int { return len(b.Records) }

// DateKey returns the collection date formatted as YYYYMMDD.
func (b CollectionBatch) DateKey() string {
	return b.CollectionDate.Format(DateLayout)
}

// TotalQuantity sums TheoreticalQuantity over the batch.
func (b CollectionBatch) TotalQuantity() int64 {
	var total int64
	for _, r := range b.Records {
		total += r.TheoreticalQuantity
	}
	return total
}

// PublishedArtifact identifies an object written to the object store.
type PublishedArtifact struct {
	Bucket string
	Key    string
	Size   int64
}
