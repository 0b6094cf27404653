package transform

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"ibovtech/internal/domain"
)

// Weights are stored as Parquet DECIMAL(18,8): an int64 count of 1e-8
// percentage points.
const (
	WeightScale     = 8
	weightPrecision = 18
)

// CompositionRow is the Parquet schema of the published artifact. Dates are
// stored as YYYYMMDD strings so the file loads without nanosecond timestamps.
type CompositionRow struct {
	Symbol                   string  `parquet:"symbol"`
	Company                  string  `parquet:"company"`
	ShareClass               string  `parquet:"share_class"`
	TheoreticalQuantity      int64   `parquet:"theoretical_quantity"`
	WeightPercent            int64   `parquet:"weight_percent,decimal(8:18)"`
	DaysSinceCollection      int64   `parquet:"days_since_collection"`
	TotalTheoreticalQuantity int64   `parquet:"total_theoretical_quantity"`
	CollectionDate           string  `parquet:"collection_date"`
	SourceURL                string  `parquet:"source_url"`
}

// Serialize encodes batch as a snappy-compressed Parquet file. An empty batch
// fails with a *domain.SerializationError wrapping domain.ErrEmptyBatch, and so
// does a weight with more than WeightScale decimal places or more than
// eighteen digits.
func Serialize(batch domain.CollectionBatch) ([]byte, error) {
	if batch.Len() == 0 {
		return nil, &domain.SerializationError{Err: domain.ErrEmptyBatch}
	}

	date := batch.DateKey()
	rows := make([]CompositionRow, 0, batch.Len())
	for _, r := range batch.Records {
		weight, err := scaledWeight(r.WeightPercent)
		if err != nil {
			return nil, &domain.SerializationError{Err: fmt.Errorf("%s: %w", r.Symbol, err)}
		}
		rows = append(rows, CompositionRow{
			Symbol:                   r.Symbol,
			Company:                  r.Company,
			ShareClass:               r.ShareClass,
			TheoreticalQuantity:      r.TheoreticalQuantity,
			WeightPercent:            weight,
			DaysSinceCollection:      r.DaysSinceCollection,
			TotalTheoreticalQuantity: r.TotalTheoreticalQuantity,
			CollectionDate:           date,
			SourceURL:                batch.SourceURL,
		})
	}

	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows, parquet.Compression(&parquet.Snappy)); err != nil {
		return nil, &domain.SerializationError{Err: err}
	}
	return buf.Bytes(), nil
}

// Deserialize decodes an artifact produced by Serialize. The collection date
// is taken from the first row and interpreted in loc (UTC when nil).
func Deserialize(data []byte, loc *time.Location) (domain.CollectionBatch, error) {
	rows, err := parquet.Read[CompositionRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.CollectionBatch{}, fmt.Errorf("reading parquet: %w", err)
	}
	if len(rows) == 0 {
		return domain.CollectionBatch{}, domain.ErrEmptyBatch
	}
	if loc == nil {
		loc = time.UTC
	}

	date, err := time.ParseInLocation(domain.DateLayout, rows[0].CollectionDate, loc)
	if err != nil {
		return domain.CollectionBatch{}, fmt.Errorf("parsing collection_date %q: %w", rows[0].CollectionDate, err)
	}

	batch := domain.CollectionBatch{
		CollectionDate: date,
		SourceURL:      rows[0].SourceURL,
		Records:        make([]domain.EnrichedRecord, 0, len(rows)),
	}
	for _, r := range rows {
		batch.Records = append(batch.Records, domain.EnrichedRecord{
			CompositionRecord: domain.CompositionRecord{
				Symbol:              r.Symbol,
				Company:             r.Company,
				ShareClass:          r.ShareClass,
				TheoreticalQuantity: r.TheoreticalQuantity,
				WeightPercent:       decimal.New(r.WeightPercent, -WeightScale),
			},
			DaysSinceCollection:      r.DaysSinceCollection,
			TotalTheoreticalQuantity: r.TotalTheoreticalQuantity,
		})
	}
	return batch, nil
}

func scaledWeight(w decimal.Decimal) (int64, error) {
	unscaled := w.Shift(WeightScale)
	if !unscaled.IsInteger() {
		return 0, fmt.Errorf("weight %s has more than %d decimal places", w, WeightScale)
	}
	if unscaled.Abs().Cmp(decimal.New(1, weightPrecision)) >= 0 {
		return 0, fmt.Errorf("weight %s exceeds %d digits", w, weightPrecision)
	}
	return unscaled.IntPart(), nil
}
