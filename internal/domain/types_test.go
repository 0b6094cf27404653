package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTypesExist(t *testing.T) {
	rec := CompositionRecord{}
	if rec.Symbol != "" || rec.ShareClass != "" {
		t.Error("expected empty text fields for zero-value CompositionRecord")
	}
	if rec.TheoreticalQuantity != 0 {
		t.Error("expected zero TheoreticalQuantity for zero-value CompositionRecord")
	}
	if !rec.WeightPercent.IsZero() {
		t.Error("expected zero WeightPercent for zero-value CompositionRecord")
	}

	batch := CollectionBatch{}
	if batch.Len() != 0 {
		t.Errorf("zero-value batch Len = %d, want 0", batch.Len())
	}
	if batch.TotalQuantity() != 0 {
		t.Errorf("zero-value batch TotalQuantity = %d, want 0", batch.TotalQuantity())
	}
}

func TestBatchHelpers(t *testing.T) {
	batch := CollectionBatch{
		CollectionDate: time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC),
		Records: []EnrichedRecord{
			{CompositionRecord: CompositionRecord{Symbol: "PETR4", TheoreticalQuantity: 1000, WeightPercent: decimal.RequireFromString("5.0")}},
			{CompositionRecord: CompositionRecord{Symbol: "VALE3", TheoreticalQuantity: 250, WeightPercent: decimal.RequireFromString("1.5")}},
		},
	}

	if got := batch.DateKey(); got != "20250307" {
		t.Errorf("DateKey = %q, want %q", got, "20250307")
	}
	if got := batch.TotalQuantity(); got != 1250 {
		t.Errorf("TotalQuantity = %d, want %d", got, 1250)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("connection refused")

	var fe error = &FetchError{URL: "http://example.invalid", Err: cause}
	if !errors.Is(fe, cause) {
		t.Error("FetchError should unwrap to its cause")
	}

	se := &SerializationError{Err: ErrEmptyBatch}
	if !errors.Is(se, ErrEmptyBatch) {
		t.Error("SerializationError should unwrap to ErrEmptyBatch")
	}

	pe := &PublishError{Key: "raw/20250307/ibov.parquet", Err: cause}
	var target *PublishError
	if !errors.As(error(pe), &target) || target.Key != "raw/20250307/ibov.parquet" {
		t.Error("errors.As should recover the PublishError key")
	}

	ve := &ValidationError{Row: 3, Symbol: "VALE3", Reason: "non-positive theoretical quantity"}
	if ve.Error() != "row 3 (VALE3): non-positive theoretical quantity" {
		t.Errorf("ValidationError.Error() = %q", ve.Error())
	}
}
