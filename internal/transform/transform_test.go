package transform

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ibovtech/internal/domain"
)

var saoPaulo = time.FixedZone("BRT", -3*60*60)

func rec(symbol, class string, qty int64, weight string) domain.EnrichedRecord {
	return domain.EnrichedRecord{CompositionRecord: domain.CompositionRecord{
		Symbol:              symbol,
		Company:             symbol + " SA",
		ShareClass:          class,
		TheoreticalQuantity: qty,
		WeightPercent:       decimal.RequireFromString(weight),
	}}
}

func sampleBatch(records ...domain.EnrichedRecord) domain.CollectionBatch {
	return domain.CollectionBatch{
		CollectionDate: time.Date(2025, 3, 7, 0, 0, 0, 0, saoPaulo),
		SourceURL:      "https://example.test/ibov",
		Records:        records,
	}
}

func TestNormalizeDropsNonPositiveQuantity(t *testing.T) {
	in := sampleBatch(
		rec("PETR4", "PN", 600, "6.0"),
		rec("VALE3", "ON", 400, "4.0"),
		rec("XXXX3", "ON", -10, "0.1"),
	)

	out, dropped := NormalizeReport(in)

	if len(out.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(out.Records))
	}
	if out.Records[0].Symbol != "PETR4" || out.Records[1].Symbol != "VALE3" {
		t.Errorf("symbols = %s, %s; want PETR4, VALE3", out.Records[0].Symbol, out.Records[1].Symbol)
	}
	for _, r := range out.Records {
		if r.TotalTheoreticalQuantity != 1000 {
			t.Errorf("%s total = %d, want 1000", r.Symbol, r.TotalTheoreticalQuantity)
		}
		if r.DaysSinceCollection != 0 {
			t.Errorf("%s days since collection = %d, want 0", r.Symbol, r.DaysSinceCollection)
		}
	}

	if len(dropped) != 1 {
		t.Fatalf("got %d dropped rows, want 1", len(dropped))
	}
	if dropped[0].Symbol != "XXXX3" || dropped[0].Row != 3 {
		t.Errorf("dropped = %+v, want XXXX3 at row 3", dropped[0])
	}

	// Input is left untouched.
	if len(in.Records) != 3 || in.Records[0].TotalTheoreticalQuantity != 0 {
		t.Error("NormalizeReport modified its input")
	}
}

func TestNormalizeCleansText(t *testing.T) {
	r := rec("  petr4 ", " pn  edj n2 ", 10, "1.5")
	r.Company = "  PETROLEO   BRASILEIRO\tSA "
	out := Normalize(sampleBatch(r))

	if len(out.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(out.Records))
	}
	got := out.Records[0]
	if got.Symbol != "PETR4" {
		t.Errorf("Symbol = %q, want %q", got.Symbol, "PETR4")
	}
	if got.ShareClass != "PN EDJ N2" {
		t.Errorf("ShareClass = %q, want %q", got.ShareClass, "PN EDJ N2")
	}
	if got.Company != "PETROLEO BRASILEIRO SA" {
		t.Errorf("Company = %q, want %q", got.Company, "PETROLEO BRASILEIRO SA")
	}
}

func TestNormalizeRemovesDuplicates(t *testing.T) {
	out, dropped := NormalizeReport(sampleBatch(
		rec("ITUB4", "PN", 100, "2.0"),
		rec("itub4", "pn", 999, "9.0"),
		rec("ITUB3", "ON", 50, "1.0"),
		rec("", "ON", 50, "1.0"),
	))

	if len(out.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(out.Records))
	}
	if q := out.Records[0].TheoreticalQuantity; q != 100 {
		t.Errorf("first ITUB4 quantity = %d, want 100 (first occurrence kept)", q)
	}
	if total := out.Records[0].TotalTheoreticalQuantity; total != 150 {
		t.Errorf("total = %d, want 150", total)
	}
	if len(dropped) != 2 {
		t.Errorf("got %d dropped rows, want 2", len(dropped))
	}
}

func TestNormalizeSumInvariant(t *testing.T) {
	out := Normalize(sampleBatch(
		rec("A", "ON", 1, "0.1"),
		rec("B", "ON", 20, "0.2"),
		rec("C", "PN", 300, "0.3"),
		rec("D", "PN", 0, "0.4"),
		rec("E", "UNT", 4000, "0.5"),
	))

	var sum int64
	for _, r := range out.Records {
		sum += r.TheoreticalQuantity
	}
	if sum != 4321 {
		t.Errorf("sum = %d, want 4321", sum)
	}
	for _, r := range out.Records {
		if r.TotalTheoreticalQuantity != sum {
			t.Errorf("%s total = %d, want %d", r.Symbol, r.TotalTheoreticalQuantity, sum)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	once := Normalize(sampleBatch(
		rec(" bbas3", "on  nm", 70, "3.3"),
		rec("BBAS3", "ON NM", 70, "3.3"),
		rec("WEGE3", "ON", -1, "1.0"),
		rec("WEGE3", "ON", 30, "1.0"),
	))
	twice := Normalize(once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Normalize is not idempotent:\nonce  = %+v\ntwice = %+v", once, twice)
	}
}

func TestNormalizeRoundsWeight(t *testing.T) {
	out := Normalize(sampleBatch(rec("PETR4", "PN", 10, "1.23456789012345678")))

	want := decimal.RequireFromString("1.23456789")
	if got := out.Records[0].WeightPercent; !got.Equal(want) {
		t.Errorf("WeightPercent = %s, want %s", got, want)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	out := Normalize(sampleBatch())
	if out.Len() != 0 {
		t.Errorf("Len() = %d, want 0", out.Len())
	}
	if out.Records == nil {
		t.Error("Records should be non-nil for an empty batch")
	}
}

func TestDaysSince(t *testing.T) {
	collected := time.Date(2025, 3, 7, 0, 0, 0, 0, saoPaulo)

	tests := []struct {
		name string
		asOf time.Time
		want int64
	}{
		{"same instant", collected, 0},
		{"same day", collected.Add(23 * time.Hour), 0},
		{"next monday", time.Date(2025, 3, 10, 9, 0, 0, 0, saoPaulo), 3},
		{"before collection", collected.AddDate(0, 0, -2), 0},
	}
	for _, tt := range tests {
		if got := DaysSince(collected, tt.asOf); got != tt.want {
			t.Errorf("%s: DaysSince = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	in := Normalize(sampleBatch(
		rec("PETR4", "PN", 4520311346, "7.812"),
		rec("VALE3", "ON", 4196924316, "11.005"),
		rec("ITUB4", "PN", 4801782635, "8.12345678"),
		rec("ABEV3", "ON", 4394835131, "99.99999999"),
	))

	data, err := Serialize(in)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Serialize returned no data")
	}

	out, err := Deserialize(data, saoPaulo)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if !in.CollectionDate.Equal(out.CollectionDate) || in.DateKey() != out.DateKey() {
		t.Errorf("collection date = %v, want %v", out.CollectionDate, in.CollectionDate)
	}
	if out.SourceURL != in.SourceURL {
		t.Errorf("SourceURL = %q, want %q", out.SourceURL, in.SourceURL)
	}
	if len(out.Records) != len(in.Records) {
		t.Fatalf("got %d records, want %d", len(out.Records), len(in.Records))
	}
	for i := range in.Records {
		want, got := in.Records[i], out.Records[i]
		if got.CompositionRecord.Symbol != want.Symbol ||
			got.Company != want.Company ||
			got.ShareClass != want.ShareClass ||
			got.TheoreticalQuantity != want.TheoreticalQuantity ||
			got.DaysSinceCollection != want.DaysSinceCollection ||
			got.TotalTheoreticalQuantity != want.TotalTheoreticalQuantity {
			t.Errorf("record %d = %+v, want %+v", i, got, want)
		}
		if !want.WeightPercent.Equal(got.WeightPercent) {
			t.Errorf("%s weight = %s, want %s", want.Symbol, got.WeightPercent, want.WeightPercent)
		}
	}
}

func TestSerializeRejectsUnrepresentableWeight(t *testing.T) {
	for _, weight := range []string{"1.234567891", "12345678901.5"} {
		_, err := Serialize(sampleBatch(rec("PETR4", "PN", 10, weight)))

		var se *domain.SerializationError
		if !errors.As(err, &se) {
			t.Errorf("Serialize(weight %s) error = %v, want *domain.SerializationError", weight, err)
		}
	}
}

func TestSerializeEmptyBatch(t *testing.T) {
	_, err := Serialize(sampleBatch())

	var se *domain.SerializationError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *domain.SerializationError", err)
	}
	if !errors.Is(err, domain.ErrEmptyBatch) {
		t.Errorf("error = %v, want ErrEmptyBatch", err)
	}
}

func TestDeserializeGarbage(t *testing.T) {
	if _, err := Deserialize([]byte("not parquet"), nil); err == nil {
		t.Error("Deserialize of garbage should fail")
	}
}
