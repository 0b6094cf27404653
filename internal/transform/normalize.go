// Package transform cleans a scraped collection batch and converts it to and
// from its Parquet artifact.
package transform

import (
	"strings"
	"time"

	"ibovtech/internal/domain"
)

// Normalize returns a cleaned copy of batch. See NormalizeReport for the rules;
// dropped rows are discarded silently.
func Normalize(batch domain.CollectionBatch) domain.CollectionBatch {
	out, _ := NormalizeReport(batch)
	return out
}

// NormalizeReport cleans batch and reports every row it dropped.
//
// Text fields are trimmed, symbol and share class are upper-cased and runs of
// whitespace inside names are collapsed. Weights are rounded to WeightScale
// decimal places. Rows with a non-positive theoretical quantity or an empty
// symbol are dropped, as are repeated (symbol, share
// class) pairs after the first. Every kept row is stamped with the batch total
// and a zero DaysSinceCollection. The input is not modified, and normalizing
// an already normalized batch returns an equal batch.
func NormalizeReport(batch domain.CollectionBatch) (domain.CollectionBatch, []*domain.ValidationError) {
	type key struct{ symbol, class string }

	out := domain.CollectionBatch{
		CollectionDate: batch.CollectionDate,
		SourceURL:      strings.TrimSpace(batch.SourceURL),
		Records:        make([]domain.EnrichedRecord, 0, len(batch.Records)),
	}
	var dropped []*domain.ValidationError
	seen := make(map[key]struct{}, len(batch.Records))

	for i, r := range batch.Records {
		rec := domain.CompositionRecord{
			Symbol:              strings.ToUpper(strings.TrimSpace(r.Symbol)),
			Company:             collapseSpaces(r.Company),
			ShareClass:          strings.ToUpper(collapseSpaces(r.ShareClass)),
			TheoreticalQuantity: r.TheoreticalQuantity,
			WeightPercent:       r.WeightPercent.Round(WeightScale),
		}
		row := i + 1

		switch {
		case rec.Symbol == "":
			dropped = append(dropped, &domain.ValidationError{Row: row, Reason: "empty symbol"})
			continue
		case rec.TheoreticalQuantity <= 0:
			dropped = append(dropped, &domain.ValidationError{
				Row: row, Symbol: rec.Symbol, Reason: "theoretical quantity must be positive",
			})
			continue
		}

		k := key{rec.Symbol, rec.ShareClass}
		if _, dup := seen[k]; dup {
			dropped = append(dropped, &domain.ValidationError{Row: row, Symbol: rec.Symbol, Reason: "duplicate row"})
			continue
		}
		seen[k] = struct{}{}

		out.Records = append(out.Records, domain.EnrichedRecord{
			CompositionRecord:   rec,
			DaysSinceCollection: DaysSince(batch.CollectionDate, batch.CollectionDate),
		})
	}

	total := out.TotalQuantity()
	for i := range out.Records {
		out.Records[i].TotalTheoreticalQuantity = total
	}
	return out, dropped
}

// DaysSince returns the number of whole calendar days from collected to asOf,
// comparing dates in collected's location. It is zero for the same day and
// never negative.
func DaysSince(collected, asOf time.Time) int64 {
	loc := collected.Location()
	a := asOf.In(loc)
	from := time.Date(collected.Year(), collected.Month(), collected.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	days := int64(to.Sub(from).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
