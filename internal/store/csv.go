package store

import (
	"encoding/csv"
	"os"
	"strconv"

	"ibovtech/internal/domain"
)

var csvHeader = []string{
	"symbol", "company", "share_class", "theoretical_quantity", "weight_percent", "collection_date",
}

// writeCSVFile writes the batch rows as CSV with a header line.
func writeCSVFile(path string, batch domain.CollectionBatch) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	date := batch.DateKey()
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return err
	}
	for _, r := range batch.Records {
		row := []string{
			r.Symbol,
			r.Company,
			r.ShareClass,
			strconv.FormatInt(r.TheoreticalQuantity, 10),
			r.WeightPercent.String(),
			date,
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
