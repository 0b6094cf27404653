package store

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ibovtech/internal/domain"
	"ibovtech/internal/transform"
)

func testBatch() domain.CollectionBatch {
	return transform.Normalize(domain.CollectionBatch{
		CollectionDate: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
		SourceURL:      "https://example.test/ibov",
		Records: []domain.EnrichedRecord{
			{CompositionRecord: domain.CompositionRecord{
				Symbol: "PETR4", Company: "PETROBRAS", ShareClass: "PN",
				TheoreticalQuantity: 600, WeightPercent: decimal.RequireFromString("6.5"),
			}},
			{CompositionRecord: domain.CompositionRecord{
				Symbol: "VALE3", Company: "VALE, S.A.", ShareClass: "ON",
				TheoreticalQuantity: 400, WeightPercent: decimal.RequireFromString("4.25"),
			}},
		},
	})
}

func TestScratchStorePath(t *testing.T) {
	ss := NewScratchStore("/data")

	if got, want := ss.csvPath("20240614"), filepath.Join("/data", "ibov_20240614.csv"); got != want {
		t.Errorf("csvPath mismatch:\n  got  %s\n  want %s", got, want)
	}
	if got, want := ss.parquetPath("20240614"), filepath.Join("/data", "ibov_20240614.parquet"); got != want {
		t.Errorf("parquetPath mismatch:\n  got  %s\n  want %s", got, want)
	}
	if ss.Dir() != "/data" {
		t.Errorf("Dir() = %q, want /data", ss.Dir())
	}
}

func TestScratchStoreStage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scratch")
	ss := NewScratchStore(dir)
	batch := testBatch()

	payload, err := transform.Serialize(batch)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	paths, err := ss.Stage(batch, payload)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("Stage returned %d paths, want 2", len(paths))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("staged file %s missing: %v", p, err)
		}
	}

	f, err := os.Open(paths[0])
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("csv has %d rows, want 3 (header + 2)", len(rows))
	}
	if rows[0][0] != "symbol" {
		t.Errorf("csv header = %v", rows[0])
	}
	if rows[2][1] != "VALE, S.A." || rows[2][4] != "4.25" || rows[2][5] != "20240614" {
		t.Errorf("csv row = %v", rows[2])
	}

	got, err := ReadArtifact(paths[1])
	if err != nil {
		t.Fatalf("ReadArtifact: %v", err)
	}
	if got.Len() != 2 || got.DateKey() != "20240614" {
		t.Errorf("ReadArtifact returned %d records for %s", got.Len(), got.DateKey())
	}
	if got.Records[0].TotalTheoreticalQuantity != 1000 {
		t.Errorf("total = %d, want 1000", got.Records[0].TotalTheoreticalQuantity)
	}
}

func TestScratchStoreStageOverwrites(t *testing.T) {
	ss := NewScratchStore(t.TempDir())
	batch := testBatch()

	if _, err := ss.Stage(batch, []byte("first")); err != nil {
		t.Fatalf("Stage (first): %v", err)
	}
	paths, err := ss.Stage(batch, []byte("second"))
	if err != nil {
		t.Fatalf("Stage (second): %v", err)
	}

	data, err := os.ReadFile(paths[1])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("staged payload = %q, want %q", data, "second")
	}

	entries, err := os.ReadDir(ss.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("scratch dir has %d entries, want 2 (no temp files left)", len(entries))
	}
}

func TestSQLiteLedgerOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "runs.db")

	ledger, err := NewSQLiteLedger(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteLedger(%q) returned error: %v", dbPath, err)
	}
	defer func() {
		if cerr := ledger.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	}()

	if err := ledger.db.Ping(); err != nil {
		t.Fatalf("db.Ping() returned error: %v", err)
	}
}

func TestSQLiteLedgerRecordAndList(t *testing.T) {
	ledger, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteLedger: %v", err)
	}
	defer ledger.Close()
	ctx := context.Background()

	base := time.Date(2024, 6, 14, 23, 0, 0, 0, time.UTC)
	runs := []RunRecord{
		{ID: "a", StartedAt: base, FinishedAt: base.Add(time.Second), CollectionDate: "20240614",
			State: "done", Records: 2, Bucket: "b", Key: "raw/20240614/ibov_composition.parquet", Size: 512},
		{ID: "b", StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + 500*time.Millisecond),
			CollectionDate: "20240614", State: "failed", FailedStage: "publishing", Error: "publish: boom"},
		{ID: "c", StartedAt: base.Add(24 * time.Hour), FinishedAt: base.Add(24 * time.Hour),
			State: "failed", FailedStage: "fetching", Error: "fetch: timeout"},
	}
	for _, r := range runs {
		if err := ledger.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun(%s): %v", r.ID, err)
		}
	}

	got, err := ledger.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("ListRuns(2) = %+v, want [c b]", got)
	}
	if got[1].Duration() != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", got[1].Duration())
	}

	all, err := ledger.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns(0): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListRuns(0) returned %d runs, want 3", len(all))
	}

	last, err := ledger.LastSuccess(ctx, "20240614")
	if err != nil {
		t.Fatalf("LastSuccess: %v", err)
	}
	if last == nil || last.ID != "a" || last.Size != 512 || !last.Succeeded() {
		t.Errorf("LastSuccess = %+v, want run a", last)
	}

	none, err := ledger.LastSuccess(ctx, "20240617")
	if err != nil || none != nil {
		t.Errorf("LastSuccess(no runs) = %+v, %v; want nil, nil", none, err)
	}
}

func TestSQLiteLedgerReplace(t *testing.T) {
	ledger, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteLedger: %v", err)
	}
	defer ledger.Close()
	ctx := context.Background()

	now := time.Now()
	r := RunRecord{ID: "x", StartedAt: now, FinishedAt: now, State: "fetching"}
	if err := ledger.RecordRun(ctx, r); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	r.State = "done"
	if err := ledger.RecordRun(ctx, r); err != nil {
		t.Fatalf("RecordRun (replace): %v", err)
	}

	got, err := ledger.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(got) != 1 || got[0].State != "done" {
		t.Errorf("ListRuns = %+v, want one run in state done", got)
	}
	if !got[0].StartedAt.Equal(now) {
		t.Errorf("StartedAt = %v, want %v", got[0].StartedAt, now)
	}
}
