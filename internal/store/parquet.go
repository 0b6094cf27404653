package store

import (
	"fmt"
	"os"
	"path/filepath"

	"ibovtech/internal/domain"
	"ibovtech/internal/transform"
)

// Compile-time interface check.
var _ Scratch = (*ScratchStore)(nil)

// ScratchStore implements Scratch using plain files under a directory.
type ScratchStore struct {
	DataDir string
}

// NewScratchStore creates a ScratchStore rooted at the given data directory.
func NewScratchStore(dataDir string) *ScratchStore {
	return &ScratchStore{DataDir: dataDir}
}

// Dir returns the scratch directory.
func (s *ScratchStore) Dir() string { return s.DataDir }

// Stage writes the batch to:
//
//	<DataDir>/ibov_<YYYYMMDD>.csv
//	<DataDir>/ibov_<YYYYMMDD>.parquet
//
// Existing files for the same date are overwritten. On error the paths
// written so far are still returned.
func (s *ScratchStore) Stage(batch domain.CollectionBatch, payload []byte) ([]string, error) {
	if err := os.MkdirAll(s.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}

	var paths []string
	date := batch.DateKey()

	csvPath := s.csvPath(date)
	if err := writeCSVFile(csvPath, batch); err != nil {
		return paths, fmt.Errorf("writing %s: %w", csvPath, err)
	}
	paths = append(paths, csvPath)

	pqPath := s.parquetPath(date)
	if err := writeFileAtomic(pqPath, payload); err != nil {
		return paths, fmt.Errorf("writing %s: %w", pqPath, err)
	}
	paths = append(paths, pqPath)

	return paths, nil
}

// ReadArtifact loads a Parquet artifact from disk.
func ReadArtifact(path string) (domain.CollectionBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.CollectionBatch{}, err
	}
	batch, err := transform.Deserialize(data, nil)
	if err != nil {
		return domain.CollectionBatch{}, fmt.Errorf("%s: %w", path, err)
	}
	return batch, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// csvPath returns the path of the raw CSV snapshot for a date.
func (s *ScratchStore) csvPath(date string) string {
	return filepath.Join(s.DataDir, "ibov_"+date+".csv")
}

// parquetPath returns the path of the staged Parquet artifact for a date.
func (s *ScratchStore) parquetPath(date string) string {
	return filepath.Join(s.DataDir, "ibov_"+date+".parquet")
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
