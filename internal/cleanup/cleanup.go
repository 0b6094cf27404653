// Package cleanup removes a run's scratch artifacts after a successful
// publish.
package cleanup

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// Cleaner deletes scratch files and, when it is left empty, the scratch
// directory.
type Cleaner struct {
	dir string
	log *slog.Logger
}

// New returns a Cleaner for files staged under dir. An empty dir disables
// directory removal.
func New(dir string, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{dir: dir, log: logger.With("component", "cleanup")}
}

// Cleanup removes every path. A path that no longer exists is not an error.
// Every path is attempted; failures are joined into the returned error.
func (c *Cleaner) Cleanup(paths []string) error {
	var errs []error
	removed := 0
	for _, p := range paths {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, fs.ErrNotExist):
			c.log.Debug("already gone", "path", p)
		default:
			errs = append(errs, fmt.Errorf("removing %s: %w", p, err))
		}
	}

	if len(errs) == 0 && c.dir != "" {
		c.removeDirIfEmpty()
	}
	c.log.Info("scratch cleaned", "removed", removed, "requested", len(paths), "failed", len(errs))
	return errors.Join(errs...)
}

func (c *Cleaner) removeDirIfEmpty() {
	entries, err := os.ReadDir(c.dir)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := os.Remove(c.dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.log.Warn("removing scratch dir", "dir", c.dir, "error", err)
	}
}
