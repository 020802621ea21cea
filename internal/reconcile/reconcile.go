// Package reconcile is the operational sweep for partial-download artifacts.
// The fetch pipeline deliberately never cleans up after a failed item, so
// orphaned *.partial files accumulate until an operator runs this pass.
package reconcile

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mediamirror/mediamirror/internal/fetch"
	"github.com/mediamirror/mediamirror/internal/infra/logger"
)

type Report struct {
	// Orphans are the partial artifacts found, as absolute-ish paths under
	// the scanned directory.
	Orphans []string

	// Removed counts how many of them were deleted (only with remove=true).
	Removed int
}

// Sweep walks dir for orphaned partial files. With remove set they are
// deleted; otherwise they are only reported.
func Sweep(dir string, remove bool, log *logger.Logger) (*Report, error) {
	report := &Report{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), fetch.PartialSuffix) {
			return nil
		}

		report.Orphans = append(report.Orphans, path)

		if remove {
			if err := os.Remove(path); err != nil {
				log.Warn("Could not remove %s: %v", path, err)
				return nil
			}
			report.Removed++
			log.Info("Removed orphaned artifact %s", path)
		} else {
			log.Info("Orphaned artifact %s", path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}
