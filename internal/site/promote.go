package site

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/deepankarm/docver/internal/logfields"
)

// PromoteLatest moves the latest version's output to the site root, so the
// latest docs are served without a version prefix. Root entries with the same
// name are replaced; the emptied version directory is removed.
func PromoteLatest(outputDir, latest string) error {
	versionDir := filepath.Join(outputDir, latest)
	if _, err := os.Stat(versionDir); err != nil {
		return fmt.Errorf("latest version %s has no build output: %w", latest, err)
	}

	entries, err := os.ReadDir(versionDir)
	if err != nil {
		return fmt.Errorf("read %s: %w", versionDir, err)
	}

	for _, entry := range entries {
		dst := filepath.Join(outputDir, entry.Name())
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("remove stale %s: %w", dst, err)
		}
		if err := os.Rename(filepath.Join(versionDir, entry.Name()), dst); err != nil {
			return fmt.Errorf("move %s to site root: %w", entry.Name(), err)
		}
	}

	if err := os.Remove(versionDir); err != nil {
		return fmt.Errorf("remove emptied version directory: %w", err)
	}

	slog.Info("Promoted latest version to site root", logfields.Version(latest))
	return nil
}
