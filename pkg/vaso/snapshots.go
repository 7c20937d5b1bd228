package vaso

import (
	"log/slog"

	"github.com/vasolab/vasostore/internal/bundle"
	"github.com/vasolab/vasostore/pkg/types"
)

// SnapshotInfo describes one published bundle snapshot.
type SnapshotInfo = bundle.SnapshotInfo

// ListSnapshots returns a bundle's published snapshots, oldest first, with
// the HEAD target marked current.
func ListSnapshots(bundleDir string) ([]SnapshotInfo, error) {
	return bundle.ListSnapshots(bundleDir)
}

// ValidateSnapshot integrity-checks one named snapshot.
func ValidateSnapshot(bundleDir, name string) error {
	return bundle.ValidateSnapshot(bundleDir, name)
}

// PruneSnapshots deletes all but the keep newest snapshots, never touching
// the one HEAD references. Returns the deleted names.
func PruneSnapshots(bundleDir string, keep int) ([]string, error) {
	return bundle.Prune(bundleDir, keep)
}

// Snapshot publishes the bundle's current state as a new snapshot without
// changing any rows, useful as a manual checkpoint.
func Snapshot(bundleDir string, cfg types.Config, log *slog.Logger) error {
	b, err := bundle.Open(bundleDir, withVersion(cfg), log)
	if err != nil {
		return err
	}
	defer b.Close()
	return b.Save()
}

// ExportSingleFile writes a bundle's current state as a standalone
// single-file project at dest.
func ExportSingleFile(bundleDir, dest string, cfg types.Config, log *slog.Logger) error {
	b, err := bundle.Open(bundleDir, withVersion(cfg), log)
	if err != nil {
		return err
	}
	defer b.Close()
	return b.ExportSingleFile(dest)
}
