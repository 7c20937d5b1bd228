package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vasolab/vasostore/internal/sqlite"
	"github.com/vasolab/vasostore/pkg/types"
)

// SnapshotInfo describes one published snapshot.
type SnapshotInfo struct {
	Name    string
	Index   int
	Bytes   int64
	ModTime time.Time
	Current bool
}

// snapshotNames lists published snapshot file names sorted by index.
func snapshotNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dir, snapshotsDir))
	if err != nil {
		return nil, fmt.Errorf("reading snapshots: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && snapshotIndex(e.Name()) >= 0 {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return snapshotIndex(names[i]) < snapshotIndex(names[j])
	})
	return names, nil
}

// snapshotIndex parses an index out of a snapshot file name, or -1 for names
// that are not snapshots (temp files, strays).
func snapshotIndex(name string) int {
	base, ok := strings.CutSuffix(name, snapshotExt)
	if !ok || strings.HasPrefix(name, ".") {
		return -1
	}
	n, err := strconv.Atoi(base)
	if err != nil || n < 1 {
		return -1
	}
	return n
}

func nextSnapshotIndex(dir string) (int, error) {
	names, err := snapshotNames(dir)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, name := range names {
		if idx := snapshotIndex(name); idx > max {
			max = idx
		}
	}
	return max + 1, nil
}

// ListSnapshots returns published snapshots oldest-first, marking the one
// HEAD points at.
func ListSnapshots(dir string) ([]SnapshotInfo, error) {
	if !IsBundle(dir) {
		return nil, fmt.Errorf("%s is not a project bundle: %w", dir, types.ErrInvalidFormat)
	}
	names, err := snapshotNames(dir)
	if err != nil {
		return nil, err
	}
	head, _ := readHead(dir)

	var out []SnapshotInfo
	for _, name := range names {
		info, err := os.Stat(filepath.Join(dir, snapshotsDir, name))
		if err != nil {
			return nil, fmt.Errorf("stating snapshot %s: %w", name, err)
		}
		out = append(out, SnapshotInfo{
			Name:    name,
			Index:   snapshotIndex(name),
			Bytes:   info.Size(),
			ModTime: info.ModTime(),
			Current: name == head.Current,
		})
	}
	return out, nil
}

// ValidateSnapshot integrity-checks one published snapshot by name.
func ValidateSnapshot(dir, name string) error {
	path := filepath.Join(dir, snapshotsDir, name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("snapshot %s: %w", name, types.ErrNotFound)
	}
	return sqlite.QuickCheckFile(path)
}

// Prune deletes old snapshots, retaining the newest keep of them. The HEAD
// target is verified first and is never deleted, whatever its age.
func Prune(dir string, keep int) (deleted []string, err error) {
	if keep < 1 {
		return nil, types.ErrKeepSnapshotsInvalid
	}
	head, err := readHead(dir)
	if err != nil {
		return nil, fmt.Errorf("reading head before prune: %w", err)
	}
	if _, err := os.Stat(filepath.Join(dir, snapshotsDir, head.Current)); err != nil {
		return nil, fmt.Errorf("head target %s missing, refusing to prune: %w",
			head.Current, types.ErrBundleCorrupt)
	}

	names, err := snapshotNames(dir)
	if err != nil {
		return nil, err
	}
	if len(names) <= keep {
		return nil, nil
	}
	for _, name := range names[:len(names)-keep] {
		if name == head.Current {
			continue
		}
		if err := os.Remove(filepath.Join(dir, snapshotsDir, name)); err != nil {
			return deleted, fmt.Errorf("deleting snapshot %s: %w", name, err)
		}
		deleted = append(deleted, name)
	}
	if err := syncDir(filepath.Join(dir, snapshotsDir)); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// ExportSingleFile writes the session's current state as a standalone
// single-file project at dest.
func (b *Bundle) ExportSingleFile(dest string) error {
	if b.store == nil {
		return types.ErrStoreClosed
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	return b.store.SnapshotTo(dest)
}

// CleanupStaging removes staging leftovers older than maxAge, the residue of
// crashed sessions. The bundle's own staging copy is never removed.
func (b *Bundle) CleanupStaging(maxAge time.Duration) (removed []string, err error) {
	dir := filepath.Join(b.dir, stagingDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading staging: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if path == b.staging {
			continue
		}
		info, statErr := e.Info()
		if statErr != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if rmErr := os.Remove(path); rmErr != nil {
			b.log.Warn("removing stale staging file failed", "path", path, "error", rmErr)
			continue
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}
