// Package bundle implements the append-only project bundle: a directory of
// immutable database snapshots behind a HEAD pointer, a mutable staging copy
// for the open session, and an advisory writer lock. A crash at any point
// leaves the previous snapshot intact and reachable.
package bundle

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/vasolab/vasostore/internal/sqlite"
	"github.com/vasolab/vasostore/pkg/types"
)

// Bundle directory layout.
const (
	Ext          = ".vasopack"
	headFile     = "HEAD.json"
	snapshotsDir = "snapshots"
	stagingDir   = ".staging"
	lockFile     = ".lock"
	metaFile     = "project.meta.json"
	snapshotExt  = ".sqlite"
)

// headState is the JSON payload of HEAD.json.
type headState struct {
	Current string `json:"current"`
}

// metaMirror is the human-readable project.meta.json written beside the
// snapshots so file browsers can show project info without opening a
// database.
type metaMirror struct {
	Name        string `json:"name,omitempty"`
	CreatedUTC  string `json:"created_utc,omitempty"`
	ModifiedUTC string `json:"modified_utc,omitempty"`
	AppVersion  string `json:"app_version,omitempty"`
	Current     string `json:"current_snapshot"`
}

// Bundle is an open bundle session: the lock is held and all reads and writes
// go through the staging database until Save publishes a new snapshot.
type Bundle struct {
	dir     string
	cfg     types.Config
	lock    *Lock
	store   *sqlite.Store
	staging string
	log     *slog.Logger
}

// IsBundle reports whether dir looks like a project bundle.
func IsBundle(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	if _, err := os.Stat(filepath.Join(dir, headFile)); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, snapshotsDir)); err == nil {
		return true
	}
	return false
}

// Create initializes a new bundle at dir and publishes its first snapshot, so
// a crash immediately after Create still leaves an openable project.
func Create(dir string, cfg types.Config, log *slog.Logger) (*Bundle, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	for _, sub := range []string{snapshotsDir, stagingDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating bundle directory: %w", err)
		}
	}

	lock, err := acquireLock(filepath.Join(dir, lockFile), log)
	if err != nil {
		return nil, err
	}

	staging := filepath.Join(dir, stagingDir, uuid.NewString()+snapshotExt)
	store, err := sqlite.Create(staging, cfg)
	if err != nil {
		lock.Release()
		return nil, err
	}
	b := &Bundle{dir: dir, cfg: cfg, lock: lock, store: store, staging: staging, log: log}
	if err := b.Save(); err != nil {
		store.Close()
		os.Remove(staging)
		lock.Release()
		return nil, err
	}
	return b, nil
}

// InitFromFile creates a bundle at dir seeded from an existing single-file
// database, published as the first snapshot. The source file is left in
// place; no session is opened.
func InitFromFile(dir, dbPath string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	if err := sqlite.QuickCheckFile(dbPath); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(dir, snapshotsDir), 0o755); err != nil {
		return fmt.Errorf("creating bundle directory: %w", err)
	}

	lock, err := acquireLock(filepath.Join(dir, lockFile), log)
	if err != nil {
		return err
	}
	defer lock.Release()

	next, err := nextSnapshotIndex(dir)
	if err != nil {
		return err
	}
	name := snapshotName(next)
	if err := copyFileAtomic(dbPath, filepath.Join(dir, snapshotsDir, name)); err != nil {
		return err
	}
	if err := syncDir(filepath.Join(dir, snapshotsDir)); err != nil {
		return err
	}
	if err := writeJSONAtomic(filepath.Join(dir, headFile), headState{Current: name}); err != nil {
		return err
	}
	if err := mirrorFromSnapshot(dir, name); err != nil {
		log.Warn("writing project meta mirror failed", "bundle", dir, "error", err)
	}
	log.Info("published snapshot", "bundle", dir, "snapshot", name)
	return nil
}

// mirrorFromSnapshot refreshes project.meta.json from a published snapshot.
func mirrorFromSnapshot(dir, name string) error {
	s, err := sqlite.Open(filepath.Join(dir, snapshotsDir, name), types.Config{})
	if err != nil {
		return err
	}
	defer s.Close()
	meta, err := sqlite.ReadMeta(s)
	if err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(dir, metaFile), metaMirror{
		Name:        meta["project_name"],
		CreatedUTC:  meta["created_utc"],
		ModifiedUTC: meta["modified_utc"],
		AppVersion:  meta["app_version"],
		Current:     name,
	})
}

// Open acquires the bundle lock, copies the current snapshot into staging,
// and opens the copy. The published snapshots stay untouched for the whole
// session.
func Open(dir string, cfg types.Config, log *slog.Logger) (*Bundle, error) {
	cfg = cfg.Normalized()
	if log == nil {
		log = slog.Default()
	}
	if !IsBundle(dir) {
		return nil, fmt.Errorf("%s is not a project bundle: %w", dir, types.ErrInvalidFormat)
	}
	if err := os.MkdirAll(filepath.Join(dir, stagingDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	lock, err := acquireLock(filepath.Join(dir, lockFile), log)
	if err != nil {
		return nil, err
	}

	current, err := resolveCurrent(dir, log)
	if err != nil {
		lock.Release()
		return nil, err
	}

	staging := filepath.Join(dir, stagingDir, uuid.NewString()+snapshotExt)
	if err := copyFileAtomic(filepath.Join(dir, snapshotsDir, current), staging); err != nil {
		lock.Release()
		return nil, err
	}
	store, err := sqlite.Open(staging, cfg)
	if err != nil {
		os.Remove(staging)
		lock.Release()
		return nil, err
	}
	return &Bundle{dir: dir, cfg: cfg, lock: lock, store: store, staging: staging, log: log}, nil
}

// resolveCurrent returns the snapshot name HEAD points at. A missing or
// corrupt HEAD, or a HEAD whose target is gone, falls back to the newest
// snapshot that passes an integrity check and repoints HEAD at it.
func resolveCurrent(dir string, log *slog.Logger) (string, error) {
	head, err := readHead(dir)
	if err == nil {
		target := filepath.Join(dir, snapshotsDir, head.Current)
		if checkErr := sqlite.QuickCheckFile(target); checkErr == nil {
			return head.Current, nil
		}
		log.Warn("head points at unusable snapshot, scanning for fallback",
			"bundle", dir, "head", head.Current)
	} else {
		log.Warn("head unreadable, scanning for fallback", "bundle", dir, "error", err)
	}

	names, err := snapshotNames(dir)
	if err != nil {
		return "", err
	}
	for i := len(names) - 1; i >= 0; i-- {
		candidate := filepath.Join(dir, snapshotsDir, names[i])
		if checkErr := sqlite.QuickCheckFile(candidate); checkErr != nil {
			log.Warn("skipping damaged snapshot", "snapshot", names[i], "error", checkErr)
			continue
		}
		log.Warn("recovered using fallback snapshot", "bundle", dir, "snapshot", names[i])
		if werr := writeJSONAtomic(filepath.Join(dir, headFile), headState{Current: names[i]}); werr != nil {
			// The recovered snapshot is still usable this session.
			log.Warn("repointing head failed", "bundle", dir, "error", werr)
		}
		return names[i], nil
	}
	return "", fmt.Errorf("no usable snapshot in %s: %w", dir, types.ErrBundleCorrupt)
}

func readHead(dir string) (headState, error) {
	var head headState
	data, err := os.ReadFile(filepath.Join(dir, headFile))
	if err != nil {
		return head, err
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return head, fmt.Errorf("parsing head: %w", err)
	}
	if head.Current == "" {
		return head, fmt.Errorf("head names no snapshot")
	}
	return head, nil
}

// Save publishes the staging database as the next numbered snapshot and
// repoints HEAD at it. The sequence is copy, fsync, rename, head rewrite;
// interrupting it at any step leaves the previous HEAD target valid.
func (b *Bundle) Save() error {
	if b.store == nil {
		return types.ErrStoreClosed
	}
	if err := b.store.Save(); err != nil {
		return err
	}

	next, err := nextSnapshotIndex(b.dir)
	if err != nil {
		return err
	}
	name := snapshotName(next)
	if err := b.store.SnapshotTo(filepath.Join(b.dir, snapshotsDir, name)); err != nil {
		return err
	}
	if err := syncDir(filepath.Join(b.dir, snapshotsDir)); err != nil {
		return err
	}
	if err := writeJSONAtomic(filepath.Join(b.dir, headFile), headState{Current: name}); err != nil {
		return err
	}
	if err := b.writeMetaMirror(name); err != nil {
		// The snapshot is already published; a stale mirror is cosmetic.
		b.log.Warn("updating project meta mirror failed", "bundle", b.dir, "error", err)
	}
	b.log.Info("published snapshot", "bundle", b.dir, "snapshot", name)
	return nil
}

func (b *Bundle) writeMetaMirror(current string) error {
	meta, err := sqlite.ReadMeta(b.store)
	if err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(b.dir, metaFile), metaMirror{
		Name:        meta["project_name"],
		CreatedUTC:  meta["created_utc"],
		ModifiedUTC: meta["modified_utc"],
		AppVersion:  meta["app_version"],
		Current:     current,
	})
}

// Store returns the open staging database for row-level operations.
func (b *Bundle) Store() *sqlite.Store { return b.store }

// Dir returns the bundle directory.
func (b *Bundle) Dir() string { return b.dir }

// Close discards the staging copy and releases the lock. Unsaved changes in
// staging are lost, which is the point: only Save publishes.
func (b *Bundle) Close() error {
	if b.store == nil {
		return nil
	}
	err := b.store.Close()
	b.store = nil
	if rmErr := os.Remove(b.staging); rmErr != nil && !os.IsNotExist(rmErr) {
		b.log.Warn("removing staging copy failed", "path", b.staging, "error", rmErr)
	}
	if relErr := b.lock.Release(); relErr != nil && err == nil {
		err = relErr
	}
	return err
}

func snapshotName(index int) string {
	return fmt.Sprintf("%06d%s", index, snapshotExt)
}
