package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vasolab/vasostore/pkg/types"
)

// Store is an open handle over a single-file project database. One process
// holds at most one writable Store per file; the connection pool is pinned
// to a single connection to match the single-writer model.
type Store struct {
	path      string
	db        *sql.DB
	chunkSize int64
}

// Create initializes a new project file at path, writing the schema,
// schema-version, and app/timezone meta, and returns an open handle.
func Create(path string, cfg types.Config) (*Store, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating project directory: %w", err)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, db: db, chunkSize: cfg.ChunkSize}
	if err := s.ensureSchema(cfg.AppVersion, cfg.Timezone); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Open opens an existing project file. A file whose schema version is behind
// the current one is migrated in order before the handle is returned; a file
// from a newer build fails with ErrSchemaTooNew.
func Open(path string, cfg types.Config) (*Store, error) {
	cfg = cfg.Normalized()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("project file: %w", err)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, db: db, chunkSize: cfg.ChunkSize}

	version, err := s.userVersion()
	if err != nil {
		db.Close()
		return nil, err
	}
	switch {
	case version == 0:
		// A bare database; initialise it now.
		if err := s.ensureSchema(cfg.AppVersion, cfg.Timezone); err != nil {
			db.Close()
			return nil, err
		}
	case version < SchemaVersion:
		if err := s.runMigrations(version); err != nil {
			db.Close()
			return nil, err
		}
	case version > SchemaVersion:
		db.Close()
		return nil, fmt.Errorf("file version %d, supported %d: %w",
			version, SchemaVersion, types.ErrSchemaTooNew)
	}
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Single connection: PRAGMAs are per-connection and the store is
	// single-writer by contract.
	db.SetMaxOpenConns(1)
	for _, pragma := range pragmaDDL {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma: %w", err)
		}
	}
	return db, nil
}

// Path returns the on-disk location of the store file.
func (s *Store) Path() string { return s.path }

// Dir returns the directory containing the store file, the base for
// resolving external asset paths.
func (s *Store) Dir() string { return filepath.Dir(s.path) }

// ChunkSize returns the embedded-blob chunk size in effect.
func (s *Store) ChunkSize() int64 { return s.chunkSize }

// DB exposes the underlying handle for sibling packages (bundle snapshots,
// pack rewrites). Not part of the caller-facing API.
func (s *Store) DB() *sql.DB { return s.db }

// Save commits pending writes, updates modified_utc, checkpoints the WAL
// fully into the main file, and runs an optimize pass so the file on disk is
// immediately complete for other readers.
func (s *Store) Save() error {
	if s.db == nil {
		return types.ErrStoreClosed
	}
	if err := s.WriteMeta(map[string]string{"modified_utc": utcNow()}); err != nil {
		return err
	}
	if _, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE);`); err != nil {
		return fmt.Errorf("checkpointing: %w", err)
	}
	if _, err := s.db.Exec(`PRAGMA optimize;`); err != nil {
		return fmt.Errorf("optimizing: %w", err)
	}
	return nil
}

// SaveAs persists the store to newPath atomically (write to temp, rename
// over) and retargets the handle to the new location.
func (s *Store) SaveAs(newPath string) error {
	if s.db == nil {
		return types.ErrStoreClosed
	}
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}
	if err := s.SnapshotTo(newPath); err != nil {
		return err
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing old connection: %w", err)
	}
	db, err := openDB(newPath)
	if err != nil {
		return err
	}
	s.db = db
	s.path = newPath
	return nil
}

// SnapshotTo writes a complete, consistent copy of the store to dest using
// VACUUM INTO against a temp name followed by an atomic rename. The
// destination never appears half-written.
func (s *Store) SnapshotTo(dest string) error {
	if s.db == nil {
		return types.ErrStoreClosed
	}
	tmp := dest + ".tmp"
	_ = os.Remove(tmp) // VACUUM INTO refuses an existing file
	if _, err := s.db.Exec(`VACUUM INTO ?;`, tmp); err != nil {
		return fmt.Errorf("writing snapshot copy: %w", err)
	}
	if err := fsyncFile(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publishing snapshot copy: %w", err)
	}
	return nil
}

// Close releases the database handle. Idempotent.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

// ensureSchema creates all schema objects, stamps the schema version, and
// seeds project metadata defaults.
func (s *Store) ensureSchema(appVersion, timezone string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ddl := range schemaDDL {
		if _, err := tx.Exec(ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := tx.Exec(ddl); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}

	now := utcNow()
	meta := map[string]string{
		"created_utc":  now,
		"modified_utc": now,
	}
	if appVersion != "" {
		meta["app_version"] = appVersion
	}
	if timezone != "" {
		meta["timezone"] = timezone
	}
	if err := writeMetaTx(tx, meta); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema: %w", err)
	}
	// user_version cannot be set inside a transaction with a bound arg.
	return s.setUserVersion(SchemaVersion)
}

// runMigrations advances the schema from version start to SchemaVersion.
// Version 0 is a bare file and gets the full schema; other gaps have no
// path yet.
func (s *Store) runMigrations(start int) error {
	version := start
	for version < SchemaVersion {
		switch version {
		case 0:
			if err := s.ensureSchema("", ""); err != nil {
				return err
			}
			version = SchemaVersion
		default:
			return fmt.Errorf("no migration path from schema version %d to %d", version, SchemaVersion)
		}
	}
	return s.setUserVersion(SchemaVersion)
}

func (s *Store) userVersion() (int, error) {
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version;`).Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

func (s *Store) setUserVersion(version int) error {
	if _, err := s.db.Exec(fmt.Sprintf(`PRAGMA user_version = %d;`, version)); err != nil {
		return fmt.Errorf("setting schema version: %w", err)
	}
	return nil
}

// IntegrityOK runs PRAGMA quick_check and reports whether the file passes.
func (s *Store) IntegrityOK() bool {
	var status string
	if err := s.db.QueryRow(`PRAGMA quick_check;`).Scan(&status); err != nil {
		return false
	}
	return status == "ok"
}

// fsyncFile forces file contents to disk before a rename publishes them.
func fsyncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening for fsync: %w", err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("fsync: %w", err)
	}
	return nil
}

// utcNow returns the timestamp format used across the meta and row tables.
func utcNow() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}
