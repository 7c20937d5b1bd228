// Package sqlite implements the single-file relational project store. One
// SQLite database holds a project's datasets, dense trace rows, sparse event
// rows, content-addressed assets with chunked blob storage, versioned
// analysis results, and a project-level key/value meta table.
package sqlite

// SchemaVersion is the current on-disk schema version, carried in the
// database's user_version pragma. Files with a higher version are refused.
const SchemaVersion = 1

// MagicHeader is the fixed 16-byte prefix of every single-file project
// (SQLite's own file magic).
const MagicHeader = "SQLite format 3\x00"

// DefaultFileExt is the conventional extension for single-file projects.
const DefaultFileExt = ".vaso"

// Schema DDL. Trace and blob_chunk are WITHOUT ROWID so their composite
// primary keys double as the clustered order used by range scans and chunk
// reassembly.
const (
	createMeta = `CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

	createDataset = `CREATE TABLE IF NOT EXISTS dataset (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    created_utc TEXT NOT NULL,
    notes TEXT,
    fps REAL,
    pixel_size_um REAL,
    t0_seconds REAL DEFAULT 0,
    extra_json TEXT
);`

	createTrace = `CREATE TABLE IF NOT EXISTS trace (
    dataset_id INTEGER NOT NULL REFERENCES dataset(id) ON DELETE CASCADE,
    t_seconds REAL NOT NULL,
    inner_diam REAL,
    outer_diam REAL,
    p_avg REAL,
    p1 REAL,
    p2 REAL,
    PRIMARY KEY (dataset_id, t_seconds)
) WITHOUT ROWID;`

	createEvent = `CREATE TABLE IF NOT EXISTS event (
    id INTEGER PRIMARY KEY,
    dataset_id INTEGER NOT NULL REFERENCES dataset(id) ON DELETE CASCADE,
    t_seconds REAL NOT NULL,
    label TEXT NOT NULL,
    frame INTEGER,
    p_avg REAL,
    p1 REAL,
    p2 REAL,
    temp REAL,
    extra_json TEXT
);`

	createAsset = `CREATE TABLE IF NOT EXISTS asset (
    id INTEGER PRIMARY KEY,
    dataset_id INTEGER NOT NULL REFERENCES dataset(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    storage TEXT NOT NULL,
    rel_path TEXT,
    sha256 TEXT NOT NULL,
    bytes INTEGER,
    mime TEXT
);`

	createBlobChunk = `CREATE TABLE IF NOT EXISTS blob_chunk (
    asset_id INTEGER NOT NULL REFERENCES asset(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    data BLOB NOT NULL,
    PRIMARY KEY (asset_id, seq)
) WITHOUT ROWID;`

	createResult = `CREATE TABLE IF NOT EXISTS result (
    id INTEGER PRIMARY KEY,
    dataset_id INTEGER NOT NULL REFERENCES dataset(id) ON DELETE CASCADE,
    kind TEXT NOT NULL,
    version TEXT NOT NULL,
    created_utc TEXT NOT NULL,
    payload_json TEXT NOT NULL
);`

	createThumbnail = `CREATE TABLE IF NOT EXISTS thumbnail (
    dataset_id INTEGER PRIMARY KEY REFERENCES dataset(id) ON DELETE CASCADE,
    png BLOB NOT NULL
);`
)

// Index DDL for the range and lookup queries the store issues.
const (
	idxTraceRange  = `CREATE INDEX IF NOT EXISTS trace_ds_t ON trace(dataset_id, t_seconds);`
	idxEventRange  = `CREATE INDEX IF NOT EXISTS event_ds_t ON event(dataset_id, t_seconds);`
	idxAssetRole   = `CREATE UNIQUE INDEX IF NOT EXISTS asset_ds_role ON asset(dataset_id, role);`
	idxResultKind  = `CREATE INDEX IF NOT EXISTS result_ds_kind ON result(dataset_id, kind);`
	idxDatasetName = `CREATE INDEX IF NOT EXISTS dataset_name ON dataset(name);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createMeta,
	createDataset,
	createTrace,
	createEvent,
	createAsset,
	createBlobChunk,
	createResult,
	createThumbnail,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxTraceRange,
	idxEventRange,
	idxAssetRole,
	idxResultKind,
	idxDatasetName,
}

// pragmaDDL is applied to every connection before use. WAL keeps saves cheap
// during a session; Save checkpoints back into the main file so it can be
// handed to cloud-sync clients whole.
var pragmaDDL = []string{
	`PRAGMA foreign_keys = ON;`,
	`PRAGMA journal_mode = WAL;`,
	`PRAGMA synchronous = NORMAL;`,
	`PRAGMA temp_store = MEMORY;`,
}
