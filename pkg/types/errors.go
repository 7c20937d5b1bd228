package types

import "errors"

// Store and bundle errors. Callers match with errors.Is; the engine wraps
// these with contextual detail.
var (
	// ErrNotFound is returned when a dataset, asset, or result id does not
	// exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrSchemaTooNew is returned when a project file carries a schema
	// version newer than this build understands. No migration is possible.
	ErrSchemaTooNew = errors.New("project schema is newer than this build supports")

	// ErrChecksumMismatch is returned when extracted or embedded content
	// hashes disagree with the recorded hash. Migration aborts on it; live
	// reads return best-effort data alongside it.
	ErrChecksumMismatch = errors.New("content checksum mismatch")

	// ErrAssetMissing is returned when an external asset path does not
	// resolve to an existing file.
	ErrAssetMissing = errors.New("external asset file missing")

	// ErrBundleLocked is returned when another live process holds the
	// bundle's write lock.
	ErrBundleLocked = errors.New("bundle is locked by another process")

	// ErrBundleCorrupt is returned when a bundle's HEAD references an
	// unreadable snapshot and no older valid snapshot exists.
	ErrBundleCorrupt = errors.New("bundle has no readable snapshot")

	// ErrUnsafeArchiveMember is returned when a zip entry would extract
	// outside the destination directory.
	ErrUnsafeArchiveMember = errors.New("archive member escapes destination directory")

	// ErrInvalidFormat is returned when a path cannot be classified as any
	// known project format.
	ErrInvalidFormat = errors.New("unrecognized project format")

	// ErrStoreClosed is returned by operations on a closed store handle.
	ErrStoreClosed = errors.New("store is closed")
)
