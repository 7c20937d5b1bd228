package types

import "errors"

// Project format preferences. The preference is an explicit value threaded
// through mapping-layer entry points, never process-global state.
const (
	FormatSingleFile = "single-file"
	FormatBundle     = "bundle"
)

// Defaults for Config fields left zero.
const (
	DefaultChunkSize        = 8 << 20 // 8 MiB blob chunks
	DefaultEmbedThresholdMB = 64      // pack embeds externals at or below this
	DefaultKeepSnapshots    = 50
)

// Config validation errors.
var (
	ErrFormatUnknown        = errors.New("unknown project format preference")
	ErrChunkSizeInvalid     = errors.New("chunk size must be positive")
	ErrEmbedThresholdNeg    = errors.New("embed threshold must not be negative")
	ErrKeepSnapshotsInvalid = errors.New("keep count must be at least 1")
)

// Config carries engine parameters through the mapping layer's entry points.
type Config struct {
	// Format selects how SaveProject materializes new projects.
	Format string `json:"format" yaml:"format"`
	// ChunkSize is the embedded-blob chunk size in bytes.
	ChunkSize int64 `json:"chunk_size" yaml:"chunk_size"`
	// EmbedThresholdMB is the pack embed threshold in megabytes.
	EmbedThresholdMB int64 `json:"embed_threshold_mb" yaml:"embed_threshold_mb"`
	// KeepSnapshots is how many bundle snapshots prune retains.
	KeepSnapshots int `json:"keep_snapshots" yaml:"keep_snapshots"`
	// AppVersion and Timezone are stamped into new stores' meta table.
	AppVersion string `json:"app_version" yaml:"app_version"`
	Timezone   string `json:"timezone" yaml:"timezone"`
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() Config {
	return Config{
		Format:           FormatBundle,
		ChunkSize:        DefaultChunkSize,
		EmbedThresholdMB: DefaultEmbedThresholdMB,
		KeepSnapshots:    DefaultKeepSnapshots,
	}
}

// Normalized returns a copy of c with zero fields replaced by defaults.
func (c Config) Normalized() Config {
	out := c
	if out.Format == "" {
		out.Format = FormatBundle
	}
	if out.ChunkSize == 0 {
		out.ChunkSize = DefaultChunkSize
	}
	if out.EmbedThresholdMB == 0 {
		out.EmbedThresholdMB = DefaultEmbedThresholdMB
	}
	if out.KeepSnapshots == 0 {
		out.KeepSnapshots = DefaultKeepSnapshots
	}
	return out
}

// Validate checks that the Config is well-formed, returning a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	switch c.Format {
	case "", FormatSingleFile, FormatBundle:
	default:
		return ErrFormatUnknown
	}
	if c.ChunkSize < 0 {
		return ErrChunkSizeInvalid
	}
	if c.EmbedThresholdMB < 0 {
		return ErrEmbedThresholdNeg
	}
	if c.KeepSnapshots < 0 {
		return ErrKeepSnapshotsInvalid
	}
	return nil
}
