package types

// Project is the in-memory root of a project graph. The Domain Mapping Layer
// translates this graph to and from relational store rows; the GUI never
// touches rows directly.
type Project struct {
	Name        string
	Description string
	Tags        []string
	UIState     Value // opaque GUI state, stored under the project_ui_state meta key
	CreatedUTC  string
	UpdatedUTC  string
	Experiments []Experiment
	Attachments []Attachment
}

// Experiment groups samples acquired in one session. Experiment-level fields
// live in the store's experiments_meta key; samples map to dataset rows.
type Experiment struct {
	Name    string
	Notes   string
	Tags    []string
	Samples []Sample
}

// Sample is one analysis unit: a dense trace, sparse events, optional image
// assets, and versioned analysis results. Maps to one dataset row.
type Sample struct {
	Name        string
	Notes       string
	FPS         float64 // 0 = unset
	PixelSizeUM float64 // 0 = unset
	T0Seconds   float64

	Trace  *TraceFrame
	Events *EventFrame

	// Soft links to externally-referenced source files.
	TraceLink    FileLink
	EventsLink   FileLink
	SnapshotLink FileLink

	UIState      Value
	ThumbnailPNG []byte
	// SnapshotTIFF holds an embedded snapshot stack, stored as the
	// snapshot_tiff asset. Large stacks stay external via SnapshotLink.
	SnapshotTIFF []byte
	Results      []Result
	Attachments  []Attachment
}

// Result is one analysis output. Results are append-only; readers take the
// newest for a kind.
type Result struct {
	ID         int64
	Kind       string
	Version    string
	CreatedUTC string
	Payload    Value
}

// Attachment is an arbitrary user-attached file embedded into the store as a
// role-tagged asset. Either Data or SourcePath supplies the content.
type Attachment struct {
	Name       string // original filename, de-duplicated on collision
	Data       []byte
	SourcePath string
}

// AssetInfo describes one stored asset row.
type AssetInfo struct {
	ID        int64
	DatasetID int64
	Role      string
	Storage   string // StorageEmbedded or StorageExternal
	RelPath   string
	SHA256    string
	Bytes     int64
	MIME      string
}

// Asset storage modes.
const (
	StorageEmbedded = "embedded"
	StorageExternal = "external"
)

// Well-known asset roles. Attachment roles are "attachment:<n>".
const (
	RoleSnapshotStack = "snapshot_stack"
	RoleSnapshotTIFF  = "snapshot_tiff"
)

// DatasetMeta is the metadata half of a dataset row, without its bulk trace
// and event rows.
type DatasetMeta struct {
	ID          int64
	Name        string
	CreatedUTC  string
	Notes       string
	FPS         float64
	PixelSizeUM float64
	T0Seconds   float64
	Extra       Value
}
