package archive

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/vasolab/vasostore/internal/sqlite"
	"github.com/vasolab/vasostore/pkg/types"
)

// Legacy archive member names.
const (
	legacyMetadataFile = "metadata.json"
	legacyManifestFile = "manifest.json"
	legacyStateFile    = "state.json"
)

// IsLegacyArchive reports whether path is a zip in one of the two legacy
// project layouts.
func IsLegacyArchive(path string) bool {
	if !IsZip(path) {
		return false
	}
	return HasMember(path, legacyMetadataFile) ||
		(HasMember(path, legacyManifestFile) && HasMember(path, legacyStateFile))
}

// ReadLegacyProject loads a legacy zip archive into the domain model,
// dispatching on which marker files the archive carries.
func ReadLegacyProject(path string) (*types.Project, error) {
	if !IsZip(path) {
		return nil, fmt.Errorf("%s is not an archive: %w", path, types.ErrInvalidFormat)
	}
	tmp, err := os.MkdirTemp("", "vaso-legacy-*")
	if err != nil {
		return nil, fmt.Errorf("creating extraction directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := ExtractZip(path, tmp); err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(tmp, legacyMetadataFile)); err == nil {
		return readMetadataProject(tmp, path)
	}
	if _, err := os.Stat(filepath.Join(tmp, legacyManifestFile)); err == nil {
		return readManifestProject(tmp, path)
	}
	return nil, fmt.Errorf("archive %s has no project metadata: %w", path, types.ErrInvalidFormat)
}

// legacyLink mirrors the stored link payload keys.
type legacyLink struct {
	Relative string `json:"relative"`
	Hint     string `json:"hint"`
	Sig      string `json:"sig"`
}

type legacyAttachment struct {
	Name     string `json:"name"`
	Filename string `json:"filename"`
}

type legacySample struct {
	Name            string             `json:"name"`
	Notes           string             `json:"notes"`
	TracePath       string             `json:"trace_path"`
	EventsPath      string             `json:"events_path"`
	SnapshotPath    string             `json:"snapshot_path"`
	TraceLink       *legacyLink        `json:"trace_link"`
	EventsLink      *legacyLink        `json:"events_link"`
	UIState         types.Value        `json:"ui_state"`
	TraceData       types.Value        `json:"trace_data"`
	EventsData      types.Value        `json:"events_data"`
	AnalysisResults types.Value        `json:"analysis_results"`
	Attachments     []legacyAttachment `json:"attachments"`
}

type legacyExperiment struct {
	Name    string         `json:"name"`
	Notes   string         `json:"notes"`
	Tags    []string       `json:"tags"`
	Samples []legacySample `json:"samples"`
}

type legacyMetadata struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Tags        []string           `json:"tags"`
	CreatedAt   string             `json:"created_at"`
	UpdatedAt   string             `json:"updated_at"`
	UIState     types.Value        `json:"ui_state"`
	Experiments []legacyExperiment `json:"experiments"`
	Attachments []legacyAttachment `json:"attachments"`
	Manifest    map[string]string  `json:"manifest"`
}

// readMetadataProject handles the newer legacy layout: metadata.json plus
// per-sample directories of CSVs and attachments, with a checksum manifest.
// Checksums are verified before anything else is trusted; a mismatch aborts
// the load.
func readMetadataProject(dir, archivePath string) (*types.Project, error) {
	data, err := os.ReadFile(filepath.Join(dir, legacyMetadataFile))
	if err != nil {
		return nil, fmt.Errorf("reading project metadata: %w", err)
	}
	var meta legacyMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing project metadata: %w", err)
	}

	for rel, want := range meta.Manifest {
		memberPath := filepath.Join(dir, filepath.FromSlash(rel))
		got, hashErr := sqlite.HashFile(memberPath)
		if hashErr != nil || got != want {
			return nil, fmt.Errorf("archive member %s: %w", rel, types.ErrChecksumMismatch)
		}
	}

	project := &types.Project{
		Name:        meta.Name,
		Description: meta.Description,
		Tags:        meta.Tags,
		UIState:     meta.UIState,
		CreatedUTC:  meta.CreatedAt,
		UpdatedUTC:  meta.UpdatedAt,
	}
	project.Attachments = loadAttachments(filepath.Join(dir, "attachments"), meta.Attachments)

	for _, exp := range meta.Experiments {
		experiment := types.Experiment{Name: exp.Name, Notes: exp.Notes, Tags: exp.Tags}
		expDir := filepath.Join(dir, safeName(exp.Name))
		for _, ls := range exp.Samples {
			sample, err := loadMetadataSample(expDir, ls)
			if err != nil {
				return nil, err
			}
			experiment.Samples = append(experiment.Samples, sample)
		}
		project.Experiments = append(project.Experiments, experiment)
	}
	return project, nil
}

func loadMetadataSample(expDir string, ls legacySample) (types.Sample, error) {
	sample := types.Sample{
		Name:    ls.Name,
		Notes:   ls.Notes,
		UIState: ls.UIState,
	}
	sampleDir := filepath.Join(expDir, safeName(ls.Name))

	trace := traceFromValue(ls.TraceData)
	if trace == nil {
		if loaded, err := parseTraceCSVFile(filepath.Join(sampleDir, "trace.csv")); err == nil {
			trace = loaded
		}
	}
	sample.Trace = trace

	events := eventsFromValue(ls.EventsData)
	if events == nil {
		if loaded, err := parseEventsCSVFile(filepath.Join(sampleDir, "events.csv")); err == nil {
			events = loaded
		}
	}
	sample.Events = events

	if tiff, err := os.ReadFile(filepath.Join(sampleDir, "snapshots.tiff")); err == nil {
		sample.SnapshotTIFF = tiff
	}

	sample.TraceLink = linkFromLegacy(ls.TracePath, ls.TraceLink)
	sample.EventsLink = linkFromLegacy(ls.EventsPath, ls.EventsLink)
	sample.SnapshotLink = linkFromLegacy(ls.SnapshotPath, nil)
	sample.Attachments = loadAttachments(filepath.Join(sampleDir, "attachments"), ls.Attachments)
	sample.Results = resultsFromLegacy(ls.AnalysisResults)
	return sample, nil
}

// resultsFromLegacy converts the legacy analysis-results object: dataframe
// entries become tagged table payloads, everything else passes through.
func resultsFromLegacy(v types.Value) []types.Result {
	if v.Kind() != types.KindObject {
		return nil
	}
	var out []types.Result
	for _, kind := range v.Keys() {
		entry := v.Get(kind)
		payload := entry
		if entry.Get("__type__").Str() == "dataframe" {
			payload = dataframeToTable(entry.Get("value"))
		}
		out = append(out, types.Result{Kind: kind, Payload: payload})
	}
	return out
}

// dataframeToTable converts a columns/index/data split payload to the tagged
// table form.
func dataframeToTable(v types.Value) types.Value {
	t := &types.ResultTable{}
	for _, c := range v.Get("columns").Elems() {
		t.Columns = append(t.Columns, c.Str())
	}
	for _, row := range v.Get("data").Elems() {
		t.Rows = append(t.Rows, append([]types.Value(nil), row.Elems()...))
	}
	return t.Value()
}

func linkFromLegacy(path string, link *legacyLink) types.FileLink {
	out := types.FileLink{Path: path}
	if link != nil {
		out.Relative = link.Relative
		out.Hint = link.Hint
		out.Signature = link.Sig
	}
	return out
}

func loadAttachments(dir string, metas []legacyAttachment) []types.Attachment {
	var out []types.Attachment
	for _, m := range metas {
		if m.Filename == "" {
			continue
		}
		att := types.Attachment{Name: m.Filename}
		if m.Name != "" {
			att.Name = m.Name
		}
		if data, err := os.ReadFile(filepath.Join(dir, m.Filename)); err == nil {
			att.Data = data
		}
		out = append(out, att)
	}
	return out
}

// manifest.json / state.json layout, the oldest archive format.
type legacyManifest struct {
	Experiments map[string]legacyManifestEntry `json:"experiments"`
}

type legacyManifestEntry struct {
	TraceFile      string `json:"trace_file"`
	EventsFile     string `json:"events_file"`
	EventsUserFile string `json:"events_user_file"`
	TIFFFile       string `json:"tiff_file"`
}

// readManifestProject handles the oldest layout: one experiment per manifest
// entry holding a single sample, session state split between project_ui and
// per-sample entries. User-edited events take precedence over the originals.
func readManifestProject(dir, archivePath string) (*types.Project, error) {
	var manifest legacyManifest
	if err := readJSONFile(filepath.Join(dir, legacyManifestFile), &manifest); err != nil {
		return nil, err
	}
	var state types.Value
	if err := readJSONFile(filepath.Join(dir, legacyStateFile), &state); err != nil {
		return nil, err
	}

	projectUI := state
	if state.Has("project_ui") {
		projectUI = state.Get("project_ui")
	}
	sampleStates := state.Get("samples")

	project := &types.Project{
		Name:    strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath)),
		UIState: projectUI,
	}
	expIDs := make([]string, 0, len(manifest.Experiments))
	for expID := range manifest.Experiments {
		expIDs = append(expIDs, expID)
	}
	sort.Strings(expIDs)

	for _, expID := range expIDs {
		entry := manifest.Experiments[expID]
		sample := types.Sample{Name: expID, UIState: sampleStates.Get(expID)}

		if entry.TraceFile != "" {
			trace, err := parseTraceCSVFile(filepath.Join(dir, filepath.FromSlash(entry.TraceFile)))
			if err != nil {
				return nil, fmt.Errorf("experiment %s: %w", expID, err)
			}
			sample.Trace = trace
		}

		eventsFile := entry.EventsFile
		if entry.EventsUserFile != "" {
			if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(entry.EventsUserFile))); err == nil {
				eventsFile = entry.EventsUserFile
			}
		}
		if eventsFile != "" {
			events, err := parseEventsCSVFile(filepath.Join(dir, filepath.FromSlash(eventsFile)))
			if err != nil {
				return nil, fmt.Errorf("experiment %s: %w", expID, err)
			}
			sample.Events = events
		}

		if entry.TIFFFile != "" {
			if tiff, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(entry.TIFFFile))); err == nil {
				sample.SnapshotTIFF = tiff
			}
		}

		project.Experiments = append(project.Experiments, types.Experiment{
			Name:    expID,
			Samples: []types.Sample{sample},
		})
	}
	return project, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// safeName sanitizes a name for filesystem use the same way legacy writers
// did, so sample directories resolve.
func safeName(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case strings.ContainsRune("-_.() ", c):
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Column-name candidates in legacy CSVs and frame payloads.
var (
	traceTimeCols  = []string{"Time (s)", "Time"}
	traceInnerCols = []string{"Inner Diameter", "ID (µm)"}
	traceOuterCols = []string{"Outer Diameter", "OD (µm)"}
	eventLabelCols = []string{"Event", "EventLabel", "Label"}
)

// traceFromValue converts a column-keyed object of number lists to a frame.
func traceFromValue(v types.Value) *types.TraceFrame {
	if v.Kind() != types.KindObject {
		return nil
	}
	t := pickColumn(v, traceTimeCols)
	if t == nil {
		return nil
	}
	return &types.TraceFrame{
		T:         t,
		InnerDiam: pickColumn(v, traceInnerCols),
		OuterDiam: pickColumn(v, traceOuterCols),
	}
}

func eventsFromValue(v types.Value) *types.EventFrame {
	if v.Kind() != types.KindObject {
		return nil
	}
	t := pickColumn(v, traceTimeCols)
	labels := pickLabels(v, eventLabelCols)
	if t == nil || labels == nil || len(labels) != len(t) {
		return nil
	}
	frame := &types.EventFrame{T: t, Label: labels}
	if frames := pickColumn(v, []string{"Frame"}); frames != nil {
		frame.Frame = make([]int64, len(frames))
		for i, f := range frames {
			if !math.IsNaN(f) {
				frame.Frame[i] = int64(f)
			}
		}
	}
	return frame
}

func pickColumn(v types.Value, names []string) []float64 {
	for _, name := range names {
		if !v.Has(name) {
			continue
		}
		elems := v.Get(name).Elems()
		out := make([]float64, len(elems))
		for i, e := range elems {
			if e.Kind() == types.KindNumber {
				out[i] = e.Num()
			} else {
				out[i] = math.NaN()
			}
		}
		return out
	}
	return nil
}

func pickLabels(v types.Value, names []string) []string {
	for _, name := range names {
		if !v.Has(name) {
			continue
		}
		elems := v.Get(name).Elems()
		out := make([]string, len(elems))
		for i, e := range elems {
			out[i] = e.Str()
		}
		return out
	}
	return nil
}

// parseTraceCSVFile reads a legacy trace CSV. Unparseable cells become NaN.
func parseTraceCSVFile(path string) (*types.TraceFrame, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	tIdx := findColumn(header, traceTimeCols)
	if tIdx < 0 {
		return nil, fmt.Errorf("trace CSV %s has no time column", filepath.Base(path))
	}
	innerIdx := findColumn(header, traceInnerCols)
	outerIdx := findColumn(header, traceOuterCols)

	frame := &types.TraceFrame{}
	for _, row := range rows {
		frame.T = append(frame.T, cellFloat(row, tIdx))
		if innerIdx >= 0 {
			frame.InnerDiam = append(frame.InnerDiam, cellFloat(row, innerIdx))
		}
		if outerIdx >= 0 {
			frame.OuterDiam = append(frame.OuterDiam, cellFloat(row, outerIdx))
		}
	}
	return frame, nil
}

// parseEventsCSVFile reads a legacy events CSV. Columns beyond the fixed set
// land in per-row extra metadata.
func parseEventsCSVFile(path string) (*types.EventFrame, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	tIdx := findColumn(header, traceTimeCols)
	labelIdx := findColumn(header, eventLabelCols)
	if tIdx < 0 || labelIdx < 0 {
		return nil, fmt.Errorf("events CSV %s lacks time or label column", filepath.Base(path))
	}
	frameIdx := findColumn(header, []string{"Frame"})

	events := &types.EventFrame{}
	hasExtra := false
	for _, row := range rows {
		events.T = append(events.T, cellFloat(row, tIdx))
		label := ""
		if labelIdx < len(row) {
			label = row[labelIdx]
		}
		events.Label = append(events.Label, label)

		var frameNo int64
		if frameIdx >= 0 {
			if f := cellFloat(row, frameIdx); !math.IsNaN(f) {
				frameNo = int64(f)
			}
		}
		events.Frame = append(events.Frame, frameNo)

		extra := map[string]types.Value{}
		for i, name := range header {
			if i == tIdx || i == labelIdx || i == frameIdx || i >= len(row) || row[i] == "" {
				continue
			}
			if f, err := strconv.ParseFloat(row[i], 64); err == nil {
				extra[name] = types.Number(f)
			} else {
				extra[name] = types.String(row[i])
			}
		}
		if len(extra) > 0 {
			events.Extra = append(events.Extra, types.Object(extra))
			hasExtra = true
		} else {
			events.Extra = append(events.Extra, types.Null())
		}
	}
	if !hasExtra {
		events.Extra = nil
	}
	return events, nil
}

func readCSV(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening CSV: %w", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err = r.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("CSV %s is empty", filepath.Base(path))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading CSV header: %w", err)
	}
	rows, err = r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading CSV rows: %w", err)
	}
	return header, rows, nil
}

func findColumn(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}

func cellFloat(row []string, idx int) float64 {
	if idx < 0 || idx >= len(row) {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
