package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vasolab/vasostore/internal/sqlite"
	"github.com/vasolab/vasostore/pkg/types"
)

// Meta keys holding project-level fields.
const (
	metaProjectName        = "project_name"
	metaProjectDescription = "project_description"
	metaProjectCreated     = "project_created_at"
	metaProjectUpdated     = "project_updated_at"
	metaProjectTags        = "project_tags"
	metaProjectUIState     = "project_ui_state"
	metaExperiments        = "experiments_meta"
)

// PopulateStore writes the full project graph into an empty store. baseDir is
// the directory external references are relativized against, normally the
// store's own directory.
func PopulateStore(s *sqlite.Store, p *types.Project, cfg types.Config) error {
	cfg = cfg.Normalized()
	baseDir := s.Dir()

	now := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	if p.CreatedUTC == "" {
		p.CreatedUTC = now
	}
	p.UpdatedUTC = now

	meta := map[string]string{
		metaProjectName:    p.Name,
		metaProjectCreated: p.CreatedUTC,
		metaProjectUpdated: p.UpdatedUTC,
	}
	if p.Description != "" {
		meta[metaProjectDescription] = p.Description
	}
	if len(p.Tags) > 0 {
		tags, err := json.Marshal(p.Tags)
		if err != nil {
			return fmt.Errorf("encoding project tags: %w", err)
		}
		meta[metaProjectTags] = string(tags)
	}
	if !p.UIState.IsNull() {
		ui, err := json.Marshal(p.UIState)
		if err != nil {
			return fmt.Errorf("encoding project ui state: %w", err)
		}
		meta[metaProjectUIState] = string(ui)
	}

	expMeta := map[string]types.Value{}
	for i, exp := range p.Experiments {
		fields := map[string]types.Value{"index": types.Number(float64(i))}
		if exp.Notes != "" {
			fields["notes"] = types.String(exp.Notes)
		}
		if len(exp.Tags) > 0 {
			tags := make([]types.Value, len(exp.Tags))
			for j, tag := range exp.Tags {
				tags[j] = types.String(tag)
			}
			fields["tags"] = types.Array(tags...)
		}
		expMeta[exp.Name] = types.Object(fields)
	}
	expJSON, err := json.Marshal(types.Object(expMeta))
	if err != nil {
		return fmt.Errorf("encoding experiments meta: %w", err)
	}
	meta[metaExperiments] = string(expJSON)

	if err := s.WriteMeta(meta); err != nil {
		return err
	}

	for _, exp := range p.Experiments {
		for i, sample := range exp.Samples {
			if err := saveSample(s, cfg, exp.Name, i, sample, baseDir); err != nil {
				return fmt.Errorf("experiment %q sample %q: %w", exp.Name, sample.Name, err)
			}
		}
	}

	if len(p.Attachments) > 0 {
		if err := saveProjectAttachments(s, p.Attachments, baseDir); err != nil {
			return err
		}
	}
	return nil
}

func saveSample(s *sqlite.Store, cfg types.Config, expName string, index int, sample types.Sample, baseDir string) error {
	name := sample.Name
	if name == "" {
		name = fmt.Sprintf("Sample %d", index+1)
	}

	extraFields := map[string]types.Value{
		"experiment":   types.String(expName),
		"sample_index": types.Number(float64(index)),
	}
	if !sample.UIState.IsNull() {
		extraFields["ui_state"] = sample.UIState
	}
	if link := linkToValue(sample.TraceLink, baseDir); !link.IsNull() {
		extraFields["trace_link"] = link
		extraFields["trace_path"] = types.String(relativize(sample.TraceLink.Path, baseDir))
	}
	if link := linkToValue(sample.EventsLink, baseDir); !link.IsNull() {
		extraFields["events_link"] = link
		extraFields["events_path"] = types.String(relativize(sample.EventsLink.Path, baseDir))
	}
	if link := linkToValue(sample.SnapshotLink, baseDir); !link.IsNull() {
		extraFields["snapshot_link"] = link
		extraFields["snapshot_path"] = types.String(relativize(sample.SnapshotLink.Path, baseDir))
	}

	datasetID, err := sqlite.AddDataset(s, name, sample.Trace, sample.Events, types.DatasetMeta{
		Notes:       sample.Notes,
		FPS:         sample.FPS,
		PixelSizeUM: sample.PixelSizeUM,
		T0Seconds:   sample.T0Seconds,
	})
	if err != nil {
		return err
	}

	attachmentsPayload, err := storeAttachments(s, datasetID, sample.Attachments, attachmentRolePrefix, baseDir)
	if err != nil {
		return err
	}
	if !attachmentsPayload.IsNull() {
		extraFields["attachments"] = attachmentsPayload
	}

	if len(sample.SnapshotTIFF) > 0 {
		_, err := sqlite.AddOrUpdateAsset(s, datasetID, types.RoleSnapshotTIFF,
			sqlite.BytesSource(sample.SnapshotTIFF), true, "image/tiff")
		if err != nil {
			return fmt.Errorf("embedding snapshot stack: %w", err)
		}
		extraFields["snapshot_tiff_role"] = types.String(types.RoleSnapshotTIFF)
	}
	if path, ok := sample.SnapshotLink.Resolve(baseDir); ok {
		if err := storeSnapshotFile(s, cfg, datasetID, path); err != nil {
			return err
		}
		extraFields["snapshot_role"] = types.String(types.RoleSnapshotStack)
	}

	if err := storeResults(s, datasetID, sample.Results, cfg.AppVersion); err != nil {
		return err
	}
	if len(sample.ThumbnailPNG) > 0 {
		if err := sqlite.SetThumbnail(s, datasetID, sample.ThumbnailPNG); err != nil {
			return err
		}
	}

	extra := types.Object(extraFields)
	return sqlite.UpdateDatasetMeta(s, datasetID, sqlite.DatasetUpdate{Extra: &extra})
}

// storeSnapshotFile registers a linked snapshot file as an asset, embedding
// it when at or under the configured threshold and keeping a reference
// otherwise.
func storeSnapshotFile(s *sqlite.Store, cfg types.Config, datasetID int64, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	embed := info.Size() <= cfg.EmbedThresholdMB<<20
	_, err = sqlite.AddOrUpdateAsset(s, datasetID, types.RoleSnapshotStack, sqlite.FileSource(path), embed, "")
	if err != nil {
		return fmt.Errorf("registering snapshot file: %w", err)
	}
	return nil
}

func saveProjectAttachments(s *sqlite.Store, atts []types.Attachment, baseDir string) error {
	datasetID, err := sqlite.AddDataset(s, projectAttachmentsDataset, nil, nil, types.DatasetMeta{})
	if err != nil {
		return fmt.Errorf("creating project attachments carrier: %w", err)
	}
	payload, err := storeAttachments(s, datasetID, atts, projectAttachmentRolePrefix, baseDir)
	if err != nil {
		return err
	}
	extra := types.Object(map[string]types.Value{
		"kind":        types.String(projectAttachmentsKind),
		"attachments": payload,
	})
	return sqlite.UpdateDatasetMeta(s, datasetID, sqlite.DatasetUpdate{Extra: &extra})
}

// ReplaceStore clears an already-populated store and writes the project
// graph fresh. Used when re-saving into an existing staging database.
func ReplaceStore(s *sqlite.Store, p *types.Project, cfg types.Config) error {
	if err := sqlite.ClearProject(s); err != nil {
		return err
	}
	return PopulateStore(s, p, cfg)
}

// LoadFromStore reads the whole project graph back out of a store.
func LoadFromStore(s *sqlite.Store) (*types.Project, error) {
	meta, err := sqlite.ReadMeta(s)
	if err != nil {
		return nil, err
	}

	p := &types.Project{
		Name:        meta[metaProjectName],
		Description: meta[metaProjectDescription],
		CreatedUTC:  meta[metaProjectCreated],
		UpdatedUTC:  meta[metaProjectUpdated],
	}
	if p.Name == "" {
		p.Name = trimExt(filepath.Base(s.Path()))
	}
	if raw := meta[metaProjectTags]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Tags); err != nil {
			return nil, fmt.Errorf("parsing project tags: %w", err)
		}
	}
	if raw := meta[metaProjectUIState]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.UIState); err != nil {
			return nil, fmt.Errorf("parsing project ui state: %w", err)
		}
	}
	var expMeta types.Value
	if raw := meta[metaExperiments]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &expMeta); err != nil {
			return nil, fmt.Errorf("parsing experiments meta: %w", err)
		}
	}

	datasets, err := sqlite.ListDatasets(s)
	if err != nil {
		return nil, err
	}

	type sampleSlot struct {
		index  int
		sample types.Sample
	}
	expSamples := map[string][]sampleSlot{}

	for _, ds := range datasets {
		if ds.Extra.Get("kind").Str() == projectAttachmentsKind {
			atts, err := loadAttachments(s, ds.ID, ds.Extra.Get("attachments"))
			if err != nil {
				return nil, err
			}
			p.Attachments = append(p.Attachments, atts...)
			continue
		}
		sample, expName, index, err := loadSample(s, ds)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", ds.Name, err)
		}
		expSamples[expName] = append(expSamples[expName], sampleSlot{index: index, sample: sample})
	}

	names := make([]string, 0, len(expSamples))
	for name := range expSamples {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, oj := expMeta.Get(names[i]).Get("index").Num(), expMeta.Get(names[j]).Get("index").Num()
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		slots := expSamples[name]
		sort.Slice(slots, func(i, j int) bool { return slots[i].index < slots[j].index })
		exp := types.Experiment{Name: name, Notes: expMeta.Get(name).Get("notes").Str()}
		for _, tag := range expMeta.Get(name).Get("tags").Elems() {
			exp.Tags = append(exp.Tags, tag.Str())
		}
		for _, slot := range slots {
			exp.Samples = append(exp.Samples, slot.sample)
		}
		p.Experiments = append(p.Experiments, exp)
	}
	return p, nil
}

func loadSample(s *sqlite.Store, ds types.DatasetMeta) (types.Sample, string, int, error) {
	sample := types.Sample{
		Name:        ds.Name,
		Notes:       ds.Notes,
		FPS:         ds.FPS,
		PixelSizeUM: ds.PixelSizeUM,
		T0Seconds:   ds.T0Seconds,
		UIState:     ds.Extra.Get("ui_state"),
	}

	trace, err := sqlite.GetTrace(s, ds.ID, nil, nil)
	if err != nil {
		return sample, "", 0, err
	}
	if trace.Len() > 0 {
		sample.Trace = trace
	}
	events, err := sqlite.GetEvents(s, ds.ID, nil, nil)
	if err != nil {
		return sample, "", 0, err
	}
	if events.Len() > 0 {
		sample.Events = events
	}

	sample.TraceLink = linkFromValue(ds.Extra.Get("trace_path").Str(), ds.Extra.Get("trace_link"))
	sample.EventsLink = linkFromValue(ds.Extra.Get("events_path").Str(), ds.Extra.Get("events_link"))
	sample.SnapshotLink = linkFromValue(ds.Extra.Get("snapshot_path").Str(), ds.Extra.Get("snapshot_link"))

	atts, err := loadAttachments(s, ds.ID, ds.Extra.Get("attachments"))
	if err != nil {
		return sample, "", 0, err
	}
	sample.Attachments = atts

	if role := ds.Extra.Get("snapshot_tiff_role").Str(); role != "" {
		if info, err := sqlite.GetAssetByRole(s, ds.ID, role); err == nil && info.Storage == types.StorageEmbedded {
			data, err := sqlite.GetAssetBytes(s, info.ID)
			switch {
			case errors.Is(err, types.ErrChecksumMismatch):
				slog.Warn("snapshot stack checksum mismatch", "dataset", ds.Name)
			case err != nil:
				return sample, "", 0, err
			}
			sample.SnapshotTIFF = data
		}
	}

	results, err := loadResults(s, ds.ID)
	if err != nil {
		return sample, "", 0, err
	}
	sample.Results = results

	if png, err := sqlite.GetThumbnail(s, ds.ID); err == nil {
		sample.ThumbnailPNG = png
	}

	expName := ds.Extra.Get("experiment").Str()
	if expName == "" {
		expName = "Experiment 1"
	}
	index := int(ds.Extra.Get("sample_index").Num())
	return sample, expName, index, nil
}

// WriteSingleFile persists the project as a standalone database at dest. The
// store is built under a temporary name in the destination directory and
// renamed into place, so an interrupted save never clobbers the previous
// file.
func WriteSingleFile(dest string, p *types.Project, cfg types.Config, log *slog.Logger) error {
	cfg = cfg.Normalized()
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(dest), "."+uuid.NewString()+sqlite.DefaultFileExt)
	s, err := sqlite.Create(tmp, cfg)
	if err != nil {
		return err
	}
	if err := PopulateStore(s, p, cfg); err != nil {
		s.Close()
		os.Remove(tmp)
		return err
	}
	if err := s.Save(); err != nil {
		s.Close()
		os.Remove(tmp)
		return err
	}
	if err := s.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publishing project file: %w", err)
	}
	log.Info("project saved", "path", dest, "experiments", len(p.Experiments))
	return nil
}

// LoadSingleFile reads a standalone project database into the domain model.
func LoadSingleFile(path string, cfg types.Config) (*types.Project, error) {
	s, err := sqlite.Open(path, cfg)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return LoadFromStore(s)
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
