package project

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vasolab/vasostore/internal/sqlite"
	"github.com/vasolab/vasostore/pkg/types"
)

// Asset roles for user-attached files. Sample attachments hang off their own
// dataset; project-level attachments live on a reserved carrier dataset that
// the loader filters back out.
const (
	attachmentRolePrefix        = "attachment:"
	projectAttachmentRolePrefix = "project_attachment:"
	projectAttachmentsDataset   = "__project_attachments__"
	projectAttachmentsKind      = "project_attachments"
)

// storeAttachments embeds attachment content as role-tagged assets and
// returns the metadata payload recorded in extra_json. Display names are
// de-duplicated with a numeric suffix so listings stay unambiguous.
func storeAttachments(s *sqlite.Store, datasetID int64, atts []types.Attachment, rolePrefix, baseDir string) (types.Value, error) {
	if len(atts) == 0 {
		return types.Null(), nil
	}
	used := map[string]int{}
	var entries []types.Value
	for i, att := range atts {
		role := fmt.Sprintf("%s%d", rolePrefix, i)
		name := dedupeName(att.Name, used)

		fields := map[string]types.Value{
			"name":       types.String(name),
			"asset_role": types.String(role),
		}
		if att.SourcePath != "" {
			fields["source_path"] = types.String(relativize(att.SourcePath, baseDir))
		}
		entries = append(entries, types.Object(fields))

		data := att.Data
		if data == nil && att.SourcePath != "" {
			source := att.SourcePath
			if !filepath.IsAbs(source) {
				source = filepath.Join(baseDir, source)
			}
			loaded, err := os.ReadFile(source)
			if err != nil {
				// Content unavailable; the metadata entry still records it.
				continue
			}
			data = loaded
		}
		if data == nil {
			continue
		}
		if _, err := sqlite.AddOrUpdateAsset(s, datasetID, role, sqlite.BytesSource(data), true, ""); err != nil {
			return types.Null(), fmt.Errorf("embedding attachment %q: %w", name, err)
		}
	}
	return types.Array(entries...), nil
}

func dedupeName(name string, used map[string]int) string {
	if name == "" {
		name = "attachment"
	}
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	return fmt.Sprintf("%s (%d)%s", base, n+1, ext)
}

// loadAttachments rebuilds attachments from the extra_json payload, pulling
// embedded content back out of the asset table.
func loadAttachments(s *sqlite.Store, datasetID int64, payload types.Value) ([]types.Attachment, error) {
	var out []types.Attachment
	for _, entry := range payload.Elems() {
		att := types.Attachment{
			Name:       entry.Get("name").Str(),
			SourcePath: entry.Get("source_path").Str(),
		}
		role := entry.Get("asset_role").Str()
		if role != "" {
			if info, err := sqlite.GetAssetByRole(s, datasetID, role); err == nil {
				data, err := sqlite.GetAssetBytes(s, info.ID)
				switch {
				case errors.Is(err, types.ErrChecksumMismatch):
					// Best effort: keep the bytes, the caller still gets
					// everything readable.
					slog.Warn("attachment checksum mismatch", "name", att.Name)
				case err != nil:
					return nil, fmt.Errorf("reading attachment %q: %w", att.Name, err)
				}
				att.Data = data
			}
		}
		out = append(out, att)
	}
	return out, nil
}
