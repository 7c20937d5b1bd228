package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vasolab/vasostore/internal/sqlite"
	"github.com/vasolab/vasostore/pkg/types"
)

// Portable pack layout.
const (
	packProjectFile = "project" + sqlite.DefaultFileExt
	packAssetsDir   = "assets"
	packManifest    = "pack.json"
)

// packEntry describes one asset in the pack manifest.
type packEntry struct {
	Role   string `json:"role"`
	SHA256 string `json:"sha256"`
	Path   string `json:"path,omitempty"`
	Bytes  int64  `json:"bytes"`
}

// packDoc is the pack.json manifest: which external assets were embedded
// into the packed database and which travel as loose files under assets/.
type packDoc struct {
	SchemaVersion int         `json:"schema_version"`
	Embedded      []packEntry `json:"embedded"`
	Loose         []packEntry `json:"loose"`
}

// Pack writes a portable archive of the single-file project at projectPath.
// External assets at or under the configured size threshold are embedded
// into the copied database; larger ones travel as loose content-addressed
// files under assets/ with the database rewritten to point at them.
// Unresolvable assets keep their original reference and a warning.
func Pack(projectPath, dest string, cfg types.Config, log *slog.Logger) error {
	cfg = cfg.Normalized()
	if log == nil {
		log = slog.Default()
	}
	threshold := cfg.EmbedThresholdMB << 20

	tmp, err := os.MkdirTemp("", "vaso-pack-*")
	if err != nil {
		return fmt.Errorf("creating pack directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	src, err := sqlite.Open(projectPath, cfg)
	if err != nil {
		return err
	}
	packedDB := filepath.Join(tmp, packProjectFile)
	if err := src.SnapshotTo(packedDB); err != nil {
		src.Close()
		return err
	}
	srcDir := src.Dir()
	if err := src.Close(); err != nil {
		return err
	}

	packed, err := sqlite.Open(packedDB, cfg)
	if err != nil {
		return err
	}
	defer packed.Close()

	doc := packDoc{SchemaVersion: 1}
	assets, err := sqlite.AllAssets(packed)
	if err != nil {
		return err
	}
	for _, asset := range assets {
		if asset.Storage != types.StorageExternal {
			continue
		}
		entry := packEntry{Role: asset.Role, SHA256: asset.SHA256, Path: asset.RelPath, Bytes: asset.Bytes}

		source := asset.RelPath
		if !filepath.IsAbs(source) {
			source = filepath.Join(srcDir, filepath.FromSlash(asset.RelPath))
		}
		info, statErr := os.Stat(source)
		switch {
		case statErr != nil:
			log.Warn("external asset unresolved, packing reference only",
				"role", asset.Role, "path", asset.RelPath)
			doc.Loose = append(doc.Loose, entry)
		case info.Size() > threshold:
			packedName := filepath.ToSlash(filepath.Join(packAssetsDir, asset.SHA256+filepath.Ext(source)))
			if err := copyIntoPack(source, filepath.Join(tmp, filepath.FromSlash(packedName))); err != nil {
				return err
			}
			if err := sqlite.SetAssetPath(packed, asset.ID, packedName); err != nil {
				return err
			}
			entry.Path = packedName
			doc.Loose = append(doc.Loose, entry)
			log.Info("external asset over threshold, packed loose",
				"role", asset.Role, "bytes", info.Size())
		default:
			if _, err := sqlite.AddOrUpdateAsset(packed, asset.DatasetID, asset.Role,
				sqlite.FileSource(source), true, asset.MIME); err != nil {
				return err
			}
			entry.Path = ""
			doc.Embedded = append(doc.Embedded, entry)
		}
	}

	if err := writeManifest(filepath.Join(tmp, packManifest), doc); err != nil {
		return err
	}
	if err := packed.Save(); err != nil {
		return err
	}
	if err := packed.Close(); err != nil {
		return err
	}
	return writeZipDir(tmp, dest)
}

// Unpack extracts a portable archive into destDir and returns the path of
// the unpacked project database. Unresolved loose assets stay referenced by
// their original paths.
func Unpack(archivePath, destDir string) (string, error) {
	if !IsZip(archivePath) {
		return "", fmt.Errorf("%s is not an archive: %w", archivePath, types.ErrInvalidFormat)
	}
	if !HasMember(archivePath, packProjectFile) {
		return "", fmt.Errorf("%s is not a portable project pack: %w", archivePath, types.ErrInvalidFormat)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating destination: %w", err)
	}
	if err := ExtractZip(archivePath, destDir); err != nil {
		return "", err
	}
	projectPath := filepath.Join(destDir, packProjectFile)
	if !sqlite.HasMagic(projectPath) {
		return "", fmt.Errorf("packed database damaged: %w", types.ErrBundleCorrupt)
	}
	return projectPath, nil
}

// copyIntoPack streams src into the pack staging directory. Loose assets are
// over the embed threshold, so the copy never buffers whole files.
func copyIntoPack(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating pack assets directory: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening asset %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("writing packed asset: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying asset %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing packed asset: %w", err)
	}
	return nil
}

func writeManifest(path string, doc packDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding pack manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing pack manifest: %w", err)
	}
	return nil
}
