package detect

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vasolab/vasostore/internal/archive"
	"github.com/vasolab/vasostore/internal/bundle"
	"github.com/vasolab/vasostore/internal/project"
	"github.com/vasolab/vasostore/pkg/types"
)

// MigrateLegacy rewrites a legacy zip archive in place as a single-file
// store. The original archive is preserved at <path>.bak before the rewrite.
// Running it on an already-migrated file is a no-op.
func MigrateLegacy(path string, cfg types.Config, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	format, err := DetectProjectFormat(path)
	if err != nil {
		return err
	}
	switch format {
	case FormatSingleFile, FormatBundle:
		log.Info("already migrated", "path", path, "format", format)
		return nil
	case FormatLegacy:
	default:
		return fmt.Errorf("cannot migrate %s format: %w", format, types.ErrInvalidFormat)
	}

	// Checksum verification happens inside the read; a mismatch aborts here
	// with the original untouched.
	p, err := archive.ReadLegacyProject(path)
	if err != nil {
		return err
	}

	if err := copyFile(path, path+".bak"); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	if err := project.WriteSingleFile(path, p, cfg, log); err != nil {
		return err
	}
	log.Info("migrated legacy archive", "path", path, "backup", path+".bak")
	return nil
}

// MigrateToBundle converts a project at path into a snapshot bundle and
// returns the bundle directory. Legacy archives are migrated to the
// single-file format first. A path that already is a bundle is returned
// unchanged.
func MigrateToBundle(path string, cfg types.Config, log *slog.Logger) (string, error) {
	if log == nil {
		log = slog.Default()
	}
	format, err := DetectProjectFormat(path)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatBundle:
		log.Info("already a bundle", "path", path)
		return path, nil
	case FormatLegacy:
		if err := MigrateLegacy(path, cfg, log); err != nil {
			return "", err
		}
	case FormatSingleFile:
	}

	dir := bundleDirFor(path)
	if bundle.IsBundle(dir) {
		log.Info("bundle already exists", "path", dir)
		return dir, nil
	}
	if err := bundle.InitFromFile(dir, path, log); err != nil {
		return "", err
	}
	log.Info("migrated to bundle", "source", path, "bundle", dir)
	return dir, nil
}

// bundleDirFor derives the bundle directory name from a single-file path by
// swapping the extension.
func bundleDirFor(path string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	return base + bundle.Ext
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
