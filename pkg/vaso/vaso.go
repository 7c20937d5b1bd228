// Package vaso is the caller-facing surface of the persistence engine. It
// classifies project paths, loads and saves whole project graphs, and wraps
// migration, packing, and autosave. GUI and CLI callers go through this
// package; the internal layers are never imported directly.
package vaso

import (
	"fmt"
	"log/slog"

	"github.com/vasolab/vasostore/internal/archive"
	"github.com/vasolab/vasostore/internal/bundle"
	"github.com/vasolab/vasostore/internal/detect"
	"github.com/vasolab/vasostore/internal/project"
	"github.com/vasolab/vasostore/pkg/types"
)

// Version is the engine version stamped into new project files.
const Version = "0.1.0"

// Format classifications, re-exported for callers of DetectFormat.
const (
	FormatSingleFile = detect.FormatSingleFile
	FormatBundle     = detect.FormatBundle
	FormatLegacy     = detect.FormatLegacy
)

// DetectFormat classifies a project path.
func DetectFormat(path string) (string, error) {
	return detect.DetectProjectFormat(path)
}

// LoadProject reads a project in any supported format. Legacy archives are
// loaded read-only without migrating the file on disk.
func LoadProject(path string, cfg types.Config) (*types.Project, error) {
	cfg = withVersion(cfg)
	format, err := detect.DetectProjectFormat(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatSingleFile:
		return project.LoadSingleFile(path, cfg)
	case FormatBundle:
		b, err := bundle.Open(path, cfg, nil)
		if err != nil {
			return nil, err
		}
		defer b.Close()
		return project.LoadFromStore(b.Store())
	case FormatLegacy:
		return archive.ReadLegacyProject(path)
	}
	return nil, fmt.Errorf("%s: %w", format, types.ErrInvalidFormat)
}

// SaveProject writes the project graph to path. An existing project keeps its
// format; a new path gets the format named by cfg.Format.
func SaveProject(path string, p *types.Project, cfg types.Config, log *slog.Logger) error {
	cfg = withVersion(cfg)
	if log == nil {
		log = slog.Default()
	}

	if format, err := detect.DetectProjectFormat(path); err == nil {
		switch format {
		case FormatBundle:
			return saveBundle(path, p, cfg, log, false)
		case FormatSingleFile, FormatLegacy:
			return project.WriteSingleFile(path, p, cfg, log)
		}
	}

	if cfg.Format == types.FormatBundle {
		return saveBundle(path, p, cfg, log, true)
	}
	return project.WriteSingleFile(path, p, cfg, log)
}

func saveBundle(dir string, p *types.Project, cfg types.Config, log *slog.Logger, create bool) error {
	var (
		b   *bundle.Bundle
		err error
	)
	if create {
		b, err = bundle.Create(dir, cfg, log)
	} else {
		b, err = bundle.Open(dir, cfg, log)
	}
	if err != nil {
		return err
	}
	defer b.Close()
	if err := project.ReplaceStore(b.Store(), p, cfg); err != nil {
		return err
	}
	return b.Save()
}

// MigrateLegacy rewrites a legacy archive as a single-file store, keeping a
// .bak copy of the original. Already-migrated files are left alone.
func MigrateLegacy(path string, cfg types.Config, log *slog.Logger) error {
	return detect.MigrateLegacy(path, withVersion(cfg), log)
}

// MigrateToBundle converts a project into a snapshot bundle, returning the
// bundle directory.
func MigrateToBundle(path string, cfg types.Config, log *slog.Logger) (string, error) {
	return detect.MigrateToBundle(path, withVersion(cfg), log)
}

// Pack writes a portable zip of a single-file project, embedding external
// assets at or under the configured threshold.
func Pack(projectPath, dest string, cfg types.Config, log *slog.Logger) error {
	return archive.Pack(projectPath, dest, withVersion(cfg), log)
}

// Unpack extracts a packed project zip into destDir and returns the project
// file path inside it.
func Unpack(archivePath, destDir string) (string, error) {
	return archive.Unpack(archivePath, destDir)
}

// WriteAutosave saves the project to its autosave sidecar without touching
// the real project file.
func WriteAutosave(projectPath string, p *types.Project, cfg types.Config, log *slog.Logger) error {
	return project.WriteAutosave(projectPath, p, withVersion(cfg), log)
}

// HasAutosave reports whether an autosave sidecar exists for projectPath.
func HasAutosave(projectPath string) bool {
	return project.HasAutosave(projectPath)
}

// RestoreAutosave promotes the autosave sidecar over the project file and
// returns the recovered project.
func RestoreAutosave(projectPath string, cfg types.Config) (*types.Project, error) {
	return project.RestoreAutosave(projectPath, withVersion(cfg))
}

// DiscardAutosave removes the autosave sidecar if present.
func DiscardAutosave(projectPath string) error {
	return project.DiscardAutosave(projectPath)
}

func withVersion(cfg types.Config) types.Config {
	if cfg.AppVersion == "" {
		cfg.AppVersion = Version
	}
	return cfg.Normalized()
}
