package project

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vasolab/vasostore/pkg/types"
)

// AutosaveSuffix is appended to a project path to form its autosave
// sidecar.
const AutosaveSuffix = ".autosave"

// AutosavePath returns the autosave sidecar path for a project file.
func AutosavePath(projectPath string) string {
	return projectPath + AutosaveSuffix
}

// WriteAutosave persists the project to its autosave sidecar. The real
// project file is never touched.
func WriteAutosave(projectPath string, p *types.Project, cfg types.Config, log *slog.Logger) error {
	return WriteSingleFile(AutosavePath(projectPath), p, cfg, log)
}

// HasAutosave reports whether an autosave sidecar exists for projectPath.
func HasAutosave(projectPath string) bool {
	info, err := os.Stat(AutosavePath(projectPath))
	return err == nil && info.Mode().IsRegular()
}

// RestoreAutosave promotes the autosave sidecar over the project file and
// loads the result. The sidecar is kept until the caller saves normally.
func RestoreAutosave(projectPath string, cfg types.Config) (*types.Project, error) {
	auto := AutosavePath(projectPath)
	if _, err := os.Stat(auto); err != nil {
		return nil, fmt.Errorf("autosave: %w", types.ErrNotFound)
	}
	if err := copyFile(auto, projectPath); err != nil {
		return nil, fmt.Errorf("restoring autosave: %w", err)
	}
	return LoadSingleFile(projectPath, cfg)
}

// DiscardAutosave removes the autosave sidecar if present.
func DiscardAutosave(projectPath string) error {
	err := os.Remove(AutosavePath(projectPath))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discarding autosave: %w", err)
	}
	return nil
}

// copyFile replaces dest with a copy of src via a temp name in dest's
// directory, so an interrupted copy never leaves dest half-written.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := out.Name()
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmpName)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmpName)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
