package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasolab/vasostore/internal/sqlite"
	"github.com/vasolab/vasostore/pkg/types"
)

func TestAutosaveDoesNotTouchProjectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "study"+sqlite.DefaultFileExt)
	cfg := types.DefaultConfig()
	require.NoError(t, WriteSingleFile(path, &types.Project{Name: "saved"}, cfg, nil))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, WriteAutosave(path, &types.Project{Name: "unsaved edits"}, cfg, nil))
	assert.True(t, HasAutosave(path))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRestoreAutosavePromotesSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "study"+sqlite.DefaultFileExt)
	cfg := types.DefaultConfig()
	require.NoError(t, WriteSingleFile(path, &types.Project{Name: "saved"}, cfg, nil))
	require.NoError(t, WriteAutosave(path, &types.Project{Name: "recovered"}, cfg, nil))

	got, err := RestoreAutosave(path, cfg)
	require.NoError(t, err)
	assert.Equal(t, "recovered", got.Name)

	// The sidecar survives until the next normal save.
	assert.True(t, HasAutosave(path))

	reloaded, err := LoadSingleFile(path, cfg)
	require.NoError(t, err)
	assert.Equal(t, "recovered", reloaded.Name)
}

func TestRestoreAutosaveMissingSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "study"+sqlite.DefaultFileExt)
	cfg := types.DefaultConfig()
	require.NoError(t, WriteSingleFile(path, &types.Project{Name: "saved"}, cfg, nil))

	_, err := RestoreAutosave(path, cfg)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDiscardAutosave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "study"+sqlite.DefaultFileExt)
	cfg := types.DefaultConfig()
	require.NoError(t, WriteAutosave(path, &types.Project{Name: "draft"}, cfg, nil))
	require.True(t, HasAutosave(path))

	require.NoError(t, DiscardAutosave(path))
	assert.False(t, HasAutosave(path))

	// Discarding again is a no-op.
	assert.NoError(t, DiscardAutosave(path))
}

func TestRestoreAutosaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "study"+sqlite.DefaultFileExt)
	cfg := types.DefaultConfig()
	require.NoError(t, WriteSingleFile(path, &types.Project{Name: "saved"}, cfg, nil))
	require.NoError(t, WriteAutosave(path, &types.Project{Name: "recovered"}, cfg, nil))

	_, err := RestoreAutosave(path, cfg)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t,
		[]string{"study" + sqlite.DefaultFileExt, "study" + sqlite.DefaultFileExt + AutosaveSuffix},
		names)
}
