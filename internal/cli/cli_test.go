package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasolab/vasostore/internal/paths"
	"github.com/vasolab/vasostore/pkg/types"
	"github.com/vasolab/vasostore/pkg/vaso"
)

// execute runs the CLI with args and returns captured stdout/stderr.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func setupConfigDir(t *testing.T) {
	t.Helper()
	t.Setenv(paths.EnvConfigDir, t.TempDir())
}

func singleFileProject(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "study.vaso")
	p := &types.Project{
		Name: name,
		Experiments: []types.Experiment{{
			Name:    "E1",
			Samples: []types.Sample{{Name: "s1"}, {Name: "s2"}},
		}},
	}
	cfg := types.DefaultConfig()
	cfg.Format = types.FormatSingleFile
	require.NoError(t, vaso.SaveProject(path, p, cfg, nil))
	return path
}

func bundleProject(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "study.vasopack")
	p := &types.Project{Name: name}
	require.NoError(t, vaso.SaveProject(dir, p, types.DefaultConfig(), nil))
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vasostore v"+vaso.Version)
	assert.Contains(t, out, modulePath)
}

func TestInfoSingleFile(t *testing.T) {
	setupConfigDir(t)
	path := singleFileProject(t, "info test")

	out, err := execute(t, "info", path)
	require.NoError(t, err)
	assert.Contains(t, out, "single-file")
	assert.Contains(t, out, "info test")
	assert.Contains(t, out, "Samples:     2")
}

func TestInfoBundleJSON(t *testing.T) {
	setupConfigDir(t)
	dir := bundleProject(t, "bundle info")

	out, err := execute(t, "--json", "info", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `"format": "bundle"`)
	assert.Contains(t, out, `"current_snapshot"`)
}

func TestInfoUnknownPath(t *testing.T) {
	setupConfigDir(t)
	_, err := execute(t, "info", filepath.Join(t.TempDir(), "absent.vaso"))
	assert.Error(t, err)
}

func TestSnapshotListAndPublish(t *testing.T) {
	setupConfigDir(t)
	dir := bundleProject(t, "snap test")

	out, err := execute(t, "snapshot", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "snapshot published")

	out, err = execute(t, "snapshot", dir, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "000001.sqlite")
	assert.Contains(t, out, "* 000003.sqlite")
}

func TestPruneCommand(t *testing.T) {
	setupConfigDir(t)
	dir := bundleProject(t, "prune test")
	for i := 0; i < 3; i++ {
		_, err := execute(t, "snapshot", dir)
		require.NoError(t, err)
	}

	out, err := execute(t, "prune", dir, "--keep", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")

	snaps, err := vaso.ListSnapshots(dir)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestPackUnpackCommands(t *testing.T) {
	setupConfigDir(t)
	path := singleFileProject(t, "pack test")
	archive := filepath.Join(t.TempDir(), "study.zip")

	out, err := execute(t, "pack", path, archive)
	require.NoError(t, err)
	assert.Contains(t, out, "packed")

	dest := t.TempDir()
	out, err = execute(t, "unpack", archive, dest)
	require.NoError(t, err)
	assert.Contains(t, out, "project:")

	p, err := vaso.LoadProject(filepath.Join(dest, "project.vaso"), types.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "pack test", p.Name)
}

func TestExportCommand(t *testing.T) {
	setupConfigDir(t)
	dir := bundleProject(t, "export test")
	dest := filepath.Join(t.TempDir(), "exported.vaso")

	_, err := execute(t, "export", dir, dest)
	require.NoError(t, err)

	p, err := vaso.LoadProject(dest, types.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "export test", p.Name)
}

func TestRecoverCommand(t *testing.T) {
	setupConfigDir(t)
	path := singleFileProject(t, "saved")
	require.NoError(t, vaso.WriteAutosave(path, &types.Project{Name: "recovered"}, types.DefaultConfig(), nil))

	out, err := execute(t, "recover", path)
	require.NoError(t, err)
	assert.Contains(t, out, "recovered")
}

func TestRecoverWithoutAutosave(t *testing.T) {
	setupConfigDir(t)
	path := singleFileProject(t, "saved")

	_, err := execute(t, "recover", path)
	assert.Error(t, err)
}

func TestMigrateNoOpOnCurrentFormat(t *testing.T) {
	setupConfigDir(t)
	path := singleFileProject(t, "modern")

	out, err := execute(t, "migrate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "migrated")
}
