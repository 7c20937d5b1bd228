package detect

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasolab/vasostore/internal/bundle"
	"github.com/vasolab/vasostore/internal/project"
	"github.com/vasolab/vasostore/internal/sqlite"
	"github.com/vasolab/vasostore/pkg/types"
)

// buildLegacyArchive writes an oldest-style legacy project zip.
func buildLegacyArchive(t *testing.T, path string) {
	t.Helper()
	members := map[string]string{
		"manifest.json": `{"experiments": {"exp1": {"trace_file": "exp1/trace.csv", "events_file": "exp1/events.csv"}}}`,
		"state.json":    `{"project_ui": {"zoom": 2}, "samples": {}}`,
		"exp1/trace.csv": "Time (s),Inner Diameter\n" +
			"0.0,120.5\n" +
			"0.5,119.8\n",
		"exp1/events.csv": "Time (s),Event,Frame\n" +
			"0.5,PE 1uM,15\n",
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := zip.NewWriter(f)
	for name, body := range members {
		member, err := w.Create(name)
		require.NoError(t, err)
		_, err = member.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func writeSingleFileProject(t *testing.T, path string) {
	t.Helper()
	p := &types.Project{
		Name: "detect test",
		Experiments: []types.Experiment{{
			Name:    "E1",
			Samples: []types.Sample{{Name: "s1"}},
		}},
	}
	require.NoError(t, project.WriteSingleFile(path, p, types.DefaultConfig(), nil))
}

func TestDetectSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study"+sqlite.DefaultFileExt)
	writeSingleFileProject(t, path)

	format, err := DetectProjectFormat(path)
	require.NoError(t, err)
	assert.Equal(t, FormatSingleFile, format)
}

func TestDetectBundle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "study"+bundle.Ext)
	b, err := bundle.Create(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	format, err := DetectProjectFormat(dir)
	require.NoError(t, err)
	assert.Equal(t, FormatBundle, format)
}

func TestDetectLegacyArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old-study.vaso")
	buildLegacyArchive(t, path)

	format, err := DetectProjectFormat(path)
	require.NoError(t, err)
	assert.Equal(t, FormatLegacy, format)
	assert.True(t, IsLegacyProject(path))
}

func TestDetectUnknownFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a project"), 0o644))

	_, err := DetectProjectFormat(path)
	assert.ErrorIs(t, err, types.ErrInvalidFormat)
}

func TestDetectPlainDirectory(t *testing.T) {
	_, err := DetectProjectFormat(t.TempDir())
	assert.ErrorIs(t, err, types.ErrInvalidFormat)
}

func TestDetectMissingPath(t *testing.T) {
	_, err := DetectProjectFormat(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
