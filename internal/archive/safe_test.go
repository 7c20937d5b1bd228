package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasolab/vasostore/pkg/types"
)

// buildZip writes a zip at path with the given member name -> content map.
func buildZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestExtractZipRoundTrip(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "ok.zip")
	buildZip(t, zipPath, map[string]string{
		"metadata.json":      "{}",
		"exp/one/trace.csv":  "Time (s)\n0\n",
		"exp/one/events.csv": "Event,Time\nstart,0\n",
	})

	dest := filepath.Join(dir, "out")
	require.NoError(t, ExtractZip(zipPath, dest))

	data, err := os.ReadFile(filepath.Join(dest, "exp", "one", "trace.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Time (s)\n0\n", string(data))
}

func TestExtractZipRefusesEscapingMember(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	buildZip(t, zipPath, map[string]string{
		"fine.txt":    "ok",
		"../evil.txt": "outside",
	})

	dest := filepath.Join(dir, "out")
	err := ExtractZip(zipPath, dest)
	assert.ErrorIs(t, err, types.ErrUnsafeArchiveMember)

	// Nothing was written, not even the safe member.
	_, err = os.Stat(filepath.Join(dest, "fine.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "evil.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestIsZipAndHasMember(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "a.zip")
	buildZip(t, zipPath, map[string]string{"manifest.json": "{}"})

	assert.True(t, IsZip(zipPath))
	assert.True(t, HasMember(zipPath, "manifest.json"))
	assert.False(t, HasMember(zipPath, "state.json"))

	plain := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(plain, []byte("not a zip"), 0o644))
	assert.False(t, IsZip(plain))
}

func TestWriteZipDirRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.txt"), []byte("top"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "assets", "deep.bin"), []byte("deep"), 0o644))

	zipPath := filepath.Join(dir, "out.zip")
	require.NoError(t, writeZipDir(src, zipPath))

	dest := filepath.Join(dir, "dest")
	require.NoError(t, ExtractZip(zipPath, dest))
	data, err := os.ReadFile(filepath.Join(dest, "assets", "deep.bin"))
	require.NoError(t, err)
	assert.Equal(t, "deep", string(data))
}
