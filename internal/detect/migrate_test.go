package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasolab/vasostore/internal/bundle"
	"github.com/vasolab/vasostore/internal/project"
	"github.com/vasolab/vasostore/pkg/types"
)

func TestMigrateLegacyRewritesInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old-study.vaso")
	buildLegacyArchive(t, path)
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, MigrateLegacy(path, types.DefaultConfig(), nil))

	format, err := DetectProjectFormat(path)
	require.NoError(t, err)
	assert.Equal(t, FormatSingleFile, format)

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, original, backup)

	p, err := project.LoadSingleFile(path, types.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "old-study", p.Name)
	assert.Equal(t, 2.0, p.UIState.Get("zoom").Num())
	require.Len(t, p.Experiments, 1)
	require.Len(t, p.Experiments[0].Samples, 1)
	s := p.Experiments[0].Samples[0]
	assert.Equal(t, 2, s.Trace.Len())
	assert.Equal(t, 120.5, s.Trace.InnerDiam[0])
	require.Equal(t, 1, s.Events.Len())
	assert.Equal(t, "PE 1uM", s.Events.Label[0])
}

func TestMigrateLegacyIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old-study.vaso")
	buildLegacyArchive(t, path)
	require.NoError(t, MigrateLegacy(path, types.DefaultConfig(), nil))

	migrated, err := os.ReadFile(path)
	require.NoError(t, err)

	// The second run detects the migrated format and leaves everything alone.
	require.NoError(t, MigrateLegacy(path, types.DefaultConfig(), nil))
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, migrated, after)
}

func TestMigrateToBundleFromSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "study.vaso")
	writeSingleFileProject(t, path)

	bundleDir, err := MigrateToBundle(path, types.DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "study"+bundle.Ext), bundleDir)
	assert.True(t, bundle.IsBundle(bundleDir))

	// The source file is left in place.
	format, err := DetectProjectFormat(path)
	require.NoError(t, err)
	assert.Equal(t, FormatSingleFile, format)

	b, err := bundle.Open(bundleDir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	defer b.Close()
	p, err := project.LoadFromStore(b.Store())
	require.NoError(t, err)
	assert.Equal(t, "detect test", p.Name)
	require.Len(t, p.Experiments, 1)
	assert.Equal(t, "s1", p.Experiments[0].Samples[0].Name)
}

func TestMigrateToBundleIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.vaso")
	writeSingleFileProject(t, path)

	first, err := MigrateToBundle(path, types.DefaultConfig(), nil)
	require.NoError(t, err)
	second, err := MigrateToBundle(path, types.DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Still a single published snapshot.
	snaps, err := bundle.ListSnapshots(first)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestMigrateToBundleFromLegacy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old-study.vaso")
	buildLegacyArchive(t, path)

	bundleDir, err := MigrateToBundle(path, types.DefaultConfig(), nil)
	require.NoError(t, err)
	assert.True(t, bundle.IsBundle(bundleDir))
	assert.FileExists(t, path+".bak")

	b, err := bundle.Open(bundleDir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	defer b.Close()
	p, err := project.LoadFromStore(b.Store())
	require.NoError(t, err)
	assert.Equal(t, "old-study", p.Name)
}

func TestMigrateToBundleOnBundle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "study"+bundle.Ext)
	b, err := bundle.Create(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	got, err := MigrateToBundle(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}
