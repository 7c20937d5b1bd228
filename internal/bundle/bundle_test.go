package bundle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasolab/vasostore/internal/sqlite"
	"github.com/vasolab/vasostore/pkg/types"
)

// setupBundle creates a fresh bundle and returns it with its directory.
func setupBundle(t *testing.T) (*Bundle, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "study"+Ext)
	b, err := Create(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b, dir
}

func TestCreatePublishesFirstSnapshot(t *testing.T) {
	_, dir := setupBundle(t)

	head, err := readHead(dir)
	require.NoError(t, err)
	assert.Equal(t, "000001.sqlite", head.Current)

	require.NoError(t, sqlite.QuickCheckFile(filepath.Join(dir, snapshotsDir, head.Current)))
	assert.True(t, IsBundle(dir))
}

func TestSaveAppendsAndRepointsHead(t *testing.T) {
	b, dir := setupBundle(t)
	_, err := sqlite.AddDataset(b.Store(), "run-1", &types.TraceFrame{T: []float64{0, 1}}, &types.EventFrame{}, types.DatasetMeta{})
	require.NoError(t, err)
	require.NoError(t, b.Save())

	head, err := readHead(dir)
	require.NoError(t, err)
	assert.Equal(t, "000002.sqlite", head.Current)

	names, err := snapshotNames(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001.sqlite", "000002.sqlite"}, names)

	// The first snapshot is untouched: it still has no datasets.
	old, err := sqlite.Open(filepath.Join(dir, snapshotsDir, "000001.sqlite"), types.DefaultConfig())
	require.NoError(t, err)
	defer old.Close()
	list, err := sqlite.ListDatasets(old)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUnsavedChangesDiscardedOnClose(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "study"+Ext)
	b, err := Create(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	_, err = sqlite.AddDataset(b.Store(), "never-saved", &types.TraceFrame{}, &types.EventFrame{}, types.DatasetMeta{})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	reopened, err := Open(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	defer reopened.Close()
	list, err := sqlite.ListDatasets(reopened.Store())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpenFallsBackOnCorruptHead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "study"+Ext)
	b, err := Create(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	_, err = sqlite.AddDataset(b.Store(), "saved", &types.TraceFrame{}, &types.EventFrame{}, types.DatasetMeta{})
	require.NoError(t, err)
	require.NoError(t, b.Save())
	require.NoError(t, b.Close())

	// Simulate a torn head write.
	require.NoError(t, os.WriteFile(filepath.Join(dir, headFile), []byte(`{"curr`), 0o644))

	reopened, err := Open(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	defer reopened.Close()
	list, err := sqlite.ListDatasets(reopened.Store())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "saved", list[0].Name)
}

func TestOpenFallsBackPastDamagedSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "study"+Ext)
	b, err := Create(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	_, err = sqlite.AddDataset(b.Store(), "second", &types.TraceFrame{}, &types.EventFrame{}, types.DatasetMeta{})
	require.NoError(t, err)
	require.NoError(t, b.Save())
	require.NoError(t, b.Close())

	// Truncate the newest snapshot; HEAD still points at it.
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotsDir, "000002.sqlite"), []byte("garbage"), 0o644))

	reopened, err := Open(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	defer reopened.Close()
	// Fallback lands on the older snapshot, which predates the dataset.
	list, err := sqlite.ListDatasets(reopened.Store())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpenAllSnapshotsDamaged(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "study"+Ext)
	b, err := Create(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotsDir, "000001.sqlite"), []byte("junk"), 0o644))

	_, err = Open(dir, types.DefaultConfig(), nil)
	assert.ErrorIs(t, err, types.ErrBundleCorrupt)
}

func TestOpenNonBundle(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir, types.DefaultConfig(), nil)
	assert.ErrorIs(t, err, types.ErrInvalidFormat)
}

func TestLiveLockRefused(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "study"+Ext)
	b, err := Create(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	defer b.Close()

	// The creating session still holds the lock.
	_, err = Open(dir, types.DefaultConfig(), nil)
	assert.ErrorIs(t, err, types.ErrBundleLocked)
}

func TestStaleLockReclaimed(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "study"+Ext)
	b, err := Create(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	// Forge a lock held by a long-dead process an hour and a half ago.
	hostname, _ := os.Hostname()
	stale, err := json.Marshal(lockInfo{
		PID:       1 << 30,
		Hostname:  hostname,
		Timestamp: time.Now().Add(-90 * time.Minute).UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFile), stale, 0o644))

	reopened, err := Open(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, reopened.Close())
}

func TestMetaMirrorWritten(t *testing.T) {
	b, dir := setupBundle(t)
	require.NoError(t, b.Store().WriteMeta(map[string]string{"project_name": "Mesenteric study"}))
	require.NoError(t, b.Save())

	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	require.NoError(t, err)
	var mirror metaMirror
	require.NoError(t, json.Unmarshal(data, &mirror))
	assert.Equal(t, "Mesenteric study", mirror.Name)
	assert.Equal(t, "000002.sqlite", mirror.Current)
}

func TestFallbackRepointsHead(t *testing.T) {
	b, dir := setupBundle(t)
	_, err := sqlite.AddDataset(b.Store(), "run-1", &types.TraceFrame{T: []float64{0}}, &types.EventFrame{}, types.DatasetMeta{})
	require.NoError(t, err)
	require.NoError(t, b.Save())
	require.NoError(t, b.Close())

	// HEAD names 000002 but its target is gone.
	require.NoError(t, os.Remove(filepath.Join(dir, snapshotsDir, "000002.sqlite")))

	b2, err := Open(dir, types.DefaultConfig(), nil)
	require.NoError(t, err)
	defer b2.Close()

	head, err := readHead(dir)
	require.NoError(t, err)
	assert.Equal(t, "000001.sqlite", head.Current, "head is repaired after the fallback scan")
}
