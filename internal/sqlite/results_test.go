package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasolab/vasostore/pkg/types"
)

func TestResultsAppendOnlyNewestFirst(t *testing.T) {
	s := setupStore(t)
	id := addEmptyDataset(t, s)

	for i := 0; i < 3; i++ {
		_, err := AddResult(s, id, "diameter_stats",
			types.Object(map[string]types.Value{"run": types.Number(float64(i))}), "1.0")
		require.NoError(t, err)
	}

	results, err := GetResults(s, id, "diameter_stats")
	require.NoError(t, err)
	require.Len(t, results, 3)
	// Identical timestamps fall back to id DESC, so the latest run leads.
	assert.Equal(t, 2.0, results[0].Payload.Get("run").Num())
	assert.Equal(t, 0.0, results[2].Payload.Get("run").Num())
}

func TestResultsKindFilter(t *testing.T) {
	s := setupStore(t)
	id := addEmptyDataset(t, s)

	_, err := AddResult(s, id, "diameter_stats", types.Null(), "")
	require.NoError(t, err)
	_, err = AddResult(s, id, "pressure_fit", types.Null(), "2.3")
	require.NoError(t, err)

	only, err := GetResults(s, id, "pressure_fit")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "pressure_fit", only[0].Kind)
	assert.Equal(t, "2.3", only[0].Version)

	all, err := GetResults(s, id, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteResult(t *testing.T) {
	s := setupStore(t)
	id := addEmptyDataset(t, s)

	rid, err := AddResult(s, id, "diameter_stats", types.Null(), "")
	require.NoError(t, err)
	require.NoError(t, DeleteResult(s, rid))
	assert.ErrorIs(t, DeleteResult(s, rid), types.ErrNotFound)

	results, err := GetResults(s, id, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}
