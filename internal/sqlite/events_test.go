package sqlite

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasolab/vasostore/pkg/types"
)

func TestEventRoundTrip(t *testing.T) {
	s := setupStore(t)
	events := &types.EventFrame{
		T:     []float64{10.5, 20.0},
		Label: []string{"PE 1uM", "washout"},
		Frame: []int64{315, 600},
		PAvg:  []float64{60, math.NaN()},
		Extra: []types.Value{
			types.Object(map[string]types.Value{"operator": types.String("mk")}),
			types.Null(),
		},
	}
	id, err := AddDataset(s, "evt-rt", &types.TraceFrame{}, events, types.DatasetMeta{})
	require.NoError(t, err)

	got, err := GetEvents(s, id, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, []float64{10.5, 20.0}, got.T)
	assert.Equal(t, []string{"PE 1uM", "washout"}, got.Label)
	assert.Equal(t, []int64{315, 600}, got.Frame)
	assert.Equal(t, 60.0, got.PAvg[0])
	assert.True(t, math.IsNaN(got.PAvg[1]))
	assert.Equal(t, "mk", got.Extra[0].Get("operator").Str())
	assert.True(t, got.Extra[1].IsNull())
}

func TestEventRangeAndOrdering(t *testing.T) {
	s := setupStore(t)
	events := &types.EventFrame{
		T:     []float64{5, 1, 3},
		Label: []string{"c", "a", "b"},
	}
	id, err := AddDataset(s, "evt-order", &types.TraceFrame{}, events, types.DatasetMeta{})
	require.NoError(t, err)

	got, err := GetEvents(s, id, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got.Label)

	t0, t1 := 1.0, 5.0
	got, err = GetEvents(s, id, &t0, &t1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Label)
}

func TestReplaceEvents(t *testing.T) {
	s := setupStore(t)
	id, err := AddDataset(s, "evt-replace", &types.TraceFrame{},
		&types.EventFrame{T: []float64{1}, Label: []string{"old"}}, types.DatasetMeta{})
	require.NoError(t, err)

	require.NoError(t, ReplaceEvents(s, id, &types.EventFrame{
		T:     []float64{2, 3},
		Label: []string{"new-1", "new-2"},
	}))
	got, err := GetEvents(s, id, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"new-1", "new-2"}, got.Label)
}

func TestReplaceEventsRejectsRaggedFrame(t *testing.T) {
	s := setupStore(t)
	id, err := AddDataset(s, "evt-bad", &types.TraceFrame{}, &types.EventFrame{}, types.DatasetMeta{})
	require.NoError(t, err)

	err = ReplaceEvents(s, id, &types.EventFrame{T: []float64{1, 2}, Label: []string{"only one"}})
	assert.Error(t, err)
}
