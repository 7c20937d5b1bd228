// Package integration exercises whole-engine scenarios across the store,
// bundle, archive, and mapping layers together.
package integration

import (
	"archive/zip"
	"crypto/rand"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vasolab/vasostore/pkg/types"
)

// syntheticTrace builds a dense trace with n rows at 10 Hz.
func syntheticTrace(n int) *types.TraceFrame {
	f := &types.TraceFrame{
		T:         make([]float64, n),
		InnerDiam: make([]float64, n),
		OuterDiam: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		f.T[i] = float64(i) * 0.1
		f.InnerDiam[i] = 120 + 5*math.Sin(float64(i)/50)
		f.OuterDiam[i] = 160 + 5*math.Sin(float64(i)/50)
	}
	return f
}

// syntheticEvents builds n labeled events spread over the trace window.
func syntheticEvents(n int) *types.EventFrame {
	f := &types.EventFrame{
		T:     make([]float64, n),
		Label: make([]string, n),
	}
	for i := 0; i < n; i++ {
		f.T[i] = float64(i) * 10
		f.Label[i] = "event"
	}
	return f
}

// writeLegacyArchive writes an oldest-style legacy project zip at path.
func writeLegacyArchive(t *testing.T, path string) {
	t.Helper()
	members := map[string]string{
		"manifest.json":   `{"experiments": {"exp1": {"trace_file": "exp1/trace.csv"}}}`,
		"state.json":      `{"project_ui": {}, "samples": {}}`,
		"exp1/trace.csv":  "Time (s),Inner Diameter\n0.0,120.5\n0.5,119.8\n",
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

// randomBytes returns size bytes of random content.
func randomBytes(t *testing.T, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}
