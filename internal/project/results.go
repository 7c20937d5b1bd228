package project

import (
	"fmt"

	"github.com/vasolab/vasostore/internal/sqlite"
	"github.com/vasolab/vasostore/pkg/types"
)

// storeResults appends a sample's analysis results. Results missing a
// version are stamped with the running app version.
func storeResults(s *sqlite.Store, datasetID int64, results []types.Result, appVersion string) error {
	for _, r := range results {
		version := r.Version
		if version == "" {
			version = appVersion
		}
		if _, err := sqlite.AddResult(s, datasetID, r.Kind, r.Payload, version); err != nil {
			return fmt.Errorf("storing result %q: %w", r.Kind, err)
		}
	}
	return nil
}

// loadResults returns a sample's results, newest-first.
func loadResults(s *sqlite.Store, datasetID int64) ([]types.Result, error) {
	return sqlite.GetResults(s, datasetID, "")
}
