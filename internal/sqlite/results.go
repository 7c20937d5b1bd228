package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vasolab/vasostore/pkg/types"
)

// AddResult appends an analysis result to a dataset. Results are append-only;
// re-running an analysis adds a new row rather than replacing history.
func AddResult(s *Store, datasetID int64, kind string, payload types.Value, version string) (int64, error) {
	if s.db == nil {
		return 0, types.ErrStoreClosed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encoding result payload: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO result(dataset_id, kind, payload_json, created_utc, version)
		 VALUES (?, ?, ?, ?, ?)`,
		datasetID, kind, string(data), utcNow(), version)
	if err != nil {
		return 0, fmt.Errorf("inserting result: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading result id: %w", err)
	}
	return id, nil
}

// GetResults returns results for a dataset newest-first, optionally filtered
// to one kind. An empty kind matches everything.
func GetResults(s *Store, datasetID int64, kind string) ([]types.Result, error) {
	if s.db == nil {
		return nil, types.ErrStoreClosed
	}
	query := `SELECT id, kind, payload_json, created_utc, version
	            FROM result WHERE dataset_id = ?`
	params := []any{datasetID}
	if kind != "" {
		query += ` AND kind = ?`
		params = append(params, kind)
	}
	query += ` ORDER BY created_utc DESC, id DESC`

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var out []types.Result
	for rows.Next() {
		var r types.Result
		var payloadJSON string
		var version sql.NullString
		if err := rows.Scan(&r.ID, &r.Kind, &payloadJSON, &r.CreatedUTC, &version); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadJSON), &r.Payload); err != nil {
			return nil, fmt.Errorf("parsing result payload: %w", err)
		}
		r.Version = version.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteResult removes a single result row.
func DeleteResult(s *Store, resultID int64) error {
	if s.db == nil {
		return types.ErrStoreClosed
	}
	res, err := s.db.Exec(`DELETE FROM result WHERE id = ?`, resultID)
	if err != nil {
		return fmt.Errorf("deleting result %d: %w", resultID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("result %d: %w", resultID, types.ErrNotFound)
	}
	return nil
}
