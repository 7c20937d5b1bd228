package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/vasolab/vasostore/pkg/types"
)

// insertEventRows bulk-inserts an event frame inside the caller's
// transaction.
func insertEventRows(tx *sql.Tx, datasetID int64, events *types.EventFrame) error {
	if events.Len() == 0 {
		return nil
	}
	stmt, err := tx.Prepare(
		`INSERT INTO event(dataset_id, t_seconds, label, frame, p_avg, p1, p2, temp, extra_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing event insert: %w", err)
	}
	defer stmt.Close()

	for i := range events.T {
		var frame any
		if events.Frame != nil {
			frame = events.Frame[i]
		}
		var extra any
		if events.Extra != nil && !events.Extra[i].IsNull() {
			data, err := json.Marshal(events.Extra[i])
			if err != nil {
				return fmt.Errorf("encoding event extra metadata: %w", err)
			}
			extra = string(data)
		}
		_, err := stmt.Exec(
			datasetID, events.T[i], events.Label[i], frame,
			floatCell(events.PAvg, i),
			floatCell(events.P1, i),
			floatCell(events.P2, i),
			floatCell(events.Temp, i),
			extra,
		)
		if err != nil {
			return fmt.Errorf("inserting event row %d: %w", i, err)
		}
	}
	return nil
}

// ReplaceEvents swaps a dataset's event rows for a new frame in one
// transaction. Events are user-editable, so saves rewrite the full set.
func ReplaceEvents(s *Store, datasetID int64, events *types.EventFrame) error {
	if s.db == nil {
		return types.ErrStoreClosed
	}
	if err := events.Validate(); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning event replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM event WHERE dataset_id = ?`, datasetID); err != nil {
		return fmt.Errorf("clearing event rows: %w", err)
	}
	if err := insertEventRows(tx, datasetID, events); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing event replace: %w", err)
	}
	return nil
}

// GetEvents returns event rows for a dataset, optionally filtered to the
// half-open time range [t0, t1).
func GetEvents(s *Store, datasetID int64, t0, t1 *float64) (*types.EventFrame, error) {
	if s.db == nil {
		return nil, types.ErrStoreClosed
	}
	query := `SELECT t_seconds, label, frame, p_avg, p1, p2, temp, extra_json
	            FROM event WHERE dataset_id = ?`
	params := []any{datasetID}
	if t0 != nil {
		query += ` AND t_seconds >= ?`
		params = append(params, *t0)
	}
	if t1 != nil {
		query += ` AND t_seconds < ?`
		params = append(params, *t1)
	}
	query += ` ORDER BY t_seconds ASC, id ASC`

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying event rows: %w", err)
	}
	defer rows.Close()

	events := &types.EventFrame{}
	for rows.Next() {
		var t float64
		var label string
		var frame sql.NullInt64
		var pavg, p1, p2, temp sql.NullFloat64
		var extraJSON sql.NullString
		if err := rows.Scan(&t, &label, &frame, &pavg, &p1, &p2, &temp, &extraJSON); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		events.T = append(events.T, t)
		events.Label = append(events.Label, label)
		events.Frame = append(events.Frame, frame.Int64)
		events.PAvg = append(events.PAvg, nullToNaN(pavg))
		events.P1 = append(events.P1, nullToNaN(p1))
		events.P2 = append(events.P2, nullToNaN(p2))
		events.Temp = append(events.Temp, nullToNaN(temp))
		var extra types.Value
		if extraJSON.Valid && extraJSON.String != "" {
			if err := json.Unmarshal([]byte(extraJSON.String), &extra); err != nil {
				return nil, fmt.Errorf("parsing event extra metadata: %w", err)
			}
		}
		events.Extra = append(events.Extra, extra)
	}
	return events, rows.Err()
}
