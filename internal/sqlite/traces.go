package sqlite

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/vasolab/vasostore/pkg/types"
)

// insertTraceRows bulk-inserts a trace frame inside the caller's transaction.
// Absent optional columns write NULL for every row.
func insertTraceRows(tx *sql.Tx, datasetID int64, trace *types.TraceFrame) error {
	if trace.Len() == 0 {
		return nil
	}
	stmt, err := tx.Prepare(
		`INSERT INTO trace(dataset_id, t_seconds, inner_diam, outer_diam, p_avg, p1, p2)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing trace insert: %w", err)
	}
	defer stmt.Close()

	for i := range trace.T {
		_, err := stmt.Exec(
			datasetID, trace.T[i],
			floatCell(trace.InnerDiam, i),
			floatCell(trace.OuterDiam, i),
			floatCell(trace.PAvg, i),
			floatCell(trace.P1, i),
			floatCell(trace.P2, i),
		)
		if err != nil {
			return fmt.Errorf("inserting trace row %d: %w", i, err)
		}
	}
	return nil
}

// ReplaceTrace swaps a dataset's trace rows for a new frame in one
// transaction. Trace rows are immutable between full replacements.
func ReplaceTrace(s *Store, datasetID int64, trace *types.TraceFrame) error {
	if s.db == nil {
		return types.ErrStoreClosed
	}
	if err := trace.Validate(); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning trace replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM trace WHERE dataset_id = ?`, datasetID); err != nil {
		return fmt.Errorf("clearing trace rows: %w", err)
	}
	if err := insertTraceRows(tx, datasetID, trace); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing trace replace: %w", err)
	}
	return nil
}

// GetTrace returns trace rows for a dataset, optionally filtered to the
// half-open time range [t0, t1). Nil bounds are unbounded; windowed access
// avoids loading an entire multi-hour recording.
func GetTrace(s *Store, datasetID int64, t0, t1 *float64) (*types.TraceFrame, error) {
	if s.db == nil {
		return nil, types.ErrStoreClosed
	}
	query := `SELECT t_seconds, inner_diam, outer_diam, p_avg, p1, p2
	            FROM trace WHERE dataset_id = ?`
	params := []any{datasetID}
	if t0 != nil {
		query += ` AND t_seconds >= ?`
		params = append(params, *t0)
	}
	if t1 != nil {
		query += ` AND t_seconds < ?`
		params = append(params, *t1)
	}
	query += ` ORDER BY t_seconds ASC`

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying trace rows: %w", err)
	}
	defer rows.Close()

	frame := &types.TraceFrame{}
	for rows.Next() {
		var t float64
		var inner, outer, pavg, p1, p2 sql.NullFloat64
		if err := rows.Scan(&t, &inner, &outer, &pavg, &p1, &p2); err != nil {
			return nil, fmt.Errorf("scanning trace row: %w", err)
		}
		frame.T = append(frame.T, t)
		frame.InnerDiam = append(frame.InnerDiam, nullToNaN(inner))
		frame.OuterDiam = append(frame.OuterDiam, nullToNaN(outer))
		frame.PAvg = append(frame.PAvg, nullToNaN(pavg))
		frame.P1 = append(frame.P1, nullToNaN(p1))
		frame.P2 = append(frame.P2, nullToNaN(p2))
	}
	return frame, rows.Err()
}

// floatCell maps an absent column or NaN entry to SQL NULL.
func floatCell(col []float64, i int) any {
	if col == nil {
		return nil
	}
	v := col[i]
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
