package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vasolab/vasostore/pkg/types"
)

// AddDataset inserts a dataset row plus its bulk trace and event rows in one
// transaction and returns the new dataset id. A failure anywhere rolls the
// whole insert back.
func AddDataset(s *Store, name string, trace *types.TraceFrame, events *types.EventFrame, meta types.DatasetMeta) (int64, error) {
	if s.db == nil {
		return 0, types.ErrStoreClosed
	}
	if err := trace.Validate(); err != nil {
		return 0, err
	}
	if err := events.Validate(); err != nil {
		return 0, err
	}

	extraJSON, err := marshalExtra(meta.Extra)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning dataset insert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO dataset(name, created_utc, notes, fps, pixel_size_um, t0_seconds, extra_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, utcNow(), nullString(meta.Notes),
		nullZeroFloat(meta.FPS), nullZeroFloat(meta.PixelSizeUM),
		meta.T0Seconds, extraJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting dataset: %w", err)
	}
	datasetID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading dataset id: %w", err)
	}

	if err := insertTraceRows(tx, datasetID, trace); err != nil {
		return 0, err
	}
	if err := insertEventRows(tx, datasetID, events); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing dataset insert: %w", err)
	}
	return datasetID, nil
}

// DatasetUpdate carries partial metadata updates; nil fields are untouched.
type DatasetUpdate struct {
	Name        *string
	Notes       *string
	FPS         *float64
	PixelSizeUM *float64
	T0Seconds   *float64
	Extra       *types.Value
}

// UpdateDatasetMeta applies a partial update to a dataset's metadata columns.
func UpdateDatasetMeta(s *Store, datasetID int64, upd DatasetUpdate) error {
	if s.db == nil {
		return types.ErrStoreClosed
	}
	var assigns []string
	var params []any
	if upd.Name != nil {
		assigns = append(assigns, "name = ?")
		params = append(params, *upd.Name)
	}
	if upd.Notes != nil {
		assigns = append(assigns, "notes = ?")
		params = append(params, nullString(*upd.Notes))
	}
	if upd.FPS != nil {
		assigns = append(assigns, "fps = ?")
		params = append(params, *upd.FPS)
	}
	if upd.PixelSizeUM != nil {
		assigns = append(assigns, "pixel_size_um = ?")
		params = append(params, *upd.PixelSizeUM)
	}
	if upd.T0Seconds != nil {
		assigns = append(assigns, "t0_seconds = ?")
		params = append(params, *upd.T0Seconds)
	}
	if upd.Extra != nil {
		extraJSON, err := marshalExtra(*upd.Extra)
		if err != nil {
			return err
		}
		assigns = append(assigns, "extra_json = ?")
		params = append(params, extraJSON)
	}
	if len(assigns) == 0 {
		return nil
	}
	params = append(params, datasetID)
	query := "UPDATE dataset SET " + joinAssigns(assigns) + " WHERE id = ?"
	res, err := s.db.Exec(query, params...)
	if err != nil {
		return fmt.Errorf("updating dataset %d: %w", datasetID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("dataset %d: %w", datasetID, types.ErrNotFound)
	}
	return nil
}

// GetDatasetMeta returns metadata for a single dataset.
func GetDatasetMeta(s *Store, datasetID int64) (types.DatasetMeta, error) {
	if s.db == nil {
		return types.DatasetMeta{}, types.ErrStoreClosed
	}
	row := s.db.QueryRow(
		`SELECT id, name, created_utc, notes, fps, pixel_size_um, t0_seconds, extra_json
		   FROM dataset WHERE id = ?`, datasetID)
	meta, err := scanDatasetMeta(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return types.DatasetMeta{}, fmt.Errorf("dataset %d: %w", datasetID, types.ErrNotFound)
	}
	return meta, err
}

// ListDatasets returns metadata for all datasets ordered by id.
func ListDatasets(s *Store) ([]types.DatasetMeta, error) {
	if s.db == nil {
		return nil, types.ErrStoreClosed
	}
	rows, err := s.db.Query(
		`SELECT id, name, created_utc, notes, fps, pixel_size_um, t0_seconds, extra_json
		   FROM dataset ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	defer rows.Close()

	var out []types.DatasetMeta
	for rows.Next() {
		meta, err := scanDatasetMeta(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

// DeleteDataset removes a dataset and, via cascades, its trace, event,
// asset, chunk, result, and thumbnail rows.
func DeleteDataset(s *Store, datasetID int64) error {
	if s.db == nil {
		return types.ErrStoreClosed
	}
	res, err := s.db.Exec(`DELETE FROM dataset WHERE id = ?`, datasetID)
	if err != nil {
		return fmt.Errorf("deleting dataset %d: %w", datasetID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("dataset %d: %w", datasetID, types.ErrNotFound)
	}
	return nil
}

// SetThumbnail upserts the per-dataset preview PNG.
func SetThumbnail(s *Store, datasetID int64, png []byte) error {
	if s.db == nil {
		return types.ErrStoreClosed
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO thumbnail(dataset_id, png) VALUES (?, ?)`,
		datasetID, png)
	if err != nil {
		return fmt.Errorf("writing thumbnail for dataset %d: %w", datasetID, err)
	}
	return nil
}

// GetThumbnail returns the preview PNG, or ErrNotFound when none is stored.
func GetThumbnail(s *Store, datasetID int64) ([]byte, error) {
	if s.db == nil {
		return nil, types.ErrStoreClosed
	}
	var png []byte
	err := s.db.QueryRow(`SELECT png FROM thumbnail WHERE dataset_id = ?`, datasetID).Scan(&png)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thumbnail for dataset %d: %w", datasetID, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading thumbnail for dataset %d: %w", datasetID, err)
	}
	return png, nil
}

func scanDatasetMeta(scan func(...any) error) (types.DatasetMeta, error) {
	var meta types.DatasetMeta
	var notes, extraJSON sql.NullString
	var fps, pixel, t0 sql.NullFloat64
	err := scan(&meta.ID, &meta.Name, &meta.CreatedUTC, &notes, &fps, &pixel, &t0, &extraJSON)
	if err != nil {
		return meta, err
	}
	meta.Notes = notes.String
	meta.FPS = fps.Float64
	meta.PixelSizeUM = pixel.Float64
	meta.T0Seconds = t0.Float64
	if extraJSON.Valid && extraJSON.String != "" {
		if err := json.Unmarshal([]byte(extraJSON.String), &meta.Extra); err != nil {
			return meta, fmt.Errorf("parsing dataset extra metadata: %w", err)
		}
	}
	return meta, nil
}

// marshalExtra serializes an extra_json value, mapping null to SQL NULL.
func marshalExtra(v types.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding extra metadata: %w", err)
	}
	return string(data), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullZeroFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}

func joinAssigns(assigns []string) string {
	out := assigns[0]
	for _, a := range assigns[1:] {
		out += ", " + a
	}
	return out
}
