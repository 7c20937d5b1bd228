package sqlite

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/vasolab/vasostore/pkg/types"
)

// AssetSource supplies asset content either from memory or from a file on
// disk. Exactly one of Data and Path is set.
type AssetSource struct {
	Data []byte
	Path string
}

// BytesSource returns a source over an in-memory buffer.
func BytesSource(data []byte) AssetSource { return AssetSource{Data: data} }

// FileSource returns a source over a file path. Content is streamed in
// chunk-size windows so multi-gigabyte stacks never load whole.
func FileSource(path string) AssetSource { return AssetSource{Path: path} }

// AddOrUpdateAsset records content for a (dataset, role) pair. Roles are
// unique per dataset, so an existing row is updated in place: its hash is
// recomputed and any previous chunk rows are dropped and rewritten, even
// when the content happens to be unchanged. The whole upsert is one
// transaction.
func AddOrUpdateAsset(s *Store, datasetID int64, role string, src AssetSource, embed bool, mimeType string) (int64, error) {
	if s.db == nil {
		return 0, types.ErrStoreClosed
	}

	var (
		sha     string
		size    int64
		relPath any
		err     error
	)
	storage := types.StorageExternal
	if embed {
		storage = types.StorageEmbedded
	}

	if src.Path != "" {
		info, statErr := os.Stat(src.Path)
		if statErr != nil {
			return 0, fmt.Errorf("asset source %s: %w", src.Path, types.ErrAssetMissing)
		}
		size = info.Size()
		sha, err = HashFile(src.Path)
		if err != nil {
			return 0, err
		}
		if embed {
			// Provenance only; embedded content lives in blob_chunk.
			relPath = src.Path
		} else {
			rel, relErr := filepath.Rel(s.Dir(), src.Path)
			if relErr != nil {
				rel = src.Path
			}
			relPath = filepath.ToSlash(rel)
		}
		if mimeType == "" {
			mimeType = guessMIME(src.Path)
		}
	} else {
		sum := sha256.Sum256(src.Data)
		sha = hex.EncodeToString(sum[:])
		size = int64(len(src.Data))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning asset upsert: %w", err)
	}
	defer tx.Rollback()

	var assetID int64
	err = tx.QueryRow(
		`SELECT id FROM asset WHERE dataset_id = ? AND role = ?`,
		datasetID, role).Scan(&assetID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, insErr := tx.Exec(
			`INSERT INTO asset(dataset_id, role, storage, rel_path, sha256, bytes, mime)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			datasetID, role, storage, relPath, sha, size, nullString(mimeType))
		if insErr != nil {
			return 0, fmt.Errorf("inserting asset: %w", insErr)
		}
		assetID, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("reading asset id: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("looking up asset: %w", err)
	default:
		if _, err := tx.Exec(
			`UPDATE asset SET storage = ?, rel_path = ?, sha256 = ?, bytes = ?, mime = ? WHERE id = ?`,
			storage, relPath, sha, size, nullString(mimeType), assetID); err != nil {
			return 0, fmt.Errorf("updating asset: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM blob_chunk WHERE asset_id = ?`, assetID); err != nil {
			return 0, fmt.Errorf("clearing asset chunks: %w", err)
		}
	}

	if embed {
		var r io.Reader
		if src.Path != "" {
			f, openErr := os.Open(src.Path)
			if openErr != nil {
				return 0, fmt.Errorf("opening asset source: %w", openErr)
			}
			defer f.Close()
			r = f
		} else {
			r = bytes.NewReader(src.Data)
		}
		if err := writeChunks(tx, assetID, r, s.chunkSize); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing asset upsert: %w", err)
	}
	return assetID, nil
}

// writeChunks splits r into ordered chunk rows. Chunked storage avoids
// single-row giant-BLOB writes and allows streaming reconstruction.
func writeChunks(tx *sql.Tx, assetID int64, r io.Reader, chunkSize int64) error {
	stmt, err := tx.Prepare(`INSERT INTO blob_chunk(asset_id, seq, data) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	buf := make([]byte, chunkSize)
	for seq := 0; ; seq++ {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			if _, err := stmt.Exec(assetID, seq, buf[:n]); err != nil {
				return fmt.Errorf("inserting chunk %d: %w", seq, err)
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("reading asset content: %w", readErr)
		}
	}
}

// GetAssetInfo returns the metadata row for an asset.
func GetAssetInfo(s *Store, assetID int64) (types.AssetInfo, error) {
	if s.db == nil {
		return types.AssetInfo{}, types.ErrStoreClosed
	}
	row := s.db.QueryRow(
		`SELECT id, dataset_id, role, storage, rel_path, sha256, bytes, mime
		   FROM asset WHERE id = ?`, assetID)
	info, err := scanAssetInfo(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return types.AssetInfo{}, fmt.Errorf("asset %d: %w", assetID, types.ErrNotFound)
	}
	return info, err
}

// GetAssetByRole looks an asset up by its stable (dataset, role) handle.
func GetAssetByRole(s *Store, datasetID int64, role string) (types.AssetInfo, error) {
	if s.db == nil {
		return types.AssetInfo{}, types.ErrStoreClosed
	}
	row := s.db.QueryRow(
		`SELECT id, dataset_id, role, storage, rel_path, sha256, bytes, mime
		   FROM asset WHERE dataset_id = ? AND role = ?`, datasetID, role)
	info, err := scanAssetInfo(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return types.AssetInfo{}, fmt.Errorf("asset %s for dataset %d: %w", role, datasetID, types.ErrNotFound)
	}
	return info, err
}

// ListAssets returns metadata for all assets linked to a dataset.
func ListAssets(s *Store, datasetID int64) ([]types.AssetInfo, error) {
	if s.db == nil {
		return nil, types.ErrStoreClosed
	}
	rows, err := s.db.Query(
		`SELECT id, dataset_id, role, storage, rel_path, sha256, bytes, mime
		   FROM asset WHERE dataset_id = ? ORDER BY id ASC`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	defer rows.Close()

	var out []types.AssetInfo
	for rows.Next() {
		info, err := scanAssetInfo(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// AllAssets returns every asset row in the store, for pack rewrites.
func AllAssets(s *Store) ([]types.AssetInfo, error) {
	if s.db == nil {
		return nil, types.ErrStoreClosed
	}
	rows, err := s.db.Query(
		`SELECT id, dataset_id, role, storage, rel_path, sha256, bytes, mime
		   FROM asset ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	defer rows.Close()

	var out []types.AssetInfo
	for rows.Next() {
		info, err := scanAssetInfo(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// GetAssetBytes reconstructs an asset's content: embedded chunks are
// concatenated in index order, external paths are read from disk relative to
// the store directory. A checksum mismatch is advisory: the bytes are
// returned alongside an error wrapping ErrChecksumMismatch, never silently
// repaired.
func GetAssetBytes(s *Store, assetID int64) ([]byte, error) {
	info, err := GetAssetInfo(s, assetID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeAssetContent(s, info, &buf); err != nil {
		return nil, err
	}
	data := buf.Bytes()
	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); got != info.SHA256 {
		return data, fmt.Errorf("asset %d: recorded %s, content %s: %w",
			assetID, info.SHA256, got, types.ErrChecksumMismatch)
	}
	return data, nil
}

// WriteAssetTo streams an asset's content to w without verifying the hash,
// for large-stack reconstruction where the caller controls buffering.
func WriteAssetTo(s *Store, assetID int64, w io.Writer) error {
	info, err := GetAssetInfo(s, assetID)
	if err != nil {
		return err
	}
	return writeAssetContent(s, info, w)
}

func writeAssetContent(s *Store, info types.AssetInfo, w io.Writer) error {
	if info.Storage == types.StorageEmbedded {
		rows, err := s.db.Query(
			`SELECT data FROM blob_chunk WHERE asset_id = ? ORDER BY seq ASC`, info.ID)
		if err != nil {
			return fmt.Errorf("reading asset chunks: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var chunk []byte
			if err := rows.Scan(&chunk); err != nil {
				return fmt.Errorf("scanning asset chunk: %w", err)
			}
			if _, err := w.Write(chunk); err != nil {
				return fmt.Errorf("writing asset content: %w", err)
			}
		}
		return rows.Err()
	}

	if info.RelPath == "" {
		return fmt.Errorf("asset %d has no path: %w", info.ID, types.ErrAssetMissing)
	}
	path := info.RelPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.Dir(), filepath.FromSlash(info.RelPath))
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("asset %d at %s: %w", info.ID, path, types.ErrAssetMissing)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading external asset: %w", err)
	}
	return nil
}

// SetAssetPath rewrites an external asset's stored path. Pack and relink
// operations use it after moving the referenced file.
func SetAssetPath(s *Store, assetID int64, relPath string) error {
	if s.db == nil {
		return types.ErrStoreClosed
	}
	res, err := s.db.Exec(`UPDATE asset SET rel_path = ? WHERE id = ?`,
		nullString(filepath.ToSlash(relPath)), assetID)
	if err != nil {
		return fmt.Errorf("updating asset %d path: %w", assetID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("asset %d: %w", assetID, types.ErrNotFound)
	}
	return nil
}

// HashFile returns the SHA-256 hex digest of a file, streamed in fixed-size
// windows to bound memory on multi-gigabyte inputs.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func scanAssetInfo(scan func(...any) error) (types.AssetInfo, error) {
	var info types.AssetInfo
	var relPath, mimeType sql.NullString
	var size sql.NullInt64
	err := scan(&info.ID, &info.DatasetID, &info.Role, &info.Storage, &relPath, &info.SHA256, &size, &mimeType)
	if err != nil {
		return info, err
	}
	info.RelPath = relPath.String
	info.Bytes = size.Int64
	info.MIME = mimeType.String
	return info, nil
}

func guessMIME(path string) string {
	return mime.TypeByExtension(filepath.Ext(path))
}
