package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/vasolab/vasostore/pkg/types"
)

// ReadMeta returns all key/value rows from the meta table.
func ReadMeta(s *Store) (map[string]string, error) {
	if s.db == nil {
		return nil, types.ErrStoreClosed
	}
	rows, err := s.db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("reading project meta: %w", err)
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning meta row: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// GetMeta returns a single meta value, or ErrNotFound when the key is absent.
func GetMeta(s *Store, key string) (string, error) {
	if s.db == nil {
		return "", types.ErrStoreClosed
	}
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("meta key %q: %w", key, types.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("reading meta key %q: %w", key, err)
	}
	return value, nil
}

// WriteMeta upserts the given key/value pairs in one transaction.
func (s *Store) WriteMeta(meta map[string]string) error {
	if s.db == nil {
		return types.ErrStoreClosed
	}
	if len(meta) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning meta write: %w", err)
	}
	defer tx.Rollback()
	if err := writeMetaTx(tx, meta); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing meta write: %w", err)
	}
	return nil
}

// ClearProject deletes all dataset rows (cascading to trace, event, asset,
// chunk, result, and thumbnail rows) and the project-scoped meta keys.
// Engine-scoped keys like app_version and created_utc survive.
func ClearProject(s *Store) error {
	if s.db == nil {
		return types.ErrStoreClosed
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning project clear: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM dataset`); err != nil {
		return fmt.Errorf("clearing datasets: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM meta WHERE key LIKE 'project_%' OR key = 'experiments_meta'`); err != nil {
		return fmt.Errorf("clearing project meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing project clear: %w", err)
	}
	return nil
}

func writeMetaTx(tx *sql.Tx, meta map[string]string) error {
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO meta(key, value) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing meta upsert: %w", err)
	}
	defer stmt.Close()
	for k, v := range meta {
		if _, err := stmt.Exec(k, v); err != nil {
			return fmt.Errorf("writing meta key %q: %w", k, err)
		}
	}
	return nil
}
