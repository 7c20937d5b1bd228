package sqlite

import (
	"database/sql"
	"fmt"
	"io"
	"os"
)

// HasMagic reports whether the file at path starts with the SQLite header.
func HasMagic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	header := make([]byte, len(MagicHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return string(header) == MagicHeader
}

// QuickCheckFile opens the database file read-only and runs PRAGMA
// quick_check, without schema-version gating or migration. Used to validate
// snapshot copies before they are trusted.
func QuickCheckFile(path string) error {
	if !HasMagic(path) {
		return fmt.Errorf("%s is not a database file", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening %s for check: %w", path, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	var status string
	if err := db.QueryRow(`PRAGMA quick_check;`).Scan(&status); err != nil {
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if status != "ok" {
		return fmt.Errorf("integrity check on %s: %s", path, status)
	}
	return nil
}
