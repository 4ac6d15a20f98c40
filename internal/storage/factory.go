package storage

import (
	"fmt"
	"path/filepath"
)

// SQLiteFile is the database name used when the sqlite backend is given
// a data directory.
const SQLiteFile = "runs.db"

// NewStore picks a backend by kind. For "sqlite", a path without an
// extension is treated as a directory holding SQLiteFile.
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "file":
		return NewFileStore(path), nil
	case "sqlite":
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, SQLiteFile)
		}
		return NewSQLiteStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}
