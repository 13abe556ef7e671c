// Package sqlite keeps the portfolio in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"rentcore/internal/infra/persistence/snapshotdb"
	"rentcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "rentcore.db"

// Store is a snapshotdb.Store bound to a SQLite file.
type Store struct {
	*snapshotdb.Store
	path string
}

// NewStore opens (creating when needed) the SQLite file at path.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc serialises writers per file; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	inner, err := snapshotdb.Open(context.Background(), db, snapshotdb.SQLite, engine)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }
