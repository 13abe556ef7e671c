// Package postgres keeps the portfolio in a PostgreSQL table of JSONB buckets.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"rentcore/internal/infra/persistence/snapshotdb"
	"rentcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

var _ domain.PersistentStore = (*Store)(nil)

const defaultDSN = "postgres://localhost/rentcore?sslmode=disable"

var (
	connectMu sync.Mutex
	connect   = func(dsn string) (*sql.DB, error) { return sql.Open("pgx", dsn) }
)

// Store is a snapshotdb.Store bound to a Postgres database.
type Store struct {
	*snapshotdb.Store
}

// NewStore connects to dsn (defaultDSN when empty), checks the server is
// reachable and loads any previously written buckets.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	connectMu.Lock()
	open := connect
	connectMu.Unlock()

	db, err := open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	inner, err := snapshotdb.Open(ctx, db, snapshotdb.Postgres, engine)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner}, nil
}

// SetConnector replaces how NewStore obtains its *sql.DB and returns a
// function restoring the previous connector. Used by tests.
func SetConnector(fn func(dsn string) (*sql.DB, error)) func() {
	connectMu.Lock()
	defer connectMu.Unlock()
	prev := connect
	connect = fn
	return func() {
		connectMu.Lock()
		defer connectMu.Unlock()
		connect = prev
	}
}
