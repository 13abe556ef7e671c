// Package snapshotdb keeps the portfolio working set in a SQL table of JSON
// buckets, one row per bucket. The sqlite and postgres stores are thin
// dialect wrappers around it.
package snapshotdb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"rentcore/internal/infra/persistence/memory"
	"rentcore/pkg/domain"
)

// TableName is the table every SQL backend writes buckets to.
const TableName = "portfolio_snapshot"

// Dialect captures the few statement differences between SQL engines.
type Dialect struct {
	// PayloadType is the column type holding a bucket's JSON.
	PayloadType string
	// Bind renders the n-th (1-based) bind parameter.
	Bind func(n int) string
}

var (
	// SQLite binds with ? and stores payloads as BLOB.
	SQLite = Dialect{PayloadType: "BLOB", Bind: func(int) string { return "?" }}
	// Postgres binds with $n and stores payloads as JSONB.
	Postgres = Dialect{PayloadType: "JSONB", Bind: func(n int) string { return "$" + strconv.Itoa(n) }}
)

func (d Dialect) createStmt() string {
	return "CREATE TABLE IF NOT EXISTS " + TableName + " (bucket TEXT PRIMARY KEY, payload " + d.PayloadType + " NOT NULL)"
}

func (d Dialect) upsertStmt() string {
	var b strings.Builder
	b.WriteString("INSERT INTO " + TableName + "(bucket,payload) VALUES(")
	b.WriteString(d.Bind(1) + "," + d.Bind(2))
	b.WriteString(") ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload")
	return b.String()
}

const selectStmt = "SELECT bucket, payload FROM " + TableName

// Store is a memory.Store whose committed state is written back to the
// bucket table after every successful transaction.
type Store struct {
	*memory.Store
	db      *sql.DB
	dialect Dialect
	mu      sync.Mutex
}

// Open creates the bucket table when missing and hydrates a memory store
// from it. The caller owns db until Open succeeds.
func Open(ctx context.Context, db *sql.DB, dialect Dialect, engine *domain.RulesEngine) (*Store, error) {
	if _, err := db.ExecContext(ctx, dialect.createStmt()); err != nil {
		return nil, fmt.Errorf("create %s: %w", TableName, err)
	}
	snapshot, found, err := load(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	if found {
		mem.ImportState(snapshot)
	}
	return &Store{Store: mem, db: db, dialect: dialect}, nil
}

func load(ctx context.Context, db *sql.DB) (memory.Snapshot, bool, error) {
	var snapshot memory.Snapshot
	rows, err := db.QueryContext(ctx, selectStmt)
	if err != nil {
		return snapshot, false, fmt.Errorf("read %s: %w", TableName, err)
	}
	defer func() { _ = rows.Close() }()

	found := false
	for rows.Next() {
		var (
			bucket  string
			payload []byte
		)
		if err := rows.Scan(&bucket, &payload); err != nil {
			return snapshot, false, fmt.Errorf("scan bucket: %w", err)
		}
		if err := snapshot.DecodeBucket(bucket, payload); err != nil {
			return snapshot, false, err
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return snapshot, false, fmt.Errorf("read %s: %w", TableName, err)
	}
	return snapshot, found, nil
}

// RunInTransaction commits fn in memory, then writes every bucket back in a
// single SQL transaction. A failed write is returned alongside the result.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	return res, s.flush(ctx)
}

func (s *Store) flush(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	upsert := s.dialect.upsertStmt()
	for _, bucket := range memory.Buckets {
		payload, encErr := snapshot.EncodeBucket(bucket)
		if encErr != nil {
			return encErr
		}
		if _, err = tx.ExecContext(ctx, upsert, bucket, payload); err != nil {
			return fmt.Errorf("write bucket %s: %w", bucket, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DB exposes the handle for tests and maintenance tooling.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
