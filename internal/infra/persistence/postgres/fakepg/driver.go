// Package fakepg is a database/sql driver holding the bucket table in memory.
// It understands only the statements snapshotdb issues and exists so the
// postgres store can be tested without a server.
package fakepg

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var seq atomic.Int64

// Faults makes the matching operation fail when set.
type Faults struct {
	Ping   bool
	Begin  bool
	Write  bool
	Commit bool
	Query  bool
}

// Server is the shared state behind every connection of one fake database.
type Server struct {
	mu         sync.Mutex
	buckets    map[string][]byte
	statements []string
	Faults     Faults
}

// Open registers a fresh driver and returns a handle to it together with the
// server state tests inspect.
func Open() (*sql.DB, *Server) {
	srv := &Server{buckets: map[string][]byte{}}
	name := fmt.Sprintf("fakepg-%d", seq.Add(1))
	sql.Register(name, connector{srv: srv})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	return db, srv
}

// Statements returns every statement executed so far.
func (s *Server) Statements() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statements...)
}

// Buckets lists stored bucket names in sorted order.
func (s *Server) Buckets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Put stores a raw payload, bypassing SQL.
func (s *Server) Put(bucket string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[bucket] = payload
}

type connector struct{ srv *Server }

func (c connector) Open(string) (driver.Conn, error) { return &conn{srv: c.srv}, nil }

type conn struct {
	srv     *Server
	pending map[string][]byte
}

func (c *conn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("fakepg: prepare unsupported") }
func (c *conn) Close() error                        { return nil }
func (c *conn) Begin() (driver.Tx, error)           { return c.BeginTx(context.Background(), driver.TxOptions{}) }

func (c *conn) Ping(context.Context) error {
	if c.srv.Faults.Ping {
		return errors.New("fakepg: connection refused")
	}
	return nil
}

func (c *conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.srv.Faults.Begin {
		return nil, errors.New("fakepg: cannot begin")
	}
	c.pending = map[string][]byte{}
	return tx{c}, nil
}

func (c *conn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.srv.mu.Lock()
	c.srv.statements = append(c.srv.statements, query)
	c.srv.mu.Unlock()

	verb := strings.ToUpper(strings.Fields(query)[0])
	switch verb {
	case "CREATE":
		return driver.RowsAffected(0), nil
	case "INSERT":
		if c.srv.Faults.Write {
			return nil, errors.New("fakepg: write rejected")
		}
		if len(args) != 2 {
			return nil, fmt.Errorf("fakepg: insert wants 2 args, got %d", len(args))
		}
		bucket, _ := args[0].Value.(string)
		payload, _ := args[1].Value.([]byte)
		if c.pending != nil {
			c.pending[bucket] = payload
			return driver.RowsAffected(1), nil
		}
		c.srv.Put(bucket, payload)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("fakepg: unsupported statement %q", query)
}

func (c *conn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if !strings.HasPrefix(strings.ToUpper(query), "SELECT BUCKET, PAYLOAD FROM") {
		return nil, fmt.Errorf("fakepg: unsupported query %q", query)
	}
	if c.srv.Faults.Query {
		return nil, errors.New("fakepg: query failed")
	}
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	out := &rows{}
	for bucket, payload := range c.srv.buckets {
		out.data = append(out.data, []driver.Value{bucket, payload})
	}
	return out, nil
}

type tx struct{ c *conn }

func (t tx) Commit() error {
	defer func() { t.c.pending = nil }()
	if t.c.srv.Faults.Commit {
		return errors.New("fakepg: commit failed")
	}
	for bucket, payload := range t.c.pending {
		t.c.srv.Put(bucket, payload)
	}
	return nil
}

func (t tx) Rollback() error {
	t.c.pending = nil
	return nil
}

type rows struct {
	data [][]driver.Value
	pos  int
}

func (r *rows) Columns() []string { return []string{"bucket", "payload"} }
func (r *rows) Close() error      { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.pos])
	r.pos++
	return nil
}
