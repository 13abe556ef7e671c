package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"rentcore/internal/infra/persistence/postgres/fakepg"
	"rentcore/internal/infra/persistence/snapshotdb"
	"rentcore/pkg/domain"
)

func useFake(t *testing.T) *fakepg.Server {
	t.Helper()
	db, srv := fakepg.Open()
	t.Cleanup(SetConnector(func(string) (*sql.DB, error) { return db, nil }))
	return srv
}

func addGroup(tx domain.Transaction) error {
	_, err := tx.CreateTenantGroup(domain.TenantGroup{GroupType: domain.GroupTypeCouple})
	return err
}

func TestNewStoreCreatesBucketTable(t *testing.T) {
	srv := useFake(t)
	if _, err := NewStore("", domain.NewRulesEngine()); err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	stmts := srv.Statements()
	if len(stmts) == 0 || !strings.Contains(stmts[0], "CREATE TABLE IF NOT EXISTS "+snapshotdb.TableName) {
		t.Fatalf("expected table creation first, got %v", stmts)
	}
	if !strings.Contains(stmts[0], "JSONB") {
		t.Fatalf("expected JSONB payload column, got %s", stmts[0])
	}
}

func TestStorePersistsAndReloads(t *testing.T) {
	srv := useFake(t)
	ctx := context.Background()

	store, err := NewStore("postgres://fake", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		e, err := tx.CreateEntity(domain.Entity{Name: "SCI Nord"})
		if err != nil {
			return err
		}
		_, err = tx.CreateProperty(domain.Property{Name: "Gare", EntityID: e.ID})
		return err
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if got := len(srv.Buckets()); got != 8 {
		t.Fatalf("expected one row per bucket, got %d", got)
	}

	reloaded, err := NewStore("postgres://fake", nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	entities, err := reloaded.ListEntities(ctx, "")
	if err != nil || len(entities) != 1 || entities[0].Name != "SCI Nord" {
		t.Fatalf("expected reloaded entity, got %+v (%v)", entities, err)
	}
	props, _ := reloaded.ListProperties(ctx, entities[0].ID)
	if len(props) != 1 {
		t.Fatalf("expected reloaded property, got %+v", props)
	}
}

func TestNewStoreFailures(t *testing.T) {
	t.Run("connect", func(t *testing.T) {
		t.Cleanup(SetConnector(func(string) (*sql.DB, error) { return nil, errors.New("dial") }))
		if _, err := NewStore("", nil); err == nil || !strings.Contains(err.Error(), "open postgres") {
			t.Fatalf("expected open failure, got %v", err)
		}
	})
	t.Run("ping", func(t *testing.T) {
		srv := useFake(t)
		srv.Faults.Ping = true
		if _, err := NewStore("", nil); err == nil || !strings.Contains(err.Error(), "ping postgres") {
			t.Fatalf("expected ping failure, got %v", err)
		}
	})
	t.Run("corrupt bucket", func(t *testing.T) {
		srv := useFake(t)
		srv.Put("lots", []byte("{"))
		if _, err := NewStore("", nil); err == nil || !strings.Contains(err.Error(), "decode lots") {
			t.Fatalf("expected decode failure, got %v", err)
		}
	})
}

func TestStoreReportsFlushFailures(t *testing.T) {
	srv := useFake(t)
	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	srv.Faults.Commit = true
	if _, err := store.RunInTransaction(ctx, addGroup); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit failure, got %v", err)
	}
	srv.Faults.Commit = false

	srv.Faults.Begin = true
	if _, err := store.RunInTransaction(ctx, addGroup); err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("expected begin failure, got %v", err)
	}
	srv.Faults.Begin = false

	srv.Faults.Write = true
	if _, err := store.RunInTransaction(ctx, addGroup); err == nil || !strings.Contains(err.Error(), "write bucket entities") {
		t.Fatalf("expected write failure, got %v", err)
	}
	if got := srv.Buckets(); len(got) != 0 {
		t.Fatalf("expected nothing committed, got %v", got)
	}
}
