package core

import (
	"fmt"
	"io"
	"strings"

	"rentcore/internal/infra/persistence/memory"
	"rentcore/internal/infra/persistence/postgres"
	"rentcore/internal/infra/persistence/relational"
	"rentcore/internal/infra/persistence/sqlite"
	"rentcore/pkg/domain"
)

// StorageDriver identifies a concrete storage implementation.
type StorageDriver string

const (
	StorageMemory     StorageDriver = "memory"     // in-memory only (tests / ephemeral)
	StorageSQLite     StorageDriver = "sqlite"     // embedded sqlite file, snapshot per commit
	StoragePostgres   StorageDriver = "postgres"   // PostgreSQL JSONB snapshot table
	StorageRelational StorageDriver = "relational" // one table per record type, read-only here
)

// StorageConfig selects and configures the portfolio backend.
type StorageConfig struct {
	Driver            StorageDriver
	SQLitePath        string
	PostgresDSN       string
	RelationalDialect string
	RelationalDSN     string
}

func (c StorageConfig) driver() StorageDriver {
	d := StorageDriver(strings.ToLower(strings.TrimSpace(string(c.Driver))))
	if d == "" {
		return StorageSQLite
	}
	return d
}

// OpenPersistentStore opens a write-capable backend. Defaults to sqlite.
func OpenPersistentStore(cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	switch cfg.driver() {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageRelational:
		return nil, fmt.Errorf("storage driver %s is read-only; use OpenReader", cfg.Driver)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// OpenReader opens any backend for engine reads, including relational.
func OpenReader(cfg StorageConfig, engine *RulesEngine) (domain.Portfolio, error) {
	if cfg.driver() == StorageRelational {
		store, err := relational.Open(cfg.RelationalDialect, cfg.RelationalDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return OpenPersistentStore(cfg, engine)
}

// CloseStore releases backends holding a connection. Memory stores are a no-op.
func CloseStore(store any) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
