// Package storage picks the ledger and checkpoint backends named in the config.
package storage

import (
	"database/sql"
	"fmt"

	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/config"
	interfaces "github.com/sheikh-saqib/revenue-sharing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/storage/bolt"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/storage/postgres"
)

// NewLedgerStore returns the ledger store for backend. db is only used by
// the postgres backend.
func NewLedgerStore(backend string, db *sql.DB) (interfaces.LedgerStore, error) {
	switch backend {
	case config.BackendMemory:
		return memory.NewMemoryLedgerStore(), nil
	case config.BackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("storage: postgres ledger store needs a database")
		}
		return postgres.NewPostgresLedgerStore(db), nil
	default:
		return nil, fmt.Errorf("storage: unknown ledger backend %q", backend)
	}
}

// NewCheckpointStore returns the checkpoint store for cfg. The returned close
// function releases backend resources and is never nil.
func NewCheckpointStore(cfg config.CheckpointConfig, db *sql.DB) (interfaces.CheckpointStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewCheckpointStore(), noop, nil
	case config.BackendPostgres:
		if db == nil {
			return nil, noop, fmt.Errorf("storage: postgres checkpoint store needs a database")
		}
		return postgres.NewCheckpointStore(db), noop, nil
	case config.BackendBolt:
		store, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("storage: unknown checkpoint backend %q", cfg.Backend)
	}
}
