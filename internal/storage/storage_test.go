package storage

import (
	"path/filepath"
	"testing"

	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/config"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/storage/bolt"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLedgerStore(t *testing.T) {
	store, err := NewLedgerStore(config.BackendMemory, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.MemoryLedgerStore{}, store)

	_, err = NewLedgerStore(config.BackendPostgres, nil)
	assert.Error(t, err)

	_, err = NewLedgerStore("mongo", nil)
	assert.Error(t, err)
}

func TestNewCheckpointStore(t *testing.T) {
	store, closeFn, err := NewCheckpointStore(config.CheckpointConfig{Backend: config.BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.CheckpointStore{}, store)
	assert.NoError(t, closeFn())

	store, closeFn, err = NewCheckpointStore(config.CheckpointConfig{
		Backend:  config.BackendBolt,
		BoltPath: filepath.Join(t.TempDir(), "cp.db"),
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &bolt.CheckpointStore{}, store)
	assert.NoError(t, closeFn())

	_, closeFn, err = NewCheckpointStore(config.CheckpointConfig{Backend: config.BackendPostgres}, nil)
	assert.Error(t, err)
	assert.NotNil(t, closeFn)

	_, _, err = NewCheckpointStore(config.CheckpointConfig{Backend: "redis"}, nil)
	assert.Error(t, err)
}
