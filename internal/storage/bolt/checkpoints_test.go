package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) (*CheckpointStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "checkpoints.db")
	store, err := Open(path)
	require.NoError(t, err)
	return store, path
}

func TestCheckpointStore_EmptyLoad(t *testing.T) {
	store, _ := tempStore(t)
	t.Cleanup(func() { store.Close() })

	cp, err := store.LoadCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cp.TotalPaidOut)
	assert.NotNil(t, cp.PaidOut)
	assert.Empty(t, cp.PaidOut)
}

func TestCheckpointStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	store, path := tempStore(t)

	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.SaveCheckpoint(ctx, models.Checkpoint{
		TotalPaidOut: 6000,
		PaidOut:      map[string]uint64{"alice": 4000, "carol": 2000},
		UpdatedAt:    updated,
	}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	cp, err := reopened.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(6000), cp.TotalPaidOut)
	assert.Equal(t, map[string]uint64{"alice": 4000, "carol": 2000}, cp.PaidOut)
	assert.True(t, updated.Equal(cp.UpdatedAt))
}

func TestCheckpointStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	store, _ := tempStore(t)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.SaveCheckpoint(ctx, models.Checkpoint{TotalPaidOut: 10, PaidOut: map[string]uint64{"alice": 10}}))
	require.NoError(t, store.SaveCheckpoint(ctx, models.Checkpoint{TotalPaidOut: 0, PaidOut: map[string]uint64{}}))

	cp, err := store.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Zero(t, cp.TotalPaidOut)
	assert.Empty(t, cp.PaidOut)
}

func TestCheckpointStore_Closed(t *testing.T) {
	store, _ := tempStore(t)
	require.NoError(t, store.Close())

	_, err := store.LoadCheckpoint(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.SaveCheckpoint(context.Background(), models.Checkpoint{}), ErrClosed)
}

func TestCheckpointStore_PendingClaim(t *testing.T) {
	ctx := context.Background()
	store, path := tempStore(t)

	require.NoError(t, store.SaveCheckpoint(ctx, models.Checkpoint{
		TotalPaidOut: 2000,
		PaidOut:      map[string]uint64{"alice": 2000},
		Pending:      &models.PendingClaim{ClaimID: "claim-1", Shareholder: "alice", Value: 2000},
	}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	cp, err := reopened.LoadCheckpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp.Pending)
	assert.Equal(t, "claim-1", cp.Pending.ClaimID)
	assert.Equal(t, uint64(2000), cp.Pending.Value)

	require.NoError(t, reopened.SaveCheckpoint(ctx, models.Checkpoint{TotalPaidOut: 2000, PaidOut: map[string]uint64{"alice": 2000}}))
	cp, err = reopened.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Nil(t, cp.Pending)
}
