package interfaces

import (
	"context"

	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models"
)

// CheckpointStore persists the engine's paid-out accumulators.
// LoadCheckpoint returns an empty checkpoint when nothing was saved yet.
type CheckpointStore interface {
	LoadCheckpoint(ctx context.Context) (models.Checkpoint, error)
	SaveCheckpoint(ctx context.Context, cp models.Checkpoint) error
}
