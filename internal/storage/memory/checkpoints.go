package memory

import (
	"context"
	"sync"

	interfaces "github.com/sheikh-saqib/revenue-sharing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models"
)

// CheckpointStore keeps the latest pool checkpoint in memory.
type CheckpointStore struct {
	mu sync.Mutex
	cp models.Checkpoint
}

func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{cp: models.Checkpoint{PaidOut: map[string]uint64{}}}
}

func (s *CheckpointStore) LoadCheckpoint(ctx context.Context) (models.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cp.Clone(), nil
}

func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, cp models.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cp = cp.Clone()
	return nil
}

var _ interfaces.CheckpointStore = (*CheckpointStore)(nil)
