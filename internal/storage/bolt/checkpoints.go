// Package bolt stores pool checkpoints in a local bbolt file, for single-node
// deployments that want checkpoints to survive restarts without PostgreSQL.
package bolt

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	interfaces "github.com/sheikh-saqib/revenue-sharing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models"
	"go.etcd.io/bbolt"
)

var (
	bucketCheckpoints = []byte("checkpoints")
	keyState          = []byte("state")
)

// ErrClosed indicates the store was used after Close.
var ErrClosed = errors.New("bolt: store closed")

// CheckpointStore wraps a bbolt database holding one gob-encoded checkpoint.
type CheckpointStore struct {
	db *bbolt.DB
}

// Open opens or creates the database at dbPath.
// The parent directory is created if it does not exist.
func Open(dbPath string) (*CheckpointStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("bolt: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt: open db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCheckpoints)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: create bucket %q: %w", bucketCheckpoints, err)
	}
	return &CheckpointStore{db: db}, nil
}

// Close closes the underlying database.
func (s *CheckpointStore) Close() error { return s.db.Close() }

func (s *CheckpointStore) LoadCheckpoint(ctx context.Context) (models.Checkpoint, error) {
	cp := models.Checkpoint{PaidOut: map[string]uint64{}}
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCheckpoints).Get(keyState)
		if data == nil {
			return nil
		}
		return gob.NewDecoder(bytes.NewReader(data)).Decode(&cp)
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return models.Checkpoint{}, ErrClosed
	}
	if err != nil {
		return models.Checkpoint{}, fmt.Errorf("bolt: load checkpoint: %w", err)
	}
	if cp.PaidOut == nil {
		cp.PaidOut = map[string]uint64{}
	}
	return cp, nil
}

func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, cp models.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cp); err != nil {
		return fmt.Errorf("bolt: encode checkpoint: %w", err)
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCheckpoints).Put(keyState, buf.Bytes())
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("bolt: save checkpoint: %w", err)
	}
	return nil
}

var _ interfaces.CheckpointStore = (*CheckpointStore)(nil)
