package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TravBots/hammer-tracker/models"
)

// ErrStorage matches every failure reported by a SnapshotStore.
var ErrStorage = errors.New("snapshot storage failure")

// StorageError records which store operation failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("snapshot storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) hold for any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageErr(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}

	return &StorageError{Op: op, Err: err}
}

// SnapshotStore is the append-only snapshot table of one guild partition.
type SnapshotStore interface {
	Exists(ctx context.Context, player string, recordedAt time.Time, personal bool) (bool, error)
	// Insert stores s and reports false when an identical key already exists.
	Insert(ctx context.Context, s *models.Snapshot) (bool, error)
	// Latest returns up to limit rows recorded at or after since, newest first.
	Latest(ctx context.Context, player string, personal bool, since time.Time, limit int) ([]models.Snapshot, error)
	// EarliestSince returns the oldest row recorded at or after since, or nil.
	EarliestSince(ctx context.Context, player string, personal bool, since time.Time) (*models.Snapshot, error)
	// Transaction runs fn against a store bound to a single transaction.
	Transaction(ctx context.Context, fn func(SnapshotStore) error) error
}
