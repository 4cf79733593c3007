package checkpointv1

import (
	"context"
	"time"
)

// Store persists replay checkpoints.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=checkpointv1_mock
type Store interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context, symbol, interval string) (*Checkpoint, error)
	Delete(ctx context.Context, symbol, interval string) error
	List(ctx context.Context) ([]string, error)

	// Acquire takes a lease on the checkpoint so one replay at a time advances it.
	Acquire(ctx context.Context, symbol, interval, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, symbol, interval string) error
}
