package lock

import (
	"context"
	"errors"
	"time"
)

var ErrNotHeld = errors.New("lock: not held or expired")

// DistributedLock is a lease on a key shared between processes. A trading
// task holds one for its (user, symbol) while it runs.
type DistributedLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Extend(ctx context.Context, key string, ttl time.Duration) error
	Close() error
}

// NopLock always grants the lease. It is used when a single process runs
// all pairs.
type NopLock struct{}

func NewNopLock() *NopLock { return &NopLock{} }

func (*NopLock) TryLock(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (*NopLock) Unlock(context.Context, string) error                         { return nil }
func (*NopLock) Extend(context.Context, string, time.Duration) error          { return nil }
func (*NopLock) Close() error                                                 { return nil }

// PairKey is the lease key of a trading pair.
func PairKey(userID, symbol string) string {
	return "pair:" + userID + ":" + symbol
}
