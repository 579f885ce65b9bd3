// Package lock keeps backup and restore cycles from overlapping, both
// inside one process and across processes sharing a state directory.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

var ErrBusy = errors.New("another backup or restore is in progress")

type LockManager struct {
	lockDir       string
	retryInterval time.Duration
}

func NewLockManager(lockDir string, retryInterval time.Duration) (*LockManager, error) {
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	if retryInterval <= 0 {
		retryInterval = 100 * time.Millisecond
	}
	return &LockManager{lockDir: lockDir, retryInterval: retryInterval}, nil
}

type Lock struct {
	f *flock.Flock
}

func (l *Lock) Unlock() error {
	return l.f.Unlock()
}

// TryLock waits up to timeout for the named lock. The lock is released by
// the kernel if the holder dies, so stale lock files never block.
func (lm *LockManager) TryLock(ctx context.Context, name string, timeout time.Duration) (*Lock, error) {
	f := flock.New(lm.path(name))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := f.TryLockContext(ctx, lm.retryInterval)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !locked {
		return nil, ErrBusy
	}

	return &Lock{f: f}, nil
}

func (lm *LockManager) IsLocked(name string) bool {
	f := flock.New(lm.path(name))
	locked, err := f.TryLock()
	if err != nil {
		return true
	}
	if locked {
		f.Unlock()
		return false
	}
	return true
}

func (lm *LockManager) path(name string) string {
	return filepath.Join(lm.lockDir, name+".lock")
}

// Guard is a single slot. Acquire blocks for at most its timeout.
type Guard struct {
	lm      *LockManager
	name    string
	timeout time.Duration
}

func (lm *LockManager) Guard(name string, timeout time.Duration) *Guard {
	return &Guard{lm: lm, name: name, timeout: timeout}
}

func (g *Guard) Acquire(ctx context.Context) (func(), error) {
	l, err := g.lm.TryLock(ctx, g.name, g.timeout)
	if err != nil {
		return nil, err
	}
	return func() { l.Unlock() }, nil
}
