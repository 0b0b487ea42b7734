package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the repository lock.
var ErrLocked = errors.New("repository is locked by another dms process")

const (
	lockRetryDelay = 100 * time.Millisecond
	lockTimeout    = 10 * time.Second
)

// acquireLock takes the exclusive lock on <baseDir>/dms.lock, waiting up to
// lockTimeout for another process to release it.
func acquireLock(ctx context.Context, baseDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}
	fl := flock.New(filepath.Join(baseDir, "dms.lock"))

	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("locking %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, fl.Path())
	}
	return fl, nil
}
