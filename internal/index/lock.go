package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 200 * time.Millisecond

// Lock takes the build lock for the index installed at dir. It waits until
// ctx is done; the returned func releases the lock.
func Lock(ctx context.Context, dir string) (func(), error) {
	lockPath := filepath.Clean(dir) + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create lock dir: %w", err)
	}

	l := flock.New(lockPath)
	locked, err := l.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("another index build holds %s", lockPath)
		}
		return nil, fmt.Errorf("cannot acquire index lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another index build holds %s", lockPath)
	}
	return func() { _ = l.Unlock() }, nil
}
