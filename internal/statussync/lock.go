package statussync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked indicates another process already watches the submission.
var ErrLocked = errors.New("submission is being watched by another process")

// WatchLock is an exclusive per-submission file lock shared across processes.
type WatchLock struct {
	lock *flock.Flock
}

// LockPath returns the lock file used for id under dir.
func LockPath(dir string, id int64) string {
	return filepath.Join(dir, fmt.Sprintf("submission-%d.lock", id))
}

// AcquireLock takes the lock for id without blocking.
func AcquireLock(dir string, id int64) (*WatchLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	lock := flock.New(LockPath(dir, id))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire watch lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &WatchLock{lock: lock}, nil
}

// Release drops the lock. It is safe to call more than once.
func (l *WatchLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
