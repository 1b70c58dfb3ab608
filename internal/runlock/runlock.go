// Package runlock keeps two coursepull processes from mutating the same
// download root at once.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileName is the lock file created at the top of the download root.
const FileName = ".coursepull.lock"

// ErrLocked reports that another process holds the lock.
var ErrLocked = errors.New("download root is locked by another coursepull process")

// Lock is an acquired advisory lock on a download root.
type Lock struct {
	path string
	lock *flock.Flock
}

// Path returns the lock file location for root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Acquire takes the lock for root without blocking. The root directory is
// created when missing.
func Acquire(root string) (*Lock, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create download root: %w", err)
	}
	path := Path(root)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Path returns the file backing the lock.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release unlocks the root. The lock file is left in place.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
