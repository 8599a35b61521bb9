// Package flock provides advisory file locks shared between processes.
//
// A Lock guards a sidecar ".lock" file, never the data files themselves, so
// atomic renames of the data files do not invalidate a held lock.
package flock

import (
	"context"
	"errors"
	"os"
	"time"
)

// ErrReleased is returned when releasing a lock twice.
var ErrReleased = errors.New("flock: lock already released")

// pollInterval is how often a contended lock is retried.
const pollInterval = 5 * time.Millisecond

// Lock is a held advisory lock.
type Lock struct {
	f         *os.File
	exclusive bool
}

// Exclusive reports whether the lock was taken in exclusive mode.
func (l *Lock) Exclusive() bool { return l.exclusive }

// Path returns the lock file path.
func (l *Lock) Path() string {
	if l.f == nil {
		return ""
	}
	return l.f.Name()
}

// Acquire takes an exclusive (writer) or shared (reader) lock on path,
// creating the file if needed. It blocks until the lock is granted or ctx is
// done.
func Acquire(ctx context.Context, path string, exclusive bool) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	for {
		ok, err := tryLock(f, exclusive)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if ok {
			return &Lock{f: f, exclusive: exclusive}, nil
		}

		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Release drops the lock and closes the lock file. The file itself is left
// on disk; removing it would race with other processes opening it.
func (l *Lock) Release() error {
	if l.f == nil {
		return ErrReleased
	}
	f := l.f
	l.f = nil
	if err := unlock(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
