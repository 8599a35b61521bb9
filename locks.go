package chunkcanvas

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/chunkcanvas/catalog"
	"github.com/hupe1980/chunkcanvas/internal/flock"
)

// lockTable hands out one RWMutex per canonical index path. Entries are
// reference counted and dropped once no goroutine holds or waits for them.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	rw   sync.RWMutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the lock for key is held and returns its release func.
func (t *lockTable) acquire(key string, exclusive bool) func() {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		e = &lockEntry{}
		t.entries[key] = e
	}
	e.refs++
	t.mu.Unlock()

	if exclusive {
		e.rw.Lock()
	} else {
		e.rw.RLock()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if exclusive {
				e.rw.Unlock()
			} else {
				e.rw.RUnlock()
			}
			t.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(t.entries, key)
			}
			t.mu.Unlock()
		})
	}
}

// size returns the number of live entries.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// lock guards loc for the calling goroutine and, with file locking enabled,
// for other processes. The returned func releases both.
func (s *Store) lock(ctx context.Context, loc catalog.Location, exclusive bool) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	release := s.locks.acquire(loc.IndexPath, exclusive)
	if !s.opts.fileLocking {
		return release, nil
	}

	fl, err := flock.Acquire(ctx, loc.LockPath(), exclusive)
	if err != nil {
		release()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: lock %s: %w", ErrIO, loc.LockPath(), err)
	}
	return func() {
		_ = fl.Release()
		release()
	}, nil
}
