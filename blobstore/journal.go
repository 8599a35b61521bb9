package blobstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrConcurrentModification is returned when another writer claimed the
// journal version first.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// Commit describes one mirrored index pair.
type Commit struct {
	// Index is the index name; it partitions the journal.
	Index string
	// Version is assigned by the journal on Append, starting at 1.
	Version   uint64
	IndexKey  string
	MetaKey   string
	Total     int
	Dimension int
	Metric    string
	Time      time.Time
}

// Journal is an append-only log of mirrored commits.
type Journal interface {
	// Append stores c under the next version of c.Index and returns it.
	Append(ctx context.Context, c Commit) (uint64, error)
	// Latest returns the newest commit of index; ok is false if none exists.
	Latest(ctx context.Context, index string) (c Commit, ok bool, err error)
}

// MemoryJournal is an in-process Journal.
type MemoryJournal struct {
	mu      sync.Mutex
	commits map[string][]Commit
}

// NewMemoryJournal creates an empty journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{commits: make(map[string][]Commit)}
}

// Append implements Journal.
func (j *MemoryJournal) Append(_ context.Context, c Commit) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	c.Version = uint64(len(j.commits[c.Index])) + 1
	j.commits[c.Index] = append(j.commits[c.Index], c)
	return c.Version, nil
}

// Latest implements Journal.
func (j *MemoryJournal) Latest(_ context.Context, index string) (Commit, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	list := j.commits[index]
	if len(list) == 0 {
		return Commit{}, false, nil
	}
	return list[len(list)-1], true, nil
}

// History returns all commits of index, oldest first.
func (j *MemoryJournal) History(index string) []Commit {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Commit(nil), j.commits[index]...)
}
