package persistence

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/chunkcanvas/internal/fs"
)

// PendingSuffix is appended to a target path to name its staged copy.
const PendingSuffix = ".pending"

// ErrStagedDone is returned when a Staged write is committed or aborted twice.
var ErrStagedDone = errors.New("staged write already finished")

// PendingPath returns the staging path for target.
func PendingPath(target string) string {
	return target + PendingSuffix
}

// Staged is a fully written and fsync'd copy of a file that has not yet
// replaced its target. Commit publishes it with a single rename.
type Staged struct {
	fsys    fs.FileSystem
	target  string
	pending string
	done    bool
}

// Stage writes the output of writeFunc to PendingPath(target). The pending
// file itself is written atomically, so it is either absent or complete.
func Stage(fsys fs.FileSystem, target string, writeFunc func(io.Writer) error) (*Staged, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	pending := PendingPath(target)
	if err := SaveToFile(fsys, pending, writeFunc); err != nil {
		return nil, err
	}
	return &Staged{fsys: fsys, target: target, pending: pending}, nil
}

// Target returns the path the staged file will replace.
func (s *Staged) Target() string { return s.target }

// Pending returns the path of the staged file.
func (s *Staged) Pending() string { return s.pending }

// Commit renames the pending file over the target. On failure the pending
// file is left in place so it can be rolled forward later.
func (s *Staged) Commit() error {
	if s.done {
		return ErrStagedDone
	}
	if err := s.fsys.Rename(s.pending, s.target); err != nil {
		return err
	}
	s.done = true
	fs.SyncDir(s.fsys, filepath.Dir(s.target))
	return nil
}

// Abort removes the pending file. A missing pending file is not an error.
func (s *Staged) Abort() error {
	if s.done {
		return ErrStagedDone
	}
	s.done = true
	if err := s.fsys.Remove(s.pending); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
