package chunkcanvas

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/chunkcanvas/catalog"
	"github.com/hupe1980/chunkcanvas/index/flat"
	"github.com/hupe1980/chunkcanvas/internal/fs"
	"github.com/hupe1980/chunkcanvas/metadata"
	"github.com/hupe1980/chunkcanvas/persistence"
)

const (
	recoveryRollForward = "roll-forward"
	recoveryDiscard     = "discard"
)

// commitPair writes idx and side as one unit. The sidecar is staged first,
// then the vector index is replaced, then the staged sidecar is renamed over
// its target. Only the last step can leave the pair out of sync; the staged
// file then stays behind for recoverPending.
//
// The caller must hold the exclusive lock of loc.
func (s *Store) commitPair(ctx context.Context, loc catalog.Location, idx *flat.Flat, side *metadata.Sidecar) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sum, err := idx.Checksum()
	if err != nil {
		return err
	}
	side.SetDimension(idx.Dimension())
	side.SetMetric(idx.Metric())
	side.SetIndexChecksum(sum)

	staged, err := side.Stage(s.opts.fsys, loc.MetaPath, s.opts.codec)
	if err != nil {
		s.opts.logger.LogCommit(ctx, loc.IndexPath, "stage metadata", err)
		return fmt.Errorf("%w: stage metadata: %w", ErrIO, err)
	}

	if err := idx.SaveToFile(s.opts.fsys, loc.IndexPath); err != nil {
		s.opts.logger.LogCommit(ctx, loc.IndexPath, "persist index", err)
		_ = staged.Abort()
		return fmt.Errorf("%w: persist index: %w", ErrIO, err)
	}

	if err := staged.Commit(); err != nil {
		s.opts.logger.LogCommit(ctx, loc.IndexPath, "publish metadata", err)
		return fmt.Errorf("%w: publish metadata: %w", ErrIO, err)
	}
	return nil
}

// recoverPending resolves a sidecar left staged by an interrupted commit. It
// is rolled forward if the vector index on disk carries the checksum the
// sidecar was written for, and discarded otherwise.
//
// The caller must hold the exclusive lock of loc.
func (s *Store) recoverPending(ctx context.Context, loc catalog.Location) error {
	pending := persistence.PendingPath(loc.MetaPath)
	ok, err := fs.Exists(s.opts.fsys, pending)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if !ok {
		return nil
	}

	action, err := s.resolvePending(loc, pending)
	s.opts.logger.LogRecovery(ctx, loc.IndexPath, action, err)
	if err != nil {
		return err
	}
	s.opts.metricsCollector.RecordRecovery(action == recoveryRollForward)
	return nil
}

func (s *Store) resolvePending(loc catalog.Location, pending string) (string, error) {
	if s.pendingMatchesIndex(loc, pending) {
		if err := s.opts.fsys.Rename(pending, loc.MetaPath); err != nil {
			return recoveryRollForward, fmt.Errorf("%w: %w", ErrIO, err)
		}
		fs.SyncDir(s.opts.fsys, filepath.Dir(loc.MetaPath))
		return recoveryRollForward, nil
	}

	if err := s.opts.fsys.Remove(pending); err != nil && !os.IsNotExist(err) {
		return recoveryDiscard, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return recoveryDiscard, nil
}

func (s *Store) pendingMatchesIndex(loc catalog.Location, pending string) bool {
	side, err := metadata.LoadSidecar(s.opts.fsys, pending, s.opts.codec)
	if err != nil {
		return false
	}
	want, ok := side.IndexChecksum()
	if !ok {
		return false
	}
	idx, err := flat.LoadFromFile(s.opts.fsys, loc.IndexPath)
	if err != nil {
		return false
	}
	got, err := idx.Checksum()
	return err == nil && got == want
}

// hasPending reports whether loc has a staged sidecar awaiting recovery.
func (s *Store) hasPending(loc catalog.Location) (bool, error) {
	ok, err := fs.Exists(s.opts.fsys, persistence.PendingPath(loc.MetaPath))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return ok, nil
}
