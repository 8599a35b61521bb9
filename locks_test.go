package chunkcanvas

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockTable(t *testing.T) {
	t.Run("ReleasesEntries", func(t *testing.T) {
		lt := newLockTable()
		r1 := lt.acquire("a", false)
		r2 := lt.acquire("a", false)
		r3 := lt.acquire("b", true)
		assert.Equal(t, 2, lt.size())

		r1()
		r1()
		assert.Equal(t, 2, lt.size())
		r2()
		r3()
		assert.Equal(t, 0, lt.size())
	})

	t.Run("ExclusiveWaitsForReaders", func(t *testing.T) {
		lt := newLockTable()
		release := lt.acquire("a", false)

		acquired := make(chan struct{})
		go func() {
			r := lt.acquire("a", true)
			close(acquired)
			r()
		}()

		select {
		case <-acquired:
			t.Fatal("exclusive lock acquired while a reader held it")
		case <-time.After(50 * time.Millisecond):
		}

		release()
		select {
		case <-acquired:
		case <-time.After(5 * time.Second):
			t.Fatal("exclusive lock not acquired after release")
		}
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		lt := newLockTable()
		release := lt.acquire("a", true)
		defer release()

		done := make(chan struct{})
		go func() {
			lt.acquire("b", true)()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("lock on b blocked by lock on a")
		}
	})
}

func TestStore_ConcurrentUpserts(t *testing.T) {
	for _, fileLocking := range []bool{false, true} {
		name := "InProcess"
		if fileLocking {
			name = "FileLocking"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := New(WithFileLocking(fileLocking))
			path := createIndex(t, s, t.TempDir(), "docs", 2, "l2")

			const writers, perWriter = 8, 10
			var wg sync.WaitGroup
			errs := make(chan error, writers*2)
			for w := range writers {
				wg.Add(2)
				go func() {
					defer wg.Done()
					items := make([]Item, perWriter)
					for i := range items {
						id := int64(w*perWriter + i)
						items[i] = Item{ID: id, Vector: []float32{float32(id), 1}}
					}
					_, err := s.Upsert(ctx, path, items)
					errs <- err
				}()
				go func() {
					defer wg.Done()
					_, err := s.Content(ctx, path, ContentQuery{Limit: MaxPageSize})
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			info, err := s.Info(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, writers*perWriter, info.Total)

			st := loadState(t, s, path)
			assert.Equal(t, st.idx.IDs(), st.side.IDs())
			assert.Equal(t, 0, s.locks.size())
		})
	}
}

func TestStore_LockCanceled(t *testing.T) {
	s := New()
	path := createIndex(t, s, t.TempDir(), "docs", 2, "l2")

	st := loadState(t, s, path)
	release := s.locks.acquire(st.loc.IndexPath, true)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Info(ctx, path)
	require.ErrorIs(t, err, context.Canceled)
}
