package dedup

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindd/internal/reminder"
	"remindd/internal/storage"
	logx "remindd/pkg/logx"
)

func newSQLiteStore(t *testing.T) (*Store, *storage.Store) {
	t.Helper()
	st, err := storage.Open(context.Background(), storage.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "dedup.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(st, NewCache(), logx.Nop()), st
}

func record(taskID int64, key string, at time.Time) reminder.OccasionRecord {
	return reminder.OccasionRecord{Key: key, TaskID: taskID, Kind: reminder.KindRepeat, Threshold: 7, RecordedAt: at}
}

func TestReserveAtMostOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newSQLiteStore(t)

	const callers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
		already  int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			// Each goroutine gets its own store instance sharing the log, as
			// independent scheduler processes would.
			res, err := New(d.log, NewCache(), logx.Nop()).Reserve(ctx, record(1, "1/2026-10-19/10:30/repeat/7", time.Now()))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch res {
			case Reserved:
				reserved++
			case AlreadyReserved:
				already++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, reserved)
	assert.Equal(t, callers-1, already)
}

func TestAlreadyHandledWarmsCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, st := newSQLiteStore(t)

	ok, err := d.AlreadyHandled(ctx, 5, "5/once/30")
	require.NoError(t, err)
	assert.False(t, ok)

	// Written by someone else: only the durable log knows.
	_, err = st.InsertOccasion(ctx, record(5, "5/once/30", time.Now()))
	require.NoError(t, err)
	assert.False(t, d.Cache().Has(5, "5/once/30"))

	ok, err = d.AlreadyHandled(ctx, 5, "5/once/30")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, d.Cache().Has(5, "5/once/30"))
}

func TestReleaseMakesOccasionEligibleAgain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newSQLiteStore(t)
	key := "3/2026-10-19/10:30/repeat/1"

	res, err := d.Reserve(ctx, record(3, key, time.Now()))
	require.NoError(t, err)
	require.Equal(t, Reserved, res)

	ok, err := d.AlreadyHandled(ctx, 3, key)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, d.Release(ctx, 3, key))
	ok, err = d.AlreadyHandled(ctx, 3, key)
	require.NoError(t, err)
	assert.False(t, ok)

	res, err = d.Reserve(ctx, record(3, key, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, Reserved, res)
}

func TestReleaseTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newSQLiteStore(t)

	for _, k := range []string{"8/a", "8/b"} {
		_, err := d.Reserve(ctx, record(8, k, time.Now()))
		require.NoError(t, err)
	}
	_, err := d.Reserve(ctx, record(9, "9/a", time.Now()))
	require.NoError(t, err)

	n, err := d.ReleaseTask(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, d.Cache().Len())

	ok, err := d.AlreadyHandled(ctx, 8, "8/a")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = d.AlreadyHandled(ctx, 9, "9/a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseTaskFromAnotherProcess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	daemon, st := newSQLiteStore(t)
	cli := New(st, NewCache(), logx.Nop())

	_, err := daemon.Reserve(ctx, record(4, "4/once/30", time.Now()))
	require.NoError(t, err)

	n, err := cli.ReleaseTask(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := daemon.AlreadyHandled(ctx, 4, "4/once/30")
	require.NoError(t, err)
	assert.True(t, ok, "the daemon cache still answers until evicted")

	assert.Equal(t, 1, daemon.EvictTask(4))
	ok, err = daemon.AlreadyHandled(ctx, 4, "4/once/30")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweepRetention(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, st := newSQLiteStore(t)
	now := time.Now()

	_, err := d.Reserve(ctx, record(1, "old", now.Add(-8*24*time.Hour)))
	require.NoError(t, err)
	_, err = d.Reserve(ctx, record(1, "recent", now.Add(-6*24*time.Hour)))
	require.NoError(t, err)

	n, err := d.SweepOlderThan(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recs, err := st.ListOccasions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "recent", recs[0].Key)

	// The cache is not timestamp-indexed and keeps the swept key.
	assert.True(t, d.Cache().Has(1, "old"))
}

type failingLog struct{ err error }

func (f failingLog) InsertOccasion(context.Context, reminder.OccasionRecord) (bool, error) {
	return false, f.err
}
func (f failingLog) OccasionExists(context.Context, int64, string) (bool, error) { return false, f.err }
func (f failingLog) DeleteOccasion(context.Context, int64, string) error         { return f.err }
func (f failingLog) DeleteTaskOccasions(context.Context, int64) (int64, error)   { return 0, f.err }
func (f failingLog) DeleteOccasionsBefore(context.Context, time.Time) (int64, error) {
	return 0, f.err
}

func TestStorageErrorsAreDistinct(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("disk on fire")
	d := New(failingLog{err: boom}, nil, logx.Nop())

	_, err := d.Reserve(ctx, record(1, "k", time.Now()))
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, boom)
	assert.False(t, d.Cache().Has(1, "k"), "failed reservations are not cached")

	_, err = d.AlreadyHandled(ctx, 1, "k")
	assert.ErrorIs(t, err, ErrStorage)

	assert.ErrorIs(t, d.Release(ctx, 1, "k"), ErrStorage)

	_, err = d.ReleaseTask(ctx, 1)
	assert.ErrorIs(t, err, ErrStorage)

	_, err = d.SweepOlderThan(ctx, time.Now())
	assert.ErrorIs(t, err, ErrStorage)

	_, err = d.Reserve(ctx, reminder.OccasionRecord{TaskID: 1})
	assert.ErrorIs(t, err, ErrStorage)
}

func TestCache(t *testing.T) {
	t.Parallel()
	c := NewCache()
	c.Add(1, "a")
	c.Add(1, "a")
	c.Add(1, "b")
	c.Add(2, "a")
	assert.Equal(t, 3, c.Len())
	assert.True(t, c.Has(2, "a"))
	assert.False(t, c.Has(3, "a"))

	c.Remove(1, "a")
	c.Remove(1, "zzz")
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, c.RemoveTask(1))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "reserved", Reserved.String())
	assert.Equal(t, "already_reserved", AlreadyReserved.String())
}
