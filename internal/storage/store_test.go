package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "remindd.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(context.Background(), Config{Driver: "mysql"}, logx.Nop())
	require.Error(t, err)
	_, err = Open(context.Background(), Config{Driver: "sqlite"}, logx.Nop())
	require.Error(t, err)
	_, err = Open(context.Background(), Config{Driver: "postgres"}, logx.Nop())
	require.Error(t, err)
}

func TestRebindPostgres(t *testing.T) {
	t.Parallel()
	pg := &Store{dialect: dialectPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.q("SELECT * FROM t WHERE a = ? AND b = ?"))
	lite := &Store{dialect: dialectSQLite}
	assert.Equal(t, "a = ?", lite.q("a = ?"))
}

func TestTaskLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	id, err := st.CreateTask(ctx, reminder.Task{Title: "file taxes", DueDate: "2026-10-30", NotifyAt: "09:00", Timezone: "UTC", TargetID: 1})
	require.NoError(t, err)
	_, err = st.CreateTask(ctx, reminder.Task{Title: "no deadline"})
	require.NoError(t, err)

	got, err := st.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusOpen, got.Status)
	assert.Equal(t, "file taxes", got.Title)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, int64(1), got.Revision)

	open, err := st.OpenTasks(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1, "tasks without a due date are never scanned")
	assert.Equal(t, id, open[0].ID)

	got.DueDate = "2026-11-02"
	require.NoError(t, st.UpdateTask(ctx, got))
	got, err = st.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "2026-11-02", got.DueDate)
	assert.Equal(t, int64(2), got.Revision)

	require.NoError(t, st.SetTaskStatus(ctx, id, reminder.StatusDone))
	rev, ok, err := st.TaskRevision(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), rev)
	open, err = st.OpenTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := st.ListTasks(ctx, TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, st.DeleteTask(ctx, id))
	_, err = st.GetTask(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, st.DeleteTask(ctx, id), ErrNotFound)
	_, ok, err = st.TaskRevision(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenUpgradesTasksWithoutRevision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL, description TEXT NOT NULL DEFAULT '',
		due_date TEXT NOT NULL DEFAULT '', priority TEXT NOT NULL DEFAULT 'medium', status TEXT NOT NULL DEFAULT 'open',
		target_id INTEGER NOT NULL DEFAULT 0, notify_at TEXT NOT NULL DEFAULT '', timezone TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO tasks(title, due_date, created_at) VALUES('legacy', '2026-12-01', 1)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	for range 2 {
		st, err := Open(ctx, Config{Driver: "sqlite", Path: path}, logx.Nop())
		require.NoError(t, err)
		got, err := st.GetTask(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Revision)
		require.NoError(t, st.Close())
	}
}

func TestSettings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	n, err := st.SeedDefaultSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultSettings), n)
	n, err = st.SeedDefaultSettings(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	active, err := st.ActiveSettings(ctx)
	require.NoError(t, err)
	require.Len(t, active, 4)
	assert.Equal(t, 30, active[0].DaysBefore)
	assert.Equal(t, 0, active[3].DaysBefore)

	ok, err := st.HasActiveSetting(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, st.SetSettingActive(ctx, active[1].ID, false))
	active, err = st.ActiveSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	all, err := st.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestTargets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	id, err := st.AddTarget(ctx, reminder.Target{Name: "team", Address: "https://example.invalid/hook"})
	require.NoError(t, err)

	tg, ok, err := st.Target(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, reminder.TargetWeCom, tg.Kind)

	require.NoError(t, st.SetTargetActive(ctx, id, false))
	_, ok, err = st.Target(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "inactive targets do not resolve")

	_, ok, err = st.Target(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOccasionLog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)
	now := time.Now()

	rec := reminder.OccasionRecord{Key: "1/once/30", TaskID: 1, Kind: reminder.KindOnce, Threshold: 30, RecordedAt: now}
	inserted, err := st.InsertOccasion(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = st.InsertOccasion(ctx, rec)
	require.NoError(t, err)
	assert.False(t, inserted, "unique (task_id, occasion_key)")

	// Same key on another task is a different occasion.
	other := rec
	other.TaskID = 2
	inserted, err = st.InsertOccasion(ctx, other)
	require.NoError(t, err)
	assert.True(t, inserted)

	ok, err := st.OccasionExists(ctx, 1, rec.Key)
	require.NoError(t, err)
	assert.True(t, ok)

	old := reminder.OccasionRecord{Key: "1/old", TaskID: 1, Kind: reminder.KindRepeat, RecordedAt: now.Add(-8 * 24 * time.Hour)}
	_, err = st.InsertOccasion(ctx, old)
	require.NoError(t, err)

	n, err := st.DeleteOccasionsBefore(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recs, err := st.ListOccasions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, reminder.KindOnce, recs[0].Kind)

	n, err = st.DeleteTaskOccasions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, st.DeleteOccasion(ctx, 2, rec.Key))
	all, err := st.ListOccasions(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}
