package reminder

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shanghai(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	return loc
}

func TestOccasionKeyStable(t *testing.T) {
	t.Parallel()
	loc := shanghai(t)
	local := time.Date(2026, 10, 19, 10, 30, 12, 0, loc)
	d := Decision{Kind: KindRepeat, Threshold: 7}

	a := NewOccasion(42, d, local, 3)
	b := NewOccasion(42, d, local.Add(40*time.Second), 3)
	assert.Equal(t, "42/2026-10-19/10:30/repeat/7", a.Key())
	assert.Equal(t, a.Key(), b.Key())

	nextDay := NewOccasion(42, d, local.AddDate(0, 0, 1), 2)
	assert.NotEqual(t, a.Key(), nextDay.Key())

	moved := NewOccasion(42, d, local.Add(2*time.Hour), 3)
	assert.NotEqual(t, a.Key(), moved.Key())

	otherTask := NewOccasion(43, d, local, 3)
	assert.NotEqual(t, a.Key(), otherTask.Key())
}

func TestOccasionOnceKeyIgnoresTime(t *testing.T) {
	t.Parallel()
	loc := shanghai(t)
	d := Decision{Kind: KindOnce, Threshold: 30}

	a := NewOccasion(7, d, time.Date(2026, 10, 19, 10, 30, 0, 0, loc), 30)
	b := NewOccasion(7, d, time.Date(2026, 10, 19, 18, 5, 0, 0, loc), 30)
	assert.Equal(t, "7/once/30", a.Key())
	assert.Equal(t, a.Key(), b.Key())
	assert.Empty(t, a.Date)

	rec := a.Record(time.Unix(100, 0))
	assert.Equal(t, a.Key(), rec.Key)
	assert.Equal(t, KindOnce, rec.Kind)
	assert.Equal(t, 30, rec.Threshold)
	assert.Equal(t, int64(7), rec.TaskID)
}

func TestOccasionKindsNeverCollide(t *testing.T) {
	t.Parallel()
	loc := shanghai(t)
	local := time.Date(2026, 10, 19, 10, 30, 0, 0, loc)
	r := NewOccasion(1, Decision{Kind: KindRepeat, Threshold: 7}, local, 7)
	o := NewOccasion(1, Decision{Kind: KindOnce, Threshold: 7}, local, 7)
	assert.NotEqual(t, r.Key(), o.Key())
	assert.Empty(t, Occasion{}.Key())
}

func TestEvaluate(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 10, 19, 2, 30, 0, 0, time.UTC) // 10:30 Shanghai
	task := Task{ID: 9, Title: "report", DueDate: "2026-10-22", Timezone: "Asia/Shanghai", NotifyAt: "10:30"}

	ev, err := Evaluate(task, active(7, 1, 0), now, "09:00", "UTC")
	require.NoError(t, err)
	assert.True(t, ev.IsTime)
	assert.Equal(t, 3, ev.DaysUntilDue)
	assert.Equal(t, Decision{Kind: KindRepeat, Threshold: 7}, ev.Decision)
	assert.True(t, ev.Due())
	assert.Equal(t, "9/2026-10-19/10:30/repeat/7", ev.Occasion.Key())

	// Defaults fill empty fields.
	task.NotifyAt, task.Timezone = "", ""
	ev, err = Evaluate(task, active(7), now, "02:30", "UTC")
	require.NoError(t, err)
	assert.True(t, ev.IsTime)
	assert.Equal(t, "UTC", ev.Local.Location().String())

	task.DueDate = "soon"
	_, err = Evaluate(task, active(7), now, "02:30", "UTC")
	assert.ErrorIs(t, err, ErrBadTask)
}

func TestRender(t *testing.T) {
	t.Parallel()
	loc := shanghai(t)
	task := Task{ID: 1, Title: "pay rent", DueDate: "2026-10-19", Priority: "high"}
	local := time.Date(2026, 10, 19, 10, 30, 0, 0, loc)

	cases := []struct {
		days int
		kind Kind
		want string
	}{
		{3, KindRepeat, "Due in 3 day(s)"},
		{0, KindRepeat, "Due today"},
		{-2, KindRepeat, "Overdue by 2 day(s)"},
		{30, KindOnce, "one-time notice 30 day(s) ahead"},
	}
	for _, c := range cases {
		ev := Evaluation{Local: local, DaysUntilDue: c.days, IsTime: true, Decision: Decision{Kind: c.kind, Threshold: c.days}}
		msg := Render(task, ev)
		assert.Contains(t, msg, c.want)
		assert.Contains(t, msg, "pay rent")
		assert.Contains(t, msg, "Asia/Shanghai")
		assert.True(t, strings.Contains(msg, "Description: none"))
	}

	assert.Contains(t, RenderCompleted(task, local), "All reminders stopped")
	assert.Contains(t, RenderCreated(task, local), "New task created")
	assert.Contains(t, RenderTest("ops", local), "Target: ops")
}
