package scheduler

import (
	"context"
	"time"

	"remindd/internal/dispatch"
	"remindd/internal/reminder"
)

const (
	DefaultSpec      = "@every 30s"
	DefaultRetention = 7 * 24 * time.Hour
	DefaultTimezone  = "Asia/Shanghai"
	DefaultNotifyAt  = "10:30"
)

// Config controls the scan loop.
type Config struct {
	Enabled bool
	// Spec is the cron cadence, e.g. "@every 30s" or "*/1 * * * *".
	Spec      string
	Retention time.Duration
	// Timezone drives the debounce minute and the top-of-hour sweep.
	Timezone string
	// Task fallbacks when a task carries no zone or notification time.
	DefaultTimezone string
	DefaultNotifyAt string
}

func (c Config) withDefaults() Config {
	if c.Spec == "" {
		c.Spec = DefaultSpec
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.DefaultTimezone == "" {
		c.DefaultTimezone = DefaultTimezone
	}
	if c.Timezone == "" {
		c.Timezone = c.DefaultTimezone
	}
	if c.DefaultNotifyAt == "" {
		c.DefaultNotifyAt = DefaultNotifyAt
	}
	return c
}

// Source is the read side of storage the loop scans.
type Source interface {
	ActiveSettings(ctx context.Context) ([]reminder.Setting, error)
	OpenTasks(ctx context.Context) ([]reminder.Task, error)
	// TaskRevision reports the current revision of a task; ok is false once
	// it is gone.
	TaskRevision(ctx context.Context, id int64) (rev int64, ok bool, err error)
}

// Sender delivers rendered text to a target.
type Sender interface {
	Send(ctx context.Context, targetID int64, text string) dispatch.Result
}

// Report summarises one tick.
type Report struct {
	ID     string
	At     time.Time
	Minute string

	Debounced  bool
	NoSettings bool
	// Interrupted is set when Stop cut the scan short between tasks.
	Interrupted bool
	// Err is set when the tick was abandoned on a list-level storage failure.
	Err error

	Evaluated int
	Sent      int
	Failed    int
	Skipped   int
	Errored   int
	Swept     int64
	CacheSize int
	Took      time.Duration
}

// Scanned reports whether the tick went through the task list.
func (r Report) Scanned() bool {
	return !r.Debounced && !r.NoSettings && !r.Interrupted && r.Err == nil
}

// Snapshot is the loop state exposed to diagnostics.
type Snapshot struct {
	Enabled   bool
	Running   bool
	Spec      string
	Timezone  string
	Retention time.Duration
	Next      time.Time
	Prev      time.Time
	Ticks     uint64
	Last      Report
}
