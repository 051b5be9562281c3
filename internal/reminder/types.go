package reminder

import (
	"errors"
	"time"
)

// ErrBadTask marks a task whose due date, notification time or timezone
// cannot be interpreted. Such a task is skipped for the tick and retried on the next one.
var ErrBadTask = errors.New("reminder: malformed task")

const (
	StatusOpen = "open"
	StatusDone = "done"

	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Task is the read-only view of a todo item the scheduler evaluates.
type Task struct {
	ID          int64
	Title       string
	Description string
	Priority    string
	DueDate     string // YYYY-MM-DD in the task's own timezone; empty means no deadline
	NotifyAt    string // HH:MM in the task's own timezone
	Timezone    string // IANA zone, e.g. "Asia/Shanghai"
	Status      string
	TargetID    int64
	// Revision grows on every write to the row. Readers holding an older
	// revision are looking at a stale task.
	Revision  int64
	CreatedAt time.Time
}

// Setting is one "remind N days before due" rule.
type Setting struct {
	ID         int64
	DaysBefore int
	Active     bool
	CreatedAt  time.Time
}

// Kind is the notification policy of a decision.
type Kind string

const (
	KindNone   Kind = ""
	KindRepeat Kind = "repeat"
	KindOnce   Kind = "once"
)

// OccasionRecord is the persisted form of an occasion acted upon.
type OccasionRecord struct {
	Key        string
	TaskID     int64
	Kind       Kind
	Threshold  int
	RecordedAt time.Time
}

// Clock is the time source of the scheduler. Tests inject a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Target kinds understood by the dispatcher.
const (
	TargetWeCom    = "wecom"
	TargetWebhook  = "webhook"
	TargetTelegram = "telegram"
)

// Target is a delivery destination a task points to.
type Target struct {
	ID          int64
	Name        string
	Kind        string
	Address     string // webhook URL, or Telegram chat id
	Description string
	Active      bool
	CreatedAt   time.Time
}
