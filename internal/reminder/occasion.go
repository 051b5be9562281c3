package reminder

import (
	"fmt"
	"strings"
	"time"
)

// Occasion identifies one reminder-worthy moment of a task.
//
// Repeating occasions are discriminated by local date and notification minute,
// one-shot occasions only by the distance-to-due observed when they fired.
type Occasion struct {
	TaskID       int64
	Kind         Kind
	Date         string // local YYYY-MM-DD, repeat only
	Hour         int    // repeat only
	Minute       int    // repeat only
	Threshold    int
	DaysUntilDue int
}

// NewOccasion derives the occasion for a firing decision at local time.
func NewOccasion(taskID int64, d Decision, local time.Time, daysUntilDue int) Occasion {
	o := Occasion{TaskID: taskID, Kind: d.Kind, Threshold: d.Threshold, DaysUntilDue: daysUntilDue}
	if d.Kind == KindRepeat {
		o.Date = local.Format(DateLayout)
		o.Hour = local.Hour()
		o.Minute = local.Minute()
	}
	return o
}

// Key is the canonical encoding used as the deduplication unit.
func (o Occasion) Key() string {
	switch o.Kind {
	case KindRepeat:
		return fmt.Sprintf("%d/%s/%02d:%02d/%s/%d", o.TaskID, o.Date, o.Hour, o.Minute, KindRepeat, o.Threshold)
	case KindOnce:
		return fmt.Sprintf("%d/%s/%d", o.TaskID, KindOnce, o.DaysUntilDue)
	default:
		return ""
	}
}

// Record builds the persisted record of this occasion.
func (o Occasion) Record(at time.Time) OccasionRecord {
	return OccasionRecord{
		Key:        o.Key(),
		TaskID:     o.TaskID,
		Kind:       o.Kind,
		Threshold:  o.Threshold,
		RecordedAt: at,
	}
}

// Evaluation is the full rule/gate verdict for one task at one instant.
type Evaluation struct {
	Local        time.Time // now in the task's zone
	DaysUntilDue int
	IsTime       bool
	Decision     Decision
	Occasion     Occasion
}

// Due reports whether the task should be notified right now.
func (e Evaluation) Due() bool { return e.IsTime && e.Decision.Fire() }

// Evaluate runs TimeGate and the rules for t at now. An empty NotifyAt or
// Timezone falls back to the given defaults. Errors wrap ErrBadTask.
func Evaluate(t Task, settings []Setting, now time.Time, defaultNotifyAt, defaultZone string) (Evaluation, error) {
	tz := strings.TrimSpace(t.Timezone)
	if tz == "" {
		tz = defaultZone
	}
	notifyAt := strings.TrimSpace(t.NotifyAt)
	if notifyAt == "" {
		notifyAt = defaultNotifyAt
	}

	loc, err := LoadZone(tz)
	if err != nil {
		return Evaluation{}, err
	}
	local := now.In(loc)
	due, err := ParseDueDate(t.DueDate, loc)
	if err != nil {
		return Evaluation{}, err
	}
	isTime, err := GateIn(local, notifyAt)
	if err != nil {
		return Evaluation{}, err
	}

	ev := Evaluation{
		Local:        local,
		DaysUntilDue: DaysUntil(local, due),
		IsTime:       isTime,
	}
	ev.Decision = Decide(ev.DaysUntilDue, settings)
	if ev.Decision.Fire() {
		ev.Occasion = NewOccasion(t.ID, ev.Decision, local, ev.DaysUntilDue)
	}
	return ev, nil
}
