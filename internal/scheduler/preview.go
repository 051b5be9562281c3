package scheduler

import (
	"context"
	"fmt"

	"remindd/internal/reminder"
)

// PreviewItem is the dry-run verdict for one open task.
type PreviewItem struct {
	TaskID    int64  `json:"task_id"`
	Title     string `json:"title"`
	DueDate   string `json:"due_date"`
	NotifyAt  string `json:"notify_at"`
	Timezone  string `json:"timezone"`
	LocalNow  string `json:"local_now,omitempty"`
	DaysUntil int    `json:"days_until"`
	Decision  string `json:"decision"`
	Key       string `json:"key,omitempty"`
	IsTime    bool   `json:"is_time"`
	Handled   bool   `json:"handled"`
	WouldSend bool   `json:"would_send"`
	Error     string `json:"error,omitempty"`
}

// Preview evaluates every open task at the current instant without reserving
// or sending anything.
func (l *Loop) Preview(ctx context.Context) ([]PreviewItem, error) {
	l.mu.Lock()
	cfg := l.cfg
	l.mu.Unlock()

	settings, err := l.src.ActiveSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	tasks, err := l.src.OpenTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	now := l.clock.Now()

	items := make([]PreviewItem, 0, len(tasks))
	for _, t := range tasks {
		it := PreviewItem{
			TaskID:   t.ID,
			Title:    t.Title,
			DueDate:  t.DueDate,
			NotifyAt: orDefault(t.NotifyAt, cfg.DefaultNotifyAt),
			Timezone: orDefault(t.Timezone, cfg.DefaultTimezone),
		}
		ev, err := reminder.Evaluate(t, settings, now, cfg.DefaultNotifyAt, cfg.DefaultTimezone)
		if err != nil {
			it.Error = err.Error()
			items = append(items, it)
			continue
		}
		it.LocalNow = ev.Local.Format("2006-01-02 15:04:05")
		it.DaysUntil = ev.DaysUntilDue
		it.Decision = ev.Decision.String()
		it.IsTime = ev.IsTime
		if ev.Decision.Fire() {
			it.Key = ev.Occasion.Key()
			handled, err := l.ledger.AlreadyHandled(ctx, t.ID, it.Key)
			if err != nil {
				it.Error = err.Error()
			}
			it.Handled = handled
			it.WouldSend = ev.IsTime && !handled && err == nil
		}
		items = append(items, it)
	}
	return items, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
