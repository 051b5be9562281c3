package admin

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

func (s *Service) calendar(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tasks == nil {
		http.Error(w, "tasks unavailable", http.StatusServiceUnavailable)
		return
	}
	tasks, err := s.deps.Tasks.List(r.Context(), reminder.StatusOpen)
	if err != nil {
		s.log.Warn("calendar listing failed", logx.Err(err))
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="remindd.ics"`)
	_, _ = w.Write([]byte(BuildCalendar(tasks, time.Now())))
}

// BuildCalendar renders open tasks with a due date as all-day events.
// Tasks without a deadline or with an unreadable date are left out.
func BuildCalendar(tasks []reminder.Task, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//remindd//tasks//EN")
	cal.SetXWRCalName("remindd")

	for _, t := range tasks {
		if strings.TrimSpace(t.DueDate) == "" {
			continue
		}
		day, err := time.Parse(reminder.DateLayout, strings.TrimSpace(t.DueDate))
		if err != nil {
			continue
		}
		ev := cal.AddEvent(fmt.Sprintf("task-%d@remindd", t.ID))
		ev.SetDtStampTime(stamp.UTC())
		if !t.CreatedAt.IsZero() {
			ev.SetCreatedTime(t.CreatedAt.UTC())
		}
		ev.SetAllDayStartAt(day)
		ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
		ev.SetSummary(t.Title)
		desc := t.Description
		if t.Priority != "" {
			desc = strings.TrimSpace(desc + "\nPriority: " + t.Priority)
		}
		if desc != "" {
			ev.SetDescription(desc)
		}
	}
	return cal.Serialize()
}
