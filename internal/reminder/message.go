package reminder

import (
	"fmt"
	"strings"
	"time"
)

const stampLayout = "2006-01-02 15:04:05"

// Render produces the reminder text for a task that is due for notification.
func Render(t Task, ev Evaluation) string {
	var b strings.Builder
	days := ev.DaysUntilDue

	switch {
	case ev.Decision.Kind == KindOnce:
		b.WriteString("🔔 Scheduled reminder\n\n")
	case days > 0:
		b.WriteString("📅 Daily reminder\n\n")
	case days == 0:
		b.WriteString("🚨 Due today\n\n")
	default:
		b.WriteString("⏰ Overdue reminder\n\n")
	}

	writeTaskBlock(&b, t)
	b.WriteString("\n")

	switch {
	case ev.Decision.Kind == KindOnce:
		fmt.Fprintf(&b, "📌 %d day(s) until the deadline\n", days)
	case days > 0:
		fmt.Fprintf(&b, "⚠️ Due in %d day(s), please take care of it.\n", days)
	case days == 0:
		b.WriteString("❗ Due today, please handle it now.\n")
	default:
		fmt.Fprintf(&b, "🔴 Overdue by %d day(s), please handle it as soon as possible.\n", -days)
	}

	fmt.Fprintf(&b, "\n⏰ Sent at: %s (%s)\n", ev.Local.Format(stampLayout), ev.Local.Location())
	b.WriteString("💡 Rule: ")
	switch {
	case ev.Decision.Kind == KindOnce:
		fmt.Fprintf(&b, "one-time notice %d day(s) ahead", ev.Decision.Threshold)
	case days > 0:
		fmt.Fprintf(&b, "daily while due within %d day(s)", ev.Decision.Threshold)
	case days == 0:
		b.WriteString("daily on the due date")
	default:
		b.WriteString("daily while overdue")
	}
	return b.String()
}

// RenderCreated is the notice sent when a task is created.
func RenderCreated(t Task, at time.Time) string {
	var b strings.Builder
	b.WriteString("✅ New task created\n\n")
	writeTaskBlock(&b, t)
	fmt.Fprintf(&b, "Notify at: %s (%s)\n", t.NotifyAt, t.Timezone)
	fmt.Fprintf(&b, "Created: %s\n\n", at.Format(stampLayout))
	fmt.Fprintf(&b, "💡 Rules: daily within %d day(s), one-time notice beyond that", RepeatHorizon)
	return b.String()
}

// RenderCompleted is the notice sent when a task is marked done.
func RenderCompleted(t Task, at time.Time) string {
	var b strings.Builder
	b.WriteString("🎉 Task completed\n\n")
	fmt.Fprintf(&b, "Title: %s\n", t.Title)
	fmt.Fprintf(&b, "Description: %s\n", orNone(t.Description))
	fmt.Fprintf(&b, "Completed: %s\n\n", at.Format(stampLayout))
	b.WriteString("✅ All reminders stopped")
	return b.String()
}

// RenderTest is the connectivity check message for a target.
func RenderTest(targetName string, at time.Time) string {
	return fmt.Sprintf("🔔 remindd test message\n\nTarget: %s\nTime: %s\n\nDelivery is working.", targetName, at.Format(stampLayout))
}

func writeTaskBlock(b *strings.Builder, t Task) {
	fmt.Fprintf(b, "Title: %s\n", t.Title)
	fmt.Fprintf(b, "Description: %s\n", orNone(t.Description))
	fmt.Fprintf(b, "Due: %s\n", orNone(t.DueDate))
	fmt.Fprintf(b, "Priority: %s\n", orNone(t.Priority))
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}
