package reminder

import "fmt"

// RepeatHorizon is the largest threshold (in days) that produces daily reminders.
// Thresholds above it fire a single advance notice.
const RepeatHorizon = 7

// Decision is the outcome of evaluating the reminder rules for one distance-to-due.
type Decision struct {
	Kind      Kind
	Threshold int // DaysBefore of the setting that fired
}

func (d Decision) Fire() bool { return d.Kind != KindNone }

func (d Decision) String() string {
	if !d.Fire() {
		return "none"
	}
	return fmt.Sprintf("%s(%d)", d.Kind, d.Threshold)
}

// Decide maps the number of days until due (negative = overdue) and the
// configured settings to a reminder decision. Inactive settings and negative
// thresholds are ignored. Decide has no side effects and depends only on its
// inputs, so occasion keys derived from it are stable.
func Decide(daysUntilDue int, settings []Setting) Decision {
	for _, s := range settings {
		if !s.Active || s.DaysBefore < 0 {
			continue
		}
		if s.DaysBefore == daysUntilDue {
			if s.DaysBefore <= RepeatHorizon {
				return Decision{Kind: KindRepeat, Threshold: s.DaysBefore}
			}
			return Decision{Kind: KindOnce, Threshold: s.DaysBefore}
		}
	}

	if daysUntilDue > RepeatHorizon {
		return Decision{}
	}

	closest, found := 0, false
	for _, s := range settings {
		if !s.Active || s.DaysBefore < 0 || s.DaysBefore > RepeatHorizon {
			continue
		}
		if !found {
			closest, found = s.DaysBefore, true
			continue
		}
		dc, ds := absInt(closest-daysUntilDue), absInt(s.DaysBefore-daysUntilDue)
		if ds < dc || (ds == dc && s.DaysBefore < closest) {
			closest = s.DaysBefore
		}
	}
	if found && daysUntilDue <= closest {
		return Decision{Kind: KindRepeat, Threshold: closest}
	}
	return Decision{}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
