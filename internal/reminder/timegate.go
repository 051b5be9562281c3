package reminder

import (
	"fmt"
	"strings"
	"time"
)

// LoadZone resolves an IANA timezone name.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty timezone", ErrBadTask)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrBadTask, name, err)
	}
	return loc, nil
}

// ParseClock parses an "HH:MM" notification time.
func ParseClock(hhmm string) (hour, minute int, err error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(hhmm))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: notification time %q", ErrBadTask, hhmm)
	}
	return t.Hour(), t.Minute(), nil
}

// ParseDueDate parses a calendar due date in loc.
func ParseDueDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: due date %q", ErrBadTask, s)
	}
	return d, nil
}

// Gate reports whether now, read on the wall clock of tz, is exactly the
// configured notification minute. Seconds are ignored and there is no
// tolerance window: a tick that lands in the next minute misses.
func Gate(now time.Time, notifyAt, tz string) (bool, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return false, err
	}
	return GateIn(now.In(loc), notifyAt)
}

// GateIn is Gate for a time already converted to the task's zone.
func GateIn(local time.Time, notifyAt string) (bool, error) {
	h, m, err := ParseClock(notifyAt)
	if err != nil {
		return false, err
	}
	return local.Hour() == h && local.Minute() == m, nil
}

// DaysUntil returns the number of calendar days from local's date to due.
// Both are compared as dates in local's zone, so DST shifts do not skew the count.
func DaysUntil(local time.Time, due time.Time) int {
	y1, m1, d1 := local.Date()
	y2, m2, d2 := due.Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
