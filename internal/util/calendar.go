package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// WeekdaySet is the set of weekdays on which the pipeline is scheduled.
type WeekdaySet struct {
	days [7]bool
}

// ParseWeekdays parses a comma-separated list of weekday names or ranges,
// e.g. "mon-fri" or "mon,wed,fri". Ranges may not wrap past Saturday.
func ParseWeekdays(s string) (WeekdaySet, error) {
	var set WeekdaySet
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return set, fmt.Errorf("empty weekday list")
	}

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		from, ok := weekdayNames[strings.TrimSpace(lo)]
		if !ok {
			return WeekdaySet{}, fmt.Errorf("unknown weekday %q", lo)
		}
		to := from
		if isRange {
			if to, ok = weekdayNames[strings.TrimSpace(hi)]; !ok {
				return WeekdaySet{}, fmt.Errorf("unknown weekday %q", hi)
			}
			if to < from {
				return WeekdaySet{}, fmt.Errorf("weekday range %q runs backwards", part)
			}
		}
		for d := from; d <= to; d++ {
			set.days[d] = true
		}
	}
	return set, nil
}

// Days returns the weekdays in the set in Sunday-first order.
func (w WeekdaySet) Days() []time.Weekday {
	var out []time.Weekday
	for d, on := range w.days {
		if on {
			out = append(out, time.Weekday(d))
		}
	}
	return out
}

// CronField renders the set as a cron day-of-week field ("1,2,3,4,5").
func (w WeekdaySet) CronField() string {
	days := w.Days()
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

// ParseClock parses a wall-clock time of day in "HH:MM" form.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("parsing time of day %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
