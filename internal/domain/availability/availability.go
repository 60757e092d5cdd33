// Package availability profiles the weekdays a member habitually attends.
package availability

import (
	"time"

	"github.com/okian/runclub/internal/domain/model"
)

// HistoryLimit is the number of most recent attendances considered.
const HistoryLimit = 50

// MinAttendances is the count a weekday needs to be kept.
const MinAttendances = 2

// Set is a set of weekdays stored as a bitmask.
type Set uint8

// Of builds a set from days.
func Of(days ...time.Weekday) Set {
	var s Set
	for _, d := range days {
		s = s.Add(d)
	}
	return s
}

// Add returns s with d included.
func (s Set) Add(d time.Weekday) Set {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<uint(d)
}

// Has reports whether d is in s.
func (s Set) Has(d time.Weekday) bool {
	if d < time.Sunday || d > time.Saturday {
		return false
	}
	return s&(1<<uint(d)) != 0
}

// Intersects reports whether s and o share at least one weekday.
func (s Set) Intersects(o Set) bool { return s&o != 0 }

// Len returns the number of weekdays in s.
func (s Set) Len() int {
	n := 0
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			n++
		}
	}
	return n
}

// Days lists the weekdays in s, Sunday first.
func (s Set) Days() []time.Weekday {
	out := make([]time.Weekday, 0, s.Len())
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// Profile counts attendances per weekday in loc and keeps the weekdays
// seen at least MinAttendances times. Records without a date are ignored.
func Profile(records []model.AttendanceRecord, loc *time.Location) Set {
	if loc == nil {
		loc = time.UTC
	}
	var counts [7]int
	for _, r := range records {
		if r.EventDate.IsZero() {
			continue
		}
		counts[r.EventDate.In(loc).Weekday()]++
	}
	var s Set
	for d, c := range counts {
		if c >= MinAttendances {
			s = s.Add(time.Weekday(d))
		}
	}
	return s
}
