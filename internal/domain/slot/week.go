package slot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Week is an ISO week in UTC, rendered as "YYYY-WW". It is the unit of
// negotiation scope: one proposal lives inside exactly one week.
type Week struct {
	Year int
	Num  int
}

// ParseWeek converts a "YYYY-WW" identifier into a Week.
func ParseWeek(value string) (Week, error) {
	value = strings.TrimSpace(value)
	parts := strings.SplitN(value, "-", 2)
	if len(parts) != 2 {
		return Week{}, fmt.Errorf("week id %q must look like 2026-07", value)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 2000 || year > 2200 {
		return Week{}, fmt.Errorf("week id %q has invalid year", value)
	}
	num, err := strconv.Atoi(parts[1])
	if err != nil || num < 1 || num > 53 {
		return Week{}, fmt.Errorf("week id %q has invalid week number", value)
	}

	return Week{Year: year, Num: num}, nil
}

// MustParseWeek is ParseWeek for fixtures known to be valid.
func MustParseWeek(value string) Week {
	w, err := ParseWeek(value)
	if err != nil {
		panic(err)
	}
	return w
}

// WeekOf returns the ISO week containing the given instant, evaluated in UTC.
func WeekOf(t time.Time) Week {
	year, num := t.UTC().ISOWeek()
	return Week{Year: year, Num: num}
}

func (w Week) String() string {
	return fmt.Sprintf("%04d-%02d", w.Year, w.Num)
}

func (w Week) Valid() bool {
	return w.Year >= 2000 && w.Year <= 2200 && w.Num >= 1 && w.Num <= 53
}

// Absolute flattens the week for cross-year comparison.
func (w Week) Absolute() int {
	return w.Year*52 + w.Num
}

// Start returns Monday 00:00:00 UTC of the week. January 4th is always
// inside ISO week 1, which anchors the computation.
func (w Week) Start() time.Time {
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	week1Monday := jan4.AddDate(0, 0, -((int(jan4.Weekday()) + 6) % 7))
	return week1Monday.AddDate(0, 0, (w.Num-1)*7)
}

// End returns Sunday 23:59:59.999 UTC of the week, the instant proposals for
// the week expire.
func (w Week) End() time.Time {
	return w.Start().AddDate(0, 0, 7).Add(-time.Millisecond)
}

// DateOf resolves a slot within the week to its absolute UTC instant.
func (w Week) DateOf(s Slot) time.Time {
	return w.Start().AddDate(0, 0, s.Day).Add(
		time.Duration(s.Hour)*time.Hour + time.Duration(s.Minute)*time.Minute)
}
