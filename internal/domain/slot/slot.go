package slot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SlotsPerDay is the number of 30-minute buckets in one day.
const SlotsPerDay = 48

var dayNames = [7]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// Slot is a 30-minute UTC time bucket inside a week, identified as
// "{day}_{HHMM}", e.g. "thu_2000". Day 0 is Monday, day 6 is Sunday.
type Slot struct {
	Day    int
	Hour   int
	Minute int
}

// Parse converts a "{day}_{HHMM}" identifier into a Slot.
func Parse(value string) (Slot, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	parts := strings.SplitN(value, "_", 2)
	if len(parts) != 2 {
		return Slot{}, fmt.Errorf("slot id %q must look like thu_2000", value)
	}

	day := -1
	for idx, name := range dayNames {
		if parts[0] == name {
			day = idx
			break
		}
	}
	if day < 0 {
		return Slot{}, fmt.Errorf("slot id %q has unknown day %q", value, parts[0])
	}

	if len(parts[1]) != 4 {
		return Slot{}, fmt.Errorf("slot id %q must carry a four-digit HHMM time", value)
	}
	hour, err := strconv.Atoi(parts[1][:2])
	if err != nil || hour < 0 || hour > 23 {
		return Slot{}, fmt.Errorf("slot id %q has invalid hour", value)
	}
	minute, err := strconv.Atoi(parts[1][2:])
	if err != nil || (minute != 0 && minute != 30) {
		return Slot{}, fmt.Errorf("slot id %q must land on a half-hour boundary", value)
	}

	return Slot{Day: day, Hour: hour, Minute: minute}, nil
}

// MustParse is Parse for test fixtures and constants known to be valid.
func MustParse(value string) Slot {
	s, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return s
}

// FromTime derives the slot containing the given instant, evaluated in UTC.
// Minutes are truncated down to the half-hour boundary.
func FromTime(t time.Time) Slot {
	t = t.UTC()
	minute := 0
	if t.Minute() >= 30 {
		minute = 30
	}
	return Slot{
		Day:    (int(t.Weekday()) + 6) % 7,
		Hour:   t.Hour(),
		Minute: minute,
	}
}

func (s Slot) String() string {
	return fmt.Sprintf("%s_%02d%02d", dayNames[s.Day], s.Hour, s.Minute)
}

// Index positions the slot inside the week: 0 for mon_0000 through 335 for
// sun_2330. Used for ordering and adjacency math.
func (s Slot) Index() int {
	return s.Day*SlotsPerDay + s.Hour*2 + s.Minute/30
}

func (s Slot) Valid() bool {
	if s.Day < 0 || s.Day > 6 || s.Hour < 0 || s.Hour > 23 {
		return false
	}
	return s.Minute == 0 || s.Minute == 30
}

func fromIndex(index int) Slot {
	return Slot{
		Day:    index / SlotsPerDay,
		Hour:   (index % SlotsPerDay) / 2,
		Minute: (index % 2) * 30,
	}
}

// Next returns the slot 30 minutes later, carrying across hour and day
// boundaries. The second return is false past sun_2330: the week does not
// wrap, there simply is no adjacent slot.
func (s Slot) Next() (Slot, bool) {
	index := s.Index() + 1
	if index >= 7*SlotsPerDay {
		return Slot{}, false
	}
	return fromIndex(index), true
}

// Prev returns the slot 30 minutes earlier, or false before mon_0000.
func (s Slot) Prev() (Slot, bool) {
	index := s.Index() - 1
	if index < 0 {
		return Slot{}, false
	}
	return fromIndex(index), true
}

// Less orders slots within a week.
func (s Slot) Less(other Slot) bool {
	return s.Index() < other.Index()
}
