package availability

import "github.com/ravenfall/scrim-scheduler/internal/domain/slot"

// Document is one team's declared availability for one week: slot to the set
// of user ids who marked themselves available. A companion unavailable map
// carries explicit opt-outs. The availability subsystem owns and mutates
// these documents; this service only reads them.
type Document struct {
	TeamID      string
	Week        slot.Week
	Available   map[slot.Slot][]string
	Unavailable map[slot.Slot][]string
}

// Count returns the headcount for a slot.
func (d Document) Count(s slot.Slot) int {
	return len(d.Available[s])
}

// Participants returns a copy of the user ids available at the slot.
func (d Document) Participants(s slot.Slot) []string {
	users := d.Available[s]
	out := make([]string, len(users))
	copy(out, users)
	return out
}
