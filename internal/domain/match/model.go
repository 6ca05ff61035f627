package match

import (
	"fmt"
	"time"

	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
)

const (
	StatusUpcoming  = "upcoming"
	StatusCancelled = "cancelled"
)

const (
	OriginProposal   = "proposal"
	OriginQuickAdd   = "quick_add"
	OriginBig4Import = "big4_import"
)

// Match is a binding scheduled game between two teams. Team A is the
// proposer or initiating side. Names and tags are denormalized at creation
// time for display; staleness there is tolerated on purpose.
type Match struct {
	ID        string
	TeamAID   string
	TeamBID   string
	TeamAName string
	TeamBName string
	TeamATag  string
	TeamBTag  string

	Week        slot.Week
	Slot        slot.Slot
	ScheduledAt time.Time

	// BlockedSlot is the slot this match reserves; blocking extends one slot
	// to each side of it when computing a team's denylist.
	BlockedSlot  slot.Slot
	BlockedTeams []string

	RosterA []string
	RosterB []string

	ProposalID    string
	Origin        string
	Status        string
	GameType      string
	Big4FixtureID string

	ConfirmedByA  string
	ConfirmedByB  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CancelledBy   string
	CancelledAt   *time.Time
	RescheduledBy string
	RescheduledAt *time.Time

	Version int64
}

// ScheduledDate renders the match day as an ISO date.
func (m Match) ScheduledDate() string {
	return m.ScheduledAt.UTC().Format("2006-01-02")
}

// Blocks reports whether the match reserves slots for the team.
func (m Match) Blocks(teamID string) bool {
	for _, id := range m.BlockedTeams {
		if id == teamID {
			return true
		}
	}
	return false
}

func (m Match) Involves(teamID string) bool {
	return teamID == m.TeamAID || teamID == m.TeamBID
}

func ValidOrigin(value string) bool {
	switch value {
	case OriginProposal, OriginQuickAdd, OriginBig4Import:
		return true
	default:
		return false
	}
}

func (m Match) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("match id is required")
	}
	if m.TeamAID == "" || m.TeamBID == "" {
		return fmt.Errorf("both team ids are required")
	}
	if m.TeamAID == m.TeamBID {
		return fmt.Errorf("a team cannot play itself")
	}
	if !m.Week.Valid() {
		return fmt.Errorf("week %s is invalid", m.Week)
	}
	if !m.Slot.Valid() {
		return fmt.Errorf("slot %s is invalid", m.Slot)
	}
	if !ValidOrigin(m.Origin) {
		return fmt.Errorf("unknown origin %q", m.Origin)
	}
	return nil
}
