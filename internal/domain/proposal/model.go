package proposal

import (
	"fmt"
	"time"

	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
)

const (
	StatusActive    = "active"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

const (
	GameTypeOfficial = "official"
	GameTypePractice = "practice"
)

const (
	// MinHeadcount and MaxHeadcount bound the per-side headcount filter.
	MinHeadcount = 3
	MaxHeadcount = 4

	// MaxSeedSlots caps how many slots a creator may pre-confirm.
	MaxSeedSlots = 14

	// MaxWeeksAhead is how far into the future a proposal week may lie.
	MaxWeeksAhead = 4
)

// Side identifies which half of the negotiation a team occupies.
type Side string

const (
	SideProposer Side = "proposer"
	SideOpponent Side = "opponent"
)

func ValidGameType(value string) bool {
	return value == GameTypeOfficial || value == GameTypePractice
}

// MinFilter is the headcount threshold pair a proposer declares: how many
// players each side should field before a slot is worth confirming.
type MinFilter struct {
	YourTeam int
	Opponent int
}

func (f MinFilter) Validate() error {
	if f.YourTeam < MinHeadcount || f.YourTeam > MaxHeadcount {
		return fmt.Errorf("your-team headcount %d out of range [%d,%d]", f.YourTeam, MinHeadcount, MaxHeadcount)
	}
	if f.Opponent < MinHeadcount || f.Opponent > MaxHeadcount {
		return fmt.Errorf("opponent headcount %d out of range [%d,%d]", f.Opponent, MinHeadcount, MaxHeadcount)
	}
	return nil
}

// SlotConfirmation records one side's commitment to a slot. CountAtConfirm is
// a pessimistic headcount snapshot taken when the slot was confirmed, used to
// flag availability that dropped afterwards.
type SlotConfirmation struct {
	UserID         string
	CountAtConfirm int
	GameType       string
	ConfirmedAt    time.Time
}

// Proposal is the two-team negotiation aggregate for one week. Both sides
// independently confirm candidate slots; the first confirmation that matches
// an entry on the other side seals the match.
type Proposal struct {
	ID               string
	ProposerTeamID   string
	OpponentTeamID   string
	ProposerTeamName string
	OpponentTeamName string
	ProposerTeamTag  string
	OpponentTeamTag  string
	Week             slot.Week
	MinFilter        MinFilter
	GameType         string
	ProposerStandin  bool
	OpponentStandin  bool

	ProposerConfirmed map[slot.Slot]SlotConfirmation
	OpponentConfirmed map[slot.Slot]SlotConfirmation

	Status           string
	ConfirmedSlot    *slot.Slot
	ScheduledMatchID string
	ExpiresAt        time.Time

	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CancelledBy string
	CancelledAt *time.Time

	// Version backs optimistic concurrency in stores that need it.
	Version int64
}

// SideOf derives which side of the proposal a team is on. The side is never
// caller-supplied: deriving it from the authenticated team prevents spoofing.
func (p Proposal) SideOf(teamID string) (Side, bool) {
	switch teamID {
	case p.ProposerTeamID:
		return SideProposer, true
	case p.OpponentTeamID:
		return SideOpponent, true
	default:
		return "", false
	}
}

func (p Proposal) TeamID(side Side) string {
	if side == SideProposer {
		return p.ProposerTeamID
	}
	return p.OpponentTeamID
}

func (side Side) Other() Side {
	if side == SideProposer {
		return SideOpponent
	}
	return SideProposer
}

// Confirmations returns the live confirmation map for a side, allocating it
// on first use so callers may write through it.
func (p *Proposal) Confirmations(side Side) map[slot.Slot]SlotConfirmation {
	if side == SideProposer {
		if p.ProposerConfirmed == nil {
			p.ProposerConfirmed = make(map[slot.Slot]SlotConfirmation)
		}
		return p.ProposerConfirmed
	}
	if p.OpponentConfirmed == nil {
		p.OpponentConfirmed = make(map[slot.Slot]SlotConfirmation)
	}
	return p.OpponentConfirmed
}

// Standin reports the flag for a side. Standin is a practice-only concept.
func (p Proposal) Standin(side Side) bool {
	if side == SideProposer {
		return p.ProposerStandin
	}
	return p.OpponentStandin
}

func (p *Proposal) SetStandin(side Side, value bool) {
	if side == SideProposer {
		p.ProposerStandin = value
		return
	}
	p.OpponentStandin = value
}

// Validate checks structural invariants, including that a confirmed slot is
// present exactly when the status says so.
func (p Proposal) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("proposal id is required")
	}
	if p.ProposerTeamID == "" || p.OpponentTeamID == "" {
		return fmt.Errorf("both team ids are required")
	}
	if p.ProposerTeamID == p.OpponentTeamID {
		return fmt.Errorf("a team cannot propose against itself")
	}
	if !p.Week.Valid() {
		return fmt.Errorf("week %s is invalid", p.Week)
	}
	if !ValidGameType(p.GameType) {
		return fmt.Errorf("unknown game type %q", p.GameType)
	}
	if err := p.MinFilter.Validate(); err != nil {
		return err
	}
	if (p.Status == StatusConfirmed) != (p.ConfirmedSlot != nil) {
		return fmt.Errorf("confirmed slot must be set exactly when status is confirmed")
	}
	return nil
}
