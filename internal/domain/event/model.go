package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Audit event types emitted by the scheduling core.
const (
	TypeProposalCreated       = "PROPOSAL_CREATED"
	TypeProposalCancelled     = "PROPOSAL_CANCELLED"
	TypeProposalSettings      = "PROPOSAL_SETTINGS_UPDATED"
	TypeSlotConfirmed         = "SLOT_CONFIRMED"
	TypeConfirmationWithdrawn = "CONFIRMATION_WITHDRAWN"
	TypeMatchScheduled        = "MATCH_SCHEDULED"
	TypeMatchCancelled        = "MATCH_CANCELLED"
	TypeMatchRescheduled      = "MATCH_RESCHEDULED"
	TypeMatchImported         = "MATCH_IMPORTED"
	TypeSchedulerToggled      = "SCHEDULER_RIGHTS_TOGGLED"
)

const (
	CategoryProposal = "proposal"
	CategoryMatch    = "match"
	CategoryTeam     = "team"
)

// Entry is one append-only audit record. Entries are write-once and never
// mutated after the fact.
type Entry struct {
	ID        string
	Type      string
	Category  string
	Timestamp time.Time
	TeamID    string
	UserID    string
	Details   map[string]any
}

// New builds an entry whose id is globally unique by construction:
// time + team + type + random suffix.
func New(now time.Time, teamID, eventType, category, userID string, details map[string]any) Entry {
	return Entry{
		ID:        fmt.Sprintf("%d_%s_%s_%s", now.UnixMilli(), teamID, eventType, randomSuffix()),
		Type:      eventType,
		Category:  category,
		Timestamp: now,
		TeamID:    teamID,
		UserID:    userID,
		Details:   details,
	}
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; keep ids unique
		// enough via the timestamp component if it somehow does.
		return "00000000"
	}
	return hex.EncodeToString(buf)
}
