package notification

import "time"

const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Notification kinds the scheduling core emits for the delivery bots.
const (
	KindProposalCreated   = "proposal_created"
	KindProposalCancelled = "proposal_cancelled"
	KindMatchScheduled    = "match_scheduled"
	KindMatchCancelled    = "match_cancelled"
	KindMatchRescheduled  = "match_rescheduled"
)

// Record is a typed, pre-addressed notification waiting for best-effort
// external delivery. The core never talks to the delivery transport itself;
// it writes records and the dispatcher hands them to the gateway.
type Record struct {
	ID         string
	Kind       string
	TeamIDs    []string
	ProposalID string
	MatchID    string
	Payload    map[string]any
	Status     string
	Attempts   int
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
