package proposal

import (
	"context"

	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
)

// Repository describes proposal persistence needs from use cases. Reads that
// precede a conditional write run inside a Transactor scope; GetByIDForUpdate
// additionally locks the aggregate for the remainder of that scope.
type Repository interface {
	Create(ctx context.Context, p Proposal) error
	GetByID(ctx context.Context, proposalID string) (Proposal, bool, error)
	GetByIDForUpdate(ctx context.Context, proposalID string) (Proposal, bool, error)
	Update(ctx context.Context, p Proposal) error

	// FindActiveBetween looks up an active proposal between the unordered
	// team pair for the week, in either direction.
	FindActiveBetween(ctx context.Context, teamAID, teamBID string, week slot.Week) (Proposal, bool, error)
	ListByTeamWeek(ctx context.Context, teamID string, week slot.Week) ([]Proposal, error)
}
