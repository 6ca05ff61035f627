package match

import (
	"context"
	"time"

	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
)

// Repository describes scheduled-match persistence needs from use cases.
type Repository interface {
	Create(ctx context.Context, m Match) error
	GetByID(ctx context.Context, matchID string) (Match, bool, error)
	GetByIDForUpdate(ctx context.Context, matchID string) (Match, bool, error)
	Update(ctx context.Context, m Match) error

	// ListUpcomingByTeamWeek returns upcoming matches blocking slots for the
	// team in the week. excludeMatchID skips one match, used while that same
	// match is being rescheduled.
	ListUpcomingByTeamWeek(ctx context.Context, teamID string, week slot.Week, excludeMatchID string) ([]Match, error)

	// AnyBetweenTeamsOnDate reports whether the two teams already meet on
	// the given UTC day, regardless of origin or status.
	AnyBetweenTeamsOnDate(ctx context.Context, teamAID, teamBID string, day time.Time) (bool, error)

	// ExistsByBig4FixtureID dedupes the one-way import.
	ExistsByBig4FixtureID(ctx context.Context, fixtureID string) (bool, error)
}
