package team

import "context"

// Repository describes team directory needs from use cases. Authorization
// checks always re-read the team through this interface so leadership and
// scheduler changes take effect immediately.
type Repository interface {
	GetByID(ctx context.Context, teamID string) (Team, bool, error)

	// FindByName matches on the exact team name. The Big4 feed identifies
	// teams by name only.
	FindByName(ctx context.Context, name string) (Team, bool, error)

	SetSchedulers(ctx context.Context, teamID string, schedulers []string) error
}
