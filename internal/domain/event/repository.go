package event

import "context"

// Repository is the append-only audit log.
type Repository interface {
	Append(ctx context.Context, entries ...Entry) error
	ListByTeam(ctx context.Context, teamID string, limit int) ([]Entry, error)
}
