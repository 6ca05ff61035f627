package user

import "context"

// Directory resolves user ids to display identities. Lookups are read-only
// and tolerate short staleness; implementations may cache.
type Directory interface {
	Resolve(ctx context.Context, userID string) (Identity, bool, error)
}
