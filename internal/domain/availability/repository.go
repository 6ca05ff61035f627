package availability

import (
	"context"

	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
)

// Repository is the read-only view over availability documents. A missing
// document is not an error: it reads as an empty week.
type Repository interface {
	Read(ctx context.Context, teamID string, week slot.Week) (Document, error)
}
