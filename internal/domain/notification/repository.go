package notification

import (
	"context"
	"time"
)

// Repository stores notification records. Creation happens with the core
// state change; delivery bookkeeping happens from the dispatcher afterwards.
type Repository interface {
	Create(ctx context.Context, record Record) error
	GetByID(ctx context.Context, id string) (Record, bool, error)
	ListPending(ctx context.Context, limit int) ([]Record, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string, at time.Time) error
}
