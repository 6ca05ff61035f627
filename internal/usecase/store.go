package usecase

import "context"

// Transactor runs fn so that every repository read and write made through
// the derived context commits atomically, or not at all. This is the
// concurrency primitive behind exactly-once match creation: all reads needed
// for a decision (proposal, live team docs, availability headcounts) happen
// inside the same scope as the writes they justify.
//
// The blocked-slot buffer computation is deliberately read with a plain
// query immediately before the transaction, not inside it. The resulting
// tens-of-milliseconds race window between two teams picking overlapping
// slots is an accepted trade-off; do not move that read into the
// transaction without revisiting the latency budget.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
