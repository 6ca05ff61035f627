package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/ravenfall/scrim-scheduler/internal/domain/notification"
)

// GatewayPublisher hands a notification record to the delivery gateway. The
// gateway owns actual transport (Discord bots, push); this service only
// enqueues.
type GatewayPublisher interface {
	Publish(ctx context.Context, record notification.Record) error
}

// Dispatcher drains pending notification records after the core state change
// committed. Delivery is best-effort: a failure is recorded and logged but
// never propagated to the caller, who already received success.
type Dispatcher struct {
	repo      notification.Repository
	publisher GatewayPublisher
	logger    *slog.Logger
	timeout   time.Duration
	queue     chan string
	wg        conc.WaitGroup
	now       func() time.Time
}

func NewDispatcher(repo notification.Repository, publisher GatewayPublisher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		timeout:   10 * time.Second,
		queue:     make(chan string, 256),
		now:       time.Now,
	}
}

// Start spawns the delivery worker. Call Close to drain and stop it.
func (d *Dispatcher) Start() {
	d.wg.Go(func() {
		for id := range d.queue {
			d.deliver(id)
		}
	})
}

// Close stops accepting work, drains the queue, and waits for the worker.
func (d *Dispatcher) Close() {
	close(d.queue)
	d.wg.Wait()
}

// Enqueue schedules a record for delivery. It never blocks the caller: when
// the queue is full the record stays pending and is picked up by Sweep.
func (d *Dispatcher) Enqueue(id string) {
	if d == nil || id == "" {
		return
	}
	select {
	case d.queue <- id:
	default:
		d.logger.Warn("notification queue full, leaving record pending", "notification_id", id)
	}
}

// Sweep re-dispatches records that are still pending, e.g. after a restart
// or a full queue. Safe to call periodically.
func (d *Dispatcher) Sweep(ctx context.Context, limit int) error {
	pending, err := d.repo.ListPending(ctx, limit)
	if err != nil {
		return err
	}
	for _, record := range pending {
		d.Enqueue(record.ID)
	}
	return nil
}

func (d *Dispatcher) deliver(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	record, ok, err := d.repo.GetByID(ctx, id)
	if err != nil {
		d.logger.Error("load notification record failed", "notification_id", id, "error", err)
		return
	}
	if !ok || record.Status != notification.StatusPending {
		return
	}

	if err := d.publisher.Publish(ctx, record); err != nil {
		d.logger.Warn("notification delivery failed",
			"notification_id", id,
			"kind", record.Kind,
			"error", err,
		)
		if markErr := d.repo.MarkFailed(ctx, id, err.Error(), d.now().UTC()); markErr != nil {
			d.logger.Error("mark notification failed errored", "notification_id", id, "error", markErr)
		}
		return
	}

	if err := d.repo.MarkDelivered(ctx, id, d.now().UTC()); err != nil {
		d.logger.Error("mark notification delivered errored", "notification_id", id, "error", err)
	}
}
