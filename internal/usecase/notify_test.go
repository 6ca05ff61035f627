package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ravenfall/scrim-scheduler/internal/domain/notification"
	"github.com/ravenfall/scrim-scheduler/internal/infrastructure/repository/memory"
)

type capturePublisher struct {
	mu        sync.Mutex
	published []string
	fail      bool
}

func (p *capturePublisher) Publish(_ context.Context, record notification.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("gateway unreachable")
	}
	p.published = append(p.published, record.ID)
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func seedPendingRecord(repo *memory.NotificationRepository, id string) {
	_ = repo.Create(context.Background(), notification.Record{
		ID:        id,
		Kind:      notification.KindMatchScheduled,
		TeamIDs:   []string{"team-alpha", "team-bravo"},
		Payload:   map[string]any{"slot": "thu_2000"},
		Status:    notification.StatusPending,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	})
}

func TestDispatcherDelivers(t *testing.T) {
	store := memory.NewStore()
	repo := memory.NewNotificationRepository(store)
	publisher := &capturePublisher{}
	d := NewDispatcher(repo, publisher, slog.New(slog.DiscardHandler))
	d.Start()

	seedPendingRecord(repo, "ntf-1")
	d.Enqueue("ntf-1")
	d.Close()

	if publisher.count() != 1 {
		t.Fatalf("published = %d, want 1", publisher.count())
	}
	record, ok, err := repo.GetByID(context.Background(), "ntf-1")
	if err != nil || !ok {
		t.Fatalf("GetByID: ok=%v err=%v", ok, err)
	}
	if record.Status != notification.StatusDelivered {
		t.Fatalf("status = %s, want delivered", record.Status)
	}
}

func TestDispatcherRecordsFailure(t *testing.T) {
	store := memory.NewStore()
	repo := memory.NewNotificationRepository(store)
	publisher := &capturePublisher{fail: true}
	d := NewDispatcher(repo, publisher, slog.New(slog.DiscardHandler))
	d.Start()

	seedPendingRecord(repo, "ntf-2")
	d.Enqueue("ntf-2")
	d.Close()

	record, ok, err := repo.GetByID(context.Background(), "ntf-2")
	if err != nil || !ok {
		t.Fatalf("GetByID: ok=%v err=%v", ok, err)
	}
	if record.Status != notification.StatusFailed || record.Attempts != 1 {
		t.Fatalf("record = status:%s attempts:%d, want failed/1", record.Status, record.Attempts)
	}
	if record.LastError == "" {
		t.Fatal("failure reason should be recorded")
	}
}

func TestDispatcherSweepReenqueuesPending(t *testing.T) {
	store := memory.NewStore()
	repo := memory.NewNotificationRepository(store)
	publisher := &capturePublisher{}
	d := NewDispatcher(repo, publisher, slog.New(slog.DiscardHandler))
	d.Start()

	seedPendingRecord(repo, "ntf-3")
	seedPendingRecord(repo, "ntf-4")
	if err := d.Sweep(context.Background(), 10); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	d.Close()

	if publisher.count() != 2 {
		t.Fatalf("published = %d, want 2", publisher.count())
	}
}

func TestDispatcherSkipsNonPending(t *testing.T) {
	store := memory.NewStore()
	repo := memory.NewNotificationRepository(store)
	publisher := &capturePublisher{}
	d := NewDispatcher(repo, publisher, slog.New(slog.DiscardHandler))
	d.Start()

	seedPendingRecord(repo, "ntf-5")
	if err := repo.MarkDelivered(context.Background(), "ntf-5", testNow.Add(time.Minute)); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	d.Enqueue("ntf-5")
	d.Close()

	if publisher.count() != 0 {
		t.Fatalf("published = %d, want 0 for an already-delivered record", publisher.count())
	}
}

func TestDispatcherNilSafety(t *testing.T) {
	var d *Dispatcher
	// Services run with a nil dispatcher in tests; Enqueue must be a no-op.
	d.Enqueue("ntf-anything")
}
