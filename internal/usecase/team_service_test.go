package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/ravenfall/scrim-scheduler/internal/domain/event"
)

func TestSetSchedulerRights(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	updated, err := f.teams.SetSchedulerRights(ctx, alphaLeader, "team-alpha", "alpha-1", true)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !updated.IsAuthorized("alpha-1") {
		t.Fatal("alpha-1 should be authorized after the grant")
	}

	updated, err = f.teams.SetSchedulerRights(ctx, alphaLeader, "team-alpha", "alpha-1", false)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if updated.IsAuthorized("alpha-1") {
		t.Fatal("alpha-1 should lose authorization after the revoke")
	}

	entries, err := f.teams.Events(ctx, alphaLeader, "team-alpha", 10)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	toggles := 0
	for _, entry := range entries {
		if entry.Type == event.TypeSchedulerToggled {
			toggles++
		}
	}
	if toggles != 2 {
		t.Fatalf("toggle events = %d, want 2", toggles)
	}
}

func TestSetSchedulerRightsGuards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Only the leader may change rights, schedulers included.
	if _, err := f.teams.SetSchedulerRights(ctx, alphaSched, "team-alpha", "alpha-1", true); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("scheduler as actor err = %v, want ErrPermissionDenied", err)
	}

	// The leader's implicit right cannot be revoked or granted.
	if _, err := f.teams.SetSchedulerRights(ctx, alphaLeader, "team-alpha", alphaLeader.UserID, false); !errors.Is(err, ErrFailedPrecondition) {
		t.Fatalf("leader as target err = %v, want ErrFailedPrecondition", err)
	}

	// The target must be on the roster.
	if _, err := f.teams.SetSchedulerRights(ctx, alphaLeader, "team-alpha", "stranger", true); !errors.Is(err, ErrFailedPrecondition) {
		t.Fatalf("non-member target err = %v, want ErrFailedPrecondition", err)
	}

	if _, err := f.teams.SetSchedulerRights(ctx, alphaLeader, "team-ghost", "alpha-1", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown team err = %v, want ErrNotFound", err)
	}
}

func TestSchedulerRightsApplyImmediately(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// alpha-1 cannot propose, gets rights, then can.
	if _, err := f.proposals.Create(ctx, alphaPlayer, validCreateInput()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("before grant err = %v, want ErrPermissionDenied", err)
	}
	if _, err := f.teams.SetSchedulerRights(ctx, alphaLeader, "team-alpha", alphaPlayer.UserID, true); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := f.proposals.Create(ctx, alphaPlayer, validCreateInput()); err != nil {
		t.Fatalf("after grant: %v", err)
	}
}
