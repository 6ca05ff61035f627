package usecase

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ravenfall/scrim-scheduler/internal/domain/match"
	"github.com/ravenfall/scrim-scheduler/internal/platform/id"
)

type staticFeed struct {
	fixtures []Big4Fixture
	err      error
}

func (f *staticFeed) UpcomingFixtures(context.Context) ([]Big4Fixture, error) {
	return f.fixtures, f.err
}

func newBig4Fixture(f *fixture, feed FixtureFeed) *Big4Service {
	svc := NewBig4Service(f.store, feed, f.matchRepo, f.teamRepo, f.eventRepo, id.NewRandomGenerator(), slog.New(slog.DiscardHandler))
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestBig4Import(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	kickoff := time.Date(2026, 2, 14, 16, 0, 0, 0, time.UTC)
	feed := &staticFeed{fixtures: []Big4Fixture{
		{
			FixtureID: "fx-100",
			HomeTeam:  "Alpha Esports",
			AwayTeam:  "Bravo Gaming",
			KickoffAt: kickoff,
			Stage:     "group",
		},
		{
			FixtureID: "fx-101",
			HomeTeam:  "Alpha Esports",
			AwayTeam:  "Unknown United",
			KickoffAt: kickoff.Add(2 * time.Hour),
		},
		{
			FixtureID: "fx-102",
			HomeTeam:  "Alpha Esports",
			AwayTeam:  "Bravo Gaming",
			KickoffAt: testNow.Add(-24 * time.Hour),
		},
	}}
	svc := newBig4Fixture(f, feed)

	report, err := svc.Import(ctx, "system")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if report.Fetched != 3 || report.Imported != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v, want 1 import out of 3", report)
	}
	if report.SkipReason["unresolved_team"] != 1 || report.SkipReason["in_past"] != 1 {
		t.Fatalf("skip reasons = %v", report.SkipReason)
	}

	m, ok, err := f.matchRepo.GetByID(ctx, report.MatchIDs[0])
	if err != nil || !ok {
		t.Fatalf("imported match missing: ok=%v err=%v", ok, err)
	}
	if m.Origin != match.OriginBig4Import || m.Big4FixtureID != "fx-100" {
		t.Fatalf("origin/fixture = %s/%s", m.Origin, m.Big4FixtureID)
	}
	if m.GameType != "official" {
		t.Fatalf("game type = %s, want official", m.GameType)
	}
	if m.Slot.String() != "sat_1600" || m.Week.String() != "2026-07" {
		t.Fatalf("slot/week = %s/%s, want sat_1600/2026-07", m.Slot, m.Week)
	}

	// A second run of the same feed is a no-op thanks to fixture dedupe.
	report, err = svc.Import(ctx, "system")
	if err != nil {
		t.Fatalf("second Import: %v", err)
	}
	if report.Imported != 0 || report.SkipReason["already_imported"] != 1 {
		t.Fatalf("second report = %+v, want pure dedupe skip", report)
	}
}

func TestBig4ImportSkipsSameDayManualMatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// The teams already meet that Saturday, entered by hand.
	seedUpcomingMatch(f, "mtc-manual", "team-alpha", "team-bravo", "2026-07", "sat_1200")

	feed := &staticFeed{fixtures: []Big4Fixture{{
		FixtureID: "fx-200",
		HomeTeam:  "Alpha Esports",
		AwayTeam:  "Bravo Gaming",
		KickoffAt: time.Date(2026, 2, 14, 18, 0, 0, 0, time.UTC),
	}}}
	svc := newBig4Fixture(f, feed)

	report, err := svc.Import(ctx, "system")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if report.Imported != 0 || report.SkipReason["same_day_match_exists"] != 1 {
		t.Fatalf("report = %+v, want same-day skip", report)
	}
}

func TestBig4ImportFeedDown(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	feed := &staticFeed{err: context.DeadlineExceeded}
	svc := newBig4Fixture(f, feed)

	if _, err := svc.Import(ctx, "system"); err == nil {
		t.Fatal("expected an error when the feed is unreachable")
	}
}
