package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/ravenfall/scrim-scheduler/internal/domain/event"
	"github.com/ravenfall/scrim-scheduler/internal/domain/match"
	"github.com/ravenfall/scrim-scheduler/internal/domain/proposal"
	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
	"github.com/ravenfall/scrim-scheduler/internal/domain/team"
	idgen "github.com/ravenfall/scrim-scheduler/internal/platform/id"
)

// Big4Fixture is one upcoming fixture from the Big4 tournament feed. Teams
// are identified by name only; resolution against the local directory is
// best-effort.
type Big4Fixture struct {
	FixtureID string
	HomeTeam  string
	AwayTeam  string
	KickoffAt time.Time
	Stage     string
}

// FixtureFeed is the read side of the Big4 integration. The import is
// strictly one-way: nothing is ever written back to the feed.
type FixtureFeed interface {
	UpcomingFixtures(ctx context.Context) ([]Big4Fixture, error)
}

// ImportReport summarizes one import run.
type ImportReport struct {
	Fetched    int
	Imported   int
	Skipped    int
	Failed     int
	MatchIDs   []string
	SkipReason map[string]int
}

const importWorkers = 8

type Big4Service struct {
	tx      Transactor
	feed    FixtureFeed
	matches match.Repository
	teams   team.Repository
	events  event.Repository
	idGen   idgen.Generator
	logger  *slog.Logger
	now     func() time.Time
}

func NewBig4Service(
	tx Transactor,
	feed FixtureFeed,
	matches match.Repository,
	teams team.Repository,
	events event.Repository,
	idGen idgen.Generator,
	logger *slog.Logger,
) *Big4Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Big4Service{
		tx:      tx,
		feed:    feed,
		matches: matches,
		teams:   teams,
		events:  events,
		idGen:   idGen,
		logger:  logger,
		now:     time.Now,
	}
}

// Import pulls upcoming fixtures and materializes the ones involving known
// teams as scheduled matches. Each fixture is independent, so failures are
// counted and logged but never abort the run.
func (s *Big4Service) Import(ctx context.Context, actorID string) (ImportReport, error) {
	fixtures, err := s.feed.UpcomingFixtures(ctx)
	if err != nil {
		return ImportReport{}, fmt.Errorf("%w: fetch fixtures: %v", ErrDependencyUnavailable, err)
	}

	report := ImportReport{
		Fetched:    len(fixtures),
		SkipReason: make(map[string]int),
	}
	if len(fixtures) == 0 {
		return report, nil
	}

	pool, err := ants.NewPool(importWorkers)
	if err != nil {
		return ImportReport{}, fmt.Errorf("create import pool: %w", err)
	}
	defer pool.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, fixture := range fixtures {
		fixture := fixture
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			matchID, skip, err := s.importOne(ctx, actorID, fixture)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				s.logger.Error("big4 fixture import failed",
					"fixture_id", fixture.FixtureID,
					"error", err,
				)
			case skip != "":
				report.Skipped++
				report.SkipReason[skip]++
			default:
				report.Imported++
				report.MatchIDs = append(report.MatchIDs, matchID)
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			report.Failed++
			mu.Unlock()
		}
	}
	wg.Wait()

	s.logger.Info("big4 import finished",
		"fetched", report.Fetched,
		"imported", report.Imported,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

// importOne processes one fixture. A non-empty skip reason means the fixture
// was intentionally not imported.
func (s *Big4Service) importOne(ctx context.Context, actorID string, fixture Big4Fixture) (string, string, error) {
	if fixture.FixtureID == "" {
		return "", "missing_fixture_id", nil
	}
	kickoff := fixture.KickoffAt.UTC()
	if !kickoff.After(s.now().UTC()) {
		return "", "in_past", nil
	}

	home, ok, err := s.teams.FindByName(ctx, fixture.HomeTeam)
	if err != nil {
		return "", "", fmt.Errorf("resolve home team: %w", err)
	}
	if !ok {
		s.logger.Warn("big4 team not resolved, skipping fixture",
			"fixture_id", fixture.FixtureID,
			"team_name", fixture.HomeTeam,
		)
		return "", "unresolved_team", nil
	}
	away, ok, err := s.teams.FindByName(ctx, fixture.AwayTeam)
	if err != nil {
		return "", "", fmt.Errorf("resolve away team: %w", err)
	}
	if !ok {
		s.logger.Warn("big4 team not resolved, skipping fixture",
			"fixture_id", fixture.FixtureID,
			"team_name", fixture.AwayTeam,
		)
		return "", "unresolved_team", nil
	}

	matchSlot := slot.FromTime(kickoff)
	week := slot.WeekOf(kickoff)

	matchID, err := s.idGen.NewID("mtc")
	if err != nil {
		return "", "", fmt.Errorf("generate match id: %w", err)
	}

	skip := ""
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.matches.ExistsByBig4FixtureID(ctx, fixture.FixtureID)
		if err != nil {
			return fmt.Errorf("check fixture dedupe: %w", err)
		}
		if exists {
			skip = "already_imported"
			return nil
		}
		// A manually scheduled meeting of the same teams on the same day
		// is assumed to be this fixture entered by hand.
		day := time.Date(kickoff.Year(), kickoff.Month(), kickoff.Day(), 0, 0, 0, 0, time.UTC)
		if clash, err := s.matches.AnyBetweenTeamsOnDate(ctx, home.ID, away.ID, day); err != nil {
			return fmt.Errorf("check same-day match: %w", err)
		} else if clash {
			skip = "same_day_match_exists"
			return nil
		}

		now := s.now().UTC()
		m := match.Match{
			ID:            matchID,
			TeamAID:       home.ID,
			TeamBID:       away.ID,
			TeamAName:     home.Name,
			TeamBName:     away.Name,
			TeamATag:      home.Tag,
			TeamBTag:      away.Tag,
			Week:          week,
			Slot:          matchSlot,
			ScheduledAt:   kickoff,
			BlockedSlot:   matchSlot,
			BlockedTeams:  []string{home.ID, away.ID},
			Origin:        match.OriginBig4Import,
			Status:        match.StatusUpcoming,
			GameType:      proposal.GameTypeOfficial,
			Big4FixtureID: fixture.FixtureID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.matches.Create(ctx, m); err != nil {
			return fmt.Errorf("create imported match: %w", err)
		}

		entry := event.New(now, home.ID, event.TypeMatchImported, event.CategoryMatch, actorID, map[string]any{
			"match_id":   m.ID,
			"fixture_id": fixture.FixtureID,
			"stage":      fixture.Stage,
			"week":       week.String(),
			"slot":       matchSlot.String(),
		})
		if err := s.events.Append(ctx, entry); err != nil {
			return fmt.Errorf("append import event: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return matchID, skip, nil
}
