package usecase

import (
	"log/slog"
	"time"

	"github.com/ravenfall/scrim-scheduler/internal/domain/availability"
	"github.com/ravenfall/scrim-scheduler/internal/domain/match"
	"github.com/ravenfall/scrim-scheduler/internal/domain/proposal"
	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
	"github.com/ravenfall/scrim-scheduler/internal/domain/team"
	"github.com/ravenfall/scrim-scheduler/internal/domain/user"
	"github.com/ravenfall/scrim-scheduler/internal/infrastructure/repository/memory"
	"github.com/ravenfall/scrim-scheduler/internal/platform/id"
)

// testNow is a Tuesday inside ISO week 2026-07 (2026-02-09 .. 2026-02-15).
var testNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

var (
	alphaLeader = user.Principal{UserID: "lead-alpha"}
	alphaSched  = user.Principal{UserID: "sched-alpha"}
	alphaPlayer = user.Principal{UserID: "alpha-1"}
	bravoLeader = user.Principal{UserID: "lead-bravo"}
	bravoSched  = user.Principal{UserID: "sched-bravo"}
	outsider    = user.Principal{UserID: "stranger"}
)

type fixture struct {
	store         *memory.Store
	teamRepo      *memory.TeamRepository
	proposalRepo  *memory.ProposalRepository
	matchRepo     *memory.MatchRepository
	eventRepo     *memory.EventRepository
	notifRepo     *memory.NotificationRepository
	proposals     *ProposalService
	matches       *MatchService
	teams         *TeamService
}

func newFixture() *fixture {
	store := memory.NewStore()
	teamRepo := memory.NewTeamRepository(store)
	proposalRepo := memory.NewProposalRepository(store)
	matchRepo := memory.NewMatchRepository(store)
	availRepo := memory.NewAvailabilityRepository(store)
	eventRepo := memory.NewEventRepository(store)
	notifRepo := memory.NewNotificationRepository(store)

	logger := slog.New(slog.DiscardHandler)
	gen := id.NewRandomGenerator()

	proposals := NewProposalService(store, proposalRepo, matchRepo, teamRepo, availRepo, eventRepo, notifRepo, nil, gen, nil, logger)
	proposals.now = func() time.Time { return testNow }
	matches := NewMatchService(store, matchRepo, proposalRepo, teamRepo, availRepo, eventRepo, notifRepo, gen, nil, logger)
	matches.now = func() time.Time { return testNow }
	teams := NewTeamService(store, teamRepo, eventRepo, logger)
	teams.now = func() time.Time { return testNow }

	store.PutTeam(team.Team{
		ID:         "team-alpha",
		Name:       "Alpha Esports",
		Tag:        "ALP",
		LeaderID:   alphaLeader.UserID,
		Schedulers: []string{alphaSched.UserID},
		Roster:     []string{alphaSched.UserID, "alpha-1", "alpha-2", "alpha-3", "alpha-4"},
		Status:     team.StatusActive,
	})
	store.PutTeam(team.Team{
		ID:         "team-bravo",
		Name:       "Bravo Gaming",
		Tag:        "BRV",
		LeaderID:   bravoLeader.UserID,
		Schedulers: []string{bravoSched.UserID},
		Roster:     []string{bravoSched.UserID, "bravo-1", "bravo-2", "bravo-3"},
		Status:     team.StatusActive,
	})

	week := slot.MustParseWeek("2026-07")
	store.PutAvailability(availability.Document{
		TeamID: "team-alpha",
		Week:   week,
		Available: map[slot.Slot][]string{
			slot.MustParse("thu_2000"): {"alpha-1", "alpha-2", "alpha-3", "alpha-4"},
			slot.MustParse("thu_2030"): {"alpha-1", "alpha-2", "alpha-3"},
			slot.MustParse("fri_2200"): {"alpha-1", "alpha-2", "alpha-3"},
		},
	})
	store.PutAvailability(availability.Document{
		TeamID: "team-bravo",
		Week:   week,
		Available: map[slot.Slot][]string{
			slot.MustParse("thu_2000"): {"bravo-1", "bravo-2", "bravo-3"},
			slot.MustParse("fri_2200"): {"bravo-1", "bravo-2", "bravo-3", "bravo-4"},
		},
	})

	return &fixture{
		store:        store,
		teamRepo:     teamRepo,
		proposalRepo: proposalRepo,
		matchRepo:    matchRepo,
		eventRepo:    eventRepo,
		notifRepo:    notifRepo,
		proposals:    proposals,
		matches:      matches,
		teams:        teams,
	}
}

func userPrincipal(userID string) user.Principal {
	return user.Principal{UserID: userID}
}

// seedUpcomingMatch plants a pre-existing upcoming match directly in the
// store so blocked-slot behavior can be exercised.
func seedUpcomingMatch(f *fixture, matchID, teamAID, teamBID, weekID, slotID string) match.Match {
	week := slot.MustParseWeek(weekID)
	s := slot.MustParse(slotID)
	m := match.Match{
		ID:           matchID,
		TeamAID:      teamAID,
		TeamBID:      teamBID,
		TeamAName:    teamAID,
		TeamBName:    teamBID,
		Week:         week,
		Slot:         s,
		ScheduledAt:  week.DateOf(s),
		BlockedSlot:  s,
		BlockedTeams: []string{teamAID, teamBID},
		Origin:       match.OriginQuickAdd,
		Status:       match.StatusUpcoming,
		GameType:     proposal.GameTypePractice,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	f.store.PutMatch(m)
	return m
}

func validCreateInput() CreateProposalInput {
	return CreateProposalInput{
		ProposerTeamID: "team-alpha",
		OpponentTeamID: "team-bravo",
		Week:           "2026-07",
		MinFilter:      proposal.MinFilter{YourTeam: 3, Opponent: 3},
		GameType:       "practice",
		Slots:          []string{"thu_2000", "thu_2030"},
	}
}
