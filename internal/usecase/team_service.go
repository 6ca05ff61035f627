package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ravenfall/scrim-scheduler/internal/domain/event"
	"github.com/ravenfall/scrim-scheduler/internal/domain/team"
	"github.com/ravenfall/scrim-scheduler/internal/domain/user"
)

type TeamService struct {
	tx     Transactor
	teams  team.Repository
	events event.Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewTeamService(tx Transactor, teams team.Repository, events event.Repository, logger *slog.Logger) *TeamService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TeamService{
		tx:     tx,
		teams:  teams,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// SetSchedulerRights grants or revokes a roster member's right to negotiate
// on the team's behalf. Only the leader may change rights, and the leader's
// own implicit right can never be revoked.
func (s *TeamService) SetSchedulerRights(ctx context.Context, actor user.Principal, teamID, targetUserID string, grant bool) (team.Team, error) {
	if err := requireActor(actor); err != nil {
		return team.Team{}, err
	}
	if targetUserID == "" {
		return team.Team{}, fmt.Errorf("%w: target user id is required", ErrInvalidInput)
	}

	var updated team.Team
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, ok, err := s.teams.GetByID(ctx, teamID)
		if err != nil {
			return fmt.Errorf("get team: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: team=%s", ErrNotFound, teamID)
		}
		if t.LeaderID != actor.UserID {
			return fmt.Errorf("%w: only the leader may change scheduler rights", ErrPermissionDenied)
		}
		if targetUserID == t.LeaderID {
			return fmt.Errorf("%w: the leader always has scheduling rights", ErrFailedPrecondition)
		}
		if !t.IsMember(targetUserID) {
			return fmt.Errorf("%w: user %s is not on the roster", ErrFailedPrecondition, targetUserID)
		}

		schedulers := make([]string, 0, len(t.Schedulers)+1)
		present := false
		for _, id := range t.Schedulers {
			if id == targetUserID {
				present = true
				continue
			}
			schedulers = append(schedulers, id)
		}
		if grant {
			schedulers = append(schedulers, targetUserID)
		}
		if grant == present {
			// Idempotent toggle, nothing to persist.
			updated = t
			return nil
		}

		if err := s.teams.SetSchedulers(ctx, t.ID, schedulers); err != nil {
			return fmt.Errorf("set schedulers: %w", err)
		}
		t.Schedulers = schedulers

		now := s.now().UTC()
		entry := event.New(now, t.ID, event.TypeSchedulerToggled, event.CategoryTeam, actor.UserID, map[string]any{
			"target_user": targetUserID,
			"granted":     grant,
		})
		if err := s.events.Append(ctx, entry); err != nil {
			return fmt.Errorf("append scheduler rights event: %w", err)
		}

		updated = t
		return nil
	})
	if err != nil {
		return team.Team{}, err
	}
	return updated, nil
}

// Events returns the team's recent audit entries, newest first.
func (s *TeamService) Events(ctx context.Context, actor user.Principal, teamID string, limit int) ([]event.Entry, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if _, ok, err := s.teams.GetByID(ctx, teamID); err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	} else if !ok {
		return nil, fmt.Errorf("%w: team=%s", ErrNotFound, teamID)
	}

	entries, err := s.events.ListByTeam(ctx, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return entries, nil
}

// Get returns one team document.
func (s *TeamService) Get(ctx context.Context, actor user.Principal, teamID string) (team.Team, error) {
	if err := requireActor(actor); err != nil {
		return team.Team{}, err
	}

	t, ok, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return team.Team{}, fmt.Errorf("get team: %w", err)
	}
	if !ok {
		return team.Team{}, fmt.Errorf("%w: team=%s", ErrNotFound, teamID)
	}
	return t, nil
}
