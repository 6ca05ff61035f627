package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ravenfall/scrim-scheduler/internal/domain/availability"
	"github.com/ravenfall/scrim-scheduler/internal/domain/event"
	"github.com/ravenfall/scrim-scheduler/internal/domain/match"
	"github.com/ravenfall/scrim-scheduler/internal/domain/notification"
	"github.com/ravenfall/scrim-scheduler/internal/domain/proposal"
	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
	"github.com/ravenfall/scrim-scheduler/internal/domain/team"
	"github.com/ravenfall/scrim-scheduler/internal/domain/user"
	idgen "github.com/ravenfall/scrim-scheduler/internal/platform/id"
)

// QuickAddInput registers an externally-agreed match directly, skipping the
// negotiation flow.
type QuickAddInput struct {
	TeamID         string
	OpponentTeamID string
	DateTime       time.Time
	GameType       string
}

// RescheduleInput moves an upcoming match to a new slot, possibly in another
// week.
type RescheduleInput struct {
	MatchID  string
	Week     string
	SlotID   string
	TeamID   string
	DateTime *time.Time
}

// CancelMatchResult reports the cancelled match and, when the match came from
// a proposal, the proposal that went back to active.
type CancelMatchResult struct {
	Match    match.Match
	Proposal *proposal.Proposal
}

type MatchService struct {
	tx            Transactor
	matches       match.Repository
	proposals     proposal.Repository
	teams         team.Repository
	availability  availability.Repository
	events        event.Repository
	notifications notification.Repository
	idGen         idgen.Generator
	dispatcher    *Dispatcher
	logger        *slog.Logger
	now           func() time.Time
}

func NewMatchService(
	tx Transactor,
	matches match.Repository,
	proposals proposal.Repository,
	teams team.Repository,
	availabilityRepo availability.Repository,
	events event.Repository,
	notifications notification.Repository,
	idGen idgen.Generator,
	dispatcher *Dispatcher,
	logger *slog.Logger,
) *MatchService {
	if logger == nil {
		logger = slog.Default()
	}

	return &MatchService{
		tx:            tx,
		matches:       matches,
		proposals:     proposals,
		teams:         teams,
		availability:  availabilityRepo,
		events:        events,
		notifications: notifications,
		idGen:         idGen,
		dispatcher:    dispatcher,
		logger:        logger,
		now:           time.Now,
	}
}

// QuickAdd creates a binding match from an out-of-band agreement. The caller's
// team is recorded as team A and counts as already confirmed; the opponent's
// confirmation stays empty.
func (s *MatchService) QuickAdd(ctx context.Context, actor user.Principal, input QuickAddInput) (match.Match, error) {
	if err := requireActor(actor); err != nil {
		return match.Match{}, err
	}
	if input.TeamID == "" || input.OpponentTeamID == "" {
		return match.Match{}, fmt.Errorf("%w: both team ids are required", ErrInvalidInput)
	}
	if input.TeamID == input.OpponentTeamID {
		return match.Match{}, fmt.Errorf("%w: a team cannot play itself", ErrInvalidInput)
	}
	if !proposal.ValidGameType(input.GameType) {
		return match.Match{}, fmt.Errorf("%w: unknown game type %q", ErrInvalidInput, input.GameType)
	}

	now := s.now().UTC()
	when := input.DateTime.UTC()
	if !when.After(now) {
		return match.Match{}, fmt.Errorf("%w: match time %s is not in the future", ErrInvalidInput, when.Format(time.RFC3339))
	}
	matchSlot := slot.FromTime(when)
	week := slot.WeekOf(when)

	blockedCaller, err := blockedSlotSet(ctx, s.matches, input.TeamID, week, "")
	if err != nil {
		return match.Match{}, err
	}
	blockedOpponent, err := blockedSlotSet(ctx, s.matches, input.OpponentTeamID, week, "")
	if err != nil {
		return match.Match{}, err
	}

	matchID, err := s.idGen.NewID("mtc")
	if err != nil {
		return match.Match{}, fmt.Errorf("generate match id: %w", err)
	}
	notificationID, err := s.idGen.NewID("ntf")
	if err != nil {
		return match.Match{}, fmt.Errorf("generate notification id: %w", err)
	}

	var created match.Match
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		caller, ok, err := s.teams.GetByID(ctx, input.TeamID)
		if err != nil {
			return fmt.Errorf("get team: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: team=%s", ErrNotFound, input.TeamID)
		}
		opponent, ok, err := s.teams.GetByID(ctx, input.OpponentTeamID)
		if err != nil {
			return fmt.Errorf("get opponent team: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: team=%s", ErrNotFound, input.OpponentTeamID)
		}
		if !caller.IsAuthorized(actor.UserID) {
			return fmt.Errorf("%w: only the leader or a scheduler may add matches for %s", ErrPermissionDenied, caller.Name)
		}

		if _, blocked := blockedCaller[matchSlot]; blocked {
			return fmt.Errorf("%w: slot %s collides with an existing match for %s", ErrFailedPrecondition, matchSlot, caller.Name)
		}
		if _, blocked := blockedOpponent[matchSlot]; blocked {
			return fmt.Errorf("%w: slot %s collides with an existing match for %s", ErrFailedPrecondition, matchSlot, opponent.Name)
		}

		callerDoc, err := s.availability.Read(ctx, caller.ID, week)
		if err != nil {
			return fmt.Errorf("read availability: %w", err)
		}
		opponentDoc, err := s.availability.Read(ctx, opponent.ID, week)
		if err != nil {
			return fmt.Errorf("read opponent availability: %w", err)
		}

		m := match.Match{
			ID:           matchID,
			TeamAID:      caller.ID,
			TeamBID:      opponent.ID,
			TeamAName:    caller.Name,
			TeamBName:    opponent.Name,
			TeamATag:     caller.Tag,
			TeamBTag:     opponent.Tag,
			Week:         week,
			Slot:         matchSlot,
			ScheduledAt:  week.DateOf(matchSlot),
			BlockedSlot:  matchSlot,
			BlockedTeams: []string{caller.ID, opponent.ID},
			RosterA:      callerDoc.Participants(matchSlot),
			RosterB:      opponentDoc.Participants(matchSlot),
			Origin:       match.OriginQuickAdd,
			Status:       match.StatusUpcoming,
			GameType:     input.GameType,
			ConfirmedByA: actor.UserID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.matches.Create(ctx, m); err != nil {
			return fmt.Errorf("create match: %w", err)
		}

		entry := event.New(now, caller.ID, event.TypeMatchScheduled, event.CategoryMatch, actor.UserID, map[string]any{
			"match_id":  m.ID,
			"origin":    m.Origin,
			"opponent":  opponent.ID,
			"week":      week.String(),
			"slot":      matchSlot.String(),
			"game_type": m.GameType,
		})
		if err := s.events.Append(ctx, entry); err != nil {
			return fmt.Errorf("append match scheduled event: %w", err)
		}
		record := notification.Record{
			ID:      notificationID,
			Kind:    notification.KindMatchScheduled,
			TeamIDs: []string{caller.ID, opponent.ID},
			MatchID: m.ID,
			Payload: map[string]any{
				"team_a":    m.TeamAName,
				"team_b":    m.TeamBName,
				"slot":      matchSlot.String(),
				"week":      week.String(),
				"game_type": m.GameType,
				"date":      m.ScheduledDate(),
				"origin":    m.Origin,
			},
			Status:    notification.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.notifications.Create(ctx, record); err != nil {
			return fmt.Errorf("create match notification: %w", err)
		}

		created = m
		return nil
	})
	if err != nil {
		return match.Match{}, err
	}

	s.dispatcher.Enqueue(notificationID)
	return created, nil
}

// Cancel voids an upcoming match. When the match came out of a proposal the
// proposal reverts to active with only the sealed slot's confirmations
// removed, so the teams can pick a different slot without starting over.
func (s *MatchService) Cancel(ctx context.Context, actor user.Principal, matchID string) (CancelMatchResult, error) {
	if err := requireActor(actor); err != nil {
		return CancelMatchResult{}, err
	}

	notificationID, err := s.idGen.NewID("ntf")
	if err != nil {
		return CancelMatchResult{}, fmt.Errorf("generate notification id: %w", err)
	}

	var result CancelMatchResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		m, ok, err := s.matches.GetByIDForUpdate(ctx, matchID)
		if err != nil {
			return fmt.Errorf("get match for update: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: match=%s", ErrNotFound, matchID)
		}
		if m.Status != match.StatusUpcoming {
			return fmt.Errorf("%w: match is %s, only upcoming matches can be cancelled", ErrFailedPrecondition, m.Status)
		}

		callerTeam, err := s.authorizedParticipant(ctx, m, actor.UserID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		m.Status = match.StatusCancelled
		m.CancelledBy = actor.UserID
		m.CancelledAt = &now
		m.UpdatedAt = now
		if err := s.matches.Update(ctx, m); err != nil {
			return fmt.Errorf("update match: %w", err)
		}

		var reverted *proposal.Proposal
		if m.ProposalID != "" {
			p, ok, err := s.proposals.GetByIDForUpdate(ctx, m.ProposalID)
			if err != nil {
				return fmt.Errorf("get parent proposal for update: %w", err)
			}
			if ok && p.Status == proposal.StatusConfirmed {
				// Only the sealed slot's entries are cleared; confirmations
				// for other slots survive the revert.
				if p.ConfirmedSlot != nil {
					delete(p.Confirmations(proposal.SideProposer), *p.ConfirmedSlot)
					delete(p.Confirmations(proposal.SideOpponent), *p.ConfirmedSlot)
				}
				p.Status = proposal.StatusActive
				p.ConfirmedSlot = nil
				p.ScheduledMatchID = ""
				p.UpdatedAt = now
				if err := s.proposals.Update(ctx, p); err != nil {
					return fmt.Errorf("revert proposal: %w", err)
				}
				reverted = &p
			}
		}

		entry := event.New(now, callerTeam.ID, event.TypeMatchCancelled, event.CategoryMatch, actor.UserID, map[string]any{
			"match_id":    m.ID,
			"proposal_id": m.ProposalID,
			"week":        m.Week.String(),
			"slot":        m.Slot.String(),
		})
		if err := s.events.Append(ctx, entry); err != nil {
			return fmt.Errorf("append match cancelled event: %w", err)
		}
		record := notification.Record{
			ID:         notificationID,
			Kind:       notification.KindMatchCancelled,
			TeamIDs:    []string{m.TeamAID, m.TeamBID},
			MatchID:    m.ID,
			ProposalID: m.ProposalID,
			Payload: map[string]any{
				"team_a": m.TeamAName,
				"team_b": m.TeamBName,
				"slot":   m.Slot.String(),
				"week":   m.Week.String(),
				"date":   m.ScheduledDate(),
			},
			Status:    notification.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.notifications.Create(ctx, record); err != nil {
			return fmt.Errorf("create cancellation notification: %w", err)
		}

		result = CancelMatchResult{Match: m, Proposal: reverted}
		return nil
	})
	if err != nil {
		return CancelMatchResult{}, err
	}

	s.dispatcher.Enqueue(notificationID)
	return result, nil
}

// Reschedule moves an upcoming match. Either participant may do it
// unilaterally; the old slot frees up, the new one must clear both teams'
// blocked sets with the match itself excluded.
func (s *MatchService) Reschedule(ctx context.Context, actor user.Principal, input RescheduleInput) (match.Match, error) {
	if err := requireActor(actor); err != nil {
		return match.Match{}, err
	}

	week, err := slot.ParseWeek(input.Week)
	if err != nil {
		return match.Match{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	newSlot, err := slot.Parse(input.SlotID)
	if err != nil {
		return match.Match{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	peek, ok, err := s.matches.GetByID(ctx, input.MatchID)
	if err != nil {
		return match.Match{}, fmt.Errorf("get match: %w", err)
	}
	if !ok {
		return match.Match{}, fmt.Errorf("%w: match=%s", ErrNotFound, input.MatchID)
	}

	blockedA, err := blockedSlotSet(ctx, s.matches, peek.TeamAID, week, peek.ID)
	if err != nil {
		return match.Match{}, err
	}
	blockedB, err := blockedSlotSet(ctx, s.matches, peek.TeamBID, week, peek.ID)
	if err != nil {
		return match.Match{}, err
	}

	notificationID, err := s.idGen.NewID("ntf")
	if err != nil {
		return match.Match{}, fmt.Errorf("generate notification id: %w", err)
	}

	var moved match.Match
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		m, ok, err := s.matches.GetByIDForUpdate(ctx, input.MatchID)
		if err != nil {
			return fmt.Errorf("get match for update: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: match=%s", ErrNotFound, input.MatchID)
		}
		if m.Status != match.StatusUpcoming {
			return fmt.Errorf("%w: match is %s, only upcoming matches can be rescheduled", ErrFailedPrecondition, m.Status)
		}

		callerTeam, err := s.authorizedParticipant(ctx, m, actor.UserID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		newAt := week.DateOf(newSlot)
		if !newAt.After(now) {
			return fmt.Errorf("%w: new match time %s is not in the future", ErrInvalidInput, newAt.Format(time.RFC3339))
		}
		if _, blocked := blockedA[newSlot]; blocked {
			return fmt.Errorf("%w: slot %s collides with an existing match for %s", ErrFailedPrecondition, newSlot, m.TeamAName)
		}
		if _, blocked := blockedB[newSlot]; blocked {
			return fmt.Errorf("%w: slot %s collides with an existing match for %s", ErrFailedPrecondition, newSlot, m.TeamBName)
		}

		m.Week = week
		m.Slot = newSlot
		m.ScheduledAt = newAt
		m.BlockedSlot = newSlot
		m.RescheduledBy = actor.UserID
		m.RescheduledAt = &now
		m.UpdatedAt = now
		if err := s.matches.Update(ctx, m); err != nil {
			return fmt.Errorf("update match: %w", err)
		}

		// The parent proposal tracks only the sealed slot; its confirmation
		// history is left as it was.
		if m.ProposalID != "" {
			p, ok, err := s.proposals.GetByIDForUpdate(ctx, m.ProposalID)
			if err != nil {
				return fmt.Errorf("get parent proposal for update: %w", err)
			}
			if ok && p.Status == proposal.StatusConfirmed && p.ScheduledMatchID == m.ID {
				p.ConfirmedSlot = &newSlot
				p.Week = week
				p.UpdatedAt = now
				if err := s.proposals.Update(ctx, p); err != nil {
					return fmt.Errorf("update parent proposal: %w", err)
				}
			}
		}

		entry := event.New(now, callerTeam.ID, event.TypeMatchRescheduled, event.CategoryMatch, actor.UserID, map[string]any{
			"match_id": m.ID,
			"week":     week.String(),
			"slot":     newSlot.String(),
		})
		if err := s.events.Append(ctx, entry); err != nil {
			return fmt.Errorf("append match rescheduled event: %w", err)
		}
		record := notification.Record{
			ID:      notificationID,
			Kind:    notification.KindMatchRescheduled,
			TeamIDs: []string{m.TeamAID, m.TeamBID},
			MatchID: m.ID,
			Payload: map[string]any{
				"team_a": m.TeamAName,
				"team_b": m.TeamBName,
				"slot":   newSlot.String(),
				"week":   week.String(),
				"date":   m.ScheduledDate(),
			},
			Status:    notification.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.notifications.Create(ctx, record); err != nil {
			return fmt.Errorf("create reschedule notification: %w", err)
		}

		moved = m
		return nil
	})
	if err != nil {
		return match.Match{}, err
	}

	s.dispatcher.Enqueue(notificationID)
	return moved, nil
}

// ListUpcoming returns the team's upcoming matches in a week.
func (s *MatchService) ListUpcoming(ctx context.Context, actor user.Principal, teamID, weekID string) ([]match.Match, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	week, err := slot.ParseWeek(weekID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, ok, err := s.teams.GetByID(ctx, teamID); err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	} else if !ok {
		return nil, fmt.Errorf("%w: team=%s", ErrNotFound, teamID)
	}

	matches, err := s.matches.ListUpcomingByTeamWeek(ctx, teamID, week, "")
	if err != nil {
		return nil, fmt.Errorf("list upcoming matches: %w", err)
	}
	return matches, nil
}

// BlockedSlots exposes a team's blocked set for a week as a sorted list, for
// clients rendering a scheduling grid.
func (s *MatchService) BlockedSlots(ctx context.Context, actor user.Principal, teamID, weekID string) ([]slot.Slot, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	week, err := slot.ParseWeek(weekID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, ok, err := s.teams.GetByID(ctx, teamID); err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	} else if !ok {
		return nil, fmt.Errorf("%w: team=%s", ErrNotFound, teamID)
	}

	blocked, err := blockedSlotSet(ctx, s.matches, teamID, week, "")
	if err != nil {
		return nil, err
	}
	return sortedSlots(blocked), nil
}

// Get returns one match.
func (s *MatchService) Get(ctx context.Context, actor user.Principal, matchID string) (match.Match, error) {
	if err := requireActor(actor); err != nil {
		return match.Match{}, err
	}

	m, ok, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return match.Match{}, fmt.Errorf("get match: %w", err)
	}
	if !ok {
		return match.Match{}, fmt.Errorf("%w: match=%s", ErrNotFound, matchID)
	}
	return m, nil
}

// authorizedParticipant resolves which participating team the actor may act
// for, from live team documents.
func (s *MatchService) authorizedParticipant(ctx context.Context, m match.Match, userID string) (team.Team, error) {
	for _, teamID := range []string{m.TeamAID, m.TeamBID} {
		t, ok, err := s.teams.GetByID(ctx, teamID)
		if err != nil {
			return team.Team{}, fmt.Errorf("get team: %w", err)
		}
		if ok && t.IsAuthorized(userID) {
			return t, nil
		}
	}
	return team.Team{}, fmt.Errorf("%w: you may not manage matches for either team", ErrPermissionDenied)
}
