package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
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

// CreateProposalInput is the incoming payload for proposal creation.
type CreateProposalInput struct {
	ProposerTeamID string
	OpponentTeamID string
	Week           string
	MinFilter      proposal.MinFilter
	GameType       string
	Standin        bool
	Slots          []string
}

// ConfirmSlotInput confirms one candidate slot for the caller's side.
type ConfirmSlotInput struct {
	ProposalID string
	SlotID     string
	GameType   string
}

// ConfirmSlotResult reports what the confirmation did. Sealed is true when
// this call (or a concurrent one that beat it to the same slot) produced the
// binding match.
type ConfirmSlotResult struct {
	Proposal proposal.Proposal
	Match    *match.Match
	Sealed   bool
}

// UpdateSettingsInput mutates negotiation parameters in place. Nil fields
// are left untouched.
type UpdateSettingsInput struct {
	ProposalID string
	GameType   *string
	Standin    *bool
}

type ProposalService struct {
	tx            Transactor
	proposals     proposal.Repository
	matches       match.Repository
	teams         team.Repository
	availability  availability.Repository
	events        event.Repository
	notifications notification.Repository
	directory     user.Directory
	idGen         idgen.Generator
	dispatcher    *Dispatcher
	logger        *slog.Logger
	now           func() time.Time
}

func NewProposalService(
	tx Transactor,
	proposals proposal.Repository,
	matches match.Repository,
	teams team.Repository,
	availabilityRepo availability.Repository,
	events event.Repository,
	notifications notification.Repository,
	directory user.Directory,
	idGen idgen.Generator,
	dispatcher *Dispatcher,
	logger *slog.Logger,
) *ProposalService {
	if logger == nil {
		logger = slog.Default()
	}

	return &ProposalService{
		tx:            tx,
		proposals:     proposals,
		matches:       matches,
		teams:         teams,
		availability:  availabilityRepo,
		events:        events,
		notifications: notifications,
		directory:     directory,
		idGen:         idGen,
		dispatcher:    dispatcher,
		logger:        logger,
		now:           time.Now,
	}
}

// Create validates and persists a new proposal, seeding the proposer's
// confirmations for every supplied slot with a headcount snapshot from the
// proposer's current availability.
func (s *ProposalService) Create(ctx context.Context, actor user.Principal, input CreateProposalInput) (proposal.Proposal, error) {
	if err := requireActor(actor); err != nil {
		return proposal.Proposal{}, err
	}

	input.ProposerTeamID = strings.TrimSpace(input.ProposerTeamID)
	input.OpponentTeamID = strings.TrimSpace(input.OpponentTeamID)
	if input.ProposerTeamID == "" || input.OpponentTeamID == "" {
		return proposal.Proposal{}, fmt.Errorf("%w: both team ids are required", ErrInvalidInput)
	}
	if input.ProposerTeamID == input.OpponentTeamID {
		return proposal.Proposal{}, fmt.Errorf("%w: a team cannot propose against itself", ErrInvalidInput)
	}

	week, err := slot.ParseWeek(input.Week)
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	now := s.now().UTC()
	currentWeek := slot.WeekOf(now)
	if week.Absolute() < currentWeek.Absolute() || week.Absolute() > currentWeek.Absolute()+proposal.MaxWeeksAhead {
		return proposal.Proposal{}, fmt.Errorf("%w: week %s is outside the current..+%d window", ErrInvalidInput, week, proposal.MaxWeeksAhead)
	}

	if err := input.MinFilter.Validate(); err != nil {
		return proposal.Proposal{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !proposal.ValidGameType(input.GameType) {
		return proposal.Proposal{}, fmt.Errorf("%w: unknown game type %q", ErrInvalidInput, input.GameType)
	}
	if input.Standin && input.GameType != proposal.GameTypePractice {
		return proposal.Proposal{}, fmt.Errorf("%w: standin is a practice-only flag", ErrFailedPrecondition)
	}

	if len(input.Slots) == 0 || len(input.Slots) > proposal.MaxSeedSlots {
		return proposal.Proposal{}, fmt.Errorf("%w: between 1 and %d slots are required", ErrInvalidInput, proposal.MaxSeedSlots)
	}
	seedSlots := make([]slot.Slot, 0, len(input.Slots))
	seen := make(map[slot.Slot]struct{}, len(input.Slots))
	for _, raw := range input.Slots {
		parsed, err := slot.Parse(raw)
		if err != nil {
			return proposal.Proposal{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if _, dup := seen[parsed]; dup {
			continue
		}
		seen[parsed] = struct{}{}
		seedSlots = append(seedSlots, parsed)
	}

	proposalID, err := s.idGen.NewID("prp")
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("generate proposal id: %w", err)
	}
	notificationID, err := s.idGen.NewID("ntf")
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("generate notification id: %w", err)
	}

	var created proposal.Proposal
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		proposer, ok, err := s.teams.GetByID(ctx, input.ProposerTeamID)
		if err != nil {
			return fmt.Errorf("get proposer team: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: team=%s", ErrNotFound, input.ProposerTeamID)
		}
		opponent, ok, err := s.teams.GetByID(ctx, input.OpponentTeamID)
		if err != nil {
			return fmt.Errorf("get opponent team: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: team=%s", ErrNotFound, input.OpponentTeamID)
		}

		if !proposer.IsMember(actor.UserID) {
			return fmt.Errorf("%w: you are not on the roster of %s", ErrPermissionDenied, proposer.Name)
		}
		if !proposer.IsAuthorized(actor.UserID) {
			return fmt.Errorf("%w: only the leader or a scheduler may propose for %s", ErrPermissionDenied, proposer.Name)
		}
		if opponent.Status != team.StatusActive {
			return fmt.Errorf("%w: team %s is not active", ErrFailedPrecondition, opponent.Name)
		}

		if existing, ok, err := s.proposals.FindActiveBetween(ctx, proposer.ID, opponent.ID, week); err != nil {
			return fmt.Errorf("check duplicate proposal: %w", err)
		} else if ok {
			return fmt.Errorf("%w: active proposal %s already exists between these teams for %s", ErrAlreadyExists, existing.ID, week)
		}

		doc, err := s.availability.Read(ctx, proposer.ID, week)
		if err != nil {
			return fmt.Errorf("read proposer availability: %w", err)
		}

		p := proposal.Proposal{
			ID:                proposalID,
			ProposerTeamID:    proposer.ID,
			OpponentTeamID:    opponent.ID,
			ProposerTeamName:  proposer.Name,
			OpponentTeamName:  opponent.Name,
			ProposerTeamTag:   proposer.Tag,
			OpponentTeamTag:   opponent.Tag,
			Week:              week,
			MinFilter:         input.MinFilter,
			GameType:          input.GameType,
			ProposerStandin:   input.Standin && input.GameType == proposal.GameTypePractice,
			ProposerConfirmed: make(map[slot.Slot]proposal.SlotConfirmation, len(seedSlots)),
			Status:            proposal.StatusActive,
			ExpiresAt:         week.End(),
			CreatedBy:         actor.UserID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		for _, seed := range seedSlots {
			p.ProposerConfirmed[seed] = proposal.SlotConfirmation{
				UserID:         actor.UserID,
				CountAtConfirm: doc.Count(seed),
				GameType:       input.GameType,
				ConfirmedAt:    now,
			}
		}

		if err := s.proposals.Create(ctx, p); err != nil {
			return fmt.Errorf("create proposal: %w", err)
		}
		entry := event.New(now, proposer.ID, event.TypeProposalCreated, event.CategoryProposal, actor.UserID, map[string]any{
			"proposal_id": p.ID,
			"opponent_id": opponent.ID,
			"week":        week.String(),
			"game_type":   p.GameType,
			"slot_count":  len(seedSlots),
		})
		if err := s.events.Append(ctx, entry); err != nil {
			return fmt.Errorf("append proposal created event: %w", err)
		}
		record := notification.Record{
			ID:         notificationID,
			Kind:       notification.KindProposalCreated,
			TeamIDs:    []string{proposer.ID, opponent.ID},
			ProposalID: p.ID,
			Payload: map[string]any{
				"proposer_team": proposer.Name,
				"opponent_team": opponent.Name,
				"week":          week.String(),
				"game_type":     p.GameType,
				"created_by":    s.displayName(ctx, actor.UserID),
			},
			Status:    notification.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.notifications.Create(ctx, record); err != nil {
			return fmt.Errorf("create proposal notification: %w", err)
		}

		created = p
		return nil
	})
	if err != nil {
		return proposal.Proposal{}, err
	}

	s.dispatcher.Enqueue(notificationID)
	return created, nil
}

// ConfirmSlot upserts the caller's side's confirmation for the slot and, when
// the other side already confirmed the same slot, seals the match. The whole
// read-check-write runs in one transaction so two simultaneous confirmations
// cannot both create a match. Re-confirming an already-confirmed slot is a
// refresh, not an error.
func (s *ProposalService) ConfirmSlot(ctx context.Context, actor user.Principal, input ConfirmSlotInput) (ConfirmSlotResult, error) {
	if err := requireActor(actor); err != nil {
		return ConfirmSlotResult{}, err
	}

	confirmSlot, err := slot.Parse(input.SlotID)
	if err != nil {
		return ConfirmSlotResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !proposal.ValidGameType(input.GameType) {
		return ConfirmSlotResult{}, fmt.Errorf("%w: unknown game type %q", ErrInvalidInput, input.GameType)
	}

	peek, ok, err := s.proposals.GetByID(ctx, input.ProposalID)
	if err != nil {
		return ConfirmSlotResult{}, fmt.Errorf("get proposal: %w", err)
	}
	if !ok {
		return ConfirmSlotResult{}, fmt.Errorf("%w: proposal=%s", ErrNotFound, input.ProposalID)
	}

	// Blocked sets are read with plain queries before the transaction; the
	// short race window this opens is accepted (see Transactor).
	blockedProposer, err := blockedSlotSet(ctx, s.matches, peek.ProposerTeamID, peek.Week, "")
	if err != nil {
		return ConfirmSlotResult{}, err
	}
	blockedOpponent, err := blockedSlotSet(ctx, s.matches, peek.OpponentTeamID, peek.Week, "")
	if err != nil {
		return ConfirmSlotResult{}, err
	}

	now := s.now().UTC()
	matchID, err := s.idGen.NewID("mtc")
	if err != nil {
		return ConfirmSlotResult{}, fmt.Errorf("generate match id: %w", err)
	}
	notificationID, err := s.idGen.NewID("ntf")
	if err != nil {
		return ConfirmSlotResult{}, fmt.Errorf("generate notification id: %w", err)
	}

	var result ConfirmSlotResult
	sealedNotification := false
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, ok, err := s.proposals.GetByIDForUpdate(ctx, input.ProposalID)
		if err != nil {
			return fmt.Errorf("get proposal for update: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: proposal=%s", ErrNotFound, input.ProposalID)
		}

		side, callerTeam, err := s.authorizedSide(ctx, p, actor.UserID)
		if err != nil {
			return err
		}

		switch p.Status {
		case proposal.StatusCancelled:
			return fmt.Errorf("%w: proposal was cancelled", ErrFailedPrecondition)
		case proposal.StatusConfirmed:
			// Re-derive "matched" from the freshly-read document: a
			// concurrent confirmation of the same slot already sealed the
			// match, so record this side's entry and report the existing
			// match instead of erroring.
			if p.ConfirmedSlot == nil || *p.ConfirmedSlot != confirmSlot {
				return fmt.Errorf("%w: proposal already matched at %s", ErrFailedPrecondition, confirmedSlotString(p))
			}
			confirmations := p.Confirmations(side)
			if _, exists := confirmations[confirmSlot]; !exists {
				doc, err := s.availability.Read(ctx, callerTeam.ID, p.Week)
				if err != nil {
					return fmt.Errorf("read availability: %w", err)
				}
				confirmations[confirmSlot] = proposal.SlotConfirmation{
					UserID:         actor.UserID,
					CountAtConfirm: doc.Count(confirmSlot),
					GameType:       input.GameType,
					ConfirmedAt:    now,
				}
				p.UpdatedAt = now
				if err := s.proposals.Update(ctx, p); err != nil {
					return fmt.Errorf("update proposal: %w", err)
				}
			}
			existing, ok, err := s.matches.GetByID(ctx, p.ScheduledMatchID)
			if err != nil {
				return fmt.Errorf("get scheduled match: %w", err)
			}
			if ok {
				result = ConfirmSlotResult{Proposal: p, Match: &existing, Sealed: true}
			} else {
				result = ConfirmSlotResult{Proposal: p, Sealed: true}
			}
			return nil
		}

		if _, blocked := blockedProposer[confirmSlot]; blocked {
			return fmt.Errorf("%w: slot %s is blocked by an existing match for %s", ErrFailedPrecondition, confirmSlot, p.ProposerTeamName)
		}
		if _, blocked := blockedOpponent[confirmSlot]; blocked {
			return fmt.Errorf("%w: slot %s is blocked by an existing match for %s", ErrFailedPrecondition, confirmSlot, p.OpponentTeamName)
		}

		doc, err := s.availability.Read(ctx, callerTeam.ID, p.Week)
		if err != nil {
			return fmt.Errorf("read availability: %w", err)
		}
		p.Confirmations(side)[confirmSlot] = proposal.SlotConfirmation{
			UserID:         actor.UserID,
			CountAtConfirm: doc.Count(confirmSlot),
			GameType:       input.GameType,
			ConfirmedAt:    now,
		}
		p.UpdatedAt = now

		entries := []event.Entry{
			event.New(now, callerTeam.ID, event.TypeSlotConfirmed, event.CategoryProposal, actor.UserID, map[string]any{
				"proposal_id": p.ID,
				"slot":        confirmSlot.String(),
				"side":        string(side),
			}),
		}

		otherConfirmation, matched := p.Confirmations(side.Other())[confirmSlot]
		if matched {
			sealed, err := s.sealMatch(ctx, &p, confirmSlot, matchID, now)
			if err != nil {
				return err
			}
			confirmedBy := map[proposal.Side]string{
				side:         actor.UserID,
				side.Other(): otherConfirmation.UserID,
			}
			sealed.ConfirmedByA = confirmedBy[proposal.SideProposer]
			sealed.ConfirmedByB = confirmedBy[proposal.SideOpponent]
			if err := s.matches.Create(ctx, *sealed); err != nil {
				return fmt.Errorf("create scheduled match: %w", err)
			}

			entries = append(entries, event.New(now, p.ProposerTeamID, event.TypeMatchScheduled, event.CategoryMatch, actor.UserID, map[string]any{
				"proposal_id": p.ID,
				"match_id":    sealed.ID,
				"slot":        confirmSlot.String(),
				"week":        p.Week.String(),
			}))
			record := notification.Record{
				ID:         notificationID,
				Kind:       notification.KindMatchScheduled,
				TeamIDs:    []string{p.ProposerTeamID, p.OpponentTeamID},
				ProposalID: p.ID,
				MatchID:    sealed.ID,
				Payload: map[string]any{
					"team_a":    p.ProposerTeamName,
					"team_b":    p.OpponentTeamName,
					"slot":      confirmSlot.String(),
					"week":      p.Week.String(),
					"game_type": p.GameType,
					"date":      sealed.ScheduledDate(),
				},
				Status:    notification.StatusPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.notifications.Create(ctx, record); err != nil {
				return fmt.Errorf("create match notification: %w", err)
			}
			sealedNotification = true
			result = ConfirmSlotResult{Proposal: p, Match: sealed, Sealed: true}
		} else {
			result = ConfirmSlotResult{Proposal: p}
		}

		if err := s.proposals.Update(ctx, p); err != nil {
			return fmt.Errorf("update proposal: %w", err)
		}
		if err := s.events.Append(ctx, entries...); err != nil {
			return fmt.Errorf("append confirmation events: %w", err)
		}
		return nil
	})
	if err != nil {
		return ConfirmSlotResult{}, err
	}

	if sealedNotification {
		s.dispatcher.Enqueue(notificationID)
	}
	return result, nil
}

// sealMatch flips the proposal to confirmed and builds the binding match
// from both sides' rosters at confirmation time.
func (s *ProposalService) sealMatch(ctx context.Context, p *proposal.Proposal, at slot.Slot, matchID string, now time.Time) (*match.Match, error) {
	proposerDoc, err := s.availability.Read(ctx, p.ProposerTeamID, p.Week)
	if err != nil {
		return nil, fmt.Errorf("read proposer availability: %w", err)
	}
	opponentDoc, err := s.availability.Read(ctx, p.OpponentTeamID, p.Week)
	if err != nil {
		return nil, fmt.Errorf("read opponent availability: %w", err)
	}

	m := match.Match{
		ID:           matchID,
		TeamAID:      p.ProposerTeamID,
		TeamBID:      p.OpponentTeamID,
		TeamAName:    p.ProposerTeamName,
		TeamBName:    p.OpponentTeamName,
		TeamATag:     p.ProposerTeamTag,
		TeamBTag:     p.OpponentTeamTag,
		Week:         p.Week,
		Slot:         at,
		ScheduledAt:  p.Week.DateOf(at),
		BlockedSlot:  at,
		BlockedTeams: []string{p.ProposerTeamID, p.OpponentTeamID},
		RosterA:      proposerDoc.Participants(at),
		RosterB:      opponentDoc.Participants(at),
		ProposalID:   p.ID,
		Origin:       match.OriginProposal,
		Status:       match.StatusUpcoming,
		GameType:     p.GameType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	p.Status = proposal.StatusConfirmed
	p.ConfirmedSlot = &at
	p.ScheduledMatchID = m.ID
	p.UpdatedAt = now
	return &m, nil
}

// WithdrawConfirmation removes only the caller's side's entry for the slot.
func (s *ProposalService) WithdrawConfirmation(ctx context.Context, actor user.Principal, proposalID, slotID string) (proposal.Proposal, error) {
	if err := requireActor(actor); err != nil {
		return proposal.Proposal{}, err
	}

	withdrawSlot, err := slot.Parse(slotID)
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var updated proposal.Proposal
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, ok, err := s.proposals.GetByIDForUpdate(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("get proposal for update: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: proposal=%s", ErrNotFound, proposalID)
		}
		if p.Status != proposal.StatusActive {
			return fmt.Errorf("%w: proposal is %s, only active proposals can change", ErrFailedPrecondition, p.Status)
		}

		side, callerTeam, err := s.authorizedSide(ctx, p, actor.UserID)
		if err != nil {
			return err
		}

		confirmations := p.Confirmations(side)
		if _, exists := confirmations[withdrawSlot]; !exists {
			return fmt.Errorf("%w: no confirmation recorded for %s on your side", ErrFailedPrecondition, withdrawSlot)
		}
		delete(confirmations, withdrawSlot)
		now := s.now().UTC()
		p.UpdatedAt = now

		if err := s.proposals.Update(ctx, p); err != nil {
			return fmt.Errorf("update proposal: %w", err)
		}
		entry := event.New(now, callerTeam.ID, event.TypeConfirmationWithdrawn, event.CategoryProposal, actor.UserID, map[string]any{
			"proposal_id": p.ID,
			"slot":        withdrawSlot.String(),
			"side":        string(side),
		})
		if err := s.events.Append(ctx, entry); err != nil {
			return fmt.Errorf("append withdrawal event: %w", err)
		}

		updated = p
		return nil
	})
	if err != nil {
		return proposal.Proposal{}, err
	}
	return updated, nil
}

// Cancel terminates an active proposal. Either side's authorized actor may
// cancel; delivery bots are told to retract prior announcements.
func (s *ProposalService) Cancel(ctx context.Context, actor user.Principal, proposalID string) (proposal.Proposal, error) {
	if err := requireActor(actor); err != nil {
		return proposal.Proposal{}, err
	}

	notificationID, err := s.idGen.NewID("ntf")
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("generate notification id: %w", err)
	}

	var cancelled proposal.Proposal
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, ok, err := s.proposals.GetByIDForUpdate(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("get proposal for update: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: proposal=%s", ErrNotFound, proposalID)
		}
		if p.Status != proposal.StatusActive {
			return fmt.Errorf("%w: proposal is %s, only active proposals can be cancelled", ErrFailedPrecondition, p.Status)
		}

		_, callerTeam, err := s.authorizedSide(ctx, p, actor.UserID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		p.Status = proposal.StatusCancelled
		p.CancelledBy = actor.UserID
		p.CancelledAt = &now
		p.UpdatedAt = now

		if err := s.proposals.Update(ctx, p); err != nil {
			return fmt.Errorf("update proposal: %w", err)
		}
		entry := event.New(now, callerTeam.ID, event.TypeProposalCancelled, event.CategoryProposal, actor.UserID, map[string]any{
			"proposal_id": p.ID,
		})
		if err := s.events.Append(ctx, entry); err != nil {
			return fmt.Errorf("append cancellation event: %w", err)
		}
		record := notification.Record{
			ID:         notificationID,
			Kind:       notification.KindProposalCancelled,
			TeamIDs:    []string{p.ProposerTeamID, p.OpponentTeamID},
			ProposalID: p.ID,
			Payload: map[string]any{
				"proposer_team": p.ProposerTeamName,
				"opponent_team": p.OpponentTeamName,
				"week":          p.Week.String(),
				"cancelled_by":  s.displayName(ctx, actor.UserID),
			},
			Status:    notification.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.notifications.Create(ctx, record); err != nil {
			return fmt.Errorf("create cancellation notification: %w", err)
		}

		cancelled = p
		return nil
	})
	if err != nil {
		return proposal.Proposal{}, err
	}

	s.dispatcher.Enqueue(notificationID)
	return cancelled, nil
}

// UpdateSettings mutates game type and standin flags. A game-type change
// cascades onto every already-confirmed slot entry on both sides, and onto
// the scheduled match when the proposal already sealed one. Switching to
// official force-clears both standin flags.
func (s *ProposalService) UpdateSettings(ctx context.Context, actor user.Principal, input UpdateSettingsInput) (proposal.Proposal, error) {
	if err := requireActor(actor); err != nil {
		return proposal.Proposal{}, err
	}
	if input.GameType == nil && input.Standin == nil {
		return proposal.Proposal{}, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if input.GameType != nil && !proposal.ValidGameType(*input.GameType) {
		return proposal.Proposal{}, fmt.Errorf("%w: unknown game type %q", ErrInvalidInput, *input.GameType)
	}

	var updated proposal.Proposal
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, ok, err := s.proposals.GetByIDForUpdate(ctx, input.ProposalID)
		if err != nil {
			return fmt.Errorf("get proposal for update: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: proposal=%s", ErrNotFound, input.ProposalID)
		}
		if p.Status == proposal.StatusCancelled {
			return fmt.Errorf("%w: proposal was cancelled", ErrFailedPrecondition)
		}

		side, callerTeam, err := s.authorizedSide(ctx, p, actor.UserID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if input.GameType != nil && *input.GameType != p.GameType {
			p.GameType = *input.GameType
			// Confirmed entries mean "confirmed under the current game-type
			// understanding", so the new value flows onto all of them.
			for _, confirmations := range []map[slot.Slot]proposal.SlotConfirmation{p.ProposerConfirmed, p.OpponentConfirmed} {
				for key, confirmation := range confirmations {
					confirmation.GameType = p.GameType
					confirmations[key] = confirmation
				}
			}
			if p.GameType == proposal.GameTypeOfficial {
				p.ProposerStandin = false
				p.OpponentStandin = false
			}
			if p.Status == proposal.StatusConfirmed && p.ScheduledMatchID != "" {
				m, ok, err := s.matches.GetByIDForUpdate(ctx, p.ScheduledMatchID)
				if err != nil {
					return fmt.Errorf("get scheduled match for update: %w", err)
				}
				if ok {
					m.GameType = p.GameType
					m.UpdatedAt = now
					if err := s.matches.Update(ctx, m); err != nil {
						return fmt.Errorf("update scheduled match game type: %w", err)
					}
				}
			}
		}

		if input.Standin != nil {
			if p.GameType != proposal.GameTypePractice {
				return fmt.Errorf("%w: standin is a practice-only flag", ErrFailedPrecondition)
			}
			p.SetStandin(side, *input.Standin)
		}

		p.UpdatedAt = now
		if err := s.proposals.Update(ctx, p); err != nil {
			return fmt.Errorf("update proposal: %w", err)
		}
		entry := event.New(now, callerTeam.ID, event.TypeProposalSettings, event.CategoryProposal, actor.UserID, map[string]any{
			"proposal_id": p.ID,
			"game_type":   p.GameType,
		})
		if err := s.events.Append(ctx, entry); err != nil {
			return fmt.Errorf("append settings event: %w", err)
		}

		updated = p
		return nil
	})
	if err != nil {
		return proposal.Proposal{}, err
	}
	return updated, nil
}

// Get returns one proposal. Any roster member of either team may read it.
func (s *ProposalService) Get(ctx context.Context, actor user.Principal, proposalID string) (proposal.Proposal, error) {
	if err := requireActor(actor); err != nil {
		return proposal.Proposal{}, err
	}

	p, ok, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("get proposal: %w", err)
	}
	if !ok {
		return proposal.Proposal{}, fmt.Errorf("%w: proposal=%s", ErrNotFound, proposalID)
	}
	return p, nil
}

// ListForTeam returns the team's proposals in a week.
func (s *ProposalService) ListForTeam(ctx context.Context, actor user.Principal, teamID, weekID string) ([]proposal.Proposal, error) {
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

	proposals, err := s.proposals.ListByTeamWeek(ctx, teamID, week)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	return proposals, nil
}

// authorizedSide resolves which side of the proposal the actor may act for,
// reading both team documents live so scheduler-right changes apply
// immediately.
func (s *ProposalService) authorizedSide(ctx context.Context, p proposal.Proposal, userID string) (proposal.Side, team.Team, error) {
	proposer, ok, err := s.teams.GetByID(ctx, p.ProposerTeamID)
	if err != nil {
		return "", team.Team{}, fmt.Errorf("get proposer team: %w", err)
	}
	if ok && proposer.IsAuthorized(userID) {
		return proposal.SideProposer, proposer, nil
	}

	opponent, ok, err := s.teams.GetByID(ctx, p.OpponentTeamID)
	if err != nil {
		return "", team.Team{}, fmt.Errorf("get opponent team: %w", err)
	}
	if ok && opponent.IsAuthorized(userID) {
		return proposal.SideOpponent, opponent, nil
	}

	return "", team.Team{}, fmt.Errorf("%w: you may not schedule for either team on this proposal", ErrPermissionDenied)
}

func (s *ProposalService) displayName(ctx context.Context, userID string) string {
	if s.directory == nil {
		return userID
	}
	identity, ok, err := s.directory.Resolve(ctx, userID)
	if err != nil || !ok {
		return userID
	}
	return identity.DisplayName
}

func requireActor(actor user.Principal) error {
	if strings.TrimSpace(actor.UserID) == "" {
		return fmt.Errorf("%w: caller identity is required", ErrUnauthenticated)
	}
	return nil
}

func confirmedSlotString(p proposal.Proposal) string {
	if p.ConfirmedSlot == nil {
		return "unknown"
	}
	return p.ConfirmedSlot.String()
}
