package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ravenfall/scrim-scheduler/internal/domain/event"
	"github.com/ravenfall/scrim-scheduler/internal/domain/match"
	"github.com/ravenfall/scrim-scheduler/internal/domain/proposal"
	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
	"github.com/ravenfall/scrim-scheduler/internal/domain/team"
	"github.com/ravenfall/scrim-scheduler/internal/platform/logging"
	"github.com/ravenfall/scrim-scheduler/internal/usecase"
)

type Handler struct {
	proposalService *usecase.ProposalService
	matchService    *usecase.MatchService
	teamService     *usecase.TeamService
	big4Service     *usecase.Big4Service
	logger          *logging.Logger
	validator       *validator.Validate
}

func NewHandler(
	proposalService *usecase.ProposalService,
	matchService *usecase.MatchService,
	teamService *usecase.TeamService,
	big4Service *usecase.Big4Service,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		proposalService: proposalService,
		matchService:    matchService,
		teamService:     teamService,
		big4Service:     big4Service,
		logger:          logger,
		validator:       validator.New(),
	}
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

type createProposalRequest struct {
	ProposerTeamID string   `json:"proposer_team_id" validate:"required"`
	OpponentTeamID string   `json:"opponent_team_id" validate:"required"`
	Week           string   `json:"week" validate:"required"`
	MinYourTeam    int      `json:"min_your_team" validate:"required,gt=0"`
	MinOpponent    int      `json:"min_opponent" validate:"required,gt=0"`
	GameType       string   `json:"game_type" validate:"required,oneof=official practice"`
	Standin        bool     `json:"standin"`
	Slots          []string `json:"slots" validate:"required,min=1,max=14,dive,required"`
}

type confirmSlotRequest struct {
	SlotID   string `json:"slot_id" validate:"required"`
	GameType string `json:"game_type" validate:"required,oneof=official practice"`
}

type withdrawConfirmationRequest struct {
	SlotID string `json:"slot_id" validate:"required"`
}

type updateProposalSettingsRequest struct {
	GameType *string `json:"game_type" validate:"omitempty,oneof=official practice"`
	Standin  *bool   `json:"standin"`
}

type quickAddMatchRequest struct {
	TeamID         string `json:"team_id" validate:"required"`
	OpponentTeamID string `json:"opponent_team_id" validate:"required"`
	DateTime       string `json:"date_time" validate:"required"`
	GameType       string `json:"game_type" validate:"required,oneof=official practice"`
}

type rescheduleMatchRequest struct {
	Week   string `json:"week" validate:"required"`
	SlotID string `json:"slot_id" validate:"required"`
	TeamID string `json:"team_id"`
}

type setSchedulerRightsRequest struct {
	TargetUserID string `json:"target_user_id" validate:"required"`
	Grant        bool   `json:"grant"`
}

type minFilterDTO struct {
	YourTeam int `json:"yourTeam"`
	Opponent int `json:"opponent"`
}

type slotConfirmationDTO struct {
	UserID         string `json:"userId"`
	CountAtConfirm int    `json:"countAtConfirm"`
	GameType       string `json:"gameType"`
	ConfirmedAt    string `json:"confirmedAt"`
}

type proposalDTO struct {
	ID                string                         `json:"id"`
	ProposerTeamID    string                         `json:"proposerTeamId"`
	OpponentTeamID    string                         `json:"opponentTeamId"`
	ProposerTeamName  string                         `json:"proposerTeamName"`
	OpponentTeamName  string                         `json:"opponentTeamName"`
	ProposerTeamTag   string                         `json:"proposerTeamTag,omitempty"`
	OpponentTeamTag   string                         `json:"opponentTeamTag,omitempty"`
	Week              string                         `json:"week"`
	MinFilter         minFilterDTO                   `json:"minFilter"`
	GameType          string                         `json:"gameType"`
	ProposerStandin   bool                           `json:"proposerStandin"`
	OpponentStandin   bool                           `json:"opponentStandin"`
	ProposerConfirmed map[string]slotConfirmationDTO `json:"proposerConfirmed"`
	OpponentConfirmed map[string]slotConfirmationDTO `json:"opponentConfirmed"`
	Status            string                         `json:"status"`
	ConfirmedSlot     string                         `json:"confirmedSlot,omitempty"`
	ScheduledMatchID  string                         `json:"scheduledMatchId,omitempty"`
	ExpiresAt         string                         `json:"expiresAt"`
	CreatedBy         string                         `json:"createdBy"`
	CreatedAt         string                         `json:"createdAt"`
	UpdatedAt         string                         `json:"updatedAt"`
	CancelledBy       string                         `json:"cancelledBy,omitempty"`
	CancelledAt       string                         `json:"cancelledAt,omitempty"`
}

type confirmSlotResponseDTO struct {
	Proposal proposalDTO `json:"proposal"`
	Match    *matchDTO   `json:"match,omitempty"`
	Sealed   bool        `json:"sealed"`
}

type matchDTO struct {
	ID            string   `json:"id"`
	TeamAID       string   `json:"teamAId"`
	TeamBID       string   `json:"teamBId"`
	TeamAName     string   `json:"teamAName"`
	TeamBName     string   `json:"teamBName"`
	TeamATag      string   `json:"teamATag,omitempty"`
	TeamBTag      string   `json:"teamBTag,omitempty"`
	Week          string   `json:"week"`
	Slot          string   `json:"slot"`
	ScheduledAt   string   `json:"scheduledAt"`
	BlockedSlot   string   `json:"blockedSlot"`
	BlockedTeams  []string `json:"blockedTeams"`
	RosterA       []string `json:"rosterA"`
	RosterB       []string `json:"rosterB"`
	ProposalID    string   `json:"proposalId,omitempty"`
	Origin        string   `json:"origin"`
	Status        string   `json:"status"`
	GameType      string   `json:"gameType"`
	Big4FixtureID string   `json:"big4FixtureId,omitempty"`
	ConfirmedByA  string   `json:"confirmedByA,omitempty"`
	ConfirmedByB  string   `json:"confirmedByB,omitempty"`
	CreatedAt     string   `json:"createdAt"`
	UpdatedAt     string   `json:"updatedAt"`
	CancelledBy   string   `json:"cancelledBy,omitempty"`
	CancelledAt   string   `json:"cancelledAt,omitempty"`
	RescheduledBy string   `json:"rescheduledBy,omitempty"`
	RescheduledAt string   `json:"rescheduledAt,omitempty"`
}

type cancelMatchResponseDTO struct {
	Match    matchDTO     `json:"match"`
	Proposal *proposalDTO `json:"proposal,omitempty"`
}

type teamDTO struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Tag        string   `json:"tag,omitempty"`
	LeaderID   string   `json:"leaderId"`
	Schedulers []string `json:"schedulers"`
	Roster     []string `json:"roster"`
	Status     string   `json:"status"`
}

type blockedSlotsDTO struct {
	TeamID string   `json:"teamId"`
	Week   string   `json:"week"`
	Slots  []string `json:"slots"`
}

type eventDTO struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Category  string         `json:"category"`
	Timestamp string         `json:"timestamp"`
	TeamID    string         `json:"teamId"`
	UserID    string         `json:"userId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

type importReportDTO struct {
	Fetched     int            `json:"fetched"`
	Imported    int            `json:"imported"`
	Skipped     int            `json:"skipped"`
	Failed      int            `json:"failed"`
	MatchIDs    []string       `json:"matchIds"`
	SkipReasons map[string]int `json:"skipReasons,omitempty"`
}

func proposalToDTO(ctx context.Context, v proposal.Proposal) proposalDTO {
	ctx, span := startSpan(ctx, "httpapi.proposalToDTO")
	defer span.End()

	confirmedSlot := ""
	if v.ConfirmedSlot != nil {
		confirmedSlot = v.ConfirmedSlot.String()
	}

	return proposalDTO{
		ID:                v.ID,
		ProposerTeamID:    v.ProposerTeamID,
		OpponentTeamID:    v.OpponentTeamID,
		ProposerTeamName:  v.ProposerTeamName,
		OpponentTeamName:  v.OpponentTeamName,
		ProposerTeamTag:   v.ProposerTeamTag,
		OpponentTeamTag:   v.OpponentTeamTag,
		Week:              v.Week.String(),
		MinFilter:         minFilterDTO{YourTeam: v.MinFilter.YourTeam, Opponent: v.MinFilter.Opponent},
		GameType:          v.GameType,
		ProposerStandin:   v.ProposerStandin,
		OpponentStandin:   v.OpponentStandin,
		ProposerConfirmed: confirmationsToDTO(v.ProposerConfirmed),
		OpponentConfirmed: confirmationsToDTO(v.OpponentConfirmed),
		Status:            v.Status,
		ConfirmedSlot:     confirmedSlot,
		ScheduledMatchID:  v.ScheduledMatchID,
		ExpiresAt:         v.ExpiresAt.UTC().Format(time.RFC3339),
		CreatedBy:         v.CreatedBy,
		CreatedAt:         v.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         v.UpdatedAt.UTC().Format(time.RFC3339),
		CancelledBy:       v.CancelledBy,
		CancelledAt:       formatOptionalTime(v.CancelledAt),
	}
}

func confirmationsToDTO(entries map[slot.Slot]proposal.SlotConfirmation) map[string]slotConfirmationDTO {
	out := make(map[string]slotConfirmationDTO, len(entries))
	for at, entry := range entries {
		out[at.String()] = slotConfirmationDTO{
			UserID:         entry.UserID,
			CountAtConfirm: entry.CountAtConfirm,
			GameType:       entry.GameType,
			ConfirmedAt:    entry.ConfirmedAt.UTC().Format(time.RFC3339),
		}
	}
	return out
}

func matchToDTO(ctx context.Context, v match.Match) matchDTO {
	ctx, span := startSpan(ctx, "httpapi.matchToDTO")
	defer span.End()

	return matchDTO{
		ID:            v.ID,
		TeamAID:       v.TeamAID,
		TeamBID:       v.TeamBID,
		TeamAName:     v.TeamAName,
		TeamBName:     v.TeamBName,
		TeamATag:      v.TeamATag,
		TeamBTag:      v.TeamBTag,
		Week:          v.Week.String(),
		Slot:          v.Slot.String(),
		ScheduledAt:   v.ScheduledAt.UTC().Format(time.RFC3339),
		BlockedSlot:   v.BlockedSlot.String(),
		BlockedTeams:  append([]string(nil), v.BlockedTeams...),
		RosterA:       append([]string(nil), v.RosterA...),
		RosterB:       append([]string(nil), v.RosterB...),
		ProposalID:    v.ProposalID,
		Origin:        v.Origin,
		Status:        v.Status,
		GameType:      v.GameType,
		Big4FixtureID: v.Big4FixtureID,
		ConfirmedByA:  v.ConfirmedByA,
		ConfirmedByB:  v.ConfirmedByB,
		CreatedAt:     v.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     v.UpdatedAt.UTC().Format(time.RFC3339),
		CancelledBy:   v.CancelledBy,
		CancelledAt:   formatOptionalTime(v.CancelledAt),
		RescheduledBy: v.RescheduledBy,
		RescheduledAt: formatOptionalTime(v.RescheduledAt),
	}
}

func teamToDTO(ctx context.Context, v team.Team) teamDTO {
	ctx, span := startSpan(ctx, "httpapi.teamToDTO")
	defer span.End()

	return teamDTO{
		ID:         v.ID,
		Name:       v.Name,
		Tag:        v.Tag,
		LeaderID:   v.LeaderID,
		Schedulers: append([]string(nil), v.Schedulers...),
		Roster:     append([]string(nil), v.Roster...),
		Status:     v.Status,
	}
}

func eventToDTO(ctx context.Context, v event.Entry) eventDTO {
	ctx, span := startSpan(ctx, "httpapi.eventToDTO")
	defer span.End()

	return eventDTO{
		ID:        v.ID,
		Type:      v.Type,
		Category:  v.Category,
		Timestamp: v.Timestamp.UTC().Format(time.RFC3339),
		TeamID:    v.TeamID,
		UserID:    v.UserID,
		Details:   v.Details,
	}
}

func importReportToDTO(ctx context.Context, v usecase.ImportReport) importReportDTO {
	ctx, span := startSpan(ctx, "httpapi.importReportToDTO")
	defer span.End()

	matchIDs := v.MatchIDs
	if matchIDs == nil {
		matchIDs = []string{}
	}

	return importReportDTO{
		Fetched:     v.Fetched,
		Imported:    v.Imported,
		Skipped:     v.Skipped,
		Failed:      v.Failed,
		MatchIDs:    matchIDs,
		SkipReasons: v.SkipReason,
	}
}

func formatOptionalTime(v *time.Time) string {
	if v == nil || v.IsZero() {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
