package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/ravenfall/scrim-scheduler/internal/domain/proposal"
	"github.com/ravenfall/scrim-scheduler/internal/usecase"
)

// big4JobActor is the synthetic actor id recorded on audit events written by
// the internal import job.
const big4JobActor = "system:big4-import"

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateProposal")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	var req createProposalRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	created, err := h.proposalService.Create(ctx, principal, usecase.CreateProposalInput{
		ProposerTeamID: req.ProposerTeamID,
		OpponentTeamID: req.OpponentTeamID,
		Week:           req.Week,
		MinFilter:      proposal.MinFilter{YourTeam: req.MinYourTeam, Opponent: req.MinOpponent},
		GameType:       req.GameType,
		Standin:        req.Standin,
		Slots:          req.Slots,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "create proposal failed", "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, proposalToDTO(ctx, created))
}

func (h *Handler) GetProposal(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetProposal")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	proposalID := strings.TrimSpace(r.PathValue("proposalID"))
	item, err := h.proposalService.Get(ctx, principal, proposalID)
	if err != nil {
		h.logger.WarnContext(ctx, "get proposal failed", "proposal_id", proposalID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, proposalToDTO(ctx, item))
}

func (h *Handler) ConfirmSlot(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ConfirmSlot")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	proposalID := strings.TrimSpace(r.PathValue("proposalID"))
	var req confirmSlotRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.proposalService.ConfirmSlot(ctx, principal, usecase.ConfirmSlotInput{
		ProposalID: proposalID,
		SlotID:     req.SlotID,
		GameType:   req.GameType,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "confirm slot failed",
			"proposal_id", proposalID, "slot_id", req.SlotID, "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	resp := confirmSlotResponseDTO{
		Proposal: proposalToDTO(ctx, result.Proposal),
		Sealed:   result.Sealed,
	}
	if result.Match != nil {
		m := matchToDTO(ctx, *result.Match)
		resp.Match = &m
	}
	writeSuccess(ctx, w, http.StatusOK, resp)
}

func (h *Handler) WithdrawConfirmation(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.WithdrawConfirmation")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	proposalID := strings.TrimSpace(r.PathValue("proposalID"))
	var req withdrawConfirmationRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	item, err := h.proposalService.WithdrawConfirmation(ctx, principal, proposalID, req.SlotID)
	if err != nil {
		h.logger.WarnContext(ctx, "withdraw confirmation failed",
			"proposal_id", proposalID, "slot_id", req.SlotID, "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, proposalToDTO(ctx, item))
}

func (h *Handler) CancelProposal(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CancelProposal")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	proposalID := strings.TrimSpace(r.PathValue("proposalID"))
	item, err := h.proposalService.Cancel(ctx, principal, proposalID)
	if err != nil {
		h.logger.WarnContext(ctx, "cancel proposal failed",
			"proposal_id", proposalID, "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, proposalToDTO(ctx, item))
}

func (h *Handler) UpdateProposalSettings(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UpdateProposalSettings")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	proposalID := strings.TrimSpace(r.PathValue("proposalID"))
	var req updateProposalSettingsRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	item, err := h.proposalService.UpdateSettings(ctx, principal, usecase.UpdateSettingsInput{
		ProposalID: proposalID,
		GameType:   req.GameType,
		Standin:    req.Standin,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "update proposal settings failed",
			"proposal_id", proposalID, "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, proposalToDTO(ctx, item))
}

func (h *Handler) ListTeamProposals(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListTeamProposals")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	teamID := strings.TrimSpace(r.PathValue("teamID"))
	weekID := strings.TrimSpace(r.URL.Query().Get("week"))
	items, err := h.proposalService.ListForTeam(ctx, principal, teamID, weekID)
	if err != nil {
		h.logger.WarnContext(ctx, "list proposals failed", "team_id", teamID, "week", weekID, "error", err)
		writeError(ctx, w, err)
		return
	}

	out := make([]proposalDTO, 0, len(items))
	for _, item := range items {
		out = append(out, proposalToDTO(ctx, item))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) QuickAddMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.QuickAddMatch")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	var req quickAddMatchRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	when, err := time.Parse(time.RFC3339, req.DateTime)
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: date_time must be RFC3339: %v", usecase.ErrInvalidInput, err))
		return
	}

	created, err := h.matchService.QuickAdd(ctx, principal, usecase.QuickAddInput{
		TeamID:         req.TeamID,
		OpponentTeamID: req.OpponentTeamID,
		DateTime:       when,
		GameType:       req.GameType,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "quick add failed",
			"team_id", req.TeamID, "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, matchToDTO(ctx, created))
}

func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMatch")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	matchID := strings.TrimSpace(r.PathValue("matchID"))
	item, err := h.matchService.Get(ctx, principal, matchID)
	if err != nil {
		h.logger.WarnContext(ctx, "get match failed", "match_id", matchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, matchToDTO(ctx, item))
}

func (h *Handler) CancelMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CancelMatch")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	matchID := strings.TrimSpace(r.PathValue("matchID"))
	result, err := h.matchService.Cancel(ctx, principal, matchID)
	if err != nil {
		h.logger.WarnContext(ctx, "cancel match failed",
			"match_id", matchID, "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	resp := cancelMatchResponseDTO{Match: matchToDTO(ctx, result.Match)}
	if result.Proposal != nil {
		p := proposalToDTO(ctx, *result.Proposal)
		resp.Proposal = &p
	}
	writeSuccess(ctx, w, http.StatusOK, resp)
}

func (h *Handler) RescheduleMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RescheduleMatch")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	matchID := strings.TrimSpace(r.PathValue("matchID"))
	var req rescheduleMatchRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	item, err := h.matchService.Reschedule(ctx, principal, usecase.RescheduleInput{
		MatchID: matchID,
		Week:    req.Week,
		SlotID:  req.SlotID,
		TeamID:  req.TeamID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "reschedule match failed",
			"match_id", matchID, "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, matchToDTO(ctx, item))
}

func (h *Handler) ListTeamMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListTeamMatches")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	teamID := strings.TrimSpace(r.PathValue("teamID"))
	weekID := strings.TrimSpace(r.URL.Query().Get("week"))
	items, err := h.matchService.ListUpcoming(ctx, principal, teamID, weekID)
	if err != nil {
		h.logger.WarnContext(ctx, "list matches failed", "team_id", teamID, "week", weekID, "error", err)
		writeError(ctx, w, err)
		return
	}

	out := make([]matchDTO, 0, len(items))
	for _, item := range items {
		out = append(out, matchToDTO(ctx, item))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) ListBlockedSlots(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListBlockedSlots")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	teamID := strings.TrimSpace(r.PathValue("teamID"))
	weekID := strings.TrimSpace(r.URL.Query().Get("week"))
	slots, err := h.matchService.BlockedSlots(ctx, principal, teamID, weekID)
	if err != nil {
		h.logger.WarnContext(ctx, "list blocked slots failed", "team_id", teamID, "week", weekID, "error", err)
		writeError(ctx, w, err)
		return
	}

	out := make([]string, 0, len(slots))
	for _, at := range slots {
		out = append(out, at.String())
	}
	writeSuccess(ctx, w, http.StatusOK, blockedSlotsDTO{TeamID: teamID, Week: weekID, Slots: out})
}

func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetTeam")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	teamID := strings.TrimSpace(r.PathValue("teamID"))
	item, err := h.teamService.Get(ctx, principal, teamID)
	if err != nil {
		h.logger.WarnContext(ctx, "get team failed", "team_id", teamID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, teamToDTO(ctx, item))
}

func (h *Handler) SetSchedulerRights(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SetSchedulerRights")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	teamID := strings.TrimSpace(r.PathValue("teamID"))
	var req setSchedulerRightsRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	item, err := h.teamService.SetSchedulerRights(ctx, principal, teamID, req.TargetUserID, req.Grant)
	if err != nil {
		h.logger.WarnContext(ctx, "set scheduler rights failed",
			"team_id", teamID, "target_user_id", req.TargetUserID, "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, teamToDTO(ctx, item))
}

func (h *Handler) ListTeamEvents(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListTeamEvents")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthenticated))
		return
	}

	teamID := strings.TrimSpace(r.PathValue("teamID"))
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(ctx, w, fmt.Errorf("%w: limit must be a non-negative integer", usecase.ErrInvalidInput))
			return
		}
		limit = parsed
	}

	items, err := h.teamService.Events(ctx, principal, teamID, limit)
	if err != nil {
		h.logger.WarnContext(ctx, "list team events failed", "team_id", teamID, "error", err)
		writeError(ctx, w, err)
		return
	}

	out := make([]eventDTO, 0, len(items))
	for _, item := range items {
		out = append(out, eventToDTO(ctx, item))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) RunBig4ImportJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunBig4ImportJob")
	defer span.End()

	report, err := h.big4Service.Import(ctx, big4JobActor)
	if err != nil {
		h.logger.ErrorContext(ctx, "big4 import failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	h.logger.InfoContext(ctx, "big4 import finished",
		"fetched", report.Fetched, "imported", report.Imported,
		"skipped", report.Skipped, "failed", report.Failed)
	writeSuccess(ctx, w, http.StatusOK, importReportToDTO(ctx, report))
}
