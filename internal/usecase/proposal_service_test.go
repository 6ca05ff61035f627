package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ravenfall/scrim-scheduler/internal/domain/match"
	"github.com/ravenfall/scrim-scheduler/internal/domain/notification"
	"github.com/ravenfall/scrim-scheduler/internal/domain/proposal"
	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
	"github.com/ravenfall/scrim-scheduler/internal/domain/team"
	"github.com/ravenfall/scrim-scheduler/internal/domain/user"
)

func TestCreateProposalSeedsConfirmations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.proposals.Create(ctx, alphaSched, validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if created.Status != proposal.StatusActive {
		t.Fatalf("status = %s, want active", created.Status)
	}
	if got := len(created.ProposerConfirmed); got != 2 {
		t.Fatalf("proposer confirmations = %d, want 2", got)
	}
	if got := len(created.OpponentConfirmed); got != 0 {
		t.Fatalf("opponent confirmations = %d, want 0", got)
	}

	entry, ok := created.ProposerConfirmed[slot.MustParse("thu_2000")]
	if !ok {
		t.Fatal("thu_2000 not seeded")
	}
	if entry.CountAtConfirm != 4 {
		t.Fatalf("thu_2000 headcount snapshot = %d, want 4", entry.CountAtConfirm)
	}
	if entry.UserID != alphaSched.UserID {
		t.Fatalf("confirmed by %s, want %s", entry.UserID, alphaSched.UserID)
	}
	if got := created.ProposerConfirmed[slot.MustParse("thu_2030")].CountAtConfirm; got != 3 {
		t.Fatalf("thu_2030 headcount snapshot = %d, want 3", got)
	}

	pending, err := f.notifRepo.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].Kind != notification.KindProposalCreated {
		t.Fatalf("pending notifications = %+v, want one proposal_created", pending)
	}
}

func TestCreateProposalValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateProposalInput)
		actor  string
		want   error
	}{
		{"self play", func(in *CreateProposalInput) { in.OpponentTeamID = in.ProposerTeamID }, alphaSched.UserID, ErrInvalidInput},
		{"past week", func(in *CreateProposalInput) { in.Week = "2026-06" }, alphaSched.UserID, ErrInvalidInput},
		{"too far ahead", func(in *CreateProposalInput) { in.Week = "2026-12" }, alphaSched.UserID, ErrInvalidInput},
		{"headcount too low", func(in *CreateProposalInput) { in.MinFilter.YourTeam = 2 }, alphaSched.UserID, ErrInvalidInput},
		{"headcount too high", func(in *CreateProposalInput) { in.MinFilter.Opponent = 5 }, alphaSched.UserID, ErrInvalidInput},
		{"bad game type", func(in *CreateProposalInput) { in.GameType = "ranked" }, alphaSched.UserID, ErrInvalidInput},
		{"standin for official", func(in *CreateProposalInput) { in.GameType = "official"; in.Standin = true }, alphaSched.UserID, ErrFailedPrecondition},
		{"no slots", func(in *CreateProposalInput) { in.Slots = nil }, alphaSched.UserID, ErrInvalidInput},
		{"too many slots", func(in *CreateProposalInput) {
			in.Slots = []string{
				"mon_1000", "mon_1030", "mon_1100", "mon_1130", "mon_1200",
				"tue_1000", "tue_1030", "tue_1100", "tue_1130", "tue_1200",
				"wed_1000", "wed_1030", "wed_1100", "wed_1130", "wed_1200",
			}
		}, alphaSched.UserID, ErrInvalidInput},
		{"bad slot id", func(in *CreateProposalInput) { in.Slots = []string{"thu_2015"} }, alphaSched.UserID, ErrInvalidInput},
		{"unknown team", func(in *CreateProposalInput) { in.OpponentTeamID = "team-ghost" }, alphaSched.UserID, ErrNotFound},
		{"roster member without rights", nil, alphaPlayer.UserID, ErrPermissionDenied},
		{"complete outsider", nil, outsider.UserID, ErrPermissionDenied},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validCreateInput()
			if tc.mutate != nil {
				tc.mutate(&in)
			}
			_, err := f.proposals.Create(ctx, userPrincipal(tc.actor), in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreateProposalRejectsDuplicateActive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.proposals.Create(ctx, alphaSched, validCreateInput()); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	// Same pair, opposite direction, same week.
	in := validCreateInput()
	in.ProposerTeamID, in.OpponentTeamID = in.OpponentTeamID, in.ProposerTeamID
	if _, err := f.proposals.Create(ctx, bravoSched, in); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}

	// Same pair, next week, is fine.
	in = validCreateInput()
	in.Week = "2026-08"
	if _, err := f.proposals.Create(ctx, alphaSched, in); err != nil {
		t.Fatalf("next-week Create: %v", err)
	}
}

func TestCreateProposalRejectsInactiveOpponent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.PutTeam(team.Team{
		ID:       "team-idle",
		Name:     "Idle Crew",
		LeaderID: "lead-idle",
		Status:   team.StatusInactive,
	})

	in := validCreateInput()
	in.OpponentTeamID = "team-idle"
	if _, err := f.proposals.Create(ctx, alphaSched, in); !errors.Is(err, ErrFailedPrecondition) {
		t.Fatalf("err = %v, want ErrFailedPrecondition", err)
	}
}

func TestConfirmSlotSealsMatchOnAgreement(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.proposals.Create(ctx, alphaSched, validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := f.proposals.ConfirmSlot(ctx, bravoSched, ConfirmSlotInput{
		ProposalID: created.ID,
		SlotID:     "thu_2000",
		GameType:   "practice",
	})
	if err != nil {
		t.Fatalf("ConfirmSlot: %v", err)
	}
	if !result.Sealed || result.Match == nil {
		t.Fatalf("result = %+v, want sealed with match", result)
	}

	p := result.Proposal
	if p.Status != proposal.StatusConfirmed {
		t.Fatalf("proposal status = %s, want confirmed", p.Status)
	}
	if p.ConfirmedSlot == nil || p.ConfirmedSlot.String() != "thu_2000" {
		t.Fatalf("confirmed slot = %v, want thu_2000", p.ConfirmedSlot)
	}
	if p.ScheduledMatchID != result.Match.ID {
		t.Fatalf("scheduled match id = %s, want %s", p.ScheduledMatchID, result.Match.ID)
	}

	m := *result.Match
	if m.Origin != match.OriginProposal || m.Status != match.StatusUpcoming {
		t.Fatalf("match origin/status = %s/%s", m.Origin, m.Status)
	}
	if m.Slot.String() != "thu_2000" || m.Week.String() != "2026-07" {
		t.Fatalf("match slot/week = %s/%s", m.Slot, m.Week)
	}
	if m.ScheduledAt != time.Date(2026, 2, 12, 20, 0, 0, 0, time.UTC) {
		t.Fatalf("scheduled at = %s, want 2026-02-12T20:00Z", m.ScheduledAt)
	}
	if len(m.RosterA) != 4 || len(m.RosterB) != 3 {
		t.Fatalf("rosters = %d/%d, want 4/3", len(m.RosterA), len(m.RosterB))
	}
	if m.ConfirmedByA != alphaSched.UserID || m.ConfirmedByB != bravoSched.UserID {
		t.Fatalf("confirmed by = %s/%s", m.ConfirmedByA, m.ConfirmedByB)
	}

	// The sealed slot and its neighbors are now blocked for both teams.
	blocked, err := f.matches.BlockedSlots(ctx, alphaSched, "team-alpha", "2026-07")
	if err != nil {
		t.Fatalf("BlockedSlots: %v", err)
	}
	want := []string{"thu_1930", "thu_2000", "thu_2030"}
	if len(blocked) != len(want) {
		t.Fatalf("blocked = %v, want %v", blocked, want)
	}
	for i, s := range blocked {
		if s.String() != want[i] {
			t.Fatalf("blocked[%d] = %s, want %s", i, s, want[i])
		}
	}
}

func TestConfirmSlotWithoutAgreementStaysActive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.proposals.Create(ctx, alphaSched, validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Bravo confirms a slot alpha never offered: recorded, no seal.
	result, err := f.proposals.ConfirmSlot(ctx, bravoSched, ConfirmSlotInput{
		ProposalID: created.ID,
		SlotID:     "fri_2200",
		GameType:   "practice",
	})
	if err != nil {
		t.Fatalf("ConfirmSlot: %v", err)
	}
	if result.Sealed || result.Match != nil {
		t.Fatalf("result = %+v, want unsealed", result)
	}
	if result.Proposal.Status != proposal.StatusActive {
		t.Fatalf("status = %s, want active", result.Proposal.Status)
	}
	if got := result.Proposal.OpponentConfirmed[slot.MustParse("fri_2200")].CountAtConfirm; got != 4 {
		t.Fatalf("bravo headcount snapshot = %d, want 4", got)
	}
}

func TestConfirmSlotBlockedByExistingMatchBuffer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	seedUpcomingMatch(f, "mtc-existing", "team-alpha", "team-charlie", "2026-07", "fri_2100")

	in := validCreateInput()
	in.Slots = []string{"thu_2000"}
	created, err := f.proposals.Create(ctx, alphaSched, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// fri_2130 sits in the one-slot buffer of the fri_2100 match.
	_, err = f.proposals.ConfirmSlot(ctx, bravoSched, ConfirmSlotInput{
		ProposalID: created.ID,
		SlotID:     "fri_2130",
		GameType:   "practice",
	})
	if !errors.Is(err, ErrFailedPrecondition) {
		t.Fatalf("buffered slot err = %v, want ErrFailedPrecondition", err)
	}

	// fri_2200 is one slot further out and free.
	if _, err := f.proposals.ConfirmSlot(ctx, bravoSched, ConfirmSlotInput{
		ProposalID: created.ID,
		SlotID:     "fri_2200",
		GameType:   "practice",
	}); err != nil {
		t.Fatalf("free slot err = %v", err)
	}
}

func TestConfirmSlotOnCancelledProposal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.proposals.Create(ctx, alphaSched, validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.proposals.Cancel(ctx, alphaSched, created.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	_, err = f.proposals.ConfirmSlot(ctx, bravoSched, ConfirmSlotInput{
		ProposalID: created.ID,
		SlotID:     "thu_2000",
		GameType:   "practice",
	})
	if !errors.Is(err, ErrFailedPrecondition) {
		t.Fatalf("err = %v, want ErrFailedPrecondition", err)
	}
}

func TestConfirmSlotOnSealedProposal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.proposals.Create(ctx, alphaSched, validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sealed, err := f.proposals.ConfirmSlot(ctx, bravoSched, ConfirmSlotInput{
		ProposalID: created.ID, SlotID: "thu_2000", GameType: "practice",
	})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	// Same slot again: reported as sealed with the existing match, not an
	// error and not a second match.
	again, err := f.proposals.ConfirmSlot(ctx, bravoLeader, ConfirmSlotInput{
		ProposalID: created.ID, SlotID: "thu_2000", GameType: "practice",
	})
	if err != nil {
		t.Fatalf("re-confirm: %v", err)
	}
	if !again.Sealed || again.Match == nil || again.Match.ID != sealed.Match.ID {
		t.Fatalf("re-confirm = %+v, want existing match %s", again, sealed.Match.ID)
	}

	// A different slot on a sealed proposal is refused.
	_, err = f.proposals.ConfirmSlot(ctx, bravoSched, ConfirmSlotInput{
		ProposalID: created.ID, SlotID: "thu_2030", GameType: "practice",
	})
	if !errors.Is(err, ErrFailedPrecondition) {
		t.Fatalf("err = %v, want ErrFailedPrecondition", err)
	}
}

func TestConcurrentConfirmCreatesOneMatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.proposals.Create(ctx, alphaSched, validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Two bravo schedulers race to confirm the slot alpha already seeded.
	// Exactly one match may come out of it; both callers see it as sealed.
	var wg sync.WaitGroup
	results := make([]ConfirmSlotResult, 2)
	errs := make([]error, 2)
	for i, actor := range []user.Principal{bravoSched, bravoLeader} {
		wg.Add(1)
		go func(i int, actor user.Principal) {
			defer wg.Done()
			results[i], errs[i] = f.proposals.ConfirmSlot(ctx, actor, ConfirmSlotInput{
				ProposalID: created.ID, SlotID: "thu_2000", GameType: "practice",
			})
		}(i, actor)
	}
	wg.Wait()

	matchIDs := make(map[string]struct{})
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("confirm %d: %v", i, errs[i])
		}
		if !results[i].Sealed || results[i].Match == nil {
			t.Fatalf("confirm %d = %+v, want sealed", i, results[i])
		}
		matchIDs[results[i].Match.ID] = struct{}{}
	}
	if len(matchIDs) != 1 {
		t.Fatalf("distinct match ids = %d, want 1", len(matchIDs))
	}

	upcoming, err := f.matches.ListUpcoming(ctx, alphaSched, "team-alpha", "2026-07")
	if err != nil {
		t.Fatalf("ListUpcoming: %v", err)
	}
	if len(upcoming) != 1 {
		t.Fatalf("upcoming matches = %d, want exactly 1", len(upcoming))
	}
}

func TestWithdrawConfirmation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.proposals.Create(ctx, alphaSched, validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := f.proposals.WithdrawConfirmation(ctx, alphaLeader, created.ID, "thu_2030")
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if _, still := updated.ProposerConfirmed[slot.MustParse("thu_2030")]; still {
		t.Fatal("thu_2030 still confirmed after withdrawal")
	}
	if _, kept := updated.ProposerConfirmed[slot.MustParse("thu_2000")]; !kept {
		t.Fatal("thu_2000 should have survived the withdrawal")
	}

	// Withdrawing a slot the side never confirmed is refused.
	_, err = f.proposals.WithdrawConfirmation(ctx, bravoSched, created.ID, "thu_2000")
	if !errors.Is(err, ErrFailedPrecondition) {
		t.Fatalf("err = %v, want ErrFailedPrecondition", err)
	}
}

func TestWithdrawOnSealedProposal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.proposals.Create(ctx, alphaSched, validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.proposals.ConfirmSlot(ctx, bravoSched, ConfirmSlotInput{
		ProposalID: created.ID, SlotID: "thu_2000", GameType: "practice",
	}); err != nil {
		t.Fatalf("seal: %v", err)
	}

	_, err = f.proposals.WithdrawConfirmation(ctx, alphaSched, created.ID, "thu_2000")
	if !errors.Is(err, ErrFailedPrecondition) {
		t.Fatalf("err = %v, want ErrFailedPrecondition", err)
	}
}

func TestCancelProposal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.proposals.Create(ctx, alphaSched, validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The opponent side may cancel too.
	cancelled, err := f.proposals.Cancel(ctx, bravoLeader, created.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != proposal.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
	if cancelled.CancelledBy != bravoLeader.UserID || cancelled.CancelledAt == nil {
		t.Fatalf("cancellation audit = %s/%v", cancelled.CancelledBy, cancelled.CancelledAt)
	}

	if _, err := f.proposals.Cancel(ctx, alphaSched, created.ID); !errors.Is(err, ErrFailedPrecondition) {
		t.Fatalf("double cancel err = %v, want ErrFailedPrecondition", err)
	}

	pending, err := f.notifRepo.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	var kinds []string
	for _, record := range pending {
		kinds = append(kinds, record.Kind)
	}
	if len(kinds) != 2 || kinds[1] != notification.KindProposalCancelled {
		t.Fatalf("pending kinds = %v, want [proposal_created proposal_cancelled]", kinds)
	}
}

func TestUpdateSettingsGameTypeCascades(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	in := validCreateInput()
	in.Standin = true
	created, err := f.proposals.Create(ctx, alphaSched, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sealed, err := f.proposals.ConfirmSlot(ctx, bravoSched, ConfirmSlotInput{
		ProposalID: created.ID, SlotID: "thu_2000", GameType: "practice",
	})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	official := "official"
	updated, err := f.proposals.UpdateSettings(ctx, alphaSched, UpdateSettingsInput{
		ProposalID: created.ID,
		GameType:   &official,
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if updated.GameType != "official" {
		t.Fatalf("game type = %s, want official", updated.GameType)
	}
	if updated.ProposerStandin || updated.OpponentStandin {
		t.Fatal("standin flags should clear when switching to official")
	}
	for s, confirmation := range updated.ProposerConfirmed {
		if confirmation.GameType != "official" {
			t.Fatalf("proposer entry %s game type = %s, want official", s, confirmation.GameType)
		}
	}
	for s, confirmation := range updated.OpponentConfirmed {
		if confirmation.GameType != "official" {
			t.Fatalf("opponent entry %s game type = %s, want official", s, confirmation.GameType)
		}
	}

	m, err := f.matches.Get(ctx, alphaSched, sealed.Match.ID)
	if err != nil {
		t.Fatalf("Get match: %v", err)
	}
	if m.GameType != "official" {
		t.Fatalf("scheduled match game type = %s, want official", m.GameType)
	}
}

func TestUpdateSettingsStandin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.proposals.Create(ctx, alphaSched, validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	flag := true
	updated, err := f.proposals.UpdateSettings(ctx, bravoSched, UpdateSettingsInput{
		ProposalID: created.ID,
		Standin:    &flag,
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if !updated.OpponentStandin || updated.ProposerStandin {
		t.Fatalf("standin = proposer:%v opponent:%v, want only opponent", updated.ProposerStandin, updated.OpponentStandin)
	}

	// Standin cannot be set while the proposal is official.
	official := "official"
	if _, err := f.proposals.UpdateSettings(ctx, alphaSched, UpdateSettingsInput{
		ProposalID: created.ID,
		GameType:   &official,
	}); err != nil {
		t.Fatalf("switch to official: %v", err)
	}
	_, err = f.proposals.UpdateSettings(ctx, bravoSched, UpdateSettingsInput{
		ProposalID: created.ID,
		Standin:    &flag,
	})
	if !errors.Is(err, ErrFailedPrecondition) {
		t.Fatalf("err = %v, want ErrFailedPrecondition", err)
	}

	// Empty update is rejected outright.
	_, err = f.proposals.UpdateSettings(ctx, alphaSched, UpdateSettingsInput{ProposalID: created.ID})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestListForTeam(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.proposals.Create(ctx, alphaSched, validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	listed, err := f.proposals.ListForTeam(ctx, bravoSched, "team-bravo", "2026-07")
	if err != nil {
		t.Fatalf("ListForTeam: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("listed = %+v, want the created proposal", listed)
	}

	empty, err := f.proposals.ListForTeam(ctx, bravoSched, "team-bravo", "2026-08")
	if err != nil {
		t.Fatalf("ListForTeam next week: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("next week listed = %d, want 0", len(empty))
	}
}
