package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/ravenfall/scrim-scheduler/internal/domain/match"
	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
)

// blockedSlotSet collects every slot unavailable to the team in the week:
// each upcoming match's own slot plus its immediate predecessor and
// successor. The one-slot buffer keeps matches from being scheduled
// back-to-back. Computed live from the current upcoming matches so it never
// needs invalidation.
func blockedSlotSet(ctx context.Context, repo match.Repository, teamID string, week slot.Week, excludeMatchID string) (map[slot.Slot]struct{}, error) {
	matches, err := repo.ListUpcomingByTeamWeek(ctx, teamID, week, excludeMatchID)
	if err != nil {
		return nil, fmt.Errorf("list upcoming matches team=%s week=%s: %w", teamID, week, err)
	}

	blocked := make(map[slot.Slot]struct{}, len(matches)*3)
	for _, m := range matches {
		blocked[m.BlockedSlot] = struct{}{}
		if prev, ok := m.BlockedSlot.Prev(); ok {
			blocked[prev] = struct{}{}
		}
		if next, ok := m.BlockedSlot.Next(); ok {
			blocked[next] = struct{}{}
		}
	}

	return blocked, nil
}

func sortedSlots(set map[slot.Slot]struct{}) []slot.Slot {
	out := make([]slot.Slot, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
