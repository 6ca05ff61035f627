package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ravenfall/scrim-scheduler/internal/domain/availability"
	"github.com/ravenfall/scrim-scheduler/internal/domain/event"
	"github.com/ravenfall/scrim-scheduler/internal/domain/match"
	"github.com/ravenfall/scrim-scheduler/internal/domain/notification"
	"github.com/ravenfall/scrim-scheduler/internal/domain/proposal"
	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
	"github.com/ravenfall/scrim-scheduler/internal/domain/team"
)

type TeamRepository struct{ store *Store }

func NewTeamRepository(store *Store) *TeamRepository { return &TeamRepository{store: store} }

func (r *TeamRepository) GetByID(_ context.Context, teamID string) (team.Team, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	t, ok := r.store.teams[teamID]
	if !ok {
		return team.Team{}, false, nil
	}
	return cloneTeam(t), true, nil
}

func (r *TeamRepository) FindByName(_ context.Context, name string) (team.Team, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, t := range r.store.teams {
		if t.Name == name {
			return cloneTeam(t), true, nil
		}
	}
	return team.Team{}, false, nil
}

func (r *TeamRepository) SetSchedulers(_ context.Context, teamID string, schedulers []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.teams[teamID]
	if !ok {
		return fmt.Errorf("team %s does not exist", teamID)
	}
	t.Schedulers = append([]string(nil), schedulers...)
	r.store.teams[teamID] = t
	return nil
}

type ProposalRepository struct{ store *Store }

func NewProposalRepository(store *Store) *ProposalRepository {
	return &ProposalRepository{store: store}
}

func (r *ProposalRepository) Create(_ context.Context, p proposal.Proposal) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.proposals[p.ID]; exists {
		return fmt.Errorf("proposal %s already exists", p.ID)
	}
	p.Version = 1
	r.store.proposals[p.ID] = cloneProposal(p)
	return nil
}

func (r *ProposalRepository) GetByID(_ context.Context, proposalID string) (proposal.Proposal, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.proposals[proposalID]
	if !ok {
		return proposal.Proposal{}, false, nil
	}
	return cloneProposal(p), true, nil
}

// GetByIDForUpdate is a plain read here; exclusivity comes from the
// store-wide transaction lock.
func (r *ProposalRepository) GetByIDForUpdate(ctx context.Context, proposalID string) (proposal.Proposal, bool, error) {
	return r.GetByID(ctx, proposalID)
}

func (r *ProposalRepository) Update(_ context.Context, p proposal.Proposal) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.proposals[p.ID]
	if !ok {
		return fmt.Errorf("proposal %s does not exist", p.ID)
	}
	p.Version = current.Version + 1
	r.store.proposals[p.ID] = cloneProposal(p)
	return nil
}

func (r *ProposalRepository) FindActiveBetween(_ context.Context, teamAID, teamBID string, week slot.Week) (proposal.Proposal, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, p := range r.store.proposals {
		if p.Status != proposal.StatusActive || p.Week != week {
			continue
		}
		samePair := (p.ProposerTeamID == teamAID && p.OpponentTeamID == teamBID) ||
			(p.ProposerTeamID == teamBID && p.OpponentTeamID == teamAID)
		if samePair {
			return cloneProposal(p), true, nil
		}
	}
	return proposal.Proposal{}, false, nil
}

func (r *ProposalRepository) ListByTeamWeek(_ context.Context, teamID string, week slot.Week) ([]proposal.Proposal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []proposal.Proposal
	for _, p := range r.store.proposals {
		if p.Week != week {
			continue
		}
		if p.ProposerTeamID == teamID || p.OpponentTeamID == teamID {
			out = append(out, cloneProposal(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type MatchRepository struct{ store *Store }

func NewMatchRepository(store *Store) *MatchRepository { return &MatchRepository{store: store} }

func (r *MatchRepository) Create(_ context.Context, m match.Match) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.matches[m.ID]; exists {
		return fmt.Errorf("match %s already exists", m.ID)
	}
	m.Version = 1
	r.store.matches[m.ID] = cloneMatch(m)
	return nil
}

func (r *MatchRepository) GetByID(_ context.Context, matchID string) (match.Match, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	m, ok := r.store.matches[matchID]
	if !ok {
		return match.Match{}, false, nil
	}
	return cloneMatch(m), true, nil
}

func (r *MatchRepository) GetByIDForUpdate(ctx context.Context, matchID string) (match.Match, bool, error) {
	return r.GetByID(ctx, matchID)
}

func (r *MatchRepository) Update(_ context.Context, m match.Match) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.matches[m.ID]
	if !ok {
		return fmt.Errorf("match %s does not exist", m.ID)
	}
	m.Version = current.Version + 1
	r.store.matches[m.ID] = cloneMatch(m)
	return nil
}

func (r *MatchRepository) ListUpcomingByTeamWeek(_ context.Context, teamID string, week slot.Week, excludeMatchID string) ([]match.Match, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []match.Match
	for _, m := range r.store.matches {
		if m.Status != match.StatusUpcoming || m.Week != week || m.ID == excludeMatchID {
			continue
		}
		if m.Blocks(teamID) {
			out = append(out, cloneMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (r *MatchRepository) AnyBetweenTeamsOnDate(_ context.Context, teamAID, teamBID string, day time.Time) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	date := day.UTC().Format("2006-01-02")
	for _, m := range r.store.matches {
		samePair := (m.TeamAID == teamAID && m.TeamBID == teamBID) ||
			(m.TeamAID == teamBID && m.TeamBID == teamAID)
		if samePair && m.ScheduledDate() == date {
			return true, nil
		}
	}
	return false, nil
}

func (r *MatchRepository) ExistsByBig4FixtureID(_ context.Context, fixtureID string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, m := range r.store.matches {
		if m.Big4FixtureID != "" && m.Big4FixtureID == fixtureID {
			return true, nil
		}
	}
	return false, nil
}

type AvailabilityRepository struct{ store *Store }

func NewAvailabilityRepository(store *Store) *AvailabilityRepository {
	return &AvailabilityRepository{store: store}
}

// Read returns the stored document, or an empty week when none exists.
func (r *AvailabilityRepository) Read(_ context.Context, teamID string, week slot.Week) (availability.Document, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	doc, ok := r.store.availability[availabilityKey(teamID, week)]
	if !ok {
		return availability.Document{TeamID: teamID, Week: week}, nil
	}
	return cloneDocument(doc), nil
}

type EventRepository struct{ store *Store }

func NewEventRepository(store *Store) *EventRepository { return &EventRepository{store: store} }

func (r *EventRepository) Append(_ context.Context, entries ...event.Entry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.events = append(r.store.events, entries...)
	return nil
}

func (r *EventRepository) ListByTeam(_ context.Context, teamID string, limit int) ([]event.Entry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []event.Entry
	for i := len(r.store.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.store.events[i].TeamID == teamID {
			out = append(out, r.store.events[i])
		}
	}
	return out, nil
}

type NotificationRepository struct{ store *Store }

func NewNotificationRepository(store *Store) *NotificationRepository {
	return &NotificationRepository{store: store}
}

func (r *NotificationRepository) Create(_ context.Context, record notification.Record) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.notifications[record.ID]; exists {
		return fmt.Errorf("notification %s already exists", record.ID)
	}
	r.store.notifications[record.ID] = cloneRecord(record)
	return nil
}

func (r *NotificationRepository) GetByID(_ context.Context, id string) (notification.Record, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	record, ok := r.store.notifications[id]
	if !ok {
		return notification.Record{}, false, nil
	}
	return cloneRecord(record), true, nil
}

func (r *NotificationRepository) ListPending(_ context.Context, limit int) ([]notification.Record, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []notification.Record
	for _, record := range r.store.notifications {
		if record.Status == notification.StatusPending {
			out = append(out, cloneRecord(record))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *NotificationRepository) MarkDelivered(_ context.Context, id string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	record, ok := r.store.notifications[id]
	if !ok {
		return fmt.Errorf("notification %s does not exist", id)
	}
	record.Status = notification.StatusDelivered
	record.UpdatedAt = at
	r.store.notifications[id] = record
	return nil
}

func (r *NotificationRepository) MarkFailed(_ context.Context, id, reason string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	record, ok := r.store.notifications[id]
	if !ok {
		return fmt.Errorf("notification %s does not exist", id)
	}
	record.Status = notification.StatusFailed
	record.Attempts++
	record.LastError = reason
	record.UpdatedAt = at
	r.store.notifications[id] = record
	return nil
}
