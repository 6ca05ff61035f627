// Package memory provides map-backed repositories sharing one Store. They
// are used in tests and local development; the Transactor serializes
// transactions and restores a snapshot when the transaction function fails.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ravenfall/scrim-scheduler/internal/domain/availability"
	"github.com/ravenfall/scrim-scheduler/internal/domain/event"
	"github.com/ravenfall/scrim-scheduler/internal/domain/match"
	"github.com/ravenfall/scrim-scheduler/internal/domain/notification"
	"github.com/ravenfall/scrim-scheduler/internal/domain/proposal"
	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
	"github.com/ravenfall/scrim-scheduler/internal/domain/team"
)

type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	teams         map[string]team.Team
	proposals     map[string]proposal.Proposal
	matches       map[string]match.Match
	availability  map[string]availability.Document
	events        []event.Entry
	notifications map[string]notification.Record
}

func NewStore() *Store {
	return &Store{
		teams:         make(map[string]team.Team),
		proposals:     make(map[string]proposal.Proposal),
		matches:       make(map[string]match.Match),
		availability:  make(map[string]availability.Document),
		notifications: make(map[string]notification.Record),
	}
}

// WithinTx serializes transactions store-wide and rolls the store back to
// its pre-transaction state when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type storeSnapshot struct {
	teams         map[string]team.Team
	proposals     map[string]proposal.Proposal
	matches       map[string]match.Match
	availability  map[string]availability.Document
	events        []event.Entry
	notifications map[string]notification.Record
}

func (s *Store) snapshot() storeSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := storeSnapshot{
		teams:         make(map[string]team.Team, len(s.teams)),
		proposals:     make(map[string]proposal.Proposal, len(s.proposals)),
		matches:       make(map[string]match.Match, len(s.matches)),
		availability:  make(map[string]availability.Document, len(s.availability)),
		events:        append([]event.Entry(nil), s.events...),
		notifications: make(map[string]notification.Record, len(s.notifications)),
	}
	for id, t := range s.teams {
		snap.teams[id] = cloneTeam(t)
	}
	for id, p := range s.proposals {
		snap.proposals[id] = cloneProposal(p)
	}
	for id, m := range s.matches {
		snap.matches[id] = cloneMatch(m)
	}
	for key, doc := range s.availability {
		snap.availability[key] = cloneDocument(doc)
	}
	for id, record := range s.notifications {
		snap.notifications[id] = cloneRecord(record)
	}
	return snap
}

func (s *Store) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teams = snap.teams
	s.proposals = snap.proposals
	s.matches = snap.matches
	s.availability = snap.availability
	s.events = snap.events
	s.notifications = snap.notifications
}

// Seed helpers for tests and local bootstrap.

func (s *Store) PutTeam(t team.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[t.ID] = cloneTeam(t)
}

func (s *Store) PutProposal(p proposal.Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[p.ID] = cloneProposal(p)
}

func (s *Store) PutMatch(m match.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = cloneMatch(m)
}

func (s *Store) PutAvailability(doc availability.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.availability[availabilityKey(doc.TeamID, doc.Week)] = cloneDocument(doc)
}

// Events returns a copy of the full audit log, oldest first.
func (s *Store) Events() []event.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]event.Entry(nil), s.events...)
}

func availabilityKey(teamID string, week slot.Week) string {
	return teamID + "|" + week.String()
}

func cloneTeam(t team.Team) team.Team {
	t.Schedulers = append([]string(nil), t.Schedulers...)
	t.Roster = append([]string(nil), t.Roster...)
	return t
}

func cloneProposal(p proposal.Proposal) proposal.Proposal {
	p.ProposerConfirmed = cloneConfirmations(p.ProposerConfirmed)
	p.OpponentConfirmed = cloneConfirmations(p.OpponentConfirmed)
	if p.ConfirmedSlot != nil {
		confirmed := *p.ConfirmedSlot
		p.ConfirmedSlot = &confirmed
	}
	p.CancelledAt = cloneTime(p.CancelledAt)
	return p
}

func cloneConfirmations(in map[slot.Slot]proposal.SlotConfirmation) map[slot.Slot]proposal.SlotConfirmation {
	if in == nil {
		return nil
	}
	out := make(map[slot.Slot]proposal.SlotConfirmation, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneMatch(m match.Match) match.Match {
	m.BlockedTeams = append([]string(nil), m.BlockedTeams...)
	m.RosterA = append([]string(nil), m.RosterA...)
	m.RosterB = append([]string(nil), m.RosterB...)
	m.CancelledAt = cloneTime(m.CancelledAt)
	m.RescheduledAt = cloneTime(m.RescheduledAt)
	return m
}

func cloneDocument(doc availability.Document) availability.Document {
	doc.Available = cloneSlotUsers(doc.Available)
	doc.Unavailable = cloneSlotUsers(doc.Unavailable)
	return doc
}

func cloneSlotUsers(in map[slot.Slot][]string) map[slot.Slot][]string {
	if in == nil {
		return nil
	}
	out := make(map[slot.Slot][]string, len(in))
	for key, users := range in {
		out[key] = append([]string(nil), users...)
	}
	return out
}

func cloneRecord(record notification.Record) notification.Record {
	record.TeamIDs = append([]string(nil), record.TeamIDs...)
	payload := make(map[string]any, len(record.Payload))
	for key, value := range record.Payload {
		payload[key] = value
	}
	record.Payload = payload
	return record
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
