package postgres

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/ravenfall/scrim-scheduler/internal/domain/availability"
	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
)

type availabilityTableModel struct {
	TeamID      string `db:"team_id"`
	Week        string `db:"week"`
	Available   []byte `db:"available"`
	Unavailable []byte `db:"unavailable"`
}

type AvailabilityRepository struct {
	db *sqlx.DB
}

func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// Read returns the stored document, or an empty week when the team never
// declared availability.
func (r *AvailabilityRepository) Read(ctx context.Context, teamID string, week slot.Week) (availability.Document, error) {
	var row availabilityTableModel
	err := sqlx.GetContext(ctx, querier(ctx, r.db), &row,
		`SELECT * FROM availability WHERE team_id = $1 AND week = $2`,
		teamID, week.String())
	if err != nil {
		if isNotFound(err) {
			return availability.Document{TeamID: teamID, Week: week}, nil
		}
		return availability.Document{}, fmt.Errorf("read availability: %w", err)
	}

	available, err := decodeSlotUsers(row.Available)
	if err != nil {
		return availability.Document{}, fmt.Errorf("decode available map: %w", err)
	}
	unavailable, err := decodeSlotUsers(row.Unavailable)
	if err != nil {
		return availability.Document{}, fmt.Errorf("decode unavailable map: %w", err)
	}

	return availability.Document{
		TeamID:      teamID,
		Week:        week,
		Available:   available,
		Unavailable: unavailable,
	}, nil
}

func decodeSlotUsers(raw []byte) (map[slot.Slot][]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc map[string][]string
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	out := make(map[slot.Slot][]string, len(doc))
	for key, users := range doc {
		parsed, err := slot.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("slot key %q: %w", key, err)
		}
		out[parsed] = users
	}
	return out, nil
}
