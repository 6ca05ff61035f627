package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/ravenfall/scrim-scheduler/internal/domain/event"
)

type eventTableModel struct {
	ID        string    `db:"id"`
	Type      string    `db:"type"`
	Category  string    `db:"category"`
	Timestamp time.Time `db:"ts"`
	TeamID    string    `db:"team_id"`
	UserID    string    `db:"user_id"`
	Details   []byte    `db:"details"`
}

type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Append(ctx context.Context, entries ...event.Entry) error {
	q := querier(ctx, r.db)
	for _, entry := range entries {
		details, err := sonic.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("encode event details: %w", err)
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO events (id, type, category, ts, team_id, user_id, details)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			entry.ID, entry.Type, entry.Category, entry.Timestamp,
			entry.TeamID, entry.UserID, details)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", entry.Type, err)
		}
	}
	return nil
}

func (r *EventRepository) ListByTeam(ctx context.Context, teamID string, limit int) ([]event.Entry, error) {
	var rows []eventTableModel
	err := sqlx.SelectContext(ctx, querier(ctx, r.db), &rows, `
		SELECT * FROM events WHERE team_id = $1 ORDER BY ts DESC LIMIT $2`,
		teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events by team: %w", err)
	}

	out := make([]event.Entry, 0, len(rows))
	for _, row := range rows {
		var details map[string]any
		if len(row.Details) > 0 {
			if err := sonic.Unmarshal(row.Details, &details); err != nil {
				return nil, fmt.Errorf("decode event details: %w", err)
			}
		}
		out = append(out, event.Entry{
			ID:        row.ID,
			Type:      row.Type,
			Category:  row.Category,
			Timestamp: row.Timestamp,
			TeamID:    row.TeamID,
			UserID:    row.UserID,
			Details:   details,
		})
	}
	return out, nil
}
