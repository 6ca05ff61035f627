package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ravenfall/scrim-scheduler/internal/domain/notification"
)

type notificationTableModel struct {
	ID         string         `db:"id"`
	Kind       string         `db:"kind"`
	TeamIDs    pq.StringArray `db:"team_ids"`
	ProposalID sql.NullString `db:"proposal_id"`
	MatchID    sql.NullString `db:"match_id"`
	Payload    []byte         `db:"payload"`
	Status     string         `db:"status"`
	Attempts   int            `db:"attempts"`
	LastError  sql.NullString `db:"last_error"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (m notificationTableModel) toDomain() (notification.Record, error) {
	var payload map[string]any
	if len(m.Payload) > 0 {
		if err := sonic.Unmarshal(m.Payload, &payload); err != nil {
			return notification.Record{}, fmt.Errorf("decode notification payload: %w", err)
		}
	}
	return notification.Record{
		ID:         m.ID,
		Kind:       m.Kind,
		TeamIDs:    []string(m.TeamIDs),
		ProposalID: nullStringValue(m.ProposalID),
		MatchID:    nullStringValue(m.MatchID),
		Payload:    payload,
		Status:     m.Status,
		Attempts:   m.Attempts,
		LastError:  nullStringValue(m.LastError),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}, nil
}

type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, record notification.Record) error {
	payload, err := sonic.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("encode notification payload: %w", err)
	}

	_, err = querier(ctx, r.db).ExecContext(ctx, `
		INSERT INTO notifications (
			id, kind, team_ids, proposal_id, match_id,
			payload, status, attempts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)`,
		record.ID, record.Kind, pq.Array(record.TeamIDs),
		nullString(record.ProposalID), nullString(record.MatchID),
		payload, record.Status, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id string) (notification.Record, bool, error) {
	var row notificationTableModel
	err := sqlx.GetContext(ctx, querier(ctx, r.db), &row,
		`SELECT * FROM notifications WHERE id = $1`, id)
	if err != nil {
		if isNotFound(err) {
			return notification.Record{}, false, nil
		}
		return notification.Record{}, false, fmt.Errorf("get notification by id: %w", err)
	}
	record, err := row.toDomain()
	if err != nil {
		return notification.Record{}, false, err
	}
	return record, true, nil
}

func (r *NotificationRepository) ListPending(ctx context.Context, limit int) ([]notification.Record, error) {
	var rows []notificationTableModel
	err := sqlx.SelectContext(ctx, querier(ctx, r.db), &rows, `
		SELECT * FROM notifications
		WHERE status = $1 ORDER BY created_at LIMIT $2`,
		notification.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}

	out := make([]notification.Record, 0, len(rows))
	for _, row := range rows {
		record, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	_, err := querier(ctx, r.db).ExecContext(ctx, `
		UPDATE notifications SET status = $2, updated_at = $3 WHERE id = $1`,
		id, notification.StatusDelivered, at)
	if err != nil {
		return fmt.Errorf("mark notification delivered: %w", err)
	}
	return nil
}

func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, reason string, at time.Time) error {
	_, err := querier(ctx, r.db).ExecContext(ctx, `
		UPDATE notifications
		SET status = $2, attempts = attempts + 1, last_error = $3, updated_at = $4
		WHERE id = $1`,
		id, notification.StatusFailed, reason, at)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}
