package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ravenfall/scrim-scheduler/internal/domain/match"
	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
)

type matchTableModel struct {
	ID            string         `db:"id"`
	TeamAID       string         `db:"team_a_id"`
	TeamBID       string         `db:"team_b_id"`
	TeamAName     string         `db:"team_a_name"`
	TeamBName     string         `db:"team_b_name"`
	TeamATag      string         `db:"team_a_tag"`
	TeamBTag      string         `db:"team_b_tag"`
	Week          string         `db:"week"`
	Slot          string         `db:"slot"`
	ScheduledAt   time.Time      `db:"scheduled_at"`
	BlockedSlot   string         `db:"blocked_slot"`
	BlockedTeams  pq.StringArray `db:"blocked_teams"`
	RosterA       pq.StringArray `db:"roster_a"`
	RosterB       pq.StringArray `db:"roster_b"`
	ProposalID    sql.NullString `db:"proposal_id"`
	Origin        string         `db:"origin"`
	Status        string         `db:"status"`
	GameType      string         `db:"game_type"`
	Big4FixtureID sql.NullString `db:"big4_fixture_id"`
	ConfirmedByA  sql.NullString `db:"confirmed_by_a"`
	ConfirmedByB  sql.NullString `db:"confirmed_by_b"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	CancelledBy   sql.NullString `db:"cancelled_by"`
	CancelledAt   *time.Time     `db:"cancelled_at"`
	RescheduledBy sql.NullString `db:"rescheduled_by"`
	RescheduledAt *time.Time     `db:"rescheduled_at"`
	Version       int64          `db:"version"`
}

func (m matchTableModel) toDomain() (match.Match, error) {
	week, err := slot.ParseWeek(m.Week)
	if err != nil {
		return match.Match{}, fmt.Errorf("decode match week: %w", err)
	}
	matchSlot, err := slot.Parse(m.Slot)
	if err != nil {
		return match.Match{}, fmt.Errorf("decode match slot: %w", err)
	}
	blockedSlot, err := slot.Parse(m.BlockedSlot)
	if err != nil {
		return match.Match{}, fmt.Errorf("decode blocked slot: %w", err)
	}

	return match.Match{
		ID:            m.ID,
		TeamAID:       m.TeamAID,
		TeamBID:       m.TeamBID,
		TeamAName:     m.TeamAName,
		TeamBName:     m.TeamBName,
		TeamATag:      m.TeamATag,
		TeamBTag:      m.TeamBTag,
		Week:          week,
		Slot:          matchSlot,
		ScheduledAt:   m.ScheduledAt,
		BlockedSlot:   blockedSlot,
		BlockedTeams:  []string(m.BlockedTeams),
		RosterA:       []string(m.RosterA),
		RosterB:       []string(m.RosterB),
		ProposalID:    nullStringValue(m.ProposalID),
		Origin:        m.Origin,
		Status:        m.Status,
		GameType:      m.GameType,
		Big4FixtureID: nullStringValue(m.Big4FixtureID),
		ConfirmedByA:  nullStringValue(m.ConfirmedByA),
		ConfirmedByB:  nullStringValue(m.ConfirmedByB),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		CancelledBy:   nullStringValue(m.CancelledBy),
		CancelledAt:   m.CancelledAt,
		RescheduledBy: nullStringValue(m.RescheduledBy),
		RescheduledAt: m.RescheduledAt,
		Version:       m.Version,
	}, nil
}

type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) Create(ctx context.Context, m match.Match) error {
	_, err := querier(ctx, r.db).ExecContext(ctx, `
		INSERT INTO matches (
			id, team_a_id, team_b_id, team_a_name, team_b_name,
			team_a_tag, team_b_tag, week, slot, scheduled_at,
			blocked_slot, blocked_teams, roster_a, roster_b,
			proposal_id, origin, status, game_type, big4_fixture_id,
			confirmed_by_a, confirmed_by_b, created_at, updated_at, version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, 1
		)`,
		m.ID, m.TeamAID, m.TeamBID, m.TeamAName, m.TeamBName,
		m.TeamATag, m.TeamBTag, m.Week.String(), m.Slot.String(), m.ScheduledAt,
		m.BlockedSlot.String(), pq.Array(m.BlockedTeams), pq.Array(m.RosterA), pq.Array(m.RosterB),
		nullString(m.ProposalID), m.Origin, m.Status, m.GameType, nullString(m.Big4FixtureID),
		nullString(m.ConfirmedByA), nullString(m.ConfirmedByB), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (r *MatchRepository) GetByID(ctx context.Context, matchID string) (match.Match, bool, error) {
	return r.getByID(ctx, matchID, false)
}

func (r *MatchRepository) GetByIDForUpdate(ctx context.Context, matchID string) (match.Match, bool, error) {
	return r.getByID(ctx, matchID, true)
}

func (r *MatchRepository) getByID(ctx context.Context, matchID string, forUpdate bool) (match.Match, bool, error) {
	query := `SELECT * FROM matches WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row matchTableModel
	if err := sqlx.GetContext(ctx, querier(ctx, r.db), &row, query, matchID); err != nil {
		if isNotFound(err) {
			return match.Match{}, false, nil
		}
		return match.Match{}, false, fmt.Errorf("get match by id: %w", err)
	}
	m, err := row.toDomain()
	if err != nil {
		return match.Match{}, false, err
	}
	return m, true, nil
}

func (r *MatchRepository) Update(ctx context.Context, m match.Match) error {
	result, err := querier(ctx, r.db).ExecContext(ctx, `
		UPDATE matches SET
			week = $2,
			slot = $3,
			scheduled_at = $4,
			blocked_slot = $5,
			status = $6,
			game_type = $7,
			updated_at = $8,
			cancelled_by = $9,
			cancelled_at = $10,
			rescheduled_by = $11,
			rescheduled_at = $12,
			version = version + 1
		WHERE id = $1`,
		m.ID, m.Week.String(), m.Slot.String(), m.ScheduledAt,
		m.BlockedSlot.String(), m.Status, m.GameType, m.UpdatedAt,
		nullString(m.CancelledBy), m.CancelledAt,
		nullString(m.RescheduledBy), m.RescheduledAt)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("match %s does not exist", m.ID)
	}
	return nil
}

func (r *MatchRepository) ListUpcomingByTeamWeek(ctx context.Context, teamID string, week slot.Week, excludeMatchID string) ([]match.Match, error) {
	var rows []matchTableModel
	err := sqlx.SelectContext(ctx, querier(ctx, r.db), &rows, `
		SELECT * FROM matches
		WHERE status = $1 AND week = $2 AND $3 = ANY(blocked_teams) AND id <> $4
		ORDER BY scheduled_at`,
		match.StatusUpcoming, week.String(), teamID, excludeMatchID)
	if err != nil {
		return nil, fmt.Errorf("list upcoming matches: %w", err)
	}

	out := make([]match.Match, 0, len(rows))
	for _, row := range rows {
		m, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *MatchRepository) AnyBetweenTeamsOnDate(ctx context.Context, teamAID, teamBID string, day time.Time) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, querier(ctx, r.db), &exists, `
		SELECT EXISTS (
			SELECT 1 FROM matches
			WHERE ((team_a_id = $1 AND team_b_id = $2)
			    OR (team_a_id = $2 AND team_b_id = $1))
			  AND scheduled_at >= $3 AND scheduled_at < $3 + INTERVAL '1 day'
		)`,
		teamAID, teamBID, day.UTC().Truncate(24*time.Hour))
	if err != nil {
		return false, fmt.Errorf("check match between teams on date: %w", err)
	}
	return exists, nil
}

func (r *MatchRepository) ExistsByBig4FixtureID(ctx context.Context, fixtureID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, querier(ctx, r.db), &exists,
		`SELECT EXISTS (SELECT 1 FROM matches WHERE big4_fixture_id = $1)`, fixtureID)
	if err != nil {
		return false, fmt.Errorf("check big4 fixture: %w", err)
	}
	return exists, nil
}
