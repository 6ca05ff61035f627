package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/ravenfall/scrim-scheduler/internal/domain/proposal"
	"github.com/ravenfall/scrim-scheduler/internal/domain/slot"
)

type proposalTableModel struct {
	ID                string         `db:"id"`
	ProposerTeamID    string         `db:"proposer_team_id"`
	OpponentTeamID    string         `db:"opponent_team_id"`
	ProposerTeamName  string         `db:"proposer_team_name"`
	OpponentTeamName  string         `db:"opponent_team_name"`
	ProposerTeamTag   string         `db:"proposer_team_tag"`
	OpponentTeamTag   string         `db:"opponent_team_tag"`
	Week              string         `db:"week"`
	MinYourTeam       int            `db:"min_your_team"`
	MinOpponent       int            `db:"min_opponent"`
	GameType          string         `db:"game_type"`
	ProposerStandin   bool           `db:"proposer_standin"`
	OpponentStandin   bool           `db:"opponent_standin"`
	ProposerConfirmed []byte         `db:"proposer_confirmed"`
	OpponentConfirmed []byte         `db:"opponent_confirmed"`
	Status            string         `db:"status"`
	ConfirmedSlot     sql.NullString `db:"confirmed_slot"`
	ScheduledMatchID  sql.NullString `db:"scheduled_match_id"`
	ExpiresAt         time.Time      `db:"expires_at"`
	CreatedBy         string         `db:"created_by"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
	CancelledBy       sql.NullString `db:"cancelled_by"`
	CancelledAt       *time.Time     `db:"cancelled_at"`
	Version           int64          `db:"version"`
}

// confirmationDocument is the JSONB shape of one side's confirmation map,
// keyed by slot id.
type confirmationDocument map[string]confirmationEntry

type confirmationEntry struct {
	UserID         string    `json:"userId"`
	CountAtConfirm int       `json:"countAtConfirm"`
	GameType       string    `json:"gameType"`
	ConfirmedAt    time.Time `json:"confirmedAt"`
}

func encodeConfirmations(in map[slot.Slot]proposal.SlotConfirmation) ([]byte, error) {
	doc := make(confirmationDocument, len(in))
	for key, value := range in {
		doc[key.String()] = confirmationEntry{
			UserID:         value.UserID,
			CountAtConfirm: value.CountAtConfirm,
			GameType:       value.GameType,
			ConfirmedAt:    value.ConfirmedAt,
		}
	}
	return sonic.Marshal(doc)
}

func decodeConfirmations(raw []byte) (map[slot.Slot]proposal.SlotConfirmation, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc confirmationDocument
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode confirmations: %w", err)
	}
	out := make(map[slot.Slot]proposal.SlotConfirmation, len(doc))
	for key, value := range doc {
		parsed, err := slot.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("decode confirmation key %q: %w", key, err)
		}
		out[parsed] = proposal.SlotConfirmation{
			UserID:         value.UserID,
			CountAtConfirm: value.CountAtConfirm,
			GameType:       value.GameType,
			ConfirmedAt:    value.ConfirmedAt,
		}
	}
	return out, nil
}

func (m proposalTableModel) toDomain() (proposal.Proposal, error) {
	week, err := slot.ParseWeek(m.Week)
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("decode proposal week: %w", err)
	}
	proposerConfirmed, err := decodeConfirmations(m.ProposerConfirmed)
	if err != nil {
		return proposal.Proposal{}, err
	}
	opponentConfirmed, err := decodeConfirmations(m.OpponentConfirmed)
	if err != nil {
		return proposal.Proposal{}, err
	}

	p := proposal.Proposal{
		ID:                m.ID,
		ProposerTeamID:    m.ProposerTeamID,
		OpponentTeamID:    m.OpponentTeamID,
		ProposerTeamName:  m.ProposerTeamName,
		OpponentTeamName:  m.OpponentTeamName,
		ProposerTeamTag:   m.ProposerTeamTag,
		OpponentTeamTag:   m.OpponentTeamTag,
		Week:              week,
		MinFilter:         proposal.MinFilter{YourTeam: m.MinYourTeam, Opponent: m.MinOpponent},
		GameType:          m.GameType,
		ProposerStandin:   m.ProposerStandin,
		OpponentStandin:   m.OpponentStandin,
		ProposerConfirmed: proposerConfirmed,
		OpponentConfirmed: opponentConfirmed,
		Status:            m.Status,
		ScheduledMatchID:  nullStringValue(m.ScheduledMatchID),
		ExpiresAt:         m.ExpiresAt,
		CreatedBy:         m.CreatedBy,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		CancelledBy:       nullStringValue(m.CancelledBy),
		CancelledAt:       m.CancelledAt,
		Version:           m.Version,
	}
	if m.ConfirmedSlot.Valid {
		confirmed, err := slot.Parse(m.ConfirmedSlot.String)
		if err != nil {
			return proposal.Proposal{}, fmt.Errorf("decode confirmed slot: %w", err)
		}
		p.ConfirmedSlot = &confirmed
	}
	return p, nil
}

type ProposalRepository struct {
	db *sqlx.DB
}

func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

func (r *ProposalRepository) Create(ctx context.Context, p proposal.Proposal) error {
	proposerConfirmed, err := encodeConfirmations(p.ProposerConfirmed)
	if err != nil {
		return fmt.Errorf("encode proposer confirmations: %w", err)
	}
	opponentConfirmed, err := encodeConfirmations(p.OpponentConfirmed)
	if err != nil {
		return fmt.Errorf("encode opponent confirmations: %w", err)
	}

	_, err = querier(ctx, r.db).ExecContext(ctx, `
		INSERT INTO proposals (
			id, proposer_team_id, opponent_team_id,
			proposer_team_name, opponent_team_name,
			proposer_team_tag, opponent_team_tag,
			week, min_your_team, min_opponent, game_type,
			proposer_standin, opponent_standin,
			proposer_confirmed, opponent_confirmed,
			status, confirmed_slot, scheduled_match_id, expires_at,
			created_by, created_at, updated_at, version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, 1
		)`,
		p.ID, p.ProposerTeamID, p.OpponentTeamID,
		p.ProposerTeamName, p.OpponentTeamName,
		p.ProposerTeamTag, p.OpponentTeamTag,
		p.Week.String(), p.MinFilter.YourTeam, p.MinFilter.Opponent, p.GameType,
		p.ProposerStandin, p.OpponentStandin,
		proposerConfirmed, opponentConfirmed,
		p.Status, confirmedSlotParam(p), nullString(p.ScheduledMatchID), p.ExpiresAt,
		p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

func (r *ProposalRepository) GetByID(ctx context.Context, proposalID string) (proposal.Proposal, bool, error) {
	return r.getByID(ctx, proposalID, false)
}

// GetByIDForUpdate takes a row lock so the caller's read-check-write cycle is
// exclusive against concurrent confirmations.
func (r *ProposalRepository) GetByIDForUpdate(ctx context.Context, proposalID string) (proposal.Proposal, bool, error) {
	return r.getByID(ctx, proposalID, true)
}

func (r *ProposalRepository) getByID(ctx context.Context, proposalID string, forUpdate bool) (proposal.Proposal, bool, error) {
	query := `SELECT * FROM proposals WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row proposalTableModel
	if err := sqlx.GetContext(ctx, querier(ctx, r.db), &row, query, proposalID); err != nil {
		if isNotFound(err) {
			return proposal.Proposal{}, false, nil
		}
		return proposal.Proposal{}, false, fmt.Errorf("get proposal by id: %w", err)
	}
	p, err := row.toDomain()
	if err != nil {
		return proposal.Proposal{}, false, err
	}
	return p, true, nil
}

func (r *ProposalRepository) Update(ctx context.Context, p proposal.Proposal) error {
	proposerConfirmed, err := encodeConfirmations(p.ProposerConfirmed)
	if err != nil {
		return fmt.Errorf("encode proposer confirmations: %w", err)
	}
	opponentConfirmed, err := encodeConfirmations(p.OpponentConfirmed)
	if err != nil {
		return fmt.Errorf("encode opponent confirmations: %w", err)
	}

	result, err := querier(ctx, r.db).ExecContext(ctx, `
		UPDATE proposals SET
			game_type = $2,
			proposer_standin = $3,
			opponent_standin = $4,
			proposer_confirmed = $5,
			opponent_confirmed = $6,
			status = $7,
			confirmed_slot = $8,
			scheduled_match_id = $9,
			week = $10,
			updated_at = $11,
			cancelled_by = $12,
			cancelled_at = $13,
			version = version + 1
		WHERE id = $1`,
		p.ID, p.GameType, p.ProposerStandin, p.OpponentStandin,
		proposerConfirmed, opponentConfirmed,
		p.Status, confirmedSlotParam(p), nullString(p.ScheduledMatchID),
		p.Week.String(), p.UpdatedAt, nullString(p.CancelledBy), p.CancelledAt)
	if err != nil {
		return fmt.Errorf("update proposal: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update proposal rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("proposal %s does not exist", p.ID)
	}
	return nil
}

func (r *ProposalRepository) FindActiveBetween(ctx context.Context, teamAID, teamBID string, week slot.Week) (proposal.Proposal, bool, error) {
	var row proposalTableModel
	err := sqlx.GetContext(ctx, querier(ctx, r.db), &row, `
		SELECT * FROM proposals
		WHERE status = $1 AND week = $2
		  AND ((proposer_team_id = $3 AND opponent_team_id = $4)
		    OR (proposer_team_id = $4 AND opponent_team_id = $3))
		LIMIT 1`,
		proposal.StatusActive, week.String(), teamAID, teamBID)
	if err != nil {
		if isNotFound(err) {
			return proposal.Proposal{}, false, nil
		}
		return proposal.Proposal{}, false, fmt.Errorf("find active proposal: %w", err)
	}
	p, err := row.toDomain()
	if err != nil {
		return proposal.Proposal{}, false, err
	}
	return p, true, nil
}

func (r *ProposalRepository) ListByTeamWeek(ctx context.Context, teamID string, week slot.Week) ([]proposal.Proposal, error) {
	var rows []proposalTableModel
	err := sqlx.SelectContext(ctx, querier(ctx, r.db), &rows, `
		SELECT * FROM proposals
		WHERE week = $1 AND (proposer_team_id = $2 OR opponent_team_id = $2)
		ORDER BY created_at`,
		week.String(), teamID)
	if err != nil {
		return nil, fmt.Errorf("list proposals by team week: %w", err)
	}

	out := make([]proposal.Proposal, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func confirmedSlotParam(p proposal.Proposal) sql.NullString {
	if p.ConfirmedSlot == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: p.ConfirmedSlot.String(), Valid: true}
}
