package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ravenfall/scrim-scheduler/internal/domain/team"
)

type teamTableModel struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Tag        string         `db:"tag"`
	LeaderID   string         `db:"leader_id"`
	Schedulers pq.StringArray `db:"schedulers"`
	Roster     pq.StringArray `db:"roster"`
	Status     string         `db:"status"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (m teamTableModel) toDomain() team.Team {
	return team.Team{
		ID:         m.ID,
		Name:       m.Name,
		Tag:        m.Tag,
		LeaderID:   m.LeaderID,
		Schedulers: []string(m.Schedulers),
		Roster:     []string(m.Roster),
		Status:     m.Status,
	}
}

type TeamRepository struct {
	db *sqlx.DB
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) GetByID(ctx context.Context, teamID string) (team.Team, bool, error) {
	var row teamTableModel
	err := sqlx.GetContext(ctx, querier(ctx, r.db), &row,
		`SELECT * FROM teams WHERE id = $1`, teamID)
	if err != nil {
		if isNotFound(err) {
			return team.Team{}, false, nil
		}
		return team.Team{}, false, fmt.Errorf("get team by id: %w", err)
	}
	return row.toDomain(), true, nil
}

func (r *TeamRepository) FindByName(ctx context.Context, name string) (team.Team, bool, error) {
	var row teamTableModel
	err := sqlx.GetContext(ctx, querier(ctx, r.db), &row,
		`SELECT * FROM teams WHERE name = $1`, name)
	if err != nil {
		if isNotFound(err) {
			return team.Team{}, false, nil
		}
		return team.Team{}, false, fmt.Errorf("find team by name: %w", err)
	}
	return row.toDomain(), true, nil
}

func (r *TeamRepository) SetSchedulers(ctx context.Context, teamID string, schedulers []string) error {
	result, err := querier(ctx, r.db).ExecContext(ctx,
		`UPDATE teams SET schedulers = $2, updated_at = now() WHERE id = $1`,
		teamID, pq.Array(schedulers))
	if err != nil {
		return fmt.Errorf("set schedulers: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set schedulers rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("team %s does not exist", teamID)
	}
	return nil
}
