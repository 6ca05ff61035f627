package team

import "fmt"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Team is a competing side: a leader, optional designated schedulers, and a
// player roster.
type Team struct {
	ID         string
	Name       string
	Tag        string
	LeaderID   string
	Schedulers []string
	Roster     []string
	Status     string
}

func (t Team) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("team id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("team name is required")
	}
	if t.LeaderID == "" {
		return fmt.Errorf("team leader id is required")
	}
	return nil
}

// IsAuthorized reports whether the user may schedule for the team: the leader
// or a designated scheduler. The leader is implicitly always authorized.
func (t Team) IsAuthorized(userID string) bool {
	if userID == "" {
		return false
	}
	if userID == t.LeaderID {
		return true
	}
	for _, id := range t.Schedulers {
		if id == userID {
			return true
		}
	}
	return false
}

// IsMember reports whether the user is on the roster. The leader counts as a
// member even when not listed explicitly.
func (t Team) IsMember(userID string) bool {
	if userID == "" {
		return false
	}
	if userID == t.LeaderID {
		return true
	}
	for _, id := range t.Roster {
		if id == userID {
			return true
		}
	}
	return false
}
