package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Team represents a collaborative group owned by a user.
type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner"`
	Members   []Member  `json:"member"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewTeam carries the attributes needed to insert a team.
type NewTeam struct {
	Name    string
	OwnerID int64
}

// HasMember reports whether userID belongs to the team.
func (t Team) HasMember(userID int64) bool {
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// Member links a user to a team with a role. It is persisted as a single-key
// object mapping the user id to the role, e.g. {"7": "admin"}.
type Member struct {
	UserID int64
	Role   Role
}

var errMemberShape = errors.New("team member must be an object with exactly one user id key")

// MarshalJSON encodes the member as {"<userId>": "<role>"}.
func (m Member) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]Role{strconv.FormatInt(m.UserID, 10): m.Role})
}

// UnmarshalJSON decodes the {"<userId>": "<role>"} form.
func (m *Member) UnmarshalJSON(data []byte) error {
	var raw map[string]Role
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return errMemberShape
	}
	for key, role := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("team member key %q: %w", key, errMemberShape)
		}
		m.UserID = id
		m.Role = role
	}
	return nil
}
