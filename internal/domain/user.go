package domain

import (
	"strings"
	"time"
)

// Role is an account-level or team-level permission tier.
type Role string

const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalizes raw input; empty input yields RoleMember.
func ParseRole(raw string) (Role, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return RoleMember, true
	}
	role := Role(trimmed)
	return role, role.Valid()
}

// User represents a platform account.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"password"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewUser carries the attributes needed to insert a user. The hash is
// computed by the caller; the repository assigns ID and CreatedAt.
type NewUser struct {
	Name         string
	Email        string
	Role         Role
	PasswordHash string
}

// EmailMatches compares addresses case-insensitively.
func EmailMatches(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
