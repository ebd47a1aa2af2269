package domain

import "time"

// UserRole enumerates the actor roles known to the system.
type UserRole string

const (
	RoleClient  UserRole = "CLIENT"
	RoleAgent   UserRole = "AGENT"
	RoleManager UserRole = "MANAGER"
	RoleAdmin   UserRole = "ADMIN"
)

// IsStaff reports whether the role may work tickets (pick, comment).
func (r UserRole) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// ValidRole reports whether r is one of the known roles.
func ValidRole(r UserRole) bool {
	switch r {
	case RoleClient, RoleAgent, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// User is the single identity model for clients, agents, managers and
// admins. CategoryID is set for agents and scopes which tickets they may
// pick.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	CategoryID   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
