package domain

import "time"

// Role is the closed set of caller roles. There is no promotion or
// demotion endpoint; a user's role is fixed at registration.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
)

// ValidRole reports whether r is one of the enumerated roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleCitizen, RoleAdmin:
		return true
	}
	return false
}

// User is the domain model for registered accounts. Tickets and progress
// notes reference users; nothing owns them.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
