// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the closed set of privilege levels a user can hold.
//
// Authorization is decided entirely by the (Role, Action) table in the
// permission package — there is no per-user permission storage.
type Role string

const (
	RoleReporter   Role = "reporter"
	RoleMaintainer Role = "maintainer"
	RoleAdmin      Role = "admin"
)

// ValidRole reports whether s is one of the three known roles.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleReporter, RoleMaintainer, RoleAdmin:
		return true
	}
	return false
}

// User represents a registered account.
//
// PasswordHash is empty for accounts provisioned via OAuth (and for the
// anonymous placeholder) — those accounts can never log in with a password.
// The hash itself is opaque to everything outside the auth package.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`

	// Role comes from the one-to-one profile row. The zero value means the
	// user has no profile; callers must go through EffectiveRole.
	Role Role `json:"role,omitempty" db:"role"`
}

// EffectiveRole resolves the role used for authorization decisions.
// A user with no profile is treated as a plain reporter: they keep the
// lowest privilege level rather than falling into an elevated branch.
func (u *User) EffectiveRole() Role {
	if u.Role == "" {
		return RoleReporter
	}
	return u.Role
}

// Profile is the one-to-one role record attached to a user.
// It is created automatically (with RoleReporter) on first social login.
type Profile struct {
	UserID    string    `json:"userId"    db:"user_id"`
	Role      Role      `json:"role"      db:"role"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
