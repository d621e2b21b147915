package roles

import (
	"errors"
	"time"
)

// Role is a named tag grantable to users, used to gate restricted
// channels.
type Role struct {
	ID          int64
	Name        string
	Description string
	Color       string
	CreatedBy   int64
	CreatedAt   time.Time
}

// Assignment links a user to a role. The active flag can be toggled
// without losing the row.
type Assignment struct {
	UserID     int64
	RoleID     int64
	Active     bool
	AssignedAt time.Time
}

// UserRole pairs an assignment with its role for display.
type UserRole struct {
	Role   Role
	Active bool
}

// DefaultColor is applied when a role is created without one.
const DefaultColor = "#808080"

var (
	// ErrNotFound indicates the role does not exist.
	ErrNotFound = errors.New("roles: not found")
	// ErrDuplicateName indicates a role name collision.
	ErrDuplicateName = errors.New("roles: duplicate name")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("roles: invalid input")
)
