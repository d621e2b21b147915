// Package auth implements accounts, login sessions and the
// password-reset flow.
package auth

import (
	"errors"
	"time"
)

// DefaultPhotoURL is applied to accounts created without a picture.
const DefaultPhotoURL = "/static/img/default-avatar.png"

// User represents an account of the platform.
type User struct {
	ID           int64
	Username     string
	Fullname     string
	Matricula    string
	Email        string
	Bio          string
	PhotoURL     string
	PasswordHash string
	IsStaff      bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ResetToken is a short-lived one-time code for password recovery.
type ResetToken struct {
	ID        int64
	Email     string
	Code      string
	ExpiresAt time.Time
	Consumed  bool
	CreatedAt time.Time
}

var (
	// ErrUserExists indicates a username, matrícula or email
	// collision at registration.
	ErrUserExists = errors.New("auth: user already exists")
	// ErrInvalidResetCode indicates a wrong, expired or already
	// consumed reset code.
	ErrInvalidResetCode = errors.New("auth: invalid or expired reset code")
	// ErrSelfDeletion indicates a staff member tried to delete
	// their own account.
	ErrSelfDeletion = errors.New("auth: cannot delete own account")
)
