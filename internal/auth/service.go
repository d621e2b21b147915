package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/campuslink/campuslink/internal/shared"
)

// MailerPort delivers the password-reset code. The implementation
// enqueues a background job rather than blocking the request on SMTP.
type MailerPort interface {
	SendPasswordResetCode(ctx context.Context, email, code string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	mailer   MailerPort
	resetTTL time.Duration
}

// NewService constructs a new Service.
func NewService(repo Repository, mailer MailerPort, resetTTL time.Duration) *Service {
	if resetTTL <= 0 {
		resetTTL = 15 * time.Minute
	}
	return &Service{repo: repo, mailer: mailer, resetTTL: resetTTL}
}

// Authenticate validates login/password credentials. The login may be
// a username or an email address.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	user, err := s.repo.FindByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RegisterInput describes a registration submission.
type RegisterInput struct {
	Username  string
	Fullname  string
	Matricula string
	Email     string
	Password  string
}

// Register creates an account. Username, matrícula and email are
// unique.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user := User{
		Username:     strings.TrimSpace(input.Username),
		Fullname:     strings.TrimSpace(input.Fullname),
		Matricula:    strings.TrimSpace(input.Matricula),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PhotoURL:     DefaultPhotoURL,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	id, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	user.ID = id
	return &user, nil
}

// FindByID fetches an account.
func (s *Service) FindByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// ActorFor resolves the authorization actor for a user ID.
func (s *Service) ActorFor(ctx context.Context, userID int64) (shared.Actor, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return shared.Actor{}, err
	}
	return shared.Actor{ID: user.ID, IsStaff: user.IsStaff}, nil
}

// ListUsers returns the account directory for the staff console.
func (s *Service) ListUsers(ctx context.Context, actor shared.Actor) ([]User, error) {
	if err := shared.RequireStaff(actor); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

// DeleteUser removes an account. Staff only; deleting the calling
// account is rejected.
func (s *Service) DeleteUser(ctx context.Context, actor shared.Actor, userID int64) error {
	if err := shared.RequireStaff(actor); err != nil {
		return err
	}
	if actor.ID == userID {
		return ErrSelfDeletion
	}
	return s.repo.DeleteUser(ctx, userID)
}

// ChangePassword replaces the password after verifying the current
// one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return shared.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

// RequestPasswordReset issues a one-time 6-digit code and hands it to
// the mailer. Unknown emails are ignored so the form does not leak
// which addresses have accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil
	}
	code, err := generateResetCode()
	if err != nil {
		return err
	}
	token := ResetToken{Email: user.Email, Code: code, ExpiresAt: time.Now().Add(s.resetTTL)}
	if err := s.repo.CreateResetToken(ctx, token); err != nil {
		return err
	}
	if s.mailer != nil {
		return s.mailer.SendPasswordResetCode(ctx, user.Email, code)
	}
	return nil
}

// ResetPassword consumes a valid code and replaces the password. A
// code is single-use: consuming and validating happen in one statement
// so concurrent attempts cannot both succeed.
func (s *Service) ResetPassword(ctx context.Context, email, code, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.repo.ConsumeResetToken(ctx, email, strings.TrimSpace(code)); err != nil {
		return err
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, user.ID, string(hash))
}

// RegisterSession persists the session metadata for auditing.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// PurgeExpiredResetTokens removes stale reset codes. Called from the
// scheduled cleanup job.
func (s *Service) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredResetTokens(ctx, time.Now())
}

func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("auth: generate reset code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
