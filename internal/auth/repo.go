package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuslink/campuslink/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByLogin(ctx context.Context, login string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, user User) (int64, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
	CreateResetToken(ctx context.Context, token ResetToken) error
	ConsumeResetToken(ctx context.Context, email, code string) error
	DeleteExpiredResetTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, username, fullname, matricula, email, bio, photo_url, password_hash, is_staff, is_active, created_at, updated_at`

// FindByLogin fetches a user by username or email.
func (r *PGRepository) FindByLogin(ctx context.Context, login string) (*User, error) {
	return r.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1 OR email = LOWER($1)`, login)
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = LOWER($1)`, email)
}

// FindByID fetches a user by ID.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// CreateUser inserts an account. Unique violations on username,
// matrícula or email surface as ErrUserExists.
func (r *PGRepository) CreateUser(ctx context.Context, user User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO users (username, fullname, fullname_folded, matricula, email, bio, photo_url, password_hash, is_staff, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, NOW(), NOW()) RETURNING id`,
		user.Username, user.Fullname, shared.Fold(user.Fullname), user.Matricula, user.Email, user.Bio, user.PhotoURL, user.PasswordHash, user.IsActive).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// ListUsers returns every account ordered by username.
func (r *PGRepository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Fullname, &u.Matricula, &u.Email, &u.Bio, &u.PhotoURL, &u.PasswordHash, &u.IsStaff, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes the account row.
func (r *PGRepository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the stored hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateSession persists a login session for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO sessions (id, user_id, created_at, expires_at, ip, ua)
VALUES ($1, $2, NOW(), $3, NULLIF($4, ''), NULLIF($5, ''))
ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at`, id, userID, expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session record.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// CreateResetToken stores a reset code, superseding earlier pending
// codes for the same email.
func (r *PGRepository) CreateResetToken(ctx context.Context, token ResetToken) error {
	_, err := r.pool.Exec(ctx, `UPDATE reset_tokens SET consumed = TRUE WHERE email = $1 AND NOT consumed`, token.Email)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO reset_tokens (email, code, expires_at, consumed, created_at)
VALUES ($1, $2, $3, FALSE, NOW())`, token.Email, token.Code, token.ExpiresAt.UTC())
	return err
}

// ConsumeResetToken marks a matching, unexpired, unconsumed code as
// used. The validation and the consumption are one statement.
func (r *PGRepository) ConsumeResetToken(ctx context.Context, email, code string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE reset_tokens SET consumed = TRUE
WHERE email = $1 AND code = $2 AND NOT consumed AND expires_at > NOW()`, email, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidResetCode
	}
	return nil
}

// DeleteExpiredResetTokens removes codes past their expiry.
func (r *PGRepository) DeleteExpiredResetTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reset_tokens WHERE expires_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PGRepository) findUser(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Fullname, &u.Matricula, &u.Email, &u.Bio, &u.PhotoURL, &u.PasswordHash, &u.IsStaff, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

var _ Repository = (*PGRepository)(nil)
