// Package notifications stores and serves per-user notifications.
package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Notification is a message shown on the user's notification page.
type Notification struct {
	ID        int64
	UserID    int64
	Title     string
	Body      string
	Read      bool
	CreatedAt time.Time
}

// ErrNotFound indicates the notification does not exist or belongs to
// another user.
var ErrNotFound = errors.New("notifications: not found")

// RepositoryPort defines data access methods for notifications.
type RepositoryPort interface {
	Insert(ctx context.Context, n Notification) (int64, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) error
}

// ListLimit bounds the notification page.
const ListLimit = 50

// Service handles notification logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Notify stores a notification for the user.
func (s *Service) Notify(ctx context.Context, userID int64, title, body string) error {
	_, err := s.repo.Insert(ctx, Notification{UserID: userID, Title: title, Body: body})
	return err
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]Notification, error) {
	return s.repo.ListByUser(ctx, userID, ListLimit)
}

// Unread counts the user's unread notifications.
func (s *Service) Unread(ctx context.Context, userID int64) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead marks one of the user's notifications as read.
func (s *Service) MarkRead(ctx context.Context, userID, id int64) error {
	return s.repo.MarkRead(ctx, userID, id)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a notification.
func (r *Repository) Insert(ctx context.Context, n Notification) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO notifications (user_id, title, body, read, created_at)
VALUES ($1, $2, $3, FALSE, NOW()) RETURNING id`, n.UserID, n.Title, n.Body).Scan(&id)
	return id, err
}

// ListByUser returns the user's notifications, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID int64, limit int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, title, body, read, created_at
FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountUnread counts unread notifications.
func (r *Repository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&count)
	return count, err
}

// MarkRead marks a notification read, scoped to its owner.
func (r *Repository) MarkRead(ctx context.Context, userID, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
