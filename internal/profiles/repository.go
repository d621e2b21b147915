package profiles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileQuery = `SELECT u.id, u.username, u.fullname, u.matricula, u.email, u.bio, u.photo_url,
	(SELECT COUNT(*) FROM follows WHERE followed_id = u.id),
	(SELECT COUNT(*) FROM follows WHERE follower_id = u.id)
FROM users u`

// GetProfile fetches a profile with follower counts.
func (r *Repository) GetProfile(ctx context.Context, id int64) (Profile, error) {
	return r.scanProfile(r.pool.QueryRow(ctx, profileQuery+` WHERE u.id = $1 AND u.is_active`, id))
}

// FindByUsername fetches a profile by exact username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (Profile, error) {
	return r.scanProfile(r.pool.QueryRow(ctx, profileQuery+` WHERE u.username = $1 AND u.is_active`, username))
}

// Search matches the folded query against username, folded full name,
// email and matrícula.
func (r *Repository) Search(ctx context.Context, folded string, limit int) ([]SearchResult, error) {
	pattern := "%" + folded + "%"
	rows, err := r.pool.Query(ctx, `SELECT id, username, fullname FROM users
WHERE is_active AND (username ILIKE $1 OR fullname_folded LIKE $1 OR email ILIKE $1 OR matricula LIKE $1)
ORDER BY fullname ASC
LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var res SearchResult
		if err := rows.Scan(&res.ID, &res.Username, &res.Fullname); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// UpdateProfile applies an edit. Email uniqueness violations surface
// as ErrEmailTaken.
func (r *Repository) UpdateProfile(ctx context.Context, userID int64, email, photoURL, bio string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET email = $2, photo_url = $3, bio = $4, updated_at = NOW() WHERE id = $1`, userID, email, photoURL, bio)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Follow inserts a follow edge, ignoring duplicates.
func (r *Repository) Follow(ctx context.Context, followerID, followedID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO follows (follower_id, followed_id, created_at)
VALUES ($1, $2, NOW()) ON CONFLICT (follower_id, followed_id) DO NOTHING`, followerID, followedID)
	return err
}

// Unfollow removes a follow edge.
func (r *Repository) Unfollow(ctx context.Context, followerID, followedID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM follows WHERE follower_id = $1 AND followed_id = $2`, followerID, followedID)
	return err
}

// IsFollowing reports whether the edge exists.
func (r *Repository) IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followed_id = $2)`, followerID, followedID).Scan(&exists)
	return exists, err
}

// RecordSearch upserts a recent-search entry, refreshing its
// timestamp.
func (r *Repository) RecordSearch(ctx context.Context, userID, targetID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO recent_searches (user_id, target_id, searched_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id, target_id) DO UPDATE SET searched_at = NOW()`, userID, targetID)
	return err
}

// RecentSearches lists the user's search history, newest first.
func (r *Repository) RecentSearches(ctx context.Context, userID int64, limit int) ([]RecentSearch, error) {
	rows, err := r.pool.Query(ctx, `SELECT rs.id, rs.searched_at, u.id, u.username, u.fullname
FROM recent_searches rs
JOIN users u ON u.id = rs.target_id
WHERE rs.user_id = $1 AND u.is_active
ORDER BY rs.searched_at DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RecentSearch
	for rows.Next() {
		var rec RecentSearch
		if err := rows.Scan(&rec.ID, &rec.SearchedAt, &rec.Target.ID, &rec.Target.Username, &rec.Target.Fullname); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RemoveRecentSearch deletes one history entry owned by the user.
func (r *Repository) RemoveRecentSearch(ctx context.Context, userID, searchID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM recent_searches WHERE id = $1 AND user_id = $2`, searchID, userID)
	return err
}

// ClearRecentSearches wipes the user's history.
func (r *Repository) ClearRecentSearches(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM recent_searches WHERE user_id = $1`, userID)
	return err
}

func (r *Repository) scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Username, &p.Fullname, &p.Matricula, &p.Email, &p.Bio, &p.PhotoURL, &p.Followers, &p.Following)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

var _ RepositoryPort = (*Repository)(nil)
