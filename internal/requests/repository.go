package requests

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuslink/campuslink/internal/channels"
	"github.com/campuslink/campuslink/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const channelRequestColumns = `id, name, description, kind, avatar, requested_by, status, decided_by, refusal_reason, created_at, updated_at`

// GetChannelRequest fetches a channel request with its role set.
func (r *Repository) GetChannelRequest(ctx context.Context, id int64) (ChannelRequest, error) {
	req, err := scanChannelRequest(r.pool.QueryRow(ctx, `SELECT `+channelRequestColumns+` FROM channel_requests WHERE id = $1`, id))
	if err != nil {
		return ChannelRequest{}, mapNotFound(err)
	}
	req.RoleIDs, err = requestRoleIDs(ctx, r.pool, id)
	if err != nil {
		return ChannelRequest{}, err
	}
	return req, nil
}

const roleRequestColumns = `id, name, description, color, requested_by, status, decided_by, refusal_reason, created_at, updated_at`

// GetRoleRequest fetches a role request.
func (r *Repository) GetRoleRequest(ctx context.Context, id int64) (RoleRequest, error) {
	req, err := scanRoleRequest(r.pool.QueryRow(ctx, `SELECT `+roleRequestColumns+` FROM role_requests WHERE id = $1`, id))
	if err != nil {
		return RoleRequest{}, mapNotFound(err)
	}
	return req, nil
}

// ListPendingChannelRequests returns pending channel proposals with
// requester names, oldest first.
func (r *Repository) ListPendingChannelRequests(ctx context.Context) ([]ChannelRequestView, error) {
	rows, err := r.pool.Query(ctx, `SELECT cr.id, cr.name, cr.description, cr.kind, cr.avatar, cr.requested_by, cr.status, cr.decided_by, cr.refusal_reason, cr.created_at, cr.updated_at, u.fullname,
	COALESCE(ARRAY_AGG(crr.role_id) FILTER (WHERE crr.role_id IS NOT NULL), '{}')
FROM channel_requests cr
JOIN users u ON u.id = cr.requested_by
LEFT JOIN channel_request_roles crr ON crr.request_id = cr.id
WHERE cr.status = 'pending'
GROUP BY cr.id, u.fullname
ORDER BY cr.created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChannelRequestView
	for rows.Next() {
		var v ChannelRequestView
		req := &v.ChannelRequest
		if err := rows.Scan(&req.ID, &req.Name, &req.Description, &req.Kind, &req.Avatar, &req.RequestedBy, &req.Status, &req.DecidedBy, &req.RefusalReason, &req.CreatedAt, &req.UpdatedAt, &v.RequestedByName, &req.RoleIDs); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListPendingRoleRequests returns pending role proposals with
// requester names, oldest first.
func (r *Repository) ListPendingRoleRequests(ctx context.Context) ([]RoleRequestView, error) {
	rows, err := r.pool.Query(ctx, `SELECT rr.id, rr.name, rr.description, rr.color, rr.requested_by, rr.status, rr.decided_by, rr.refusal_reason, rr.created_at, rr.updated_at, u.fullname
FROM role_requests rr
JOIN users u ON u.id = rr.requested_by
WHERE rr.status = 'pending'
ORDER BY rr.created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoleRequestView
	for rows.Next() {
		var v RoleRequestView
		req := &v.RoleRequest
		if err := rows.Scan(&req.ID, &req.Name, &req.Description, &req.Color, &req.RequestedBy, &req.Status, &req.DecidedBy, &req.RefusalReason, &req.CreatedAt, &req.UpdatedAt, &v.RequestedByName); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CreateChannelRequest inserts a pending channel request and its role
// set.
func (r *Repository) CreateChannelRequest(ctx context.Context, req ChannelRequest) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO channel_requests (name, description, kind, avatar, requested_by, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 'pending', NOW(), NOW()) RETURNING id`, req.Name, req.Description, req.Kind, req.Avatar, req.RequestedBy).Scan(&id)
		if err != nil {
			return mapDuplicate(err)
		}
		for _, roleID := range req.RoleIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO channel_request_roles (request_id, role_id) VALUES ($1, $2)`, id, roleID); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

// CreateRoleRequest inserts a pending role request.
func (r *Repository) CreateRoleRequest(ctx context.Context, req RoleRequest) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO role_requests (name, description, color, requested_by, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, 'pending', NOW(), NOW()) RETURNING id`, req.Name, req.Description, req.Color, req.RequestedBy).Scan(&id)
	if err != nil {
		return 0, mapDuplicate(err)
	}
	return id, nil
}

// CountRolesByIDs counts how many of the given role IDs exist.
func (r *Repository) CountRolesByIDs(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles WHERE id = ANY($1)`, ids).Scan(&count)
	return count, err
}

// RoleNameTaken reports whether a role name collides with an existing
// role or a still-pending role request.
func (r *Repository) RoleNameTaken(ctx context.Context, name string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE LOWER(name) = LOWER($1))
	OR EXISTS (SELECT 1 FROM role_requests WHERE LOWER(name) = LOWER($1) AND status = 'pending')`, name).Scan(&taken)
	return taken, err
}

// Stats counts the admin panel figures.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := r.pool.QueryRow(ctx, `SELECT
	(SELECT COUNT(*) FROM users WHERE is_active),
	(SELECT COUNT(*) FROM channels WHERE active),
	(SELECT COUNT(*) FROM roles),
	(SELECT COUNT(*) FROM channel_requests WHERE status = 'pending'),
	(SELECT COUNT(*) FROM role_requests WHERE status = 'pending')`).Scan(&st.Users, &st.Channels, &st.Roles, &st.PendingChannelRequests, &st.PendingRoleRequests)
	return st, err
}

// GetChannelRequestForUpdate re-reads the request under a row lock so
// concurrent decisions serialize on the pending check.
func (t *txRepo) GetChannelRequestForUpdate(ctx context.Context, id int64) (ChannelRequest, error) {
	req, err := scanChannelRequest(t.tx.QueryRow(ctx, `SELECT `+channelRequestColumns+` FROM channel_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return ChannelRequest{}, mapNotFound(err)
	}
	req.RoleIDs, err = requestRoleIDs(ctx, t.tx, id)
	if err != nil {
		return ChannelRequest{}, err
	}
	return req, nil
}

// GetRoleRequestForUpdate re-reads the request under a row lock.
func (t *txRepo) GetRoleRequestForUpdate(ctx context.Context, id int64) (RoleRequest, error) {
	req, err := scanRoleRequest(t.tx.QueryRow(ctx, `SELECT `+roleRequestColumns+` FROM role_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return RoleRequest{}, mapNotFound(err)
	}
	return req, nil
}

// MaterializeChannel creates the channel, copies the permitted-role
// set and inserts the requester as admin member.
func (t *txRepo) MaterializeChannel(ctx context.Context, req ChannelRequest) (int64, error) {
	var channelID int64
	err := t.tx.QueryRow(ctx, `INSERT INTO channels (name, description, kind, avatar, avatar_color, created_by, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, '', $5, TRUE, NOW(), NOW()) RETURNING id`, req.Name, req.Description, req.Kind, req.Avatar, req.RequestedBy).Scan(&channelID)
	if err != nil {
		return 0, mapDuplicate(err)
	}
	for _, roleID := range req.RoleIDs {
		if _, err := t.tx.Exec(ctx, `INSERT INTO channel_roles (channel_id, role_id) VALUES ($1, $2)`, channelID, roleID); err != nil {
			return 0, err
		}
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO channel_members (channel_id, user_id, role, joined_at, last_read_at)
VALUES ($1, $2, $3, NOW(), NOW())`, channelID, req.RequestedBy, channels.MemberAdmin)
	if err != nil {
		return 0, err
	}
	return channelID, nil
}

// MaterializeRole creates the role from the request's fields.
func (t *txRepo) MaterializeRole(ctx context.Context, req RoleRequest) (int64, error) {
	var roleID int64
	err := t.tx.QueryRow(ctx, `INSERT INTO roles (name, description, color, created_by, created_at)
VALUES ($1, $2, $3, $4, NOW()) RETURNING id`, req.Name, req.Description, req.Color, req.RequestedBy).Scan(&roleID)
	if err != nil {
		return 0, mapDuplicate(err)
	}
	return roleID, nil
}

// MarkChannelRequestDecided writes a terminal status, keeping the
// pending guard in the statement as the last defense.
func (t *txRepo) MarkChannelRequestDecided(ctx context.Context, id int64, status Status, decidedBy int64, reason string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE channel_requests SET status = $2, decided_by = $3, refusal_reason = $4, updated_at = NOW()
WHERE id = $1 AND status = 'pending'`, id, status, decidedBy, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// MarkRoleRequestDecided writes a terminal status.
func (t *txRepo) MarkRoleRequestDecided(ctx context.Context, id int64, status Status, decidedBy int64, reason string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE role_requests SET status = $2, decided_by = $3, refusal_reason = $4, updated_at = NOW()
WHERE id = $1 AND status = 'pending'`, id, status, decidedBy, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

type roleIDQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func requestRoleIDs(ctx context.Context, q roleIDQuerier, requestID int64) ([]int64, error) {
	rows, err := q.Query(ctx, `SELECT role_id FROM channel_request_roles WHERE request_id = $1 ORDER BY role_id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanChannelRequest(row pgx.Row) (ChannelRequest, error) {
	var req ChannelRequest
	err := row.Scan(&req.ID, &req.Name, &req.Description, &req.Kind, &req.Avatar, &req.RequestedBy, &req.Status, &req.DecidedBy, &req.RefusalReason, &req.CreatedAt, &req.UpdatedAt)
	return req, err
}

func scanRoleRequest(row pgx.Row) (RoleRequest, error) {
	var req RoleRequest
	err := row.Scan(&req.ID, &req.Name, &req.Description, &req.Color, &req.RequestedBy, &req.Status, &req.DecidedBy, &req.RefusalReason, &req.CreatedAt, &req.UpdatedAt)
	return req, err
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func mapDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateName
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
var _ TxRepository = (*txRepo)(nil)
