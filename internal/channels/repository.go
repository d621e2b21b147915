package channels

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
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

const channelColumns = `id, name, description, kind, avatar, avatar_color, created_by, active, created_at, updated_at`

// GetChannel fetches an active channel by ID.
func (r *Repository) GetChannel(ctx context.Context, id int64) (Channel, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = $1 AND active`, id)
	channel, err := scanChannel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Channel{}, ErrNotFound
		}
		return Channel{}, err
	}
	return channel, nil
}

// ListChannels returns every active channel ordered by name.
func (r *Repository) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+channelColumns+` FROM channels WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Channel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, channel)
	}
	return list, rows.Err()
}

// ListAccessRows returns every active channel with its permitted role
// IDs and the user's membership flag, ordered by most recent activity.
func (r *Repository) ListAccessRows(ctx context.Context, userID int64) ([]AccessRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.id, c.name, c.description, c.kind, c.avatar, c.avatar_color, c.created_by, c.active, c.created_at, c.updated_at,
	COALESCE(ARRAY_AGG(cr.role_id) FILTER (WHERE cr.role_id IS NOT NULL), '{}'),
	EXISTS (SELECT 1 FROM channel_members m WHERE m.channel_id = c.id AND m.user_id = $1)
FROM channels c
LEFT JOIN channel_roles cr ON cr.channel_id = c.id
WHERE c.active
GROUP BY c.id
ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccessRow
	for rows.Next() {
		var ar AccessRow
		c := &ar.Channel
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Kind, &c.Avatar, &c.AvatarColor, &c.CreatedBy, &c.Active, &c.CreatedAt, &c.UpdatedAt, &ar.PermittedRoleIDs, &ar.IsMember); err != nil {
			return nil, err
		}
		out = append(out, ar)
	}
	return out, rows.Err()
}

// PermittedRoleIDs returns the role IDs gating a restricted channel.
func (r *Repository) PermittedRoleIDs(ctx context.Context, channelID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id FROM channel_roles WHERE channel_id = $1`, channelID)
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

// IsMember reports channel membership.
func (r *Repository) IsMember(ctx context.Context, channelID, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM channel_members WHERE channel_id = $1 AND user_id = $2)`, channelID, userID).Scan(&exists)
	return exists, err
}

// AddMember inserts a membership row, ignoring duplicates.
func (r *Repository) AddMember(ctx context.Context, member Member) error {
	role := member.Role
	if role == "" {
		role = MemberRegular
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO channel_members (channel_id, user_id, role, joined_at, last_read_at)
VALUES ($1, $2, $3, NOW(), NOW())
ON CONFLICT (channel_id, user_id) DO NOTHING`, member.ChannelID, member.UserID, role)
	return err
}

// MarkRead advances the user's read cursor. Non-members get a row so
// public channels track reads too.
func (r *Repository) MarkRead(ctx context.Context, channelID, userID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO channel_members (channel_id, user_id, role, joined_at, last_read_at)
VALUES ($1, $2, 'member', NOW(), NOW())
ON CONFLICT (channel_id, user_id) DO UPDATE SET last_read_at = NOW()`, channelID, userID)
	return err
}

// UnreadCount counts messages newer than the user's read cursor.
func (r *Repository) UnreadCount(ctx context.Context, channelID, userID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages msg
WHERE msg.channel_id = $1
  AND msg.created_at > COALESCE(
	(SELECT m.last_read_at FROM channel_members m WHERE m.channel_id = $1 AND m.user_id = $2),
	'-infinity'::timestamptz)`, channelID, userID).Scan(&count)
	return count, err
}

// LastMessage returns the most recent message, or nil when the channel
// is empty.
func (r *Repository) LastMessage(ctx context.Context, channelID int64) (*Message, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE channel_id = $1 ORDER BY created_at DESC LIMIT 1`, channelID)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

const messageColumns = `id, channel_id, author_id, body, attachment_key, reply_to, edited, created_at, updated_at`

// ListMessages returns the channel's most recent messages in
// chronological order, with author names and reaction tallies.
func (r *Repository) ListMessages(ctx context.Context, channelID int64, limit int) ([]MessageRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT msg.id, msg.channel_id, msg.author_id, msg.body, msg.attachment_key, msg.reply_to, msg.edited, msg.created_at, msg.updated_at, u.fullname
FROM (SELECT * FROM messages WHERE channel_id = $1 ORDER BY created_at DESC LIMIT $2) msg
JOIN users u ON u.id = msg.author_id
ORDER BY msg.created_at ASC`, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MessageRecord
	index := make(map[int64]int)
	for rows.Next() {
		var rec MessageRecord
		if err := rows.Scan(&rec.ID, &rec.ChannelID, &rec.AuthorID, &rec.Body, &rec.AttachmentKey, &rec.ReplyTo, &rec.Edited, &rec.CreatedAt, &rec.UpdatedAt, &rec.AuthorName); err != nil {
			return nil, err
		}
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return records, nil
	}

	reactions, err := r.pool.Query(ctx, `SELECT mr.message_id, mr.emoji, COUNT(*)
FROM message_reactions mr
JOIN messages msg ON msg.id = mr.message_id
WHERE msg.channel_id = $1
GROUP BY mr.message_id, mr.emoji
ORDER BY mr.message_id, mr.emoji`, channelID)
	if err != nil {
		return nil, err
	}
	defer reactions.Close()
	for reactions.Next() {
		var messageID int64
		var rc ReactionCount
		if err := reactions.Scan(&messageID, &rc.Emoji, &rc.Count); err != nil {
			return nil, err
		}
		if i, ok := index[messageID]; ok {
			records[i].Reactions = append(records[i].Reactions, rc)
		}
	}
	return records, reactions.Err()
}

// GetMessage fetches a message by ID.
func (r *Repository) GetMessage(ctx context.Context, id int64) (Message, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, err
	}
	return msg, nil
}

// CreateMessage inserts a message and bumps the channel's activity
// timestamp.
func (r *Repository) CreateMessage(ctx context.Context, msg Message) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO messages (channel_id, author_id, body, attachment_key, reply_to, edited, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, FALSE, NOW(), NOW()) RETURNING id`, msg.ChannelID, msg.AuthorID, msg.Body, msg.AttachmentKey, msg.ReplyTo).Scan(&id)
	if err != nil {
		return 0, err
	}
	_, err = r.pool.Exec(ctx, `UPDATE channels SET updated_at = NOW() WHERE id = $1`, msg.ChannelID)
	return id, err
}

// ToggleReaction adds the user's reaction or removes it when already
// present. Returns true when added.
func (r *Repository) ToggleReaction(ctx context.Context, messageID, userID int64, emoji string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`, messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (message_id, user_id, emoji) DO NOTHING`, messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeactivateChannel soft-deletes a channel and returns affected rows.
func (r *Repository) DeactivateChannel(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE channels SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanChannel(row pgx.Row) (Channel, error) {
	var c Channel
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Kind, &c.Avatar, &c.AvatarColor, &c.CreatedBy, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ChannelID, &m.AuthorID, &m.Body, &m.AttachmentKey, &m.ReplyTo, &m.Edited, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

var _ RepositoryPort = (*Repository)(nil)
