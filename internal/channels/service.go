package channels

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/campuslink/campuslink/internal/shared"
)

// MessageRecord is a message with the joined data the repository can
// fetch in one pass.
type MessageRecord struct {
	Message
	AuthorName string
	Reactions  []ReactionCount
}

// AccessRow is a channel together with the data its access decision
// depends on, relative to one user.
type AccessRow struct {
	Channel          Channel
	PermittedRoleIDs []int64
	IsMember         bool
}

// RepositoryPort defines data access methods for channels and
// messages.
type RepositoryPort interface {
	GetChannel(ctx context.Context, id int64) (Channel, error)
	ListChannels(ctx context.Context) ([]Channel, error)
	ListAccessRows(ctx context.Context, userID int64) ([]AccessRow, error)
	PermittedRoleIDs(ctx context.Context, channelID int64) ([]int64, error)
	IsMember(ctx context.Context, channelID, userID int64) (bool, error)
	AddMember(ctx context.Context, member Member) error
	MarkRead(ctx context.Context, channelID, userID int64) error
	UnreadCount(ctx context.Context, channelID, userID int64) (int, error)
	LastMessage(ctx context.Context, channelID int64) (*Message, error)
	ListMessages(ctx context.Context, channelID int64, limit int) ([]MessageRecord, error)
	GetMessage(ctx context.Context, id int64) (Message, error)
	CreateMessage(ctx context.Context, msg Message) (int64, error)
	ToggleReaction(ctx context.Context, messageID, userID int64, emoji string) (bool, error)
	DeactivateChannel(ctx context.Context, id int64) (int64, error)
}

// RolesPort resolves a user's currently active role IDs.
type RolesPort interface {
	ActiveRoleIDs(ctx context.Context, userID int64) ([]int64, error)
}

// AttachmentStore persists message attachments.
type AttachmentStore interface {
	Put(ctx context.Context, filename, contentType string, size int64, body io.Reader) (string, error)
	PresignGet(ctx context.Context, key string) (string, error)
}

// AuditPort records administrative actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Upload carries an attachment from the HTTP layer.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// DefaultMessageLimit bounds how many messages a channel page loads.
const DefaultMessageLimit = 100

// Service handles channel business logic.
type Service struct {
	repo        RepositoryPort
	roles       RolesPort
	attachments AttachmentStore
	audit       AuditPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roles RolesPort, attachments AttachmentStore, audit AuditPort) *Service {
	return &Service{repo: repo, roles: roles, attachments: attachments, audit: audit}
}

// CanAccess reports whether the user may view and post in the channel.
func (s *Service) CanAccess(ctx context.Context, channelID, userID int64) (bool, error) {
	channel, err := s.repo.GetChannel(ctx, channelID)
	if err != nil {
		return false, err
	}
	return s.evaluate(ctx, channel, userID)
}

// Get returns the channel after an access check.
func (s *Service) Get(ctx context.Context, channelID, userID int64) (Channel, error) {
	channel, err := s.repo.GetChannel(ctx, channelID)
	if err != nil {
		return Channel{}, err
	}
	ok, err := s.evaluate(ctx, channel, userID)
	if err != nil {
		return Channel{}, err
	}
	if !ok {
		return Channel{}, ErrAccessDenied
	}
	return channel, nil
}

// AllChannels lists every active channel for the staff console.
func (s *Service) AllChannels(ctx context.Context) ([]Channel, error) {
	return s.repo.ListChannels(ctx)
}

// VisibleChannels lists the channels the user may access, each with
// its unread count and most recent message.
func (s *Service) VisibleChannels(ctx context.Context, userID int64) ([]Summary, error) {
	rows, err := s.repo.ListAccessRows(ctx, userID)
	if err != nil {
		return nil, err
	}
	activeIDs, err := s.roles.ActiveRoleIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	roleSet := SnapshotRoles(activeIDs)

	var out []Summary
	for _, row := range rows {
		snap := AccessSnapshot{IsMember: row.IsMember, ActiveRoleIDs: roleSet}
		if !Evaluate(row.Channel.Kind, row.PermittedRoleIDs, snap) {
			continue
		}
		unread, err := s.repo.UnreadCount(ctx, row.Channel.ID, userID)
		if err != nil {
			return nil, err
		}
		last, err := s.repo.LastMessage(ctx, row.Channel.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{Channel: row.Channel, UnreadCount: unread, LastMessage: last})
	}
	return out, nil
}

// Messages returns the channel's recent messages decorated for
// rendering and advances the caller's read cursor.
func (s *Service) Messages(ctx context.Context, channelID, userID int64) ([]MessageView, error) {
	channel, err := s.repo.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	ok, err := s.evaluate(ctx, channel, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccessDenied
	}

	records, err := s.repo.ListMessages(ctx, channelID, DefaultMessageLimit)
	if err != nil {
		return nil, err
	}
	views := make([]MessageView, 0, len(records))
	for _, rec := range records {
		view := MessageView{
			ID:         rec.ID,
			AuthorID:   rec.AuthorID,
			AuthorName: rec.AuthorName,
			Body:       rec.Body,
			ReplyTo:    rec.ReplyTo,
			Edited:     rec.Edited,
			CreatedAt:  rec.CreatedAt,
			Reactions:  rec.Reactions,
		}
		if rec.AttachmentKey != "" && s.attachments != nil {
			url, err := s.attachments.PresignGet(ctx, rec.AttachmentKey)
			if err != nil {
				return nil, fmt.Errorf("channels: presign attachment: %w", err)
			}
			view.AttachmentURL = url
		}
		views = append(views, view)
	}

	if err := s.repo.MarkRead(ctx, channelID, userID); err != nil {
		return nil, err
	}
	return views, nil
}

// PostMessageInput carries a new message submission.
type PostMessageInput struct {
	Body       string
	ReplyTo    *int64
	Attachment *Upload
}

// PostMessage creates a message after re-evaluating access at write
// time. Replies must reference a message of the same channel.
func (s *Service) PostMessage(ctx context.Context, channelID, userID int64, input PostMessageInput) (Message, error) {
	channel, err := s.repo.GetChannel(ctx, channelID)
	if err != nil {
		return Message{}, err
	}
	ok, err := s.evaluate(ctx, channel, userID)
	if err != nil {
		return Message{}, err
	}
	if !ok {
		return Message{}, ErrAccessDenied
	}

	body := strings.TrimSpace(input.Body)
	if body == "" && input.Attachment == nil {
		return Message{}, ErrValidation
	}
	if input.ReplyTo != nil {
		parent, err := s.repo.GetMessage(ctx, *input.ReplyTo)
		if err != nil {
			return Message{}, err
		}
		if parent.ChannelID != channelID {
			return Message{}, ErrReplyMismatch
		}
	}

	msg := Message{ChannelID: channelID, AuthorID: userID, Body: body, ReplyTo: input.ReplyTo}
	if input.Attachment != nil {
		if s.attachments == nil {
			return Message{}, ErrValidation
		}
		key, err := s.attachments.Put(ctx, input.Attachment.Filename, input.Attachment.ContentType, input.Attachment.Size, input.Attachment.Body)
		if err != nil {
			return Message{}, fmt.Errorf("channels: store attachment: %w", err)
		}
		msg.AttachmentKey = key
	}

	id, err := s.repo.CreateMessage(ctx, msg)
	if err != nil {
		return Message{}, err
	}
	msg.ID = id

	// The author has seen everything up to their own message.
	if err := s.repo.MarkRead(ctx, channelID, userID); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// React toggles the user's reaction of the given emoji on a message.
// Returns true when the reaction was added, false when removed.
func (s *Service) React(ctx context.Context, channelID, messageID, userID int64, emoji string) (bool, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return false, ErrValidation
	}
	ok, err := s.CanAccess(ctx, channelID, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrAccessDenied
	}
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return false, err
	}
	if msg.ChannelID != channelID {
		return false, ErrNotFound
	}
	return s.repo.ToggleReaction(ctx, messageID, userID, emoji)
}

// MarkRead advances the user's read cursor in the channel.
func (s *Service) MarkRead(ctx context.Context, channelID, userID int64) error {
	return s.repo.MarkRead(ctx, channelID, userID)
}

// Deactivate soft-deletes a channel. Staff only.
func (s *Service) Deactivate(ctx context.Context, actor shared.Actor, channelID int64) error {
	if err := shared.RequireStaff(actor); err != nil {
		return err
	}
	rows, err := s.repo.DeactivateChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actor.ID, Action: "CHANNEL_DEACTIVATE", Entity: "channel", EntityID: fmt.Sprintf("%d", channelID)})
	}
	return nil
}

func (s *Service) evaluate(ctx context.Context, channel Channel, userID int64) (bool, error) {
	snap := AccessSnapshot{}
	member, err := s.repo.IsMember(ctx, channel.ID, userID)
	if err != nil {
		return false, err
	}
	snap.IsMember = member

	if channel.Kind == KindRestricted {
		activeIDs, err := s.roles.ActiveRoleIDs(ctx, userID)
		if err != nil {
			return false, err
		}
		snap.ActiveRoleIDs = SnapshotRoles(activeIDs)
	}

	permitted, err := s.repo.PermittedRoleIDs(ctx, channel.ID)
	if err != nil {
		return false, err
	}
	return Evaluate(channel.Kind, permitted, snap), nil
}
