// Package channels implements topic channels, their access control and
// the chat messages posted into them.
package channels

import (
	"errors"
	"time"
)

// Kind is the visibility class of a channel.
type Kind string

const (
	// KindPublic channels are readable by every authenticated user.
	KindPublic Kind = "public"
	// KindPrivate channels are readable by members only.
	KindPrivate Kind = "private"
	// KindRestricted channels are readable by holders of at least one
	// permitted role.
	KindRestricted Kind = "restricted"
)

// Valid reports whether the kind is one of the known visibility
// classes.
func (k Kind) Valid() bool {
	switch k {
	case KindPublic, KindPrivate, KindRestricted:
		return true
	}
	return false
}

// Member roles inside a channel.
const (
	MemberAdmin     = "admin"
	MemberModerator = "moderator"
	MemberRegular   = "member"
)

// Channel is a message thread with an access-control kind.
type Channel struct {
	ID          int64
	Name        string
	Description string
	Kind        Kind
	Avatar      string
	AvatarColor string
	CreatedBy   int64
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Member links a user to a channel with a per-channel role and the
// read cursor for unread counts.
type Member struct {
	ChannelID  int64
	UserID     int64
	Role       string
	JoinedAt   time.Time
	LastReadAt time.Time
}

// Message belongs to exactly one channel and one author.
type Message struct {
	ID            int64
	ChannelID     int64
	AuthorID      int64
	Body          string
	AttachmentKey string
	ReplyTo       *int64
	Edited        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReactionCount aggregates reactions of one emoji on a message.
type ReactionCount struct {
	Emoji string
	Count int
}

// MessageView is a message decorated for rendering.
type MessageView struct {
	ID            int64
	AuthorID      int64
	AuthorName    string
	Body          string
	AttachmentURL string
	ReplyTo       *int64
	Edited        bool
	CreatedAt     time.Time
	Reactions     []ReactionCount
}

// Summary describes a channel in the sidebar/dashboard listing.
type Summary struct {
	Channel
	UnreadCount int
	LastMessage *Message
}

var (
	// ErrNotFound indicates the channel or message does not exist.
	ErrNotFound = errors.New("channels: not found")
	// ErrAccessDenied indicates the access evaluation refused the user.
	ErrAccessDenied = errors.New("channels: access denied")
	// ErrValidation indicates invalid message input.
	ErrValidation = errors.New("channels: invalid input")
	// ErrReplyMismatch indicates a reply referencing a message from
	// another channel.
	ErrReplyMismatch = errors.New("channels: reply references another channel")
)
