// Package requests implements the creation-request workflow for
// channels and roles: submission, pending storage, staff approval that
// materializes the real entity, and refusal with a recorded reason.
package requests

import (
	"errors"
	"time"

	"github.com/campuslink/campuslink/internal/channels"
)

// Status is the lifecycle state of a request. Approved and refused are
// terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRefused  Status = "refused"
)

// ChannelRequest proposes a new channel awaiting staff decision.
type ChannelRequest struct {
	ID            int64
	Name          string
	Description   string
	Kind          channels.Kind
	Avatar        string
	RoleIDs       []int64
	RequestedBy   int64
	Status        Status
	DecidedBy     *int64
	RefusalReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RoleRequest proposes a new role awaiting staff decision.
type RoleRequest struct {
	ID            int64
	Name          string
	Description   string
	Color         string
	RequestedBy   int64
	Status        Status
	DecidedBy     *int64
	RefusalReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ChannelRequestView decorates a request for the admin listing.
type ChannelRequestView struct {
	ChannelRequest
	RequestedByName string
}

// RoleRequestView decorates a request for the admin listing.
type RoleRequestView struct {
	RoleRequest
	RequestedByName string
}

// Stats summarizes the admin panel counters.
type Stats struct {
	Users                  int
	Channels               int
	Roles                  int
	PendingChannelRequests int
	PendingRoleRequests    int
}

var (
	// ErrNotFound indicates the request does not exist.
	ErrNotFound = errors.New("requests: not found")
	// ErrValidation indicates malformed or missing submission fields.
	ErrValidation = errors.New("requests: invalid input")
	// ErrDuplicateName indicates a name collision with an existing
	// entity or pending request.
	ErrDuplicateName = errors.New("requests: duplicate name")
	// ErrInvalidState indicates a transition attempted out of a
	// terminal state.
	ErrInvalidState = errors.New("requests: invalid state transition")
)
