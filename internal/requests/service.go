package requests

import (
	"context"
	"fmt"
	"strings"

	"github.com/campuslink/campuslink/internal/channels"
	"github.com/campuslink/campuslink/internal/roles"
	"github.com/campuslink/campuslink/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetChannelRequest(ctx context.Context, id int64) (ChannelRequest, error)
	GetRoleRequest(ctx context.Context, id int64) (RoleRequest, error)
	ListPendingChannelRequests(ctx context.Context) ([]ChannelRequestView, error)
	ListPendingRoleRequests(ctx context.Context) ([]RoleRequestView, error)
	CreateChannelRequest(ctx context.Context, req ChannelRequest) (int64, error)
	CreateRoleRequest(ctx context.Context, req RoleRequest) (int64, error)
	CountRolesByIDs(ctx context.Context, ids []int64) (int, error)
	RoleNameTaken(ctx context.Context, name string) (bool, error)
	Stats(ctx context.Context) (Stats, error)
}

// TxRepository exposes the transactional operations of a terminal
// decision. Materialization and the status update run in one
// transaction so a partial outcome is never observable.
type TxRepository interface {
	GetChannelRequestForUpdate(ctx context.Context, id int64) (ChannelRequest, error)
	GetRoleRequestForUpdate(ctx context.Context, id int64) (RoleRequest, error)
	MaterializeChannel(ctx context.Context, req ChannelRequest) (int64, error)
	MaterializeRole(ctx context.Context, req RoleRequest) (int64, error)
	MarkChannelRequestDecided(ctx context.Context, id int64, status Status, decidedBy int64, reason string) error
	MarkRoleRequestDecided(ctx context.Context, id int64, status Status, decidedBy int64, reason string) error
}

// AuditPort records administrative actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NotifierPort informs the requester about terminal decisions.
type NotifierPort interface {
	Notify(ctx context.Context, userID int64, title, body string) error
}

// Service orchestrates the request workflow.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier NotifierPort
}

// NewService constructs the workflow service.
func NewService(repo RepositoryPort, audit AuditPort, notifier NotifierPort) *Service {
	return &Service{repo: repo, audit: audit, notifier: notifier}
}

// SubmitChannelInput describes a channel proposal.
type SubmitChannelInput struct {
	Name        string
	Description string
	Kind        channels.Kind
	Avatar      string
	RoleIDs     []int64
}

// SubmitChannelRequest validates and stores a channel proposal as
// pending. Restricted proposals must name at least one existing role.
func (s *Service) SubmitChannelRequest(ctx context.Context, userID int64, input SubmitChannelInput) (ChannelRequest, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ChannelRequest{}, ErrValidation
	}
	if !input.Kind.Valid() {
		return ChannelRequest{}, ErrValidation
	}

	roleIDs := dedupeIDs(input.RoleIDs)
	if input.Kind == channels.KindRestricted {
		if len(roleIDs) == 0 {
			return ChannelRequest{}, ErrValidation
		}
		count, err := s.repo.CountRolesByIDs(ctx, roleIDs)
		if err != nil {
			return ChannelRequest{}, err
		}
		if count != len(roleIDs) {
			return ChannelRequest{}, ErrValidation
		}
	} else {
		// Permitted roles are meaningful only for restricted channels.
		roleIDs = nil
	}

	req := ChannelRequest{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Kind:        input.Kind,
		Avatar:      strings.TrimSpace(input.Avatar),
		RoleIDs:     roleIDs,
		RequestedBy: userID,
		Status:      StatusPending,
	}
	id, err := s.repo.CreateChannelRequest(ctx, req)
	if err != nil {
		return ChannelRequest{}, err
	}
	req.ID = id
	return req, nil
}

// SubmitRoleInput describes a role proposal.
type SubmitRoleInput struct {
	Name        string
	Description string
	Color       string
}

// SubmitRoleRequest validates and stores a role proposal as pending.
// The proposed name may not collide with an existing role nor with
// another pending role request.
func (s *Service) SubmitRoleRequest(ctx context.Context, userID int64, input SubmitRoleInput) (RoleRequest, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return RoleRequest{}, ErrValidation
	}
	taken, err := s.repo.RoleNameTaken(ctx, name)
	if err != nil {
		return RoleRequest{}, err
	}
	if taken {
		return RoleRequest{}, ErrDuplicateName
	}

	req := RoleRequest{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Color:       input.Color,
		RequestedBy: userID,
		Status:      StatusPending,
	}
	if req.Color == "" {
		req.Color = roles.DefaultColor
	}
	id, err := s.repo.CreateRoleRequest(ctx, req)
	if err != nil {
		return RoleRequest{}, err
	}
	req.ID = id
	return req, nil
}

// ApproveChannelRequest materializes the channel and marks the request
// approved in one transaction. The requester becomes the channel's
// admin member and the permitted-role set is copied over. Staff only.
func (s *Service) ApproveChannelRequest(ctx context.Context, actor shared.Actor, id int64) error {
	if err := shared.RequireStaff(actor); err != nil {
		return err
	}
	var req ChannelRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.GetChannelRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return ErrInvalidState
		}
		if _, err := tx.MaterializeChannel(ctx, req); err != nil {
			return err
		}
		return tx.MarkChannelRequestDecided(ctx, id, StatusApproved, actor.ID, "")
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "CHANNEL_REQUEST_APPROVE", "channel_request", id, map[string]any{"name": req.Name})
	s.notify(ctx, req.RequestedBy, "Canal aprovado", fmt.Sprintf("Sua solicitação do canal %q foi aprovada.", req.Name))
	return nil
}

// RefuseChannelRequest marks a pending channel request refused with a
// required reason. No entity is created. Staff only.
func (s *Service) RefuseChannelRequest(ctx context.Context, actor shared.Actor, id int64, reason string) error {
	if err := shared.RequireStaff(actor); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrValidation
	}
	var req ChannelRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.GetChannelRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return ErrInvalidState
		}
		return tx.MarkChannelRequestDecided(ctx, id, StatusRefused, actor.ID, reason)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "CHANNEL_REQUEST_REFUSE", "channel_request", id, map[string]any{"reason": reason})
	s.notify(ctx, req.RequestedBy, "Canal recusado", fmt.Sprintf("Sua solicitação do canal %q foi recusada: %s", req.Name, reason))
	return nil
}

// ApproveRoleRequest materializes the role and marks the request
// approved in one transaction. Staff only.
func (s *Service) ApproveRoleRequest(ctx context.Context, actor shared.Actor, id int64) error {
	if err := shared.RequireStaff(actor); err != nil {
		return err
	}
	var req RoleRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.GetRoleRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return ErrInvalidState
		}
		if _, err := tx.MaterializeRole(ctx, req); err != nil {
			return err
		}
		return tx.MarkRoleRequestDecided(ctx, id, StatusApproved, actor.ID, "")
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "ROLE_REQUEST_APPROVE", "role_request", id, map[string]any{"name": req.Name})
	s.notify(ctx, req.RequestedBy, "Cargo aprovado", fmt.Sprintf("Sua solicitação do cargo %q foi aprovada.", req.Name))
	return nil
}

// RefuseRoleRequest marks a pending role request refused with a
// required reason. Staff only.
func (s *Service) RefuseRoleRequest(ctx context.Context, actor shared.Actor, id int64, reason string) error {
	if err := shared.RequireStaff(actor); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrValidation
	}
	var req RoleRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.GetRoleRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return ErrInvalidState
		}
		return tx.MarkRoleRequestDecided(ctx, id, StatusRefused, actor.ID, reason)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "ROLE_REQUEST_REFUSE", "role_request", id, map[string]any{"reason": reason})
	s.notify(ctx, req.RequestedBy, "Cargo recusado", fmt.Sprintf("Sua solicitação do cargo %q foi recusada: %s", req.Name, reason))
	return nil
}

// PendingChannelRequests lists pending channel proposals for review.
func (s *Service) PendingChannelRequests(ctx context.Context) ([]ChannelRequestView, error) {
	return s.repo.ListPendingChannelRequests(ctx)
}

// PendingRoleRequests lists pending role proposals for review.
func (s *Service) PendingRoleRequests(ctx context.Context) ([]RoleRequestView, error) {
	return s.repo.ListPendingRoleRequests(ctx)
}

// GetChannelRequest fetches a request by ID.
func (s *Service) GetChannelRequest(ctx context.Context, id int64) (ChannelRequest, error) {
	return s.repo.GetChannelRequest(ctx, id)
}

// GetRoleRequest fetches a request by ID.
func (s *Service) GetRoleRequest(ctx context.Context, id int64) (RoleRequest, error) {
	return s.repo.GetRoleRequest(ctx, id)
}

// AdminStats returns the admin panel counters.
func (s *Service) AdminStats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: entity, EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func (s *Service) notify(ctx context.Context, userID int64, title, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Notify(ctx, userID, title, body)
}

func dedupeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
