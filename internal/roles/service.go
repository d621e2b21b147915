package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/campuslink/campuslink/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, role Role) (int64, error)
	DeleteRole(ctx context.Context, id int64) (int64, error)
	ToggleAssignment(ctx context.Context, userID, roleID int64) (bool, error)
	ListUserRoles(ctx context.Context, userID int64) ([]UserRole, error)
	ActiveRoleIDs(ctx context.Context, userID int64) ([]int64, error)
}

// AuditPort records administrative actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles role business logic.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// ListRoles returns the role catalog ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRoleInput describes a direct role creation.
type CreateRoleInput struct {
	Name        string
	Description string
	Color       string
}

// CreateRole inserts a role directly, bypassing the request workflow.
// Staff only.
func (s *Service) CreateRole(ctx context.Context, actor shared.Actor, input CreateRoleInput) (Role, error) {
	if err := shared.RequireStaff(actor); err != nil {
		return Role{}, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Role{}, ErrValidation
	}
	role := Role{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Color:       input.Color,
		CreatedBy:   actor.ID,
	}
	if role.Color == "" {
		role.Color = DefaultColor
	}
	id, err := s.repo.CreateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	role.ID = id
	s.recordAudit(ctx, actor.ID, "ROLE_CREATE", id, map[string]any{"name": role.Name})
	return role, nil
}

// DeleteRole removes a role. Staff only.
func (s *Service) DeleteRole(ctx context.Context, actor shared.Actor, id int64) error {
	if err := shared.RequireStaff(actor); err != nil {
		return err
	}
	rows, err := s.repo.DeleteRole(ctx, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	s.recordAudit(ctx, actor.ID, "ROLE_DELETE", id, nil)
	return nil
}

// ToggleRole flips the active flag of the caller's assignment,
// creating an active one when the user never held the role. Returns
// the resulting active state.
func (s *Service) ToggleRole(ctx context.Context, userID, roleID int64) (bool, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return false, err
	}
	return s.repo.ToggleAssignment(ctx, userID, roleID)
}

// UserRoles returns all assignments of a user with their role data.
func (s *Service) UserRoles(ctx context.Context, userID int64) ([]UserRole, error) {
	return s.repo.ListUserRoles(ctx, userID)
}

// ActiveRoleIDs returns the IDs of the user's currently active roles.
func (s *Service) ActiveRoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.repo.ActiveRoleIDs(ctx, userID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "role", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
