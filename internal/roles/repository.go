package roles

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

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, color, created_by, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, description, color, created_by, created_at FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a role. Name uniqueness is enforced by the
// storage layer.
func (r *Repository) CreateRole(ctx context.Context, role Role) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO roles (name, description, color, created_by, created_at)
VALUES ($1, $2, $3, $4, NOW()) RETURNING id`, role.Name, role.Description, role.Color, role.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateName
		}
		return 0, err
	}
	return id, nil
}

// DeleteRole removes a role and returns affected row count.
func (r *Repository) DeleteRole(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ToggleAssignment flips the assignment's active flag, inserting an
// active row when none exists. The single statement keeps concurrent
// toggles race-free.
func (r *Repository) ToggleAssignment(ctx context.Context, userID, roleID int64) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `INSERT INTO user_roles (user_id, role_id, active, assigned_at)
VALUES ($1, $2, TRUE, NOW())
ON CONFLICT (user_id, role_id) DO UPDATE SET active = NOT user_roles.active
RETURNING active`, userID, roleID).Scan(&active)
	if err != nil {
		return false, err
	}
	return active, nil
}

// ListUserRoles returns all assignments of a user with their roles.
func (r *Repository) ListUserRoles(ctx context.Context, userID int64) ([]UserRole, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.id, r.name, r.description, r.color, r.created_by, r.created_at, ur.active
FROM user_roles ur JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = $1 ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []UserRole
	for rows.Next() {
		var ur UserRole
		if err := rows.Scan(&ur.Role.ID, &ur.Role.Name, &ur.Role.Description, &ur.Role.Color, &ur.Role.CreatedBy, &ur.Role.CreatedAt, &ur.Active); err != nil {
			return nil, err
		}
		assignments = append(assignments, ur)
	}
	return assignments, rows.Err()
}

// ActiveRoleIDs returns IDs of the user's active role assignments.
func (r *Repository) ActiveRoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1 AND active`, userID)
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

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Color, &role.CreatedBy, &role.CreatedAt)
	return role, err
}

var _ RepositoryPort = (*Repository)(nil)
