package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campuslink/campuslink/internal/shared"
)

type fakeRoleRepo struct {
	nextID int64
	roles  map[int64]Role
	active map[[2]int64]bool
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{nextID: 1, roles: make(map[int64]Role), active: make(map[[2]int64]bool)}
}

func (f *fakeRoleRepo) ListRoles(context.Context) ([]Role, error) {
	out := make([]Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRoleRepo) GetRole(_ context.Context, id int64) (Role, error) {
	role, ok := f.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (f *fakeRoleRepo) CreateRole(_ context.Context, role Role) (int64, error) {
	for _, existing := range f.roles {
		if existing.Name == role.Name {
			return 0, ErrDuplicateName
		}
	}
	role.ID = f.nextID
	f.nextID++
	f.roles[role.ID] = role
	return role.ID, nil
}

func (f *fakeRoleRepo) DeleteRole(_ context.Context, id int64) (int64, error) {
	if _, ok := f.roles[id]; !ok {
		return 0, nil
	}
	delete(f.roles, id)
	return 1, nil
}

func (f *fakeRoleRepo) ToggleAssignment(_ context.Context, userID, roleID int64) (bool, error) {
	key := [2]int64{userID, roleID}
	if _, ok := f.active[key]; !ok {
		f.active[key] = true
		return true, nil
	}
	f.active[key] = !f.active[key]
	return f.active[key], nil
}

func (f *fakeRoleRepo) ListUserRoles(_ context.Context, userID int64) ([]UserRole, error) {
	var out []UserRole
	for key, active := range f.active {
		if key[0] != userID {
			continue
		}
		out = append(out, UserRole{Role: f.roles[key[1]], Active: active})
	}
	return out, nil
}

func (f *fakeRoleRepo) ActiveRoleIDs(_ context.Context, userID int64) ([]int64, error) {
	var out []int64
	for key, active := range f.active {
		if key[0] == userID && active {
			out = append(out, key[1])
		}
	}
	return out, nil
}

func TestCreateRoleRequiresStaff(t *testing.T) {
	svc := NewService(newFakeRoleRepo(), nil)

	_, err := svc.CreateRole(context.Background(), shared.Actor{ID: 7}, CreateRoleInput{Name: "Monitor"})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestCreateRoleAppliesDefaultColor(t *testing.T) {
	svc := NewService(newFakeRoleRepo(), nil)

	role, err := svc.CreateRole(context.Background(), shared.Actor{ID: 1, IsStaff: true}, CreateRoleInput{Name: "  Monitor  "})
	require.NoError(t, err)
	require.Equal(t, "Monitor", role.Name)
	require.Equal(t, DefaultColor, role.Color)
	require.NotZero(t, role.ID)
}

func TestCreateRoleRejectsDuplicateName(t *testing.T) {
	svc := NewService(newFakeRoleRepo(), nil)
	staff := shared.Actor{ID: 1, IsStaff: true}

	_, err := svc.CreateRole(context.Background(), staff, CreateRoleInput{Name: "Atlética"})
	require.NoError(t, err)

	_, err = svc.CreateRole(context.Background(), staff, CreateRoleInput{Name: "Atlética"})
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestToggleRoleFlipsActiveFlag(t *testing.T) {
	repo := newFakeRoleRepo()
	svc := NewService(repo, nil)
	staff := shared.Actor{ID: 1, IsStaff: true}

	role, err := svc.CreateRole(context.Background(), staff, CreateRoleInput{Name: "Calouro"})
	require.NoError(t, err)

	active, err := svc.ToggleRole(context.Background(), 42, role.ID)
	require.NoError(t, err)
	require.True(t, active)

	ids, err := svc.ActiveRoleIDs(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, []int64{role.ID}, ids)

	active, err = svc.ToggleRole(context.Background(), 42, role.ID)
	require.NoError(t, err)
	require.False(t, active)

	ids, err = svc.ActiveRoleIDs(context.Background(), 42)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestToggleRoleUnknownRole(t *testing.T) {
	svc := NewService(newFakeRoleRepo(), nil)

	_, err := svc.ToggleRole(context.Background(), 42, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRoleNotFound(t *testing.T) {
	svc := NewService(newFakeRoleRepo(), nil)

	err := svc.DeleteRole(context.Background(), shared.Actor{ID: 1, IsStaff: true}, 5)
	require.ErrorIs(t, err, ErrNotFound)
}
