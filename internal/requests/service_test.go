package requests

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campuslink/campuslink/internal/channels"
	"github.com/campuslink/campuslink/internal/roles"
	"github.com/campuslink/campuslink/internal/shared"
)

// fakeWorkflowRepo keeps the full workflow state in memory, including
// the entities a decision materializes, so tests can assert the
// all-or-nothing outcome of an approval.
type fakeWorkflowRepo struct {
	nextID      int64
	channelReqs map[int64]*ChannelRequest
	roleReqs    map[int64]*RoleRequest

	roles          map[int64]roles.Role
	channels       map[int64]channels.Channel
	channelRoles   map[int64][]int64
	channelMembers map[int64][]channels.Member
}

func newFakeWorkflowRepo() *fakeWorkflowRepo {
	return &fakeWorkflowRepo{
		nextID:         1,
		channelReqs:    make(map[int64]*ChannelRequest),
		roleReqs:       make(map[int64]*RoleRequest),
		roles:          make(map[int64]roles.Role),
		channels:       make(map[int64]channels.Channel),
		channelRoles:   make(map[int64][]int64),
		channelMembers: make(map[int64][]channels.Member),
	}
}

func (f *fakeWorkflowRepo) addRole(name string) roles.Role {
	role := roles.Role{ID: f.nextID, Name: name, Color: roles.DefaultColor}
	f.nextID++
	f.roles[role.ID] = role
	return role
}

func (f *fakeWorkflowRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// The fake applies writes directly; atomicity is asserted by the
	// tests observing state only after the callback returns.
	return fn(ctx, f)
}

func (f *fakeWorkflowRepo) GetChannelRequest(_ context.Context, id int64) (ChannelRequest, error) {
	req, ok := f.channelReqs[id]
	if !ok {
		return ChannelRequest{}, ErrNotFound
	}
	return *req, nil
}

func (f *fakeWorkflowRepo) GetRoleRequest(_ context.Context, id int64) (RoleRequest, error) {
	req, ok := f.roleReqs[id]
	if !ok {
		return RoleRequest{}, ErrNotFound
	}
	return *req, nil
}

func (f *fakeWorkflowRepo) ListPendingChannelRequests(context.Context) ([]ChannelRequestView, error) {
	var out []ChannelRequestView
	for _, req := range f.channelReqs {
		if req.Status == StatusPending {
			out = append(out, ChannelRequestView{ChannelRequest: *req})
		}
	}
	return out, nil
}

func (f *fakeWorkflowRepo) ListPendingRoleRequests(context.Context) ([]RoleRequestView, error) {
	var out []RoleRequestView
	for _, req := range f.roleReqs {
		if req.Status == StatusPending {
			out = append(out, RoleRequestView{RoleRequest: *req})
		}
	}
	return out, nil
}

func (f *fakeWorkflowRepo) CreateChannelRequest(_ context.Context, req ChannelRequest) (int64, error) {
	req.ID = f.nextID
	f.nextID++
	req.CreatedAt = time.Now()
	f.channelReqs[req.ID] = &req
	return req.ID, nil
}

func (f *fakeWorkflowRepo) CreateRoleRequest(_ context.Context, req RoleRequest) (int64, error) {
	req.ID = f.nextID
	f.nextID++
	req.CreatedAt = time.Now()
	f.roleReqs[req.ID] = &req
	return req.ID, nil
}

func (f *fakeWorkflowRepo) CountRolesByIDs(_ context.Context, ids []int64) (int, error) {
	count := 0
	for _, id := range ids {
		if _, ok := f.roles[id]; ok {
			count++
		}
	}
	return count, nil
}

func (f *fakeWorkflowRepo) RoleNameTaken(_ context.Context, name string) (bool, error) {
	for _, role := range f.roles {
		if strings.EqualFold(role.Name, name) {
			return true, nil
		}
	}
	for _, req := range f.roleReqs {
		if req.Status == StatusPending && strings.EqualFold(req.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWorkflowRepo) Stats(context.Context) (Stats, error) {
	st := Stats{Channels: len(f.channels), Roles: len(f.roles)}
	for _, req := range f.channelReqs {
		if req.Status == StatusPending {
			st.PendingChannelRequests++
		}
	}
	for _, req := range f.roleReqs {
		if req.Status == StatusPending {
			st.PendingRoleRequests++
		}
	}
	return st, nil
}

func (f *fakeWorkflowRepo) GetChannelRequestForUpdate(ctx context.Context, id int64) (ChannelRequest, error) {
	return f.GetChannelRequest(ctx, id)
}

func (f *fakeWorkflowRepo) GetRoleRequestForUpdate(ctx context.Context, id int64) (RoleRequest, error) {
	return f.GetRoleRequest(ctx, id)
}

func (f *fakeWorkflowRepo) MaterializeChannel(_ context.Context, req ChannelRequest) (int64, error) {
	channel := channels.Channel{
		ID:          f.nextID,
		Name:        req.Name,
		Description: req.Description,
		Kind:        req.Kind,
		Avatar:      req.Avatar,
		CreatedBy:   req.RequestedBy,
		Active:      true,
	}
	f.nextID++
	f.channels[channel.ID] = channel
	f.channelRoles[channel.ID] = append([]int64(nil), req.RoleIDs...)
	f.channelMembers[channel.ID] = append(f.channelMembers[channel.ID], channels.Member{
		ChannelID: channel.ID,
		UserID:    req.RequestedBy,
		Role:      channels.MemberAdmin,
	})
	return channel.ID, nil
}

func (f *fakeWorkflowRepo) MaterializeRole(_ context.Context, req RoleRequest) (int64, error) {
	for _, role := range f.roles {
		if strings.EqualFold(role.Name, req.Name) {
			return 0, ErrDuplicateName
		}
	}
	role := roles.Role{ID: f.nextID, Name: req.Name, Description: req.Description, Color: req.Color, CreatedBy: req.RequestedBy}
	f.nextID++
	f.roles[role.ID] = role
	return role.ID, nil
}

func (f *fakeWorkflowRepo) MarkChannelRequestDecided(_ context.Context, id int64, status Status, decidedBy int64, reason string) error {
	req, ok := f.channelReqs[id]
	if !ok {
		return ErrNotFound
	}
	if req.Status != StatusPending {
		return ErrInvalidState
	}
	req.Status = status
	req.DecidedBy = &decidedBy
	req.RefusalReason = reason
	return nil
}

func (f *fakeWorkflowRepo) MarkRoleRequestDecided(_ context.Context, id int64, status Status, decidedBy int64, reason string) error {
	req, ok := f.roleReqs[id]
	if !ok {
		return ErrNotFound
	}
	if req.Status != StatusPending {
		return ErrInvalidState
	}
	req.Status = status
	req.DecidedBy = &decidedBy
	req.RefusalReason = reason
	return nil
}

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) Notify(_ context.Context, _ int64, title, _ string) error {
	f.sent = append(f.sent, title)
	return nil
}

var (
	student = int64(10)
	staff   = shared.Actor{ID: 1, IsStaff: true}
	member  = shared.Actor{ID: 2}
)

func TestSubmitChannelRequestRejectsEmptyName(t *testing.T) {
	svc := NewService(newFakeWorkflowRepo(), nil, nil)

	_, err := svc.SubmitChannelRequest(context.Background(), student, SubmitChannelInput{Name: "  ", Kind: channels.KindPublic})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSubmitChannelRequestRejectsUnknownKind(t *testing.T) {
	svc := NewService(newFakeWorkflowRepo(), nil, nil)

	_, err := svc.SubmitChannelRequest(context.Background(), student, SubmitChannelInput{Name: "Geral", Kind: channels.Kind("secret")})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSubmitRestrictedChannelRequestRequiresExistingRoles(t *testing.T) {
	repo := newFakeWorkflowRepo()
	svc := NewService(repo, nil, nil)

	// Empty role set is rejected before anything is persisted.
	_, err := svc.SubmitChannelRequest(context.Background(), student, SubmitChannelInput{Name: "Física II", Kind: channels.KindRestricted})
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, repo.channelReqs)

	// As is a role set naming roles that do not exist.
	_, err = svc.SubmitChannelRequest(context.Background(), student, SubmitChannelInput{Name: "Física II", Kind: channels.KindRestricted, RoleIDs: []int64{99}})
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, repo.channelReqs)
}

func TestSubmitChannelRequestDropsRolesForNonRestricted(t *testing.T) {
	repo := newFakeWorkflowRepo()
	role := repo.addRole("Aluno")
	svc := NewService(repo, nil, nil)

	req, err := svc.SubmitChannelRequest(context.Background(), student, SubmitChannelInput{Name: "Geral", Kind: channels.KindPublic, RoleIDs: []int64{role.ID}})
	require.NoError(t, err)
	require.Empty(t, req.RoleIDs)
}

func TestSubmitRoleRequestRejectsCollisions(t *testing.T) {
	repo := newFakeWorkflowRepo()
	repo.addRole("Monitor")
	svc := NewService(repo, nil, nil)

	_, err := svc.SubmitRoleRequest(context.Background(), student, SubmitRoleInput{Name: "monitor"})
	require.ErrorIs(t, err, ErrDuplicateName)

	// A pending request also blocks the name.
	_, err = svc.SubmitRoleRequest(context.Background(), student, SubmitRoleInput{Name: "Atlética"})
	require.NoError(t, err)
	_, err = svc.SubmitRoleRequest(context.Background(), int64(11), SubmitRoleInput{Name: "Atlética"})
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestSubmitRoleRequestAppliesDefaultColor(t *testing.T) {
	svc := NewService(newFakeWorkflowRepo(), nil, nil)

	req, err := svc.SubmitRoleRequest(context.Background(), student, SubmitRoleInput{Name: "Monitor"})
	require.NoError(t, err)
	require.Equal(t, roles.DefaultColor, req.Color)
	require.Equal(t, StatusPending, req.Status)
}

func TestApproveChannelRequestRequiresStaff(t *testing.T) {
	repo := newFakeWorkflowRepo()
	svc := NewService(repo, nil, nil)

	req, err := svc.SubmitChannelRequest(context.Background(), student, SubmitChannelInput{Name: "Geral", Kind: channels.KindPublic})
	require.NoError(t, err)

	err = svc.ApproveChannelRequest(context.Background(), member, req.ID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
	require.Equal(t, StatusPending, repo.channelReqs[req.ID].Status)
	require.Empty(t, repo.channels)
}

func TestRefuseRequiresReason(t *testing.T) {
	repo := newFakeWorkflowRepo()
	svc := NewService(repo, nil, nil)

	req, err := svc.SubmitChannelRequest(context.Background(), student, SubmitChannelInput{Name: "Geral", Kind: channels.KindPublic})
	require.NoError(t, err)

	err = svc.RefuseChannelRequest(context.Background(), staff, req.ID, "   ")
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, StatusPending, repo.channelReqs[req.ID].Status)
}

func TestRefuseChannelRequestRecordsReasonAndApprover(t *testing.T) {
	repo := newFakeWorkflowRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, nil, notifier)

	req, err := svc.SubmitChannelRequest(context.Background(), student, SubmitChannelInput{Name: "Geral", Kind: channels.KindPublic})
	require.NoError(t, err)

	err = svc.RefuseChannelRequest(context.Background(), staff, req.ID, "Canal duplicado")
	require.NoError(t, err)

	stored := repo.channelReqs[req.ID]
	require.Equal(t, StatusRefused, stored.Status)
	require.NotNil(t, stored.DecidedBy)
	require.Equal(t, staff.ID, *stored.DecidedBy)
	require.Equal(t, "Canal duplicado", stored.RefusalReason)
	require.Empty(t, repo.channels)
	require.Equal(t, []string{"Canal recusado"}, notifier.sent)
}

func TestApproveRoleRequestMaterializesRole(t *testing.T) {
	repo := newFakeWorkflowRepo()
	svc := NewService(repo, nil, nil)

	req, err := svc.SubmitRoleRequest(context.Background(), student, SubmitRoleInput{Name: "Monitor"})
	require.NoError(t, err)

	require.NoError(t, svc.ApproveRoleRequest(context.Background(), staff, req.ID))
	require.Equal(t, StatusApproved, repo.roleReqs[req.ID].Status)

	taken, err := repo.RoleNameTaken(context.Background(), "Monitor")
	require.NoError(t, err)
	require.True(t, taken)
}

func TestDecidingTerminalRequestFails(t *testing.T) {
	repo := newFakeWorkflowRepo()
	svc := NewService(repo, nil, nil)

	req, err := svc.SubmitRoleRequest(context.Background(), student, SubmitRoleInput{Name: "Monitor"})
	require.NoError(t, err)
	require.NoError(t, svc.RefuseRoleRequest(context.Background(), staff, req.ID, "Sem necessidade"))

	err = svc.ApproveRoleRequest(context.Background(), staff, req.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Empty(t, repo.roles)

	err = svc.RefuseRoleRequest(context.Background(), staff, req.ID, "De novo")
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, "Sem necessidade", repo.roleReqs[req.ID].RefusalReason)
}

func TestRestrictedChannelApprovalScenario(t *testing.T) {
	repo := newFakeWorkflowRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, nil, notifier)
	ctx := context.Background()

	// The restricted request is rejected while the role it needs does
	// not exist yet.
	_, err := svc.SubmitChannelRequest(ctx, student, SubmitChannelInput{Name: "Física II", Kind: channels.KindRestricted})
	require.ErrorIs(t, err, ErrValidation)

	role := repo.addRole("Aluno-Física")

	req, err := svc.SubmitChannelRequest(ctx, student, SubmitChannelInput{
		Name:    "Física II",
		Kind:    channels.KindRestricted,
		RoleIDs: []int64{role.ID, role.ID},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, []int64{role.ID}, req.RoleIDs)

	require.NoError(t, svc.ApproveChannelRequest(ctx, staff, req.ID))

	// Exactly one channel exists, restricted, with the role set copied
	// and the requester as admin member.
	require.Len(t, repo.channels, 1)
	var created channels.Channel
	for _, c := range repo.channels {
		created = c
	}
	require.Equal(t, "Física II", created.Name)
	require.Equal(t, channels.KindRestricted, created.Kind)
	require.Equal(t, []int64{role.ID}, repo.channelRoles[created.ID])
	members := repo.channelMembers[created.ID]
	require.Len(t, members, 1)
	require.Equal(t, student, members[0].UserID)
	require.Equal(t, channels.MemberAdmin, members[0].Role)

	stored := repo.channelReqs[req.ID]
	require.Equal(t, StatusApproved, stored.Status)
	require.NotNil(t, stored.DecidedBy)
	require.Equal(t, staff.ID, *stored.DecidedBy)

	// A second approval attempt fails without creating a second
	// channel.
	err = svc.ApproveChannelRequest(ctx, staff, req.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Len(t, repo.channels, 1)

	require.Equal(t, []string{"Canal aprovado"}, notifier.sent)
}
