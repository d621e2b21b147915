package profiles

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campuslink/campuslink/internal/roles"
	"github.com/campuslink/campuslink/internal/shared"
)

type fakeProfileRepo struct {
	nextID   int64
	profiles map[int64]Profile
	follows  map[[2]int64]bool
	recent   map[int64]*recentEntry
}

type recentEntry struct {
	RecentSearch
	ownerID int64
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{
		nextID:   1,
		profiles: make(map[int64]Profile),
		follows:  make(map[[2]int64]bool),
		recent:   make(map[int64]*recentEntry),
	}
}

func (f *fakeProfileRepo) addProfile(username, fullname string) Profile {
	p := Profile{ID: f.nextID, Username: username, Fullname: fullname}
	f.nextID++
	f.profiles[p.ID] = p
	return p
}

func (f *fakeProfileRepo) GetProfile(_ context.Context, id int64) (Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	for key, on := range f.follows {
		if !on {
			continue
		}
		if key[1] == id {
			p.Followers++
		}
		if key[0] == id {
			p.Following++
		}
	}
	return p, nil
}

func (f *fakeProfileRepo) FindByUsername(_ context.Context, username string) (Profile, error) {
	for id, p := range f.profiles {
		if p.Username == username {
			return f.GetProfile(context.Background(), id)
		}
	}
	return Profile{}, ErrNotFound
}

func (f *fakeProfileRepo) Search(_ context.Context, folded string, limit int) ([]SearchResult, error) {
	var out []SearchResult
	for _, p := range f.profiles {
		if strings.Contains(shared.Fold(p.Fullname), folded) || strings.Contains(strings.ToLower(p.Username), folded) {
			out = append(out, SearchResult{ID: p.ID, Username: p.Username, Fullname: p.Fullname})
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeProfileRepo) UpdateProfile(_ context.Context, userID int64, email, photoURL, bio string) error {
	p, ok := f.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.Email, p.PhotoURL, p.Bio = email, photoURL, bio
	f.profiles[userID] = p
	return nil
}

func (f *fakeProfileRepo) Follow(_ context.Context, followerID, followedID int64) error {
	f.follows[[2]int64{followerID, followedID}] = true
	return nil
}

func (f *fakeProfileRepo) Unfollow(_ context.Context, followerID, followedID int64) error {
	delete(f.follows, [2]int64{followerID, followedID})
	return nil
}

func (f *fakeProfileRepo) IsFollowing(_ context.Context, followerID, followedID int64) (bool, error) {
	return f.follows[[2]int64{followerID, followedID}], nil
}

func (f *fakeProfileRepo) RecordSearch(_ context.Context, userID, targetID int64) error {
	for _, rec := range f.recent {
		if rec.ownerID == userID && rec.Target.ID == targetID {
			rec.SearchedAt = time.Now()
			return nil
		}
	}
	p := f.profiles[targetID]
	rec := &recentEntry{ownerID: userID}
	rec.ID = f.nextID
	rec.Target = SearchResult{ID: p.ID, Username: p.Username, Fullname: p.Fullname}
	rec.SearchedAt = time.Now()
	f.nextID++
	f.recent[rec.ID] = rec
	return nil
}

func (f *fakeProfileRepo) RecentSearches(_ context.Context, userID int64, limit int) ([]RecentSearch, error) {
	var out []RecentSearch
	for _, rec := range f.recent {
		if rec.ownerID == userID {
			out = append(out, rec.RecentSearch)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeProfileRepo) RemoveRecentSearch(_ context.Context, userID, searchID int64) error {
	if rec, ok := f.recent[searchID]; ok && rec.ownerID == userID {
		delete(f.recent, searchID)
	}
	return nil
}

func (f *fakeProfileRepo) ClearRecentSearches(_ context.Context, userID int64) error {
	for id, rec := range f.recent {
		if rec.ownerID == userID {
			delete(f.recent, id)
		}
	}
	return nil
}

type stubRolesPort struct {
	assignments map[int64][]roles.UserRole
}

func (s *stubRolesPort) UserRoles(_ context.Context, userID int64) ([]roles.UserRole, error) {
	return s.assignments[userID], nil
}

func newProfileService(repo *fakeProfileRepo, rp *stubRolesPort) *Service {
	if rp == nil {
		rp = &stubRolesPort{assignments: map[int64][]roles.UserRole{}}
	}
	return NewService(repo, rp)
}

func TestFoldStripsAccents(t *testing.T) {
	require.Equal(t, "fisica", shared.Fold("Física"))
	require.Equal(t, "joao da silva", shared.Fold("João da Silva"))
	require.Equal(t, "atletica", shared.Fold("ATLÉTICA"))
}

func TestSearchIsAccentInsensitive(t *testing.T) {
	repo := newFakeProfileRepo()
	target := repo.addProfile("joao", "João da Silva")
	viewer := repo.addProfile("ana", "Ana Souza")
	svc := newProfileService(repo, nil)

	page, err := svc.Search(context.Background(), viewer.ID, "joao")
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	require.Equal(t, target.ID, page.Results[0].ID)
}

func TestSearchExactUsernameSelectsAndRecords(t *testing.T) {
	repo := newFakeProfileRepo()
	target := repo.addProfile("joao", "João da Silva")
	viewer := repo.addProfile("ana", "Ana Souza")
	rp := &stubRolesPort{assignments: map[int64][]roles.UserRole{
		target.ID: {
			{Role: roles.Role{Name: "Monitor"}, Active: true},
			{Role: roles.Role{Name: "Atlética"}, Active: false},
		},
	}}
	svc := newProfileService(repo, rp)

	page, err := svc.Search(context.Background(), viewer.ID, "joao")
	require.NoError(t, err)
	require.NotNil(t, page.Selected)
	require.Equal(t, target.ID, page.Selected.ID)
	// Only active roles show on the card.
	require.Equal(t, []string{"Monitor"}, page.Selected.Roles)
	require.False(t, page.Selected.FollowedByViewer)

	page, err = svc.Search(context.Background(), viewer.ID, "")
	require.NoError(t, err)
	require.Len(t, page.Recent, 1)
	require.Equal(t, target.ID, page.Recent[0].Target.ID)
}

func TestSearchOwnProfileNotRecorded(t *testing.T) {
	repo := newFakeProfileRepo()
	viewer := repo.addProfile("ana", "Ana Souza")
	svc := newProfileService(repo, nil)

	page, err := svc.Search(context.Background(), viewer.ID, "ana")
	require.NoError(t, err)
	require.NotNil(t, page.Selected)
	require.Empty(t, page.Recent)
}

func TestFollowAndUnfollow(t *testing.T) {
	repo := newFakeProfileRepo()
	target := repo.addProfile("joao", "João da Silva")
	viewer := repo.addProfile("ana", "Ana Souza")
	svc := newProfileService(repo, nil)

	require.NoError(t, svc.Follow(context.Background(), viewer.ID, target.ID))
	profile, err := repo.GetProfile(context.Background(), target.ID)
	require.NoError(t, err)
	require.Equal(t, 1, profile.Followers)

	require.NoError(t, svc.Unfollow(context.Background(), viewer.ID, target.ID))
	profile, err = repo.GetProfile(context.Background(), target.ID)
	require.NoError(t, err)
	require.Zero(t, profile.Followers)
}

func TestFollowRejectsSelfAndUnknown(t *testing.T) {
	repo := newFakeProfileRepo()
	viewer := repo.addProfile("ana", "Ana Souza")
	svc := newProfileService(repo, nil)

	require.ErrorIs(t, svc.Follow(context.Background(), viewer.ID, viewer.ID), ErrSelfFollow)
	require.ErrorIs(t, svc.Follow(context.Background(), viewer.ID, 999), ErrNotFound)
}

func TestClearRecentSearches(t *testing.T) {
	repo := newFakeProfileRepo()
	target := repo.addProfile("joao", "João da Silva")
	viewer := repo.addProfile("ana", "Ana Souza")
	svc := newProfileService(repo, nil)

	require.NoError(t, repo.RecordSearch(context.Background(), viewer.ID, target.ID))
	require.NoError(t, svc.ClearRecentSearches(context.Background(), viewer.ID))

	page, err := svc.Search(context.Background(), viewer.ID, "")
	require.NoError(t, err)
	require.Empty(t, page.Recent)
}
