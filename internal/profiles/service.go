package profiles

import (
	"context"
	"strings"

	"github.com/campuslink/campuslink/internal/roles"
	"github.com/campuslink/campuslink/internal/shared"
)

// SearchLimit bounds the search listing.
const SearchLimit = 20

// RecentLimit bounds the recent-searches list.
const RecentLimit = 10

// RepositoryPort defines data access methods for profiles.
type RepositoryPort interface {
	GetProfile(ctx context.Context, id int64) (Profile, error)
	FindByUsername(ctx context.Context, username string) (Profile, error)
	Search(ctx context.Context, folded string, limit int) ([]SearchResult, error)
	UpdateProfile(ctx context.Context, userID int64, email, photoURL, bio string) error
	Follow(ctx context.Context, followerID, followedID int64) error
	Unfollow(ctx context.Context, followerID, followedID int64) error
	IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error)
	RecordSearch(ctx context.Context, userID, targetID int64) error
	RecentSearches(ctx context.Context, userID int64, limit int) ([]RecentSearch, error)
	RemoveRecentSearch(ctx context.Context, userID, searchID int64) error
	ClearRecentSearches(ctx context.Context, userID int64) error
}

// RolesPort resolves a user's role assignments.
type RolesPort interface {
	UserRoles(ctx context.Context, userID int64) ([]roles.UserRole, error)
}

// Service handles profile business logic.
type Service struct {
	repo  RepositoryPort
	roles RolesPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roles RolesPort) *Service {
	return &Service{repo: repo, roles: roles}
}

// Profile returns the user's own profile with all role assignments.
func (s *Service) Profile(ctx context.Context, userID int64) (Profile, []roles.UserRole, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, nil, err
	}
	assignments, err := s.roles.UserRoles(ctx, userID)
	if err != nil {
		return Profile{}, nil, err
	}
	return profile, assignments, nil
}

// UpdateProfileInput describes an edit submission.
type UpdateProfileInput struct {
	Email    string
	PhotoURL string
	Bio      string
}

// UpdateProfile applies a profile edit.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, input UpdateProfileInput) error {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	return s.repo.UpdateProfile(ctx, userID, email, strings.TrimSpace(input.PhotoURL), strings.TrimSpace(input.Bio))
}

// SearchPage is everything the search view renders.
type SearchPage struct {
	Query    string
	Selected *Card
	Results  []SearchResult
	Recent   []RecentSearch
}

// Search runs an accent-insensitive people search. A result whose
// username matches the query exactly becomes the selected card and is
// recorded in the viewer's recent searches.
func (s *Service) Search(ctx context.Context, viewerID int64, query string) (SearchPage, error) {
	page := SearchPage{Query: strings.TrimSpace(query)}

	if page.Query != "" {
		results, err := s.repo.Search(ctx, shared.Fold(page.Query), SearchLimit)
		if err != nil {
			return SearchPage{}, err
		}
		page.Results = results

		if profile, err := s.repo.FindByUsername(ctx, page.Query); err == nil {
			card, err := s.card(ctx, viewerID, profile)
			if err != nil {
				return SearchPage{}, err
			}
			page.Selected = &card
			if viewerID != profile.ID {
				if err := s.repo.RecordSearch(ctx, viewerID, profile.ID); err != nil {
					return SearchPage{}, err
				}
			}
		}
	}

	recent, err := s.repo.RecentSearches(ctx, viewerID, RecentLimit)
	if err != nil {
		return SearchPage{}, err
	}
	page.Recent = recent
	return page, nil
}

// Follow makes the viewer follow the target profile.
func (s *Service) Follow(ctx context.Context, viewerID, targetID int64) error {
	if viewerID == targetID {
		return ErrSelfFollow
	}
	if _, err := s.repo.GetProfile(ctx, targetID); err != nil {
		return err
	}
	return s.repo.Follow(ctx, viewerID, targetID)
}

// Unfollow removes the follow edge, if present.
func (s *Service) Unfollow(ctx context.Context, viewerID, targetID int64) error {
	return s.repo.Unfollow(ctx, viewerID, targetID)
}

// RemoveRecentSearch deletes one entry from the viewer's history.
func (s *Service) RemoveRecentSearch(ctx context.Context, viewerID, searchID int64) error {
	return s.repo.RemoveRecentSearch(ctx, viewerID, searchID)
}

// ClearRecentSearches wipes the viewer's history.
func (s *Service) ClearRecentSearches(ctx context.Context, viewerID int64) error {
	return s.repo.ClearRecentSearches(ctx, viewerID)
}

func (s *Service) card(ctx context.Context, viewerID int64, profile Profile) (Card, error) {
	card := Card{Profile: profile}
	assignments, err := s.roles.UserRoles(ctx, profile.ID)
	if err != nil {
		return Card{}, err
	}
	for _, assignment := range assignments {
		if assignment.Active {
			card.Roles = append(card.Roles, assignment.Role.Name)
		}
	}
	if viewerID != profile.ID {
		card.FollowedByViewer, err = s.repo.IsFollowing(ctx, viewerID, profile.ID)
		if err != nil {
			return Card{}, err
		}
	}
	return card, nil
}
