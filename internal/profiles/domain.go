// Package profiles implements the public profile pages, the
// accent-insensitive people search and the follow graph.
package profiles

import (
	"errors"
	"time"
)

// Profile is the public face of an account.
type Profile struct {
	ID        int64
	Username  string
	Fullname  string
	Matricula string
	Email     string
	Bio       string
	PhotoURL  string
	Followers int
	Following int
}

// SearchResult is a row in the search listing.
type SearchResult struct {
	ID       int64
	Username string
	Fullname string
}

// RecentSearch is a profile the user opened from the search page.
type RecentSearch struct {
	ID         int64
	Target     SearchResult
	SearchedAt time.Time
}

// Card is a profile decorated for the search page, relative to the
// viewer.
type Card struct {
	Profile
	Roles            []string
	FollowedByViewer bool
}

var (
	// ErrNotFound indicates the profile does not exist.
	ErrNotFound = errors.New("profiles: not found")
	// ErrSelfFollow indicates a user trying to follow themselves.
	ErrSelfFollow = errors.New("profiles: cannot follow yourself")
	// ErrEmailTaken indicates the new email collides with another
	// account.
	ErrEmailTaken = errors.New("profiles: email already in use")
)
