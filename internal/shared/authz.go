package shared

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// Actor describes the authenticated caller of a workflow operation.
type Actor struct {
	ID      int64
	IsStaff bool
}

// RequireStaff is the single authorization guard for staff-only
// operations. Every mutating workflow call goes through it instead of
// re-implementing the capability check at each call site.
func RequireStaff(actor Actor) error {
	if actor.ID == 0 || !actor.IsStaff {
		return ErrPermissionDenied
	}
	return nil
}

// ActorResolver loads the Actor for a user ID, typically from the
// users table.
type ActorResolver func(ctx context.Context, userID int64) (Actor, error)

// AuthzMiddleware wires session-based authorization for HTTP handlers.
type AuthzMiddleware struct {
	Resolve ActorResolver
	Logger  *slog.Logger
}

// RequireLogin ensures a user is associated with the session.
func (m AuthzMiddleware) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUserID(r.Context()); !ok {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff ensures the current user carries the staff capability.
func (m AuthzMiddleware) RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := CurrentUserID(r.Context())
		if !ok {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		actor, err := m.Resolve(r.Context(), userID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("resolve actor", slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if err := RequireStaff(actor); err != nil {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CurrentUserID extracts the authenticated user ID from the session in
// context.
func CurrentUserID(ctx context.Context) (int64, bool) {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
