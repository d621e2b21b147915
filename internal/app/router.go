package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/campuslink/campuslink/internal/auth"
	"github.com/campuslink/campuslink/internal/channels"
	"github.com/campuslink/campuslink/internal/dashboard"
	"github.com/campuslink/campuslink/internal/notifications"
	"github.com/campuslink/campuslink/internal/observability"
	"github.com/campuslink/campuslink/internal/platform/httpx"
	"github.com/campuslink/campuslink/internal/profiles"
	"github.com/campuslink/campuslink/internal/requests"
	"github.com/campuslink/campuslink/internal/roles"
	"github.com/campuslink/campuslink/internal/shared"
	"github.com/campuslink/campuslink/internal/view"
	"github.com/campuslink/campuslink/jobs"
	"github.com/campuslink/campuslink/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Authz          shared.AuthzMiddleware

	AuthHandler          *auth.Handler
	DashboardHandler     *dashboard.Handler
	RolesHandler         *roles.Handler
	ChannelsHandler      *channels.Handler
	RequestsHandler      *requests.Handler
	ProfilesHandler      *profiles.Handler
	NotificationsHandler *notifications.Handler
	JobsHandler          *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Landing page for visitors without a session.
	r.Get("/bem-vindo", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.CurrentUserID(r.Context()); ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		data := view.NewData(r, "CampusLink", nil)
		if err := params.Templates.Render(w, "pages/landing.html", data); err != nil {
			params.Logger.Error("render landing", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// The dashboard greets visitors with the landing page instead of
	// the login form.
	r.Group(func(r chi.Router) {
		r.Use(redirectAnonymous("/bem-vindo"))
		params.DashboardHandler.MountRoutes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.Authz.RequireLogin)
		params.RolesHandler.MountRoutes(r)
		params.ChannelsHandler.MountRoutes(r)
		params.RequestsHandler.MountRoutes(r)
		params.ProfilesHandler.MountRoutes(r)
		params.NotificationsHandler.MountRoutes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.Authz.RequireStaff)
		params.RequestsHandler.MountAdminRoutes(r)
		params.ChannelsHandler.MountAdminRoutes(r)
		params.RolesHandler.MountAdminRoutes(r)
		params.AuthHandler.MountAdminRoutes(r)
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

func redirectAnonymous(target string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := shared.CurrentUserID(r.Context()); !ok {
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// staticCacheHandler marks static assets cacheable for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
