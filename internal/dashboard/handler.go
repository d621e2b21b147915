package dashboard

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campuslink/campuslink/internal/shared"
	"github.com/campuslink/campuslink/internal/view"
)

// Handler renders the dashboard.
type Handler struct {
	service *Service
	views   *view.Engine
	logger  *slog.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *Service, views *view.Engine, logger *slog.Logger) *Handler {
	return &Handler{service: service, views: views, logger: logger}
}

// MountRoutes registers the dashboard route. Callers wrap the router
// with the login middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())

	day := time.Now()
	if raw := r.URL.Query().Get("dia"); raw != "" {
		if parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local); err == nil {
			day = parsed
		}
	}

	overview, err := h.service.Overview(r.Context(), userID, day)
	if err != nil {
		h.logger.Error("load dashboard", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	data := view.NewData(r, "Início", overview)
	if err := h.views.Render(w, "pages/dashboard.html", data); err != nil {
		h.logger.Error("render dashboard", slog.Any("error", err))
	}
}
