package notifications

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/campuslink/campuslink/internal/shared"
	"github.com/campuslink/campuslink/internal/view"
)

// Handler exposes the notification page.
type Handler struct {
	service *Service
	views   *view.Engine
	logger  *slog.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *Service, views *view.Engine, logger *slog.Logger) *Handler {
	return &Handler{service: service, views: views, logger: logger}
}

// MountRoutes registers notification routes. Callers wrap the router
// with the login middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/notificacoes", h.list)
	r.Post("/notificacoes/{notificationID}/lida", h.markRead)
}

type notificationsPage struct {
	Unread int
	Items  []Notification
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	items, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("list notifications", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	unread, err := h.service.Unread(r.Context(), userID)
	if err != nil {
		h.logger.Error("count unread", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	data := view.NewData(r, "Notificações", notificationsPage{Unread: unread, Items: items})
	if err := h.views.Render(w, "pages/notifications.html", data); err != nil {
		h.logger.Error("render notifications", slog.Any("error", err))
	}
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "notificationID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.service.MarkRead(r.Context(), userID, id); err != nil && !errors.Is(err, ErrNotFound) {
		h.logger.Error("mark notification read", slog.Any("error", err))
	}
	http.Redirect(w, r, "/notificacoes", http.StatusSeeOther)
}
