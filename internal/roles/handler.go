package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/campuslink/campuslink/internal/shared"
)

// Handler exposes role assignment endpoints.
type Handler struct {
	service *Service
	resolve shared.ActorResolver
	logger  *slog.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *Service, resolve shared.ActorResolver, logger *slog.Logger) *Handler {
	return &Handler{service: service, resolve: resolve, logger: logger}
}

// MountRoutes registers role routes. Callers wrap the router with the
// login middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/cargos/{roleID}/toggle", h.toggle)
}

// MountAdminRoutes registers catalog management routes. Callers wrap
// the router with the staff middleware.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/admin/cargos", h.create)
	r.Post("/admin/cargos/{roleID}/excluir", h.delete)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	active, err := h.service.ToggleRole(r.Context(), userID, roleID)
	if err != nil {
		h.logger.Error("toggle role", slog.Any("error", err), slog.Int64("user_id", userID), slog.Int64("role_id", roleID))
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: shared.UserSafeMessage(err)})
		}
		http.Redirect(w, r, "/perfil", http.StatusSeeOther)
		return
	}
	msg := "Cargo desativado."
	if active {
		msg = "Cargo ativado."
	}
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: msg})
	}
	http.Redirect(w, r, "/perfil", http.StatusSeeOther)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	input := CreateRoleInput{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Color:       r.PostFormValue("color"),
	}
	role, err := h.service.CreateRole(r.Context(), actor, input)
	switch {
	case errors.Is(err, ErrValidation):
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "O nome do cargo é obrigatório."})
	case errors.Is(err, ErrDuplicateName):
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Já existe um cargo com este nome."})
	case err != nil:
		h.logger.Error("create role", slog.Any("error", err))
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: shared.UserSafeMessage(err)})
	default:
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Cargo \"" + role.Name + "\" criado."})
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	switch err := h.service.DeleteRole(r.Context(), actor, roleID); {
	case errors.Is(err, ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		h.logger.Error("delete role", slog.Any("error", err))
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: shared.UserSafeMessage(err)})
	default:
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Cargo excluído."})
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	userID, _ := shared.CurrentUserID(r.Context())
	actor, err := h.resolve(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve actor", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return shared.Actor{}, false
	}
	return actor, true
}
