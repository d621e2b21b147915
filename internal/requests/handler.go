package requests

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/campuslink/campuslink/internal/auth"
	"github.com/campuslink/campuslink/internal/channels"
	"github.com/campuslink/campuslink/internal/roles"
	"github.com/campuslink/campuslink/internal/shared"
	"github.com/campuslink/campuslink/internal/view"
)

// RoleCatalogPort lists roles for the channel request form and the
// admin panel.
type RoleCatalogPort interface {
	ListRoles(ctx context.Context) ([]roles.Role, error)
}

// UserDirectoryPort lists accounts for the admin panel.
type UserDirectoryPort interface {
	ListUsers(ctx context.Context, actor shared.Actor) ([]auth.User, error)
}

// ChannelDirectoryPort lists active channels for the admin panel.
type ChannelDirectoryPort interface {
	AllChannels(ctx context.Context) ([]channels.Channel, error)
}

// Handler exposes the request submission forms and the admin panel.
type Handler struct {
	service  *Service
	catalog  RoleCatalogPort
	users    UserDirectoryPort
	channels ChannelDirectoryPort
	resolve  shared.ActorResolver
	views    *view.Engine
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *Service, catalog RoleCatalogPort, users UserDirectoryPort, channelDir ChannelDirectoryPort, resolve shared.ActorResolver, views *view.Engine, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		catalog:  catalog,
		users:    users,
		channels: channelDir,
		resolve:  resolve,
		views:    views,
		validate: validator.New(),
		logger:   logger,
	}
}

// MountRoutes registers the submission routes. Callers wrap the router
// with the login middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/canais/novo", h.channelForm)
	r.Post("/canais/novo", h.submitChannel)
	r.Get("/cargos/novo", h.roleForm)
	r.Post("/cargos/novo", h.submitRole)
}

// MountAdminRoutes registers the staff-only review routes. Callers
// wrap the router with the staff middleware.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/admin", h.adminPanel)
	r.Post("/admin/solicitacoes/canais/{requestID}/aprovar", h.decideChannel(true))
	r.Post("/admin/solicitacoes/canais/{requestID}/recusar", h.decideChannel(false))
	r.Post("/admin/solicitacoes/cargos/{requestID}/aprovar", h.decideRole(true))
	r.Post("/admin/solicitacoes/cargos/{requestID}/recusar", h.decideRole(false))
}

type channelForm struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=500"`
	Kind        string `validate:"required"`
	Avatar      string `validate:"max=10"`
}

type channelFormPage struct {
	Form   channelForm
	Roles  []roles.Role
	Errors map[string]string
}

func (h *Handler) channelForm(w http.ResponseWriter, r *http.Request) {
	h.renderChannelForm(w, r, channelForm{Kind: string(channels.KindPublic)}, nil)
}

func (h *Handler) submitChannel(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := channelForm{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Kind:        r.FormValue("kind"),
		Avatar:      r.FormValue("avatar"),
	}
	if err := h.validate.Struct(form); err != nil {
		h.renderChannelForm(w, r, form, map[string]string{"form": "Preencha os campos obrigatórios."})
		return
	}

	var roleIDs []int64
	for _, raw := range r.Form["role_ids"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.renderChannelForm(w, r, form, map[string]string{"role_ids": "Cargo inválido."})
			return
		}
		roleIDs = append(roleIDs, id)
	}

	_, err := h.service.SubmitChannelRequest(r.Context(), userID, SubmitChannelInput{
		Name:        form.Name,
		Description: form.Description,
		Kind:        channels.Kind(form.Kind),
		Avatar:      form.Avatar,
		RoleIDs:     roleIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			h.renderChannelForm(w, r, form, map[string]string{"form": "Solicitação inválida. Canais restritos exigem ao menos um cargo existente."})
		case errors.Is(err, ErrDuplicateName):
			h.renderChannelForm(w, r, form, map[string]string{"name": "Já existe um canal ou solicitação com este nome."})
		default:
			h.logger.Error("submit channel request", slog.Any("error", err))
			h.renderChannelForm(w, r, form, map[string]string{"form": shared.UserSafeMessage(err)})
		}
		return
	}
	h.flash(r, "success", "Solicitação enviada. Aguarde a aprovação da administração.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) renderChannelForm(w http.ResponseWriter, r *http.Request, form channelForm, errs map[string]string) {
	catalog, err := h.catalog.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
	}
	data := view.NewData(r, "Solicitar canal", channelFormPage{Form: form, Roles: catalog, Errors: errs})
	if err := h.views.Render(w, "pages/channel_request.html", data); err != nil {
		h.logger.Error("render channel request form", slog.Any("error", err))
	}
}

type roleForm struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=300"`
	Color       string `validate:"omitempty,hexcolor"`
}

type roleFormPage struct {
	Form   roleForm
	Errors map[string]string
}

func (h *Handler) roleForm(w http.ResponseWriter, r *http.Request) {
	h.renderRoleForm(w, r, roleForm{Color: roles.DefaultColor}, nil)
}

func (h *Handler) submitRole(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	form := roleForm{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Color:       r.FormValue("color"),
	}
	if err := h.validate.Struct(form); err != nil {
		h.renderRoleForm(w, r, form, map[string]string{"form": "Preencha os campos obrigatórios."})
		return
	}

	_, err := h.service.SubmitRoleRequest(r.Context(), userID, SubmitRoleInput{
		Name:        form.Name,
		Description: form.Description,
		Color:       form.Color,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			h.renderRoleForm(w, r, form, map[string]string{"form": "Solicitação inválida."})
		case errors.Is(err, ErrDuplicateName):
			h.renderRoleForm(w, r, form, map[string]string{"name": "Já existe um cargo ou solicitação pendente com este nome."})
		default:
			h.logger.Error("submit role request", slog.Any("error", err))
			h.renderRoleForm(w, r, form, map[string]string{"form": shared.UserSafeMessage(err)})
		}
		return
	}
	h.flash(r, "success", "Solicitação enviada. Aguarde a aprovação da administração.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) renderRoleForm(w http.ResponseWriter, r *http.Request, form roleForm, errs map[string]string) {
	data := view.NewData(r, "Solicitar cargo", roleFormPage{Form: form, Errors: errs})
	if err := h.views.Render(w, "pages/role_request.html", data); err != nil {
		h.logger.Error("render role request form", slog.Any("error", err))
	}
}

type adminPage struct {
	Stats           Stats
	ChannelRequests []ChannelRequestView
	RoleRequests    []RoleRequestView
	Users           []auth.User
	Channels        []channels.Channel
	Roles           []roles.Role
	CurrentUserID   int64
}

func (h *Handler) adminPanel(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	actor, err := h.resolve(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve actor", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	page := adminPage{CurrentUserID: userID}
	if page.Stats, err = h.service.AdminStats(r.Context()); err != nil {
		h.logger.Error("admin stats", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if page.ChannelRequests, err = h.service.PendingChannelRequests(r.Context()); err != nil {
		h.logger.Error("pending channel requests", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if page.RoleRequests, err = h.service.PendingRoleRequests(r.Context()); err != nil {
		h.logger.Error("pending role requests", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if page.Users, err = h.users.ListUsers(r.Context(), actor); err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if page.Channels, err = h.channels.AllChannels(r.Context()); err != nil {
		h.logger.Error("list channels", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if page.Roles, err = h.catalog.ListRoles(r.Context()); err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	data := view.NewData(r, "Administração", page)
	if err := h.views.Render(w, "pages/admin.html", data); err != nil {
		h.logger.Error("render admin panel", slog.Any("error", err))
	}
}

func (h *Handler) decideChannel(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, requestID, ok := h.decisionContext(w, r)
		if !ok {
			return
		}
		var err error
		if approve {
			err = h.service.ApproveChannelRequest(r.Context(), actor, requestID)
		} else {
			err = h.service.RefuseChannelRequest(r.Context(), actor, requestID, r.FormValue("reason"))
		}
		h.finishDecision(w, r, err, approve)
	}
}

func (h *Handler) decideRole(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, requestID, ok := h.decisionContext(w, r)
		if !ok {
			return
		}
		var err error
		if approve {
			err = h.service.ApproveRoleRequest(r.Context(), actor, requestID)
		} else {
			err = h.service.RefuseRoleRequest(r.Context(), actor, requestID, r.FormValue("reason"))
		}
		h.finishDecision(w, r, err, approve)
	}
}

func (h *Handler) decisionContext(w http.ResponseWriter, r *http.Request) (shared.Actor, int64, bool) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return shared.Actor{}, 0, false
	}
	actor, err := h.resolve(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve actor", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return shared.Actor{}, 0, false
	}
	requestID, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return shared.Actor{}, 0, false
	}
	return actor, requestID, true
}

func (h *Handler) finishDecision(w http.ResponseWriter, r *http.Request, err error, approve bool) {
	switch {
	case err == nil:
		if approve {
			h.flash(r, "success", "Solicitação aprovada.")
		} else {
			h.flash(r, "success", "Solicitação recusada.")
		}
	case errors.Is(err, ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, ErrInvalidState):
		h.flash(r, "error", "Esta solicitação já foi decidida.")
	case errors.Is(err, ErrValidation):
		h.flash(r, "error", "Informe o motivo da recusa.")
	case errors.Is(err, ErrDuplicateName):
		h.flash(r, "error", "Já existe uma entidade com este nome.")
	case errors.Is(err, shared.ErrPermissionDenied):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	default:
		h.logger.Error("decide request", slog.Any("error", err), slog.String("path", r.URL.Path))
		h.flash(r, "error", shared.UserSafeMessage(err))
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *Handler) flash(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
}
