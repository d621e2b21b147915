package profiles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/campuslink/campuslink/internal/roles"
	"github.com/campuslink/campuslink/internal/shared"
	"github.com/campuslink/campuslink/internal/view"
)

// PasswordPort changes an account password after verifying the
// current one.
type PasswordPort interface {
	ChangePassword(ctx context.Context, userID int64, current, next string) error
}

// Handler exposes profile, search and follow endpoints.
type Handler struct {
	service   *Service
	passwords PasswordPort
	views     *view.Engine
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *Service, passwords PasswordPort, views *view.Engine, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		passwords: passwords,
		views:     views,
		validator: validator.New(),
		logger:    logger,
	}
}

// MountRoutes registers profile routes. Callers wrap the router with
// the login middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/perfil", h.showProfile)
	r.Get("/perfil/editar", h.showEdit)
	r.Post("/perfil/editar", h.handleEdit)
	r.Get("/perfil/senha", h.showChangePassword)
	r.Post("/perfil/senha", h.handleChangePassword)
	r.Get("/busca", h.search)
	r.Post("/busca/recentes/{searchID}/remover", h.removeRecent)
	r.Post("/busca/recentes/limpar", h.clearRecent)
	r.Post("/perfis/{profileID}/seguir", h.follow)
	r.Post("/perfis/{profileID}/deixar-de-seguir", h.unfollow)
}

type profilePage struct {
	User      Profile
	Followers int
	Following int
	AllRoles  []roles.UserRole
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	profile, assignments, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		h.logger.Error("load profile", slog.Any("error", err), slog.Int64("user_id", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	page := profilePage{User: profile, Followers: profile.Followers, Following: profile.Following, AllRoles: assignments}
	h.render(w, r, "pages/profile.html", "Meu perfil", page)
}

type editForm struct {
	Email    string `validate:"required,email"`
	PhotoURL string `validate:"omitempty,url"`
	Bio      string `validate:"max=500"`
}

type editPage struct {
	Form   editForm
	Errors map[string]string
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	profile, _, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	form := editForm{Email: profile.Email, PhotoURL: profile.PhotoURL, Bio: profile.Bio}
	h.render(w, r, "pages/profile_edit.html", "Editar perfil", editPage{Form: form})
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	form := editForm{
		Email:    r.FormValue("email"),
		PhotoURL: r.FormValue("photo_url"),
		Bio:      r.FormValue("bio"),
	}
	if err := h.validator.Struct(form); err != nil {
		h.render(w, r, "pages/profile_edit.html", "Editar perfil", editPage{Form: form, Errors: map[string]string{"form": "Verifique os campos informados."}})
		return
	}
	err := h.service.UpdateProfile(r.Context(), userID, UpdateProfileInput{Email: form.Email, PhotoURL: form.PhotoURL, Bio: form.Bio})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			h.render(w, r, "pages/profile_edit.html", "Editar perfil", editPage{Form: form, Errors: map[string]string{"email": "Este e-mail já está em uso."}})
			return
		}
		h.logger.Error("update profile", slog.Any("error", err))
		h.render(w, r, "pages/profile_edit.html", "Editar perfil", editPage{Form: form, Errors: map[string]string{"form": shared.UserSafeMessage(err)}})
		return
	}
	h.flash(r, "success", "Perfil atualizado.")
	http.Redirect(w, r, "/perfil", http.StatusSeeOther)
}

type changePasswordForm struct {
	CurrentPassword string `validate:"required"`
	Password        string `validate:"required,min=8"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

type changePasswordPage struct {
	Errors map[string]string
}

func (h *Handler) showChangePassword(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/change_password.html", "Alterar senha", changePasswordPage{})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	form := changePasswordForm{
		CurrentPassword: r.FormValue("current_password"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirm_password"),
	}
	if err := h.validator.Struct(form); err != nil {
		h.render(w, r, "pages/change_password.html", "Alterar senha", changePasswordPage{Errors: map[string]string{"form": "As senhas precisam coincidir e ter ao menos 8 caracteres."}})
		return
	}
	if err := h.passwords.ChangePassword(r.Context(), userID, form.CurrentPassword, form.Password); err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			h.render(w, r, "pages/change_password.html", "Alterar senha", changePasswordPage{Errors: map[string]string{"current_password": "Senha atual incorreta."}})
			return
		}
		h.logger.Error("change password", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.flash(r, "success", "Senha alterada.")
	http.Redirect(w, r, "/perfil", http.StatusSeeOther)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	page, err := h.service.Search(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("search profiles", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/search.html", "Buscar perfis", page)
}

func (h *Handler) removeRecent(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	searchID, err := strconv.ParseInt(chi.URLParam(r, "searchID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.service.RemoveRecentSearch(r.Context(), userID, searchID); err != nil {
		h.logger.Error("remove recent search", slog.Any("error", err))
	}
	http.Redirect(w, r, "/busca", http.StatusSeeOther)
}

func (h *Handler) clearRecent(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	if err := h.service.ClearRecentSearches(r.Context(), userID); err != nil {
		h.logger.Error("clear recent searches", slog.Any("error", err))
	}
	http.Redirect(w, r, "/busca", http.StatusSeeOther)
}

func (h *Handler) follow(w http.ResponseWriter, r *http.Request) {
	h.followAction(w, r, h.service.Follow)
}

func (h *Handler) unfollow(w http.ResponseWriter, r *http.Request) {
	h.followAction(w, r, h.service.Unfollow)
}

func (h *Handler) followAction(w http.ResponseWriter, r *http.Request, action func(context.Context, int64, int64) error) {
	userID, _ := shared.CurrentUserID(r.Context())
	targetID, err := strconv.ParseInt(chi.URLParam(r, "profileID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := action(r.Context(), userID, targetID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.NotFound(w, r)
			return
		case errors.Is(err, ErrSelfFollow):
			h.flash(r, "error", "Você não pode seguir a si mesmo.")
		default:
			h.logger.Error("follow action", slog.Any("error", err))
			h.flash(r, "error", shared.UserSafeMessage(err))
		}
	}
	http.Redirect(w, r, "/busca", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page, title string, data any) {
	if err := h.views.Render(w, page, view.NewData(r, title, data)); err != nil {
		h.logger.Error("render page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) flash(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
}
