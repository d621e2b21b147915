package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/campuslink/campuslink/internal/shared"
	"github.com/campuslink/campuslink/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	sessions  *shared.SessionManager
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		sessions:  sessions,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router. Mounted
// under /auth.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/registro", h.showRegister)
	r.Post("/registro", h.handleRegister)
	r.Get("/esqueci-senha", h.showForgotPassword)
	r.Post("/esqueci-senha", h.handleForgotPassword)
}

// MountAdminRoutes registers account management routes. Callers wrap
// the router with the staff middleware.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/admin/usuarios/{userID}/excluir", h.handleDeleteUser)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actorID, _ := shared.CurrentUserID(r.Context())
	targetID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	actor, err := h.service.ActorFor(r.Context(), actorID)
	if err != nil {
		h.logger.Error("resolve actor", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	switch err := h.service.DeleteUser(r.Context(), actor, targetID); {
	case errors.Is(err, ErrSelfDeletion):
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Você não pode excluir seu próprio usuário."})
	case errors.Is(err, shared.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		h.logger.Error("delete user", slog.Any("error", err))
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: shared.UserSafeMessage(err)})
	default:
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Usuário excluído."})
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

type loginForm struct {
	Login    string `validate:"required"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/login.html", "Entrar", loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Login:    r.PostFormValue("login"),
		Password: r.PostFormValue("password"),
	}
	if err := h.validator.Struct(form); err != nil {
		h.render(w, r, "pages/login.html", "Entrar", loginPageData{Form: form, Errors: map[string]string{"general": "Informe usuário e senha."}})
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Login, form.Password)
	if err != nil {
		h.render(w, r, "pages/login.html", "Entrar", loginPageData{Form: form, Errors: map[string]string{"general": "Usuário ou senha incorretos."}})
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Bem-vindo de volta, " + user.Fullname + "!"})
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, time.Now().Add(h.sessions.TTL()), r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessions.Destroy(sess)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

type registerForm struct {
	Username        string `validate:"required,min=3,max=30,alphanum"`
	Fullname        string `validate:"required,max=100"`
	Matricula       string `validate:"required,max=20"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=8"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

type registerPageData struct {
	Form   registerForm
	Errors map[string]string
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/register.html", "Criar conta", registerPageData{})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := registerForm{
		Username:        r.PostFormValue("username"),
		Fullname:        r.PostFormValue("fullname"),
		Matricula:       r.PostFormValue("matricula"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
	if err := h.validator.Struct(form); err != nil {
		errs := make(map[string]string)
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = registerFieldMessage(fieldErr)
			}
		}
		h.render(w, r, "pages/register.html", "Criar conta", registerPageData{Form: form, Errors: errs})
		return
	}

	user, err := h.service.Register(r.Context(), RegisterInput{
		Username:  form.Username,
		Fullname:  form.Fullname,
		Matricula: form.Matricula,
		Email:     form.Email,
		Password:  form.Password,
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			h.render(w, r, "pages/register.html", "Criar conta", registerPageData{Form: form, Errors: map[string]string{"general": "Usuário, matrícula ou e-mail já cadastrado."}})
			return
		}
		h.logger.Error("register user", slog.Any("error", err))
		h.render(w, r, "pages/register.html", "Criar conta", registerPageData{Form: form, Errors: map[string]string{"general": shared.UserSafeMessage(err)}})
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		sess.SetUser(strconv.FormatInt(user.ID, 10))
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Conta criada. Bem-vindo!"})
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type forgotPasswordData struct {
	Email string
}

func (h *Handler) showForgotPassword(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/forgot_password.html", "Recuperar senha", forgotPasswordData{})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	sess := shared.SessionFromContext(r.Context())

	switch r.PostFormValue("action") {
	case "send_code":
		if err := h.service.RequestPasswordReset(r.Context(), email); err != nil {
			h.logger.Error("request password reset", slog.Any("error", err))
		}
		// The same message regardless of whether the email exists.
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Se o e-mail estiver cadastrado, um código foi enviado. Ele vale por 15 minutos."})
		}
		h.render(w, r, "pages/forgot_password.html", "Recuperar senha", forgotPasswordData{Email: email})
	case "reset_password":
		password := r.PostFormValue("password")
		if len(password) < 8 || password != r.PostFormValue("confirm_password") {
			if sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "As senhas precisam coincidir e ter ao menos 8 caracteres."})
			}
			h.render(w, r, "pages/forgot_password.html", "Recuperar senha", forgotPasswordData{Email: email})
			return
		}
		if err := h.service.ResetPassword(r.Context(), email, r.PostFormValue("code"), password); err != nil {
			if errors.Is(err, ErrInvalidResetCode) {
				if sess != nil {
					sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Código inválido ou expirado."})
				}
				h.render(w, r, "pages/forgot_password.html", "Recuperar senha", forgotPasswordData{Email: email})
				return
			}
			h.logger.Error("reset password", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Senha redefinida. Entre com a nova senha."})
		}
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
	default:
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page, title string, data any) {
	if err := h.templates.Render(w, page, view.NewData(r, title, data)); err != nil {
		h.logger.Error("render page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func registerFieldMessage(err validator.FieldError) string {
	switch err.Field() {
	case "Username":
		return "Usuário deve ter de 3 a 30 caracteres alfanuméricos."
	case "Fullname":
		return "Informe seu nome completo."
	case "Matricula":
		return "Informe sua matrícula."
	case "Email":
		return "Informe um e-mail válido."
	case "Password":
		return "A senha deve ter ao menos 8 caracteres."
	case "ConfirmPassword":
		return "As senhas não coincidem."
	default:
		return "Campo inválido."
	}
}
