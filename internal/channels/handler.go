package channels

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/campuslink/campuslink/internal/shared"
	"github.com/campuslink/campuslink/internal/view"
)

// maxAttachmentBytes caps uploaded attachment size at 10 MiB.
const maxAttachmentBytes = 10 << 20

// Handler exposes channel pages and message endpoints.
type Handler struct {
	service *Service
	resolve shared.ActorResolver
	views   *view.Engine
	logger  *slog.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *Service, resolve shared.ActorResolver, views *view.Engine, logger *slog.Logger) *Handler {
	return &Handler{service: service, resolve: resolve, views: views, logger: logger}
}

// MountRoutes registers channel routes. Callers wrap the router with
// the login middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/canais/{channelID}", h.show)
	r.Post("/canais/{channelID}/mensagens", h.postMessage)
	r.Post("/canais/{channelID}/mensagens/{messageID}/reagir", h.react)
}

// MountAdminRoutes registers channel moderation routes. Callers wrap
// the router with the staff middleware.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/admin/canais/{channelID}/desativar", h.deactivate)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	channelID, ok := h.channelID(w, r)
	if !ok {
		return
	}
	actor, err := h.resolve(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve actor", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := h.service.Deactivate(r.Context(), actor, channelID); err != nil {
		h.fail(w, r, err, "/admin")
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Canal desativado."})
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

type channelPage struct {
	Channel  Channel
	Messages []MessageView
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	channelID, ok := h.channelID(w, r)
	if !ok {
		return
	}

	channel, err := h.service.Get(r.Context(), channelID, userID)
	if err != nil {
		h.fail(w, r, err, "/")
		return
	}
	messages, err := h.service.Messages(r.Context(), channelID, userID)
	if err != nil {
		h.fail(w, r, err, "/")
		return
	}

	data := view.NewData(r, channel.Name, channelPage{Channel: channel, Messages: messages})
	if err := h.views.Render(w, "pages/channel.html", data); err != nil {
		h.logger.Error("render channel", slog.Any("error", err))
	}
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	channelID, ok := h.channelID(w, r)
	if !ok {
		return
	}
	redirect := "/canais/" + strconv.FormatInt(channelID, 10)

	if err := r.ParseMultipartForm(maxAttachmentBytes); err != nil {
		h.flash(r, "error", "Envio inválido.")
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}

	input := PostMessageInput{Body: r.FormValue("body")}
	if raw := strings.TrimSpace(r.FormValue("reply_to")); raw != "" {
		parentID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.flash(r, "error", "Mensagem de resposta inválida.")
			http.Redirect(w, r, redirect, http.StatusSeeOther)
			return
		}
		input.ReplyTo = &parentID
	}

	file, header, err := r.FormFile("attachment")
	if err == nil {
		defer file.Close()
		input.Attachment = &Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		h.flash(r, "error", "Falha ao ler o anexo.")
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}

	if _, err := h.service.PostMessage(r.Context(), channelID, userID, input); err != nil {
		h.fail(w, r, err, redirect)
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func (h *Handler) react(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.CurrentUserID(r.Context())
	channelID, ok := h.channelID(w, r)
	if !ok {
		return
	}
	redirect := "/canais/" + strconv.FormatInt(channelID, 10)

	messageID, err := strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if _, err := h.service.React(r.Context(), channelID, messageID, userID, r.FormValue("emoji")); err != nil {
		h.fail(w, r, err, redirect)
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func (h *Handler) channelID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "channelID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, redirect string) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, ErrAccessDenied):
		h.flash(r, "error", "Você não tem acesso a este canal.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case errors.Is(err, ErrValidation):
		h.flash(r, "error", "A mensagem não pode ser vazia.")
	case errors.Is(err, ErrReplyMismatch):
		h.flash(r, "error", "A resposta precisa referenciar uma mensagem deste canal.")
	default:
		h.logger.Error("channel request failed", slog.Any("error", err), slog.String("path", r.URL.Path))
		h.flash(r, "error", shared.UserSafeMessage(err))
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func (h *Handler) flash(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
}
