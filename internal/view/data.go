package view

import (
	"net/http"

	"github.com/campuslink/campuslink/internal/shared"
)

// NewData assembles the shared template data for a request: the CSRF
// token ensured by the middleware, the oldest pending flash and the
// current path for nav highlighting.
func NewData(r *http.Request, title string, data any) TemplateData {
	td := TemplateData{Title: title, CurrentPath: r.URL.Path, Data: data}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		td.CSRFToken = sess.Get(shared.CSRFSessionKey)
		td.Flash = sess.PopFlash()
	}
	return td
}
