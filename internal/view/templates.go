package view

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/campuslink/campuslink/internal/shared"
	"github.com/campuslink/campuslink/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Data        any
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02/01/2006 15:04")
		},
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("15:04")
		},
		"timeAgo": TimeAgo,
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// TimeAgo renders a relative timestamp in Portuguese.
func TimeAgo(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := time.Since(t)
	switch {
	case diff >= 24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 dia atrás"
		}
		return fmt.Sprintf("%d dias atrás", days)
	case diff >= time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hora atrás"
		}
		return fmt.Sprintf("%d horas atrás", hours)
	case diff >= time.Minute:
		minutes := int(diff.Minutes())
		if minutes == 1 {
			return "1 minuto atrás"
		}
		return fmt.Sprintf("%d minutos atrás", minutes)
	default:
		return "agora"
	}
}
