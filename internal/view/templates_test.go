package view_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campuslink/campuslink/internal/view"
	_ "github.com/campuslink/campuslink/testing"
)

func TestRenderLoginPage(t *testing.T) {
	engine, err := view.NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, "pages/login.html", view.TemplateData{
		Title:     "Entrar",
		CSRFToken: "token-123",
	})
	require.NoError(t, err)

	body := rr.Body.String()
	require.Contains(t, body, "Entrar")
	require.Contains(t, body, `name="csrf_token"`)
	require.Contains(t, body, "token-123")
	require.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
}

func TestTimeAgo(t *testing.T) {
	now := time.Now()
	cases := []struct {
		at   time.Time
		want string
	}{
		{now.Add(-10 * time.Second), "agora"},
		{now.Add(-1 * time.Minute), "1 minuto atrás"},
		{now.Add(-5 * time.Minute), "5 minutos atrás"},
		{now.Add(-2 * time.Hour), "2 horas atrás"},
		{now.Add(-48 * time.Hour), "2 dias atrás"},
		{time.Time{}, ""},
	}
	for _, tc := range cases {
		if got := view.TimeAgo(tc.at); got != tc.want {
			t.Fatalf("TimeAgo(%v) = %q, want %q", tc.at, got, tc.want)
		}
	}
}

func TestRenderUnknownTemplateFails(t *testing.T) {
	engine, err := view.NewEngine()
	require.NoError(t, err)

	err = engine.Render(httptest.NewRecorder(), "pages/missing.html", view.TemplateData{})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "missing"))
}
