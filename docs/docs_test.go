package docs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	page, err := Render()
	require.NoError(t, err)

	html := string(page)
	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, "<h1>AIPM API</h1>")
	assert.Contains(t, html, "<table>")
	for _, path := range []string{"/api/ai_schedule", "/api/ai_reference_img", "/api/ai_curated_assets", "/api/ai_draft_explain", "/api/ai_draft_img"} {
		assert.Contains(t, html, path)
	}
}

func TestHandler(t *testing.T) {
	h, err := Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api-docs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.String())
}
