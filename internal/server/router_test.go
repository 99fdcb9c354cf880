package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fedutinova/minedash/internal/access"
	"github.com/fedutinova/minedash/internal/auth"
	"github.com/fedutinova/minedash/internal/config"
	httpapi "github.com/fedutinova/minedash/internal/transport/http"
)

func newTestRouter() http.Handler {
	gate := access.NewGate(access.Load([]access.RoleRow{{Name: "Admin", Description: "admin"}}, nil))
	return NewRouter(&httpapi.Handlers{
		Gate:      gate,
		Directory: auth.NewDirectory(nil, nil),
		Revoker:   auth.NewMemoryRevoker(),
		Config: config.Config{
			CORSOrigins:   []string{"http://localhost:*"},
			SessionSecret: "s",
			SessionIssuer: "minedash",
		},
	})
}

func TestRouter_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/charts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_ForeignOriginNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_AnonymousFeatureRedirects(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, auth.LoginPath, rec.Header().Get("Location"))
}
