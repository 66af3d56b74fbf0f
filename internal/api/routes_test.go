package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRouteRegistration(t *testing.T) {
	env := setupTestEnv(t)
	env.users.On("Ping", mock.Anything).Return(nil)

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"starred requires auth", http.MethodGet, "/api/v1/repositories/starred", http.StatusUnauthorized},
		{"starred sync requires auth", http.MethodPost, "/api/v1/repositories/starred/sync", http.StatusUnauthorized},
		{"sync requires auth", http.MethodPost, "/api/v1/sync", http.StatusUnauthorized},
		{"logout requires auth", http.MethodPost, "/api/v1/auth/logout", http.StatusUnauthorized},
		{"callback without code", http.MethodGet, "/api/v1/auth/github/callback", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/v1/repositories", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.request(t, tt.method, tt.path, "")
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	env := setupTestEnv(t)
	env.users.On("Ping", mock.Anything).Return(nil)

	w := env.request(t, http.MethodGet, "/health", "")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc123")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, "abc123", w.Header().Get(requestIDHeader))
}

func TestBearerScheme(t *testing.T) {
	env := setupTestEnv(t)
	token, _, err := env.tokens.Generate("u1")
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	req.Header.Set("Authorization", "Basic "+token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORS(t *testing.T) {
	env := setupTestEnv(t)
	handler := WithCORS(env.router, []string{"http://localhost:3000"})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/repositories/starred", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		req.Header.Set("Access-Control-Request-Headers", "authorization")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight with a header outside the allow list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/repositories/starred", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		req.Header.Set("Access-Control-Request-Headers", "x-custom-header")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/repositories/starred", nil)
		req.Header.Set("Origin", "http://evil.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}
