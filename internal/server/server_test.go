package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/avatar-vault/internal/config"
	"github.com/sakif/avatar-vault/internal/repository/sqlite"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: 8080},
		Database:  config.DatabaseConfig{Driver: config.DriverSQLite, Path: sqlite.MemoryPath, OpTimeout: 5 * time.Second},
		Avatars:   config.AvatarsConfig{Quota: 2},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimitConfig{RPS: 1000, Burst: 1000},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func serve(s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestServer_AuthDisabledTrustsPathUser(t *testing.T) {
	s := newTestServer(t, testConfig())

	rr := serve(s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(s, http.MethodPost, "/api/users/alice/avatars", "", `{"name":"One"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Location"), "/api/users/alice/avatars/")

	rr = serve(s, http.MethodGet, "/api/users/alice/avatars", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Limit int `json:"limit"`
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	assert.Equal(t, 2, list.Limit)
	assert.Equal(t, 1, list.Count)

	rr = serve(s, http.MethodPost, "/api/auth/token", "", `{"userId":"alice"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code, "token endpoint is not mounted without a secret")
}

func TestServer_AuthEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{
		JWTSecret: "server-test-secret-0123456789",
		JWTTTL:    time.Hour,
		Issuer:    "avatar-vault",
		APIKey:    "let-me-in",
	}
	s := newTestServer(t, cfg)

	rr := serve(s, http.MethodGet, "/api/users/alice/avatars", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(s, http.MethodPost, "/api/auth/token", "", `{"userId":"alice","apiKey":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(s, http.MethodPost, "/api/auth/token", "", `{"userId":"alice","apiKey":"let-me-in"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&tok))

	rr = serve(s, http.MethodGet, "/api/users/alice/avatars", tok.Token, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(s, http.MethodGet, "/api/users/bob/avatars", tok.Token, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestServer_ShortSecretFails(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{JWTSecret: "short", JWTTTL: time.Hour}

	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestServer_UnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = "mysql"

	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
