package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Env:              "development",
		HTTPAddr:         "127.0.0.1:0",
		MaxBodyBytes:     1 << 20,
		JWTIssuer:        "securebank",
		SessionDuration:  7 * 24 * time.Hour,
		RenewThreshold:   15 * time.Minute,
		WSAllowedOrigins: "http://localhost",

		Argon2MemoryKiB:   8 * 1024,
		Argon2Iterations:  1,
		Argon2Parallelism: 1,
	}
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func serve(t *testing.T, h http.Handler, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestApp_HealthAndReady(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig())

	rr := serve(t, a.Handler(), http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok\n", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(headerRequestID))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = serve(t, a.Handler(), http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestApp_ReadyRequiresDB(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.ReadinessRequireDB = true
	a := newTestApp(t, cfg)

	rr := serve(t, a.Handler(), http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestApp_SignupSessionAndMetrics(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig())

	signup := map[string]string{
		"email":           "jane@example.com",
		"password":        "Str0ng-Secret",
		"confirmPassword": "Str0ng-Secret",
		"firstName":       "Jane",
		"lastName":        "Doe",
		"phoneNumber":     "+12345678900",
		"dateOfBirth":     "1990-05-20",
		"ssn":             "987654321",
		"address":         "1 Main St",
		"city":            "Springfield",
		"state":           "IL",
		"zipCode":         "62701",
	}
	rr := serve(t, a.Handler(), http.MethodPost, "/auth/signup", signup, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.False(t, cookie.Secure, "development cookies are not Secure by default")
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)

	rr = serve(t, a.Handler(), http.MethodGet, "/me", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"email":"jane@example.com"`)
	assert.NotContains(t, rr.Body.String(), "987654321")
	assert.NotContains(t, rr.Body.String(), `"ssn"`)

	rr = serve(t, a.Handler(), http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `securebank_session_operations_total{op="issue",outcome="ok"} 1`)
	assert.True(t, strings.Contains(body, "go_goroutines"), "runtime collectors registered")
}

func TestApp_WSRejectsAnonymous(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://localhost")
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestApp_ProductionRequiresSecrets(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Env = EnvProduction

	_, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}
