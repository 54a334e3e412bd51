package gateway

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gestor-financiero/pkg/auth"
	"gestor-financiero/pkg/config"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type echo struct {
	Path  string `json:"path"`
	Query string `json:"query"`
	Auth  string `json:"auth"`
}

// startBackend serves an echo of what the gateway forwarded.
func startBackend(t *testing.T, delay time.Duration) string {
	t.Helper()
	app := fiber.New()
	app.All("/*", func(c *fiber.Ctx) error {
		if delay > 0 {
			time.Sleep(delay)
		}
		return c.JSON(echo{
			Path:  string(c.Request().URI().PathOriginal()),
			Query: string(c.Request().URI().QueryString()),
			Auth:  c.Get(fiber.HeaderAuthorization),
		})
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func deadURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr
}

func newGatewayApp(t *testing.T, cfg *config.GatewayConfig, m *auth.JWTManager) *fiber.App {
	t.Helper()
	table, err := DefaultTable(cfg)
	require.NoError(t, err)
	app := fiber.New()
	SetupRoutes(app, New(table, m, zap.NewNop()), cfg)
	return app
}

func call(t *testing.T, app *fiber.App, method, target, authorization string) (int, echo, string) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var e echo
	_ = json.Unmarshal(body, &e)
	return resp.StatusCode, e, string(body)
}

func TestGateway_Forwarding(t *testing.T) {
	backend := startBackend(t, 0)
	m := auth.NewJWTManager("gw", time.Hour)
	cfg := &config.GatewayConfig{
		AuthURL: backend, DocumentsURL: backend, FinancialURL: backend, OCRURL: backend,
		DefaultTimeout: 2 * time.Second, ProcessTimeout: 2 * time.Second,
		RateLimitMax: 1000, RateLimitWindow: time.Minute,
	}
	app := newGatewayApp(t, cfg, m)

	token, err := m.GenerateToken(uuid.NewString(), "ana", "ana@example.com")
	require.NoError(t, err)

	t.Run("public route needs no token", func(t *testing.T) {
		status, e, _ := call(t, app, http.MethodPost, "/api/auth/login", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "/login", e.Path)
	})

	t.Run("protected route without token", func(t *testing.T) {
		status, _, body := call(t, app, http.MethodGet, "/api/documents/documents", "")
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Contains(t, body, "UNAUTHORIZED")
	})

	t.Run("bare token is forwarded as bearer", func(t *testing.T) {
		status, e, _ := call(t, app, http.MethodGet, "/api/financial/transactions?limit=5", token)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "/transactions", e.Path)
		assert.Equal(t, "limit=5", e.Query)
		assert.Equal(t, "Bearer "+token, e.Auth)
	})

	t.Run("encoded keys survive", func(t *testing.T) {
		status, e, _ := call(t, app, http.MethodGet, "/api/documents/view-encoded/user-1%2Fa.png", "Bearer "+token)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "/view-encoded/user-1%2Fa.png", e.Path)
	})

	t.Run("unknown prefix", func(t *testing.T) {
		status, _, _ := call(t, app, http.MethodGet, "/api/unknown/x", "Bearer "+token)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("forged token", func(t *testing.T) {
		other, err := auth.NewJWTManager("other", time.Hour).GenerateToken(uuid.NewString(), "x", "x@example.com")
		require.NoError(t, err)
		status, _, _ := call(t, app, http.MethodGet, "/api/ocr/process", "Bearer "+other)
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestGateway_BackendDown(t *testing.T) {
	dead := deadURL(t)
	cfg := &config.GatewayConfig{
		AuthURL: dead, DocumentsURL: dead, FinancialURL: dead, OCRURL: dead,
		DefaultTimeout: time.Second, ProcessTimeout: time.Second,
		RateLimitMax: 1000, RateLimitWindow: time.Minute,
	}
	app := newGatewayApp(t, cfg, auth.NewJWTManager("gw", time.Hour))

	status, _, body := call(t, app, http.MethodPost, "/api/auth/register", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "SERVICE_UNAVAILABLE")
}

func TestGateway_Timeout(t *testing.T) {
	backend := startBackend(t, 500*time.Millisecond)
	cfg := &config.GatewayConfig{
		AuthURL: backend, DocumentsURL: backend, FinancialURL: backend, OCRURL: backend,
		DefaultTimeout: 100 * time.Millisecond, ProcessTimeout: 2 * time.Second,
		RateLimitMax: 1000, RateLimitWindow: time.Minute,
	}
	app := newGatewayApp(t, cfg, auth.NewJWTManager("gw", time.Hour))

	start := time.Now()
	status, _, body := call(t, app, http.MethodPost, "/api/auth/login", "")
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Contains(t, body, "UPSTREAM_TIMEOUT")
	assert.Less(t, time.Since(start), 450*time.Millisecond)
}

func TestGateway_RateLimit(t *testing.T) {
	backend := startBackend(t, 0)
	cfg := &config.GatewayConfig{
		AuthURL: backend, DocumentsURL: backend, FinancialURL: backend, OCRURL: backend,
		DefaultTimeout: time.Second, ProcessTimeout: time.Second,
		RateLimitMax: 2, RateLimitWindow: time.Minute,
	}
	app := newGatewayApp(t, cfg, auth.NewJWTManager("gw", time.Hour))

	for i := 0; i < 2; i++ {
		status, _, _ := call(t, app, http.MethodGet, "/api/auth/health", "")
		require.Equal(t, http.StatusOK, status)
	}
	status, _, body := call(t, app, http.MethodGet, "/api/auth/health", "")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body, "RATE_LIMITED")
}

func TestTable_Match(t *testing.T) {
	table, err := NewTable(
		Route{Prefix: "/api", Target: "http://fallback"},
		Route{Prefix: "/api/documents", Target: "http://docs/", SlowPaths: []string{"/upload"}, Timeout: time.Second, SlowTimeout: time.Minute},
	)
	require.NoError(t, err)

	r, rest, ok := table.Match("/api/documents/upload")
	require.True(t, ok)
	assert.Equal(t, "http://docs", r.Target)
	assert.Equal(t, "/upload", rest)
	assert.Equal(t, time.Minute, r.TimeoutFor(rest))
	assert.Equal(t, time.Second, r.TimeoutFor("/documents"))

	r, rest, ok = table.Match("/api/documentsX/1")
	require.True(t, ok)
	assert.Equal(t, "/api", r.Prefix)
	assert.Equal(t, "/documentsX/1", rest)

	r, rest, ok = table.Match("/api/documents")
	require.True(t, ok)
	assert.Equal(t, "/api/documents", r.Prefix)
	assert.Equal(t, "/", rest)

	_, _, ok = table.Match("/health")
	assert.False(t, ok)

	_, err = NewTable(Route{Prefix: "/a/", Target: "x"})
	assert.Error(t, err)
	_, err = NewTable(Route{Prefix: "/a", Target: "x"}, Route{Prefix: "/a", Target: "y"})
	assert.Error(t, err)
}
