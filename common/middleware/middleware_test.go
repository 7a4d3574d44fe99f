package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/AriMathi1/Fitness-app-server/common/logger"
	"github.com/AriMathi1/Fitness-app-server/common/middleware"
	awspkg "github.com/AriMathi1/Fitness-app-server/pkg/aws"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/api/payments/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/payments/webhook", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---- security ----

func TestSecurityHeaders(t *testing.T) {
	r := newEngine(middleware.SecurityHeaders())
	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/payments/p1", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestRateLimiter_PerClientBuckets(t *testing.T) {
	rl := middleware.NewRateLimiter(rate.Every(time.Hour), 2, time.Minute)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
	assert.Equal(t, 2, rl.Len())
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := middleware.NewRateLimiter(rate.Every(time.Hour), 1, 20*time.Millisecond)

	rl.Allow("10.0.0.1")
	time.Sleep(50 * time.Millisecond)
	rl.Allow("10.0.0.2")

	assert.Equal(t, 1, rl.Len())
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newEngine(middleware.RateLimitMiddleware(1, 1, "/api/payments/webhook"))

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/api/payments/p1", nil)).Code)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/payments/p1", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Rate limit exceeded. Please try again later."}`, w.Body.String())

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodPost, "/api/payments/webhook", nil)).Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := newEngine(middleware.CORSMiddleware("https://app.fitness.example/, https://admin.fitness.example"))

	req := httptest.NewRequest(http.MethodGet, "/api/payments/p1", nil)
	req.Header.Set("Origin", "https://app.fitness.example")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.fitness.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	// Matching ignores case and a trailing slash.
	req = httptest.NewRequest(http.MethodGet, "/api/payments/p1", nil)
	req.Header.Set("Origin", "https://ADMIN.fitness.example")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/payments/p1", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	// Server-to-server calls such as webhooks carry no Origin.
	w = serve(r, httptest.NewRequest(http.MethodPost, "/api/payments/webhook", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_DefaultsAndWildcard(t *testing.T) {
	r := newEngine(middleware.CORSMiddleware(""))
	req := httptest.NewRequest(http.MethodOptions, "/api/payments/p1", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)

	r = newEngine(middleware.CORSMiddleware("*"))
	req = httptest.NewRequest(http.MethodGet, "/api/payments/p1", nil)
	req.Header.Set("Origin", "https://anything.example")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/payments/p1", nil)
	req.Header.Set("Origin", "https://anything.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

// ---- request id / logging / timeout ----

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(zap.NewNop()))
	var fromCtx string
	r.GET("/x", func(c *gin.Context) {
		fromCtx = logger.RequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := serve(r, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-123", fromCtx)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), fromCtx)
}

func TestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Timeout(time.Second))
	var hasDeadline bool
	r.GET("/x", func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.True(t, hasDeadline)
}

// ---- metrics ----

type fakeMetrics struct {
	mu      sync.Mutex
	enabled bool
	counts  map[string][]map[string]string
	latency int
}

func (f *fakeMetrics) IsEnabled() bool { return f.enabled }

func (f *fakeMetrics) RecordCount(_ context.Context, name string, dims map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string][]map[string]string{}
	}
	f.counts[name] = append(f.counts[name], dims)
	return nil
}

func (f *fakeMetrics) RecordLatency(context.Context, string, time.Duration, map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency++
	return nil
}

func (f *fakeMetrics) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.counts[name])
}

func TestMetricsMiddleware_RecordsRouteTemplate(t *testing.T) {
	m := &fakeMetrics{enabled: true}
	r := newEngine(middleware.MetricsMiddleware(m, "payment-service"))

	serve(r, httptest.NewRequest(http.MethodGet, "/api/payments/pay-42", nil))

	assert.Eventually(t, func() bool { return m.count(awspkg.MetricHTTPRequests) == 1 }, time.Second, 10*time.Millisecond)
	m.mu.Lock()
	dims := m.counts[awspkg.MetricHTTPRequests][0]
	m.mu.Unlock()
	assert.Equal(t, "/api/payments/:id", dims["Path"])
	assert.Equal(t, "2xx", dims["Status"])
	assert.Equal(t, "payment-service", dims["Service"])
	assert.Zero(t, m.count(awspkg.MetricHTTPErrors))
}

func TestMetricsMiddleware_ServerErrors(t *testing.T) {
	m := &fakeMetrics{enabled: true}
	r := newEngine(middleware.MetricsMiddleware(m, "payment-service"))

	serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Eventually(t, func() bool { return m.count(awspkg.MetricHTTP5xx) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, m.count(awspkg.MetricHTTPErrors))
	assert.Zero(t, m.count(awspkg.MetricHTTP4xx))
}

func TestMetricsMiddleware_Disabled(t *testing.T) {
	m := &fakeMetrics{enabled: false}
	r := newEngine(middleware.MetricsMiddleware(m, "payment-service"))

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/api/payments/p1", nil)).Code)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, m.count(awspkg.MetricHTTPRequests))

	var nilClient *awspkg.MetricsClient
	r = newEngine(middleware.MetricsMiddleware(nilClient, "payment-service"))
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/api/payments/p1", nil)).Code)
}
