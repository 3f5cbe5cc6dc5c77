package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(handler http.Handler, method string, path string, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitGeneralWithinBurst(t *testing.T) {
	handler := NewRateLimitMiddleware(RateLimits{General: 20, Auth: 1}).Handler(okHandler())

	for i := 0; i < 10; i++ {
		rec := serve(handler, http.MethodGet, "/api/v1/trash", "")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimitAuthTier(t *testing.T) {
	handler := NewRateLimitMiddleware(RateLimits{General: 100, Auth: 1}).Handler(okHandler())

	assert.Equal(t, http.StatusOK, serve(handler, http.MethodPost, "/api/v1/auth/login", "").Code)

	rec := serve(handler, http.MethodPost, "/api/v1/auth/login", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	// Other tiers keep their own buckets.
	assert.Equal(t, http.StatusOK, serve(handler, http.MethodGet, "/api/v1/trash", "").Code)
}

func TestRateLimitBulkTier(t *testing.T) {
	handler := NewRateLimitMiddleware(RateLimits{General: 100, Auth: 100, Bulk: 2}).Handler(okHandler())

	assert.Equal(t, http.StatusOK, serve(handler, http.MethodPost, "/api/v1/trash/bulk/restore", "").Code)
	assert.Equal(t, http.StatusOK, serve(handler, http.MethodPost, "/api/v1/trash/jobs", "").Code)

	rec := serve(handler, http.MethodGet, "/api/v1/trash/export", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	// Polling a job stays on the general tier.
	assert.Equal(t, http.StatusOK, serve(handler, http.MethodGet, "/api/v1/trash/jobs/abc", "").Code)
	assert.Equal(t, http.StatusOK, serve(handler, http.MethodGet, "/api/v1/trash", "").Code)
}

func TestRateLimitMonitoringBypassesLimits(t *testing.T) {
	handler := NewRateLimitMiddleware(RateLimits{General: 1, Auth: 1, Bulk: 1}).Handler(okHandler())

	for i := 0; i < 5; i++ {
		for _, path := range []string{"/health", "/metrics"} {
			assert.Equal(t, http.StatusOK, serve(handler, http.MethodGet, path, "").Code, path)
		}
	}
}

func TestRateLimitPerClient(t *testing.T) {
	handler := NewRateLimitMiddleware(RateLimits{General: 100, Auth: 1}).Handler(okHandler())

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		assert.Equal(t, http.StatusOK, serve(handler, http.MethodPost, "/api/v1/auth/login", ip).Code, ip)
	}
}

func TestRateLimitSweepsIdleClients(t *testing.T) {
	mw := NewRateLimitMiddleware(RateLimits{})
	current := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	mw.now = func() time.Time { return current }

	for i := 0; i < sweepThreshold; i++ {
		require.True(t, mw.allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256), tierGeneral))
	}

	current = current.Add(clientIdleTTL + time.Minute)
	require.True(t, mw.allow("192.168.1.1", tierGeneral))

	mw.mu.Lock()
	defer mw.mu.Unlock()
	assert.Len(t, mw.clients, 1)
}

func TestRateLimitDefaults(t *testing.T) {
	mw := NewRateLimitMiddleware(RateLimits{General: -1})
	assert.Equal(t, RateLimits{General: 100, Auth: 10, Bulk: 20}, mw.limits)
	assert.Equal(t, 1, retryAfterSeconds(300))
	assert.Equal(t, 6, retryAfterSeconds(10))
}
