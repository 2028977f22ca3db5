package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.Handler, remoteAddr string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func okBackend() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_AllowsUpToMaxThenRejects(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 3, Window: time.Minute})(okBackend())

	for i := range 3 {
		w := serve(t, h, "10.0.0.1:1000", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := serve(t, h, "10.0.0.1:1000", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(http.StatusTooManyRequests), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okBackend())

	assert.Equal(t, http.StatusOK, serve(t, h, "10.0.0.1:1000", nil).Code)
	assert.Equal(t, http.StatusOK, serve(t, h, "10.0.0.2:1000", nil).Code)

	// Same IP, different port, still the same key.
	assert.Equal(t, http.StatusTooManyRequests, serve(t, h, "10.0.0.1:2000", nil).Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	h := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-API-Key")
		},
	})(okBackend())

	assert.Equal(t, http.StatusOK, serve(t, h, "10.0.0.1:1", map[string]string{"X-API-Key": "a"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(t, h, "10.0.0.2:1", map[string]string{"X-API-Key": "a"}).Code)
	assert.Equal(t, http.StatusOK, serve(t, h, "10.0.0.1:1", map[string]string{"X-API-Key": "b"}).Code)
}

func TestRateLimit_ProxyHeadersResolveClient(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okBackend())

	forwarded := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}
	assert.Equal(t, http.StatusOK, serve(t, h, "192.168.1.1:1", forwarded).Code)

	// Different peer, same forwarded client: one key.
	assert.Equal(t, http.StatusTooManyRequests, serve(t, h, "192.168.1.2:1", forwarded).Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		header     map[string]string
		want       string
	}{
		{"remote addr only", "10.0.0.1:443", nil, "10.0.0.1"},
		{"no port", "10.0.0.1", nil, "10.0.0.1"},
		{"x-real-ip", "10.0.0.1:443", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
		{"x-forwarded-for single", "10.0.0.1:443", map[string]string{"X-Forwarded-For": "203.0.113.50"}, "203.0.113.50"},
		{"x-forwarded-for chain", "10.0.0.1:443", map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}, "203.0.113.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

func TestLimiter_WindowRollover(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 2, Window: time.Second})

	// Fill the first window, aligned to its start so no previous window
	// bleeds in.
	start := time.Unix(100, 0)
	_, _, ok := l.take("k", start)
	require.True(t, ok)
	_, _, ok = l.take("k", start.Add(100*time.Millisecond))
	require.True(t, ok)
	_, _, ok = l.take("k", start.Add(200*time.Millisecond))
	require.False(t, ok)

	// Just past the boundary the previous window still weighs in: its
	// discounted count admits one request, then blocks again.
	_, _, ok = l.take("k", start.Add(time.Second+10*time.Millisecond))
	require.True(t, ok)
	_, _, ok = l.take("k", start.Add(time.Second+20*time.Millisecond))
	require.False(t, ok)

	// Two full windows later the old counts are gone.
	_, resetAt, ok := l.take("k", start.Add(3*time.Second))
	require.True(t, ok)
	assert.True(t, resetAt.After(start.Add(3*time.Second)))
}

func TestLimiter_SweepDropsIdleKeys(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Second})

	now := time.Unix(100, 0)
	_, _, ok := l.take("idle", now)
	require.True(t, ok)

	l.sweep(now.Add(5 * time.Second))

	l.mu.Lock()
	_, exists := l.buckets["idle"]
	l.mu.Unlock()
	assert.False(t, exists)
}
