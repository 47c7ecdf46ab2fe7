package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientLimiter(t *testing.T) {
	l := newClientLimiter(1, 2)
	now := time.Now()

	assert.True(t, l.allow("a", now))
	assert.True(t, l.allow("a", now))
	assert.False(t, l.allow("a", now), "burst exhausted")
	assert.True(t, l.allow("b", now), "buckets are per key")
	assert.True(t, l.allow("a", now.Add(time.Second)), "refilled after a second")
}

func TestClientLimiterDisabled(t *testing.T) {
	var l *clientLimiter
	assert.Nil(t, newClientLimiter(0, 10))
	assert.Nil(t, newClientLimiter(5, 0))
	for i := 0; i < 100; i++ {
		assert.True(t, l.allow("a", time.Now()))
	}
}

func TestClientKey(t *testing.T) {
	s := newTestServer(Config{Token: "abc"}, nil)

	tests := []struct {
		name   string
		remote string
		auth   string
		want   string
	}{
		{name: "valid token wins", remote: "10.0.0.1:5555", auth: "Bearer abc", want: "token:abc"},
		{name: "unverified token keys on ip", remote: "10.0.0.1:5555", auth: "Bearer forged", want: "ip:10.0.0.1"},
		{name: "ip without port", remote: "10.0.0.1:5555", want: "ip:10.0.0.1"},
		{name: "bare address", remote: "10.0.0.2", want: "ip:10.0.0.2"},
		{name: "empty", remote: "", want: "ip:unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.RemoteAddr = tt.remote
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			assert.Equal(t, tt.want, s.clientKey(req))
		})
	}
}

func TestRateLimitedRoutes(t *testing.T) {
	s := newTestServer(Config{RateLimit: 0.001, RateBurst: 2}, nil)
	h := s.Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitIgnoresRotatedTokens(t *testing.T) {
	s := newTestServer(Config{Token: "secret", RateLimit: 0.001, RateBurst: 2}, nil)
	h := s.Handler()

	codes := make([]int, 0, 3)
	for _, token := range []string{"fake-1", "fake-2", "fake-3"} {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// The real token gets its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
