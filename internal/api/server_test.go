package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/scriptbridge/internal/journal"
	"github.com/mattjoyce/scriptbridge/internal/metrics"
)

type fixedSymbols int

func (f fixedSymbols) Symbols() int { return int(f) }

type mockLister struct {
	entries   []journal.Entry
	err       error
	lastLimit int
}

func (m *mockLister) Recent(_ context.Context, limit int) ([]journal.Entry, error) {
	m.lastLimit = limit
	return m.entries, m.err
}

func newTestServer(cfg Config, lister RequestLister) *Server {
	m := metrics.New()
	m.ObserveRequest("call", metrics.OutcomeOK, time.Millisecond)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, fixedSymbols(3), m.Handler(), lister, logger)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(Config{Worker: "w1", Profile: "framed", Token: "secret"}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp HealthzResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "w1", resp.Worker)
	assert.Equal(t, "framed", resp.Profile)
	assert.Equal(t, 3, resp.Symbols)
}

func TestProtectedRoutes(t *testing.T) {
	lister := &mockLister{entries: []journal.Entry{{ID: "r1", Kind: "call", Func: "add"}}}

	tests := []struct {
		name       string
		token      string
		path       string
		header     string
		wantStatus int
	}{
		{name: "metrics open without token", path: "/metrics", wantStatus: http.StatusOK},
		{name: "metrics needs token", token: "secret", path: "/metrics", wantStatus: http.StatusUnauthorized},
		{name: "metrics wrong token", token: "secret", path: "/metrics", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "metrics right token", token: "secret", path: "/metrics", header: "Bearer secret", wantStatus: http.StatusOK},
		{name: "requests right token", token: "secret", path: "/requests", header: "Bearer secret", wantStatus: http.StatusOK},
		{name: "unknown route", path: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(Config{Token: tt.token}, lister)
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestMetricsBody(t *testing.T) {
	s := newTestServer(Config{}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `scriptbridge_requests_total{kind="call",outcome="ok"} 1`)
}

func TestRequests(t *testing.T) {
	tests := []struct {
		name       string
		lister     *mockLister
		query      string
		wantStatus int
		wantLimit  int
		wantCount  int
	}{
		{
			name:       "default limit",
			lister:     &mockLister{entries: []journal.Entry{{ID: "a"}, {ID: "b"}}},
			wantStatus: http.StatusOK,
			wantLimit:  50,
			wantCount:  2,
		},
		{
			name:       "explicit limit is capped",
			lister:     &mockLister{},
			query:      "?limit=100000",
			wantStatus: http.StatusOK,
			wantLimit:  maxRequestsLimit,
		},
		{
			name:       "bad limit",
			lister:     &mockLister{},
			query:      "?limit=-1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "journal error",
			lister:     &mockLister{err: errors.New("db locked")},
			wantStatus: http.StatusInternalServerError,
			wantLimit:  50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(Config{}, tt.lister)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requests"+tt.query, nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantLimit, tt.lister.lastLimit)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp RequestsResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.NotNil(t, resp.Requests)
			assert.Len(t, resp.Requests, tt.wantCount)
		})
	}
}

func TestRequestsWithoutJournal(t *testing.T) {
	s := newTestServer(Config{}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requests", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartAndShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := newTestServer(Config{Listen: addr}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
