package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("call", OutcomeOK, 3*time.Millisecond)
	m.ObserveRequest("call", OutcomeOK, time.Millisecond)
	m.ObserveRequest("call", OutcomeError, time.Millisecond)
	m.ObserveRequest("init", OutcomeOK, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("call", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("call", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("init", OutcomeOK)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestSetSymbols(t *testing.T) {
	m := New()
	m.SetSymbols(4)
	assert.Equal(t, 4, m.Symbols())
	assert.Equal(t, 4.0, testutil.ToFloat64(m.symbols))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("call", OutcomeOK, time.Second)
		m.SetSymbols(3)
	})
	assert.Equal(t, 0, m.Symbols())
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRequest("call", OutcomeOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `scriptbridge_requests_total{kind="call",outcome="ok"} 1`), body)
	assert.Contains(t, body, "scriptbridge_registry_symbols 0")
}
