package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/scriptbridge/internal/api"
	"github.com/mattjoyce/scriptbridge/internal/journal"
	"github.com/mattjoyce/scriptbridge/internal/metrics"
)

type staticLister []journal.Entry

func (s staticLister) Recent(context.Context, int) ([]journal.Entry, error) { return s, nil }

func newOpsServer(t *testing.T, token string, lister api.RequestLister) *httptest.Server {
	t.Helper()
	m := metrics.New()
	m.SetSymbols(2)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := api.New(api.Config{Token: token, Worker: "w", Profile: "plain"}, m, m.Handler(), lister, logger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestClientFetch(t *testing.T) {
	entries := staticLister{{ID: "r1", Kind: "call", Func: "add", StartedAt: time.Now()}}

	tests := []struct {
		name        string
		token       string
		clientToken string
		lister      api.RequestLister
		wantErr     bool
		wantJournal bool
	}{
		{name: "with journal", lister: entries, wantJournal: true},
		{name: "without journal"},
		{name: "token accepted", token: "t", clientToken: "t", lister: entries, wantJournal: true},
		{name: "token rejected", token: "t", clientToken: "wrong", lister: entries, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newOpsServer(t, tt.token, tt.lister)
			snap, err := NewClient(srv.URL+"/", tt.clientToken, 10).Fetch(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", snap.Health.Status)
			assert.Equal(t, 2, snap.Health.Symbols)
			assert.Equal(t, tt.wantJournal, snap.JournalEnabled)
			if tt.wantJournal {
				assert.Len(t, snap.Requests, 1)
			}
		})
	}
}

func TestClientFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "", 0).Fetch(context.Background())
	assert.Error(t, err)
}

func TestMonitorUpdate(t *testing.T) {
	m := NewMonitor(NewClient("http://127.0.0.1:0", "", 10), time.Second)
	assert.Equal(t, "Initializing...", m.View())

	model, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = model.(Model)
	assert.Contains(t, m.View(), "CONNECTING")

	model, cmd := m.Update(snapshotMsg(Snapshot{
		Health:         api.HealthzResponse{Status: "ok", Worker: "w", Profile: "framed", Symbols: 3},
		JournalEnabled: true,
		Requests:       []journal.Entry{{ID: "r1", Kind: "call", Func: "add", StartedAt: time.Now()}},
	}))
	m = model.(Model)
	assert.NotNil(t, cmd, "a snapshot schedules the next tick")
	view := m.View()
	assert.Contains(t, view, "RUNNING")
	assert.Contains(t, view, "Symbols: 3")
	assert.Contains(t, view, "add")
	assert.Len(t, m.requests.Rows(), 1)

	model, _ = m.Update(errMsg{err: errors.New("connection refused")})
	m = model.(Model)
	view = m.View()
	assert.Contains(t, view, "UNREACHABLE")
	assert.Contains(t, view, "connection refused")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestMonitorJournalDisabled(t *testing.T) {
	m := NewMonitor(NewClient("http://127.0.0.1:0", "", 10), time.Second)
	model, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	model, _ = model.Update(snapshotMsg(Snapshot{Health: api.HealthzResponse{Status: "ok"}}))
	assert.Contains(t, model.View(), "Journal disabled")
}
