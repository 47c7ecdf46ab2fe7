package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// --- Messages ---

type snapshotMsg Snapshot

type errMsg struct{ err error }

type tickMsg time.Time

// Model is the bubbletea model for the live monitor.
type Model struct {
	client   *Client
	interval time.Duration
	theme    Theme

	width  int
	height int

	snapshot Snapshot
	polled   bool
	lastErr  error

	requests table.Model
}

// NewMonitor creates a monitor that polls client every interval.
func NewMonitor(client *Client, interval time.Duration) Model {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	theme := NewDefaultTheme()

	columns := make([]table.Column, len(EntryHeaders))
	widths := []int{3, 12, 6, 24, 10, 8, 40}
	for i, h := range EntryHeaders {
		columns[i] = table.Column{Title: h, Width: widths[i]}
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return Model{
		client:   client,
		interval: interval,
		theme:    theme,
		requests: t,
	}
}

// Init starts the first poll.
func (m Model) Init() tea.Cmd {
	return m.poll()
}

// Update handles input, poll results and ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.poll()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.requests.SetWidth(max(m.width-6, 20))
		m.requests.SetHeight(max(m.height-12, 3))
		return m, nil

	case snapshotMsg:
		m.snapshot = Snapshot(msg)
		m.polled = true
		m.lastErr = nil
		rows := make([]table.Row, len(m.snapshot.Requests))
		for i, e := range m.snapshot.Requests {
			rows[i] = table.Row(EntryRow(e))
		}
		m.requests.SetRows(rows)
		return m, m.tick()

	case errMsg:
		m.lastErr = msg.err
		return m, m.tick()

	case tickMsg:
		return m, m.poll()
	}

	var cmd tea.Cmd
	m.requests, cmd = m.requests.Update(msg)
	return m, cmd
}

// View renders the monitor.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	body := m.theme.Dim.Render("  Journal disabled on this worker.")
	if m.snapshot.JournalEnabled {
		body = m.requests.View()
	}

	requests := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("Recent Requests"),
			body,
		),
	)

	help := m.theme.Dim.Render(" [q] Quit • [r] Refresh • [↑/↓] Scroll")

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), requests, help),
	)
}

func (m Model) renderHeader() string {
	status := m.theme.Dim.Render("CONNECTING")
	switch {
	case m.lastErr != nil:
		status = m.theme.StatusFailed.Render("UNREACHABLE")
	case m.polled && m.snapshot.Health.Status == "ok":
		status = m.theme.StatusOK.Render("RUNNING")
	case m.polled:
		status = m.theme.StatusFailed.Render(strings.ToUpper(m.snapshot.Health.Status))
	}

	h := m.snapshot.Health
	items := []string{
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("Worker: %s (%s)", h.Worker, h.Profile),
		fmt.Sprintf("Uptime: %s", (time.Duration(h.UptimeSeconds) * time.Second).String()),
		fmt.Sprintf("Symbols: %d", h.Symbols),
	}
	cell := lipgloss.NewStyle().Width((m.width - 4) / len(items))
	cells := make([]string, len(items))
	for i, item := range items {
		cells[i] = cell.Render(item)
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top, cells...)
	if m.lastErr != nil {
		header = lipgloss.JoinVertical(lipgloss.Left, header, m.theme.StatusFailed.Render(m.lastErr.Error()))
	}
	return m.theme.Border.Width(m.width - 4).Render(header)
}

// --- Commands ---

func (m Model) poll() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		snap, err := client.Fetch(context.Background())
		if err != nil {
			return errMsg{err: err}
		}
		return snapshotMsg(snap)
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunMonitor runs the monitor full screen until the user quits.
func RunMonitor(client *Client, interval time.Duration) error {
	_, err := tea.NewProgram(NewMonitor(client, interval), tea.WithAltScreen()).Run()
	return err
}
