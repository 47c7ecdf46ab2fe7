package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mattjoyce/scriptbridge/internal/journal"
)

// EntryHeaders are the columns of a journal listing.
var EntryHeaders = []string{"ST", "Started", "Kind", "Target", "Duration", "ID", "Error"}

// EntryRow flattens one journal entry into table cells. The status cell is
// left unstyled.
func EntryRow(e journal.Entry) []string {
	status := "ok"
	if e.Failed() {
		status = "err"
	}

	target := e.Func
	if e.Kind == "init" {
		target = strings.Join(e.Names, ",")
	}

	return []string{
		status,
		e.StartedAt.Local().Format("15:04:05.000"),
		e.Kind,
		truncate(target, 32),
		e.Duration.Round(time.Microsecond).String(),
		truncate(e.ID, 8),
		truncate(e.Error, 60),
	}
}

// RenderEntries draws entries as a bordered table.
func RenderEntries(theme Theme, entries []journal.Entry) string {
	if len(entries) == 0 {
		return theme.Dim.Render("No requests recorded.")
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = EntryRow(e)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.Border.GetBorderTopForeground())).
		Headers(EntryHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return theme.Header.Padding(0, 1)
			case col != 0 || row < 0 || row >= len(rows):
				return lipgloss.NewStyle().Padding(0, 1)
			case rows[row][0] == "err":
				return theme.StatusFailed.Padding(0, 1)
			default:
				return theme.StatusOK.Padding(0, 1)
			}
		})
	return t.Render()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
