package chat

import (
	"encoding/json"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderRows formats a query tool's JSON row array one row mapping per
// line. Output that is not a JSON array is returned verbatim; an empty
// array renders the fixed no-results notice.
func RenderRows(content string) string {
	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(content), &rows); err != nil {
		return content
	}
	if len(rows) == 0 {
		return "No results returned."
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = string(row)
	}
	return strings.Join(lines, "\n")
}

// Terminal styles for the REPL. Colors are from the basic ANSI palette so
// they track the user's terminal theme.
var (
	styleUser      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	styleAssistant = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleMeta      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

// FormatTurn renders one transcript turn for terminal display.
func FormatTurn(t Turn) string {
	if t.Role == RoleUser {
		return styleUser.Render("you ▸ ") + t.Content
	}
	if strings.HasPrefix(t.Content, "Error: ") {
		return styleAssistant.Render("bot ▸ ") + styleError.Render(t.Content)
	}
	return styleAssistant.Render("bot ▸ ") + t.Content
}

// FormatMeta renders informational REPL output such as tool listings.
func FormatMeta(s string) string {
	return styleMeta.Render(s)
}
