package monitor

import "github.com/charmbracelet/lipgloss"

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	// Units and secondary info
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("45"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)
)

// levelStyle picks the style for an event level.
func levelStyle(level string) lipgloss.Style {
	switch level {
	case "error":
		return errorStyle
	case "warning":
		return warningStyle
	}
	return dimStyle
}

// statusBadge renders a run or agent status.
func statusBadge(status string) string {
	switch status {
	case "completed", "done":
		return healthyStyle.Render("✓ " + status)
	case "running":
		return warningStyle.Render("● " + status)
	case "cancelled", "paused":
		return warningStyle.Render("■ " + status)
	case "failed":
		return errorStyle.Render("✗ " + status)
	case "":
		return dimStyle.Render("-")
	}
	return dimStyle.Render(status)
}

// footer renders key hints as [k] label pairs.
func footer(pairs ...string) string {
	var out string
	for i := 0; i+1 < len(pairs); i += 2 {
		out += footerKeyStyle.Render("["+pairs[i]+"]") + footerStyle.Render(" "+pairs[i+1]+"  ")
	}
	return out
}
