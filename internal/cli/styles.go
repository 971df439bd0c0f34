package cli

import "github.com/charmbracelet/lipgloss"

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAFD7"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00D787"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF005F"))
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
)

func ratingMark(r string) string {
	switch r {
	case "up":
		return " 👍"
	case "down":
		return " 👎"
	default:
		return ""
	}
}
