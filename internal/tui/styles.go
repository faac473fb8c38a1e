package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ------- minimal styling helpers (Lip Gloss) -------
type styles struct {
	button  lipgloss.Style
	pressed lipgloss.Style
	help    lipgloss.Style
}

func stylesFor(theme string) styles {
	base := lipgloss.NewStyle().
		Bold(true).
		Border(lipgloss.RoundedBorder()).
		Padding(0, 3)

	switch strings.ToLower(theme) {
	case "neon":
		return styles{
			button:  base.BorderForeground(lipgloss.Color("13")).Foreground(lipgloss.Color("14")),
			pressed: base.BorderForeground(lipgloss.Color("14")).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("13")),
			help:    lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Faint(true),
		}
	case "mono":
		return styles{
			button:  base.Border(lipgloss.NormalBorder()),
			pressed: base.Border(lipgloss.NormalBorder()).Reverse(true),
			help:    lipgloss.NewStyle().Faint(true),
		}
	default: // classic
		return styles{
			button:  base.BorderForeground(lipgloss.Color("8")).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("240")),
			pressed: base.BorderForeground(lipgloss.Color("12")).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("12")),
			help:    lipgloss.NewStyle().Faint(true),
		}
	}
}
