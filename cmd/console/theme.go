package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

// palette is the set of styles for one theme.
type palette struct {
	title     lipgloss.Style
	narrator  lipgloss.Style
	user      lipgloss.Style
	system    lipgloss.Style
	choice    lipgloss.Style
	accent    lipgloss.Style
	border    lipgloss.Color
	separator lipgloss.Style
}

func newPalette(title, narrator, user, system, accent, border string) palette {
	return palette{
		title:     lipgloss.NewStyle().Foreground(lipgloss.Color(title)).Bold(true),
		narrator:  lipgloss.NewStyle().Foreground(lipgloss.Color(narrator)),
		user:      lipgloss.NewStyle().Foreground(lipgloss.Color(user)),
		system:    lipgloss.NewStyle().Foreground(lipgloss.Color(system)).Italic(true),
		choice:    lipgloss.NewStyle().Foreground(lipgloss.Color(accent)),
		accent:    lipgloss.NewStyle().Foreground(lipgloss.Color(accent)).Bold(true),
		border:    lipgloss.Color(border),
		separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

var palettes = map[string]palette{
	story.ThemeDefault: newPalette("205", "86", "39", "244", "212", "62"),  // pink, green, teal
	story.ThemeSciFi:   newPalette("51", "159", "45", "109", "87", "33"),   // cyan
	story.ThemeHorror:  newPalette("160", "181", "137", "242", "196", "88"), // blood red
}

func paletteFor(theme string) palette {
	if p, ok := palettes[theme]; ok {
		return p
	}
	return palettes[story.ThemeDefault]
}

var (
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Bold(true)

	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(2)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingRight(2)
)
