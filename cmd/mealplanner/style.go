package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tailored-agentic-units/mealplanner/phase"
)

type styles struct {
	badge    lipgloss.Style
	reply    lipgloss.Style
	tool     lipgloss.Style
	toolFail lipgloss.Style
	handoff  lipgloss.Style
	err      lipgloss.Style
	ok       lipgloss.Style
	faint    lipgloss.Style
}

var phaseColors = map[string]lipgloss.Color{
	string(phase.Inspiration): lipgloss.Color("212"),
	string(phase.Planning):    lipgloss.Color("39"),
	string(phase.Execution):   lipgloss.Color("42"),
}

func newStyles() styles {
	return styles{
		badge:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Padding(0, 1),
		reply:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		tool:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		toolFail: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		handoff:  lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("179")),
		err:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		ok:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		faint:    lipgloss.NewStyle().Faint(true),
	}
}

// phaseBadge renders the phase name on its phase color.
func (s styles) phaseBadge(name string) string {
	color, ok := phaseColors[name]
	if !ok {
		color = lipgloss.Color("244")
	}
	return s.badge.Background(color).Render(name)
}
