package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	selected lipgloss.Style
	item     lipgloss.Style
	help     lipgloss.Style
	digit    lipgloss.Style
	slot     lipgloss.Style
	status   lipgloss.Style
	track    lipgloss.Style
	target   lipgloss.Style
	time     lipgloss.Style
	alert    lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	barFill  lipgloss.Style
	barEmpty lipgloss.Style
	panel    lipgloss.Style
	section  lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true),
		header:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		item:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		help:     lipgloss.NewStyle().Faint(true),
		digit:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		slot:     lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		status:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		track:    lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		target:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("159")),
		time:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		alert:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		label:    lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		value:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		barFill:  lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		barEmpty: lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		panel:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("241")).Padding(0, 1),
		section:  lipgloss.NewStyle().MarginTop(1),
	}
}
