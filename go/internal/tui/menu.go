// Package tui is the terminal front end: the main menu, the join keypad and
// the playback screen.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Choice is what the user picked on the main menu.
type Choice int

const (
	ChoiceNone Choice = iota
	ChoiceHost
	ChoiceJoin
	ChoiceLocal
)

func (c Choice) String() string {
	switch c {
	case ChoiceHost:
		return "host"
	case ChoiceJoin:
		return "join"
	case ChoiceLocal:
		return "local"
	default:
		return "none"
	}
}

var menuItems = []struct {
	choice Choice
	label  string
	detail string
}{
	{ChoiceHost, "Host a session", "guests follow your controls"},
	{ChoiceJoin, "Join a session", "follow a host with a 4-digit ID"},
	{ChoiceLocal, "Just me", "no sharing"},
}

type menuModel struct {
	cursor int
	choice Choice
	styles styles
}

func newMenuModel() menuModel {
	return menuModel{styles: newStyles()}
}

func (m menuModel) Init() tea.Cmd { return nil }

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(menuItems)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.choice = menuItems[m.cursor].choice
		return m, tea.Quit
	case "q", "esc", "ctrl+c":
		m.choice = ChoiceNone
		return m, tea.Quit
	}
	return m, nil
}

func (m menuModel) View() string {
	lines := []string{
		m.styles.title.Render("EMDR Tap"),
		"",
	}
	for i, item := range menuItems {
		cursor := "  "
		style := m.styles.item
		if i == m.cursor {
			cursor = "› "
			style = m.styles.selected
		}
		lines = append(lines, fmt.Sprintf("%s%s  %s", cursor, style.Render(item.label), m.styles.header.Render(item.detail)))
	}
	lines = append(lines, m.styles.section.Render(m.styles.help.Render("↑/↓ move · enter select · q quit")))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// RunMenu shows the main menu and returns the selection. ChoiceNone means
// the user quit.
func RunMenu(ctx context.Context, opts ...tea.ProgramOption) (Choice, error) {
	p := tea.NewProgram(newMenuModel(), append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)

	finalModel, err := p.Run()
	if err != nil {
		return ChoiceNone, err
	}

	result, ok := finalModel.(menuModel)
	if !ok {
		return ChoiceNone, fmt.Errorf("unexpected final menu model type %T", finalModel)
	}
	return result.choice, nil
}
