package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mcdev12/emdrtap/go/internal/session"
)

// ErrCancelled is returned when the user leaves the join screen.
var ErrCancelled = errors.New("join cancelled")

// Joiner validates a typed session ID.
type Joiner interface {
	Join(ctx context.Context, candidate string) (session.Context, error)
}

type joinDoneMsg struct {
	sc  session.Context
	err error
}

type joinModel struct {
	ctx    context.Context
	joiner Joiner

	digits     string
	validating bool
	status     string
	spinner    spinner.Model

	joined bool
	result session.Context
	styles styles
}

func newJoinModel(ctx context.Context, joiner Joiner, initial string) joinModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	m := joinModel{
		ctx:     ctx,
		joiner:  joiner,
		spinner: s,
		styles:  newStyles(),
	}
	for _, r := range initial {
		if len(m.digits) == session.IDLength {
			break
		}
		if r >= '0' && r <= '9' {
			m.digits += string(r)
		}
	}
	m.validating = len(m.digits) == session.IDLength
	return m
}

func (m joinModel) Init() tea.Cmd {
	if m.validating {
		return tea.Batch(m.spinner.Tick, m.join(m.digits))
	}
	return nil
}

func (m joinModel) join(candidate string) tea.Cmd {
	return func() tea.Msg {
		sc, err := m.joiner.Join(m.ctx, candidate)
		return joinDoneMsg{sc: sc, err: err}
	}
}

func (m joinModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.validating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case joinDoneMsg:
		m.validating = false
		if msg.err == nil {
			m.joined = true
			m.result = msg.sc
			return m, tea.Quit
		}
		m.status = joinStatus(msg.err)
		m.digits = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c", "q":
			return m, tea.Quit
		}
		if m.validating {
			return m, nil
		}

		if msg.Type == tea.KeyBackspace {
			if len(m.digits) > 0 {
				m.digits = m.digits[:len(m.digits)-1]
			}
			m.status = ""
			return m, nil
		}

		key := msg.String()
		if len(key) != 1 || key[0] < '0' || key[0] > '9' {
			return m, nil
		}
		m.digits += key
		m.status = ""
		if len(m.digits) < session.IDLength {
			return m, nil
		}
		m.validating = true
		return m, tea.Batch(m.spinner.Tick, m.join(m.digits))
	}
	return m, nil
}

func joinStatus(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrInvalidID):
		return "invalid session"
	case errors.Is(err, session.ErrLookupFailed):
		return "could not reach the session service"
	case errors.Is(err, session.ErrJoinInProgress):
		return ""
	default:
		return err.Error()
	}
}

func (m joinModel) View() string {
	slots := make([]string, session.IDLength)
	for i := range slots {
		if i < len(m.digits) {
			slots[i] = m.styles.digit.Render(string(m.digits[i]))
		} else {
			slots[i] = m.styles.slot.Render("_")
		}
	}

	status := " "
	switch {
	case m.validating:
		status = fmt.Sprintf("%s %s", m.spinner.View(), m.styles.header.Render("Checking session..."))
	case m.status != "":
		status = m.styles.status.Render(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.title.Render("Join a session"),
		"",
		"  "+strings.Join(slots, " "),
		"",
		status,
		m.styles.section.Render(m.styles.help.Render("0-9 enter digits · backspace delete · esc back")),
	)
}

// RunJoin shows the keypad until a session is joined or the user leaves.
// Digits in initial are entered up front.
func RunJoin(ctx context.Context, joiner Joiner, initial string, opts ...tea.ProgramOption) (session.Context, error) {
	p := tea.NewProgram(newJoinModel(ctx, joiner, initial), append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)

	finalModel, err := p.Run()
	if err != nil {
		return session.Context{}, err
	}

	result, ok := finalModel.(joinModel)
	if !ok {
		return session.Context{}, fmt.Errorf("unexpected final join model type %T", finalModel)
	}
	if !result.joined {
		return session.Context{}, ErrCancelled
	}
	return result.result, nil
}
