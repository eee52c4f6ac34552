package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mcdev12/emdrtap/go/internal/tap"
	"github.com/rs/zerolog/log"
)

// Session is the part of tap.Session the playback screen drives.
type Session interface {
	Views() <-chan tap.View
	TogglePlaying() error
	AdjustSpeed(delta float64) error
	CycleDuration() error
	CycleIcon() error
	ToggleSettings() error
}

type viewMsg tap.View

type sessionEndedMsg struct{}

type playModel struct {
	session Session
	view    tap.View
	hasView bool
	width   int
	styles  styles
}

func newPlayModel(s Session) playModel {
	return playModel{session: s, styles: newStyles()}
}

func waitForView(s Session) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-s.Views()
		if !ok {
			return sessionEndedMsg{}
		}
		return viewMsg(v)
	}
}

func (m playModel) Init() tea.Cmd {
	return waitForView(m.session)
}

func (m playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case viewMsg:
		m.view = tap.View(msg)
		m.hasView = true
		return m, waitForView(m.session)

	case sessionEndedMsg:
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		if !m.hasView || !m.view.Ready || m.view.Session.IsGuest() {
			return m, nil
		}
		m.control(key)
	}
	return m, nil
}

// control maps a key to a session command. Speed and duration are only
// reachable while the settings panel is open.
func (m playModel) control(key string) {
	var err error
	switch key {
	case " ":
		err = m.session.TogglePlaying()
	case "i":
		err = m.session.CycleIcon()
	case "s":
		err = m.session.ToggleSettings()
	case "left", "h":
		if m.view.Settings {
			err = m.session.AdjustSpeed(-tap.SpeedStep)
		}
	case "right", "l":
		if m.view.Settings {
			err = m.session.AdjustSpeed(tap.SpeedStep)
		}
	case "d":
		if m.view.Settings {
			err = m.session.CycleDuration()
		}
	}
	if err != nil && !errors.Is(err, tap.ErrClosed) {
		log.Warn().Err(err).Str("key", key).Msg("control failed")
	}
}

func (m playModel) View() string {
	if !m.hasView {
		return m.styles.header.Render("Starting session...")
	}
	return renderPlayback(m.view, m.styles, m.width)
}

// RunSession runs s and shows it until the user quits or the session ends.
// The session is stopped before RunSession returns.
func RunSession(ctx context.Context, s *tap.Session, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	p := tea.NewProgram(newPlayModel(s), append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)...)
	_, uiErr := p.Run()

	cancel()
	runErr := <-errCh
	if runErr != nil {
		return fmt.Errorf("run session: %w", runErr)
	}
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return uiErr
	}
	return nil
}
