package tui

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mcdev12/emdrtap/go/internal/animator"
	"github.com/mcdev12/emdrtap/go/internal/countdown"
	"github.com/mcdev12/emdrtap/go/internal/playback"
	"github.com/mcdev12/emdrtap/go/internal/session"
	"github.com/mcdev12/emdrtap/go/internal/tap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestMenuSelectsChoice(t *testing.T) {
	var m tea.Model = newMenuModel()

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Contains(t, m.View(), "› ")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, ChoiceJoin, m.(menuModel).choice)

	var quit tea.Model = newMenuModel()
	quit, cmd = quit.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, ChoiceNone, quit.(menuModel).choice)
}

type fakeJoiner struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeJoiner) Join(_ context.Context, candidate string) (session.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, candidate)
	if f.err != nil {
		return session.Context{}, f.err
	}
	return session.Guest(session.ID(candidate)), nil
}

func typeDigits(m tea.Model, digits string) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, r := range digits {
		m, cmd = m.Update(runes(string(r)))
	}
	return m, cmd
}

func TestJoinSubmitsOnFourthDigit(t *testing.T) {
	joiner := &fakeJoiner{}
	var m tea.Model = newJoinModel(context.Background(), joiner, "")

	m, cmd := typeDigits(m, "48")
	assert.Nil(t, cmd)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m, _ = m.Update(runes("x"))
	assert.Equal(t, "4", m.(joinModel).digits)

	m, cmd = typeDigits(m, "821")
	require.NotNil(t, cmd)
	jm := m.(joinModel)
	assert.True(t, jm.validating)
	assert.Contains(t, jm.View(), "Checking session")

	// keys are ignored while a lookup is running
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "4821", m.(joinModel).digits)

	sc, err := joiner.Join(context.Background(), "4821")
	m, cmd = m.Update(joinDoneMsg{sc: sc, err: err})
	require.NotNil(t, cmd)
	jm = m.(joinModel)
	assert.True(t, jm.joined)
	assert.Equal(t, session.Guest("4821"), jm.result)
}

func TestJoinInvalidSessionClearsDigits(t *testing.T) {
	joiner := &fakeJoiner{err: fmt.Errorf("join 0001: %w", session.ErrSessionNotFound)}
	var m tea.Model = newJoinModel(context.Background(), joiner, "0001")
	jm := m.(joinModel)
	require.True(t, jm.validating)
	require.NotNil(t, jm.Init())

	_, err := joiner.Join(context.Background(), "0001")
	m, cmd := m.Update(joinDoneMsg{err: err})
	assert.Nil(t, cmd)
	jm = m.(joinModel)
	assert.False(t, jm.joined)
	assert.Empty(t, jm.digits)
	assert.Contains(t, jm.View(), "invalid session")

	m, _ = m.Update(runes("7"))
	assert.NotContains(t, m.View(), "invalid session")
}

func TestJoinStatus(t *testing.T) {
	assert.Equal(t, "invalid session", joinStatus(session.ErrInvalidID))
	assert.Equal(t, "could not reach the session service", joinStatus(fmt.Errorf("join: %w", session.ErrLookupFailed)))
}

type fakeSession struct {
	views chan tap.View
	calls []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{views: make(chan tap.View, 1)}
}

func (f *fakeSession) Views() <-chan tap.View { return f.views }
func (f *fakeSession) TogglePlaying() error   { f.calls = append(f.calls, "toggle"); return nil }
func (f *fakeSession) CycleDuration() error   { f.calls = append(f.calls, "duration"); return nil }
func (f *fakeSession) CycleIcon() error       { f.calls = append(f.calls, "icon"); return nil }
func (f *fakeSession) ToggleSettings() error  { f.calls = append(f.calls, "settings"); return nil }
func (f *fakeSession) AdjustSpeed(delta float64) error {
	f.calls = append(f.calls, fmt.Sprintf("speed %+.1f", delta))
	return nil
}

func hostView(settings bool) tap.View {
	return tap.View{
		Session:  session.Host("0042"),
		Ready:    true,
		State:    playback.State{Speed: time.Second, Duration: time.Minute, Icon: 1},
		Position: animator.Center,
		Time:     countdown.Reading{State: countdown.Idle, Remaining: time.Minute},
		Settings: settings,
	}
}

func TestPlayModelKeys(t *testing.T) {
	fake := newFakeSession()
	var m tea.Model = newPlayModel(fake)
	assert.Contains(t, m.View(), "Starting session")

	m, cmd := m.Update(viewMsg(hostView(false)))
	require.NotNil(t, cmd)
	for _, k := range []tea.KeyMsg{{Type: tea.KeySpace}, runes("i"), runes("d"), {Type: tea.KeyRight}} {
		m, _ = m.Update(k)
	}
	assert.Equal(t, []string{"toggle", "icon"}, fake.calls, "speed and duration need the settings panel")

	fake.calls = nil
	m, _ = m.Update(viewMsg(hostView(true)))
	for _, k := range []tea.KeyMsg{runes("d"), {Type: tea.KeyRight}, {Type: tea.KeyLeft}, runes("s")} {
		m, _ = m.Update(k)
	}
	assert.Equal(t, []string{"duration", "speed +0.1", "speed -0.1", "settings"}, fake.calls)

	_, cmd = m.Update(runes("q"))
	assert.NotNil(t, cmd)
}

func TestPlayModelGuestIgnoresControls(t *testing.T) {
	fake := newFakeSession()
	var m tea.Model = newPlayModel(fake)

	v := hostView(true)
	v.Session = session.Guest("0042")
	m, _ = m.Update(viewMsg(v))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m, _ = m.Update(runes("s"))
	assert.Empty(t, fake.calls)

	_, cmd := m.Update(sessionEndedMsg{})
	assert.NotNil(t, cmd)
}

func TestRenderPlayback(t *testing.T) {
	s := newStyles()

	out := renderPlayback(hostView(false), s, 80)
	assert.Contains(t, out, "Hosting session 0042")
	assert.Contains(t, out, "1:00")
	assert.Contains(t, out, "paused")
	assert.Contains(t, out, iconGlyph(1))
	assert.NotContains(t, out, "duration")

	out = renderPlayback(hostView(true), s, 80)
	assert.Contains(t, out, "1 min")
	assert.Contains(t, out, "star")
	assert.Contains(t, out, "1.0s")

	guest := hostView(true)
	guest.Session = session.Guest("0042")
	guest.State.IsPlaying = true
	guest.State.Duration = playback.Infinite
	guest.Time = countdown.Reading{State: countdown.Running, Infinite: true}
	out = renderPlayback(guest, s, 80)
	assert.Contains(t, out, "Following session 0042")
	assert.Contains(t, out, "∞")
	assert.Contains(t, out, "playing")
	assert.NotContains(t, out, "1.0s", "guests never see the settings panel")

	waiting := guest
	waiting.Ready = false
	assert.Contains(t, renderPlayback(waiting, s, 80), "Waiting for the host")
}

func TestRenderTrackPositions(t *testing.T) {
	s := newStyles()
	v := hostView(false)

	for _, pos := range []animator.Position{animator.Left, animator.Center, animator.Right} {
		v.Position = pos
		out := renderTrack(v, s, 11)
		assert.Contains(t, out, iconGlyph(1), pos.String())
	}
	assert.Equal(t, defaultTrackWidth, trackWidth(0))
	assert.Equal(t, minTrackWidth, trackWidth(5))
	assert.Equal(t, 26, trackWidth(30))
}

func TestDurationLabel(t *testing.T) {
	assert.Equal(t, "∞", durationLabel(playback.Infinite))
	assert.Equal(t, "5 min", durationLabel(5*time.Minute))
	assert.Equal(t, "1m30s", durationLabel(90*time.Second))
}
