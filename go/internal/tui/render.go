package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mcdev12/emdrtap/go/internal/animator"
	"github.com/mcdev12/emdrtap/go/internal/playback"
	"github.com/mcdev12/emdrtap/go/internal/session"
	"github.com/mcdev12/emdrtap/go/internal/tap"
)

const (
	defaultTrackWidth = 41
	minTrackWidth     = 11
	sliderWidth       = 20
)

var iconGlyphs = [playback.NumIcons]string{"●", "★", "☾", "⚛", "☺", "✿"}

func iconGlyph(icon int) string {
	if icon < 0 || icon >= len(iconGlyphs) {
		return iconGlyphs[0]
	}
	return iconGlyphs[icon]
}

func renderPlayback(v tap.View, s styles, width int) string {
	lines := []string{
		s.title.Render("EMDR Tap"),
		s.header.Render(sessionLine(v.Session)),
	}

	if !v.Ready {
		lines = append(lines,
			s.section.Render(s.help.Render("Waiting for the host...")),
			s.section.Render(s.help.Render("q quit")),
		)
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines = append(lines,
		s.section.Render(renderTrack(v, s, trackWidth(width))),
		s.section.Render(renderStatus(v, s)),
	)
	if v.Settings && !v.Session.IsGuest() {
		lines = append(lines, s.section.Render(renderSettings(v, s)))
	}
	lines = append(lines, s.section.Render(s.help.Render(helpLine(v))))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func sessionLine(sc session.Context) string {
	switch sc.Role {
	case session.RoleHost:
		return fmt.Sprintf("Hosting session %s", sc.ID)
	case session.RoleGuest:
		return fmt.Sprintf("Following session %s", sc.ID)
	default:
		return "Local session"
	}
}

func trackWidth(width int) int {
	if width <= 0 || width-4 >= defaultTrackWidth {
		return defaultTrackWidth
	}
	return max(width-4, minTrackWidth)
}

func renderTrack(v tap.View, s styles, width int) string {
	idx := width / 2
	switch v.Position {
	case animator.Left:
		idx = 0
	case animator.Right:
		idx = width - 1
	}

	return s.track.Render(strings.Repeat("─", idx)) +
		s.target.Render(iconGlyph(v.State.Icon)) +
		s.track.Render(strings.Repeat("─", width-1-idx))
}

func renderStatus(v tap.View, s styles) string {
	state := "❚❚ paused"
	if v.State.IsPlaying {
		state = "▶ playing"
	}

	timeStyle := s.time
	if v.Time.Alert {
		timeStyle = s.alert
	}
	return fmt.Sprintf("%s  %s", timeStyle.Render(v.Time.Format()), s.value.Render(state))
}

func renderSettings(v tap.View, s styles) string {
	rows := []string{
		fmt.Sprintf("%s %s %s",
			s.label.Render("speed   "),
			renderSlider(v.SpeedSlider(), s),
			s.value.Render(fmt.Sprintf("%.1fs", v.State.Speed.Seconds()))),
		fmt.Sprintf("%s %s", s.label.Render("duration"), s.value.Render(durationLabel(v.State.Duration))),
		fmt.Sprintf("%s %s %s", s.label.Render("icon    "), s.target.Render(iconGlyph(v.State.Icon)), s.value.Render(playback.IconName(v.State.Icon))),
	}
	return s.panel.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderSlider(v float64, s styles) string {
	filled := int(math.Round(v * sliderWidth))
	filled = min(max(filled, 0), sliderWidth)
	return s.barEmpty.Render("[") +
		s.barFill.Render(strings.Repeat("█", filled)) +
		s.barEmpty.Render(strings.Repeat("░", sliderWidth-filled)) +
		s.barEmpty.Render("]")
}

func durationLabel(d time.Duration) string {
	if d == playback.Infinite {
		return "∞"
	}
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d min", int(d/time.Minute))
	}
	return d.String()
}

func helpLine(v tap.View) string {
	switch {
	case v.Session.IsGuest():
		return "q quit"
	case v.Settings:
		return "space play/pause · ←/→ speed · d duration · i icon · s close settings · q quit"
	default:
		return "space play/pause · i icon · s settings · q quit"
	}
}
