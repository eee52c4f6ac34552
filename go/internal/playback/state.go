// Package playback holds the playback parameters of a session and the owner
// that mutates them.
package playback

import (
	"fmt"
	"math"
	"time"
)

const (
	// NumIcons is the size of the icon catalog.
	NumIcons = 6
	// DefaultSpeedSlider is the slider position used when nothing is persisted.
	DefaultSpeedSlider = 0.5
	// Infinite is the duration sentinel for sessions that never expire.
	Infinite time.Duration = 0

	slowestSpeed = 1.5
)

var iconNames = [NumIcons]string{"circle", "star", "moon", "atom", "face", "warren"}

var durationPresets = []time.Duration{
	60 * time.Second,
	300 * time.Second,
	Infinite,
}

// IconName returns the catalog name of icon, or "unknown".
func IconName(icon int) string {
	if icon < 0 || icon >= NumIcons {
		return "unknown"
	}
	return iconNames[icon]
}

// NextIcon returns the icon after icon, wrapping to the first.
func NextIcon(icon int) int {
	if icon < 0 || icon >= NumIcons-1 {
		return 0
	}
	return icon + 1
}

// NumPresets is the number of duration choices offered by the selector.
func NumPresets() int { return len(durationPresets) }

// DurationForPreset maps a selector index to its duration.
func DurationForPreset(index int) (time.Duration, error) {
	if index < 0 || index >= len(durationPresets) {
		return 0, fmt.Errorf("duration preset %d: %w", index, ErrInvalidPreset)
	}
	return durationPresets[index], nil
}

// PresetForDuration maps a duration back to its selector index. Durations that
// match no preset select the first one.
func PresetForDuration(d time.Duration) int {
	for i, p := range durationPresets {
		if p == d {
			return i
		}
	}
	return 0
}

// SpeedForSlider converts a slider position in [0, 1] to the step interval.
// Moving the slider right makes the ball faster.
func SpeedForSlider(v float64) time.Duration {
	v = clamp01(v)
	return time.Duration(math.Round((slowestSpeed - v) * float64(time.Second)))
}

// SliderForSpeed is the inverse of SpeedForSlider.
func SliderForSpeed(speed time.Duration) float64 {
	return clamp01(slowestSpeed - speed.Seconds())
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultSpeedSlider
	}
	return math.Max(0, math.Min(1, v))
}

// State is the full set of playback parameters shared between host and guests.
type State struct {
	IsPlaying bool
	// Speed is the time between two animation steps.
	Speed time.Duration
	// Duration is the session length; Infinite means no limit.
	Duration time.Duration
	Icon     int
}

// Initial builds the state a host or local session starts with from persisted
// selector values. Out of range values fall back to their defaults.
func Initial(slider float64, preset int, icon int) State {
	d, err := DurationForPreset(preset)
	if err != nil {
		d = durationPresets[0]
	}
	if icon < 0 || icon >= NumIcons {
		icon = 0
	}
	return State{
		IsPlaying: false,
		Speed:     SpeedForSlider(slider),
		Duration:  d,
		Icon:      icon,
	}
}

// Infinite reports whether the session has no duration limit.
func (s State) Infinite() bool { return s.Duration == Infinite }

// Validate checks the state invariants.
func (s State) Validate() error {
	if s.Speed <= 0 {
		return fmt.Errorf("speed %s: %w", s.Speed, ErrInvalidSpeed)
	}
	if s.Duration < 0 {
		return fmt.Errorf("duration %s: %w", s.Duration, ErrInvalidDuration)
	}
	if s.Icon < 0 || s.Icon >= NumIcons {
		return fmt.Errorf("icon %d: %w", s.Icon, ErrInvalidIcon)
	}
	return nil
}

func (s State) String() string {
	d := "inf"
	if !s.Infinite() {
		d = s.Duration.String()
	}
	return fmt.Sprintf("playing=%t speed=%s duration=%s icon=%s", s.IsPlaying, s.Speed, d, IconName(s.Icon))
}
