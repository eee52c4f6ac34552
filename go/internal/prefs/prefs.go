// Package prefs persists the last-used playback settings between runs.
package prefs

import (
	"context"
	"sync"

	"github.com/mcdev12/emdrtap/go/internal/playback"
	"github.com/rs/zerolog/log"
)

// Keys under which preferences are persisted.
const (
	KeySpeedSlider    = "lastSpeedSliderValue"
	KeyDurationPreset = "lastDurationPresetIndex"
	KeyIcon           = "lastIconIndex"
)

type Preferences struct {
	SpeedSlider    float64
	DurationPreset int
	Icon           int
}

func Defaults() Preferences {
	return Preferences{
		SpeedSlider:    playback.DefaultSpeedSlider,
		DurationPreset: 0,
		Icon:           0,
	}
}

// State is the initial playback state for a host or local session.
func (p Preferences) State() playback.State {
	return playback.Initial(p.SpeedSlider, p.DurationPreset, p.Icon)
}

// Store loads and saves preferences. Load returns Defaults when nothing has
// been saved yet.
type Store interface {
	Load(ctx context.Context) (Preferences, error)
	Save(ctx context.Context, p Preferences) error
}

// Recorder saves preferences whenever the user changes a persisted setting.
// It is registered as a playback observer on host and local sessions.
type Recorder struct {
	store   Store
	current Preferences
}

var _ playback.Observer = (*Recorder)(nil)

func NewRecorder(store Store, initial Preferences) *Recorder {
	return &Recorder{store: store, current: initial}
}

func (r *Recorder) Current() Preferences { return r.current }

func (r *Recorder) PlayingChanged(playback.State, bool) {}

func (r *Recorder) SpeedChanged(s playback.State) {
	r.current.SpeedSlider = playback.SliderForSpeed(s.Speed)
	r.save(KeySpeedSlider)
}

func (r *Recorder) DurationChanged(s playback.State) {
	r.current.DurationPreset = playback.PresetForDuration(s.Duration)
	r.save(KeyDurationPreset)
}

func (r *Recorder) IconChanged(s playback.State) {
	r.current.Icon = s.Icon
	r.save(KeyIcon)
}

func (r *Recorder) save(key string) {
	if err := r.store.Save(context.Background(), r.current); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to save preferences")
	}
}

// MemoryStore keeps preferences in memory.
type MemoryStore struct {
	mu    sync.Mutex
	prefs *Preferences
	saves int
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Load(ctx context.Context) (Preferences, error) {
	if err := ctx.Err(); err != nil {
		return Preferences{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prefs == nil {
		return Defaults(), nil
	}
	return *m.prefs, nil
}

func (m *MemoryStore) Save(ctx context.Context, p Preferences) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs = &p
	m.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
