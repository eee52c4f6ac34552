package prefs

import (
	"context"
	"testing"
	"time"

	"github.com/mcdev12/emdrtap/go/internal/playback"
	"github.com/mcdev12/emdrtap/go/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsBuildStoppedOneMinuteSession(t *testing.T) {
	t.Parallel()

	s := Defaults().State()
	assert.False(t, s.IsPlaying)
	assert.Equal(t, time.Second, s.Speed)
	assert.Equal(t, time.Minute, s.Duration)
	assert.Equal(t, 0, s.Icon)
}

func TestMemoryStoreLoadsDefaultsFirst(t *testing.T) {
	t.Parallel()

	m := &MemoryStore{}
	p, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), p)
}

func TestRecorderPersistsUserChanges(t *testing.T) {
	t.Parallel()

	store := &MemoryStore{}
	rec := NewRecorder(store, Defaults())

	owner, err := playback.NewOwner(session.RoleLocal, Defaults().State(), nil)
	require.NoError(t, err)
	owner.Observe(rec)

	require.NoError(t, owner.SetSpeedSlider(0.8))
	require.NoError(t, owner.SetDuration(2))
	require.NoError(t, owner.CycleIcon())
	require.NoError(t, owner.SetPlaying(true))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got.SpeedSlider, 1e-9)
	assert.Equal(t, 2, got.DurationPreset)
	assert.Equal(t, 1, got.Icon)
	assert.Equal(t, 3, store.Saves())
	assert.Equal(t, got, rec.Current())
}
