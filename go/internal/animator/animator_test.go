package animator

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepsAlternateStartingRight(t *testing.T) {
	t.Parallel()

	a := New(clockwork.NewFakeClock())
	assert.Equal(t, Center, a.Position())

	got := []Position{a.Step(), a.Step(), a.Step(), a.Step()}
	assert.Equal(t, []Position{Right, Left, Right, Left}, got)
}

func TestTickerFiresAtSpeed(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	a := New(clock)
	assert.Nil(t, a.Steps())

	a.Start(750 * time.Millisecond)
	require.True(t, a.Running())
	assert.Equal(t, 750*time.Millisecond, a.Speed())

	clock.Advance(750 * time.Millisecond)
	select {
	case <-a.Steps():
	case <-time.After(2 * time.Second):
		t.Fatal("no step after one interval")
	}
}

func TestRestPoseStopReturnsToCenter(t *testing.T) {
	t.Parallel()

	a := New(clockwork.NewFakeClock())
	a.Start(time.Second)
	a.Step()

	a.Stop(true)
	assert.False(t, a.Running())
	assert.Nil(t, a.Steps())
	assert.Equal(t, Center, a.Position())
	assert.Equal(t, Right, a.Step())
}

func TestPassiveStopKeepsPosition(t *testing.T) {
	t.Parallel()

	a := New(clockwork.NewFakeClock())
	a.Start(time.Second)
	a.Step()
	a.Step()

	a.Stop(false)
	assert.Equal(t, Left, a.Position())
	assert.Equal(t, Right, a.Step())
}

func TestStartIgnoresNonPositiveSpeed(t *testing.T) {
	t.Parallel()

	a := New(clockwork.NewFakeClock())
	a.Start(0)
	assert.False(t, a.Running())
}
