package countdown

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdleReadingShowsFullDuration(t *testing.T) {
	t.Parallel()

	c := New(clockwork.NewFakeClock(), time.Minute)
	r := c.Reading()

	assert.Equal(t, Idle, r.State)
	assert.Equal(t, time.Minute, r.Remaining)
	assert.False(t, r.Alert)
	assert.Equal(t, "1:00", r.Format())
	assert.Nil(t, c.Ticks())
}

func TestRunsToExpiry(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	c := New(clock, time.Minute)
	c.Start(true)
	require.NotNil(t, c.Ticks())

	var expiredAt int
	for i := 1; i <= 61; i++ {
		clock.Advance(time.Second)
		r := c.Tick()
		assert.GreaterOrEqual(t, r.Remaining, time.Duration(0))
		if r.Expired {
			expiredAt = i
			break
		}
		assert.Equal(t, time.Minute-time.Duration(i)*time.Second, r.Remaining)
	}

	assert.Equal(t, 60, expiredAt)
	assert.Equal(t, Expired, c.State())
	assert.Nil(t, c.Ticks())

	r := c.Tick()
	assert.False(t, r.Expired)
	assert.Equal(t, time.Duration(0), r.Remaining)
}

func TestAlertAtFiveSeconds(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	c := New(clock, time.Minute)
	c.Start(true)

	clock.Advance(54 * time.Second)
	assert.False(t, c.Tick().Alert)

	clock.Advance(time.Second)
	r := c.Tick()
	assert.True(t, r.Alert)
	assert.Equal(t, "0:05", r.Format())
}

func TestInfiniteNeverExpires(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	c := New(clock, 0)
	c.Start(true)

	for i := 0; i < 1000; i++ {
		clock.Advance(time.Second)
		r := c.Tick()
		require.False(t, r.Expired)
		require.True(t, r.Infinite)
		require.False(t, r.Alert)
	}
	assert.Equal(t, Running, c.State())
	assert.Equal(t, "∞", c.Reading().Format())
}

func TestRestartResetsElapsed(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	c := New(clock, time.Minute)
	c.Start(true)
	clock.Advance(30 * time.Second)

	c.Start(false)
	assert.Equal(t, 30*time.Second, c.Reading().Remaining)

	c.Start(true)
	assert.Equal(t, time.Minute, c.Reading().Remaining)
}

func TestStopReturnsToIdle(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	c := New(clock, time.Minute)
	c.Start(true)
	clock.Advance(10 * time.Second)

	c.Stop()
	assert.Equal(t, Idle, c.State())
	assert.Nil(t, c.Ticks())
	assert.Equal(t, time.Minute, c.Reading().Remaining)

	clock.Advance(time.Hour)
	assert.False(t, c.Tick().Expired)
}

func TestSetDurationWhileRunningKeepsElapsed(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	c := New(clock, 300*time.Second)
	c.Start(true)
	clock.Advance(90 * time.Second)

	c.SetDuration(time.Minute)
	r := c.Tick()
	assert.True(t, r.Expired)
	assert.Equal(t, time.Duration(0), r.Remaining)

	c.SetDuration(300 * time.Second)
	c.Start(true)
	clock.Advance(10 * time.Second)
	c.SetDuration(time.Minute)
	assert.Equal(t, 50*time.Second, c.Tick().Remaining)
	assert.Equal(t, Running, c.State())
}

func TestSetDurationAfterExpiryShowsNewLimit(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	c := New(clock, time.Minute)
	c.Start(true)
	clock.Advance(time.Minute)
	require.True(t, c.Tick().Expired)

	c.SetDuration(5 * time.Minute)
	r := c.Reading()
	assert.Equal(t, Idle, r.State)
	assert.Equal(t, 5*time.Minute, r.Remaining)
	assert.False(t, r.Alert)
	assert.Equal(t, "5:00", r.Format())
	assert.Nil(t, c.Ticks())
}

func TestFormatRoundsUp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0:01", Reading{Remaining: 200 * time.Millisecond}.Format())
	assert.Equal(t, "5:00", Reading{Remaining: 300 * time.Second}.Format())
	assert.Equal(t, "0:00", Reading{}.Format())
}
