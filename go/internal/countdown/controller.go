// Package countdown tracks elapsed and remaining playback time.
package countdown

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	// TickInterval is how often a running controller wants Tick to be called.
	TickInterval = time.Second
	// AlertThreshold is the remaining time at or below which the readout alerts.
	AlertThreshold = 5 * time.Second
)

type State int

const (
	Idle State = iota
	Running
	Expired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reading is what the view shows for the countdown.
type Reading struct {
	State     State
	Elapsed   time.Duration
	Remaining time.Duration
	Infinite  bool
	// Alert is set when a finite countdown has AlertThreshold or less left.
	Alert bool
	// Expired is set only on the tick that moved the controller to Expired.
	Expired bool
}

// Format renders the remaining time as m:ss, rounding partial seconds up.
// Infinite sessions render as the infinity sign.
func (r Reading) Format() string {
	if r.Infinite {
		return "∞"
	}
	secs := int((r.Remaining + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// Controller is the elapsed-time state machine. Tick must be called from the
// same goroutine as the other methods, normally when Ticks fires.
type Controller struct {
	clock    clockwork.Clock
	duration time.Duration
	origin   time.Time
	state    State
	ticker   clockwork.Ticker
}

// New creates an idle controller. A duration of 0 never expires.
func New(clock clockwork.Clock, duration time.Duration) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Controller{clock: clock, duration: duration}
}

func (c *Controller) State() State { return c.state }

// Start enters Running. With restart the elapsed origin moves to now; without
// it a running controller keeps its origin.
func (c *Controller) Start(restart bool) {
	if !restart && c.state == Running {
		return
	}
	c.origin = c.clock.Now()
	c.state = Running
	c.replaceTicker(c.clock.NewTicker(TickInterval))

	log.Debug().
		Dur("duration", c.duration).
		Msg("countdown started")
}

// Stop returns to Idle from any state.
func (c *Controller) Stop() {
	c.stopTicker()
	if c.state != Idle {
		log.Debug().Str("from", c.state.String()).Msg("countdown stopped")
	}
	c.state = Idle
}

// SetDuration changes the limit. A running controller keeps its origin, so the
// remaining time is recomputed against what has already elapsed; the next Tick
// expires it if the new limit has already passed. An expired controller goes
// back to Idle and shows the new limit.
func (c *Controller) SetDuration(d time.Duration) {
	c.duration = d
	if c.state == Expired {
		c.state = Idle
	}
}

func (c *Controller) Duration() time.Duration { return c.duration }

// Ticks fires every TickInterval while running and is nil otherwise.
func (c *Controller) Ticks() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}
	return c.ticker.Chan()
}

// Tick recomputes the reading and expires a finite countdown whose remaining
// time has reached zero.
func (c *Controller) Tick() Reading {
	r := c.Reading()
	if c.state == Running && !r.Infinite && r.Remaining == 0 {
		c.stopTicker()
		c.state = Expired
		r.State = Expired
		r.Expired = true
		log.Info().
			Dur("elapsed", r.Elapsed).
			Dur("duration", c.duration).
			Msg("countdown expired")
	}
	return r
}

// Reading reports the current values without changing state.
func (c *Controller) Reading() Reading {
	r := Reading{
		State:    c.state,
		Infinite: c.duration == 0,
	}

	switch c.state {
	case Running:
		r.Elapsed = c.clock.Since(c.origin)
		r.Remaining = max(c.duration-r.Elapsed, 0)
	case Expired:
		r.Elapsed = c.duration
		r.Remaining = 0
	default:
		r.Remaining = c.duration
	}

	if r.Infinite {
		r.Remaining = 0
	} else {
		r.Alert = r.Remaining <= AlertThreshold
	}
	return r
}

func (c *Controller) replaceTicker(t clockwork.Ticker) {
	c.stopTicker()
	c.ticker = t
}

func (c *Controller) stopTicker() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	// drain a tick that may already be buffered
	select {
	case <-c.ticker.Chan():
	default:
	}
	c.ticker = nil
}
