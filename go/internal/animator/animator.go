// Package animator models the bouncing target: which side of the track it is
// on and when it moves next.
package animator

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Position is where the target rests on the track.
type Position int

const (
	Left   Position = -1
	Center Position = 0
	Right  Position = 1
)

func (p Position) String() string {
	switch p {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "center"
	}
}

// Animator moves the target to alternating sides once per speed interval.
// It is driven by the session loop: when Steps fires, call Step.
type Animator struct {
	clock    clockwork.Clock
	ticker   clockwork.Ticker
	position Position
	next     Position
	speed    time.Duration
}

func New(clock clockwork.Clock) *Animator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Animator{clock: clock, position: Center, next: Right}
}

func (a *Animator) Position() Position   { return a.position }
func (a *Animator) Running() bool        { return a.ticker != nil }
func (a *Animator) Speed() time.Duration { return a.speed }

// Start begins stepping every speed. A running animator restarts its loop at
// the new speed and keeps its position.
func (a *Animator) Start(speed time.Duration) {
	if speed <= 0 {
		return
	}
	a.speed = speed
	a.stopTicker()
	a.ticker = a.clock.NewTicker(speed)
}

// Stop halts stepping. With restPose the target returns to the center and
// the next step goes right again; otherwise it stays where it is.
func (a *Animator) Stop(restPose bool) {
	a.stopTicker()
	if restPose {
		a.position = Center
		a.next = Right
	}
}

// Steps fires when the target should move; nil while stopped.
func (a *Animator) Steps() <-chan time.Time {
	if a.ticker == nil {
		return nil
	}
	return a.ticker.Chan()
}

// Step moves the target to the next side and returns its new position.
func (a *Animator) Step() Position {
	a.position = a.next
	if a.next == Right {
		a.next = Left
	} else {
		a.next = Right
	}
	return a.position
}

func (a *Animator) stopTicker() {
	if a.ticker == nil {
		return
	}
	a.ticker.Stop()
	select {
	case <-a.ticker.Chan():
	default:
	}
	a.ticker = nil
}
