// Package reconcile turns successive remote snapshots into the minimal set of
// local changes a guest has to make.
package reconcile

import (
	"time"

	"github.com/mcdev12/emdrtap/go/internal/metrics"
	"github.com/mcdev12/emdrtap/go/internal/remote"
	"github.com/rs/zerolog/log"
)

// Effects are the local side effects of a changed field.
type Effects interface {
	// StartPlaying begins animation at speed and resets elapsed time.
	StartPlaying(speed time.Duration)
	// StopPlaying stops animation without returning to the rest pose.
	StopPlaying()
	ChangeIcon(icon int)
	// ChangeSpeed updates the step interval. restartLoop asks for the running
	// animation loop to be restarted at the new speed; elapsed time is kept.
	ChangeSpeed(speed time.Duration, restartLoop bool)
	// ChangeDuration updates the limit; remaining time follows from elapsed.
	ChangeDuration(d time.Duration)
}

// Diff records which fields a snapshot changed.
type Diff struct {
	Playing  bool
	Icon     bool
	Speed    bool
	Duration bool
}

func (d Diff) Empty() bool {
	return !d.Playing && !d.Icon && !d.Speed && !d.Duration
}

// Fields lists the changed document fields in application order.
func (d Diff) Fields() []string {
	var out []string
	if d.Playing {
		out = append(out, remote.FieldIsPlaying)
	}
	if d.Icon {
		out = append(out, remote.FieldCurrentImage)
	}
	if d.Speed {
		out = append(out, remote.FieldSpeed)
	}
	if d.Duration {
		out = append(out, remote.FieldDuration)
	}
	return out
}

// Engine keeps the last applied snapshot and diffs each new one against it.
type Engine struct {
	mirror  remote.Snapshot
	effects Effects
	metrics metrics.Collector
}

// NewEngine starts from the snapshot the guest view was built from.
func NewEngine(initial remote.Snapshot, effects Effects, collector metrics.Collector) *Engine {
	if collector == nil {
		collector = metrics.NoOp{}
	}
	return &Engine{mirror: initial, effects: effects, metrics: collector}
}

// Mirror returns the last applied snapshot.
func (e *Engine) Mirror() remote.Snapshot { return e.mirror }

// MarkStopped records a stop the guest made on its own, such as a local
// expiry, so the next snapshot that says playing starts playback again.
func (e *Engine) MarkStopped() { e.mirror.IsPlaying = false }

// Apply runs the effects for every field that differs from the mirror, then
// replaces the mirror with next. Unchanged fields cause no effects.
func (e *Engine) Apply(next remote.Snapshot) Diff {
	prev := e.mirror
	state := next.State()
	var diff Diff

	if next.IsPlaying != prev.IsPlaying {
		diff.Playing = true
		if next.IsPlaying {
			e.effects.StartPlaying(state.Speed)
		} else {
			e.effects.StopPlaying()
		}
	}

	if next.CurrentImage != prev.CurrentImage {
		diff.Icon = true
		e.effects.ChangeIcon(next.CurrentImage)
	}

	if next.Speed != prev.Speed {
		diff.Speed = true
		// A start in this same snapshot already used the new speed.
		restartLoop := next.IsPlaying && !diff.Playing
		e.effects.ChangeSpeed(state.Speed, restartLoop)
	}

	if next.Duration != prev.Duration {
		diff.Duration = true
		e.effects.ChangeDuration(state.Duration)
	}

	e.mirror = next

	for _, f := range diff.Fields() {
		e.metrics.RecordReconcile(f)
	}
	if !diff.Empty() {
		log.Debug().
			Strs("fields", diff.Fields()).
			Bool("is_playing", next.IsPlaying).
			Msg("snapshot reconciled")
	}
	return diff
}
