package remote

import (
	"github.com/mcdev12/emdrtap/go/internal/metrics"
	"github.com/rs/zerolog/log"
)

// RouterState tracks whether a guest has built its view yet.
type RouterState int

const (
	AwaitingInitialSnapshot RouterState = iota
	Streaming
)

func (s RouterState) String() string {
	if s == Streaming {
		return "streaming"
	}
	return "awaiting_initial_snapshot"
}

// SnapshotHandler receives routed snapshots. Initialize is called until it
// succeeds once; every later snapshot goes to Reconcile.
type SnapshotHandler interface {
	Initialize(Snapshot) error
	Reconcile(Snapshot)
}

// Router gates guest setup on the first snapshot.
type Router struct {
	state   RouterState
	handler SnapshotHandler
	metrics metrics.Collector
}

func NewRouter(handler SnapshotHandler, collector metrics.Collector) *Router {
	if collector == nil {
		collector = metrics.NoOp{}
	}
	return &Router{handler: handler, metrics: collector}
}

func (r *Router) State() RouterState { return r.state }

func (r *Router) Route(snap Snapshot) {
	if r.state == AwaitingInitialSnapshot {
		if err := r.handler.Initialize(snap); err != nil {
			r.metrics.RecordSnapshot(metrics.SnapshotMalformed)
			log.Warn().Err(err).Str("session_id", snap.ID).Msg("cannot build view from snapshot, waiting for the next one")
			return
		}
		r.state = Streaming
		r.metrics.RecordSnapshot(metrics.SnapshotInitial)
		return
	}
	r.metrics.RecordSnapshot(metrics.SnapshotApplied)
	r.handler.Reconcile(snap)
}
