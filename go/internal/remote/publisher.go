package remote

import (
	"context"
	"sync"
	"time"

	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/mcdev12/emdrtap/go/internal/metrics"
	"github.com/mcdev12/emdrtap/go/internal/playback"
	"github.com/rs/zerolog/log"
)

// DocumentWriter is the slice of the document store a host needs.
type DocumentWriter interface {
	Set(ctx context.Context, key string, fields docstore.Fields) error
}

type PublisherConfig struct {
	WriteTimeout time.Duration
}

func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		WriteTimeout: 5 * time.Second,
	}
}

// maxQueued bounds the states waiting behind a slow write.
const maxQueued = 64

// Publisher writes host state to the session document without blocking the
// caller. States are written in the order they were published; a state equal
// to the one queued before it is skipped.
type Publisher struct {
	store   DocumentWriter
	key     string
	metrics metrics.Collector
	cfg     PublisherConfig

	mu     sync.Mutex
	queue  []Snapshot
	closed bool

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

var _ playback.Publisher = (*Publisher)(nil)

func NewPublisher(store DocumentWriter, key string, collector metrics.Collector, cfg PublisherConfig) *Publisher {
	if collector == nil {
		collector = metrics.NoOp{}
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultPublisherConfig().WriteTimeout
	}
	p := &Publisher{
		store:   store,
		key:     key,
		metrics: collector,
		cfg:     cfg,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish queues s for writing and returns immediately.
func (p *Publisher) Publish(s playback.State) {
	snap := FromState(p.key, s)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		log.Warn().Str("session_id", p.key).Msg("publish after close dropped")
		return
	}
	p.enqueue(snap)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// enqueue must be called with p.mu held. When the queue is full the newest
// entry absorbs snap if both agree on isPlaying, otherwise the oldest entry
// is dropped, so play/pause transitions are never merged away.
func (p *Publisher) enqueue(snap Snapshot) {
	n := len(p.queue)
	if n > 0 && p.queue[n-1] == snap {
		return
	}
	if n < maxQueued {
		p.queue = append(p.queue, snap)
		return
	}
	if p.queue[n-1].IsPlaying == snap.IsPlaying {
		p.queue[n-1] = snap
		return
	}
	log.Warn().Str("session_id", p.key).Msg("publish queue full, dropping oldest state")
	p.queue = append(p.queue[1:], snap)
}

// Close writes every queued state and stops the worker. It waits until the
// worker finishes or ctx is done.
func (p *Publisher) Close(ctx context.Context) error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.done)
	})

	select {
	case <-p.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) run() {
	defer close(p.stopped)

	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.done:
			p.drain()
			return
		}
	}
}

func (p *Publisher) drain() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		snap := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		write(p.store, p.key, snap, p.cfg.WriteTimeout, p.metrics)
	}
}

// SyncPublisher writes every state inline. Tools and tests use it where
// ordering against other calls matters more than latency.
type SyncPublisher struct {
	store   DocumentWriter
	key     string
	metrics metrics.Collector
	timeout time.Duration
}

var _ playback.Publisher = (*SyncPublisher)(nil)

func NewSyncPublisher(store DocumentWriter, key string, collector metrics.Collector) *SyncPublisher {
	if collector == nil {
		collector = metrics.NoOp{}
	}
	return &SyncPublisher{
		store:   store,
		key:     key,
		metrics: collector,
		timeout: DefaultPublisherConfig().WriteTimeout,
	}
}

func (p *SyncPublisher) Publish(s playback.State) {
	write(p.store, p.key, FromState(p.key, s), p.timeout, p.metrics)
}

func write(store DocumentWriter, key string, snap Snapshot, timeout time.Duration, collector metrics.Collector) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	err := store.Set(ctx, key, snap.Fields())
	collector.RecordPublish(err == nil, time.Since(start))

	if err != nil {
		log.Error().
			Err(err).
			Str("session_id", key).
			Msg("failed to write session document")
		return
	}

	log.Debug().
		Str("session_id", key).
		Bool("is_playing", snap.IsPlaying).
		Float64("speed", snap.Speed).
		Float64("duration", snap.Duration).
		Int("current_image", snap.CurrentImage).
		Msg("session document written")
}
