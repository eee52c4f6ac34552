package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/mcdev12/emdrtap/go/internal/metrics"
	"github.com/rs/zerolog/log"
)

// DocumentWatcher is the slice of the document store a guest needs.
type DocumentWatcher interface {
	Watch(ctx context.Context, key string) (docstore.Watcher, error)
}

// Subscription streams validated snapshots of one session document in the
// order the store delivered them. Malformed documents are skipped.
type Subscription struct {
	key     string
	watcher docstore.Watcher
	metrics metrics.Collector

	out    chan Snapshot
	cancel context.CancelFunc
	once   sync.Once
}

// Subscribe opens a watch on the session document for key. The subscription
// lives until Cancel is called or ctx is done.
func Subscribe(ctx context.Context, store DocumentWatcher, key string, collector metrics.Collector) (*Subscription, error) {
	if collector == nil {
		collector = metrics.NoOp{}
	}

	ctx, cancel := context.WithCancel(ctx)
	w, err := store.Watch(ctx, key)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch session %s: %w", key, err)
	}

	s := &Subscription{
		key:     key,
		watcher: w,
		metrics: collector,
		out:     make(chan Snapshot),
		cancel:  cancel,
	}
	go s.pump(ctx)

	log.Info().Str("session_id", key).Msg("subscribed to session")
	return s, nil
}

// Snapshots is closed once the subscription ends.
func (s *Subscription) Snapshots() <-chan Snapshot { return s.out }

// Cancel stops the underlying watch. Only the first call has any effect.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
		if err := s.watcher.Stop(); err != nil {
			log.Error().Err(err).Str("session_id", s.key).Msg("failed to stop session watch")
		}
		log.Info().Str("session_id", s.key).Msg("unsubscribed from session")
	})
}

func (s *Subscription) pump(ctx context.Context) {
	defer close(s.out)

	updates := s.watcher.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				log.Debug().Str("session_id", s.key).Msg("session watch closed")
				return
			}
			if u.Err != nil {
				s.metrics.RecordSnapshot(metrics.SnapshotError)
				log.Warn().Err(u.Err).Str("session_id", s.key).Msg("session watch error")
				continue
			}

			snap, err := Decode(u.Fields)
			if err != nil {
				s.metrics.RecordSnapshot(metrics.SnapshotMalformed)
				if errors.Is(err, ErrMalformedSnapshot) {
					log.Debug().Err(err).Str("session_id", s.key).Msg("dropping malformed snapshot")
				}
				continue
			}

			select {
			case s.out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}
}
