// Package memory is an in-process document store used for local runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/rs/zerolog/log"
)

type Store struct {
	mu       sync.RWMutex
	docs     map[string]docstore.Fields
	watchers map[string]map[*watcher]struct{}
	closed   bool
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		docs:     make(map[string]docstore.Fields),
		watchers: make(map[string]map[*watcher]struct{}),
	}
}

func (s *Store) Get(ctx context.Context, key string) (docstore.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, docstore.ErrClosed
	}
	doc, ok := s.docs[key]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *Store) Set(ctx context.Context, key string, fields docstore.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return docstore.ErrClosed
	}
	s.docs[key] = fields.Clone()

	for w := range s.watchers[key] {
		w.push(docstore.Update{Fields: fields.Clone()})
	}
	return nil
}

// Watch delivers the current document (if any) followed by every later Set.
// The watch ends when Stop is called or ctx is cancelled.
func (s *Store) Watch(ctx context.Context, key string) (docstore.Watcher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := newWatcher(s, key)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, docstore.ErrClosed
	}
	if s.watchers[key] == nil {
		s.watchers[key] = make(map[*watcher]struct{})
	}
	s.watchers[key][w] = struct{}{}
	if doc, ok := s.docs[key]; ok {
		w.push(docstore.Update{Fields: doc.Clone()})
	}
	s.mu.Unlock()

	go w.run()
	go func() {
		select {
		case <-ctx.Done():
			_ = w.Stop()
		case <-w.done:
		}
	}()

	log.Debug().Str("key", key).Msg("memory watch opened")
	return w, nil
}

// WatcherCount reports how many open watches exist for key.
func (s *Store) WatcherCount(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers[key])
}

// Close stops every watch and rejects later calls.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	var all []*watcher
	for _, ws := range s.watchers {
		for w := range ws {
			all = append(all, w)
		}
	}
	s.mu.Unlock()

	for _, w := range all {
		_ = w.Stop()
	}
	return nil
}

func (s *Store) remove(w *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ws, ok := s.watchers[w.key]; ok {
		delete(ws, w)
		if len(ws) == 0 {
			delete(s.watchers, w.key)
		}
	}
}

// watcher queues updates without bound so a slow reader never loses or
// reorders deliveries.
type watcher struct {
	store *Store
	key   string

	mu    sync.Mutex
	queue []docstore.Update

	out  chan docstore.Update
	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newWatcher(s *Store, key string) *watcher {
	return &watcher{
		store: s,
		key:   key,
		out:   make(chan docstore.Update),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (w *watcher) Updates() <-chan docstore.Update { return w.out }

func (w *watcher) Stop() error {
	w.once.Do(func() {
		w.store.remove(w)
		close(w.done)
	})
	return nil
}

func (w *watcher) push(u docstore.Update) {
	w.mu.Lock()
	w.queue = append(w.queue, u)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) run() {
	defer close(w.out)

	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			w.mu.Unlock()
			select {
			case <-w.wake:
				continue
			case <-w.done:
				return
			}
		}
		next := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		select {
		case w.out <- next:
		case <-w.done:
			return
		}
	}
}
