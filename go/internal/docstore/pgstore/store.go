// Package pgstore keeps session documents in Postgres and streams changes to
// watchers with LISTEN/NOTIFY.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/mcdev12/emdrtap/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DatabaseURL      string        // Postgres DSN, also used for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name written on every Set
	FallbackInterval time.Duration // How often a watcher re-reads in case a notification was missed
	PingInterval     time.Duration
}

func DefaultConfig() Config {
	return Config{
		DatabaseURL:      "",
		NotifyChannel:    "session_documents",
		FallbackInterval: 30 * time.Second,
		PingInterval:     90 * time.Second,
	}
}

type Store struct {
	db      *sql.DB
	queries *Queries
	cfg     Config
}

var _ docstore.Store = (*Store)(nil)

// Open connects to Postgres and ensures the document table exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database url is empty")
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{db: db, queries: New(db), cfg: cfg}
	if err := s.queries.CreateSessionDocuments(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session documents table: %w", err)
	}

	log.Info().Str("channel", cfg.NotifyChannel).Msg("postgres document store ready")
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) (docstore.Fields, error) {
	row, err := s.queries.GetSessionDocument(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("get session document %s: %w", key, err)
	}
	return decodeRow(row)
}

// Set replaces the document and notifies watchers in the same transaction, so
// a notification is only seen once the write is visible.
func (s *Store) Set(ctx context.Context, key string, fields docstore.Fields) error {
	data, err := docstore.EncodeFields(fields)
	if err != nil {
		return err
	}

	err = sqlutil.Run(ctx, s.db, s.queries.WithTx, func(q *Queries) error {
		if _, err := q.UpsertSessionDocument(ctx, UpsertSessionDocumentParams{
			Key:    key,
			Fields: sqlutil.ToNullRawMessage(data),
		}); err != nil {
			return fmt.Errorf("upsert: %w", err)
		}
		if err := q.NotifySessionDocument(ctx, NotifySessionDocumentParams{
			Channel: s.cfg.NotifyChannel,
			Key:     key,
		}); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set session document %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Watch opens a dedicated LISTEN connection for key. The current document is
// delivered first if it exists.
func (s *Store) Watch(ctx context.Context, key string) (docstore.Watcher, error) {
	l := pq.NewListener(
		s.cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Str("key", key).Msg("listener event")
			}
		},
	)
	if err := l.Listen(s.cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	w := &watcher{
		store:    s,
		key:      key,
		listener: l,
		out:      make(chan docstore.Update, 16),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.run(ctx)

	log.Debug().Str("key", key).Str("channel", s.cfg.NotifyChannel).Msg("postgres watch opened")
	return w, nil
}

type watcher struct {
	store    *Store
	key      string
	listener *pq.Listener
	out      chan docstore.Update
	stop     chan struct{}
	stopped  chan struct{}
	once     sync.Once
	last     time.Time
}

func (w *watcher) Updates() <-chan docstore.Update { return w.out }

func (w *watcher) Stop() error {
	w.once.Do(func() { close(w.stop) })
	<-w.stopped
	return nil
}

func (w *watcher) run(ctx context.Context) {
	defer close(w.stopped)
	defer close(w.out)
	defer w.listener.Close()

	pingTicker := time.NewTicker(w.store.cfg.PingInterval)
	fallbackTicker := time.NewTicker(w.store.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	if !w.refresh(ctx) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case note := <-w.listener.Notify:
			if note == nil {
				// connection was re-established; anything may have been missed
				if !w.refresh(ctx) {
					return
				}
				continue
			}
			if note.Extra != w.key {
				continue
			}
			if !w.refresh(ctx) {
				return
			}
		case <-fallbackTicker.C:
			if !w.refresh(ctx) {
				return
			}
		case <-pingTicker.C:
			if err := w.listener.Ping(); err != nil {
				log.Error().Err(err).Str("key", w.key).Msg("failed to ping listener")
			}
		}
	}
}

// refresh re-reads the document and delivers it unless that version
// (by updated_at) was already delivered. It returns false once the watch is over.
func (w *watcher) refresh(ctx context.Context) bool {
	row, err := w.store.queries.GetSessionDocument(ctx, w.key)
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}

	var u docstore.Update
	if err != nil {
		u.Err = fmt.Errorf("read session document %s: %w", w.key, err)
	} else {
		if row.UpdatedAt.Equal(w.last) {
			return true
		}
		w.last = row.UpdatedAt
		u.Fields, u.Err = decodeRow(row)
	}

	select {
	case w.out <- u:
		return true
	case <-ctx.Done():
		return false
	case <-w.stop:
		return false
	}
}

func decodeRow(row SessionDocument) (docstore.Fields, error) {
	data := sqlutil.FromNullRawMessage(row.Fields)
	if data == nil {
		return docstore.Fields{}, nil
	}
	return docstore.DecodeFields(data)
}
