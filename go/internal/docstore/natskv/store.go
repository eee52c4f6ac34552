// Package natskv keeps session documents in a NATS JetStream key-value bucket.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type Config struct {
	URL           string
	Bucket        string
	History       uint8         // Revisions kept per key
	TTL           time.Duration // Documents expire when not written for this long
	Replicas      int
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Bucket:        docstore.Collection,
		History:       1,
		TTL:           24 * time.Hour,
		Replicas:      1,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

type Store struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	kv     jetstream.KeyValue
	config Config
}

var _ docstore.Store = (*Store)(nil)

func Open(ctx context.Context, cfg Config) (*Store, error) {
	opts := []nats.Option{
		nats.Name("emdrtap"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	s := &Store{nc: nc, js: js, config: cfg}
	if err := s.ensureBucket(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return s, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	kc := jetstream.KeyValueConfig{
		Bucket:      s.config.Bucket,
		Description: "Hosted session playback documents",
		History:     s.config.History,
		TTL:         s.config.TTL,
		Storage:     jetstream.FileStorage,
		Replicas:    s.config.Replicas,
	}

	kv, err := s.js.KeyValue(ctx, s.config.Bucket)
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketNotFound) {
			return fmt.Errorf("lookup bucket: %w", err)
		}
		if kv, err = s.js.CreateKeyValue(ctx, kc); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		log.Info().
			Str("bucket", s.config.Bucket).
			Msg("created JetStream key-value bucket")
	} else {
		status, err := kv.Status(ctx)
		if err != nil {
			return fmt.Errorf("get bucket status: %w", err)
		}
		if status.History() != int64(kc.History) || status.TTL() != kc.TTL {
			if kv, err = s.js.UpdateKeyValue(ctx, kc); err != nil {
				return fmt.Errorf("update bucket: %w", err)
			}
			log.Info().
				Str("bucket", s.config.Bucket).
				Msg("updated JetStream key-value bucket")
		}
	}

	s.kv = kv
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (docstore.Fields, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return docstore.DecodeFields(entry.Value())
}

func (s *Store) Set(ctx context.Context, key string, fields docstore.Fields) error {
	data, err := docstore.EncodeFields(fields)
	if err != nil {
		return err
	}
	rev, err := s.kv.Put(ctx, key, data)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	log.Debug().
		Str("bucket", s.config.Bucket).
		Str("key", key).
		Uint64("revision", rev).
		Msg("stored session document")
	return nil
}

// Watch delivers the latest revision of key (if any) followed by every later
// put. Deletes and purges are skipped.
func (s *Store) Watch(ctx context.Context, key string) (docstore.Watcher, error) {
	ctx, cancel := context.WithCancel(ctx)
	kw, err := s.kv.Watch(ctx, key)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", key, err)
	}

	w := &watcher{
		kw:      kw,
		cancel:  cancel,
		out:     make(chan docstore.Update),
		stopped: make(chan struct{}),
	}
	go w.run(ctx, key)
	return w, nil
}

func (s *Store) Close() error {
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}

type watcher struct {
	kw      jetstream.KeyWatcher
	cancel  context.CancelFunc
	out     chan docstore.Update
	stopped chan struct{}
	once    sync.Once
}

func (w *watcher) Updates() <-chan docstore.Update { return w.out }

func (w *watcher) Stop() error {
	var err error
	w.once.Do(func() {
		w.cancel()
		err = w.kw.Stop()
	})
	<-w.stopped
	return err
}

func (w *watcher) run(ctx context.Context, key string) {
	defer close(w.stopped)
	defer close(w.out)

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-w.kw.Updates():
			if !ok {
				return
			}
			// nil marks the end of the initial values
			if entry == nil || entry.Operation() != jetstream.KeyValuePut {
				continue
			}

			fields, err := docstore.DecodeFields(entry.Value())
			select {
			case w.out <- docstore.Update{Fields: fields, Err: err}:
			case <-ctx.Done():
				return
			}
			log.Debug().Str("key", key).Uint64("revision", entry.Revision()).Msg("delivered session document")
		}
	}
}
