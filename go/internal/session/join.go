package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/mcdev12/emdrtap/go/internal/feedback"
	"github.com/rs/zerolog/log"
)

// DocumentReader is the slice of the document store that identity needs.
type DocumentReader interface {
	Get(ctx context.Context, key string) (docstore.Fields, error)
}

// Joiner validates guest join attempts against the remote store. At most one
// validation runs at a time.
type Joiner struct {
	store    DocumentReader
	player   feedback.Player
	timeout  time.Duration
	inFlight atomic.Bool
}

func NewJoiner(store DocumentReader, player feedback.Player) *Joiner {
	if player == nil {
		player = feedback.NoOp{}
	}
	return &Joiner{
		store:   store,
		player:  player,
		timeout: 10 * time.Second,
	}
}

// Join resolves candidate to a guest Context. A rejected ID plays the invalid
// session cue once. A call made while another is running returns
// ErrJoinInProgress immediately.
func (j *Joiner) Join(ctx context.Context, candidate string) (Context, error) {
	if !j.inFlight.CompareAndSwap(false, true) {
		return Context{}, ErrJoinInProgress
	}
	defer j.inFlight.Store(false)

	id, err := ParseID(candidate)
	if err != nil {
		j.player.Play(feedback.InvalidSessionID())
		return Context{}, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	_, err = j.store.Get(lookupCtx, string(id))
	switch {
	case err == nil:
		log.Info().Str("session_id", id.String()).Msg("joined session")
		return Guest(id), nil
	case errors.Is(err, docstore.ErrNotFound):
		log.Info().Str("session_id", id.String()).Msg("no session for id")
		j.player.Play(feedback.InvalidSessionID())
		return Context{}, fmt.Errorf("join %s: %w", id, ErrSessionNotFound)
	default:
		log.Error().Err(err).Str("session_id", id.String()).Msg("failed to look up session")
		return Context{}, fmt.Errorf("join %s: %w: %w", id, ErrLookupFailed, err)
	}
}

// Pending reports whether a validation is currently running.
func (j *Joiner) Pending() bool {
	return j.inFlight.Load()
}

const defaultAllocateAttempts = 5

// Allocator hands out host IDs, preferring ones with no existing document.
type Allocator struct {
	store    DocumentReader
	attempts int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAllocator creates an allocator. A nil store disables collision checks
// and a nil rng uses the global source.
func NewAllocator(store DocumentReader, rng *rand.Rand) *Allocator {
	return &Allocator{store: store, rng: rng, attempts: defaultAllocateAttempts}
}

// Allocate draws host IDs until one is unused, giving up after a few draws.
// It never fails: when every draw collides or the store is unreachable the
// last draw is returned.
func (a *Allocator) Allocate(ctx context.Context) ID {
	var id ID
	for attempt := 0; attempt < a.attempts; attempt++ {
		id = a.draw()
		if a.store == nil {
			return id
		}

		_, err := a.store.Get(ctx, string(id))
		if errors.Is(err, docstore.ErrNotFound) {
			return id
		}
		if err != nil {
			log.Warn().Err(err).Str("session_id", id.String()).Msg("could not check id, using it anyway")
			return id
		}
		log.Debug().Str("session_id", id.String()).Int("attempt", attempt).Msg("host id already in use")
	}
	return id
}

func (a *Allocator) draw() ID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return GenerateHostID(a.rng)
}
