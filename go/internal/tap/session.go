// Package tap runs one playback session: it owns the playback state, drives
// the animator and countdown, and keeps the remote document in sync.
package tap

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/emdrtap/go/internal/animator"
	"github.com/mcdev12/emdrtap/go/internal/countdown"
	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/mcdev12/emdrtap/go/internal/feedback"
	"github.com/mcdev12/emdrtap/go/internal/metrics"
	"github.com/mcdev12/emdrtap/go/internal/playback"
	"github.com/mcdev12/emdrtap/go/internal/prefs"
	"github.com/mcdev12/emdrtap/go/internal/reconcile"
	"github.com/mcdev12/emdrtap/go/internal/remote"
	"github.com/mcdev12/emdrtap/go/internal/session"
	"github.com/rs/zerolog/log"
)

// SpeedStep is how far one speed nudge moves the slider.
const SpeedStep = 0.1

var (
	ErrClosed     = errors.New("session closed")
	ErrNotStarted = errors.New("session not started")
)

// cmdBuffer is how many controls can queue, including before Run starts.
const cmdBuffer = 16

type Config struct {
	Session   session.Context
	Store     docstore.Store // required for host and guest sessions
	Prefs     prefs.Store    // host and local sessions; nil uses defaults
	Feedback  feedback.Player
	Metrics   metrics.Collector
	Clock     clockwork.Clock
	Publisher remote.PublisherConfig
	// CloseTimeout bounds the final publish when a host session ends.
	CloseTimeout time.Duration
}

func DefaultConfig(sc session.Context) Config {
	return Config{
		Session:      sc,
		Publisher:    remote.DefaultPublisherConfig(),
		CloseTimeout: 5 * time.Second,
	}
}

// View is everything the screen needs to draw one frame.
type View struct {
	Session  session.Context
	Ready    bool // false while a guest waits for the first snapshot
	State    playback.State
	Position animator.Position
	Time     countdown.Reading
	Settings bool
}

// SpeedSlider is the slider position for the current speed.
func (v View) SpeedSlider() float64 { return playback.SliderForSpeed(v.State.Speed) }

// Session is created with New and driven by Run. Control methods may be
// called from any goroutine; they are applied in order on the Run loop.
type Session struct {
	cfg      Config
	sc       session.Context
	feedback feedback.Player
	metrics  metrics.Collector

	owner     *playback.Owner
	publisher *remote.Publisher
	sub       *remote.Subscription
	router    *remote.Router
	engine    *reconcile.Engine
	anim      *animator.Animator
	timer     *countdown.Controller
	settings  bool

	cmds    chan func()
	views   chan View
	done    chan struct{}
	started atomic.Bool
}

func New(cfg Config) (*Session, error) {
	if err := cfg.Session.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Session.IsLocal() && cfg.Store == nil {
		return nil, fmt.Errorf("%s session requires a document store", cfg.Session.Role)
	}
	if cfg.Feedback == nil {
		cfg.Feedback = feedback.NoOp{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoOp{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 5 * time.Second
	}

	return &Session{
		cfg:      cfg,
		sc:       cfg.Session,
		feedback: cfg.Feedback,
		metrics:  cfg.Metrics,
		anim:     animator.New(cfg.Clock),
		timer:    countdown.New(cfg.Clock, playback.Infinite),
		cmds:     make(chan func(), cmdBuffer),
		views:    make(chan View, 1),
		done:     make(chan struct{}),
	}, nil
}

// Views carries the latest frame; older unread frames are replaced. It is
// closed when Run returns.
func (s *Session) Views() <-chan View { return s.views }

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) TogglePlaying() error {
	return s.do(func() {
		s.feedback.Play(feedback.ButtonTap())
		s.userChange("toggle playing", func(o *playback.Owner) error { return o.TogglePlaying() })
	})
}

// AdjustSpeed moves the speed slider by delta (positive is faster).
func (s *Session) AdjustSpeed(delta float64) error {
	return s.do(func() {
		s.userChange("adjust speed", func(o *playback.Owner) error {
			return o.SetSpeedSlider(playback.SliderForSpeed(o.State().Speed) + delta)
		})
	})
}

// CycleDuration selects the next duration preset.
func (s *Session) CycleDuration() error {
	return s.do(func() {
		s.userChange("cycle duration", func(o *playback.Owner) error {
			next := (playback.PresetForDuration(o.State().Duration) + 1) % playback.NumPresets()
			return o.SetDuration(next)
		})
	})
}

func (s *Session) CycleIcon() error {
	return s.do(func() {
		s.userChange("cycle icon", func(o *playback.Owner) error {
			if err := o.CycleIcon(); err != nil {
				return err
			}
			s.feedback.Play(feedback.IconTap(o.State().Icon))
			return nil
		})
	})
}

// ToggleSettings shows or hides the settings panel. Guests have none.
func (s *Session) ToggleSettings() error {
	return s.do(func() {
		if s.sc.IsGuest() {
			return
		}
		s.settings = !s.settings
		s.feedback.Play(feedback.SettingsToggle())
	})
}

// do queues fn for the Run loop. Before Run starts it never blocks: once the
// buffer is full it returns ErrNotStarted.
func (s *Session) do(fn func()) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if !s.started.Load() {
		select {
		case s.cmds <- fn:
			return nil
		default:
			return ErrNotStarted
		}
	}
	select {
	case s.cmds <- fn:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) userChange(what string, fn func(*playback.Owner) error) {
	if s.owner == nil {
		return
	}
	if err := fn(s.owner); err != nil {
		if errors.Is(err, playback.ErrReadOnly) {
			log.Debug().Str("session_id", string(s.sc.ID)).Str("action", what).Msg("ignoring control on guest session")
			return
		}
		log.Warn().Err(err).Str("action", what).Msg("control rejected")
	}
}

// Run sets the session up and processes events until ctx is done. Teardown
// always runs before it returns.
func (s *Session) Run(ctx context.Context) error {
	s.started.Store(true)
	defer close(s.done)
	defer close(s.views)

	if err := s.setup(ctx); err != nil {
		s.teardown()
		return err
	}
	defer s.teardown()

	log.Info().
		Str("role", s.sc.Role.String()).
		Str("session_id", string(s.sc.ID)).
		Msg("session started")

	s.emit()

	var snapshots <-chan remote.Snapshot
	if s.sub != nil {
		snapshots = s.sub.Snapshots()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-s.cmds:
			fn()
		case snap, ok := <-snapshots:
			if !ok {
				log.Warn().Str("session_id", string(s.sc.ID)).Msg("session stream ended")
				snapshots = nil
				continue
			}
			s.router.Route(snap)
		case <-s.timer.Ticks():
			if r := s.timer.Tick(); r.Expired {
				s.expire()
			}
		case <-s.anim.Steps():
			s.anim.Step()
			if s.owner != nil {
				s.feedback.Play(feedback.Bounce(s.owner.State().Icon))
			}
		}
		s.emit()
	}
}

func (s *Session) setup(ctx context.Context) error {
	switch s.sc.Role {
	case session.RoleGuest:
		sub, err := remote.Subscribe(ctx, s.cfg.Store, s.sc.Key(), s.metrics)
		if err != nil {
			return fmt.Errorf("join session %s: %w", s.sc.ID, err)
		}
		s.sub = sub
		s.router = remote.NewRouter(handler{s}, s.metrics)
		return nil

	case session.RoleHost:
		p, err := s.loadPrefs(ctx)
		if err != nil {
			return err
		}
		s.publisher = remote.NewPublisher(s.cfg.Store, s.sc.Key(), s.metrics, s.cfg.Publisher)
		if s.owner, err = playback.NewOwner(session.RoleHost, p.State(), s.publisher); err != nil {
			return err
		}
		s.observe(p)
		// creates the document guests look up when joining
		s.owner.PublishCurrent()
		return nil

	default:
		p, err := s.loadPrefs(ctx)
		if err != nil {
			return err
		}
		if s.owner, err = playback.NewOwner(session.RoleLocal, p.State(), nil); err != nil {
			return err
		}
		s.observe(p)
		return nil
	}
}

func (s *Session) loadPrefs(ctx context.Context) (prefs.Preferences, error) {
	if s.cfg.Prefs == nil {
		return prefs.Defaults(), nil
	}
	p, err := s.cfg.Prefs.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load preferences, using defaults")
		return prefs.Defaults(), nil
	}
	return p, nil
}

func (s *Session) observe(p prefs.Preferences) {
	s.timer.SetDuration(s.owner.State().Duration)
	s.owner.Observe(observer{s})
	if s.cfg.Prefs != nil {
		s.owner.Observe(prefs.NewRecorder(s.cfg.Prefs, p))
	}
}

func (s *Session) expire() {
	s.metrics.RecordExpired(s.sc.Role.String())
	if s.owner != nil {
		s.owner.Expire()
	}
	if s.engine != nil {
		s.engine.MarkStopped()
	}
	s.anim.Stop(true)
}

func (s *Session) teardown() {
	if s.sub != nil {
		s.sub.Cancel()
	}
	s.anim.Stop(true)
	s.timer.Stop()

	if s.publisher != nil {
		if s.owner != nil {
			_ = s.owner.SetPlaying(false)
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CloseTimeout)
		defer cancel()
		if err := s.publisher.Close(ctx); err != nil {
			log.Error().Err(err).Str("session_id", string(s.sc.ID)).Msg("failed to flush session state")
		}
	}

	log.Info().
		Str("role", s.sc.Role.String()).
		Str("session_id", string(s.sc.ID)).
		Msg("session ended")
}

func (s *Session) emit() {
	v := View{
		Session:  s.sc,
		Position: s.anim.Position(),
		Time:     s.timer.Reading(),
		Settings: s.settings,
	}
	if s.owner != nil {
		v.Ready = true
		v.State = s.owner.State()
	}

	select {
	case <-s.views:
	default:
	}
	s.views <- v
}

// observer applies playback changes to the animator and countdown.
type observer struct{ s *Session }

func (o observer) PlayingChanged(st playback.State, restart bool) {
	if st.IsPlaying {
		o.s.timer.SetDuration(st.Duration)
		o.s.anim.Start(st.Speed)
		o.s.timer.Start(restart)
		return
	}
	o.s.anim.Stop(restart)
	if o.s.timer.State() == countdown.Running {
		o.s.timer.Stop()
	}
}

func (o observer) SpeedChanged(st playback.State) {
	if st.IsPlaying && o.s.anim.Running() {
		o.s.anim.Start(st.Speed)
	}
}

func (o observer) DurationChanged(st playback.State) {
	o.s.timer.SetDuration(st.Duration)
}

func (o observer) IconChanged(playback.State) {}

// handler builds the guest view from the first snapshot and reconciles the rest.
type handler struct{ s *Session }

func (h handler) Initialize(snap remote.Snapshot) error {
	s := h.s
	owner, err := playback.NewOwner(session.RoleGuest, snap.State(), nil)
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	s.owner = owner
	s.timer.SetDuration(snap.State().Duration)
	s.owner.Observe(observer{s})
	s.engine = reconcile.NewEngine(snap, effects{owner}, s.metrics)

	if snap.IsPlaying {
		observer{s}.PlayingChanged(owner.State(), true)
	}
	log.Info().
		Str("session_id", string(s.sc.ID)).
		Str("state", owner.State().String()).
		Msg("guest view ready")
	return nil
}

func (h handler) Reconcile(snap remote.Snapshot) {
	if h.s.engine == nil {
		return
	}
	h.s.engine.Apply(snap)
}

// effects routes reconciled changes through the guest's owner so observers
// see them like any other change.
type effects struct{ owner *playback.Owner }

func (e effects) StartPlaying(speed time.Duration) { e.owner.MirrorStart(speed) }
func (e effects) StopPlaying()                     { e.owner.MirrorStop() }
func (e effects) ChangeIcon(icon int)              { e.owner.MirrorIcon(icon) }
func (e effects) ChangeDuration(d time.Duration)   { e.owner.MirrorDuration(d) }

// ChangeSpeed restarts the loop through SpeedChanged when playing, which
// covers restartLoop; a start in the same snapshot already used this speed.
func (e effects) ChangeSpeed(speed time.Duration, _ bool) { e.owner.MirrorSpeed(speed) }
