package feedback

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
)

// Kind identifies a haptic/audio cue.
type Kind int

const (
	KindButtonTap Kind = iota
	KindIconTap
	KindInvalidSessionID
	KindSettingsToggle
	KindBounce
)

func (k Kind) String() string {
	switch k {
	case KindButtonTap:
		return "button_tap"
	case KindIconTap:
		return "icon_tap"
	case KindInvalidSessionID:
		return "invalid_session_id"
	case KindSettingsToggle:
		return "settings_toggle"
	case KindBounce:
		return "bounce"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is a single cue. Icon is only meaningful for KindIconTap and KindBounce.
type Event struct {
	Kind Kind
	Icon int
}

func ButtonTap() Event        { return Event{Kind: KindButtonTap} }
func IconTap(icon int) Event  { return Event{Kind: KindIconTap, Icon: icon} }
func InvalidSessionID() Event { return Event{Kind: KindInvalidSessionID} }
func SettingsToggle() Event   { return Event{Kind: KindSettingsToggle} }
func Bounce(icon int) Event   { return Event{Kind: KindBounce, Icon: icon} }

var tapSounds = []string{
	"TapCircle",
	"TapStar",
	"TapMoon",
	"TapAtom",
	"TapFace",
}

// SoundFor returns the tap sound played when the given icon bounces.
// Icons past the end of the sound table share the last sound.
func SoundFor(icon int) string {
	if icon < 0 {
		icon = 0
	}
	if icon >= len(tapSounds) {
		icon = len(tapSounds) - 1
	}
	return tapSounds[icon]
}

// Player plays feedback cues. Implementations must not block the caller for long.
type Player interface {
	Play(Event)
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(Event)

func (f PlayerFunc) Play(e Event) { f(e) }

// NoOp discards every event.
type NoOp struct{}

func (NoOp) Play(Event) {}

// LogPlayer records events on the debug log.
type LogPlayer struct{}

func (LogPlayer) Play(e Event) {
	ev := log.Debug().Str("feedback", e.Kind.String())
	if e.Kind == KindBounce || e.Kind == KindIconTap {
		ev = ev.Int("icon", e.Icon).Str("sound", SoundFor(e.Icon))
	}
	ev.Msg("feedback played")
}

// Bell rings the terminal bell for audible cues.
type Bell struct {
	mu      sync.Mutex
	out     io.Writer
	bounces bool
}

// NewBell creates a bell player. When bounces is false only the invalid session cue rings.
func NewBell(out io.Writer, bounces bool) *Bell {
	return &Bell{out: out, bounces: bounces}
}

func (b *Bell) Play(e Event) {
	switch e.Kind {
	case KindInvalidSessionID:
	case KindBounce:
		if !b.bounces {
			return
		}
	default:
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := io.WriteString(b.out, "\a"); err != nil {
		log.Debug().Err(err).Msg("failed to ring bell")
	}
}

// Multi fans an event out to every player in order.
type Multi []Player

func (m Multi) Play(e Event) {
	for _, p := range m {
		if p != nil {
			p.Play(e)
		}
	}
}

// Recorder keeps every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Play(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many recorded events have the given kind.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
