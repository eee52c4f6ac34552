package playback

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/emdrtap/go/internal/session"
	"github.com/rs/zerolog/log"
)

// Observer is told about every change the owner applies. restart is true when
// playback starts fresh (elapsed time resets) or stops to the rest pose, and
// false for a passive guest stop.
type Observer interface {
	PlayingChanged(s State, restart bool)
	SpeedChanged(s State)
	DurationChanged(s State)
	IconChanged(s State)
}

// Publisher receives the post-change state of a host session.
type Publisher interface {
	Publish(s State)
}

// Owner is the single writer of a session's State. It is not safe for
// concurrent use; the session loop owns it.
type Owner struct {
	role      session.Role
	state     State
	publisher Publisher
	observers []Observer
}

// NewOwner creates the owner. publisher is only used for host sessions and may
// be nil otherwise.
func NewOwner(role session.Role, initial State, publisher Publisher) (*Owner, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}
	if role == session.RoleHost && publisher == nil {
		return nil, errors.New("host owner requires a publisher")
	}
	return &Owner{
		role:      role,
		state:     initial,
		publisher: publisher,
	}, nil
}

// Observe registers o. Observers are notified in registration order.
func (o *Owner) Observe(obs Observer) {
	o.observers = append(o.observers, obs)
}

func (o *Owner) State() State { return o.state }

func (o *Owner) Role() session.Role { return o.role }

// PublishCurrent sends the current state without changing it. Hosts call it
// once when the session document is first created.
func (o *Owner) PublishCurrent() {
	if o.role == session.RoleHost {
		o.publisher.Publish(o.state)
	}
}

func (o *Owner) SetPlaying(playing bool) error {
	if o.role == session.RoleGuest {
		return ErrReadOnly
	}
	if o.state.IsPlaying == playing {
		return nil
	}
	o.state.IsPlaying = playing
	o.notifyPlaying(true)
	o.publish()
	return nil
}

func (o *Owner) TogglePlaying() error {
	return o.SetPlaying(!o.state.IsPlaying)
}

func (o *Owner) SetSpeed(speed time.Duration) error {
	if o.role == session.RoleGuest {
		return ErrReadOnly
	}
	if speed <= 0 {
		return fmt.Errorf("set speed %s: %w", speed, ErrInvalidSpeed)
	}
	if o.state.Speed == speed {
		return nil
	}
	o.state.Speed = speed
	o.notifySpeed()
	o.publish()
	return nil
}

// SetSpeedSlider sets the speed from a slider position in [0, 1].
func (o *Owner) SetSpeedSlider(v float64) error {
	return o.SetSpeed(SpeedForSlider(v))
}

// SetDuration selects a duration preset by index.
func (o *Owner) SetDuration(preset int) error {
	if o.role == session.RoleGuest {
		return ErrReadOnly
	}
	d, err := DurationForPreset(preset)
	if err != nil {
		return err
	}
	if o.state.Duration == d {
		return nil
	}
	o.state.Duration = d
	o.notifyDuration()
	o.publish()
	return nil
}

func (o *Owner) SetIcon(icon int) error {
	if o.role == session.RoleGuest {
		return ErrReadOnly
	}
	if icon < 0 || icon >= NumIcons {
		return fmt.Errorf("set icon %d: %w", icon, ErrInvalidIcon)
	}
	if o.state.Icon == icon {
		return nil
	}
	o.state.Icon = icon
	o.notifyIcon()
	o.publish()
	return nil
}

// CycleIcon advances to the next icon in the catalog.
func (o *Owner) CycleIcon() error {
	return o.SetIcon(NextIcon(o.state.Icon))
}

// Expire ends playback because the duration ran out. Unlike SetPlaying it is
// allowed for guests, whose countdown runs locally.
func (o *Owner) Expire() {
	if !o.state.IsPlaying {
		return
	}
	o.state.IsPlaying = false
	o.notifyPlaying(true)
	o.publish()
	log.Info().Str("role", o.role.String()).Msg("session duration elapsed")
}

// MirrorStart applies a remote start with the host's speed.
func (o *Owner) MirrorStart(speed time.Duration) {
	o.state.IsPlaying = true
	if speed > 0 {
		o.state.Speed = speed
	}
	o.notifyPlaying(true)
}

// MirrorStop applies a remote stop. The ball stays where it is.
func (o *Owner) MirrorStop() {
	o.state.IsPlaying = false
	o.notifyPlaying(false)
}

func (o *Owner) MirrorSpeed(speed time.Duration) {
	if speed <= 0 || o.state.Speed == speed {
		return
	}
	o.state.Speed = speed
	o.notifySpeed()
}

func (o *Owner) MirrorDuration(d time.Duration) {
	if d < 0 || o.state.Duration == d {
		return
	}
	o.state.Duration = d
	o.notifyDuration()
}

func (o *Owner) MirrorIcon(icon int) {
	if icon < 0 || icon >= NumIcons || o.state.Icon == icon {
		return
	}
	o.state.Icon = icon
	o.notifyIcon()
}

func (o *Owner) publish() {
	if o.role != session.RoleHost {
		return
	}
	o.publisher.Publish(o.state)
}

func (o *Owner) notifyPlaying(restart bool) {
	for _, obs := range o.observers {
		obs.PlayingChanged(o.state, restart)
	}
}

func (o *Owner) notifySpeed() {
	for _, obs := range o.observers {
		obs.SpeedChanged(o.state)
	}
}

func (o *Owner) notifyDuration() {
	for _, obs := range o.observers {
		obs.DurationChanged(o.state)
	}
}

func (o *Owner) notifyIcon() {
	for _, obs := range o.observers {
		obs.IconChanged(o.state)
	}
}
