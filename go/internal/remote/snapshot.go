// Package remote carries playback state between a host and its guests through
// the document store.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/mcdev12/emdrtap/go/internal/playback"
)

// Document field names. They are shared with every other client of the
// session document and must not change.
const (
	FieldID           = "id"
	FieldIsPlaying    = "isPlaying"
	FieldSpeed        = "speed"
	FieldDuration     = "duration"
	FieldCurrentImage = "currentImage"
)

// ErrMalformedSnapshot is returned for documents that are missing a field,
// carry a wrongly typed field, or violate a playback invariant.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// Snapshot is the wire form of playback.State. Times are in seconds and a
// duration of 0 means infinite.
type Snapshot struct {
	ID           string  `json:"id,omitempty"`
	IsPlaying    bool    `json:"isPlaying"`
	Speed        float64 `json:"speed"`
	Duration     float64 `json:"duration"`
	CurrentImage int     `json:"currentImage"`
}

// FromState serializes s for the document with the given key.
func FromState(key string, s playback.State) Snapshot {
	return Snapshot{
		ID:           key,
		IsPlaying:    s.IsPlaying,
		Speed:        s.Speed.Seconds(),
		Duration:     s.Duration.Seconds(),
		CurrentImage: s.Icon,
	}
}

// State converts the snapshot back to playback state.
func (s Snapshot) State() playback.State {
	return playback.State{
		IsPlaying: s.IsPlaying,
		Speed:     secondsToDuration(s.Speed),
		Duration:  secondsToDuration(s.Duration),
		Icon:      s.CurrentImage,
	}
}

// Fields renders the snapshot as document fields.
func (s Snapshot) Fields() docstore.Fields {
	f := docstore.Fields{
		FieldIsPlaying:    s.IsPlaying,
		FieldSpeed:        s.Speed,
		FieldDuration:     s.Duration,
		FieldCurrentImage: s.CurrentImage,
	}
	if s.ID != "" {
		f[FieldID] = s.ID
	}
	return f
}

// Decode validates document fields and builds a snapshot. All four playback
// fields are required.
func Decode(fields docstore.Fields) (Snapshot, error) {
	var snap Snapshot

	playing, ok := fields[FieldIsPlaying].(bool)
	if !ok {
		return Snapshot{}, malformed(FieldIsPlaying, fields[FieldIsPlaying])
	}
	snap.IsPlaying = playing

	speed, ok := number(fields[FieldSpeed])
	if !ok || speed <= 0 {
		return Snapshot{}, malformed(FieldSpeed, fields[FieldSpeed])
	}
	snap.Speed = speed

	duration, ok := number(fields[FieldDuration])
	if !ok || duration < 0 {
		return Snapshot{}, malformed(FieldDuration, fields[FieldDuration])
	}
	snap.Duration = duration

	image, ok := number(fields[FieldCurrentImage])
	if !ok || image != math.Trunc(image) || image < 0 || image >= playback.NumIcons {
		return Snapshot{}, malformed(FieldCurrentImage, fields[FieldCurrentImage])
	}
	snap.CurrentImage = int(image)

	if id, ok := fields[FieldID].(string); ok {
		snap.ID = id
	}
	// values that only fail after conversion, like a speed that rounds to 0
	if err := snap.State().Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("%v: %w", err, ErrMalformedSnapshot)
	}
	return snap, nil
}

func malformed(field string, v any) error {
	if v == nil {
		return fmt.Errorf("field %s missing: %w", field, ErrMalformedSnapshot)
	}
	return fmt.Errorf("field %s has invalid value %v (%T): %w", field, v, v, ErrMalformedSnapshot)
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(math.Round(sec * float64(time.Second)))
}
