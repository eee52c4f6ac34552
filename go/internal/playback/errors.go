package playback

import "errors"

var (
	ErrInvalidSpeed    = errors.New("speed must be positive")
	ErrInvalidDuration = errors.New("duration must not be negative")
	ErrInvalidPreset   = errors.New("unknown duration preset")
	ErrInvalidIcon     = errors.New("icon out of range")
	// ErrReadOnly is returned when a guest tries to change playback.
	ErrReadOnly = errors.New("playback is controlled by the host")
)
