package session

import (
	"fmt"
	"math/rand/v2"
)

const (
	// IDLength is the number of digits in a session ID.
	IDLength = 4
	// maxHostID is the highest ID a host may draw; 9999 is never handed out.
	maxHostID = 9998
)

// ID is a zero-padded four digit session identifier and the document key.
type ID string

func (id ID) String() string { return string(id) }

// FormatID pads n to four digits.
func FormatID(n int) ID {
	return ID(fmt.Sprintf("%04d", n))
}

// GenerateHostID draws uniformly from [0, 9998]. A nil r uses the global source.
func GenerateHostID(r *rand.Rand) ID {
	if r == nil {
		return FormatID(rand.IntN(maxHostID + 1))
	}
	return FormatID(r.IntN(maxHostID + 1))
}

// ParseID accepts exactly four ASCII digits.
func ParseID(candidate string) (ID, error) {
	if len(candidate) != IDLength {
		return "", fmt.Errorf("parse id %q: %w", candidate, ErrInvalidID)
	}
	for i := 0; i < len(candidate); i++ {
		if candidate[i] < '0' || candidate[i] > '9' {
			return "", fmt.Errorf("parse id %q: %w", candidate, ErrInvalidID)
		}
	}
	return ID(candidate), nil
}
