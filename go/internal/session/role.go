package session

import (
	"fmt"
	"strings"
)

// Role decides who may write the shared document.
type Role int

const (
	// RoleLocal neither reads nor writes remote state.
	RoleLocal Role = iota
	// RoleHost owns the document and publishes every change.
	RoleHost
	// RoleGuest mirrors the host's document and cannot change playback.
	RoleGuest
)

func (r Role) String() string {
	switch r {
	case RoleLocal:
		return "local"
	case RoleHost:
		return "host"
	case RoleGuest:
		return "guest"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole resolves a user-supplied role name.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "":
		return RoleLocal, nil
	case "host":
		return RoleHost, nil
	case "guest", "join":
		return RoleGuest, nil
	default:
		return RoleLocal, fmt.Errorf("parse role %q: %w", s, ErrInvalidRole)
	}
}
