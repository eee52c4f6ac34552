package session

import "fmt"

// Context is the identity of one running session. It is created once when the
// session starts and passed to every component that needs to know its role.
type Context struct {
	Role Role
	ID   ID
}

func Local() Context { return Context{Role: RoleLocal} }

func Host(id ID) Context { return Context{Role: RoleHost, ID: id} }

func Guest(id ID) Context { return Context{Role: RoleGuest, ID: id} }

func (c Context) IsHost() bool { return c.Role == RoleHost }

func (c Context) IsGuest() bool { return c.Role == RoleGuest }

func (c Context) IsLocal() bool { return c.Role == RoleLocal }

// Key returns the remote document key, empty for local sessions.
func (c Context) Key() string {
	if c.Role == RoleLocal {
		return ""
	}
	return string(c.ID)
}

// Validate checks that remote roles carry a well-formed ID and local ones none.
func (c Context) Validate() error {
	switch c.Role {
	case RoleLocal:
		if c.ID != "" {
			return fmt.Errorf("local session with id %q: %w", c.ID, ErrInvalidID)
		}
		return nil
	case RoleHost, RoleGuest:
		if _, err := ParseID(string(c.ID)); err != nil {
			return fmt.Errorf("%s session: %w", c.Role, err)
		}
		return nil
	default:
		return fmt.Errorf("validate context: %w", ErrInvalidRole)
	}
}
