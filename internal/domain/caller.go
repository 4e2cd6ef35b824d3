package domain

import (
	"fmt"
	"strings"
)

// Role is the verified role of the authenticated caller.
type Role string

const (
	RoleHost     Role = "host"
	RoleAttendee Role = "attendee"
)

// ParseRole maps a token role claim to a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleHost, RoleAttendee:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrUnauthorized, s)
}

// Caller is the authenticated identity for a request: either a host or an attendee.
// The zero value is not a valid caller.
type Caller struct {
	ID   string
	Role Role
}

// HostCaller returns a Caller for the host with the given id.
func HostCaller(id string) Caller { return Caller{ID: id, Role: RoleHost} }

// AttendeeCaller returns a Caller for the attendee with the given id.
func AttendeeCaller(id string) Caller { return Caller{ID: id, Role: RoleAttendee} }

func (c Caller) IsHost() bool     { return c.ID != "" && c.Role == RoleHost }
func (c Caller) IsAttendee() bool { return c.ID != "" && c.Role == RoleAttendee }

// RequireHost returns ErrForbidden unless c is a host.
func (c Caller) RequireHost() error {
	if c.ID == "" {
		return ErrUnauthorized
	}
	if c.Role != RoleHost {
		return fmt.Errorf("%w: only hosts may perform this action", ErrForbidden)
	}
	return nil
}

// RequireAttendee returns ErrForbidden unless c is an attendee.
func (c Caller) RequireAttendee() error {
	if c.ID == "" {
		return ErrUnauthorized
	}
	if c.Role != RoleAttendee {
		return fmt.Errorf("%w: only attendees may perform this action", ErrForbidden)
	}
	return nil
}

// RequireOwner returns ErrForbidden unless c is the host owning event.
func (c Caller) RequireOwner(event *Event) error {
	if err := c.RequireHost(); err != nil {
		return err
	}
	if event.OwnerID != c.ID {
		return fmt.Errorf("%w: not the event owner", ErrForbidden)
	}
	return nil
}
