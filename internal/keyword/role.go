package keyword

import (
	"fmt"
	"strings"
)

// Role is the structural classification of a keyword.
type Role int

const (
	// RoleNone marks an unset role hint.
	RoleNone Role = iota
	RoleTopLevel
	RoleConnected
	RoleSecondary
	RoleIsolated
)

// Roles lists every assignable role in display order.
var Roles = []Role{RoleTopLevel, RoleConnected, RoleSecondary, RoleIsolated}

func (r Role) String() string {
	switch r {
	case RoleTopLevel:
		return "top-level"
	case RoleConnected:
		return "connected"
	case RoleSecondary:
		return "secondary"
	case RoleIsolated:
		return "isolated"
	default:
		return ""
	}
}

// Title is the human-readable description shown in detail panels.
func (r Role) Title() string {
	switch r {
	case RoleTopLevel:
		return "Top Level (Most Connected)"
	case RoleConnected:
		return "Connected to Top Level"
	case RoleSecondary:
		return "Secondary Connected"
	case RoleIsolated:
		return "Isolated (No Connections)"
	default:
		return "Unknown"
	}
}

// ParseRole accepts role names, underscores/camel variants, and the legacy
// numeric group levels 1-4 used by older management screens.
func ParseRole(s string) (Role, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("_", "-", " ", "-").Replace(v)
	switch v {
	case "":
		return RoleNone, nil
	case "top-level", "toplevel", "top", "1":
		return RoleTopLevel, nil
	case "connected", "2":
		return RoleConnected, nil
	case "secondary", "3":
		return RoleSecondary, nil
	case "isolated", "4":
		return RoleIsolated, nil
	}
	return RoleNone, fmt.Errorf("unknown role %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
