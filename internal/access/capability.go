package access

import (
	"strings"
)

// Capability is a permission flag gating one feature area of the dashboard.
type Capability uint8

const (
	Profiles Capability = iota
	Charts
	Export
	Production
	Database
	Insights
	Map
	// All marks a role as unrestricted. It is checked as a bypass and is
	// never expanded into the other flags.
	All
)

var capabilityNames = [...]string{
	Profiles:   "profiles",
	Charts:     "charts",
	Export:     "export",
	Production: "production",
	Database:   "database",
	Insights:   "insights",
	Map:        "map",
	All:        "all",
}

// Capabilities lists every capability in declaration order.
func Capabilities() []Capability {
	out := make([]Capability, len(capabilityNames))
	for i := range capabilityNames {
		out[i] = Capability(i)
	}
	return out
}

func (c Capability) String() string {
	if int(c) < len(capabilityNames) {
		return capabilityNames[c]
	}
	return "unknown"
}

func (c Capability) valid() bool {
	return int(c) < len(capabilityNames)
}

// ParseCapability maps a capability name (case-insensitive) to its flag.
func ParseCapability(name string) (Capability, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range capabilityNames {
		if n == name {
			return Capability(i), true
		}
	}
	return 0, false
}

// Set is an immutable set of capabilities stored as a bitmask.
type Set uint16

// NewSet builds a set from the given flags. Unknown flags are ignored.
func NewSet(caps ...Capability) Set {
	var s Set
	for _, c := range caps {
		s = s.With(c)
	}
	return s
}

func (s Set) With(c Capability) Set {
	if !c.valid() {
		return s
	}
	return s | 1<<c
}

func (s Set) Union(o Set) Set { return s | o }

// Has reports whether c is literally present, without the All bypass.
func (s Set) Has(c Capability) bool {
	return c.valid() && s&(1<<c) != 0
}

// Allows reports whether the set grants c, honouring the All bypass.
func (s Set) Allows(c Capability) bool {
	return s.Has(All) || s.Has(c)
}

func (s Set) Empty() bool { return s == 0 }

// ContainsAll reports whether every flag of o is also in s.
func (s Set) ContainsAll(o Set) bool { return s&o == o }

// List returns the flags in the set in declaration order.
func (s Set) List() []Capability {
	var out []Capability
	for _, c := range Capabilities() {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the flag names in the set, sorted by declaration order.
func (s Set) Names() []string {
	caps := s.List()
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = c.String()
	}
	return out
}

func (s Set) String() string {
	return "{" + strings.Join(s.Names(), ", ") + "}"
}
