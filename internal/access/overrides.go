package access

import (
	"fmt"
	"strings"
)

// Override guarantees a capability for a named role regardless of what its
// description resolves to.
type Override struct {
	Role       string
	Capability Capability
}

// Overrides is the policy table applied after resolution. It only ever adds
// capabilities.
type Overrides []Override

// DefaultOverrides lets researchers view the map and export reports even when
// their description does not mention either.
func DefaultOverrides() Overrides {
	return Overrides{
		{Role: "Researcher", Capability: Map},
		{Role: "Researcher", Capability: Export},
	}
}

// Apply unions every capability guaranteed for role into s.
func (o Overrides) Apply(role string, s Set) Set {
	for _, ov := range o {
		if ov.Role == role {
			s = s.With(ov.Capability)
		}
	}
	return s
}

// Guaranteed returns the capabilities the table guarantees for role.
func (o Overrides) Guaranteed(role string) Set {
	return o.Apply(role, 0)
}

// ParseOverrides reads a table of the form
//
//	Researcher=map,export;Analyst=charts
//
// Role names are taken verbatim apart from surrounding whitespace. Entries
// that cannot be parsed are returned as errors and left out of the table.
func ParseOverrides(raw string) (Overrides, []error) {
	var (
		out  Overrides
		errs []error
	)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		role, caps, ok := strings.Cut(entry, "=")
		role = strings.TrimSpace(role)
		if !ok || role == "" {
			errs = append(errs, fmt.Errorf("override %q: expected Role=cap[,cap]", entry))
			continue
		}
		for _, name := range strings.Split(caps, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			c, ok := ParseCapability(name)
			if !ok {
				errs = append(errs, fmt.Errorf("override %q: unknown capability %q", role, strings.TrimSpace(name)))
				continue
			}
			out = append(out, Override{Role: role, Capability: c})
		}
	}
	return out, errs
}
