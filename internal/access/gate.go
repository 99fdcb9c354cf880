package access

import "github.com/fedutinova/minedash/internal/common"

// Gate answers capability checks against a catalog. It never blocks and
// never fails: anything it cannot prove is allowed is denied.
type Gate struct {
	catalog *Catalog
}

func NewGate(c *Catalog) *Gate {
	return &Gate{catalog: c}
}

// Authorize reports whether role may use the feature gated by required.
// Unknown roles and an empty catalog deny.
func (g *Gate) Authorize(role string, required Capability) bool {
	return g.Check(role, required) == nil
}

// Check is Authorize with the reason for a denial: common.ErrUnknownRole
// when the role is not in the catalog, common.ErrForbidden otherwise.
func (g *Gate) Check(role string, required Capability) error {
	if g == nil || g.catalog == nil {
		return common.ErrUnknownRole
	}
	caps, ok := g.catalog.Capabilities(role)
	if !ok {
		return common.ErrUnknownRole
	}
	if !caps.Allows(required) {
		return common.ErrForbidden
	}
	return nil
}

// Features returns the final capability set of role for presentation, e.g.
// to decide which navigation links to render.
func (g *Gate) Features(role string) Set {
	if g == nil || g.catalog == nil {
		return 0
	}
	caps, _ := g.catalog.Capabilities(role)
	return caps
}

// Allowed lists every non-bypass capability role is granted, expanding All
// for display only.
func (g *Gate) Allowed(role string) []Capability {
	var out []Capability
	for _, c := range Capabilities() {
		if c == All {
			continue
		}
		if g.Authorize(role, c) {
			out = append(out, c)
		}
	}
	return out
}

func (g *Gate) Catalog() *Catalog {
	return g.catalog
}
