package access

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fedutinova/minedash/internal/common"
	"github.com/fedutinova/minedash/internal/models"
)

// RoleRow is one raw catalog entry: a role name and its free-text
// permission description.
type RoleRow struct {
	Name        string
	Description string
}

// RoleSource supplies the raw role rows, e.g. roles.csv or the roles table.
type RoleSource interface {
	ListRoles(ctx context.Context) ([]models.Role, error)
}

type roleEntry struct {
	description string
	resolved    Set
	final       Set
}

type snapshot struct {
	roles map[string]roleEntry
	names []string
}

var emptySnapshot = &snapshot{roles: map[string]roleEntry{}}

// Catalog holds the derived capability set of every role. Readers see one
// complete snapshot at a time; Replace swaps in a new one atomically.
type Catalog struct {
	overrides Overrides
	snap      atomic.Pointer[snapshot]
}

// NewCatalog returns an empty catalog. Every check against it denies until
// Replace is called.
func NewCatalog(overrides Overrides) *Catalog {
	c := &Catalog{overrides: overrides}
	c.snap.Store(emptySnapshot)
	return c
}

// Load builds a catalog from rows. Later rows replace earlier rows with the
// same name.
func Load(rows []RoleRow, overrides Overrides) *Catalog {
	c := NewCatalog(overrides)
	c.Replace(rows)
	return c
}

// LoadCatalog reads rows from src and derives the catalog. If the source is
// unavailable the failure is logged and the returned catalog is empty.
func LoadCatalog(ctx context.Context, src RoleSource, overrides Overrides) *Catalog {
	c := NewCatalog(overrides)
	if err := c.Reload(ctx, src); err != nil {
		slog.Error("role catalog unavailable, denying all capabilities", "error", err)
	}
	return c
}

// Reload re-reads src and swaps the result in. On failure the catalog is
// emptied rather than left on stale data.
func (c *Catalog) Reload(ctx context.Context, src RoleSource) error {
	if src == nil {
		c.Replace(nil)
		return fmt.Errorf("no role source: %w", common.ErrCatalogUnavailable)
	}
	roles, err := src.ListRoles(ctx)
	if err != nil {
		c.Replace(nil)
		return fmt.Errorf("%w: %w", common.ErrCatalogUnavailable, err)
	}
	rows := make([]RoleRow, len(roles))
	for i, r := range roles {
		rows[i] = RoleRow{Name: r.Name, Description: r.Permissions}
	}
	c.Replace(rows)
	slog.Info("role catalog loaded", "roles", c.Len(), "keyword_table", KeywordTableVersion)
	return nil
}

// Replace derives every row and publishes the result as a single snapshot.
func (c *Catalog) Replace(rows []RoleRow) {
	next := &snapshot{roles: make(map[string]roleEntry, len(rows))}
	for _, row := range rows {
		if strings.TrimSpace(row.Description) == "" {
			slog.Debug("role has no permission description", "role", row.Name, "reason", common.ErrMalformedDescription)
		}
		resolved := Resolve(row.Description)
		next.roles[row.Name] = roleEntry{
			description: row.Description,
			resolved:    resolved,
			final:       c.overrides.Apply(row.Name, resolved),
		}
	}
	next.names = make([]string, 0, len(next.roles))
	for name := range next.roles {
		next.names = append(next.names, name)
	}
	sort.Strings(next.names)
	c.snap.Store(next)
}

// Capabilities returns the final capability set of role.
func (c *Catalog) Capabilities(role string) (Set, bool) {
	e, ok := c.snap.Load().roles[role]
	return e.final, ok
}

// Resolved returns the set derived from the description alone, before
// overrides.
func (c *Catalog) Resolved(role string) (Set, bool) {
	e, ok := c.snap.Load().roles[role]
	return e.resolved, ok
}

func (c *Catalog) Description(role string) (string, bool) {
	e, ok := c.snap.Load().roles[role]
	return e.description, ok
}

// Roles returns the role names in the catalog, sorted.
func (c *Catalog) Roles() []string {
	names := c.snap.Load().names
	out := make([]string, len(names))
	copy(out, names)
	return out
}

func (c *Catalog) Len() int {
	return len(c.snap.Load().roles)
}
