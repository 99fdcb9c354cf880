package dataset

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/fedutinova/minedash/internal/common"
	"github.com/fedutinova/minedash/internal/models"
)

// Store holds the reference data for the lifetime of the process. Admin
// edits change the in-memory copy only; nothing is written back.
type Store struct {
	mu         sync.RWMutex
	minerals   map[string]models.Mineral
	countries  map[string]models.Country
	sites      []models.Site
	production []models.ProductionStat
}

// NewStore indexes minerals and countries by name; a repeated name replaces
// the earlier row.
func NewStore(minerals []models.Mineral, countries []models.Country, production []models.ProductionStat, sites []models.Site) *Store {
	s := &Store{
		minerals:   make(map[string]models.Mineral, len(minerals)),
		countries:  make(map[string]models.Country, len(countries)),
		production: production,
		sites:      append([]models.Site(nil), sites...),
	}
	for _, m := range minerals {
		if _, dup := s.minerals[m.Name]; dup {
			slog.Warn("duplicate mineral name, keeping last row", "mineral", m.Name)
		}
		s.minerals[m.Name] = m
	}
	for _, c := range countries {
		if _, dup := s.countries[c.Name]; dup {
			slog.Warn("duplicate country name, keeping last row", "country", c.Name)
		}
		s.countries[c.Name] = c
	}
	return s
}

type Counts struct {
	Minerals  int `json:"minerals"`
	Countries int `json:"countries"`
	Sites     int `json:"sites"`
}

func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{Minerals: len(s.minerals), Countries: len(s.countries), Sites: len(s.sites)}
}

// Minerals returns minerals sorted by name. A non-empty query keeps those
// whose name or description contains it, case-insensitively.
func (s *Store) Minerals(query string) []models.Mineral {
	q := strings.ToLower(strings.TrimSpace(query))
	s.mu.RLock()
	out := make([]models.Mineral, 0, len(s.minerals))
	for name, m := range s.minerals {
		if q == "" || strings.Contains(strings.ToLower(name), q) || strings.Contains(strings.ToLower(m.Description), q) {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Countries filters on name or key projects, like Minerals.
func (s *Store) Countries(query string) []models.Country {
	q := strings.ToLower(strings.TrimSpace(query))
	s.mu.RLock()
	out := make([]models.Country, 0, len(s.countries))
	for name, c := range s.countries {
		if q == "" || strings.Contains(strings.ToLower(name), q) || strings.Contains(strings.ToLower(c.KeyProjects), q) {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) MineralNames() []string {
	ms := s.Minerals("")
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name
	}
	return out
}

func (s *Store) CountryNames() []string {
	cs := s.Countries("")
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func (s *Store) Sites() []models.Site {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Site(nil), s.sites...)
}

// Production returns the merged production statistics. They are never
// edited, so the slice is shared.
func (s *Store) Production() []models.ProductionStat {
	return s.production
}

func (s *Store) EditMineral(name, description string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.minerals[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, common.ErrMineralNotFound)
	}
	m.Description = description
	m.MarketPriceUSDPerTonne = price
	s.minerals[name] = m
	return nil
}

func (s *Store) DeleteMineral(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.minerals[name]; !ok {
		return fmt.Errorf("%q: %w", name, common.ErrMineralNotFound)
	}
	delete(s.minerals, name)
	return nil
}

// AddCountry assigns the next free id. Existing names are a conflict.
func (s *Store) AddCountry(c models.Country) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.countries[c.Name]; ok {
		return fmt.Errorf("country %q: %w", c.Name, common.ErrConflict)
	}
	for _, existing := range s.countries {
		if existing.ID >= c.ID {
			c.ID = existing.ID + 1
		}
	}
	s.countries[c.Name] = c
	return nil
}

func (s *Store) DeleteCountry(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.countries[name]; !ok {
		return fmt.Errorf("%q: %w", name, common.ErrCountryNotFound)
	}
	delete(s.countries, name)
	return nil
}

// AddSite requires the site's country and mineral to exist and copies their
// ids onto the site.
func (s *Store) AddSite(site models.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.countries[site.Country]
	if !ok {
		return fmt.Errorf("%q: %w", site.Country, common.ErrCountryNotFound)
	}
	m, ok := s.minerals[site.Mineral]
	if !ok {
		return fmt.Errorf("%q: %w", site.Mineral, common.ErrMineralNotFound)
	}
	site.CountryID = c.ID
	site.MineralID = m.ID
	s.sites = append(s.sites, site)
	return nil
}

// DeleteSite removes the first site with the given name.
func (s *Store) DeleteSite(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, site := range s.sites {
		if site.Name == name {
			s.sites = append(s.sites[:i], s.sites[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%q: %w", name, common.ErrSiteNotFound)
}

// UpdateSiteCoords moves the first site with the given name.
func (s *Store) UpdateSiteCoords(name string, lat, lon float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sites {
		if s.sites[i].Name == name {
			s.sites[i].Latitude = lat
			s.sites[i].Longitude = lon
			return nil
		}
	}
	return fmt.Errorf("%q: %w", name, common.ErrSiteNotFound)
}
