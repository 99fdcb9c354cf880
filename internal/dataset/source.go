package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fedutinova/minedash/internal/models"
)

const (
	MineralsFile      = "minerals.csv"
	ExtraMineralsFile = "extra_minerals.csv"
	CountriesFile     = "countries.csv"
	ProductionFile    = "production_stats.csv"
	UsersFile         = "users.csv"
	RolesFile         = "roles.csv"
	SitesFile         = "sites.csv"
)

// Source reads the reference CSV files from a data directory. Every list
// call re-reads its file.
type Source struct {
	dir string
}

func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

func (s *Source) Dir() string {
	return s.dir
}

func (s *Source) open(name string, cols ...string) (*table, error) {
	path := filepath.Join(s.dir, name)
	t, err := readTable(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := t.require(cols...); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// ListRoles reads roles.csv (RoleID, RoleName, Permissions).
func (s *Source) ListRoles(ctx context.Context) ([]models.Role, error) {
	t, err := s.open(RolesFile, "RoleID", "RoleName")
	if err != nil {
		return nil, err
	}
	roles := make([]models.Role, 0, len(t.rows))
	for _, row := range t.rows {
		roles = append(roles, models.Role{
			ID:          t.atoi(row, "RoleID"),
			Name:        t.str(row, "RoleName"),
			Permissions: t.str(row, "Permissions"),
		})
	}
	return roles, nil
}

// ListUsers reads users.csv (Username, PasswordHash, RoleID).
func (s *Source) ListUsers(ctx context.Context) ([]models.User, error) {
	t, err := s.open(UsersFile, "Username", "PasswordHash", "RoleID")
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(t.rows))
	for _, row := range t.rows {
		users = append(users, models.User{
			Username:     t.str(row, "Username"),
			PasswordHash: t.str(row, "PasswordHash"),
			RoleID:       t.atoi(row, "RoleID"),
		})
	}
	return users, nil
}

// ListMinerals reads minerals.csv followed by extra_minerals.csv when it
// exists.
func (s *Source) ListMinerals() ([]models.Mineral, error) {
	minerals, err := s.readMinerals(MineralsFile)
	if err != nil {
		return nil, err
	}
	extra, err := s.readMinerals(ExtraMineralsFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		minerals = append(minerals, extra...)
	}
	return minerals, nil
}

func (s *Source) readMinerals(name string) ([]models.Mineral, error) {
	t, err := s.open(name, "MineralID", "MineralName")
	if err != nil {
		return nil, err
	}
	out := make([]models.Mineral, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, models.Mineral{
			ID:                     t.atoi(row, "MineralID"),
			Name:                   t.str(row, "MineralName"),
			Description:            t.str(row, "Description"),
			MarketPriceUSDPerTonne: t.atof(row, "MarketPriceUSD_per_tonne"),
		})
	}
	return out, nil
}

func (s *Source) ListCountries() ([]models.Country, error) {
	t, err := s.open(CountriesFile, "CountryID", "CountryName")
	if err != nil {
		return nil, err
	}
	out := make([]models.Country, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, models.Country{
			ID:                      t.atoi(row, "CountryID"),
			Name:                    t.str(row, "CountryName"),
			GDPBillionUSD:           t.atof(row, "GDP_BillionUSD"),
			MiningRevenueBillionUSD: t.atof(row, "MiningRevenue_BillionUSD"),
			KeyProjects:             t.str(row, "KeyProjects"),
		})
	}
	return out, nil
}

// ListProduction reads production_stats.csv and merges mineral and country
// names by id. Ids without a match keep an empty name.
func (s *Source) ListProduction(minerals []models.Mineral, countries []models.Country) ([]models.ProductionStat, error) {
	t, err := s.open(ProductionFile, "MineralID", "CountryID", "Year")
	if err != nil {
		return nil, err
	}
	mineralNames, countryNames := nameIndexes(minerals, countries)
	out := make([]models.ProductionStat, 0, len(t.rows))
	for _, row := range t.rows {
		p := models.ProductionStat{
			MineralID:             t.atoi(row, "MineralID"),
			CountryID:             t.atoi(row, "CountryID"),
			Year:                  t.atoi(row, "Year"),
			ProductionTonnes:      t.atof(row, "Production_tonnes"),
			ExportValueBillionUSD: t.atof(row, "ExportValue_BillionUSD"),
		}
		p.Mineral = mineralNames[p.MineralID]
		p.Country = countryNames[p.CountryID]
		out = append(out, p)
	}
	return out, nil
}

// ListSites reads sites.csv and merges names the same way as ListProduction.
// Unparseable coordinates are kept as NaN so map views can skip them.
func (s *Source) ListSites(minerals []models.Mineral, countries []models.Country) ([]models.Site, error) {
	t, err := s.open(SitesFile, "SiteName", "MineralID", "CountryID")
	if err != nil {
		return nil, err
	}
	mineralNames, countryNames := nameIndexes(minerals, countries)
	out := make([]models.Site, 0, len(t.rows))
	for _, row := range t.rows {
		site := models.Site{
			Name:             t.str(row, "SiteName"),
			MineralID:        t.atoi(row, "MineralID"),
			CountryID:        t.atoi(row, "CountryID"),
			Latitude:         parseCoord(t.str(row, "Latitude")),
			Longitude:        parseCoord(t.str(row, "Longitude")),
			ProductionTonnes: int64(t.atof(row, "Production_tonnes")),
		}
		site.Mineral = mineralNames[site.MineralID]
		site.Country = countryNames[site.CountryID]
		out = append(out, site)
	}
	return out, nil
}

func parseCoord(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func nameIndexes(minerals []models.Mineral, countries []models.Country) (map[int]string, map[int]string) {
	m := make(map[int]string, len(minerals))
	for _, x := range minerals {
		m[x.ID] = x.Name
	}
	c := make(map[int]string, len(countries))
	for _, x := range countries {
		c[x.ID] = x.Name
	}
	return m, c
}

// LoadStore reads every reference file into a new Store. A file that cannot
// be read is logged and contributes an empty collection.
func LoadStore(src *Source) *Store {
	minerals, err := src.ListMinerals()
	if err != nil {
		slog.Error("failed to load minerals", "dir", src.dir, "error", err)
	}
	countries, err := src.ListCountries()
	if err != nil {
		slog.Error("failed to load countries", "dir", src.dir, "error", err)
	}
	production, err := src.ListProduction(minerals, countries)
	if err != nil {
		slog.Error("failed to load production stats", "dir", src.dir, "error", err)
	}
	sites, err := src.ListSites(minerals, countries)
	if err != nil {
		slog.Error("failed to load sites", "dir", src.dir, "error", err)
	}

	st := NewStore(minerals, countries, production, sites)
	slog.Info("reference data loaded",
		"minerals", len(minerals),
		"countries", len(countries),
		"production_rows", len(production),
		"sites", len(sites))
	return st
}
