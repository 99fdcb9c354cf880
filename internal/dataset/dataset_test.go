package dataset

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedutinova/minedash/internal/common"
	"github.com/fedutinova/minedash/internal/models"
)

func writeFixtures(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(strings.TrimLeft(content, "\n")), 0o644))
	}
	return dir
}

func fixtureDir(t *testing.T) string {
	return writeFixtures(t, map[string]string{
		MineralsFile: `
MineralID,MineralName,Description,MarketPriceUSD_per_tonne
1,Cobalt,Battery metal,33000
2,Lithium,"Light metal, used in batteries",13000
`,
		ExtraMineralsFile: `
MineralID,MineralName,Description,MarketPriceUSD_per_tonne
3,Graphite,Anode material,700
`,
		CountriesFile: `
CountryID,CountryName,GDP_BillionUSD,MiningRevenue_BillionUSD,KeyProjects
1,DRC,64,12,Kamoto copper-cobalt
2,Zambia,29,4.5,Kansanshi
`,
		ProductionFile: `
MineralID,CountryID,Year,Production_tonnes,ExportValue_BillionUSD
1,1,2021,100,1.5
1,1,2022,120,1.8
1,2,2022,30,0.4
2,2,2022,50,0.6
9,1,2022,5,0.1
`,
		SitesFile: `
SiteName,MineralID,CountryID,Latitude,Longitude,Production_tonnes
Kamoto,1,1,-10.7,25.4,100
Swapped,1,1,25.4,-10.7,10
Kansanshi,2,2,-12.1,26.4,50
Broken,2,2,abc,26.4,1
Nowhere,2,2,95,200,1
`,
		RolesFile: `
RoleID,RoleName,Permissions
1,Administrator,Full access to all modules
2,Researcher,Mineral database viewer
3,Guest,
`,
		UsersFile: `
Username,PasswordHash,RoleID
alice,secret,1
bob,hunter2,2
`,
	})
}

func TestSource_ListRolesAndUsers(t *testing.T) {
	src := NewSource(fixtureDir(t))

	roles, err := src.ListRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 3)
	assert.Equal(t, models.Role{ID: 2, Name: "Researcher", Permissions: "Mineral database viewer"}, roles[1])
	assert.Equal(t, "", roles[2].Permissions)

	users, err := src.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.User{
		{Username: "alice", PasswordHash: "secret", RoleID: 1},
		{Username: "bob", PasswordHash: "hunter2", RoleID: 2},
	}, users)
}

func TestSource_MissingOrMalformedFiles(t *testing.T) {
	src := NewSource(t.TempDir())
	_, err := src.ListRoles(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	dir := writeFixtures(t, map[string]string{
		RolesFile:    "Name,Perms\nAdmin,all\n",
		MineralsFile: "MineralID,MineralName\n1,Cobalt\n",
	})
	src = NewSource(dir)
	_, err = src.ListRoles(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing columns: RoleID, RoleName")

	minerals, err := src.ListMinerals()
	require.NoError(t, err, "extra minerals file is optional")
	assert.Len(t, minerals, 1)
}

func TestLoadStore_MergesNames(t *testing.T) {
	st := LoadStore(NewSource(fixtureDir(t)))

	assert.Equal(t, Counts{Minerals: 3, Countries: 2, Sites: 5}, st.Counts())
	assert.Equal(t, []string{"Cobalt", "Graphite", "Lithium"}, st.MineralNames())

	prod := st.Production()
	require.Len(t, prod, 5)
	assert.Equal(t, "Cobalt", prod[0].Mineral)
	assert.Equal(t, "DRC", prod[0].Country)
	assert.Equal(t, "", prod[4].Mineral, "unmatched mineral id keeps empty name")

	sites := st.Sites()
	assert.Equal(t, "Kansanshi", sites[2].Name)
	assert.Equal(t, "Lithium", sites[2].Mineral)
	assert.True(t, math.IsNaN(sites[3].Latitude))
}

func TestLoadStore_MissingDirectoryIsEmpty(t *testing.T) {
	st := LoadStore(NewSource(filepath.Join(t.TempDir(), "missing")))
	assert.Equal(t, Counts{}, st.Counts())
	assert.Empty(t, st.Production())
	assert.Empty(t, st.Charts("", "").Yearly)
}

func TestStore_Search(t *testing.T) {
	st := LoadStore(NewSource(fixtureDir(t)))

	got := st.Minerals("BATTER")
	require.Len(t, got, 2)
	assert.Equal(t, "Cobalt", got[0].Name)
	assert.Equal(t, "Lithium", got[1].Name)

	assert.Len(t, st.Minerals("  "), 3)
	assert.Empty(t, st.Minerals("uranium"))

	countries := st.Countries("kansanshi")
	require.Len(t, countries, 1)
	assert.Equal(t, "Zambia", countries[0].Name)
}

func TestStore_AdminMutations(t *testing.T) {
	st := LoadStore(NewSource(fixtureDir(t)))

	require.NoError(t, st.EditMineral("Cobalt", "Updated", 40000))
	assert.Equal(t, 40000.0, st.Minerals("cobalt")[0].MarketPriceUSDPerTonne)
	assert.ErrorIs(t, st.EditMineral("Gold", "x", 1), common.ErrMineralNotFound)
	assert.True(t, common.IsNotFound(st.DeleteMineral("Gold")))

	require.NoError(t, st.AddCountry(models.Country{Name: "Chile", KeyProjects: "Atacama"}))
	chile := st.Countries("chile")
	require.Len(t, chile, 1)
	assert.Equal(t, 3, chile[0].ID)
	assert.True(t, common.IsConflict(st.AddCountry(models.Country{Name: "Chile"})))

	err := st.AddSite(models.Site{Name: "Salar", Country: "Chile", Mineral: "Uranium"})
	assert.ErrorIs(t, err, common.ErrMineralNotFound)
	err = st.AddSite(models.Site{Name: "Salar", Country: "Peru", Mineral: "Lithium"})
	assert.ErrorIs(t, err, common.ErrCountryNotFound)
	require.NoError(t, st.AddSite(models.Site{Name: "Salar", Country: "Chile", Mineral: "Lithium", Latitude: -23.5, Longitude: -68.2}))
	sites := st.Sites()
	salar := sites[len(sites)-1]
	assert.Equal(t, 3, salar.CountryID)
	assert.Equal(t, 2, salar.MineralID)

	require.NoError(t, st.UpdateSiteCoords("Salar", -23.6, -68.3))
	assert.Equal(t, -23.6, st.Sites()[len(sites)-1].Latitude)
	assert.ErrorIs(t, st.UpdateSiteCoords("Atlantis", 0, 0), common.ErrSiteNotFound)

	require.NoError(t, st.DeleteSite("Salar"))
	assert.ErrorIs(t, st.DeleteSite("Salar"), common.ErrSiteNotFound)
	require.NoError(t, st.DeleteCountry("Chile"))
	require.NoError(t, st.DeleteMineral("Graphite"))
	assert.Equal(t, Counts{Minerals: 2, Countries: 2, Sites: 5}, st.Counts())
}

func TestStore_Charts(t *testing.T) {
	st := LoadStore(NewSource(fixtureDir(t)))

	all := st.Charts("all", "")
	assert.Equal(t, "Production Trends", all.ProductionTitle)
	assert.Equal(t, "Production Share by Mineral", all.ShareTitle)
	assert.False(t, all.FallbackToAll)
	require.Len(t, all.Yearly, 2)
	assert.Equal(t, YearTotal{Year: 2021, ProductionTonnes: 100, ExportValueBillionUSD: 1.5}, all.Yearly[0])
	assert.Equal(t, 205.0, all.Yearly[1].ProductionTonnes)

	names := make([]string, 0, len(all.Production))
	for _, s := range all.Production {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Cobalt", "Lithium", "mineral #9"}, names)
	assert.Equal(t, []Point{{2021, 100}, {2022, 150}}, all.Production[0].Points)

	cobalt := st.Charts("Cobalt", "all")
	assert.Equal(t, "Production Trends Cobalt", cobalt.ProductionTitle)
	assert.Equal(t, "Production Share by Country", cobalt.ShareTitle)
	assert.Equal(t, []Slice{{"DRC", 220}, {"Zambia", 30}}, cobalt.Share)

	both := st.Charts("Cobalt", "Zambia")
	assert.Equal(t, "Export Value Trends Cobalt in Zambia", both.ExportTitle)
	require.Len(t, both.Yearly, 1)
	assert.Equal(t, 30.0, both.Yearly[0].ProductionTonnes)

	none := st.Charts("Graphite", "")
	assert.True(t, none.FallbackToAll)
	assert.Len(t, none.Yearly, 2)
}

func TestNormalizeCoordinates(t *testing.T) {
	tests := []struct {
		name             string
		lat, lon         float64
		wantLat, wantLon float64
		ok               bool
	}{
		{"valid", -10.7, 25.4, -10.7, 25.4, true},
		{"lat out of range swaps", 120, 45, 45, 120, true},
		{"lon beyond 180 swaps", 45, 200, 200, 45, false},
		{"both invalid", 95, 200, 200, 95, false},
		{"nan", math.NaN(), 1, math.NaN(), 1, false},
		{"edges", -90, 180, -90, 180, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon, ok := NormalizeCoordinates(tt.lat, tt.lon)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.wantLat, lat)
				assert.Equal(t, tt.wantLon, lon)
			}
		})
	}
}

func TestStore_Map(t *testing.T) {
	st := LoadStore(NewSource(fixtureDir(t)))

	view := st.Map("")
	assert.Equal(t, "all", view.Mineral)
	require.Len(t, view.Markers, 3)
	assert.Equal(t, 2, view.Skipped)

	// 25.4,-10.7 is a valid position as given and must not be swapped
	assert.Equal(t, 25.4, view.Markers[1].Latitude)
	assert.Equal(t, "Kamoto - Cobalt in DRC (100 tonnes)", view.Markers[0].Popup)

	require.NotNil(t, view.Bounds)
	assert.Equal(t, Bounds{South: -12.1, West: -10.7, North: 25.4, East: 26.4}, *view.Bounds)

	lithium := st.Map("Lithium")
	require.Len(t, lithium.Markers, 1)
	assert.Equal(t, 2, lithium.Skipped)

	empty := st.Map("Graphite")
	assert.Empty(t, empty.Markers)
	assert.Nil(t, empty.Bounds)
	assert.Equal(t, [2]float64{0, 20}, empty.Center)
	assert.Equal(t, 3, empty.Zoom)
}

func TestPreview(t *testing.T) {
	view, err := Preview("Salar", -23.5, -68.2)
	require.NoError(t, err)
	assert.Equal(t, 9, view.Zoom)
	assert.Equal(t, "Preview: Salar", view.Markers[0].Popup)

	_, err = Preview("Salar", 100, 300)
	assert.Error(t, err)
}

func TestInsights(t *testing.T) {
	in := NewInsights()

	_, err := in.Add("bob", models.InsightMineral, "   ")
	assert.True(t, common.IsValidation(err))

	item, err := in.Add("bob", models.InsightMineral, " Cobalt prices will rise ")
	require.NoError(t, err)
	assert.Equal(t, "Cobalt prices will rise", item.Text)
	_, err = in.Add("alice", models.InsightCountry, "DRC output up")
	require.NoError(t, err)

	assert.Equal(t, 2, in.Len())
	minerals := in.List(models.InsightMineral)
	require.Len(t, minerals, 1)
	assert.Equal(t, "bob", minerals[0].Username)
	assert.Len(t, in.List(models.InsightCountry), 1)
}
