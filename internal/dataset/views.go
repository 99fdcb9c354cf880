package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/fedutinova/minedash/internal/models"
)

// AnyFilter is the filter value meaning "no restriction".
const AnyFilter = "all"

func isAny(f string) bool {
	return f == "" || f == AnyFilter
}

type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

type Slice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type YearTotal struct {
	Year                  int     `json:"year"`
	ProductionTonnes      float64 `json:"production_tonnes"`
	ExportValueBillionUSD float64 `json:"export_value_billion_usd"`
}

// ChartData is everything the chart renderer needs for one filter choice.
type ChartData struct {
	Mineral         string      `json:"mineral"`
	Country         string      `json:"country"`
	ProductionTitle string      `json:"production_title"`
	ExportTitle     string      `json:"export_title"`
	ShareTitle      string      `json:"share_title"`
	Production      []Series    `json:"production"`
	ExportValue     []Series    `json:"export_value"`
	Share           []Slice     `json:"share"`
	Yearly          []YearTotal `json:"yearly"`
	FallbackToAll   bool        `json:"fallback_to_all"`
	MineralOptions  []string    `json:"mineral_options"`
	CountryOptions  []string    `json:"country_options"`
}

// Charts aggregates production statistics for the given filters. When the
// filters match nothing the full dataset is charted instead.
func (s *Store) Charts(mineral, country string) ChartData {
	if isAny(mineral) {
		mineral = AnyFilter
	}
	if isAny(country) {
		country = AnyFilter
	}

	rows := filterProduction(s.production, mineral, country)
	data := ChartData{
		Mineral:        mineral,
		Country:        country,
		MineralOptions: s.MineralNames(),
		CountryOptions: s.CountryNames(),
	}
	if len(rows) == 0 {
		rows = s.production
		data.FallbackToAll = len(rows) > 0 && (mineral != AnyFilter || country != AnyFilter)
	}

	label := chartLabel(mineral, country)
	data.ProductionTitle = "Production Trends" + label
	data.ExportTitle = "Export Value Trends" + label

	data.Production = seriesBy(rows, mineralLabel, func(p models.ProductionStat) float64 { return p.ProductionTonnes })
	data.ExportValue = seriesBy(rows, mineralLabel, func(p models.ProductionStat) float64 { return p.ExportValueBillionUSD })

	if mineral == AnyFilter {
		data.ShareTitle = "Production Share by Mineral"
		data.Share = shareBy(rows, mineralLabel)
	} else {
		data.ShareTitle = "Production Share by Country"
		data.Share = shareBy(rows, countryLabel)
	}
	data.Yearly = yearly(rows)
	return data
}

func chartLabel(mineral, country string) string {
	var b strings.Builder
	if mineral != AnyFilter {
		b.WriteString(" " + mineral)
	}
	if country != AnyFilter {
		b.WriteString(" in " + country)
	}
	return b.String()
}

func filterProduction(rows []models.ProductionStat, mineral, country string) []models.ProductionStat {
	if mineral == AnyFilter && country == AnyFilter {
		return rows
	}
	var out []models.ProductionStat
	for _, p := range rows {
		if mineral != AnyFilter && p.Mineral != mineral {
			continue
		}
		if country != AnyFilter && p.Country != country {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Rows whose id had no name in the merge fall back to the id.
func mineralLabel(p models.ProductionStat) string {
	if p.Mineral != "" {
		return p.Mineral
	}
	return "mineral #" + strconv.Itoa(p.MineralID)
}

func countryLabel(p models.ProductionStat) string {
	if p.Country != "" {
		return p.Country
	}
	return "country #" + strconv.Itoa(p.CountryID)
}

func seriesBy(rows []models.ProductionStat, key func(models.ProductionStat) string, value func(models.ProductionStat) float64) []Series {
	sums := map[string]map[int]float64{}
	for _, p := range rows {
		k := key(p)
		if sums[k] == nil {
			sums[k] = map[int]float64{}
		}
		sums[k][p.Year] += value(p)
	}

	out := make([]Series, 0, len(sums))
	for name, byYear := range sums {
		s := Series{Name: name, Points: make([]Point, 0, len(byYear))}
		for year, v := range byYear {
			s.Points = append(s.Points, Point{Year: year, Value: v})
		}
		sort.Slice(s.Points, func(i, j int) bool { return s.Points[i].Year < s.Points[j].Year })
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func shareBy(rows []models.ProductionStat, key func(models.ProductionStat) string) []Slice {
	sums := map[string]float64{}
	for _, p := range rows {
		sums[key(p)] += p.ProductionTonnes
	}
	out := make([]Slice, 0, len(sums))
	for name, v := range sums {
		out = append(out, Slice{Name: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func yearly(rows []models.ProductionStat) []YearTotal {
	byYear := map[int]*YearTotal{}
	for _, p := range rows {
		yt, ok := byYear[p.Year]
		if !ok {
			yt = &YearTotal{Year: p.Year}
			byYear[p.Year] = yt
		}
		yt.ProductionTonnes += p.ProductionTonnes
		yt.ExportValueBillionUSD += p.ExportValueBillionUSD
	}
	out := make([]YearTotal, 0, len(byYear))
	for _, yt := range byYear {
		out = append(out, *yt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

type Marker struct {
	Site             string  `json:"site"`
	Mineral          string  `json:"mineral"`
	Country          string  `json:"country"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	ProductionTonnes int64   `json:"production_tonnes"`
	Popup            string  `json:"popup"`
}

// Bounds is the south-west and north-east corner of a set of markers.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

type MapView struct {
	Mineral        string     `json:"mineral"`
	Markers        []Marker   `json:"markers"`
	Skipped        int        `json:"skipped"`
	Bounds         *Bounds    `json:"bounds,omitempty"`
	Center         [2]float64 `json:"center"`
	Zoom           int        `json:"zoom"`
	MineralOptions []string   `json:"mineral_options"`
}

// Default view when there is nothing to fit.
var (
	defaultCenter = [2]float64{0, 20}
	defaultZoom   = 3
	previewZoom   = 9
)

// NormalizeCoordinates swaps latitude and longitude when they look
// transposed and reports whether the result is a valid position.
func NormalizeCoordinates(lat, lon float64) (float64, float64, bool) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return lat, lon, false
	}
	if (math.Abs(lat) > 90 && math.Abs(lon) <= 90) ||
		math.Abs(lon) > 180 ||
		(math.Abs(lat) > 180 && math.Abs(lon) <= 180) {
		lat, lon = lon, lat
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return lat, lon, false
	}
	return lat, lon, true
}

// Map builds site markers, optionally for one mineral. Sites with invalid
// coordinates are skipped and counted.
func (s *Store) Map(mineral string) MapView {
	if isAny(mineral) {
		mineral = AnyFilter
	}
	view := MapView{
		Mineral:        mineral,
		Center:         defaultCenter,
		Zoom:           defaultZoom,
		MineralOptions: s.MineralNames(),
	}

	for _, site := range s.Sites() {
		if mineral != AnyFilter && site.Mineral != mineral {
			continue
		}
		lat, lon, ok := NormalizeCoordinates(site.Latitude, site.Longitude)
		if !ok {
			view.Skipped++
			continue
		}
		view.Markers = append(view.Markers, newMarker(site, lat, lon))
	}

	if len(view.Markers) > 0 {
		b := Bounds{South: 90, West: 180, North: -90, East: -180}
		for _, m := range view.Markers {
			b.South = math.Min(b.South, m.Latitude)
			b.North = math.Max(b.North, m.Latitude)
			b.West = math.Min(b.West, m.Longitude)
			b.East = math.Max(b.East, m.Longitude)
		}
		view.Bounds = &b
		view.Center = [2]float64{(b.South + b.North) / 2, (b.West + b.East) / 2}
	}
	return view
}

// Preview centres a single marker for the admin coordinate editor.
func Preview(siteName string, lat, lon float64) (MapView, error) {
	lat, lon, ok := NormalizeCoordinates(lat, lon)
	if !ok {
		return MapView{}, fmt.Errorf("invalid preview coordinates")
	}
	m := Marker{Site: siteName, Latitude: lat, Longitude: lon, Popup: "Preview: " + siteName}
	return MapView{
		Markers: []Marker{m},
		Center:  [2]float64{lat, lon},
		Zoom:    previewZoom,
	}, nil
}

func newMarker(site models.Site, lat, lon float64) Marker {
	name := orDefault(site.Name, "Unknown Site")
	mineral := orDefault(site.Mineral, "Unknown")
	country := orDefault(site.Country, "Unknown")
	return Marker{
		Site:             name,
		Mineral:          mineral,
		Country:          country,
		Latitude:         lat,
		Longitude:        lon,
		ProductionTonnes: site.ProductionTonnes,
		Popup:            fmt.Sprintf("%s - %s in %s (%d tonnes)", name, mineral, country, site.ProductionTonnes),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
