// Package report renders exportable data reports. Only CSV is produced;
// page-layout formats are left to downstream tooling.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/fedutinova/minedash/internal/models"
)

type Kind string

const (
	KindMinerals  Kind = "minerals"
	KindCountries Kind = "countries"
)

const ContentType = "text/csv; charset=utf-8"

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindMinerals, KindCountries:
		return Kind(s), true
	}
	return "", false
}

// Filename is the attachment name offered to the browser.
func (k Kind) Filename() string {
	return string(k) + ".csv"
}

// Source is the data a report is rendered from.
type Source interface {
	Minerals(query string) []models.Mineral
	Countries(query string) []models.Country
}

// Render produces the report of kind k over the rows of src matching query.
func Render(k Kind, src Source, query string) ([]byte, error) {
	switch k {
	case KindMinerals:
		return Minerals(src.Minerals(query))
	case KindCountries:
		return Countries(src.Countries(query))
	}
	return nil, fmt.Errorf("unknown report %q", k)
}

func Minerals(minerals []models.Mineral) ([]byte, error) {
	rows := make([][]string, 0, len(minerals))
	for _, m := range minerals {
		rows = append(rows, []string{m.Name, m.Description, formatFloat(m.MarketPriceUSDPerTonne)})
	}
	return render([]string{"Mineral", "Description", "MarketPriceUSD_per_tonne"}, rows)
}

func Countries(countries []models.Country) ([]byte, error) {
	rows := make([][]string, 0, len(countries))
	for _, c := range countries {
		rows = append(rows, []string{
			c.Name,
			formatFloat(c.GDPBillionUSD),
			formatFloat(c.MiningRevenueBillionUSD),
			c.KeyProjects,
		})
	}
	return render([]string{"Country", "GDP_BillionUSD", "MiningRevenue_BillionUSD", "KeyProjects"}, rows)
}

func render(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write report header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write report rows: %w", err)
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
