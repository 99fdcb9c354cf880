package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Username     string `json:"username" db:"username"`
	PasswordHash string `json:"-" db:"password_hash"`
	RoleID       int    `json:"role_id" db:"role_id"`
}

// Role is a raw catalog row. Permissions is free text; capabilities are
// derived from it by the access package.
type Role struct {
	ID          int    `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Permissions string `json:"permissions" db:"permissions"`
}

type Mineral struct {
	ID                     int     `json:"id"`
	Name                   string  `json:"name"`
	Description            string  `json:"description"`
	MarketPriceUSDPerTonne float64 `json:"market_price_usd_per_tonne"`
}

type Country struct {
	ID                      int     `json:"id"`
	Name                    string  `json:"name"`
	GDPBillionUSD           float64 `json:"gdp_billion_usd"`
	MiningRevenueBillionUSD float64 `json:"mining_revenue_billion_usd"`
	KeyProjects             string  `json:"key_projects"`
}

// ProductionStat is one row of production_stats.csv with mineral and country
// names merged in by id. Names stay empty when the id has no match.
type ProductionStat struct {
	MineralID             int     `json:"mineral_id"`
	CountryID             int     `json:"country_id"`
	Year                  int     `json:"year"`
	ProductionTonnes      float64 `json:"production_tonnes"`
	ExportValueBillionUSD float64 `json:"export_value_billion_usd"`
	Mineral               string  `json:"mineral,omitempty"`
	Country               string  `json:"country,omitempty"`
}

type Site struct {
	Name             string  `json:"name"`
	MineralID        int     `json:"mineral_id,omitempty"`
	CountryID        int     `json:"country_id,omitempty"`
	Mineral          string  `json:"mineral"`
	Country          string  `json:"country"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	ProductionTonnes int64   `json:"production_tonnes"`
}

type InsightKind string

const (
	InsightMineral InsightKind = "mineral"
	InsightCountry InsightKind = "country"
)

type Insight struct {
	ID        uuid.UUID   `json:"id"`
	Username  string      `json:"username"`
	Text      string      `json:"text"`
	Kind      InsightKind `json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
}
