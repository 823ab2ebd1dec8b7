package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Calculation methods recorded on a snapshot.
const (
	CalcMethodMarketValue = "market_value"
	CalcMethodCostBasis   = "cost_basis"
)

// NetWorthSnapshot is a dated aggregation of an entity's financial position,
// unique per (entity, calculation date). Recomputing an already-snapshotted
// date overwrites the row in place — never appends a duplicate.
type NetWorthSnapshot struct {
	EntityID          string          `json:"entity_id"`
	CalculationDate   time.Time       `json:"calculation_date"`
	TotalAssets       decimal.Decimal `json:"total_assets"`
	TotalLiabilities  decimal.Decimal `json:"total_liabilities"`
	CalculationMethod string          `json:"calculation_method"`
	IncludeUnrealized bool            `json:"include_unrealized"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// SnapshotDate normalizes t to a UTC calendar date for snapshot keying.
func SnapshotDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SnapshotKey builds the composite storage key for a snapshot.
func SnapshotKey(entityID string, date time.Time) string {
	return entityID + keySep + SnapshotDate(date).Format("2006-01-02")
}

// Key returns the snapshot's composite storage key.
func (s NetWorthSnapshot) Key() string {
	return SnapshotKey(s.EntityID, s.CalculationDate)
}

// NetWorth returns total assets − total liabilities. Derived on read.
func (s NetWorthSnapshot) NetWorth() decimal.Decimal {
	return s.TotalAssets.Sub(s.TotalLiabilities)
}
