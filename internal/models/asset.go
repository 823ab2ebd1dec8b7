package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetCategory classifies a non-tradable item as an asset or a liability.
type AssetCategory string

const (
	AssetCategoryAsset     AssetCategory = "asset"
	AssetCategoryLiability AssetCategory = "liability"
)

// AssetLiability is a non-tradable item (real estate, vehicle, generic
// liability). There is no automated revaluation — CurrentValue is set
// externally through the revalue operation.
type AssetLiability struct {
	ID              string          `json:"id"`
	EntityID        string          `json:"entity_id"`
	Name            string          `json:"name"`
	Category        AssetCategory   `json:"category"`
	Currency        string          `json:"currency"`
	OriginalValue   decimal.Decimal `json:"original_value"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	ValuationMethod string          `json:"valuation_method,omitempty"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Loan is a liability with a principal and an externally maintained
// outstanding balance. Payment posting keeps OutstandingBalance authoritative;
// the net worth aggregator only sums it.
type Loan struct {
	ID                 string          `json:"id"`
	EntityID           string          `json:"entity_id"`
	Name               string          `json:"name"`
	Currency           string          `json:"currency"`
	Principal          decimal.Decimal `json:"principal"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	AnnualRatePct      decimal.Decimal `json:"annual_rate_pct"`
	Schedule           string          `json:"schedule,omitempty"`
	Active             bool            `json:"active"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
