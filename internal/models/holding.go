package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SecurityType categorizes a tradable security.
type SecurityType string

const (
	SecurityTypeStock  SecurityType = "stock"
	SecurityTypeETF    SecurityType = "etf"
	SecurityTypeBond   SecurityType = "bond"
	SecurityTypeFund   SecurityType = "fund"
	SecurityTypeCrypto SecurityType = "crypto"
	SecurityTypeOther  SecurityType = "other"
)

// ValidSecurityType reports whether t is a known security type.
func ValidSecurityType(t SecurityType) bool {
	switch t {
	case SecurityTypeStock, SecurityTypeETF, SecurityTypeBond, SecurityTypeFund, SecurityTypeCrypto, SecurityTypeOther:
		return true
	}
	return false
}

// Holding is an investment position owned by one entity, uniquely keyed by
// (entity, symbol, security type). Quantity is never persisted negative.
// AvgCostPrice is the quantity-weighted average acquisition price; a pure
// Sell never mutates it. MarketPrice is an external input (price feed).
//
// Market value and unrealized gain are derived — recomputed on read via the
// methods below, never stored.
type Holding struct {
	EntityID       string          `json:"entity_id"`
	Symbol         string          `json:"symbol"`
	SecurityType   SecurityType    `json:"security_type"`
	Currency       string          `json:"currency"`
	Quantity       decimal.Decimal `json:"quantity"`
	AvgCostPrice   decimal.Decimal `json:"avg_cost_price"`
	MarketPrice    decimal.Decimal `json:"market_price"`
	PriceUpdatedAt time.Time       `json:"price_updated_at,omitempty"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// HoldingKey builds the composite storage key for a holding.
func HoldingKey(entityID, symbol string, securityType SecurityType) string {
	return entityID + keySep + symbol + keySep + string(securityType)
}

// Key returns the holding's composite storage key.
func (h Holding) Key() string {
	return HoldingKey(h.EntityID, h.Symbol, h.SecurityType)
}

// CostBasis returns quantity × average cost, rounded to money precision.
func (h Holding) CostBasis() decimal.Decimal {
	return RoundMoney(h.Quantity.Mul(h.AvgCostPrice))
}

// MarketValue returns quantity × current market price, rounded to money precision.
func (h Holding) MarketValue() decimal.Decimal {
	return RoundMoney(h.Quantity.Mul(h.MarketPrice))
}

// UnrealizedGain returns market value − cost basis.
func (h Holding) UnrealizedGain() decimal.Decimal {
	return h.MarketValue().Sub(h.CostBasis())
}
