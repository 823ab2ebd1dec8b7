package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SecurityPrice is an externally supplied market price for a security.
// Prices are consumed as a lookup — never computed here.
type SecurityPrice struct {
	Symbol       string          `json:"symbol"`
	SecurityType SecurityType    `json:"security_type"`
	Price        decimal.Decimal `json:"price"`
	AsOf         time.Time       `json:"as_of"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PriceKey builds the composite storage key for a security price.
func PriceKey(symbol string, securityType SecurityType) string {
	return symbol + keySep + string(securityType)
}

// Key returns the price's composite storage key.
func (p SecurityPrice) Key() string {
	return PriceKey(p.Symbol, p.SecurityType)
}

// ExchangeRate is an externally supplied currency rate keyed by
// (from, to, date). Lookups fall back to the most recent rate at or
// before the requested date.
type ExchangeRate struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Date      time.Time       `json:"date"`
	Rate      decimal.Decimal `json:"rate"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RateKey builds the composite storage key for an exchange rate.
func RateKey(from, to string, date time.Time) string {
	return from + keySep + to + keySep + SnapshotDate(date).Format("2006-01-02")
}

// Key returns the rate's composite storage key.
func (r ExchangeRate) Key() string {
	return RateKey(r.From, r.To, r.Date)
}
