package models

import "github.com/shopspring/decimal"

// Stored precision for ledger fields. Money, price, and cost fields carry 4
// fractional digits; holding quantities carry 8. Division results are rounded
// to the precision of the field being written.
const (
	MoneyPlaces    = 4
	QuantityPlaces = 8
)

// RoundMoney rounds d to the stored precision of money/price/cost fields.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// RoundQuantity rounds d to the stored precision of quantity fields.
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityPlaces)
}

// keySep separates components of composite record keys. A null byte cannot
// appear in identifiers, so "a:b"+"c" and "a"+"b:c" produce distinct keys.
const keySep = "\x00"
