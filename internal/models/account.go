package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankAccount is a cash position owned by exactly one entity.
// CurrentBalance is maintained incrementally by the transaction poster:
// it always equals OpeningBalance plus the signed sum of all posted
// transactions referencing this account. It is never recomputed on read.
type BankAccount struct {
	ID             string          `json:"id"`
	EntityID       string          `json:"entity_id"`
	Name           string          `json:"name"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
