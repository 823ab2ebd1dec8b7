package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionCategory drives how a posting affects a bank account balance.
type TransactionCategory string

const (
	CategoryPurchase   TransactionCategory = "purchase"
	CategorySale       TransactionCategory = "sale"
	CategoryTransfer   TransactionCategory = "transfer"
	CategoryDividend   TransactionCategory = "dividend"
	CategoryInterest   TransactionCategory = "interest"
	CategoryFee        TransactionCategory = "fee"
	CategoryDeposit    TransactionCategory = "deposit"
	CategoryWithdrawal TransactionCategory = "withdrawal"
	CategoryPayment    TransactionCategory = "payment"
	CategoryOther      TransactionCategory = "other"
)

// ValidCategory reports whether c is a known transaction category.
func ValidCategory(c TransactionCategory) bool {
	switch c {
	case CategoryPurchase, CategorySale, CategoryTransfer, CategoryDividend, CategoryInterest,
		CategoryFee, CategoryDeposit, CategoryWithdrawal, CategoryPayment, CategoryOther:
		return true
	}
	return false
}

// BalanceDirection returns the sign this category applies to a referenced
// bank account balance: +1 for inflows, -1 for outflows, 0 for categories
// that do not move cash directly.
func (c TransactionCategory) BalanceDirection() int {
	switch c {
	case CategoryDeposit, CategoryInterest, CategoryDividend:
		return 1
	case CategoryWithdrawal, CategoryFee, CategoryPayment:
		return -1
	}
	return 0
}

// TransactionType is the accounting classification of a transaction.
type TransactionType string

const (
	TypeIncome     TransactionType = "income"
	TypeExpense    TransactionType = "expense"
	TypeInvestment TransactionType = "investment"
	TypeLoan       TransactionType = "loan"
	TypeTransfer   TransactionType = "transfer"
	TypeTax        TransactionType = "tax"
	TypeOther      TransactionType = "other"
)

// ValidType reports whether t is a known transaction type.
func ValidType(t TransactionType) bool {
	switch t {
	case TypeIncome, TypeExpense, TypeInvestment, TypeLoan, TypeTransfer, TypeTax, TypeOther:
		return true
	}
	return false
}

// CorporateAction is an event that changes a holding's quantity and/or cost basis.
type CorporateAction string

const (
	ActionBuy      CorporateAction = "buy"
	ActionSell     CorporateAction = "sell"
	ActionSplit    CorporateAction = "split"
	ActionBonus    CorporateAction = "bonus"
	ActionDividend CorporateAction = "dividend"
	ActionRights   CorporateAction = "rights"
	ActionMerger   CorporateAction = "merger"
	ActionSpinoff  CorporateAction = "spinoff"
	ActionOther    CorporateAction = "other"
)

// ValidCorporateAction reports whether a is a known corporate action.
func ValidCorporateAction(a CorporateAction) bool {
	switch a {
	case ActionBuy, ActionSell, ActionSplit, ActionBonus, ActionDividend,
		ActionRights, ActionMerger, ActionSpinoff, ActionOther:
		return true
	}
	return false
}

// Transaction is an immutable ledger entry. Once posted, its financial fields
// are never edited — corrections are new offsetting transactions referencing
// the original via ReversalOf.
type Transaction struct {
	ID             string              `json:"id"`
	Date           time.Time           `json:"date"`
	EntityID       string              `json:"entity_id"`
	CounterpartyID string              `json:"counterparty_id,omitempty"`
	AccountID      string              `json:"account_id,omitempty"`
	Category       TransactionCategory `json:"category"`
	Type           TransactionType     `json:"type"`
	Currency       string              `json:"currency"`
	Amount         decimal.Decimal     `json:"amount"`
	ExchangeRate   decimal.Decimal     `json:"exchange_rate"`
	TaxAmount      decimal.Decimal     `json:"tax_amount"`
	Description    string              `json:"description,omitempty"`
	ReversalOf     string              `json:"reversal_of,omitempty"`
	Asset          *AssetTransaction   `json:"asset,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// BaseAmount returns the transaction amount converted to the base currency
// via the stored exchange rate, rounded to money precision. Derived on read.
func (t Transaction) BaseAmount() decimal.Decimal {
	rate := t.ExchangeRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	return RoundMoney(t.Amount.Mul(rate))
}

// NetAmount returns the base-currency amount less tax. Derived on read.
func (t Transaction) NetAmount() decimal.Decimal {
	return RoundMoney(t.BaseAmount().Sub(t.TaxAmount))
}

// AssetTransaction links a transaction to a holding for investment-specific
// fields. RealizedGainLoss is filled by the corporate action processor when
// the transaction is posted.
type AssetTransaction struct {
	Action           CorporateAction `json:"action"`
	Symbol           string          `json:"symbol"`
	SecurityType     SecurityType    `json:"security_type"`
	Quantity         decimal.Decimal `json:"quantity"`
	PricePerUnit     decimal.Decimal `json:"price_per_unit"`
	Fees             decimal.Decimal `json:"fees"`
	RealizedGainLoss decimal.Decimal `json:"realized_gain_loss"`
}
