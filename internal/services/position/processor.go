// Package position maintains investment holding state: the corporate action
// processor that mutates quantity and cost basis, and the read/reprocess
// surface over holdings.
package position

import (
	"github.com/shopspring/decimal"

	"github.com/corvusfin/corvus/internal/models"
)

// Apply computes the next holding state for a corporate action. It is a pure
// function: no storage access, decimal arithmetic only. Results are rounded
// to stored precision (8 places for quantity, 4 for cost and gain).
//
// Dividend, rights, merger, spinoff, and other pass through unchanged —
// they are recorded as transactions but do not move quantity or cost basis.
func Apply(currentQty, currentAvgCost decimal.Decimal, action models.CorporateAction, actionQty, actionPrice decimal.Decimal) (newQty, newAvgCost, realized decimal.Decimal, err error) {
	zero := decimal.Zero

	switch action {
	case models.ActionBuy:
		if actionQty.LessThanOrEqual(zero) {
			return zero, zero, zero, models.NewValidationError("buy quantity must be positive, got %s", actionQty)
		}
		if actionPrice.IsNegative() {
			return zero, zero, zero, models.NewValidationError("buy price must not be negative, got %s", actionPrice)
		}
		newQty = models.RoundQuantity(currentQty.Add(actionQty))
		// Quantities are validated positive and holdings are never persisted
		// negative, so a buy always lands above zero; anything else means the
		// inputs were bad and the average cost would be undefined.
		if newQty.LessThanOrEqual(zero) {
			return zero, zero, zero, models.NewValidationError("buy would leave non-positive quantity %s", newQty)
		}
		totalCost := currentQty.Mul(currentAvgCost).Add(actionQty.Mul(actionPrice))
		newAvgCost = models.RoundMoney(totalCost.Div(newQty))
		return newQty, newAvgCost, zero, nil

	case models.ActionSell:
		if actionQty.LessThanOrEqual(zero) {
			return zero, zero, zero, models.NewValidationError("sell quantity must be positive, got %s", actionQty)
		}
		if actionPrice.IsNegative() {
			return zero, zero, zero, models.NewValidationError("sell price must not be negative, got %s", actionPrice)
		}
		if actionQty.GreaterThan(currentQty) {
			return zero, zero, zero, models.NewValidationError("cannot sell %s units, only %s held", actionQty, currentQty)
		}
		newQty = models.RoundQuantity(currentQty.Sub(actionQty))
		// Average cost is untouched by a pure disposal.
		realized = models.RoundMoney(actionQty.Mul(actionPrice.Sub(currentAvgCost)))
		return newQty, currentAvgCost, realized, nil

	case models.ActionSplit:
		// actionQty carries the split ratio (e.g. 2 for a 2-for-1).
		if actionQty.LessThanOrEqual(zero) {
			return zero, zero, zero, models.NewValidationError("split ratio must be positive, got %s", actionQty)
		}
		newQty = models.RoundQuantity(currentQty.Mul(actionQty))
		newAvgCost = models.RoundMoney(currentAvgCost.Div(actionQty))
		return newQty, newAvgCost, zero, nil

	case models.ActionBonus:
		if actionQty.LessThanOrEqual(zero) {
			return zero, zero, zero, models.NewValidationError("bonus quantity must be positive, got %s", actionQty)
		}
		newQty = models.RoundQuantity(currentQty.Add(actionQty))
		// Bonus shares contribute zero cost: basis is spread over the
		// enlarged position.
		newAvgCost = models.RoundMoney(currentQty.Mul(currentAvgCost).Div(newQty))
		return newQty, newAvgCost, zero, nil

	case models.ActionDividend, models.ActionRights, models.ActionMerger, models.ActionSpinoff, models.ActionOther:
		return currentQty, currentAvgCost, zero, nil

	default:
		return zero, zero, zero, models.NewValidationError("unknown corporate action '%s'", action)
	}
}
