package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestHoldingDerivedValues(t *testing.T) {
	h := Holding{
		Quantity:     decimal.RequireFromString("15"),
		AvgCostPrice: decimal.RequireFromString("116.6667"),
		MarketPrice:  decimal.RequireFromString("120.50"),
	}
	if got := h.CostBasis().String(); got != "1750.0005" {
		t.Errorf("CostBasis() = %s, want 1750.0005", got)
	}
	if got := h.MarketValue().String(); got != "1807.5" {
		t.Errorf("MarketValue() = %s, want 1807.5", got)
	}
	if got := h.UnrealizedGain().String(); got != "57.4995" {
		t.Errorf("UnrealizedGain() = %s, want 57.4995", got)
	}
}

func TestHoldingDerivedValuesEmpty(t *testing.T) {
	var h Holding
	if !h.CostBasis().IsZero() || !h.MarketValue().IsZero() || !h.UnrealizedGain().IsZero() {
		t.Error("zero holding should derive zero values")
	}
}

// Composite keys must not collide when identifier fragments shift between
// components.
func TestHoldingKeyDistinct(t *testing.T) {
	a := HoldingKey("e1", "VAS", SecurityTypeStock)
	b := HoldingKey("e1", "VAS", SecurityTypeETF)
	c := HoldingKey("e2", "VAS", SecurityTypeStock)
	if a == b || a == c || b == c {
		t.Errorf("holding keys collide: %q %q %q", a, b, c)
	}
}

func TestRoundingPrecision(t *testing.T) {
	money := RoundMoney(decimal.RequireFromString("58.33335"))
	if money.String() != "58.3334" {
		t.Errorf("RoundMoney(58.33335) = %s, want 58.3334", money)
	}
	qty := RoundQuantity(decimal.RequireFromString("0.123456785"))
	if qty.String() != "0.12345679" {
		t.Errorf("RoundQuantity(0.123456785) = %s, want 0.12345679", qty)
	}
}
