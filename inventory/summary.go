/*
summary.go - Read-only aggregates across a good's lots

PURPOSE:
  Availability and valuation queries for display and reporting. These are
  derived values computed from current lot state on every call; nothing is
  cached, so two reads without an intervening write always agree.
*/
package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// Remaining returns the sum of remaining quantity across all lots of a
// good. A good with no lots has zero remaining.
func (e *Engine) Remaining(ctx context.Context, goodID GoodID) (decimal.Decimal, error) {
	if goodID == "" {
		return decimal.Zero, &InvalidRequestError{Field: "good_id", Message: "must not be empty"}
	}
	lots, err := e.store.OpenLots(ctx, goodID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, lot := range lots {
		total = total.Add(lot.RemainingQuantity)
	}
	return total, nil
}

// Summary aggregates lot state for a good: lot counts, total remaining
// quantity, and the value of unconsumed inventory at current unit costs.
func (e *Engine) Summary(ctx context.Context, goodID GoodID) (GoodSummary, error) {
	if goodID == "" {
		return GoodSummary{}, &InvalidRequestError{Field: "good_id", Message: "must not be empty"}
	}
	lots, err := e.store.LotsByGood(ctx, goodID)
	if err != nil {
		return GoodSummary{}, err
	}

	summary := GoodSummary{
		GoodID:         goodID,
		LotCount:       len(lots),
		TotalRemaining: decimal.Zero,
		TotalValue:     decimal.Zero,
	}
	for _, lot := range lots {
		if lot.Drained() {
			continue
		}
		summary.OpenLotCount++
		summary.TotalRemaining = summary.TotalRemaining.Add(lot.RemainingQuantity)
		summary.TotalValue = summary.TotalValue.Add(lot.RemainingQuantity.Mul(lot.UnitCost))
	}
	return summary, nil
}
