/*
Package inventory provides the lot consumption engine.

PURPOSE:
  This package tracks discrete purchased quantities of a good ("lots") and
  consumes them in strict chronological order as the good is used. Per-lot
  and aggregate cost figures stay consistent as lots are partially consumed,
  edited, or deleted.

KEY CONCEPTS IN THIS FILE (types.go):
  - Lot: A purchased quantity with its own remaining balance and unit cost
  - ConsumptionEntry: An immutable ledger record of one draw from a lot
  - ConsumptionResult: Outcome of a consume call (consumed, shortfall, breakdown)
  - LotEdit: Tagged optional-field payload for partial lot updates

DESIGN PRINCIPLES:
  1. Immutability: Consumption entries are never modified or deleted
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing lot/good identifiers
  4. Auditability: Every draw freezes the unit cost it was taken at

USAGE:
  engine := inventory.NewEngine(store)
  lot, err := engine.RecordLot(ctx, "flour", qty, cost, acquiredAt)
  result, err := engine.Consume(ctx, "flour", inventory.MustDecimal("12"), "order-42")

SEE ALSO:
  - engine.go: FIFO consumption algorithm and mutation operations
  - guard.go: Edit/delete predicates computed from the ledger
  - store.go: Persistence interface
*/
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LotID string
type GoodID string
type EntryID string

// =============================================================================
// LOT - One purchased quantity of a good
// =============================================================================

// Lot is one purchased quantity of a good.
//
// INVARIANT: 0 <= RemainingQuantity <= OriginalQuantity at all times.
// OriginalQuantity is immutable after creation except through a guarded
// quantity edit; RemainingQuantity changes only via consumption (decrement)
// or a guarded edit.
type Lot struct {
	ID                LotID
	GoodID            GoodID
	AcquiredAt        time.Time
	OriginalQuantity  decimal.Decimal
	UnitCost          decimal.Decimal
	RemainingQuantity decimal.Decimal
	CreatedAt         time.Time
}

// Consumed returns how much has been drawn from the lot so far.
// Always equals the sum of QuantityDrawn across the lot's ledger entries.
func (l Lot) Consumed() decimal.Decimal {
	return l.OriginalQuantity.Sub(l.RemainingQuantity)
}

// Untouched reports whether nothing has been drawn from the lot.
func (l Lot) Untouched() bool {
	return l.RemainingQuantity.Equal(l.OriginalQuantity)
}

// Drained reports whether the lot has no remaining quantity.
func (l Lot) Drained() bool {
	return !l.RemainingQuantity.IsPositive()
}

// =============================================================================
// CONSUMPTION ENTRY - Immutable ledger record of one draw
// =============================================================================

// ConsumptionEntry records one draw from a lot. Entries are append-only:
// written in the same transaction as the lot decrement, never mutated or
// deleted afterwards. UnitCostAtDraw is captured at the moment of the draw,
// which is what keeps historical cost reporting stable under later repricing.
type ConsumptionEntry struct {
	ID               EntryID
	LotID            LotID
	QuantityDrawn    decimal.Decimal
	UnitCostAtDraw   decimal.Decimal
	DrawnAt          time.Time
	ContextReference string
}

// =============================================================================
// CONSUMPTION RESULT - Outcome of a consume call
// =============================================================================

// LotDraw is one element of a consumption breakdown.
type LotDraw struct {
	LotID      LotID
	Quantity   decimal.Decimal
	AcquiredAt time.Time
}

// ConsumptionResult reports the outcome of a consume call.
// A non-zero Shortfall is NOT an error: it means the request could only be
// partially satisfied, and the partial consumption still committed.
type ConsumptionResult struct {
	Requested decimal.Decimal
	Consumed  decimal.Decimal
	Shortfall decimal.Decimal
	Breakdown []LotDraw
}

// FullySatisfied reports whether the whole requested quantity was drawn.
func (r ConsumptionResult) FullySatisfied() bool {
	return r.Shortfall.IsZero()
}

// =============================================================================
// LOT EDIT - Tagged optional-field partial update
// =============================================================================

// LotEdit describes a partial update to a lot. Nil fields are untouched.
// A compound edit (both fields set) applies atomically or not at all.
type LotEdit struct {
	Quantity *decimal.Decimal
	UnitCost *decimal.Decimal
}

// Empty reports whether the edit changes nothing.
func (e LotEdit) Empty() bool {
	return e.Quantity == nil && e.UnitCost == nil
}

// =============================================================================
// GOOD SUMMARY - Aggregate view across a good's lots
// =============================================================================

// GoodSummary aggregates lot state for one good.
// TotalValue is the sum of remaining quantity times unit cost per lot.
type GoodSummary struct {
	GoodID         GoodID
	LotCount       int
	OpenLotCount   int
	TotalRemaining decimal.Decimal
	TotalValue     decimal.Decimal
}

// =============================================================================
// HELPERS
// =============================================================================

// MustDecimal parses s as a decimal, returning zero on parse failure.
// Intended for literals in tests and seed data.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
