/*
engine.go - FIFO consumption algorithm and guarded lot mutations

PURPOSE:
  The Engine is the single write path for lots and the consumption ledger.
  It consumes lots oldest-first, records an immutable ledger entry per draw,
  and guards edits and deletes against already-recorded consumption.

THE FIFO DRAW LOOP:
  1. Fetch open lots for the good, ordered acquired_at ASC, id ASC
  2. For each lot: draw = min(lot remaining, still needed)
  3. Decrement the lot, append a ledger entry freezing the current unit cost
  4. Stop early once the request is satisfied

  Everything happens inside one store transaction. A partial fill is a
  normal committed outcome (shortfall reported, not raised); a storage
  failure rolls the whole call back.

NUMERIC SEMANTICS:
  All arithmetic on the draw path uses decimal.Decimal. No floating-point
  conversion anywhere: repeated partial draws would otherwise accumulate
  rounding error across years of lots.

MUTATION GUARD:
  EditLot and DeleteLot re-validate inside the transaction even when the
  caller already consulted CanEditQuantity/CanDelete. The predicates are
  advisory; the transactional re-check is authoritative.

SEE ALSO:
  - guard.go: The advisory predicates and rejection reasons
  - summary.go: Read-only aggregates (remaining, valuation)
  - store.go: Persistence contract
*/
package inventory

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine implements the lot consumption operations on top of a TxStore.
// It holds no lot state of its own: every call re-reads current state, so
// no decision is ever made on a stale remaining quantity.
type Engine struct {
	store TxStore
	now   func() time.Time
}

// NewEngine creates an engine backed by the given store.
func NewEngine(store TxStore) *Engine {
	return &Engine{store: store, now: time.Now}
}

// =============================================================================
// RECORD - Create a new lot
// =============================================================================

// RecordLot records a purchase as a new lot. The lot starts untouched:
// remaining quantity equals original quantity.
func (e *Engine) RecordLot(ctx context.Context, goodID GoodID, quantity, unitCost decimal.Decimal, acquiredAt time.Time) (Lot, error) {
	if goodID == "" {
		return Lot{}, &InvalidRequestError{Field: "good_id", Message: "must not be empty"}
	}
	if !quantity.IsPositive() {
		return Lot{}, &InvalidRequestError{Field: "quantity", Message: "must be positive"}
	}
	if unitCost.IsNegative() {
		return Lot{}, &InvalidRequestError{Field: "unit_cost", Message: "must not be negative"}
	}
	if acquiredAt.IsZero() {
		return Lot{}, &InvalidRequestError{Field: "acquired_at", Message: "must be set"}
	}

	lot := Lot{
		ID:                LotID(newID("lot")),
		GoodID:            goodID,
		AcquiredAt:        acquiredAt,
		OriginalQuantity:  quantity,
		UnitCost:          unitCost,
		RemainingQuantity: quantity,
		CreatedAt:         e.now().UTC(),
	}

	if err := e.store.InsertLot(ctx, lot); err != nil {
		return Lot{}, &TransactionError{Op: "record lot", Cause: err}
	}
	return lot, nil
}

// =============================================================================
// CONSUME - The FIFO draw loop
// =============================================================================

// Consume draws the requested quantity of a good from its lots, oldest
// first, recording one ledger entry per lot touched.
//
// A good with no open lots is a valid zero-lot case: the call succeeds with
// Consumed = 0 and Shortfall = requested. Shortfall is never an error.
func (e *Engine) Consume(ctx context.Context, goodID GoodID, requested decimal.Decimal, contextRef string) (ConsumptionResult, error) {
	if goodID == "" {
		return ConsumptionResult{}, &InvalidRequestError{Field: "good_id", Message: "must not be empty"}
	}
	if !requested.IsPositive() {
		return ConsumptionResult{}, &InvalidRequestError{Field: "quantity", Message: "must be positive"}
	}

	var result ConsumptionResult
	err := e.inTx(ctx, "consume", func(s Store) error {
		lots, err := s.OpenLots(ctx, goodID)
		if err != nil {
			return err
		}

		drawnAt := e.now().UTC()
		remainingNeeded := requested
		breakdown := make([]LotDraw, 0, len(lots))

		for _, lot := range lots {
			if remainingNeeded.IsZero() {
				break
			}
			draw := decimal.Min(lot.RemainingQuantity, remainingNeeded)
			if !draw.IsPositive() {
				continue
			}

			lot.RemainingQuantity = lot.RemainingQuantity.Sub(draw)
			if err := s.UpdateLot(ctx, lot); err != nil {
				return err
			}

			entry := ConsumptionEntry{
				ID:               EntryID(newID("draw")),
				LotID:            lot.ID,
				QuantityDrawn:    draw,
				UnitCostAtDraw:   lot.UnitCost,
				DrawnAt:          drawnAt,
				ContextReference: contextRef,
			}
			if err := s.AppendEntry(ctx, entry); err != nil {
				return err
			}

			remainingNeeded = remainingNeeded.Sub(draw)
			breakdown = append(breakdown, LotDraw{
				LotID:      lot.ID,
				Quantity:   draw,
				AcquiredAt: lot.AcquiredAt,
			})
		}

		result = ConsumptionResult{
			Requested: requested,
			Consumed:  requested.Sub(remainingNeeded),
			Shortfall: remainingNeeded,
			Breakdown: breakdown,
		}
		return nil
	})
	if err != nil {
		return ConsumptionResult{}, err
	}
	return result, nil
}

// =============================================================================
// EDIT - Guarded quantity/cost update
// =============================================================================

// EditLot applies a partial update to a lot. A quantity edit is allowed only
// if the proposed quantity covers what has already been consumed; the lot's
// remaining quantity becomes proposed minus consumed. A cost edit touches
// only the stored unit cost: entries already recorded keep the cost basis
// frozen at draw time.
//
// A compound edit is rejected as a single unit if either part fails.
func (e *Engine) EditLot(ctx context.Context, id LotID, edit LotEdit) (Lot, error) {
	if edit.Empty() {
		return Lot{}, &InvalidRequestError{Field: "edit", Message: "must change at least one field"}
	}
	if edit.Quantity != nil && !edit.Quantity.IsPositive() {
		return Lot{}, &InvalidRequestError{Field: "quantity", Message: "must be positive"}
	}
	if edit.UnitCost != nil && edit.UnitCost.IsNegative() {
		return Lot{}, &InvalidRequestError{Field: "unit_cost", Message: "must not be negative"}
	}

	var updated Lot
	err := e.inTx(ctx, "edit lot", func(s Store) error {
		lot, err := s.GetLot(ctx, id)
		if err != nil {
			return err
		}

		// Re-check the guard inside the transaction. The advisory
		// predicate may have been skipped, or state may have moved.
		if edit.Quantity != nil {
			if blocked := quantityEditBlocked(lot, *edit.Quantity); blocked != nil {
				return blocked
			}
			consumed := lot.Consumed()
			lot.OriginalQuantity = *edit.Quantity
			lot.RemainingQuantity = edit.Quantity.Sub(consumed)
		}
		if edit.UnitCost != nil {
			lot.UnitCost = *edit.UnitCost
		}

		if err := s.UpdateLot(ctx, lot); err != nil {
			return err
		}
		updated = lot
		return nil
	})
	if err != nil {
		return Lot{}, err
	}
	return updated, nil
}

// RepriceLot updates a lot's declared unit price. Only the stored unit cost
// changes; no existing consumption entry is touched, so historical reports
// remain accurate under repricing.
func (e *Engine) RepriceLot(ctx context.Context, id LotID, newUnitCost decimal.Decimal) (Lot, error) {
	return e.EditLot(ctx, id, LotEdit{UnitCost: &newUnitCost})
}

// =============================================================================
// DELETE - Guarded removal
// =============================================================================

// DeleteLot removes a lot. Allowed only when the lot is untouched: no
// consumption entry references it. The check runs inside the delete
// transaction regardless of whether the caller consulted CanDelete first.
func (e *Engine) DeleteLot(ctx context.Context, id LotID) error {
	return e.inTx(ctx, "delete lot", func(s Store) error {
		lot, err := s.GetLot(ctx, id)
		if err != nil {
			return err
		}
		entries, err := s.EntriesByLot(ctx, id)
		if err != nil {
			return err
		}
		if blocked := deleteBlocked(lot, entries); blocked != nil {
			return blocked
		}
		return s.DeleteLot(ctx, id)
	})
}

// =============================================================================
// READS
// =============================================================================

// GetLot returns a single lot, or ErrNotFound.
func (e *Engine) GetLot(ctx context.Context, id LotID) (Lot, error) {
	return e.store.GetLot(ctx, id)
}

// Lots returns every lot for a good, oldest first, including drained ones.
func (e *Engine) Lots(ctx context.Context, goodID GoodID) ([]Lot, error) {
	return e.store.LotsByGood(ctx, goodID)
}

// History returns a lot's consumption entries, ascending by draw time.
// Read-only; the only failure mode is an unknown lot.
func (e *Engine) History(ctx context.Context, id LotID) ([]ConsumptionEntry, error) {
	if _, err := e.store.GetLot(ctx, id); err != nil {
		return nil, err
	}
	return e.store.EntriesByLot(ctx, id)
}

// =============================================================================
// INTERNAL
// =============================================================================

// inTx runs fn inside a store transaction and classifies the failure:
// guarded rejections and missing lots pass through untouched, anything else
// is a storage failure that rolled the whole operation back.
func (e *Engine) inTx(ctx context.Context, op string, fn func(Store) error) error {
	err := e.store.WithTx(ctx, fn)
	if err == nil {
		return nil
	}
	if IsClientError(err) || IsNotFound(err) {
		return err
	}
	return &TransactionError{Op: op, Cause: err}
}

var idSeq atomic.Uint64

// newID returns a process-unique identifier that sorts in creation order,
// which is what breaks FIFO ties between lots acquired on the same date.
func newID(prefix string) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, time.Now().UnixNano(), idSeq.Add(1))
}
