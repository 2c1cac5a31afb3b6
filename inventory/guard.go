/*
guard.go - Lot mutation guard

PURPOSE:
  Decides whether an already-recorded lot may have its quantity edited or
  be deleted outright, based on how much has already been consumed from it.
  Both predicates are computed from recorded state, never from UI state.

ADVISORY + AUTHORITATIVE:
  CanEditQuantity and CanDelete are read-only predicates for callers that
  want to disable a button or pre-validate a form. The same checks run again
  inside the mutating transaction (engine.go), so skipping the predicate
  never bypasses the guard.

SEE ALSO:
  - engine.go: EditLot/DeleteLot re-check via quantityEditBlocked/deleteBlocked
*/
package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ADVISORY PREDICATES
// =============================================================================

// CanEditQuantity reports whether a lot's quantity may be changed to
// proposed. Allowed iff proposed covers what has already been consumed.
// On rejection the reason states the consumed amount.
func (e *Engine) CanEditQuantity(ctx context.Context, id LotID, proposed decimal.Decimal) (bool, string, error) {
	lot, err := e.store.GetLot(ctx, id)
	if err != nil {
		return false, "", err
	}
	if blocked := quantityEditBlocked(lot, proposed); blocked != nil {
		return false, blocked.Reason, nil
	}
	return true, "", nil
}

// CanDelete reports whether a lot may be deleted. Allowed iff no
// consumption entry references it. On rejection the reason enumerates the
// consuming contexts so the caller can present an actionable message.
func (e *Engine) CanDelete(ctx context.Context, id LotID) (bool, string, error) {
	lot, err := e.store.GetLot(ctx, id)
	if err != nil {
		return false, "", err
	}
	entries, err := e.store.EntriesByLot(ctx, id)
	if err != nil {
		return false, "", err
	}
	if blocked := deleteBlocked(lot, entries); blocked != nil {
		return false, blocked.Reason, nil
	}
	return true, "", nil
}

// =============================================================================
// GUARD CHECKS - Shared between predicates and the mutating transactions
// =============================================================================

func quantityEditBlocked(lot Lot, proposed decimal.Decimal) *MutationBlockedError {
	consumed := lot.Consumed()
	if proposed.GreaterThanOrEqual(consumed) {
		return nil
	}
	return &MutationBlockedError{
		LotID:    lot.ID,
		Consumed: consumed,
		Reason: fmt.Sprintf(
			"lot %s has %s already consumed; its quantity cannot be reduced below that (proposed %s)",
			lot.ID, consumed, proposed),
	}
}

func deleteBlocked(lot Lot, entries []ConsumptionEntry) *MutationBlockedError {
	if len(entries) == 0 {
		return nil
	}
	contexts := distinctContexts(entries)
	reason := fmt.Sprintf("lot %s has %d recorded draw(s)", lot.ID, len(entries))
	if len(contexts) > 0 {
		reason += fmt.Sprintf(" for: %s", strings.Join(contexts, ", "))
	}
	reason += "; it cannot be deleted"
	return &MutationBlockedError{
		LotID:      lot.ID,
		Consumed:   lot.Consumed(),
		EntryCount: len(entries),
		Contexts:   contexts,
		Reason:     reason,
	}
}

func distinctContexts(entries []ConsumptionEntry) []string {
	seen := make(map[string]bool, len(entries))
	var contexts []string
	for _, entry := range entries {
		if entry.ContextReference == "" || seen[entry.ContextReference] {
			continue
		}
		seen[entry.ContextReference] = true
		contexts = append(contexts, entry.ContextReference)
	}
	return contexts
}
