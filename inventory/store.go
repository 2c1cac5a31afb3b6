/*
store.go - Persistence interface for lots and the consumption ledger

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:   Lot CRUD plus ledger append/query
  TxStore: Transactional operations (atomic multi-table writes)

ORDERING CONTRACT:
  OpenLots returns lots with remaining quantity > 0, ordered by acquired_at
  ascending, ties broken by lot id ascending. This ordering is load-bearing:
  it is what makes FIFO consumption deterministic and reproducible.

LEDGER CONTRACT:
  The consumption ledger is APPEND-ONLY. AppendEntry is the only write;
  there is no update or delete for entries. Corrections to lots never touch
  recorded entries.

ATOMICITY:
  Every multi-write operation (consume, edit, delete) runs inside WithTx.
  If the function returns an error, all writes roll back; no partial draws
  survive a failure.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - inventory/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: The only consumer of these interfaces
*/
package inventory

import "context"

// =============================================================================
// STORE - Lot persistence and append-only ledger
// =============================================================================

// Store handles persistence of lots and consumption entries.
// Implementations return ErrNotFound (wrapped) when a lot id does not exist.
type Store interface {
	// InsertLot persists a new lot.
	InsertLot(ctx context.Context, lot Lot) error

	// GetLot returns a lot by id, or ErrNotFound.
	GetLot(ctx context.Context, id LotID) (Lot, error)

	// LotsByGood returns every lot for a good, including drained ones,
	// ordered by acquired_at ascending, then id ascending.
	LotsByGood(ctx context.Context, goodID GoodID) ([]Lot, error)

	// OpenLots returns lots for a good with remaining quantity > 0,
	// ordered by acquired_at ascending, then id ascending.
	// This is the FIFO candidate query.
	OpenLots(ctx context.Context, goodID GoodID) ([]Lot, error)

	// UpdateLot overwrites a lot's mutable fields. ErrNotFound if missing.
	UpdateLot(ctx context.Context, lot Lot) error

	// DeleteLot removes a lot. ErrNotFound if missing.
	// The engine only calls this after the mutation guard has verified
	// the lot is untouched.
	DeleteLot(ctx context.Context, id LotID) error

	// AppendEntry persists a consumption entry. Append-only: this is the
	// ONLY ledger write operation.
	AppendEntry(ctx context.Context, entry ConsumptionEntry) error

	// EntriesByLot returns a lot's consumption entries, ordered by
	// drawn_at ascending, then id ascending.
	EntriesByLot(ctx context.Context, id LotID) ([]ConsumptionEntry, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
//
// WithTx must serialize writers: two concurrent consume calls against the
// same good must not interleave their reads of remaining lots with their
// decrements, or the same quantity gets spent twice.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
