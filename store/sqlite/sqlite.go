/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements inventory.Store and inventory.TxStore using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  lots:                Purchased quantities with a mutable remaining balance
  consumption_entries: Append-only ledger of draws against lots

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statement exists for consumption_entries. The ledger
  is the audit trail the mutation guard consults; it only ever grows.

DECIMAL STORAGE:
  Quantities and costs are stored as TEXT in decimal string form, never as
  REAL. The open-lot filter (remaining > 0) is applied in Go after parsing,
  so no floating-point comparison ever touches the draw path.

CONCURRENCY:
  A sync.RWMutex serializes writers; WithTx holds the write lock for the
  whole database transaction, which is what keeps two concurrent consume
  calls against the same good from double-spending a lot. In production
  with PostgreSQL, row-level locks (SELECT ... FOR UPDATE) take this role.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on.

USAGE:
  store, err := sqlite.New("./data/larder.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  engine := inventory.NewEngine(store)

SEE ALSO:
  - inventory/store.go: Interface definitions
  - inventory/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/larder/lot-engine/inventory"
)

// Store implements inventory.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Lots (purchased quantities)
	CREATE TABLE IF NOT EXISTS lots (
		id TEXT PRIMARY KEY,
		good_id TEXT NOT NULL,
		acquired_at TEXT NOT NULL,
		original_quantity TEXT NOT NULL,
		unit_cost TEXT NOT NULL,
		remaining_quantity TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- FIFO candidate query (hot path): good, acquisition date, id
	CREATE INDEX IF NOT EXISTS idx_lots_good_acquired
		ON lots(good_id, acquired_at, id);

	-- Consumption entries (append-only ledger)
	CREATE TABLE IF NOT EXISTS consumption_entries (
		id TEXT PRIMARY KEY,
		lot_id TEXT NOT NULL REFERENCES lots(id),
		quantity_drawn TEXT NOT NULL,
		unit_cost_at_draw TEXT NOT NULL,
		drawn_at TEXT NOT NULL,
		context_reference TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_lot_drawn
		ON consumption_entries(lot_id, drawn_at);
	CREATE INDEX IF NOT EXISTS idx_entries_context
		ON consumption_entries(context_reference) WHERE context_reference IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// drawnAtLayout pads fractional seconds to nine digits. RFC3339Nano trims
// trailing zeros, and on a TEXT column "…12.12Z" would sort AFTER
// "…12.123456789Z" ('Z' > '3'); the fixed width keeps lexicographic order
// equal to chronological order, which ORDER BY drawn_at relies on.
const drawnAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// LOT STORE (inventory.Store interface)
// =============================================================================

// InsertLot persists a new lot.
func (s *Store) InsertLot(ctx context.Context, lot inventory.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertLot(ctx, s.db, lot)
}

// GetLot returns a lot by id, or inventory.ErrNotFound.
func (s *Store) GetLot(ctx context.Context, id inventory.LotID) (inventory.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLot(ctx, s.db, id)
}

// LotsByGood returns every lot for a good, FIFO-ordered.
func (s *Store) LotsByGood(ctx context.Context, goodID inventory.GoodID) ([]inventory.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lotsByGood(ctx, s.db, goodID, false)
}

// OpenLots returns lots with remaining quantity > 0, FIFO-ordered.
func (s *Store) OpenLots(ctx context.Context, goodID inventory.GoodID) ([]inventory.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lotsByGood(ctx, s.db, goodID, true)
}

// UpdateLot overwrites a lot's mutable fields.
func (s *Store) UpdateLot(ctx context.Context, lot inventory.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateLot(ctx, s.db, lot)
}

// DeleteLot removes a lot.
func (s *Store) DeleteLot(ctx context.Context, id inventory.LotID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteLot(ctx, s.db, id)
}

// AppendEntry persists a consumption entry. Append-only.
func (s *Store) AppendEntry(ctx context.Context, entry inventory.ConsumptionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEntry(ctx, s.db, entry)
}

// EntriesByLot returns a lot's entries, ascending by draw time.
func (s *Store) EntriesByLot(ctx context.Context, id inventory.LotID) ([]inventory.ConsumptionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entriesByLot(ctx, s.db, id)
}

// =============================================================================
// TRANSACTIONAL STORE (inventory.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The write lock is held
// for the whole transaction: reads of remaining lots and their decrements
// cannot interleave with another writer.
func (s *Store) WithTx(ctx context.Context, fn func(inventory.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore runs store operations against an open transaction. It calls the
// lock-free helpers directly: WithTx already holds the write lock.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) InsertLot(ctx context.Context, lot inventory.Lot) error {
	return insertLot(ctx, ts.tx, lot)
}

func (ts *txStore) GetLot(ctx context.Context, id inventory.LotID) (inventory.Lot, error) {
	return getLot(ctx, ts.tx, id)
}

func (ts *txStore) LotsByGood(ctx context.Context, goodID inventory.GoodID) ([]inventory.Lot, error) {
	return lotsByGood(ctx, ts.tx, goodID, false)
}

func (ts *txStore) OpenLots(ctx context.Context, goodID inventory.GoodID) ([]inventory.Lot, error) {
	return lotsByGood(ctx, ts.tx, goodID, true)
}

func (ts *txStore) UpdateLot(ctx context.Context, lot inventory.Lot) error {
	return updateLot(ctx, ts.tx, lot)
}

func (ts *txStore) DeleteLot(ctx context.Context, id inventory.LotID) error {
	return deleteLot(ctx, ts.tx, id)
}

func (ts *txStore) AppendEntry(ctx context.Context, entry inventory.ConsumptionEntry) error {
	return appendEntry(ctx, ts.tx, entry)
}

func (ts *txStore) EntriesByLot(ctx context.Context, id inventory.LotID) ([]inventory.ConsumptionEntry, error) {
	return entriesByLot(ctx, ts.tx, id)
}

// =============================================================================
// QUERY HELPERS - Lock-free, shared between Store and txStore
// =============================================================================

func insertLot(ctx context.Context, db dbtx, lot inventory.Lot) error {
	query := `
		INSERT INTO lots
		(id, good_id, acquired_at, original_quantity, unit_cost, remaining_quantity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		lot.ID,
		lot.GoodID,
		lot.AcquiredAt.UTC().Format(time.RFC3339),
		lot.OriginalQuantity.String(),
		lot.UnitCost.String(),
		lot.RemainingQuantity.String(),
		lot.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert lot: %w", err)
	}
	return nil
}

func getLot(ctx context.Context, db dbtx, id inventory.LotID) (inventory.Lot, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, good_id, acquired_at, original_quantity, unit_cost, remaining_quantity, created_at
		FROM lots WHERE id = ?
	`, id)

	lot, err := scanLot(row)
	if err == sql.ErrNoRows {
		return inventory.Lot{}, fmt.Errorf("%w: %s", inventory.ErrNotFound, id)
	}
	if err != nil {
		return inventory.Lot{}, err
	}
	return lot, nil
}

func lotsByGood(ctx context.Context, db dbtx, goodID inventory.GoodID, openOnly bool) ([]inventory.Lot, error) {
	// Ordering is load-bearing: acquisition date, then id (insertion order).
	rows, err := db.QueryContext(ctx, `
		SELECT id, good_id, acquired_at, original_quantity, unit_cost, remaining_quantity, created_at
		FROM lots
		WHERE good_id = ?
		ORDER BY acquired_at ASC, id ASC
	`, goodID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var lots []inventory.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		// The remaining > 0 filter is decimal comparison in Go, not SQL,
		// to keep floats out of the draw path.
		if openOnly && lot.Drained() {
			continue
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func updateLot(ctx context.Context, db dbtx, lot inventory.Lot) error {
	res, err := db.ExecContext(ctx, `
		UPDATE lots
		SET original_quantity = ?, unit_cost = ?, remaining_quantity = ?
		WHERE id = ?
	`,
		lot.OriginalQuantity.String(),
		lot.UnitCost.String(),
		lot.RemainingQuantity.String(),
		lot.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lot: %w", err)
	}
	return requireRow(res, lot.ID)
}

func deleteLot(ctx context.Context, db dbtx, id inventory.LotID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM lots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete lot: %w", err)
	}
	return requireRow(res, id)
}

func appendEntry(ctx context.Context, db dbtx, entry inventory.ConsumptionEntry) error {
	query := `
		INSERT INTO consumption_entries
		(id, lot_id, quantity_drawn, unit_cost_at_draw, drawn_at, context_reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		entry.ID,
		entry.LotID,
		entry.QuantityDrawn.String(),
		entry.UnitCostAtDraw.String(),
		entry.DrawnAt.UTC().Format(drawnAtLayout),
		nullString(entry.ContextReference),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

func entriesByLot(ctx context.Context, db dbtx, id inventory.LotID) ([]inventory.ConsumptionEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, lot_id, quantity_drawn, unit_cost_at_draw, drawn_at, context_reference
		FROM consumption_entries
		WHERE lot_id = ?
		ORDER BY drawn_at ASC, id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []inventory.ConsumptionEntry
	for rows.Next() {
		var (
			entry      inventory.ConsumptionEntry
			drawn      string
			cost       string
			drawnAt    string
			contextRef sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.LotID, &drawn, &cost, &drawnAt, &contextRef); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if entry.QuantityDrawn, err = parseDecimal("quantity_drawn", drawn); err != nil {
			return nil, err
		}
		if entry.UnitCostAtDraw, err = parseDecimal("unit_cost_at_draw", cost); err != nil {
			return nil, err
		}
		if entry.DrawnAt, err = time.Parse(time.RFC3339Nano, drawnAt); err != nil {
			return nil, fmt.Errorf("corrupt drawn_at value %q: %w", drawnAt, err)
		}
		entry.ContextReference = contextRef.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLot(row rowScanner) (inventory.Lot, error) {
	var (
		lot        inventory.Lot
		acquiredAt string
		original   string
		cost       string
		remaining  string
		createdAt  string
	)
	err := row.Scan(&lot.ID, &lot.GoodID, &acquiredAt, &original, &cost, &remaining, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return lot, err
		}
		return lot, fmt.Errorf("failed to scan lot: %w", err)
	}

	if lot.AcquiredAt, err = time.Parse(time.RFC3339, acquiredAt); err != nil {
		return lot, fmt.Errorf("corrupt acquired_at value %q: %w", acquiredAt, err)
	}
	if lot.OriginalQuantity, err = parseDecimal("original_quantity", original); err != nil {
		return lot, err
	}
	if lot.UnitCost, err = parseDecimal("unit_cost", cost); err != nil {
		return lot, err
	}
	if lot.RemainingQuantity, err = parseDecimal("remaining_quantity", remaining); err != nil {
		return lot, err
	}
	if lot.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return lot, fmt.Errorf("corrupt created_at value %q: %w", createdAt, err)
	}
	return lot, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Entries first: lots are referenced by foreign key.
	for _, table := range []string{"consumption_entries", "lots"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func requireRow(res sql.Result, id inventory.LotID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", inventory.ErrNotFound, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// parseDecimal refuses to paper over a bad stored value: a remaining
// quantity that fails to parse must surface as an error, not read as zero.
func parseDecimal(column, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("corrupt %s value %q: %v", column, s, err)
	}
	return d, nil
}
