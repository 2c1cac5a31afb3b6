// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/larder/lot-engine/inventory"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	lots    map[inventory.LotID]inventory.Lot
	entries map[inventory.LotID][]inventory.ConsumptionEntry
}

func NewMemory() *Memory {
	return &Memory{
		lots:    make(map[inventory.LotID]inventory.Lot),
		entries: make(map[inventory.LotID][]inventory.ConsumptionEntry),
	}
}

func (m *Memory) InsertLot(_ context.Context, lot inventory.Lot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLotLocked(lot)
}

func (m *Memory) GetLot(_ context.Context, id inventory.LotID) (inventory.Lot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLotLocked(id)
}

func (m *Memory) LotsByGood(_ context.Context, goodID inventory.GoodID) ([]inventory.Lot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lotsByGoodLocked(goodID, false), nil
}

func (m *Memory) OpenLots(_ context.Context, goodID inventory.GoodID) ([]inventory.Lot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lotsByGoodLocked(goodID, true), nil
}

func (m *Memory) UpdateLot(_ context.Context, lot inventory.Lot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLotLocked(lot)
}

func (m *Memory) DeleteLot(_ context.Context, id inventory.LotID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLotLocked(id)
}

func (m *Memory) AppendEntry(_ context.Context, entry inventory.ConsumptionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEntryLocked(entry)
}

func (m *Memory) EntriesByLot(_ context.Context, id inventory.LotID) ([]inventory.ConsumptionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesByLotLocked(id), nil
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lots = make(map[inventory.LotID]inventory.Lot)
	m.entries = make(map[inventory.LotID][]inventory.ConsumptionEntry)
	return nil
}

// -----------------------------------------------------------------------------
// Lock-free internals, shared with the transactional view.
// -----------------------------------------------------------------------------

func (m *Memory) insertLotLocked(lot inventory.Lot) error {
	if _, exists := m.lots[lot.ID]; exists {
		return fmt.Errorf("lot %s already exists", lot.ID)
	}
	m.lots[lot.ID] = lot
	return nil
}

func (m *Memory) getLotLocked(id inventory.LotID) (inventory.Lot, error) {
	lot, ok := m.lots[id]
	if !ok {
		return inventory.Lot{}, fmt.Errorf("%w: %s", inventory.ErrNotFound, id)
	}
	return lot, nil
}

func (m *Memory) lotsByGoodLocked(goodID inventory.GoodID, openOnly bool) []inventory.Lot {
	var lots []inventory.Lot
	for _, lot := range m.lots {
		if lot.GoodID != goodID {
			continue
		}
		if openOnly && lot.Drained() {
			continue
		}
		lots = append(lots, lot)
	}
	// FIFO order: acquisition date ascending, id ascending.
	sort.Slice(lots, func(i, j int) bool {
		if !lots[i].AcquiredAt.Equal(lots[j].AcquiredAt) {
			return lots[i].AcquiredAt.Before(lots[j].AcquiredAt)
		}
		return lots[i].ID < lots[j].ID
	})
	return lots
}

func (m *Memory) updateLotLocked(lot inventory.Lot) error {
	if _, ok := m.lots[lot.ID]; !ok {
		return fmt.Errorf("%w: %s", inventory.ErrNotFound, lot.ID)
	}
	m.lots[lot.ID] = lot
	return nil
}

func (m *Memory) deleteLotLocked(id inventory.LotID) error {
	if _, ok := m.lots[id]; !ok {
		return fmt.Errorf("%w: %s", inventory.ErrNotFound, id)
	}
	delete(m.lots, id)
	return nil
}

func (m *Memory) appendEntryLocked(entry inventory.ConsumptionEntry) error {
	m.entries[entry.LotID] = append(m.entries[entry.LotID], entry)
	return nil
}

func (m *Memory) entriesByLotLocked(id inventory.LotID) []inventory.ConsumptionEntry {
	entries := make([]inventory.ConsumptionEntry, len(m.entries[id]))
	copy(entries, m.entries[id])
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].DrawnAt.Equal(entries[j].DrawnAt) {
			return entries[i].DrawnAt.Before(entries[j].DrawnAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction. For the memory store this is
// simulated with a snapshot, restored if fn fails. Holding the write lock
// for the whole transaction is also what serializes concurrent consumers.
func (tm *TxMemory) WithTx(_ context.Context, fn func(inventory.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	lots    map[inventory.LotID]inventory.Lot
	entries map[inventory.LotID][]inventory.ConsumptionEntry
}

func (tm *TxMemory) snapshot() memorySnapshot {
	lotsCopy := make(map[inventory.LotID]inventory.Lot, len(tm.lots))
	for id, lot := range tm.lots {
		lotsCopy[id] = lot
	}
	entriesCopy := make(map[inventory.LotID][]inventory.ConsumptionEntry, len(tm.entries))
	for id, entries := range tm.entries {
		entriesCopy[id] = append([]inventory.ConsumptionEntry{}, entries...)
	}
	return memorySnapshot{lots: lotsCopy, entries: entriesCopy}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.lots = s.lots
	tm.entries = s.entries
}

// txMemoryView calls the lock-free internals directly: the transaction
// already holds the write lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) InsertLot(_ context.Context, lot inventory.Lot) error {
	return tv.parent.insertLotLocked(lot)
}

func (tv *txMemoryView) GetLot(_ context.Context, id inventory.LotID) (inventory.Lot, error) {
	return tv.parent.getLotLocked(id)
}

func (tv *txMemoryView) LotsByGood(_ context.Context, goodID inventory.GoodID) ([]inventory.Lot, error) {
	return tv.parent.lotsByGoodLocked(goodID, false), nil
}

func (tv *txMemoryView) OpenLots(_ context.Context, goodID inventory.GoodID) ([]inventory.Lot, error) {
	return tv.parent.lotsByGoodLocked(goodID, true), nil
}

func (tv *txMemoryView) UpdateLot(_ context.Context, lot inventory.Lot) error {
	return tv.parent.updateLotLocked(lot)
}

func (tv *txMemoryView) DeleteLot(_ context.Context, id inventory.LotID) error {
	return tv.parent.deleteLotLocked(id)
}

func (tv *txMemoryView) AppendEntry(_ context.Context, entry inventory.ConsumptionEntry) error {
	return tv.parent.appendEntryLocked(entry)
}

func (tv *txMemoryView) EntriesByLot(_ context.Context, id inventory.LotID) ([]inventory.ConsumptionEntry, error) {
	return tv.parent.entriesByLotLocked(id), nil
}
