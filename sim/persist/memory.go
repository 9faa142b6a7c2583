// Package persist provides Repository and StockLedger adapters for the
// simulation core: an in-memory repository, a PostgreSQL repository and a
// redis-backed warehouse ledger.
package persist

import (
	"context"
	"fmt"
	"sync"

	"github.com/retail-sim/retail-sim/sim"
)

var _ sim.Repository = (*MemoryRepository)(nil)

type pairKey struct {
	store   sim.StoreID
	product sim.ProductID
}

// MemoryRepository keeps everything in process. Safe for concurrent use.
type MemoryRepository struct {
	mu        sync.RWMutex
	limit     int
	sales     []sim.SaleRecord
	lastDay   int
	prices    []sim.PriceChange
	history   map[pairKey]*sim.DemandHistory
	inventory map[pairKey]sim.InventoryRecord
}

// NewMemoryRepository creates a repository retaining up to historyLimit
// demand observations per pair (0 = all).
func NewMemoryRepository(historyLimit int) *MemoryRepository {
	return &MemoryRepository{
		limit:     historyLimit,
		history:   make(map[pairKey]*sim.DemandHistory),
		inventory: make(map[pairKey]sim.InventoryRecord),
	}
}

// AppendSale stores the sale and appends its demand to the pair's history.
func (m *MemoryRepository) AppendSale(_ context.Context, sale sim.SaleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey{sale.StoreID, sale.ProductID}
	h, ok := m.history[key]
	if !ok {
		h = sim.NewDemandHistory(m.limit)
		m.history[key] = h
	}
	if err := h.Append(sale.Demanded); err != nil {
		return fmt.Errorf("append sale: %w", err)
	}
	if len(m.sales) == 0 || sale.Day > m.lastDay {
		m.lastDay = sale.Day
	}
	m.sales = append(m.sales, sale)
	return nil
}

func (m *MemoryRepository) AppendPriceChange(_ context.Context, change sim.PriceChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices = append(m.prices, change)
	return nil
}

func (m *MemoryRepository) ReadDemandHistory(_ context.Context, store sim.StoreID, product sim.ProductID, window int) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.history[pairKey{store, product}]
	if !ok {
		return nil, nil
	}
	return h.Window(window), nil
}

func (m *MemoryRepository) LastSaleDay(_ context.Context) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.sales) == 0 {
		return 0, false, nil
	}
	return m.lastDay, true, nil
}

func (m *MemoryRepository) ReadInventoryRecord(_ context.Context, store sim.StoreID, product sim.ProductID) (sim.InventoryRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.inventory[pairKey{store, product}]
	return rec, ok, nil
}

func (m *MemoryRepository) WriteInventoryRecord(_ context.Context, rec sim.InventoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventory[pairKey{rec.StoreID, rec.ProductID}] = rec
	return nil
}

// Sales returns a copy of every appended sale.
func (m *MemoryRepository) Sales() []sim.SaleRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]sim.SaleRecord(nil), m.sales...)
}

// PriceChanges returns a copy of every appended price change.
func (m *MemoryRepository) PriceChanges() []sim.PriceChange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]sim.PriceChange(nil), m.prices...)
}
