package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// StockLedger stores warehouse quantity per product. It is the only shared
// mutable resource of a run. Implementations must make CompareAndDecrement
// atomic: it succeeds only when the current quantity equals expected.
type StockLedger interface {
	Available(ctx context.Context, product ProductID) (int64, error)
	CompareAndDecrement(ctx context.Context, product ProductID, expected, amount int64) (bool, error)
	Add(ctx context.Context, product ProductID, qty int64) (int64, error)
	Snapshot(ctx context.Context) (map[ProductID]int64, error)
}

// MemoryLedger is an in-process StockLedger guarded by a mutex.
type MemoryLedger struct {
	mu    sync.Mutex
	stock map[ProductID]int64
}

// NewMemoryLedger creates a ledger seeded with initial quantities.
func NewMemoryLedger(initial map[ProductID]int64) *MemoryLedger {
	stock := make(map[ProductID]int64, len(initial))
	for p, q := range initial {
		stock[p] = q
	}
	return &MemoryLedger{stock: stock}
}

func (l *MemoryLedger) Available(_ context.Context, product ProductID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[product], nil
}

func (l *MemoryLedger) CompareAndDecrement(_ context.Context, product ProductID, expected, amount int64) (bool, error) {
	if amount < 0 {
		return false, inputViolation("decrement amount %d is negative", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.stock[product]
	if cur != expected || amount > cur {
		return false, nil
	}
	l.stock[product] = cur - amount
	return true, nil
}

func (l *MemoryLedger) Add(_ context.Context, product ProductID, qty int64) (int64, error) {
	if qty < 0 {
		return 0, inputViolation("added quantity %d is negative", qty)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[product] += qty
	return l.stock[product], nil
}

func (l *MemoryLedger) Snapshot(_ context.Context) (map[ProductID]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[ProductID]int64, len(l.stock))
	for p, q := range l.stock {
		out[p] = q
	}
	return out, nil
}

// Warehouse runs allocation passes against a StockLedger and schedules
// supplier replenishment.
type Warehouse struct {
	ledger     StockLedger
	policy     TieBreakPolicy
	maxRetries int
	replenish  WarehouseConfig

	locksMu sync.Mutex
	locks   map[ProductID]*sync.Mutex

	inboundMu sync.Mutex
	inbound   map[ProductID]Shipment
	suppliers map[ProductID][]Supplier
}

// NewWarehouse creates a Warehouse. Panics on an unknown tie-break policy.
func NewWarehouse(ledger StockLedger, alloc AllocationConfig, replenish WarehouseConfig) *Warehouse {
	retries := alloc.MaxCASRetries
	if retries < 1 {
		retries = 1
	}
	return &Warehouse{
		ledger:     ledger,
		policy:     NewTieBreakPolicy(alloc.TieBreak),
		maxRetries: retries,
		replenish:  replenish,
		locks:      make(map[ProductID]*sync.Mutex),
		inbound:    make(map[ProductID]Shipment),
	}
}

// SetSuppliers registers the suppliers PlanReplenishment chooses from.
// Products without suppliers use the configured default supplier.
func (w *Warehouse) SetSuppliers(suppliers map[ProductID][]Supplier) {
	w.inboundMu.Lock()
	defer w.inboundMu.Unlock()
	w.suppliers = suppliers
}

// Ledger returns the backing stock ledger.
func (w *Warehouse) Ledger() StockLedger {
	return w.ledger
}

func (w *Warehouse) productLock(product ProductID) *sync.Mutex {
	w.locksMu.Lock()
	defer w.locksMu.Unlock()
	mu, ok := w.locks[product]
	if !ok {
		mu = &sync.Mutex{}
		w.locks[product] = mu
	}
	return mu
}

// AllocatePass runs one allocation pass for the candidate set of a single
// product. Passes for the same product are serialized; the ledger read and
// the decrement form one compare-and-decrement unit, retried when another
// writer changed the quantity in between.
func (w *Warehouse) AllocatePass(ctx context.Context, requests []RestockRequest) ([]RestockResult, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	product := requests[0].ProductID
	mu := w.productLock(product)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; attempt < w.maxRetries; attempt++ {
		available, err := w.ledger.Available(ctx, product)
		if err != nil {
			return nil, CollaboratorError("stock ledger", err)
		}
		if available < 0 {
			return nil, contentionViolation("product %s: warehouse stock is negative (%d)", product, available)
		}
		results, err := Allocate(requests, available, w.policy)
		if err != nil {
			return nil, err
		}
		granted := TotalGranted(results)
		if granted == 0 {
			return results, nil
		}
		ok, err := w.ledger.CompareAndDecrement(ctx, product, available, granted)
		if err != nil {
			return nil, CollaboratorError("stock ledger", err)
		}
		if ok {
			logrus.Debugf("[warehouse] product %s: granted %d of %d available to %d requests",
				product, granted, available, len(requests))
			return results, nil
		}
		logrus.Debugf("[warehouse] product %s: stock changed during pass, retry %d", product, attempt+1)
	}
	return nil, CollaboratorError("stock ledger",
		fmt.Errorf("product %s: compare-and-decrement failed after %d attempts", product, w.maxRetries))
}

// PlanReplenishment schedules a supplier shipment for every product whose
// stock is at or below the replenish threshold and has nothing inbound.
// The shipment comes from the product's best supplier (see SelectSupplier).
// Returns the newly scheduled shipments in product order.
func (w *Warehouse) PlanReplenishment(ctx context.Context, day int) ([]Shipment, error) {
	if w.replenish.ReplenishQuantity <= 0 {
		return nil, nil
	}
	snap, err := w.ledger.Snapshot(ctx)
	if err != nil {
		return nil, CollaboratorError("stock ledger", err)
	}
	w.inboundMu.Lock()
	defer w.inboundMu.Unlock()
	var planned []Shipment
	for _, product := range sortedProducts(snap) {
		if snap[product] > w.replenish.ReplenishThreshold {
			continue
		}
		if _, pending := w.inbound[product]; pending {
			continue
		}
		s := w.supplierShipment(product, day)
		w.inbound[product] = s
		planned = append(planned, s)
	}
	return planned, nil
}

func (w *Warehouse) supplierShipment(product ProductID, day int) Shipment {
	qty := w.replenish.ReplenishQuantity
	sup, ok := SelectSupplier(w.suppliers[product], qty, decimal.NewFromFloat(w.replenish.LeadTimePenalty))
	if !ok {
		return Shipment{ProductID: product, Quantity: qty, ArrivalDay: day + w.replenish.SupplierLeadDays}
	}
	return Shipment{
		ProductID:  product,
		Quantity:   qty,
		ArrivalDay: day + sup.LeadTimeDays,
		SupplierID: sup.ID,
		Cost:       sup.UnitCost.Mul(decimal.NewFromInt(qty)),
	}
}

// ReceiveShipments adds every inbound supplier shipment due on or before day
// to the ledger and returns them in product order.
func (w *Warehouse) ReceiveShipments(ctx context.Context, day int) ([]Shipment, error) {
	w.inboundMu.Lock()
	defer w.inboundMu.Unlock()
	var due []Shipment
	for _, s := range w.inbound {
		if s.ArrivalDay <= day {
			due = append(due, s)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ProductID < due[j].ProductID })
	for _, s := range due {
		if _, err := w.ledger.Add(ctx, s.ProductID, s.Quantity); err != nil {
			return nil, CollaboratorError("stock ledger", err)
		}
		delete(w.inbound, s.ProductID)
	}
	return due, nil
}

// Coordinator collects one day's restock requests from concurrently running
// store work units and dispatches one allocation pass per product.
type Coordinator struct {
	warehouse *Warehouse
	workers   int

	mu      sync.Mutex
	pending []RestockRequest
}

// NewCoordinator creates a Coordinator running up to workers product passes in parallel.
func NewCoordinator(w *Warehouse, workers int) *Coordinator {
	if w == nil {
		panic("NewCoordinator: warehouse is nil")
	}
	return &Coordinator{warehouse: w, workers: max(workers, 1)}
}

// Submit queues req for the next dispatch. Safe for concurrent use.
// Zero quantities are a no-op; negative quantities are rejected.
func (c *Coordinator) Submit(req RestockRequest) error {
	if req.Quantity < 0 {
		return inputViolation("restock request store %s product %s: quantity %d is negative",
			req.StoreID, req.ProductID, req.Quantity)
	}
	if req.Quantity == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, req)
	return nil
}

// Pending returns the number of queued requests.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Dispatch drains the queue and runs one allocation pass per product.
// Each candidate set is sorted by store index so results never depend on
// submission timing. A pass whose ledger is unavailable leaves its requests
// unallocated; ErrContentionViolation aborts the dispatch.
// Results are returned ordered by product, then store index.
func (c *Coordinator) Dispatch(ctx context.Context) ([]RestockResult, error) {
	c.mu.Lock()
	drained := c.pending
	c.pending = nil
	c.mu.Unlock()

	groups := make(map[ProductID][]RestockRequest)
	for _, r := range drained {
		groups[r.ProductID] = append(groups[r.ProductID], r)
	}
	products := make([]ProductID, 0, len(groups))
	for p, reqs := range groups {
		sort.SliceStable(reqs, func(i, j int) bool {
			if reqs[i].StoreIndex != reqs[j].StoreIndex {
				return reqs[i].StoreIndex < reqs[j].StoreIndex
			}
			return reqs[i].StoreID < reqs[j].StoreID
		})
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i] < products[j] })

	slots := make([][]RestockResult, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, p := range products {
		g.Go(func() error {
			reqs := groups[p]
			results, err := c.warehouse.AllocatePass(gctx, reqs)
			if err != nil {
				if errors.Is(err, ErrContentionViolation) {
					return err
				}
				logrus.Warnf("[coordinator] product %s: allocation pass failed, %d requests unallocated: %v",
					p, len(reqs), err)
				results = make([]RestockResult, len(reqs))
				for j, r := range reqs {
					results[j] = newRestockResult(r, 0)
				}
			}
			slots[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []RestockResult
	for _, s := range slots {
		out = append(out, s...)
	}
	return out, nil
}

func sortedProducts(m map[ProductID]int64) []ProductID {
	out := make([]ProductID, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
