// Defines the catalog and per-store inventory bookkeeping types.

package sim

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StoreID identifies a store. Distinct type so store and product IDs never mix.
type StoreID string

// ProductID identifies a catalog product.
type ProductID string

// Product is a catalog entry shared by all stores.
type Product struct {
	ID              ProductID
	Name            string
	UnitCost        decimal.Decimal
	BasePrice       decimal.Decimal
	CurrentPrice    decimal.Decimal // catalog price; stores start from it
	CompetitorPrice decimal.Decimal // current competitor price estimate
	LeadTimeDays    int             // warehouse -> store lead time
	BaseDemand      float64         // mean daily units demanded per store at base price
}

// Validate checks the catalog invariants (price > 0, non-negative cost/lead time/demand).
func (p Product) Validate() error {
	if p.ID == "" {
		return inputViolation("product id is empty")
	}
	if !p.CurrentPrice.IsPositive() {
		return inputViolation("product %s: price %s must be > 0", p.ID, p.CurrentPrice)
	}
	if !p.BasePrice.IsPositive() {
		return inputViolation("product %s: base price %s must be > 0", p.ID, p.BasePrice)
	}
	if p.UnitCost.IsNegative() {
		return inputViolation("product %s: unit cost %s is negative", p.ID, p.UnitCost)
	}
	if p.CompetitorPrice.IsNegative() {
		return inputViolation("product %s: competitor price %s is negative", p.ID, p.CompetitorPrice)
	}
	if p.LeadTimeDays < 0 {
		return inputViolation("product %s: lead time %d is negative", p.ID, p.LeadTimeDays)
	}
	if p.BaseDemand < 0 {
		return inputViolation("product %s: base demand %v is negative", p.ID, p.BaseDemand)
	}
	return nil
}

// InventoryRecord is the (store, product) stock ledger owned by its store.
// Mutated only by restock fulfillment and by sales consumption.
type InventoryRecord struct {
	StoreID      StoreID
	ProductID    ProductID
	OnHand       int64 // units on the shelf, never negative
	ReorderPoint int64
	EOQ          int64
	SafetyStock  int64
	LeadTimeDays int
	Outstanding  int64 // granted units still in transit
}

// Position returns the inventory position: on-hand plus in-transit units.
func (r InventoryRecord) Position() int64 {
	return r.OnHand + r.Outstanding
}

// Consume removes up to demand units from on-hand stock and returns the
// units actually sold. Negative demand is rejected.
func (r *InventoryRecord) Consume(demand int64) (int64, error) {
	if demand < 0 {
		return 0, inputViolation("store %s product %s: demand %d is negative", r.StoreID, r.ProductID, demand)
	}
	sold := min(demand, r.OnHand)
	r.OnHand -= sold
	return sold, nil
}

// Receive moves qty units from in-transit to on-hand.
func (r *InventoryRecord) Receive(qty int64) error {
	if qty < 0 {
		return inputViolation("store %s product %s: received quantity %d is negative", r.StoreID, r.ProductID, qty)
	}
	if qty > r.Outstanding {
		return inputViolation("store %s product %s: received %d exceeds outstanding %d",
			r.StoreID, r.ProductID, qty, r.Outstanding)
	}
	r.Outstanding -= qty
	r.OnHand += qty
	return nil
}

func (r InventoryRecord) String() string {
	return fmt.Sprintf("InventoryRecord: (Store: %s, Product: %s, OnHand: %d, ROP: %d, Outstanding: %d)",
		r.StoreID, r.ProductID, r.OnHand, r.ReorderPoint, r.Outstanding)
}

// DemandHistory is an append-only sequence of daily observed sales.
// A positive limit retains only the most recent limit observations.
type DemandHistory struct {
	values []int64
	limit  int
}

// NewDemandHistory creates an empty history. limit <= 0 retains everything.
func NewDemandHistory(limit int) *DemandHistory {
	return &DemandHistory{limit: limit}
}

// Append records one day's observed sales.
func (h *DemandHistory) Append(units int64) error {
	if units < 0 {
		return inputViolation("observed sales %d is negative", units)
	}
	h.values = append(h.values, units)
	if h.limit > 0 && len(h.values) > h.limit {
		h.values = append([]int64(nil), h.values[len(h.values)-h.limit:]...)
	}
	return nil
}

// Window returns a copy of the trailing n observations, oldest first.
// n <= 0 returns the full retained history.
func (h *DemandHistory) Window(n int) []int64 {
	start := 0
	if n > 0 && n < len(h.values) {
		start = len(h.values) - n
	}
	out := make([]int64, len(h.values)-start)
	copy(out, h.values[start:])
	return out
}

// Len returns the number of retained observations.
func (h *DemandHistory) Len() int {
	return len(h.values)
}

// Shipment is an inbound delivery of a product arriving on a given day.
// SupplierID and Cost are set for warehouse replenishment from a scenario
// supplier; store shipments leave them empty.
type Shipment struct {
	ProductID  ProductID
	Quantity   int64
	ArrivalDay int
	SupplierID string
	Cost       decimal.Decimal
}
