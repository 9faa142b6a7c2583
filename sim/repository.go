package sim

import (
	"context"

	"github.com/shopspring/decimal"
)

// SaleRecord is one (store, product)'s sales for a day.
type SaleRecord struct {
	Day       int
	StoreID   StoreID
	ProductID ProductID
	Demanded  int64 // customer demand, including units lost to stockouts
	Sold      int64
	UnitPrice decimal.Decimal
	Revenue   decimal.Decimal
}

// Repository is the persistence collaborator. Every call may fail; the
// controller logs failures and continues with defaults.
type Repository interface {
	AppendSale(ctx context.Context, sale SaleRecord) error
	AppendPriceChange(ctx context.Context, change PriceChange) error
	// ReadDemandHistory returns up to window most recent daily demand
	// observations, oldest first. window <= 0 returns all of them.
	ReadDemandHistory(ctx context.Context, store StoreID, product ProductID, window int) ([]int64, error)
	// LastSaleDay returns the latest day holding a sale record, including
	// warm-start days. ok is false for an empty repository.
	LastSaleDay(ctx context.Context) (day int, ok bool, err error)
	ReadInventoryRecord(ctx context.Context, store StoreID, product ProductID) (InventoryRecord, bool, error)
	WriteInventoryRecord(ctx context.Context, rec InventoryRecord) error
}
