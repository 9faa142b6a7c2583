package sim

import (
	"fmt"

	"github.com/google/uuid"
)

// RestockStatus is the terminal state of a restock request after its allocation pass.
type RestockStatus int

const (
	RestockCreated RestockStatus = iota
	RestockAllocated
	RestockPartiallyAllocated
	RestockUnallocated
)

func (s RestockStatus) String() string {
	switch s {
	case RestockCreated:
		return "created"
	case RestockAllocated:
		return "allocated"
	case RestockPartiallyAllocated:
		return "partially-allocated"
	case RestockUnallocated:
		return "unallocated"
	default:
		return fmt.Sprintf("RestockStatus(%d)", int(s))
	}
}

// MarshalText renders the status name in JSON reports.
func (s RestockStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// restockNamespace scopes the name-based request IDs.
var restockNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("retail-sim/restock"))

// RestockRequest asks the warehouse for units of one product on one day.
// Immutable after creation; consumed by exactly one allocation pass.
type RestockRequest struct {
	ID         uuid.UUID
	StoreID    StoreID
	StoreIndex int // position of the store in the scenario, defines canonical order
	ProductID  ProductID
	Quantity   int64
	Day        int
}

// NewRestockRequest validates and creates a request. Negative quantities are
// rejected. The ID is derived from (day, store, product) so replays of the
// same run produce the same IDs.
func NewRestockRequest(store StoreID, storeIndex int, product ProductID, qty int64, day int) (RestockRequest, error) {
	if qty < 0 {
		return RestockRequest{}, inputViolation("restock request store %s product %s: quantity %d is negative", store, product, qty)
	}
	if store == "" || product == "" {
		return RestockRequest{}, inputViolation("restock request needs store and product ids")
	}
	return RestockRequest{
		ID:         uuid.NewSHA1(restockNamespace, []byte(fmt.Sprintf("%d/%s/%s", day, store, product))),
		StoreID:    store,
		StoreIndex: storeIndex,
		ProductID:  product,
		Quantity:   qty,
		Day:        day,
	}, nil
}

// RestockResult is the outcome of one request's allocation pass.
type RestockResult struct {
	Request     RestockRequest
	Granted     int64 // 0 <= Granted <= Request.Quantity
	Backordered int64 // Request.Quantity - Granted, never re-requested automatically
	Status      RestockStatus
}

func newRestockResult(req RestockRequest, granted int64) RestockResult {
	status := RestockPartiallyAllocated
	switch {
	case granted == req.Quantity:
		status = RestockAllocated
	case granted == 0:
		status = RestockUnallocated
	}
	return RestockResult{
		Request:     req,
		Granted:     granted,
		Backordered: req.Quantity - granted,
		Status:      status,
	}
}

func (r RestockResult) String() string {
	return fmt.Sprintf("RestockResult: (Store: %s, Product: %s, Requested: %d, Granted: %d, Status: %s)",
		r.Request.StoreID, r.Request.ProductID, r.Request.Quantity, r.Granted, r.Status)
}
