// Package trace provides decision-trace recording for allocation and pricing analysis.
// This package has no dependencies on sim/ or sim/retail/. It stores pure data types.
package trace

// AllocationRecord captures one request's outcome in a warehouse allocation pass.
type AllocationRecord struct {
	Day       int
	RequestID string
	StoreID   string
	ProductID string
	Requested int64
	Granted   int64
	Status    string // allocated | partially-allocated | unallocated
}

// PriceRecord captures a single pricing decision, changed or not.
type PriceRecord struct {
	Day       int
	StoreID   string
	ProductID string
	OldPrice  string // cents, e.g. "9.99"
	NewPrice  string
	ChangePct float64
	Changed   bool
	Reason    string

	ExpectedDemandChangePct float64 // predicted demand response to a change; 0 when held
}
