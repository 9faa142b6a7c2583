package sim

import (
	"github.com/shopspring/decimal"
)

// Supplier is one source the warehouse can replenish a product from.
type Supplier struct {
	ID           string
	UnitCost     decimal.Decimal
	LeadTimeDays int
}

// Validate checks that the supplier has an ID and non-negative cost and lead time.
func (s Supplier) Validate() error {
	if s.ID == "" {
		return inputViolation("supplier id is empty")
	}
	if s.UnitCost.IsNegative() {
		return inputViolation("supplier %s: unit cost %s is negative", s.ID, s.UnitCost)
	}
	if s.LeadTimeDays < 0 {
		return inputViolation("supplier %s: lead time %d is negative", s.ID, s.LeadTimeDays)
	}
	return nil
}

// SupplierScore is the figure SelectSupplier minimises:
// unit cost * quantity + lead time * penalty.
func SupplierScore(s Supplier, qty int64, leadTimePenalty decimal.Decimal) decimal.Decimal {
	return s.UnitCost.Mul(decimal.NewFromInt(qty)).Add(decimal.NewFromInt(int64(s.LeadTimeDays)).Mul(leadTimePenalty))
}

// SelectSupplier returns the supplier with the lowest SupplierScore for qty
// units. Ties go to the earlier supplier. ok is false when suppliers is empty.
func SelectSupplier(suppliers []Supplier, qty int64, leadTimePenalty decimal.Decimal) (best Supplier, ok bool) {
	var bestScore decimal.Decimal
	for i, s := range suppliers {
		score := SupplierScore(s, qty, leadTimePenalty)
		if i == 0 || score.LessThan(bestScore) {
			best, bestScore = s, score
		}
	}
	return best, len(suppliers) > 0
}
