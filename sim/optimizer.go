package sim

import (
	"math"
)

// OptimizerInput carries the reorder economics for one (store, product).
type OptimizerInput struct {
	Demand       float64 // D, average daily demand
	Sigma        float64 // σ, daily demand standard deviation
	OrderingCost float64 // S
	HoldingCost  float64 // H, per unit per day
	LeadTimeDays float64 // L
	Z            float64 // service-level factor
	Stock        int64   // inventory position compared against the reorder point
}

// OptimizerResult holds whole-unit quantities (rounded up) plus the raw values.
type OptimizerResult struct {
	EOQ          int64
	SafetyStock  int64
	ReorderPoint int64
	OrderQty     int64

	RawEOQ          float64
	RawSafetyStock  float64
	RawReorderPoint float64
}

// Optimize computes EOQ, safety stock, reorder point and the recommended order.
// Every returned quantity is a non-negative integer. Pure function.
func Optimize(in OptimizerInput) (OptimizerResult, error) {
	checks := []struct {
		name string
		v    float64
	}{
		{"demand", in.Demand},
		{"sigma", in.Sigma},
		{"ordering cost", in.OrderingCost},
		{"lead time", in.LeadTimeDays},
		{"z", in.Z},
	}
	for _, c := range checks {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) || c.v < 0 {
			return OptimizerResult{}, inputViolation("optimizer %s %v must be a finite non-negative number", c.name, c.v)
		}
	}
	if math.IsNaN(in.HoldingCost) {
		return OptimizerResult{}, inputViolation("optimizer holding cost is NaN")
	}

	eoq := EconomicOrderQuantity(in.Demand, in.OrderingCost, in.HoldingCost)
	ss := SafetyStock(in.Z, in.Sigma, in.LeadTimeDays)
	rop := in.Demand*in.LeadTimeDays + ss
	for _, c := range []struct {
		name string
		v    float64
	}{{"EOQ", eoq}, {"safety stock", ss}, {"reorder point", rop}} {
		if !representableUnits(c.v) {
			return OptimizerResult{}, inputViolation("optimizer %s %v exceeds %d units", c.name, c.v, int64(maxOptimizerUnits))
		}
	}

	res := OptimizerResult{
		EOQ:             ceilUnits(eoq),
		SafetyStock:     ceilUnits(ss),
		ReorderPoint:    ceilUnits(rop),
		RawEOQ:          eoq,
		RawSafetyStock:  ss,
		RawReorderPoint: rop,
	}
	res.OrderQty = RecommendOrder(in.Stock, res.ReorderPoint, res.EOQ)
	return res, nil
}

// EconomicOrderQuantity returns sqrt(2DS/H), or 0 when H <= 0 or D <= 0.
func EconomicOrderQuantity(d, s, h float64) float64 {
	if h <= 0 || d <= 0 || s <= 0 {
		return 0
	}
	return math.Sqrt(2 * d * s / h)
}

// SafetyStock returns z·σ·sqrt(L), or 0 when σ or L is 0.
func SafetyStock(z, sigma, leadTime float64) float64 {
	if sigma <= 0 || leadTime <= 0 || z <= 0 {
		return 0
	}
	return z * sigma * math.Sqrt(leadTime)
}

// RecommendOrder returns eoq when stock <= rop and 0 otherwise.
// With stock <= 0 the order is at least enough to reach the reorder point.
func RecommendOrder(stock, rop, eoq int64) int64 {
	if stock > rop {
		return 0
	}
	qty := max(eoq, 0)
	if stock <= 0 {
		qty = max(qty, rop-stock)
	}
	return qty
}

// maxOptimizerUnits bounds every optimizer quantity so ceilUnits and the
// rop-stock difference in RecommendOrder stay within int64.
const maxOptimizerUnits = 1 << 53

func representableUnits(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v <= maxOptimizerUnits
}

// ceilUnits rounds up to whole units; callers reject values outside
// representableUnits first.
func ceilUnits(v float64) int64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return int64(math.Ceil(v))
}
