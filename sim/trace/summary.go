package trace

import "math"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalAllocations   int              `json:"total_allocations"`
	StatusDistribution map[string]int   `json:"status_distribution"` // status → count of requests
	TotalRequested     int64            `json:"total_requested"`
	TotalGranted       int64            `json:"total_granted"`
	FulfillmentPct     float64          `json:"fulfillment_pct"`      // granted / requested * 100; 100 when nothing was requested
	BackorderByProduct map[string]int64 `json:"backorder_by_product"` // product ID → units requested but not granted

	TotalPriceDecisions int     `json:"total_price_decisions"`
	PriceChanges        int     `json:"price_changes"`
	MeanAbsChangePct    float64 `json:"mean_abs_change_pct"` // over changed decisions only
	MaxAbsChangePct     float64 `json:"max_abs_change_pct"`
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		StatusDistribution: make(map[string]int),
		BackorderByProduct: make(map[string]int64),
		FulfillmentPct:     100,
	}
	if st == nil {
		return summary
	}

	summary.TotalAllocations = len(st.Allocations)
	for _, a := range st.Allocations {
		summary.StatusDistribution[a.Status]++
		summary.TotalRequested += a.Requested
		summary.TotalGranted += a.Granted
		if short := a.Requested - a.Granted; short > 0 {
			summary.BackorderByProduct[a.ProductID] += short
		}
	}
	if summary.TotalRequested > 0 {
		summary.FulfillmentPct = float64(summary.TotalGranted) / float64(summary.TotalRequested) * 100
	}

	summary.TotalPriceDecisions = len(st.Prices)
	totalAbs := 0.0
	for _, p := range st.Prices {
		if !p.Changed {
			continue
		}
		summary.PriceChanges++
		abs := math.Abs(p.ChangePct)
		totalAbs += abs
		if abs > summary.MaxAbsChangePct {
			summary.MaxAbsChangePct = abs
		}
	}
	if summary.PriceChanges > 0 {
		summary.MeanAbsChangePct = totalAbs / float64(summary.PriceChanges)
	}

	return summary
}
