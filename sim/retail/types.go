// Package retail drives the day-by-day multi-store simulation: stores decide
// in parallel, the warehouse arbitrates restock requests, customers buy and
// the KPI aggregator records each day.
package retail

import (
	"github.com/retail-sim/retail-sim/sim"
	"github.com/retail-sim/retail-sim/sim/trace"
)

// DayContext is the explicit per-day context handed to every step.
type DayContext struct {
	Day    int
	Config *sim.Config
}

// ListingDecision is one store's decisions for one product on one day.
type ListingDecision struct {
	ProductID sim.ProductID
	Sentiment float64
	Forecast  []float64
	Optimizer sim.OptimizerResult
	Request   *sim.RestockRequest // nil when nothing was ordered
	Price     sim.PriceDecision
	Change    *sim.PriceChange   // nil when the price held
	Response  *sim.PriceResponse // predicted customer response to Change
	Err       error            // input violation that skipped the listing
}

// StoreDecision collects a store's listing decisions in catalog order.
type StoreDecision struct {
	StoreID  sim.StoreID
	Listings []ListingDecision
}

// Skipped returns the number of listings skipped for an input violation.
func (d StoreDecision) Skipped() int {
	n := 0
	for _, l := range d.Listings {
		if l.Err != nil {
			n++
		}
	}
	return n
}

// Collaborators are the external services a run consumes. Nil fields fall
// back to in-process defaults.
type Collaborators struct {
	Repository sim.Repository
	Ledger     sim.StockLedger
	Scorer     sim.SentimentScorer
	Trace      *trace.SimulationTrace // nil disables decision tracing
}
