package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/retail-sim/retail-sim/sim/trace"
)

// ProductAllocation totals one product's restock requests over a run.
type ProductAllocation struct {
	ProductID   ProductID `json:"product_id"`
	Requests    int       `json:"requests"`
	Requested   int64     `json:"requested"`
	Granted     int64     `json:"granted"`
	Backordered int64     `json:"backordered"`
	Unallocated int       `json:"unallocated"` // requests granted nothing
}

// AllocationTally accumulates restock results per product. Not safe for
// concurrent use.
type AllocationTally struct {
	byProduct map[ProductID]*ProductAllocation
}

// NewAllocationTally creates an empty tally.
func NewAllocationTally() *AllocationTally {
	return &AllocationTally{byProduct: make(map[ProductID]*ProductAllocation)}
}

// Add folds one dispatch's results into the tally.
func (t *AllocationTally) Add(results []RestockResult) {
	for _, r := range results {
		pa, ok := t.byProduct[r.Request.ProductID]
		if !ok {
			pa = &ProductAllocation{ProductID: r.Request.ProductID}
			t.byProduct[r.Request.ProductID] = pa
		}
		pa.Requests++
		pa.Requested += r.Request.Quantity
		pa.Granted += r.Granted
		pa.Backordered += r.Backordered
		if r.Status == RestockUnallocated {
			pa.Unallocated++
		}
	}
}

// Products returns the per-product totals ordered by product ID.
func (t *AllocationTally) Products() []ProductAllocation {
	out := make([]ProductAllocation, 0, len(t.byProduct))
	for _, pa := range t.byProduct {
		out = append(out, *pa)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// ScenarioSummary identifies the simulated scenario in a report.
type ScenarioSummary struct {
	Name     string `json:"name"`
	Stores   int    `json:"stores"`
	Products int    `json:"products"`
	Days     int    `json:"days"`
	Seed     int64  `json:"seed"`
}

// Report is the serializable outcome of a run, for report consumers.
type Report struct {
	Scenario        ScenarioSummary     `json:"scenario"`
	Summary         KPISummary          `json:"summary"`
	Recommendations []Recommendation    `json:"recommendations"`
	Prices          PriceSummary        `json:"price_summary"`
	Allocations     []ProductAllocation `json:"allocations"`
	Trace           *trace.TraceSummary `json:"trace,omitempty"`
	Snapshots       []DailyKpiSnapshot  `json:"snapshots"`
}

// NewReport assembles a Report. A nil or disabled trace is omitted.
func NewReport(sc ScenarioSummary, snaps []DailyKpiSnapshot, th RecommendationConfig,
	allocations []ProductAllocation, st *trace.SimulationTrace) *Report {
	r := &Report{
		Scenario:        sc,
		Summary:         Summarize(snaps),
		Recommendations: Recommend(snaps, th),
		Prices:          SummarizePrices(snaps),
		Allocations:     allocations,
		Snapshots:       snaps,
	}
	if r.Allocations == nil {
		r.Allocations = []ProductAllocation{}
	}
	if r.Snapshots == nil {
		r.Snapshots = []DailyKpiSnapshot{}
	}
	if st.Enabled() {
		r.Trace = trace.Summarize(st)
	}
	return r
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// WriteFile writes the report as JSON to path.
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	if err := r.WriteJSON(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
