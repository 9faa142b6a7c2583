package sim

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// PriceChange records one applied pricing decision.
type PriceChange struct {
	Day       int             `json:"day"`
	StoreID   StoreID         `json:"store_id"`
	ProductID ProductID       `json:"product_id"`
	OldPrice  decimal.Decimal `json:"old_price"`
	NewPrice  decimal.Decimal `json:"new_price"`
	Delta     decimal.Decimal `json:"delta"`
	ChangePct float64         `json:"change_pct"`
	Reason    string          `json:"reason"`
}

// PairOutcome is one (store, product)'s result for a day's sales phase.
type PairOutcome struct {
	StoreID   StoreID
	ProductID ProductID
	Demanded  int64
	Sold      int64
	Stockout  bool // demand exceeded on-hand stock
	OnHand    int64
	Revenue   decimal.Decimal
	LowStock  bool
	Overstock bool
}

// DailyKpiSnapshot is the immutable KPI record of one simulated day.
type DailyKpiSnapshot struct {
	Day                int             `json:"day"`
	UnitsSold          int64           `json:"units_sold"`
	UnitsDemanded      int64           `json:"units_demanded"`
	Revenue            decimal.Decimal `json:"revenue"`
	FillRate           float64         `json:"fill_rate"`
	StockoutCount      int             `json:"stockout_count"`
	LowStockCount      int             `json:"low_stock_count"`
	OverstockCount     int             `json:"overstock_count"`
	AverageInventory   float64         `json:"average_inventory"` // mean end-of-day on-hand per pair
	TotalOnHand        int64           `json:"total_on_hand"`
	InventoryTurnover  float64         `json:"inventory_turnover"` // running, over all snapshots so far
	RestockRequested   int64           `json:"restock_requested"`
	RestockGranted     int64           `json:"restock_granted"`
	RestockBackordered int64           `json:"restock_backordered"`
	PriceChanges       []PriceChange   `json:"price_changes"`
}

// FillRate returns sold/demanded as a percentage capped at 100.
// Zero demand is a 100% fill rate.
func FillRate(sold, demanded int64) float64 {
	if demanded <= 0 {
		return 100
	}
	return math.Max(0, math.Min(100, float64(sold)/float64(demanded)*100))
}

// KPIAggregator folds each day's outcomes into an append-only snapshot sequence.
// Not safe for concurrent use; the controller records days sequentially.
type KPIAggregator struct {
	snapshots      []DailyKpiSnapshot
	cumulativeSold int64
	onHandSum      float64
}

// NewKPIAggregator creates an empty aggregator.
func NewKPIAggregator() *KPIAggregator {
	return &KPIAggregator{}
}

// Record computes and appends the snapshot for day. Inputs are copied.
func (a *KPIAggregator) Record(day int, pairs []PairOutcome, restocks []RestockResult, prices []PriceChange) DailyKpiSnapshot {
	snap := DailyKpiSnapshot{Day: day, Revenue: decimal.Zero}
	for _, p := range pairs {
		snap.UnitsSold += p.Sold
		snap.UnitsDemanded += p.Demanded
		snap.Revenue = snap.Revenue.Add(p.Revenue)
		snap.TotalOnHand += p.OnHand
		if p.Stockout {
			snap.StockoutCount++
		}
		if p.LowStock {
			snap.LowStockCount++
		}
		if p.Overstock {
			snap.OverstockCount++
		}
	}
	snap.FillRate = FillRate(snap.UnitsSold, snap.UnitsDemanded)
	if len(pairs) > 0 {
		snap.AverageInventory = float64(snap.TotalOnHand) / float64(len(pairs))
	}
	for _, r := range restocks {
		snap.RestockRequested += r.Request.Quantity
		snap.RestockGranted += r.Granted
		snap.RestockBackordered += r.Backordered
	}
	snap.PriceChanges = append([]PriceChange(nil), prices...)

	a.cumulativeSold += snap.UnitsSold
	a.onHandSum += float64(snap.TotalOnHand)
	avgOnHand := a.onHandSum / float64(len(a.snapshots)+1)
	if avgOnHand > 0 {
		snap.InventoryTurnover = float64(a.cumulativeSold) / avgOnHand
	}

	a.snapshots = append(a.snapshots, snap)
	return snap
}

// Snapshots returns a copy of the recorded sequence, oldest first.
func (a *KPIAggregator) Snapshots() []DailyKpiSnapshot {
	out := make([]DailyKpiSnapshot, len(a.snapshots))
	for i, s := range a.snapshots {
		s.PriceChanges = append([]PriceChange(nil), s.PriceChanges...)
		out[i] = s
	}
	return out
}

// Len returns the number of recorded days.
func (a *KPIAggregator) Len() int {
	return len(a.snapshots)
}

// Distribution captures statistical summary of a metric.
type Distribution struct {
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// NewDistribution computes a Distribution from raw values.
// Returns zero-value Distribution for empty input.
func NewDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Distribution{
		Mean:  MeanFloat(sorted),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Count: len(sorted),
	}
}

// percentile computes the p-th percentile using linear interpolation.
// Input must be sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// KPISummary aggregates a whole run.
type KPISummary struct {
	Days                 int             `json:"days"`
	TotalSold            int64           `json:"total_sold"`
	TotalDemanded        int64           `json:"total_demanded"`
	Revenue              decimal.Decimal `json:"revenue"`
	OverallFillRate      float64         `json:"overall_fill_rate"`
	FillRate             Distribution    `json:"fill_rate"`
	DailySold            Distribution    `json:"daily_sold"`
	TotalStockouts       int             `json:"total_stockouts"`
	InventoryTurnover    float64         `json:"inventory_turnover"`
	RestockCompletionPct float64         `json:"restock_completion_pct"`
}

// Summarize computes a KPISummary from snapshots.
func Summarize(snaps []DailyKpiSnapshot) KPISummary {
	s := KPISummary{Days: len(snaps), Revenue: decimal.Zero}
	fill := make([]float64, len(snaps))
	sold := make([]float64, len(snaps))
	var requested, granted int64
	for i, snap := range snaps {
		s.TotalSold += snap.UnitsSold
		s.TotalDemanded += snap.UnitsDemanded
		s.Revenue = s.Revenue.Add(snap.Revenue)
		s.TotalStockouts += snap.StockoutCount
		requested += snap.RestockRequested
		granted += snap.RestockGranted
		fill[i] = snap.FillRate
		sold[i] = float64(snap.UnitsSold)
	}
	s.OverallFillRate = FillRate(s.TotalSold, s.TotalDemanded)
	s.FillRate = NewDistribution(fill)
	s.DailySold = NewDistribution(sold)
	s.RestockCompletionPct = completionPct(granted, requested)
	if len(snaps) > 0 {
		s.InventoryTurnover = snaps[len(snaps)-1].InventoryTurnover
	}
	return s
}

// Print writes a human-readable summary.
func (s KPISummary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation KPIs ===")
	fmt.Fprintf(w, "Simulated Days       : %d\n", s.Days)
	fmt.Fprintf(w, "Units Sold           : %d of %d demanded\n", s.TotalSold, s.TotalDemanded)
	fmt.Fprintf(w, "Revenue              : %s\n", s.Revenue.StringFixed(2))
	if s.Days > 0 {
		fmt.Fprintf(w, "Fill Rate            : %.2f%% (daily p50 %.2f%%, min %.2f%%)\n",
			s.OverallFillRate, s.FillRate.P50, s.FillRate.Min)
		fmt.Fprintf(w, "Stockouts            : %d\n", s.TotalStockouts)
		fmt.Fprintf(w, "Inventory Turnover   : %.2f\n", s.InventoryTurnover)
		fmt.Fprintf(w, "Restock Completion   : %.2f%%\n", s.RestockCompletionPct)
	}
}

func completionPct(granted, requested int64) float64 {
	if requested <= 0 {
		return 100
	}
	return float64(granted) / float64(requested) * 100
}
