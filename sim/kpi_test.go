package sim

import (
	"bytes"
	"testing"

	"github.com/retail-sim/retail-sim/sim/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillRate(t *testing.T) {
	tests := []struct {
		name           string
		sold, demanded int64
		want           float64
	}{
		{"zero demand is full", 0, 0, 100},
		{"all sold", 10, 10, 100},
		{"half sold", 5, 10, 50},
		{"nothing sold", 0, 8, 0},
		{"over-count capped", 12, 10, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FillRate(tt.sold, tt.demanded))
		})
	}
}

func TestKPIAggregator_Record(t *testing.T) {
	// GIVEN two pairs, one of which stocked out
	agg := NewKPIAggregator()
	pairs := []PairOutcome{
		{StoreID: "s1", ProductID: "p1", Demanded: 10, Sold: 10, OnHand: 30, Revenue: dec("50.00")},
		{StoreID: "s2", ProductID: "p1", Demanded: 10, Sold: 6, OnHand: 0, Stockout: true, Revenue: dec("30.00"), LowStock: true},
	}
	req := mustRequests(t, "p1", 20, 20)
	restocks := []RestockResult{newRestockResult(req[0], 20), newRestockResult(req[1], 5)}
	prices := []PriceChange{{Day: 0, StoreID: "s1", ProductID: "p1", Delta: dec("-0.50")}}

	// WHEN the day is recorded
	snap := agg.Record(0, pairs, restocks, prices)

	// THEN the day's KPIs are aggregated
	assert.Equal(t, int64(16), snap.UnitsSold)
	assert.Equal(t, int64(20), snap.UnitsDemanded)
	assert.Equal(t, 80.0, snap.FillRate)
	assert.Equal(t, 1, snap.StockoutCount)
	assert.Equal(t, 1, snap.LowStockCount)
	assert.Equal(t, int64(30), snap.TotalOnHand)
	assert.Equal(t, 15.0, snap.AverageInventory)
	assert.True(t, dec("80").Equal(snap.Revenue))
	assert.Equal(t, int64(40), snap.RestockRequested)
	assert.Equal(t, int64(25), snap.RestockGranted)
	assert.Equal(t, int64(15), snap.RestockBackordered)
	testutil.AssertFloat64Equal(t, "turnover", 16.0/30.0, snap.InventoryTurnover, 1e-12)
	assert.Len(t, snap.PriceChanges, 1)
}

func TestKPIAggregator_RunningTurnoverUsesFullHistory(t *testing.T) {
	agg := NewKPIAggregator()
	agg.Record(0, []PairOutcome{{Sold: 10, Demanded: 10, OnHand: 100}}, nil, nil)
	agg.Record(1, []PairOutcome{{Sold: 20, Demanded: 20, OnHand: 50}}, nil, nil)
	snap := agg.Record(2, []PairOutcome{{Sold: 30, Demanded: 30, OnHand: 0}}, nil, nil)

	// cumulative sold 60 over mean on-hand (100+50+0)/3 = 50
	testutil.AssertFloat64Equal(t, "turnover", 1.2, snap.InventoryTurnover, 1e-12)
	assert.Equal(t, 3, agg.Len())
}

func TestKPIAggregator_ZeroDemandDayIsFullFillRate(t *testing.T) {
	agg := NewKPIAggregator()
	snap := agg.Record(0, []PairOutcome{{OnHand: 5}, {OnHand: 0}}, nil, nil)
	assert.Equal(t, 100.0, snap.FillRate)
	assert.Equal(t, 0, snap.StockoutCount)
}

func TestKPIAggregator_SnapshotsAreImmutable(t *testing.T) {
	agg := NewKPIAggregator()
	prices := []PriceChange{{Reason: "overstock"}}
	agg.Record(0, []PairOutcome{{Sold: 1, Demanded: 1}}, nil, prices)

	prices[0].Reason = "mutated by caller"
	snaps := agg.Snapshots()
	snaps[0].UnitsSold = 99
	snaps[0].PriceChanges[0].Reason = "mutated by reader"

	again := agg.Snapshots()
	assert.Equal(t, int64(1), again[0].UnitsSold)
	assert.Equal(t, "overstock", again[0].PriceChanges[0].Reason)
}

func TestNewDistribution(t *testing.T) {
	d := NewDistribution([]float64{5, 1, 3, 2, 4})
	assert.Equal(t, 3.0, d.Mean)
	assert.Equal(t, 3.0, d.P50)
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 5.0, d.Max)
	assert.Equal(t, 5, d.Count)
	testutil.AssertFloat64Equal(t, "p95", 4.8, d.P95, 1e-12)

	assert.Equal(t, Distribution{}, NewDistribution(nil))
}

func TestSummarize_AndPrint(t *testing.T) {
	agg := NewKPIAggregator()
	req := mustRequests(t, "p1", 10)
	agg.Record(0, []PairOutcome{{Sold: 8, Demanded: 10, OnHand: 20, Revenue: dec("16.00")}},
		[]RestockResult{newRestockResult(req[0], 5)}, nil)
	agg.Record(1, []PairOutcome{{Sold: 10, Demanded: 10, OnHand: 10, Revenue: dec("20.00"), Stockout: false}}, nil, nil)

	s := Summarize(agg.Snapshots())
	assert.Equal(t, 2, s.Days)
	assert.Equal(t, int64(18), s.TotalSold)
	testutil.AssertFloat64Equal(t, "overall fill", 90, s.OverallFillRate, 1e-12)
	assert.Equal(t, 50.0, s.RestockCompletionPct)
	assert.True(t, decimal.RequireFromString("36").Equal(s.Revenue))
	assert.Equal(t, 80.0, s.FillRate.Min)

	var buf bytes.Buffer
	s.Print(&buf)
	require.Contains(t, buf.String(), "=== Simulation KPIs ===")
	assert.Contains(t, buf.String(), "Revenue              : 36.00")
	assert.Contains(t, buf.String(), "Restock Completion   : 50.00%")
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.Days)
	assert.Equal(t, 100.0, s.OverallFillRate)
	assert.Equal(t, 100.0, s.RestockCompletionPct)
}
