package sim

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func categories(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Category
	}
	return out
}

func healthyDay(day int) DailyKpiSnapshot {
	return DailyKpiSnapshot{
		Day:               day,
		FillRate:          99,
		InventoryTurnover: 4,
		RestockRequested:  100,
		RestockGranted:    100,
	}
}

func TestRecommend_HealthyRunYieldsSystemOptimization(t *testing.T) {
	th := NewDefaultConfig().Recommendations
	recs := Recommend([]DailyKpiSnapshot{healthyDay(0), healthyDay(1)}, th)
	require.Len(t, recs, 1)
	assert.Equal(t, "System Optimization", recs[0].Category)
	assert.Equal(t, PriorityLow, recs[0].Priority)

	assert.Equal(t, []string{"System Optimization"}, categories(Recommend(nil, th)))
}

func TestRecommend_Rules(t *testing.T) {
	th := NewDefaultConfig().Recommendations
	tests := []struct {
		name     string
		mutate   func(s *DailyKpiSnapshot)
		category string
		priority Priority
	}{
		{"low fill rate", func(s *DailyKpiSnapshot) { s.FillRate = 80 }, "Low Fill Rate", PriorityHigh},
		{"low turnover", func(s *DailyKpiSnapshot) { s.InventoryTurnover = 1.5 }, "Low Inventory Turnover", PriorityMedium},
		{"incomplete restocks", func(s *DailyKpiSnapshot) { s.RestockGranted = 50 }, "Incomplete Restocks", PriorityHigh},
		{"overstock", func(s *DailyKpiSnapshot) { s.OverstockCount = 3 }, "Excessive Inventory", PriorityMedium},
		{"markdowns", func(s *DailyKpiSnapshot) {
			s.PriceChanges = []PriceChange{{Delta: dec("-0.10")}, {Delta: dec("-0.20")}}
		}, "Frequent Markdowns", PriorityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day := healthyDay(0)
			tt.mutate(&day)
			recs := Recommend([]DailyKpiSnapshot{day}, th)
			require.Len(t, recs, 1, "got %v", categories(recs))
			assert.Equal(t, tt.category, recs[0].Category)
			assert.Equal(t, tt.priority, recs[0].Priority)
			assert.NotEmpty(t, recs[0].Text)
			assert.NotEmpty(t, recs[0].ExpectedImpact)
		})
	}
}

func TestRecommend_FillRateUsesTrailingWindow(t *testing.T) {
	// GIVEN a bad first week followed by a good week
	th := NewDefaultConfig().Recommendations // 7-day window
	var snaps []DailyKpiSnapshot
	for d := 0; d < 14; d++ {
		s := healthyDay(d)
		if d < 7 {
			s.FillRate = 50
		}
		snaps = append(snaps, s)
	}

	// THEN only the recent window counts
	assert.Equal(t, []string{"System Optimization"}, categories(Recommend(snaps, th)))

	// WHEN the window covers the bad week too
	th.WindowDays = 14
	assert.Equal(t, []string{"Low Fill Rate"}, categories(Recommend(snaps, th)))
}

func TestRecommend_IsRegeneratedNotAccumulated(t *testing.T) {
	th := NewDefaultConfig().Recommendations
	bad := healthyDay(0)
	bad.FillRate = 10
	snaps := []DailyKpiSnapshot{bad}

	first := Recommend(snaps, th)
	second := Recommend(snaps, th)
	assert.Equal(t, first, second)
}

func TestRecommend_MultipleRulesKeepOrder(t *testing.T) {
	th := NewDefaultConfig().Recommendations
	day := healthyDay(0)
	day.FillRate = 60
	day.InventoryTurnover = 0.5
	day.OverstockCount = 2
	assert.Equal(t, []string{"Low Fill Rate", "Low Inventory Turnover", "Excessive Inventory"},
		categories(Recommend([]DailyKpiSnapshot{day}, th)))
}

func TestPriority_JSON(t *testing.T) {
	data, err := json.Marshal(Recommendation{Category: "x", Priority: PriorityMedium})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"priority":"Medium"`)
	assert.Equal(t, "Priority(7)", Priority(7).String())
}

func TestSummarizePrices(t *testing.T) {
	snaps := []DailyKpiSnapshot{
		{PriceChanges: []PriceChange{{Delta: dec("-0.50"), ChangePct: -5}, {Delta: dec("0.30"), ChangePct: 3}}},
		{PriceChanges: []PriceChange{{Delta: dec("-1.00"), ChangePct: -10}}},
	}
	s := SummarizePrices(snaps)
	assert.Equal(t, 3, s.Changes)
	assert.Equal(t, 1, s.Increases)
	assert.Equal(t, 2, s.Decreases)
	assert.Equal(t, 6.0, s.MeanAbsChangePct)
	assert.Equal(t, 10.0, s.MaxAbsChangePct)

	assert.Equal(t, PriceSummary{}, SummarizePrices(nil))
}
