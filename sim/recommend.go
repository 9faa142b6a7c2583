package sim

import (
	"fmt"
	"math"
)

// Priority ranks a recommendation.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// MarshalText renders the priority name in JSON reports.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Recommendation is derived read-only from the KPI history.
type Recommendation struct {
	Category       string   `json:"category"`
	Priority       Priority `json:"priority"`
	Text           string   `json:"text"`
	ExpectedImpact string   `json:"expected_impact"`
}

// Recommend evaluates the snapshot history against th and returns a fresh
// recommendation list. Rules look at the trailing window of th.WindowDays
// except turnover, which is already a running figure over the whole run.
// With no triggered rule a single Low "System Optimization" entry is returned.
func Recommend(snaps []DailyKpiSnapshot, th RecommendationConfig) []Recommendation {
	if len(snaps) == 0 {
		return []Recommendation{systemOptimization()}
	}
	window := snaps
	if th.WindowDays > 0 && len(window) > th.WindowDays {
		window = window[len(window)-th.WindowDays:]
	}
	latest := snaps[len(snaps)-1]

	var fillSum float64
	var requested, granted int64
	var markdowns, markups int
	for _, s := range window {
		fillSum += s.FillRate
		requested += s.RestockRequested
		granted += s.RestockGranted
		for _, pc := range s.PriceChanges {
			switch {
			case pc.Delta.IsNegative():
				markdowns++
			case pc.Delta.IsPositive():
				markups++
			}
		}
	}
	fill := fillSum / float64(len(window))

	var recs []Recommendation
	if fill < th.FillRatePct {
		recs = append(recs, Recommendation{
			Category:       "Low Fill Rate",
			Priority:       PriorityHigh,
			Text:           fmt.Sprintf("Fill rate averaged %.1f%% over the last %d days. Increase safety stock levels or improve demand forecasting to prevent stockouts.", fill, len(window)),
			ExpectedImpact: "Reduce stockout rate by 30-40% with minimal inventory cost increase.",
		})
	}
	if latest.InventoryTurnover < th.Turnover {
		recs = append(recs, Recommendation{
			Category:       "Low Inventory Turnover",
			Priority:       PriorityMedium,
			Text:           fmt.Sprintf("Inventory turnover is %.2f. Reduce overall inventory levels for slow-moving products to improve capital efficiency.", latest.InventoryTurnover),
			ExpectedImpact: "Lower holding cost and free working capital.",
		})
	}
	if completion := completionPct(granted, requested); completion < th.RestockCompletionPct {
		recs = append(recs, Recommendation{
			Category:       "Incomplete Restocks",
			Priority:       PriorityHigh,
			Text:           fmt.Sprintf("Only %.1f%% of requested restock units were granted. Investigate supplier performance and consider alternate suppliers for more reliable replenishment.", completion),
			ExpectedImpact: "Fewer backorders and more reliable shelf availability.",
		})
	}
	if latest.OverstockCount > 0 {
		recs = append(recs, Recommendation{
			Category:       "Excessive Inventory",
			Priority:       PriorityMedium,
			Text:           fmt.Sprintf("Consider promotions or price adjustments for %d overstocked items to reduce holding costs.", latest.OverstockCount),
			ExpectedImpact: "Reduce overstock by 25% and improve cash flow.",
		})
	}
	if th.MarkdownRatio > 0 && markdowns > 0 && float64(markdowns) >= th.MarkdownRatio*math.Max(1, float64(markups)) {
		recs = append(recs, Recommendation{
			Category:       "Frequent Markdowns",
			Priority:       PriorityLow,
			Text:           fmt.Sprintf("%d markdowns against %d markups in the last %d days. Review order quantities for products that are repeatedly discounted.", markdowns, markups, len(window)),
			ExpectedImpact: "Protect margin by ordering closer to demand.",
		})
	}
	if len(recs) == 0 {
		recs = append(recs, systemOptimization())
	}
	return recs
}

func systemOptimization() Recommendation {
	return Recommendation{
		Category:       "System Optimization",
		Priority:       PriorityLow,
		Text:           "Continue monitoring system performance and refine forecasting models.",
		ExpectedImpact: "Increase forecast accuracy and reduce safety stock requirements.",
	}
}

// PriceSummary is the price-optimization summary of a run.
type PriceSummary struct {
	Changes          int     `json:"changes"`
	Increases        int     `json:"increases"`
	Decreases        int     `json:"decreases"`
	MeanAbsChangePct float64 `json:"mean_abs_change_pct"`
	MaxAbsChangePct  float64 `json:"max_abs_change_pct"`
}

// SummarizePrices folds every recorded price change.
func SummarizePrices(snaps []DailyKpiSnapshot) PriceSummary {
	var s PriceSummary
	var absSum float64
	for _, snap := range snaps {
		for _, pc := range snap.PriceChanges {
			s.Changes++
			if pc.Delta.IsPositive() {
				s.Increases++
			} else if pc.Delta.IsNegative() {
				s.Decreases++
			}
			abs := math.Abs(pc.ChangePct)
			absSum += abs
			s.MaxAbsChangePct = math.Max(s.MaxAbsChangePct, abs)
		}
	}
	if s.Changes > 0 {
		s.MeanAbsChangePct = absSum / float64(s.Changes)
	}
	return s
}
