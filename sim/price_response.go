package sim

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Customer response categories returned by PredictResponse.
const (
	ResponseStrongNegative   = "strong-negative"
	ResponseModerateNegative = "moderate-negative"
	ResponseSlightNegative   = "slight-negative"
	ResponseMinimal          = "minimal"
	ResponsePositive         = "positive"
)

// PriceResponseInput describes a contemplated price change.
type PriceResponseInput struct {
	CurrentPrice    decimal.Decimal
	CompetitorPrice decimal.Decimal // zero means unknown
	AvgDailySales   float64
	Sentiment       float64 // [-1, 1]
	ChangePct       float64 // contemplated change in percent
	Elasticity      float64 // base price elasticity, usually negative
}

// PriceResponse is the predicted customer reaction to a price change.
type PriceResponse struct {
	NewPrice           decimal.Decimal
	Elasticity         float64 // after sentiment and competitor adjustments
	DemandChangePct    float64
	ExpectedDailySales float64
	DailyRevenueChange decimal.Decimal
	Assessment         string
}

// PredictResponse estimates how daily sales and revenue react to a price
// change. Positive sentiment dampens the elasticity by 30% and negative
// sentiment amplifies it by 30%; a price rise is dampened by 20% while
// under the competitor and amplified by 40% while over it.
func (a *PricingAgent) PredictResponse(in PriceResponseInput) (PriceResponse, error) {
	if !in.CurrentPrice.IsPositive() {
		return PriceResponse{}, inputViolation("current price %s must be > 0", in.CurrentPrice)
	}
	if in.CompetitorPrice.IsNegative() {
		return PriceResponse{}, inputViolation("competitor price %s is negative", in.CompetitorPrice)
	}
	for _, v := range []float64{in.AvgDailySales, in.ChangePct, in.Elasticity, in.Sentiment} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return PriceResponse{}, inputViolation("price response input %v is not finite", v)
		}
	}
	if in.AvgDailySales < 0 || in.Sentiment < -1 || in.Sentiment > 1 || in.ChangePct <= -100 {
		return PriceResponse{}, inputViolation("price response sales %v, sentiment %v or change %v%% out of range",
			in.AvgDailySales, in.Sentiment, in.ChangePct)
	}

	e := in.Elasticity
	switch {
	case in.Sentiment > a.cfg.PositiveSentiment:
		e *= 0.7
	case in.Sentiment < a.cfg.NegativeSentiment:
		e *= 1.3
	}
	if in.ChangePct > 0 && in.CompetitorPrice.IsPositive() {
		switch {
		case in.CurrentPrice.LessThan(in.CompetitorPrice):
			e *= 0.8
		case in.CurrentPrice.GreaterThan(in.CompetitorPrice):
			e *= 1.4
		}
	}

	demandChange := in.ChangePct * e
	expected := max(in.AvgDailySales*(1+demandChange/100), 0)
	newPrice := in.CurrentPrice.Mul(decimal.NewFromFloat(1 + in.ChangePct/100)).Round(2)
	before := in.CurrentPrice.Mul(decimal.NewFromFloat(in.AvgDailySales))
	after := newPrice.Mul(decimal.NewFromFloat(expected))
	return PriceResponse{
		NewPrice:           newPrice,
		Elasticity:         e,
		DemandChangePct:    demandChange,
		ExpectedDailySales: expected,
		DailyRevenueChange: after.Sub(before).Round(2),
		Assessment:         assessResponse(demandChange),
	}, nil
}

func assessResponse(demandChangePct float64) string {
	switch {
	case demandChangePct < -20:
		return ResponseStrongNegative
	case demandChangePct < -10:
		return ResponseModerateNegative
	case demandChangePct < -5:
		return ResponseSlightNegative
	case demandChangePct < 5:
		return ResponseMinimal
	default:
		return ResponsePositive
	}
}

func (r PriceResponse) String() string {
	return fmt.Sprintf("PriceResponse: (New: %s, Demand: %+.1f%%, Sales/day: %.1f, Revenue/day: %s, %s)",
		r.NewPrice.StringFixed(2), r.DemandChangePct, r.ExpectedDailySales, r.DailyRevenueChange.StringFixed(2), r.Assessment)
}
