package sim

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	oneCent = decimal.New(1, -2)
)

// PricingInput is everything the pricing agent looks at for one (store, product).
type PricingInput struct {
	CurrentPrice    decimal.Decimal
	CompetitorPrice decimal.Decimal // zero means unknown
	Stock           int64           // on-hand units
	ReorderPoint    int64
	Forecast        []float64 // short-term forecast, oldest first
	Sentiment       float64   // [-1, 1]
}

// PriceDecision is the pricing agent's output. Changed is false when the
// rounded price equals the current price.
type PriceDecision struct {
	NewPrice  decimal.Decimal
	Changed   bool
	Delta     decimal.Decimal // NewPrice - CurrentPrice
	ChangePct float64         // Delta / CurrentPrice * 100
	Reason    string
}

// PricingAgent adjusts prices from stock pressure, demand trend, competitor
// price and sentiment. Stateless and safe for concurrent use.
type PricingAgent struct {
	cfg PricingConfig
}

// NewPricingAgent creates a PricingAgent. Panics if cfg is invalid.
func NewPricingAgent(cfg PricingConfig) *PricingAgent {
	if err := cfg.Validate(); err != nil {
		panic("NewPricingAgent: " + err.Error())
	}
	return &PricingAgent{cfg: cfg}
}

// StockPressure returns stock relative to its target: the reorder point, or
// the low-stock threshold when the reorder point is 0. An empty target
// with stock on hand reports +Inf; with no stock it reports 0.
func (a *PricingAgent) StockPressure(stock, reorderPoint int64) float64 {
	target := reorderPoint
	if target <= 0 {
		target = a.cfg.LowStockThreshold
	}
	if target <= 0 {
		if stock > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return float64(stock) / float64(target)
}

// IsOverstocked reports whether stock is far enough above its target to warrant a markdown.
func (a *PricingAgent) IsOverstocked(stock, reorderPoint int64) bool {
	if a.cfg.OverstockUnits > 0 && stock > a.cfg.OverstockUnits {
		return true
	}
	return a.StockPressure(stock, reorderPoint) >= a.cfg.OverstockRatio
}

// IsLowStock reports whether stock is at or below its target.
func (a *PricingAgent) IsLowStock(stock, reorderPoint int64) bool {
	return a.StockPressure(stock, reorderPoint) <= 1
}

// Decide returns the new price. The total adjustment is capped at
// max_daily_change_pct of the current price; the result is rounded to cents,
// kept within the cap and always positive. A current price with sub-cent
// digits is normalised to cents even when nothing else moves it.
func (a *PricingAgent) Decide(in PricingInput) (PriceDecision, error) {
	if !in.CurrentPrice.IsPositive() {
		return PriceDecision{}, inputViolation("current price %s must be > 0", in.CurrentPrice)
	}
	if in.CompetitorPrice.IsNegative() {
		return PriceDecision{}, inputViolation("competitor price %s is negative", in.CompetitorPrice)
	}
	if in.Stock < 0 {
		return PriceDecision{}, inputViolation("stock %d is negative", in.Stock)
	}
	if math.IsNaN(in.Sentiment) || in.Sentiment < -1 || in.Sentiment > 1 {
		return PriceDecision{}, inputViolation("sentiment %v outside [-1, 1]", in.Sentiment)
	}
	for _, v := range in.Forecast {
		if math.IsNaN(v) || v < 0 {
			return PriceDecision{}, inputViolation("forecast value %v invalid", v)
		}
	}

	var pct float64
	var reasons []string

	trend := NormalizedTrend(in.Forecast)
	rising := trend > a.cfg.TrendTolerance
	flatOrFalling := !rising
	switch {
	case a.IsOverstocked(in.Stock, in.ReorderPoint) && flatOrFalling:
		pct -= a.cfg.MarkdownPct
		reasons = append(reasons, "overstock")
	case a.IsLowStock(in.Stock, in.ReorderPoint) && rising:
		pct += a.cfg.MarkupPct
		reasons = append(reasons, "low stock, rising demand")
	}

	switch {
	case in.Sentiment < a.cfg.NegativeSentiment:
		pct -= a.cfg.SentimentDiscountPct
		reasons = append(reasons, "negative sentiment")
	case in.Sentiment > a.cfg.PositiveSentiment:
		pct += a.cfg.SentimentPremiumPct
		reasons = append(reasons, "positive sentiment")
	}

	if in.CompetitorPrice.IsPositive() {
		band := decimal.NewFromFloat(a.cfg.CompetitorBandPct).Div(hundred)
		upper := in.CompetitorPrice.Mul(decimal.NewFromInt(1).Add(band))
		lower := in.CompetitorPrice.Mul(decimal.NewFromInt(1).Sub(band))
		switch {
		case in.CurrentPrice.GreaterThan(upper):
			pct -= a.cfg.CompetitionCutPct
			reasons = append(reasons, "above competitor")
		case in.CurrentPrice.LessThan(lower):
			pct += a.cfg.CompetitionLiftPct
			reasons = append(reasons, "below competitor")
		}
	}

	maxPct := a.cfg.MaxDailyChangePct
	if pct > maxPct {
		pct = maxPct
		reasons = append(reasons, "capped")
	} else if pct < -maxPct {
		pct = -maxPct
		reasons = append(reasons, "capped")
	}

	newPrice := a.boundedPrice(in.CurrentPrice, pct)
	delta := newPrice.Sub(in.CurrentPrice)
	changePct, _ := delta.Div(in.CurrentPrice).Mul(hundred).Float64()
	reason := "hold"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}
	return PriceDecision{
		NewPrice:  newPrice,
		Changed:   !delta.IsZero(),
		Delta:     delta,
		ChangePct: changePct,
		Reason:    reason,
	}, nil
}

// boundedPrice applies pct to current, rounds to cents and clamps the result
// into the cent-aligned band [current*(1-max%), current*(1+max%)]. When no
// positive cent value fits in the band the current price is kept, in cents.
func (a *PricingAgent) boundedPrice(current decimal.Decimal, pct float64) decimal.Decimal {
	if pct == 0 {
		return centPrice(current)
	}
	maxFrac := decimal.NewFromFloat(a.cfg.MaxDailyChangePct).Div(hundred)
	one := decimal.NewFromInt(1)
	lo := current.Mul(one.Sub(maxFrac)).RoundCeil(2)
	hi := current.Mul(one.Add(maxFrac)).RoundFloor(2)
	if lo.LessThan(oneCent) {
		lo = oneCent
	}
	if lo.GreaterThan(hi) {
		return centPrice(current)
	}
	factor := one.Add(decimal.NewFromFloat(pct).Div(hundred))
	p := current.Mul(factor).Round(2)
	if p.LessThan(lo) {
		p = lo
	}
	if p.GreaterThan(hi) {
		p = hi
	}
	return p
}

// centPrice rounds p to cents, never below one cent.
func centPrice(p decimal.Decimal) decimal.Decimal {
	p = p.Round(2)
	if p.LessThan(oneCent) {
		return oneCent
	}
	return p
}

// NormalizedTrend returns the least-squares slope of xs divided by its mean.
// Zero for fewer than two points or a zero mean.
func NormalizedTrend(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := MeanFloat(xs)
	if m == 0 {
		return 0
	}
	xbar := float64(n-1) / 2
	var num, den float64
	for i, y := range xs {
		dx := float64(i) - xbar
		num += dx * (y - m)
		den += dx * dx
	}
	return (num / den) / m
}

func (d PriceDecision) String() string {
	return fmt.Sprintf("PriceDecision: (New: %s, Delta: %s, Changed: %t, Reason: %s)",
		d.NewPrice.StringFixed(2), d.Delta.StringFixed(2), d.Changed, d.Reason)
}
