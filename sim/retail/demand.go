package retail

import (
	"math"
	"math/rand"

	"github.com/retail-sim/retail-sim/sim"
	"github.com/shopspring/decimal"
)

// DemandSampler draws one day's customer demand for a listing.
type DemandSampler interface {
	// Sample returns a non-negative unit count with the given mean.
	Sample(rng *rand.Rand, mean float64) int64
}

// PoissonDemand draws Poisson-distributed daily demand (variance = mean).
type PoissonDemand struct{}

func (PoissonDemand) Sample(rng *rand.Rand, mean float64) int64 {
	return poissonRand(rng, mean)
}

// GammaPoissonDemand mixes the Poisson mean with a Gamma variate of the given
// coefficient of variation, giving overdispersed (negative binomial) demand.
type GammaPoissonDemand struct {
	cv float64
}

func (g GammaPoissonDemand) Sample(rng *rand.Rand, mean float64) int64 {
	if mean <= 0 || g.cv <= 0 {
		return poissonRand(rng, mean)
	}
	// shape = 1/CV², scale = mean * CV² keeps the mixed mean at mean.
	shape := 1.0 / (g.cv * g.cv)
	return poissonRand(rng, gammaRand(rng, shape, mean*g.cv*g.cv))
}

// NewDemandSampler creates a DemandSampler from the demand config.
func NewDemandSampler(cfg sim.DemandConfig) DemandSampler {
	switch cfg.Process {
	case sim.DemandProcessGammaPoisson:
		return GammaPoissonDemand{cv: cfg.CV}
	case "", sim.DemandProcessPoisson:
		return PoissonDemand{}
	default:
		panic("NewDemandSampler: unknown demand process " + cfg.Process)
	}
}

// ExpectedDemand returns the mean daily demand of a listing:
// base · store factor · (price/base)^elasticity · (1 + lift · sentiment).
func ExpectedDemand(p sim.Product, factor float64, price decimal.Decimal, cfg sim.DemandConfig, sentiment float64) float64 {
	mean := p.BaseDemand * factor
	if p.BasePrice.IsPositive() && price.IsPositive() && cfg.PriceElasticity != 0 {
		ratio, _ := price.Div(p.BasePrice).Float64()
		mean *= math.Pow(ratio, cfg.PriceElasticity)
	}
	mean *= 1 + cfg.SentimentLift*sentiment
	if mean < 0 || math.IsNaN(mean) {
		return 0
	}
	return mean
}

// poissonRand samples Poisson(lambda). Knuth's product method below 30,
// a rounded normal approximation above.
func poissonRand(rng *rand.Rand, lambda float64) int64 {
	if lambda <= 0 {
		return 0
	}
	if lambda >= 30 {
		v := math.Round(lambda + math.Sqrt(lambda)*rng.NormFloat64())
		if v < 0 {
			return 0
		}
		return int64(v)
	}
	limit := math.Exp(-lambda)
	var k int64
	p := rng.Float64()
	for p > limit {
		k++
		p *= rng.Float64()
	}
	return k
}

// gammaRand samples from Gamma(shape, scale) using Marsaglia-Tsang's method.
// For shape < 1: Gamma(shape) = Gamma(shape+1) * U^(1/shape).
func gammaRand(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1.0 {
		u := rng.Float64()
		return gammaRand(rng, shape+1.0, scale) * math.Pow(u, 1.0/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()

		// Squeeze test
		if u < 1.0-0.0331*(x*x)*(x*x) {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v * scale
		}
	}
}
