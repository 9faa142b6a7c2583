package sim

import (
	"math"
)

// Forecaster turns a trailing window of observed daily sales into a demand
// prediction. It is stateless; one instance may be shared across goroutines.
type Forecaster struct {
	cfg ForecastConfig
}

// NewForecaster creates a Forecaster. Panics if cfg is invalid.
func NewForecaster(cfg ForecastConfig) *Forecaster {
	if err := cfg.Validate(); err != nil {
		panic("NewForecaster: " + err.Error())
	}
	return &Forecaster{cfg: cfg}
}

// WindowDays returns the number of trailing observations the forecaster consumes (0 = all).
func (f *Forecaster) WindowDays() int {
	return f.cfg.WindowDays
}

// Forecast returns exactly horizon non-negative predicted daily demands.
//
// An empty window is a cold start and yields horizon copies of the configured
// default demand. Otherwise the level is a linearly weighted moving average
// (newest observation weighted highest). When the window covers two full trend
// blocks, the block-to-block change is ramped in across the horizon.
// The sentiment multiplier is applied last and never drives demand below zero.
func (f *Forecaster) Forecast(window []int64, sentiment float64, horizon int) ([]float64, error) {
	if horizon <= 0 {
		return nil, inputViolation("forecast horizon %d must be > 0", horizon)
	}
	if math.IsNaN(sentiment) || sentiment < -1 || sentiment > 1 {
		return nil, inputViolation("sentiment %v outside [-1, 1]", sentiment)
	}
	for i, v := range window {
		if v < 0 {
			return nil, inputViolation("history value %d at index %d is negative", v, i)
		}
	}
	if f.cfg.WindowDays > 0 && len(window) > f.cfg.WindowDays {
		window = window[len(window)-f.cfg.WindowDays:]
	}

	mult := f.sentimentMultiplier(sentiment)
	out := make([]float64, horizon)

	if len(window) == 0 {
		for i := range out {
			out[i] = math.Max(0, f.cfg.DefaultDemand*mult)
		}
		return out, nil
	}

	level := weightedMovingAverage(window)
	trend := 0.0
	if k := f.cfg.TrendDays; k > 0 && len(window) >= 2*k {
		recent := mean(window[len(window)-k:])
		prior := mean(window[len(window)-2*k : len(window)-k])
		trend = recent - prior
	}
	for i := range out {
		ramp := math.Min(1, float64(i+1)/float64(horizon))
		out[i] = math.Max(0, (level+trend*ramp)*mult)
	}
	return out, nil
}

// ColdStartSigma is the demand standard deviation assumed without history.
func (f *Forecaster) ColdStartSigma() float64 {
	return f.cfg.DefaultDemand * f.cfg.ColdStartCV
}

func (f *Forecaster) sentimentMultiplier(s float64) float64 {
	adj := (s - f.cfg.SentimentNeutral) * f.cfg.SentimentSensitivity
	adj = math.Max(-f.cfg.MaxSentimentAdjust, math.Min(f.cfg.MaxSentimentAdjust, adj))
	return 1 + adj
}

// DemandStats returns the mean and population standard deviation of window.
// Both are 0 for an empty window.
func DemandStats(window []int64) (mu, sigma float64) {
	if len(window) == 0 {
		return 0, 0
	}
	mu = mean(window)
	var ss float64
	for _, v := range window {
		d := float64(v) - mu
		ss += d * d
	}
	return mu, math.Sqrt(ss / float64(len(window)))
}

// MeanFloat returns the arithmetic mean of xs, or 0 when empty.
func MeanFloat(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func weightedMovingAverage(window []int64) float64 {
	var num, den float64
	for i, v := range window {
		w := float64(i + 1)
		num += w * float64(v)
		den += w
	}
	return num / den
}

func mean(window []int64) float64 {
	var sum float64
	for _, v := range window {
		sum += float64(v)
	}
	return sum / float64(len(window))
}
