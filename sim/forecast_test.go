package sim

import (
	"math"
	"testing"

	"github.com/retail-sim/retail-sim/sim/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testForecaster(trendDays int) *Forecaster {
	cfg := NewDefaultForecastConfig()
	cfg.TrendDays = trendDays
	return NewForecaster(cfg)
}

func TestForecast_ColdStart_ReturnsDefaultForHorizon(t *testing.T) {
	// GIVEN an empty history and horizon 3
	f := testForecaster(7)

	// WHEN forecasting with neutral sentiment
	got, err := f.Forecast(nil, 0, 3)

	// THEN three copies of the default demand come back, not an error
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 10, 10}, got)
}

func TestForecast_WeightedMovingAverage(t *testing.T) {
	f := testForecaster(0)

	flat, err := f.Forecast([]int64{10, 10, 10}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 10}, flat)

	// newest observation weighted 2, oldest 1
	got, err := f.Forecast([]int64{0, 10}, 0, 1)
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "wma", 20.0/3.0, got[0], 1e-12)
}

func TestForecast_TrendRampsAcrossHorizon(t *testing.T) {
	// GIVEN two trend blocks of 2 days: [10,10] then [20,20]
	f := testForecaster(2)

	got, err := f.Forecast([]int64{10, 10, 20, 20}, 0, 2)

	// THEN level 17 plus trend 10 ramped by 1/2 then fully
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "day0", 22, got[0], 1e-12)
	testutil.AssertFloat64Equal(t, "day1", 27, got[1], 1e-12)
}

func TestForecast_FallingTrendFlooredAtZero(t *testing.T) {
	f := testForecaster(2)
	got, err := f.Forecast([]int64{100, 100, 0, 0}, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, got)
}

func TestForecast_ShortWindowSkipsTrend(t *testing.T) {
	f := testForecaster(7)
	got, err := f.Forecast([]int64{4, 4, 4, 4}, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 4, 4, 4, 4}, got)
}

func TestForecast_SentimentMultiplierBounded(t *testing.T) {
	f := testForecaster(0) // sensitivity 0.2, cap 0.25

	tests := []struct {
		name      string
		sentiment float64
		want      float64
	}{
		{"neutral", 0, 10},
		{"positive", 1, 12},
		{"negative", -1, 8},
		{"mild positive", 0.5, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Forecast(nil, tt.sentiment, 1)
			require.NoError(t, err)
			testutil.AssertFloat64Equal(t, tt.name, tt.want, got[0], 1e-12)
		})
	}
}

func TestForecast_CapClampsStrongSensitivity(t *testing.T) {
	cfg := NewDefaultForecastConfig()
	cfg.SentimentSensitivity = 5
	cfg.MaxSentimentAdjust = 0.5
	f := NewForecaster(cfg)

	got, err := f.Forecast([]int64{10}, -1, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, got)
}

func TestForecast_WindowDaysLimitsHistory(t *testing.T) {
	cfg := NewDefaultForecastConfig()
	cfg.WindowDays = 2
	cfg.TrendDays = 0
	f := NewForecaster(cfg)

	got, err := f.Forecast([]int64{1000, 1000, 6, 6}, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{6}, got)
}

func TestForecast_InputViolations(t *testing.T) {
	f := testForecaster(7)
	tests := []struct {
		name      string
		window    []int64
		sentiment float64
		horizon   int
	}{
		{"zero horizon", nil, 0, 0},
		{"negative horizon", nil, 0, -3},
		{"negative history", []int64{3, -1}, 0, 3},
		{"sentiment above range", nil, 1.5, 3},
		{"sentiment NaN", nil, math.NaN(), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Forecast(tt.window, tt.sentiment, tt.horizon)
			assert.ErrorIs(t, err, ErrInputViolation)
		})
	}
}

func TestForecast_LengthAndNonNegativity(t *testing.T) {
	// GIVEN assorted windows and horizons
	f := testForecaster(3)
	windows := [][]int64{nil, {0}, {5, 0, 0, 0, 0, 0}, {1, 2, 3, 4, 5, 6, 7, 8}, {9, 0, 9, 0, 9, 0, 9}}
	for _, w := range windows {
		for _, h := range []int{1, 3, 14} {
			for _, s := range []float64{-1, 0, 1} {
				got, err := f.Forecast(w, s, h)
				require.NoError(t, err)
				// THEN the length is exactly H and every value is >= 0
				assert.Len(t, got, h)
				for _, v := range got {
					assert.GreaterOrEqual(t, v, 0.0)
					assert.False(t, math.IsNaN(v))
				}
			}
		}
	}
}

func TestNewForecaster_PanicsOnInvalidConfig(t *testing.T) {
	cfg := NewDefaultForecastConfig()
	cfg.HorizonDays = 0
	assert.Panics(t, func() { NewForecaster(cfg) })
}

func TestDemandStats(t *testing.T) {
	mu, sigma := DemandStats([]int64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 5.0, mu)
	assert.Equal(t, 2.0, sigma)

	mu, sigma = DemandStats(nil)
	assert.Equal(t, 0.0, mu)
	assert.Equal(t, 0.0, sigma)
}

func TestMeanFloat(t *testing.T) {
	assert.Equal(t, 0.0, MeanFloat(nil))
	assert.Equal(t, 2.5, MeanFloat([]float64{1, 2, 3, 4}))
}
