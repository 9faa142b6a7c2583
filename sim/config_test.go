package sim

import (
	"testing"

	"github.com/retail-sim/retail-sim/sim/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Forecast.HorizonDays)
	assert.Equal(t, 1.96, cfg.Optimizer.ServiceLevelZ)
	assert.Equal(t, TieBreakStoreOrder, cfg.Allocation.TieBreak)
}

func TestConfig_Validate_RejectsBadRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"negative days", func(c *Config) { c.Days = -1 }},
		{"zero horizon", func(c *Config) { c.Forecast.HorizonDays = 0 }},
		{"sentiment adjust of one", func(c *Config) { c.Forecast.MaxSentimentAdjust = 1 }},
		{"negative holding cost", func(c *Config) { c.Optimizer.HoldingCost = -0.1 }},
		{"negative z", func(c *Config) { c.Optimizer.ServiceLevelZ = -1 }},
		{"zero max price change", func(c *Config) { c.Pricing.MaxDailyChangePct = 0 }},
		{"max price change of 100", func(c *Config) { c.Pricing.MaxDailyChangePct = 100 }},
		{"inverted sentiment thresholds", func(c *Config) { c.Pricing.NegativeSentiment = 0.5 }},
		{"overstock ratio below one", func(c *Config) { c.Pricing.OverstockRatio = 0.5 }},
		{"unknown tie break", func(c *Config) { c.Allocation.TieBreak = "lottery" }},
		{"zero cas retries", func(c *Config) { c.Allocation.MaxCASRetries = 0 }},
		{"negative replenish quantity", func(c *Config) { c.Warehouse.ReplenishQuantity = -5 }},
		{"competitor drift of 100", func(c *Config) { c.Competitor.DriftPct = 100 }},
		{"unknown demand process", func(c *Config) { c.Demand.Process = "uniform" }},
		{"sentiment lift of one", func(c *Config) { c.Demand.SentimentLift = 1 }},
		{"unknown sentiment source", func(c *Config) { c.Sentiment.Source = "twitter" }},
		{"ollama without model", func(c *Config) { c.Sentiment.Source = SentimentSourceOllama; c.Sentiment.Model = "" }},
		{"sentiment spread above one", func(c *Config) { c.Sentiment.Spread = 1.5 }},
		{"zero recommendation window", func(c *Config) { c.Recommendations.WindowDays = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	// GIVEN a file that only sets a few keys
	path := testutil.WriteTempFile(t, "config.yaml", `
days: 60
seed: 7
forecast:
  horizon_days: 5
pricing:
  max_daily_change_pct: 8
allocation:
  tie_break: largest-remainder
`)

	// WHEN it is loaded
	cfg, err := LoadConfig(path)

	// THEN the listed keys are set and everything else keeps its default
	require.NoError(t, err)
	defaults := NewDefaultConfig()
	assert.Equal(t, 60, cfg.Days)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 5, cfg.Forecast.HorizonDays)
	assert.Equal(t, defaults.Forecast.DefaultDemand, cfg.Forecast.DefaultDemand)
	assert.Equal(t, 8.0, cfg.Pricing.MaxDailyChangePct)
	assert.Equal(t, defaults.Pricing.MarkdownPct, cfg.Pricing.MarkdownPct)
	assert.Equal(t, TieBreakLargestRemainder, cfg.Allocation.TieBreak)
	assert.Equal(t, defaults.Allocation.MaxCASRetries, cfg.Allocation.MaxCASRetries)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_UnknownKeyRejected(t *testing.T) {
	path := testutil.WriteTempFile(t, "config.yaml", "forecast:\n  horizon: 5\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EmptyFileYieldsDefaults(t *testing.T) {
	path := testutil.WriteTempFile(t, "config.yaml", "")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), cfg)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}
