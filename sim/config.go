package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ForecastConfig groups demand forecaster parameters.
type ForecastConfig struct {
	HorizonDays          int     `yaml:"horizon_days"`          // forecast length H (must be > 0)
	WindowDays           int     `yaml:"window_days"`           // trailing history window consumed (0 = all retained)
	TrendDays            int     `yaml:"trend_days"`            // block size for the trend term (0 disables trend)
	DefaultDemand        float64 `yaml:"default_demand"`        // cold-start daily demand
	ColdStartCV          float64 `yaml:"cold_start_cv"`         // cold-start sigma as a fraction of default demand
	SentimentNeutral     float64 `yaml:"sentiment_neutral"`     // score with no demand effect
	SentimentSensitivity float64 `yaml:"sentiment_sensitivity"` // multiplier change per unit of sentiment
	MaxSentimentAdjust   float64 `yaml:"max_sentiment_adjust"`  // |multiplier - 1| cap, must be < 1
}

// OptimizerConfig groups reorder economics parameters.
type OptimizerConfig struct {
	ServiceLevelZ       float64 `yaml:"service_level_z"`        // z factor (1.96 ~ 97.5%)
	OrderingCost        float64 `yaml:"ordering_cost"`          // S, cost per order
	HoldingCost         float64 `yaml:"holding_cost"`           // H, cost per unit per day
	DefaultLeadTimeDays int     `yaml:"default_lead_time_days"` // used when a product has none

	Policy    string          `yaml:"policy"` // see ValidReorderPolicies
	QLearning QLearningConfig `yaml:"q_learning"`
}

// QLearningConfig tunes the q-learning reorder policy.
type QLearningConfig struct {
	LearningRate    float64 `yaml:"learning_rate"`    // alpha, in (0, 1]
	DiscountFactor  float64 `yaml:"discount_factor"`  // gamma, in [0, 1)
	ExplorationRate float64 `yaml:"exploration_rate"` // chance of falling back to the EOQ rule in a learned state
	StockoutPenalty float64 `yaml:"stockout_penalty"` // reward charge per unmet unit, as a fraction of price
}

// PricingConfig groups pricing agent parameters. Percentages are in percent units (5 = 5%).
type PricingConfig struct {
	MaxDailyChangePct    float64 `yaml:"max_daily_change_pct"`
	LowStockThreshold    int64   `yaml:"low_stock_threshold"` // stands in for a zero reorder point
	OverstockRatio       float64 `yaml:"overstock_ratio"`     // stock >= ratio * reorder point is overstock
	OverstockUnits       int64   `yaml:"overstock_units"`     // absolute overstock level (0 disables)
	TrendTolerance       float64 `yaml:"trend_tolerance"`     // normalized slope treated as flat
	MarkdownPct          float64 `yaml:"markdown_pct"`
	MarkupPct            float64 `yaml:"markup_pct"`
	NegativeSentiment    float64 `yaml:"negative_sentiment"`
	PositiveSentiment    float64 `yaml:"positive_sentiment"`
	SentimentDiscountPct float64 `yaml:"sentiment_discount_pct"`
	SentimentPremiumPct  float64 `yaml:"sentiment_premium_pct"`
	CompetitorBandPct    float64 `yaml:"competitor_band_pct"` // tolerated gap to competitor price
	CompetitionCutPct    float64 `yaml:"competition_cut_pct"`
	CompetitionLiftPct   float64 `yaml:"competition_lift_pct"`
}

// AllocationConfig groups warehouse allocation parameters.
type AllocationConfig struct {
	TieBreak      string `yaml:"tie_break"`       // see ValidTieBreakPolicies
	MaxCASRetries int    `yaml:"max_cas_retries"` // ledger compare-and-decrement attempts per pass
}

// WarehouseConfig groups supplier replenishment of the central warehouse.
type WarehouseConfig struct {
	ReplenishThreshold int64 `yaml:"replenish_threshold"`
	ReplenishQuantity  int64 `yaml:"replenish_quantity"` // 0 disables replenishment
	SupplierLeadDays   int   `yaml:"supplier_lead_days"` // default supplier, for products without scenario suppliers
	// LeadTimePenalty is the cost charged per day of supplier lead time when
	// choosing between a product's scenario suppliers.
	LeadTimePenalty float64 `yaml:"lead_time_penalty"`
}

// DemandConfig shapes the simulated customer demand that stores consume.
type DemandConfig struct {
	Process         string  `yaml:"process"`          // "poisson" or "gamma-poisson"
	CV              float64 `yaml:"cv"`               // gamma-poisson mixing coefficient of variation
	PriceElasticity float64 `yaml:"price_elasticity"` // d(ln demand)/d(ln price), usually negative
	SentimentLift   float64 `yaml:"sentiment_lift"`   // demand multiplier per unit of sentiment
}

// CompetitorConfig controls the daily competitor price walk.
type CompetitorConfig struct {
	DriftPct float64 `yaml:"drift_pct"` // max daily move in percent (0 = static)
}

// SentimentConfig selects the sentiment scorer.
type SentimentConfig struct {
	Source         string  `yaml:"source"` // "neutral", "seeded" or "ollama"
	Spread         float64 `yaml:"spread"` // seeded scores lie in [-spread, spread]
	URL            string  `yaml:"url"`    // ollama base URL
	Model          string  `yaml:"model"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// Sentiment sources.
const (
	SentimentSourceNeutral = "neutral"
	SentimentSourceSeeded  = "seeded"
	SentimentSourceOllama  = "ollama"
)

// RecommendationConfig holds the thresholds recommendations are evaluated against.
type RecommendationConfig struct {
	WindowDays           int     `yaml:"window_days"`
	FillRatePct          float64 `yaml:"fill_rate_pct"`
	Turnover             float64 `yaml:"turnover"`
	RestockCompletionPct float64 `yaml:"restock_completion_pct"`
	MarkdownRatio        float64 `yaml:"markdown_ratio"`
}

// Config is the full set of options recognized by the simulation core.
type Config struct {
	Days        int   `yaml:"days"`
	Seed        int64 `yaml:"seed"`
	Workers     int   `yaml:"workers"`      // store-level parallelism (>= 1)
	HistoryDays int   `yaml:"history_days"` // warm-start demand history length
	NumStores   int   `yaml:"num_stores"`   // synthetic catalog size when no scenario file is given
	NumProducts int   `yaml:"num_products"`

	Forecast        ForecastConfig       `yaml:"forecast"`
	Optimizer       OptimizerConfig      `yaml:"optimizer"`
	Pricing         PricingConfig        `yaml:"pricing"`
	Allocation      AllocationConfig     `yaml:"allocation"`
	Warehouse       WarehouseConfig      `yaml:"warehouse"`
	Demand          DemandConfig         `yaml:"demand"`
	Competitor      CompetitorConfig     `yaml:"competitor"`
	Sentiment       SentimentConfig      `yaml:"sentiment"`
	Recommendations RecommendationConfig `yaml:"recommendations"`
}

// Demand processes for customer arrivals per (store, product) and day.
const (
	DemandProcessPoisson      = "poisson"
	DemandProcessGammaPoisson = "gamma-poisson"
)

// IsValidDemandProcess returns true for a recognized demand process name.
// The empty string selects Poisson.
func IsValidDemandProcess(name string) bool {
	return name == "" || name == DemandProcessPoisson || name == DemandProcessGammaPoisson
}

// NewDefaultForecastConfig returns the forecaster defaults.
func NewDefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		HorizonDays:          3,
		WindowDays:           30,
		TrendDays:            7,
		DefaultDemand:        10,
		ColdStartCV:          0.3,
		SentimentNeutral:     0,
		SentimentSensitivity: 0.2,
		MaxSentimentAdjust:   0.25,
	}
}

// NewDefaultOptimizerConfig returns the optimizer defaults.
func NewDefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		ServiceLevelZ:       1.96,
		OrderingCost:        15,
		HoldingCost:         0.05,
		DefaultLeadTimeDays: 2,
		Policy:              ReorderPolicyEOQ,
		QLearning: QLearningConfig{
			LearningRate:    0.1,
			DiscountFactor:  0.9,
			ExplorationRate: 0.2,
			StockoutPenalty: 0.1,
		},
	}
}

// NewDefaultPricingConfig returns the pricing defaults.
func NewDefaultPricingConfig() PricingConfig {
	return PricingConfig{
		MaxDailyChangePct:    10,
		LowStockThreshold:    10,
		OverstockRatio:       3,
		OverstockUnits:       200,
		TrendTolerance:       0.02,
		MarkdownPct:          5,
		MarkupPct:            3,
		NegativeSentiment:    -0.4,
		PositiveSentiment:    0.4,
		SentimentDiscountPct: 3,
		SentimentPremiumPct:  2,
		CompetitorBandPct:    10,
		CompetitionCutPct:    4,
		CompetitionLiftPct:   2,
	}
}

// NewDefaultConfig returns a Config with every section at its default.
func NewDefaultConfig() Config {
	return Config{
		Days:        30,
		Seed:        42,
		Workers:     4,
		HistoryDays: 14,
		NumStores:   3,
		NumProducts: 5,
		Forecast:    NewDefaultForecastConfig(),
		Optimizer:   NewDefaultOptimizerConfig(),
		Pricing:     NewDefaultPricingConfig(),
		Allocation: AllocationConfig{
			TieBreak:      TieBreakStoreOrder,
			MaxCASRetries: 8,
		},
		Warehouse: WarehouseConfig{
			ReplenishThreshold: 100,
			ReplenishQuantity:  400,
			SupplierLeadDays:   3,
			LeadTimePenalty:    10,
		},
		Demand: DemandConfig{
			Process:         DemandProcessPoisson,
			CV:              0.5,
			PriceElasticity: -1.5,
			SentimentLift:   0.15,
		},
		Competitor: CompetitorConfig{DriftPct: 2},
		Sentiment: SentimentConfig{
			Source:         SentimentSourceSeeded,
			Spread:         0.6,
			URL:            "http://localhost:11434",
			Model:          "llama3",
			TimeoutSeconds: 10,
		},
		Recommendations: RecommendationConfig{
			WindowDays:           7,
			FillRatePct:          95,
			Turnover:             2,
			RestockCompletionPct: 90,
			MarkdownRatio:        2,
		},
	}
}

// Validate checks ranges across all sections.
func (c Config) Validate() error {
	if c.Days < 0 {
		return fmt.Errorf("days must be non-negative, got %d", c.Days)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.HistoryDays < 0 {
		return fmt.Errorf("history_days must be non-negative, got %d", c.HistoryDays)
	}
	if c.NumStores < 0 || c.NumProducts < 0 {
		return fmt.Errorf("num_stores and num_products must be non-negative, got %d/%d", c.NumStores, c.NumProducts)
	}
	if err := c.Forecast.Validate(); err != nil {
		return err
	}
	if err := c.Optimizer.Validate(); err != nil {
		return err
	}
	if err := c.Pricing.Validate(); err != nil {
		return err
	}
	if !IsValidTieBreakPolicy(c.Allocation.TieBreak) {
		return fmt.Errorf("unknown tie_break policy %q", c.Allocation.TieBreak)
	}
	if c.Allocation.MaxCASRetries < 1 {
		return fmt.Errorf("max_cas_retries must be >= 1, got %d", c.Allocation.MaxCASRetries)
	}
	if c.Warehouse.ReplenishQuantity < 0 || c.Warehouse.ReplenishThreshold < 0 || c.Warehouse.SupplierLeadDays < 0 ||
		c.Warehouse.LeadTimePenalty < 0 || math.IsNaN(c.Warehouse.LeadTimePenalty) {
		return fmt.Errorf("warehouse replenishment values must be non-negative")
	}
	if !IsValidDemandProcess(c.Demand.Process) {
		return fmt.Errorf("unknown demand process %q", c.Demand.Process)
	}
	if c.Demand.CV < 0 || c.Demand.SentimentLift < 0 || c.Demand.SentimentLift >= 1 {
		return fmt.Errorf("demand cv must be non-negative and sentiment_lift in [0, 1)")
	}
	if c.Competitor.DriftPct < 0 || c.Competitor.DriftPct >= 100 {
		return fmt.Errorf("competitor drift_pct must be in [0, 100), got %f", c.Competitor.DriftPct)
	}
	switch c.Sentiment.Source {
	case SentimentSourceNeutral, SentimentSourceSeeded:
	case SentimentSourceOllama:
		if c.Sentiment.URL == "" || c.Sentiment.Model == "" {
			return fmt.Errorf("sentiment source ollama needs url and model")
		}
	default:
		return fmt.Errorf("unknown sentiment source %q", c.Sentiment.Source)
	}
	if c.Sentiment.Spread < 0 || c.Sentiment.Spread > 1 {
		return fmt.Errorf("sentiment spread must be in [0, 1], got %f", c.Sentiment.Spread)
	}
	if c.Recommendations.WindowDays < 1 {
		return fmt.Errorf("recommendations window_days must be >= 1, got %d", c.Recommendations.WindowDays)
	}
	return nil
}

// Validate checks the forecaster parameters.
func (c ForecastConfig) Validate() error {
	if c.HorizonDays < 1 {
		return fmt.Errorf("forecast horizon_days must be >= 1, got %d", c.HorizonDays)
	}
	if c.WindowDays < 0 || c.TrendDays < 0 {
		return fmt.Errorf("forecast window_days and trend_days must be non-negative")
	}
	if c.DefaultDemand < 0 || c.ColdStartCV < 0 || c.SentimentSensitivity < 0 {
		return fmt.Errorf("forecast default_demand, cold_start_cv and sentiment_sensitivity must be non-negative")
	}
	if c.MaxSentimentAdjust < 0 || c.MaxSentimentAdjust >= 1 {
		return fmt.Errorf("forecast max_sentiment_adjust must be in [0, 1), got %f", c.MaxSentimentAdjust)
	}
	return nil
}

// Validate checks the optimizer parameters.
func (c OptimizerConfig) Validate() error {
	names := []string{"service_level_z", "ordering_cost", "holding_cost"}
	for i, v := range []float64{c.ServiceLevelZ, c.OrderingCost, c.HoldingCost} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("optimizer %s must be non-negative, got %f", names[i], v)
		}
	}
	if c.DefaultLeadTimeDays < 0 {
		return fmt.Errorf("optimizer default_lead_time_days must be non-negative, got %d", c.DefaultLeadTimeDays)
	}
	if !IsValidReorderPolicy(c.Policy) {
		return fmt.Errorf("unknown optimizer policy %q (valid: %s)", c.Policy, ValidReorderPolicyNames())
	}
	return c.QLearning.Validate()
}

// Validate checks the q-learning parameters.
func (c QLearningConfig) Validate() error {
	if !(c.LearningRate > 0 && c.LearningRate <= 1) {
		return fmt.Errorf("q_learning learning_rate must be in (0, 1], got %f", c.LearningRate)
	}
	if !(c.DiscountFactor >= 0 && c.DiscountFactor < 1) {
		return fmt.Errorf("q_learning discount_factor must be in [0, 1), got %f", c.DiscountFactor)
	}
	if !(c.ExplorationRate >= 0 && c.ExplorationRate <= 1) {
		return fmt.Errorf("q_learning exploration_rate must be in [0, 1], got %f", c.ExplorationRate)
	}
	if c.StockoutPenalty < 0 || math.IsNaN(c.StockoutPenalty) {
		return fmt.Errorf("q_learning stockout_penalty must be non-negative, got %f", c.StockoutPenalty)
	}
	return nil
}

// Validate checks the pricing parameters.
func (c PricingConfig) Validate() error {
	if c.MaxDailyChangePct <= 0 || c.MaxDailyChangePct >= 100 {
		return fmt.Errorf("pricing max_daily_change_pct must be in (0, 100), got %f", c.MaxDailyChangePct)
	}
	if c.LowStockThreshold < 0 || c.OverstockUnits < 0 {
		return fmt.Errorf("pricing stock thresholds must be non-negative")
	}
	if c.OverstockRatio < 1 {
		return fmt.Errorf("pricing overstock_ratio must be >= 1, got %f", c.OverstockRatio)
	}
	if c.NegativeSentiment > c.PositiveSentiment {
		return fmt.Errorf("pricing negative_sentiment %f exceeds positive_sentiment %f", c.NegativeSentiment, c.PositiveSentiment)
	}
	for _, v := range []float64{c.TrendTolerance, c.MarkdownPct, c.MarkupPct, c.SentimentDiscountPct,
		c.SentimentPremiumPct, c.CompetitorBandPct, c.CompetitionCutPct, c.CompetitionLiftPct} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("pricing percentages and tolerances must be non-negative")
		}
	}
	return nil
}

// LoadConfig reads a YAML config file on top of NewDefaultConfig.
// Keys absent from the file keep their defaults; unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := NewDefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
