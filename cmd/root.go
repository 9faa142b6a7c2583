package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/retail-sim/retail-sim/sim"
	"github.com/retail-sim/retail-sim/sim/retail"
	"github.com/retail-sim/retail-sim/sim/trace"
)

var (
	// Input files
	configPath   string // YAML config overlaid on the defaults
	scenarioPath string // YAML scenario; a synthetic catalog is generated when empty

	// Run shape
	seed        int64  // Master seed for every random stream
	days        int    // Number of simulated days
	numStores   int    // Synthetic scenario store count
	numProducts int    // Synthetic scenario product count
	historyDays int    // Warm-start demand history length
	workers     int    // Store-level parallelism
	logLevel    string // Log verbosity level

	// Component knobs
	horizon           int     // Forecast horizon in days
	serviceLevelZ     float64 // Safety stock z factor
	orderingCost      float64 // Cost per restock order
	holdingCost       float64 // Holding cost per unit per day
	leadTime          int     // Default lead time in days
	lowStockThreshold int64   // Pricing low-stock threshold when the reorder point is 0
	maxPriceChange    float64 // Max daily price change in percent
	tieBreak          string  // Remainder tie-break policy
	demandProcess     string  // Customer demand process
	sentimentSource   string  // neutral, seeded or ollama
	reorderPolicy     string  // eoq or q-learning

	// Collaborators and output
	redisAddr  string // Shared warehouse ledger; in-memory when empty
	pgDSN      string // PostgreSQL repository; in-memory when empty
	runID      string // Namespace for external state; random when empty
	traceLevel string // Decision trace level
	outputPath string // JSON report path; none when empty
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "retail-sim",
	Short: "Multi-store retail inventory and pricing simulator",
}

// runCmd executes the simulation using parameters from the config file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the retail simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg, err := buildConfig(cmd)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		scenario, err := buildScenario(cfg)
		if err != nil {
			logrus.Fatalf("Invalid scenario: %v", err)
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Unknown trace level %q", traceLevel)
		}
		if runID == "" {
			runID = uuid.NewString()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		collab, closeFn, err := buildCollaborators(ctx, cfg, scenario, runID)
		if err != nil {
			logrus.Fatalf("Unable to set up collaborators: %v", err)
		}
		defer closeFn()
		if traceLevel != "" && trace.TraceLevel(traceLevel) != trace.TraceLevelNone {
			collab.Trace = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevel(traceLevel)})
		}

		logrus.Infof("Starting run %s: scenario %q, %d stores, %d products, %d days, seed=%d, workers=%d, tie-break=%s",
			runID, scenario.Name, len(scenario.Stores), len(scenario.Products), cfg.Days, cfg.Seed, cfg.Workers, cfg.Allocation.TieBreak)
		startTime := time.Now()

		s := retail.New(cfg, scenario, collab)
		if err := s.Run(ctx); err != nil {
			if errors.Is(err, sim.ErrContentionViolation) {
				logrus.Fatalf("Warehouse allocation invariant violated, aborting: %v", err)
			}
			logrus.Fatalf("Simulation failed: %v", err)
		}

		report := s.Report()
		report.Summary.Print(os.Stdout)
		printRecommendations(report.Recommendations)
		if outputPath != "" {
			if err := report.WriteFile(outputPath); err != nil {
				logrus.Fatalf("Unable to write report: %v", err)
			}
			logrus.Infof("Report written to %s", outputPath)
		}
		logrus.Infof("Simulation complete in %s.", time.Since(startTime).Round(time.Millisecond))
	},
}

// validateCmd checks the config and scenario without running anything
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg, err := buildConfig(cmd)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		scenario, err := buildScenario(cfg)
		if err != nil {
			logrus.Fatalf("Invalid scenario: %v", err)
		}
		fmt.Printf("OK: scenario %q with %d stores and %d products, %d days\n",
			scenario.Name, len(scenario.Stores), len(scenario.Products), cfg.Days)
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// buildConfig loads the config file (or the defaults) and applies every flag
// the user set explicitly. Unset flags never override file values.
func buildConfig(cmd *cobra.Command) (sim.Config, error) {
	cfg := sim.NewDefaultConfig()
	if configPath != "" {
		loaded, err := sim.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("days") {
		cfg.Days = days
	}
	if flags.Changed("stores") {
		cfg.NumStores = numStores
	}
	if flags.Changed("products") {
		cfg.NumProducts = numProducts
	}
	if flags.Changed("history-days") {
		cfg.HistoryDays = historyDays
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("horizon") {
		cfg.Forecast.HorizonDays = horizon
	}
	if flags.Changed("z") {
		cfg.Optimizer.ServiceLevelZ = serviceLevelZ
	}
	if flags.Changed("ordering-cost") {
		cfg.Optimizer.OrderingCost = orderingCost
	}
	if flags.Changed("holding-cost") {
		cfg.Optimizer.HoldingCost = holdingCost
	}
	if flags.Changed("lead-time") {
		cfg.Optimizer.DefaultLeadTimeDays = leadTime
	}
	if flags.Changed("low-stock-threshold") {
		cfg.Pricing.LowStockThreshold = lowStockThreshold
	}
	if flags.Changed("max-price-change") {
		cfg.Pricing.MaxDailyChangePct = maxPriceChange
	}
	if flags.Changed("tie-break") {
		cfg.Allocation.TieBreak = tieBreak
	}
	if flags.Changed("demand-process") {
		cfg.Demand.Process = demandProcess
	}
	if flags.Changed("sentiment") {
		cfg.Sentiment.Source = sentimentSource
	}
	if flags.Changed("reorder-policy") {
		cfg.Optimizer.Policy = reorderPolicy
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// buildScenario loads --scenario or generates a synthetic catalog from the seed.
func buildScenario(cfg sim.Config) (*sim.Scenario, error) {
	if scenarioPath != "" {
		return sim.LoadScenario(scenarioPath, cfg.Optimizer.DefaultLeadTimeDays)
	}
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed))
	return sim.SyntheticScenario(cfg.NumStores, cfg.NumProducts, cfg.Optimizer.DefaultLeadTimeDays, rng)
}

func printRecommendations(recs []sim.Recommendation) {
	fmt.Println("=== Recommendations ===")
	for _, r := range recs {
		fmt.Printf("[%s] %s: %s (%s)\n", r.Priority, r.Category, r.Text, r.ExpectedImpact)
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerSharedFlags adds the flags that shape config and scenario to c.
func registerSharedFlags(c *cobra.Command) {
	defaults := sim.NewDefaultConfig()
	c.Flags().StringVar(&configPath, "config", "", "YAML config file overlaid on the defaults")
	c.Flags().StringVar(&scenarioPath, "scenario", "", "YAML scenario file (synthetic catalog when empty)")
	c.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	c.Flags().Int64Var(&seed, "seed", defaults.Seed, "Seed for every random stream")
	c.Flags().IntVar(&days, "days", defaults.Days, "Number of simulated days")
	c.Flags().IntVar(&numStores, "stores", defaults.NumStores, "Number of stores in a synthetic scenario")
	c.Flags().IntVar(&numProducts, "products", defaults.NumProducts, "Number of products in a synthetic scenario")
	c.Flags().IntVar(&historyDays, "history-days", defaults.HistoryDays, "Days of warm-start demand history")
	c.Flags().IntVar(&workers, "workers", defaults.Workers, "Stores processed in parallel")

	c.Flags().IntVar(&horizon, "horizon", defaults.Forecast.HorizonDays, "Forecast horizon in days")
	c.Flags().Float64Var(&serviceLevelZ, "z", defaults.Optimizer.ServiceLevelZ, "Service-level z factor for safety stock")
	c.Flags().Float64Var(&orderingCost, "ordering-cost", defaults.Optimizer.OrderingCost, "Cost per restock order")
	c.Flags().Float64Var(&holdingCost, "holding-cost", defaults.Optimizer.HoldingCost, "Holding cost per unit per day")
	c.Flags().IntVar(&leadTime, "lead-time", defaults.Optimizer.DefaultLeadTimeDays, "Default warehouse-to-store lead time in days")
	c.Flags().Int64Var(&lowStockThreshold, "low-stock-threshold", defaults.Pricing.LowStockThreshold, "Low-stock level used when the reorder point is 0")
	c.Flags().Float64Var(&maxPriceChange, "max-price-change", defaults.Pricing.MaxDailyChangePct, "Max daily price change in percent")
	c.Flags().StringVar(&tieBreak, "tie-break", defaults.Allocation.TieBreak, "Allocation tie-break policy: "+sim.ValidTieBreakPolicyNames())
	c.Flags().StringVar(&demandProcess, "demand-process", defaults.Demand.Process, "Customer demand process (poisson, gamma-poisson)")
	c.Flags().StringVar(&sentimentSource, "sentiment", defaults.Sentiment.Source, "Sentiment source (neutral, seeded, ollama)")
	c.Flags().StringVar(&reorderPolicy, "reorder-policy", defaults.Optimizer.Policy, "Reorder policy: "+sim.ValidReorderPolicyNames())
}

// init sets up CLI flags and subcommands
func init() {
	registerSharedFlags(runCmd)
	registerSharedFlags(validateCmd)
	registerSharedFlags(policyCmd)
	registerPolicyFlags(policyCmd)

	runCmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for a shared warehouse ledger (in-memory when empty)")
	runCmd.Flags().StringVar(&pgDSN, "pg-dsn", "", "PostgreSQL DSN for the repository (in-memory when empty)")
	runCmd.Flags().StringVar(&runID, "run-id", "", "Namespace for redis keys and database rows (random when empty)")
	runCmd.Flags().StringVar(&traceLevel, "trace", string(trace.TraceLevelNone), "Decision trace level (none, decisions)")
	runCmd.Flags().StringVar(&outputPath, "output", "", "Write the JSON report to this path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(policyCmd)
}
