package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/retail-sim/retail-sim/sim"
	"github.com/retail-sim/retail-sim/sim/retail"
)

var (
	policyStore    string // Store to simulate; first store when empty
	policyProduct  string // Product to simulate; first product when empty
	policyDays     int    // Days per what-if episode
	policyEpisodes int    // Training episodes; the last one is reported
)

// responseChanges are the price changes, in percent, reported by `policy`.
var responseChanges = []float64{-10, -5, 5, 10}

// policyCmd runs a what-if reorder simulation for one (store, product)
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Simulate a reorder policy and predict price responses for one product",
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
		if err := runPolicySimulation(os.Stdout, cfg, scenario, policyStore, policyProduct, policyDays, policyEpisodes); err != nil {
			logrus.Fatalf("Policy simulation failed: %v", err)
		}
	},
}

func registerPolicyFlags(c *cobra.Command) {
	c.Flags().StringVar(&policyStore, "store", "", "Store id (first store when empty)")
	c.Flags().StringVar(&policyProduct, "product", "", "Product id (first product when empty)")
	c.Flags().IntVar(&policyDays, "policy-days", 30, "Days per what-if episode")
	c.Flags().IntVar(&policyEpisodes, "episodes", 1, "Training episodes; the last one is reported")
}

// runPolicySimulation trains the configured reorder policy on one listing for
// episodes runs of days each and writes the last run's summary followed by the
// predicted response to a few price changes.
func runPolicySimulation(w io.Writer, cfg sim.Config, scenario *sim.Scenario, storeID, productID string, days, episodes int) error {
	if episodes < 1 {
		return fmt.Errorf("%w: episodes %d must be >= 1", sim.ErrInputViolation, episodes)
	}
	st, err := findStore(scenario, storeID)
	if err != nil {
		return err
	}
	p, err := findProduct(scenario, productID)
	if err != nil {
		return err
	}

	mean := retail.ExpectedDemand(p, st.DemandFactor, p.CurrentPrice, cfg.Demand, sim.NeutralSentiment)
	r := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed)).ForSubsystem(sim.SubsystemPolicy)
	sampler := retail.NewDemandSampler(cfg.Demand)
	history := make([]int64, cfg.HistoryDays)
	for i := range history {
		history[i] = sampler.Sample(r, mean)
	}

	in := sim.PolicySimInput{
		Days:          days,
		StartStock:    st.InitialStock[p.ID],
		History:       history,
		DefaultDemand: mean,
		Price:         p.CurrentPrice,
		UnitCost:      p.UnitCost,
		LeadTimeDays:  p.LeadTimeDays,
		Optimizer:     cfg.Optimizer,
	}
	policy := sim.NewReorderPolicy(cfg.Optimizer.Policy, cfg.Optimizer.QLearning)
	var res sim.PolicySimResult
	for ep := 0; ep < episodes; ep++ {
		res, err = sim.SimulatePolicy(in, policy, r)
		if err != nil {
			return err
		}
		logrus.Debugf("episode %d: profit %.2f, stockout days %d", ep+1, res.TotalProfit, res.StockoutDays)
	}

	fmt.Fprintln(w, "=== Policy Simulation ===")
	fmt.Fprintf(w, "Store %s, product %s, policy %s, %d days x %d episodes\n", st.ID, p.ID, res.Policy, days, episodes)
	fmt.Fprintf(w, "EOQ: %d units, reorder point: %d units\n", res.EOQ, res.ReorderPoint)
	fmt.Fprintf(w, "Total profit: %.2f\n", res.TotalProfit)
	fmt.Fprintf(w, "Revenue: %.2f, holding cost: %.2f, ordering cost: %.2f\n", res.Revenue, res.HoldingCost, res.OrderingCost)
	fmt.Fprintf(w, "Stockout days: %d, service level: %.1f%%\n", res.StockoutDays, res.ServiceLevel*100)
	fmt.Fprintf(w, "Inventory turnover: %.2f\n", res.InventoryTurnover)
	if q, ok := policy.(*sim.QLearningPolicy); ok {
		fmt.Fprintf(w, "States learned: %d\n", q.States())
	}

	agent := sim.NewPricingAgent(cfg.Pricing)
	fmt.Fprintln(w, "=== Price Response ===")
	for _, pct := range responseChanges {
		resp, err := agent.PredictResponse(sim.PriceResponseInput{
			CurrentPrice:    p.CurrentPrice,
			CompetitorPrice: p.CompetitorPrice,
			AvgDailySales:   mean,
			Sentiment:       sim.NeutralSentiment,
			ChangePct:       pct,
			Elasticity:      cfg.Demand.PriceElasticity,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%+.0f%%: %s\n", pct, resp)
	}
	return nil
}

func findStore(scenario *sim.Scenario, id string) (sim.Store, error) {
	if len(scenario.Stores) == 0 {
		return sim.Store{}, fmt.Errorf("%w: scenario has no stores", sim.ErrInputViolation)
	}
	if id == "" {
		return scenario.Stores[0], nil
	}
	for _, st := range scenario.Stores {
		if st.ID == sim.StoreID(id) {
			return st, nil
		}
	}
	return sim.Store{}, fmt.Errorf("%w: unknown store %q", sim.ErrInputViolation, id)
}

func findProduct(scenario *sim.Scenario, id string) (sim.Product, error) {
	if len(scenario.Products) == 0 {
		return sim.Product{}, fmt.Errorf("%w: scenario has no products", sim.ErrInputViolation)
	}
	if id == "" {
		return scenario.Products[0], nil
	}
	for _, p := range scenario.Products {
		if p.ID == sim.ProductID(id) {
			return p, nil
		}
	}
	return sim.Product{}, fmt.Errorf("%w: unknown product %q", sim.ErrInputViolation, id)
}
