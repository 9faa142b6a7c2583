package sim

import (
	"math"
	"math/rand"

	"github.com/shopspring/decimal"
)

// PolicySimInput describes a single (store, product) for a what-if run of a
// reorder policy.
type PolicySimInput struct {
	Days          int
	StartStock    int64
	History       []int64 // observed daily demand, oldest first
	DefaultDemand float64 // mean daily demand when History is empty
	Price         decimal.Decimal
	UnitCost      decimal.Decimal
	LeadTimeDays  int
	Optimizer     OptimizerConfig
}

// PolicyDay is one simulated day of a what-if run.
type PolicyDay struct {
	Day     int     `json:"day"`
	Demand  int64   `json:"demand"`
	Sold    int64   `json:"sold"`
	Missed  int64   `json:"missed"`
	Stock   int64   `json:"stock"`
	Ordered int64   `json:"ordered"`
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
	State   string  `json:"state"`
}

// PolicySimResult summarises a what-if run.
type PolicySimResult struct {
	Policy            string      `json:"policy"`
	TotalProfit       float64     `json:"total_profit"`
	Revenue           float64     `json:"revenue"`
	HoldingCost       float64     `json:"holding_cost"`
	OrderingCost      float64     `json:"ordering_cost"`
	StockoutDays      int         `json:"stockout_days"`
	ServiceLevel      float64     `json:"service_level"` // share of days without a stockout
	InventoryTurnover float64     `json:"inventory_turnover"`
	EOQ               int64       `json:"eoq"`
	ReorderPoint      int64       `json:"reorder_point"`
	Days              []PolicyDay `json:"days"`
}

// SimulatePolicy runs policy against one product's demand for in.Days days
// with at most one order in transit. Demand replays the most recent history
// when it covers the horizon and is otherwise drawn from a normal
// distribution around the history mean (at least one unit a day). The policy
// learns from each day's reward, so repeated calls keep training it.
func SimulatePolicy(in PolicySimInput, policy ReorderPolicy, r *rand.Rand) (PolicySimResult, error) {
	if in.Days < 0 {
		return PolicySimResult{}, inputViolation("policy simulation days %d is negative", in.Days)
	}
	if in.StartStock < 0 {
		return PolicySimResult{}, inputViolation("policy simulation start stock %d is negative", in.StartStock)
	}
	if !in.Price.IsPositive() || in.UnitCost.IsNegative() {
		return PolicySimResult{}, inputViolation("policy simulation price %s / cost %s invalid", in.Price, in.UnitCost)
	}
	if in.LeadTimeDays < 0 {
		return PolicySimResult{}, inputViolation("policy simulation lead time %d is negative", in.LeadTimeDays)
	}

	mean, sigma := in.DefaultDemand, in.DefaultDemand*0.3
	if len(in.History) > 0 {
		mean, sigma = DemandStats(in.History)
		sigma = max(sigma, 1)
	}
	opt, err := Optimize(OptimizerInput{
		Demand:       mean,
		Sigma:        sigma,
		OrderingCost: in.Optimizer.OrderingCost,
		HoldingCost:  in.Optimizer.HoldingCost,
		LeadTimeDays: float64(in.LeadTimeDays),
		Z:            in.Optimizer.ServiceLevelZ,
	})
	if err != nil {
		return PolicySimResult{}, err
	}
	demand := policyDemand(in.History, in.Days, mean, sigma, r)

	res := PolicySimResult{Policy: policy.Name(), EOQ: opt.EOQ, ReorderPoint: opt.ReorderPoint}
	stock := in.StartStock
	var pending int64
	daysToDelivery := 0
	for day := 0; day < in.Days; day++ {
		if daysToDelivery > 0 {
			daysToDelivery--
			if daysToDelivery == 0 {
				stock += pending
				pending = 0
			}
		}

		state := ReorderState{Stock: stock, Demand: float64(demand[day]), MeanDemand: mean, Price: in.Price, UnitCost: in.UnitCost}
		eoqOrders := stock <= opt.ReorderPoint && daysToDelivery == 0
		var ordered int64
		if daysToDelivery == 0 && policy.Decide(state, eoqOrders, r) {
			ordered = max(opt.EOQ, 1)
			res.OrderingCost += in.Optimizer.OrderingCost
			if in.LeadTimeDays == 0 {
				stock += ordered
			} else {
				pending, daysToDelivery = ordered, in.LeadTimeDays
			}
		}

		sold := min(stock, demand[day])
		missed := demand[day] - sold
		stock -= sold
		reward := DailyReward(RewardInput{
			Price:           in.Price,
			UnitCost:        in.UnitCost,
			Sold:            sold,
			Missed:          missed,
			OnHand:          stock,
			Ordered:         ordered > 0,
			HoldingCost:     in.Optimizer.HoldingCost,
			OrderingCost:    in.Optimizer.OrderingCost,
			StockoutPenalty: in.Optimizer.QLearning.StockoutPenalty,
		})
		revenue := float64(sold) * in.Price.InexactFloat64()
		res.TotalProfit += reward
		res.Revenue += revenue
		res.HoldingCost += float64(stock) * in.Optimizer.HoldingCost
		if missed > 0 {
			res.StockoutDays++
		}
		res.Days = append(res.Days, PolicyDay{
			Day:     day,
			Demand:  demand[day],
			Sold:    sold,
			Missed:  missed,
			Stock:   stock,
			Ordered: ordered,
			Revenue: revenue,
			Profit:  reward,
			State:   state.Key(),
		})

		nextDemand := demand[min(day+1, in.Days-1)]
		next := ReorderState{Stock: stock, Demand: float64(nextDemand), MeanDemand: mean, Price: in.Price, UnitCost: in.UnitCost}
		policy.Learn(state, ordered > 0, reward, next)
	}

	if in.Days > 0 {
		res.ServiceLevel = 1 - float64(res.StockoutDays)/float64(in.Days)
	}
	avgInventory := float64(in.StartStock+stock) / 2
	if avgInventory <= 0 {
		avgInventory = 1
	}
	if cost := in.UnitCost.InexactFloat64(); cost > 0 {
		res.InventoryTurnover = res.Revenue / (cost * avgInventory)
	}
	return res, nil
}

func policyDemand(history []int64, days int, mean, sigma float64, r *rand.Rand) []int64 {
	if len(history) >= days {
		return append([]int64(nil), history[len(history)-days:]...)
	}
	out := make([]int64, days)
	for i := range out {
		v := math.Floor(mean + sigma*r.NormFloat64())
		out[i] = max(int64(v), 1)
	}
	return out
}
