package sim

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Reorder policy names accepted by NewReorderPolicy.
const (
	ReorderPolicyEOQ       = "eoq"
	ReorderPolicyQLearning = "q-learning"
)

// ValidReorderPolicies is the set of recognized reorder policy names.
// An empty string selects the default (eoq).
var ValidReorderPolicies = map[string]bool{
	"":                     true,
	ReorderPolicyEOQ:       true,
	ReorderPolicyQLearning: true,
}

// IsValidReorderPolicy reports whether name is a recognized reorder policy.
func IsValidReorderPolicy(name string) bool {
	return ValidReorderPolicies[name]
}

// ValidReorderPolicyNames returns the non-empty policy names, sorted.
func ValidReorderPolicyNames() string {
	names := make([]string, 0, len(ValidReorderPolicies))
	for name := range ValidReorderPolicies {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// ReorderState is what a reorder policy observes before deciding.
type ReorderState struct {
	Stock      int64   // on-hand units
	Demand     float64 // latest observed daily demand
	MeanDemand float64 // average daily demand the level is judged against
	Price      decimal.Decimal
	UnitCost   decimal.Decimal
}

// StockBucket classifies on-hand stock into six bands.
func StockBucket(stock int64) string {
	switch {
	case stock < 5:
		return "very_low"
	case stock < 20:
		return "low"
	case stock < 50:
		return "medium_low"
	case stock < 100:
		return "medium"
	case stock < 200:
		return "medium_high"
	default:
		return "high"
	}
}

// DemandLevel is high above 120% of the mean, low below 80%, medium otherwise.
func DemandLevel(demand, mean float64) string {
	switch {
	case demand > mean*1.2:
		return "high"
	case demand < mean*0.8:
		return "low"
	default:
		return "medium"
	}
}

// MarginLevel is high when price exceeds twice the unit cost, low below
// one and a half times, medium otherwise.
func MarginLevel(price, cost decimal.Decimal) string {
	switch {
	case price.GreaterThan(cost.Mul(decimal.NewFromInt(2))):
		return "high"
	case price.LessThan(cost.Mul(decimal.NewFromFloat(1.5))):
		return "low"
	default:
		return "medium"
	}
}

// Key returns the discretised state "<stock>_<demand>_<margin>".
func (s ReorderState) Key() string {
	return StockBucket(s.Stock) + "_" + DemandLevel(s.Demand, s.MeanDemand) + "_" + MarginLevel(s.Price, s.UnitCost)
}

// ReorderPolicy decides whether to place an order. Implementations are not
// safe for concurrent use; each (store, product) owns its own.
type ReorderPolicy interface {
	Name() string
	// Decide returns whether to order in state. eoqOrders is the verdict of
	// the reorder-point rule.
	Decide(state ReorderState, eoqOrders bool, r *rand.Rand) bool
	// Learn feeds back the reward earned after acting in state, observed
	// again in next.
	Learn(state ReorderState, ordered bool, reward float64, next ReorderState)
}

// EOQPolicy follows the reorder-point rule and never learns.
type EOQPolicy struct{}

func (EOQPolicy) Name() string { return ReorderPolicyEOQ }

func (EOQPolicy) Decide(_ ReorderState, eoqOrders bool, _ *rand.Rand) bool { return eoqOrders }

func (EOQPolicy) Learn(ReorderState, bool, float64, ReorderState) {}

// QValues holds the learned value of each action in one state.
type QValues struct {
	Order float64
	Wait  float64
}

func (q QValues) best() float64 {
	return max(q.Order, q.Wait)
}

// QLearningPolicy learns order/wait values per discretised state. Unknown
// states, and a fraction ExplorationRate of known ones, fall back to the
// reorder-point rule.
type QLearningPolicy struct {
	cfg    QLearningConfig
	values map[string]*QValues
}

// NewQLearningPolicy creates an empty q-learning policy. Panics if cfg is invalid.
func NewQLearningPolicy(cfg QLearningConfig) *QLearningPolicy {
	if err := cfg.Validate(); err != nil {
		panic("NewQLearningPolicy: " + err.Error())
	}
	return &QLearningPolicy{cfg: cfg, values: make(map[string]*QValues)}
}

func (p *QLearningPolicy) Name() string { return ReorderPolicyQLearning }

func (p *QLearningPolicy) Decide(state ReorderState, eoqOrders bool, r *rand.Rand) bool {
	q, ok := p.values[state.Key()]
	if !ok {
		return eoqOrders
	}
	if r.Float64() <= p.cfg.ExplorationRate {
		return eoqOrders
	}
	return q.Order > q.Wait
}

// Learn applies Q(s,a) += alpha * (reward + gamma * max Q(s') - Q(s,a)).
func (p *QLearningPolicy) Learn(state ReorderState, ordered bool, reward float64, next ReorderState) {
	q := p.entry(state.Key())
	target := reward + p.cfg.DiscountFactor*p.entry(next.Key()).best()
	if ordered {
		q.Order += p.cfg.LearningRate * (target - q.Order)
	} else {
		q.Wait += p.cfg.LearningRate * (target - q.Wait)
	}
}

// Values returns the learned values for a state key.
func (p *QLearningPolicy) Values(key string) (QValues, bool) {
	q, ok := p.values[key]
	if !ok {
		return QValues{}, false
	}
	return *q, true
}

// States returns the number of states seen so far.
func (p *QLearningPolicy) States() int {
	return len(p.values)
}

func (p *QLearningPolicy) entry(key string) *QValues {
	q, ok := p.values[key]
	if !ok {
		q = &QValues{}
		p.values[key] = q
	}
	return q
}

// NewReorderPolicy creates a reorder policy by name.
// An empty string selects eoq. Panics on unrecognized names.
func NewReorderPolicy(name string, cfg QLearningConfig) ReorderPolicy {
	if !IsValidReorderPolicy(name) {
		panic(fmt.Sprintf("unknown reorder policy %q", name))
	}
	switch name {
	case "", ReorderPolicyEOQ:
		return EOQPolicy{}
	case ReorderPolicyQLearning:
		return NewQLearningPolicy(cfg)
	default:
		panic(fmt.Sprintf("unhandled reorder policy %q", name))
	}
}

// RewardInput is one day's economics of a (store, product).
type RewardInput struct {
	Price           decimal.Decimal
	UnitCost        decimal.Decimal
	Sold            int64
	Missed          int64 // demand not served
	OnHand          int64 // end-of-day stock
	Ordered         bool
	HoldingCost     float64 // per unit per day
	OrderingCost    float64 // per order
	StockoutPenalty float64 // fraction of price per missed unit
}

// DailyReward returns revenue minus cost of goods, holding cost, stockout
// penalty and, when an order was placed, the ordering cost.
func DailyReward(in RewardInput) float64 {
	price := in.Price.InexactFloat64()
	cost := in.UnitCost.InexactFloat64()
	sold := float64(in.Sold)
	reward := sold*price - sold*cost -
		float64(in.OnHand)*in.HoldingCost -
		float64(in.Missed)*price*in.StockoutPenalty
	if in.Ordered {
		reward -= in.OrderingCost
	}
	return reward
}
