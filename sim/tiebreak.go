package sim

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Tie-break policy names accepted by NewTieBreakPolicy.
const (
	TieBreakStoreOrder       = "store-order"
	TieBreakLargestRemainder = "largest-remainder"
	TieBreakLargestShortfall = "largest-shortfall"
)

// ValidTieBreakPolicies is the set of recognized tie-break policy names.
// An empty string selects the default (store-order).
var ValidTieBreakPolicies = map[string]bool{
	"":                       true,
	TieBreakStoreOrder:       true,
	TieBreakLargestRemainder: true,
	TieBreakLargestShortfall: true,
}

// IsValidTieBreakPolicy reports whether name is a recognized tie-break policy.
func IsValidTieBreakPolicy(name string) bool {
	return ValidTieBreakPolicies[name]
}

// ValidTieBreakPolicyNames returns the non-empty policy names, sorted.
func ValidTieBreakPolicyNames() string {
	names := make([]string, 0, len(ValidTieBreakPolicies))
	for name := range ValidTieBreakPolicies {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// AllocationCandidate is one request's state after the proportional step of
// an allocation pass.
type AllocationCandidate struct {
	Position  int      // index in the canonical candidate order
	StoreID   StoreID  // requesting store
	Requested int64    // requested units
	Share     int64    // floor of the proportional share
	Remainder *big.Rat // fractional part dropped by the floor, in [0, 1)
}

// Shortfall is the number of units still missing after the proportional step.
func (c AllocationCandidate) Shortfall() int64 {
	return c.Requested - c.Share
}

// TieBreakPolicy orders candidates for the one-unit-at-a-time distribution of
// rounding remainders. Implementations must be deterministic and must return
// a permutation of candidate positions.
type TieBreakPolicy interface {
	Name() string
	Order(candidates []AllocationCandidate) []int
}

// StoreOrderTieBreak hands out remainder units in canonical candidate order.
type StoreOrderTieBreak struct{}

func (StoreOrderTieBreak) Name() string { return TieBreakStoreOrder }

func (StoreOrderTieBreak) Order(candidates []AllocationCandidate) []int {
	return positions(candidates)
}

// LargestRemainderTieBreak is the Hamilton method: largest dropped fraction
// first, ties in canonical order.
type LargestRemainderTieBreak struct{}

func (LargestRemainderTieBreak) Name() string { return TieBreakLargestRemainder }

func (LargestRemainderTieBreak) Order(candidates []AllocationCandidate) []int {
	order := positions(candidates)
	sort.SliceStable(order, func(i, j int) bool {
		return candidates[order[i]].Remainder.Cmp(candidates[order[j]].Remainder) > 0
	})
	return order
}

// LargestShortfallTieBreak favours the request with the most unmet units,
// ties in canonical order.
type LargestShortfallTieBreak struct{}

func (LargestShortfallTieBreak) Name() string { return TieBreakLargestShortfall }

func (LargestShortfallTieBreak) Order(candidates []AllocationCandidate) []int {
	order := positions(candidates)
	sort.SliceStable(order, func(i, j int) bool {
		return candidates[order[i]].Shortfall() > candidates[order[j]].Shortfall()
	})
	return order
}

// NewTieBreakPolicy creates a tie-break policy by name.
// An empty string selects store-order. Panics on unrecognized names.
func NewTieBreakPolicy(name string) TieBreakPolicy {
	if !IsValidTieBreakPolicy(name) {
		panic(fmt.Sprintf("unknown tie-break policy %q", name))
	}
	switch name {
	case "", TieBreakStoreOrder:
		return StoreOrderTieBreak{}
	case TieBreakLargestRemainder:
		return LargestRemainderTieBreak{}
	case TieBreakLargestShortfall:
		return LargestShortfallTieBreak{}
	default:
		panic(fmt.Sprintf("unhandled tie-break policy %q", name))
	}
}

func positions(candidates []AllocationCandidate) []int {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	return order
}
