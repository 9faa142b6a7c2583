package sim

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTieBreakPolicy_ValidNames(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", TieBreakStoreOrder},
		{TieBreakStoreOrder, TieBreakStoreOrder},
		{TieBreakLargestRemainder, TieBreakLargestRemainder},
		{TieBreakLargestShortfall, TieBreakLargestShortfall},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTieBreakPolicy(tt.name).Name())
		})
	}
}

func TestNewTieBreakPolicy_UnknownPanics(t *testing.T) {
	assert.Panics(t, func() { NewTieBreakPolicy("first-come") })
}

func TestValidTieBreakPolicyNames(t *testing.T) {
	assert.Equal(t, "largest-remainder, largest-shortfall, store-order", ValidTieBreakPolicyNames())
}

func TestTieBreakOrder_StableOnTies(t *testing.T) {
	// GIVEN candidates with equal remainders and shortfalls
	half := big.NewRat(1, 2)
	candidates := []AllocationCandidate{
		{Position: 0, Requested: 4, Share: 2, Remainder: half},
		{Position: 1, Requested: 4, Share: 2, Remainder: half},
		{Position: 2, Requested: 9, Share: 3, Remainder: big.NewRat(1, 3)},
	}

	// THEN ties keep canonical order
	assert.Equal(t, []int{0, 1, 2}, StoreOrderTieBreak{}.Order(candidates))
	assert.Equal(t, []int{0, 1, 2}, LargestRemainderTieBreak{}.Order(candidates))
	assert.Equal(t, []int{2, 0, 1}, LargestShortfallTieBreak{}.Order(candidates))
}
