package sim

import (
	"math/big"
)

// Allocate distributes available units of one product across its candidate
// requests. Results are returned in the order of requests, which is the
// canonical order the tie-break policy falls back to.
//
// When the total requested fits, every request is granted in full. Otherwise
// each request receives floor(requested * available / total) and the units
// lost to rounding are handed out one at a time in the order chosen by
// policy, skipping requests already granted in full. In that case the grants
// sum to exactly available.
//
// Allocate is a pure function of (requests, available, policy). A result
// that would over-grant a request or exceed available returns
// ErrContentionViolation.
func Allocate(requests []RestockRequest, available int64, policy TieBreakPolicy) ([]RestockResult, error) {
	if available < 0 {
		return nil, inputViolation("available stock %d is negative", available)
	}
	if len(requests) == 0 {
		return nil, nil
	}
	product := requests[0].ProductID
	total := new(big.Int)
	for _, r := range requests {
		if r.ProductID != product {
			return nil, inputViolation("candidate set mixes products %s and %s", product, r.ProductID)
		}
		if r.Quantity < 0 {
			return nil, inputViolation("request %s quantity %d is negative", r.ID, r.Quantity)
		}
		total.Add(total, big.NewInt(r.Quantity))
	}

	grants := make([]int64, len(requests))
	avail := big.NewInt(available)
	if total.Cmp(avail) <= 0 {
		for i, r := range requests {
			grants[i] = r.Quantity
		}
		return finishAllocation(requests, grants, available)
	}

	// Proportional floor. Products are computed in big.Int so large
	// quantities cannot overflow int64.
	candidates := make([]AllocationCandidate, len(requests))
	var granted int64
	for i, r := range requests {
		num := new(big.Int).Mul(big.NewInt(r.Quantity), avail)
		share, rem := new(big.Int).QuoRem(num, total, new(big.Int))
		candidates[i] = AllocationCandidate{
			Position:  i,
			StoreID:   r.StoreID,
			Requested: r.Quantity,
			Share:     share.Int64(),
			Remainder: new(big.Rat).SetFrac(rem, total),
		}
		grants[i] = share.Int64()
		granted += grants[i]
	}

	// Remainder, one unit at a time in tie-break order.
	leftover := available - granted
	order := policy.Order(candidates)
	for leftover > 0 {
		progressed := false
		for _, pos := range order {
			if leftover == 0 {
				break
			}
			if pos < 0 || pos >= len(grants) {
				continue
			}
			if grants[pos] < requests[pos].Quantity {
				grants[pos]++
				leftover--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return finishAllocation(requests, grants, available)
}

// finishAllocation checks the allocation post-conditions and builds results.
func finishAllocation(requests []RestockRequest, grants []int64, available int64) ([]RestockResult, error) {
	var sum int64
	results := make([]RestockResult, len(requests))
	for i, r := range requests {
		if grants[i] < 0 || grants[i] > r.Quantity {
			return nil, contentionViolation("request %s granted %d of %d requested", r.ID, grants[i], r.Quantity)
		}
		sum += grants[i]
		if sum > available {
			return nil, contentionViolation("product %s grants %d exceed available %d", r.ProductID, sum, available)
		}
		results[i] = newRestockResult(r, grants[i])
	}
	return results, nil
}

// TotalGranted sums the granted units of results.
func TotalGranted(results []RestockResult) int64 {
	var sum int64
	for _, r := range results {
		sum += r.Granted
	}
	return sum
}
