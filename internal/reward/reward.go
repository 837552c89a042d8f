// Package reward implements faucetd's three-pool block reward split.
// Calculate is a pure function: given a block's share counts and the
// three pool budgets it returns a reward map, with no side effects and
// no dependency on storage or the engine. That purity is what lets
// internal/engine call it inside a single transaction and what lets
// this package's tests pin exact scenarios without a database.
package reward

import (
	"sort"

	"github.com/nadfaucet/faucetd/internal/powcrypto"
)

// Selector draws the Pool B lottery winner. Production code passes
// powcrypto.WeightedSelect; tests pass a stub that always returns a
// fixed index, which is how the lottery-bias scenarios get pinned.
type Selector func(weights []uint64) (int, error)

// Calculate distributes aMicro, bMicro and cMicro across the addresses
// in sharesByAddress and returns each address's total award in
// micro-tokens. sharesByAddress must contain only addresses with at
// least one accepted share in the block; an empty map yields an empty,
// nil-error result.
func Calculate(sharesByAddress map[string]uint64, aMicro, bMicro, cMicro int64, selector Selector) (map[string]int64, error) {
	rewards := make(map[string]int64, len(sharesByAddress))
	if len(sharesByAddress) == 0 {
		return rewards, nil
	}

	addrs := make([]string, 0, len(sharesByAddress))
	for addr := range sharesByAddress {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	weights := make([]uint64, len(addrs))
	var total uint64
	for i, addr := range addrs {
		weights[i] = sharesByAddress[addr]
		total += weights[i]
	}

	winnerIdx := -1
	if total > 0 {
		idx, err := selector(weights)
		if err != nil {
			return nil, err
		}
		winnerIdx = idx
	}

	var winner string
	if winnerIdx >= 0 {
		winner = addrs[winnerIdx]
		rewards[winner] += bMicro
	}

	adjusted := make(map[string]uint64, len(addrs))
	for _, addr := range addrs {
		raw := sharesByAddress[addr]
		if addr == winner {
			loserShares := total - raw
			half := total / 2
			penalty := loserShares
			if half < penalty {
				penalty = half
			}
			var a uint64
			if raw > penalty {
				a = (raw - penalty) / 2
			}
			if a > 0 {
				adjusted[addr] = a
			}
			continue
		}
		if raw > 0 {
			adjusted[addr] = raw
		}
	}

	var totalAdjusted uint64
	for _, a := range adjusted {
		totalAdjusted += a
	}
	if totalAdjusted > 0 {
		for _, addr := range addrs {
			a, ok := adjusted[addr]
			if !ok {
				continue
			}
			share := int64(a) * aMicro / int64(totalAdjusted)
			rewards[addr] += share
		}
	}

	if cMicro > 0 {
		distributePoolC(rewards, addrs, winner, cMicro)
	}

	return rewards, nil
}

// distributePoolC implements the low-earner compensation tier: the
// lowest-m running totals among non-winners are brought up towards
// parity, where m is the largest prefix an even split of cMicro does
// not overshoot.
func distributePoolC(rewards map[string]int64, addrs []string, winner string, cMicro int64) {
	candidates := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if addr == winner {
			continue
		}
		candidates = append(candidates, addr)
	}
	numC := len(candidates)
	if numC == 0 {
		return
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return rewards[candidates[i]] < rewards[candidates[j]]
	})

	// E_1..E_numC are candidates' running totals in ascending order, with
	// an implicit E_0 = 0. The first i (1-indexed, i < numC) for which
	// E_{i-1} + ceil(C_micro/i) < E_i sets m = i; otherwise m = numC.
	m := numC
	for i := 1; i < numC; i++ {
		var prev int64
		if i > 1 {
			prev = rewards[candidates[i-2]]
		}
		curr := rewards[candidates[i-1]]
		if prev+ceilDiv(cMicro, int64(i)) < curr {
			m = i
			break
		}
	}

	base := cMicro / int64(m)
	remainder := cMicro % int64(m)
	for i := 0; i < m; i++ {
		amount := base
		if int64(i) < remainder {
			amount++
		}
		rewards[candidates[i]] += amount
	}
}

func ceilDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// DefaultSelector is powcrypto.WeightedSelect adapted to the Selector
// signature, for production wiring.
func DefaultSelector(weights []uint64) (int, error) {
	return powcrypto.WeightedSelect(weights)
}
