package allocation

import (
	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/canon"
)

type stake struct {
	index  int
	amount amount.Amount
}

// drawLottery draws winners without replacement until no remaining entrant
// fits the budget. Round r picks the entrant whose cumulative stake range
// contains H(seed, r) mod total stake, so each pick is proportional to the
// requested amount among the entrants that still fit.
func drawLottery(entrants []stake, budget amount.Amount, seed [32]byte) (map[int]bool, error) {
	won := make(map[int]bool)
	remaining := budget
	pool := fitting(entrants, remaining)

	for round := uint64(0); len(pool) > 0; round++ {
		total, err := totalStake(pool)
		if err != nil {
			return nil, err
		}
		r, err := amount.FromBytes32(canon.Draw(seed, round)).Mod(total)
		if err != nil {
			return nil, err
		}
		pick := 0
		cum := amount.Zero
		for i, s := range pool {
			if cum, err = cum.Add(s.amount); err != nil {
				return nil, err
			}
			if r.Lt(cum) {
				pick = i
				break
			}
		}

		winner := pool[pick]
		won[winner.index] = true
		if remaining, err = remaining.Sub(winner.amount); err != nil {
			return nil, err
		}
		rest := make([]stake, 0, len(pool)-1)
		rest = append(rest, pool[:pick]...)
		rest = append(rest, pool[pick+1:]...)
		pool = fitting(rest, remaining)
	}
	return won, nil
}

func fitting(entrants []stake, budget amount.Amount) []stake {
	out := make([]stake, 0, len(entrants))
	for _, s := range entrants {
		if !s.amount.Gt(budget) {
			out = append(out, s)
		}
	}
	return out
}

func totalStake(pool []stake) (amount.Amount, error) {
	total := amount.Zero
	for _, s := range pool {
		var err error
		if total, err = total.Add(s.amount); err != nil {
			return amount.Zero, err
		}
	}
	return total, nil
}
