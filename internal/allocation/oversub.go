package allocation

import (
	"github.com/roach88/launchpad/internal/amount"
)

type fillRequest struct {
	index   int
	request amount.Amount
	weight  amount.Amount
}

// fillOverSub shares residual among requests in proportion to weight,
// capping each at its request. Requests whose proportional share would
// exceed what they asked for are filled completely and the leftover is
// redistributed among the rest (water-filling). All shares floor, so the
// total never exceeds residual.
func fillOverSub(requests []fillRequest, residual amount.Amount) (map[int]amount.Amount, error) {
	filled := make(map[int]amount.Amount, len(requests))
	active := make([]fillRequest, 0, len(requests))
	for _, r := range requests {
		if !r.request.IsZero() && !r.weight.IsZero() {
			active = append(active, r)
		}
	}
	remaining := residual

	for len(active) > 0 && !remaining.IsZero() {
		total := amount.Zero
		for _, r := range active {
			var err error
			if total, err = total.Add(r.weight); err != nil {
				return nil, err
			}
		}

		shares := make([]amount.Amount, len(active))
		saturated := false
		for i, r := range active {
			share, err := amount.MulDiv(remaining, r.weight, total)
			if err != nil {
				return nil, err
			}
			shares[i] = share
			if !share.Lt(r.request) {
				saturated = true
			}
		}

		if !saturated {
			for i, r := range active {
				filled[r.index] = shares[i]
				var err error
				if remaining, err = remaining.Sub(shares[i]); err != nil {
					return nil, err
				}
			}
			break
		}

		next := active[:0:0]
		for i, r := range active {
			if shares[i].Lt(r.request) {
				next = append(next, r)
				continue
			}
			filled[r.index] = r.request
			var err error
			if remaining, err = remaining.Sub(r.request); err != nil {
				return nil, err
			}
		}
		active = next
	}
	return filled, nil
}
