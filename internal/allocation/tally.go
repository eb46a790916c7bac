package allocation

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/canon"
)

// ErrOverAllocated reports guaranteed subscriptions summing past the hard
// cap, which a consistent snapshot cannot produce.
var ErrOverAllocated = errors.New("guaranteed subscriptions exceed hard cap")

// Entry is one subscription as the tally sees it.
type Entry struct {
	Account    string
	Guaranteed bool
	// Amount is the guaranteed subscription, or the lottery request for a
	// non-guaranteed holder.
	Amount   amount.Amount
	OverSub  amount.Amount
	Priority uint8
	Burn     amount.Amount
}

// Params configures a tally.
type Params struct {
	HardCap amount.Amount
	// LotteryBudgetPct is the lottery's share of the hard cap. Zero gives
	// the lottery everything left after guaranteed allocations.
	LotteryBudgetPct uint32
	Seed             [32]byte
}

// Outcome is one subscriber's share of the tally.
type Outcome struct {
	Account       string        `json:"account"`
	Guaranteed    amount.Amount `json:"guaranteed"`
	WonLottery    bool          `json:"won_lottery"`
	LotteryAmount amount.Amount `json:"lottery_amount"`
	WonOverSub    bool          `json:"won_over_sub"`
	OverSubAmount amount.Amount `json:"over_sub_amount"`
	BurnConsumed  amount.Amount `json:"burn_consumed"`
	Allocated     amount.Amount `json:"allocated"`
}

// Result is a complete tally.
type Result struct {
	Outcomes              []Outcome     `json:"outcomes"`
	TotalGuaranteed       amount.Amount `json:"total_guaranteed"`
	LotteryBudget         amount.Amount `json:"lottery_budget"`
	TotalLotteryRequested amount.Amount `json:"total_lottery_requested"`
	TotalLotteryWon       amount.Amount `json:"total_lottery_won"`
	TotalOverSubRequested amount.Amount `json:"total_over_sub_requested"`
	TotalOverSubFilled    amount.Amount `json:"total_over_sub_filled"`
	TotalAllocated        amount.Amount `json:"total_allocated"`
	TotalBurnConsumed     amount.Amount `json:"total_burn_consumed"`
	Seed                  string        `json:"seed"`
	Digest                string        `json:"digest"`
}

// Outcome returns the outcome for account.
func (r Result) Outcome(account string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Account == account {
			return o, true
		}
	}
	return Outcome{}, false
}

// HasLotteryEntrants reports whether the tally needs a random seed.
func HasLotteryEntrants(entries []Entry) bool {
	for _, e := range entries {
		if !e.Guaranteed && !e.Amount.IsZero() {
			return true
		}
	}
	return false
}

// Tally runs all three passes over entries in index order.
func Tally(entries []Entry, p Params) (Result, error) {
	res := Result{
		Outcomes: make([]Outcome, len(entries)),
		Seed:     hex.EncodeToString(p.Seed[:]),
	}

	var lottery []stake
	for i, e := range entries {
		res.Outcomes[i].Account = e.Account
		var err error
		if e.Guaranteed {
			res.Outcomes[i].Guaranteed = e.Amount
			if res.TotalGuaranteed, err = res.TotalGuaranteed.Add(e.Amount); err != nil {
				return Result{}, err
			}
		} else if !e.Amount.IsZero() {
			lottery = append(lottery, stake{index: i, amount: e.Amount})
			if res.TotalLotteryRequested, err = res.TotalLotteryRequested.Add(e.Amount); err != nil {
				return Result{}, err
			}
		}
	}
	if res.TotalGuaranteed.Gt(p.HardCap) {
		return Result{}, fmt.Errorf("%w: %s > %s", ErrOverAllocated, res.TotalGuaranteed, p.HardCap)
	}

	headroom := p.HardCap.SatSub(res.TotalGuaranteed)
	res.LotteryBudget = headroom
	if p.LotteryBudgetPct > 0 {
		budget, err := p.HardCap.Percent(uint64(p.LotteryBudgetPct))
		if err != nil {
			return Result{}, err
		}
		res.LotteryBudget = amount.Min(budget, headroom)
	}

	won, err := drawLottery(lottery, res.LotteryBudget, p.Seed)
	if err != nil {
		return Result{}, fmt.Errorf("lottery: %w", err)
	}
	for _, s := range lottery {
		if !won[s.index] {
			continue
		}
		res.Outcomes[s.index].WonLottery = true
		res.Outcomes[s.index].LotteryAmount = s.amount
		if res.TotalLotteryWon, err = res.TotalLotteryWon.Add(s.amount); err != nil {
			return Result{}, err
		}
	}

	requests := make([]fillRequest, 0, len(entries))
	for i, e := range entries {
		if e.OverSub.IsZero() {
			continue
		}
		w, err := e.OverSub.Mul(PriorityWeight(e.Priority))
		if err != nil {
			return Result{}, err
		}
		requests = append(requests, fillRequest{index: i, request: e.OverSub, weight: w})
		if res.TotalOverSubRequested, err = res.TotalOverSubRequested.Add(e.OverSub); err != nil {
			return Result{}, err
		}
	}
	residual := p.HardCap.SatSub(res.TotalGuaranteed).SatSub(res.TotalLotteryWon)
	filled, err := fillOverSub(requests, residual)
	if err != nil {
		return Result{}, fmt.Errorf("oversubscription: %w", err)
	}

	for i, e := range entries {
		o := &res.Outcomes[i]
		if f, ok := filled[i]; ok && !f.IsZero() {
			o.WonOverSub = true
			o.OverSubAmount = f
			if o.BurnConsumed, err = amount.MulDiv(e.Burn, f, e.OverSub); err != nil {
				return Result{}, err
			}
		}
		if o.Allocated, err = amount.Sum(o.Guaranteed, o.LotteryAmount, o.OverSubAmount); err != nil {
			return Result{}, err
		}
		if res.TotalOverSubFilled, err = res.TotalOverSubFilled.Add(o.OverSubAmount); err != nil {
			return Result{}, err
		}
		if res.TotalAllocated, err = res.TotalAllocated.Add(o.Allocated); err != nil {
			return Result{}, err
		}
		if res.TotalBurnConsumed, err = res.TotalBurnConsumed.Add(o.BurnConsumed); err != nil {
			return Result{}, err
		}
	}

	if res.Digest, err = digest(res); err != nil {
		return Result{}, err
	}
	return res, nil
}

func digest(r Result) (string, error) {
	outcomes := make([]any, len(r.Outcomes))
	for i, o := range r.Outcomes {
		outcomes[i] = map[string]any{
			"account":         o.Account,
			"guaranteed":      o.Guaranteed,
			"won_lottery":     o.WonLottery,
			"lottery_amount":  o.LotteryAmount,
			"won_over_sub":    o.WonOverSub,
			"over_sub_amount": o.OverSubAmount,
			"burn_consumed":   o.BurnConsumed,
		}
	}
	return canon.Digest(map[string]any{
		"outcomes":        outcomes,
		"total_allocated": r.TotalAllocated,
		"lottery_budget":  r.LotteryBudget,
		"total_burn":      r.TotalBurnConsumed,
		"seed":            r.Seed,
	})
}
