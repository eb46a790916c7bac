package allocation

import (
	"github.com/roach88/launchpad/internal/amount"
)

// MaxPriority is the highest oversubscription priority a subscriber may
// pay for.
const MaxPriority = 100

// Subscribable returns the most a holder may subscribe and whether that
// amount is guaranteed. The guaranteed share is hardCap*balance/supply.
// Holders whose share falls below floor become lottery entrants and may
// request exactly up to floor.
func Subscribable(hardCap, balance, supply, floor amount.Amount) (amount.Amount, bool, error) {
	if supply.IsZero() || balance.IsZero() {
		return floor, false, nil
	}
	share, err := amount.MulDiv(hardCap, balance, supply)
	if err != nil {
		return amount.Zero, false, err
	}
	if share.Lt(floor) {
		return floor, false, nil
	}
	return share, true, nil
}

// PriorityWeight returns Pct100 + Pct10*priority, the multiplier applied
// to oversubscription stakes and burn pricing.
func PriorityWeight(priority uint8) amount.Amount {
	return amount.New(amount.Pct100 + amount.Pct10*uint64(priority))
}

// BurnQuantity prices an oversubscription stake:
//
//	stdBurn * overSub * (Pct100 + Pct10*priority) / (stdOverSub * Pct100)
//
// With a standard burn of 180 per 1.5 capital, one capital at priority 15
// costs 300.
func BurnQuantity(stdBurn, stdOverSub, overSub amount.Amount, priority uint8) (amount.Amount, error) {
	if overSub.IsZero() {
		return amount.Zero, nil
	}
	numer, err := stdBurn.Mul(overSub)
	if err != nil {
		return amount.Zero, err
	}
	denom, err := stdOverSub.Mul(amount.New(amount.Pct100))
	if err != nil {
		return amount.Zero, err
	}
	return amount.MulDiv(numer, PriorityWeight(priority), denom)
}
