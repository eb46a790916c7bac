package campaign

import (
	"time"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/phase"
)

// BuyLimit is the range a single purchase must fall in.
type BuyLimit struct {
	Min amount.Amount `json:"min"`
	// Max of zero means unbounded.
	Max amount.Amount `json:"max"`
}

// whitelistPolicy decides how much a caller may buy in the whitelisted
// phase. remaining is the cumulative whitelisted headroom; min is the
// per-call floor.
type whitelistPolicy interface {
	allowance(c *Campaign, env *Env, account string) (min, remaining amount.Amount, err error)
}

type fcfsPolicy struct{}

func (fcfsPolicy) allowance(c *Campaign, env *Env, account string) (amount.Amount, amount.Amount, error) {
	const op = "buy_tokens"
	if _, ok := c.subscription(account); !ok {
		return amount.Zero, amount.Zero, reject(op, CodeNotWhitelisted, "%s did not subscribe", account)
	}
	tier := c.Whitelist.Tiers[tierIndex(phase.Elapsed(c.Config.Schedule, env.Now), c.Whitelist.Duration, len(c.Whitelist.Tiers))]
	bought := amount.Zero
	if p := c.Purchases[account]; p != nil {
		bought = p.Whitelisted
	}
	return tier.Min, tier.Max.SatSub(bought), nil
}

func tierIndex(elapsed, window time.Duration, tiers int) int {
	if window <= 0 || tiers <= 1 {
		return 0
	}
	idx := int(int64(elapsed) * int64(tiers) / int64(window))
	if idx >= tiers {
		idx = tiers - 1
	}
	return idx
}

type allocationPolicy struct{}

func (allocationPolicy) allowance(c *Campaign, env *Env, account string) (amount.Amount, amount.Amount, error) {
	const op = "buy_tokens"
	sub, ok := c.subscription(account)
	if !ok || !sub.Guaranteed {
		return amount.Zero, amount.Zero, reject(op, CodeNotWhitelisted, "%s holds no guaranteed allocation", account)
	}
	capAmt, _, err := c.Subscribable(env, account)
	if err != nil {
		return amount.Zero, amount.Zero, err
	}
	bought := amount.Zero
	if p := c.Purchases[account]; p != nil {
		bought = p.Whitelisted
	}
	return amount.Zero, capAmt.SatSub(sub.Amount).SatSub(bought), nil
}

func (c *Campaign) whitelistPolicy() whitelistPolicy {
	switch c.Whitelist.Mode {
	case WhitelistFCFS:
		return fcfsPolicy{}
	case WhitelistAllocation:
		return allocationPolicy{}
	}
	return nil
}

// Remaining is the capital still available for purchase.
func (c *Campaign) Remaining() amount.Amount {
	return c.Config.HardCap.SatSub(c.TotalRaised)
}

// BuyTokens purchases amt of capital worth of tokens in the whitelisted or
// public phase.
func (c *Campaign) BuyTokens(env *Env, call Call, amt amount.Amount) error {
	const op = "buy_tokens"
	if err := c.guard(op); err != nil {
		return err
	}
	ph := c.Phase(env.Now)
	if !ph.Ido() {
		return reject(op, CodeCannotBuyToken, "buying is closed during %s", ph)
	}
	if !c.Flags.Has(FlagFundedIn) {
		return reject(op, CodeNotReady, "campaign is not funded")
	}
	if !c.Flags.Has(FlagTally) {
		return reject(op, CodeNotReady, "tally is %s", c.Random.status())
	}
	if amt.IsZero() {
		return reject(op, CodeInvalidAmount, "purchase amount must be positive")
	}

	if ph == phase.IdoWhitelisted {
		policy := c.whitelistPolicy()
		if policy == nil {
			return reject(op, CodeNotWhitelisted, "no whitelist policy")
		}
		minAmt, remaining, err := policy.allowance(c, env, call.Caller)
		if err != nil {
			return err
		}
		if amt.Lt(minAmt) {
			return reject(op, CodeInvalidAmount, "amount %s below tier minimum %s", amt, minAmt)
		}
		if amt.Gt(remaining) {
			return reject(op, CodeValueExceeded, "amount %s exceeds whitelisted allowance %s", amt, remaining)
		}
	} else {
		if amt.Lt(c.Config.BuyLimitMin) {
			return reject(op, CodeInvalidAmount, "amount %s below minimum %s", amt, c.Config.BuyLimitMin)
		}
		if !c.Config.BuyLimitMax.IsZero() && amt.Gt(c.Config.BuyLimitMax) {
			return reject(op, CodeValueExceeded, "amount %s above maximum %s", amt, c.Config.BuyLimitMax)
		}
	}
	if amt.Gt(c.Remaining()) {
		return reject(op, CodeValueExceeded, "amount %s exceeds remaining %s", amt, c.Remaining())
	}

	prev := c.Purchases[call.Caller]
	if prev == nil {
		prev = &Purchase{}
	}
	next := *prev
	var err error
	if ph == phase.IdoWhitelisted {
		next.Whitelisted, err = next.Whitelisted.Add(amt)
	} else {
		next.Public, err = next.Public.Add(amt)
	}
	if err != nil {
		return arith(op, err)
	}
	if next.Total, err = next.Total.Add(amt); err != nil {
		return arith(op, err)
	}
	if next.Paid, err = next.Paid.Add(amt); err != nil {
		return arith(op, err)
	}
	raised, err := c.TotalRaised.Add(amt)
	if err != nil {
		return arith(op, err)
	}
	capMove, err := c.pullCapital(op, call, amt)
	if err != nil {
		return err
	}
	if err := env.settle(op, capMove); err != nil {
		return err
	}

	*c.purchase(call.Caller) = next
	c.TotalRaised = raised
	return nil
}

// PurchaseOf returns account's purchase record, or an empty one.
func (c *Campaign) PurchaseOf(account string) Purchase {
	if p := c.Purchases[account]; p != nil {
		return *p
	}
	return Purchase{}
}

// PublicBuyLimit returns the per-call public range.
func (c *Campaign) PublicBuyLimit() BuyLimit {
	return BuyLimit{Min: c.Config.BuyLimitMin, Max: c.Config.BuyLimitMax}
}

// TotalSold is the sum of every buyer's floored token entitlement.
func (c *Campaign) TotalSold() (amount.Amount, error) {
	total := amount.Zero
	for _, account := range c.Buyers {
		tokens, err := c.TokensForCapital(c.Purchases[account].Total)
		if err != nil {
			return amount.Zero, err
		}
		if total, err = total.Add(tokens); err != nil {
			return amount.Zero, err
		}
	}
	return total, nil
}
