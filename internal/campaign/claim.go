package campaign

import (
	"errors"
	"time"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/vesting"
)

// ClaimQuote reports a vesting position. Buyer quotes are computed in
// capital; Tokens is what a claim would transfer right now.
type ClaimQuote struct {
	vesting.Quote
	Tokens amount.Amount `json:"tokens"`
}

func claimError(op string, err error) error {
	switch {
	case errors.Is(err, vesting.ErrNothingEntitled):
		return reject(op, CodeInvalidAmount, "nothing entitled")
	case errors.Is(err, vesting.ErrNothingToClaim):
		return reject(op, CodeClaimFailed, "nothing claimable yet")
	case errors.Is(err, vesting.ErrInvalidSchedule):
		return reject(op, CodeValidation, "%v", err)
	}
	return arith(op, err)
}

// tokenDelta converts a capital claim into tokens as the difference of the
// cumulative conversions, so repeated claims never accumulate rounding
// dust: the payouts always sum to TokensForCapital(claimed).
func (c *Campaign) tokenDelta(before, after amount.Amount) (amount.Amount, error) {
	prev, err := c.TokensForCapital(before)
	if err != nil {
		return amount.Zero, err
	}
	next, err := c.TokensForCapital(after)
	if err != nil {
		return amount.Zero, err
	}
	return next.Sub(prev)
}

func (c *Campaign) buyerPosition(account string) vesting.Position {
	pos := c.Claims[account]
	pos.Entitlement = c.PurchaseOf(account).Total
	return pos
}

// ClaimableTokens quotes account's buyer vesting at now.
func (c *Campaign) ClaimableTokens(account string, now time.Time) (ClaimQuote, error) {
	const op = "claimable_tokens"
	sched, err := c.BuyerVesting.Resolve(c.Config.Schedule.IdoEnd)
	if err != nil {
		return ClaimQuote{}, claimError(op, err)
	}
	pos := c.buyerPosition(account)
	q, err := sched.Quote(pos, now)
	if err != nil {
		return ClaimQuote{}, claimError(op, err)
	}
	tokens, err := c.tokenDelta(pos.Claimed, q.Vested)
	if err != nil {
		return ClaimQuote{}, arith(op, err)
	}
	return ClaimQuote{Quote: q, Tokens: tokens}, nil
}

// ClaimTokens pays the caller's newly vested tokens.
func (c *Campaign) ClaimTokens(env *Env, call Call) error {
	const op = "claim_tokens"
	if err := c.guard(op); err != nil {
		return err
	}
	if err := c.requireSuccess(op); err != nil {
		return err
	}
	sched, err := c.BuyerVesting.Resolve(c.Config.Schedule.IdoEnd)
	if err != nil {
		return claimError(op, err)
	}
	pos := c.buyerPosition(call.Caller)
	next, _, err := vesting.Claim(sched, pos, env.Now)
	if err != nil {
		return claimError(op, err)
	}
	tokens, err := c.tokenDelta(pos.Claimed, next.Claimed)
	if err != nil {
		return arith(op, err)
	}
	if err := env.settle(op, transfer(c.Config.Token.ID, c.Account, call.Caller, tokens)); err != nil {
		return err
	}
	c.Claims[call.Caller] = next
	return nil
}

func (c *Campaign) ownerPosition() vesting.Position {
	pos := c.OwnerClaim
	pos.Entitlement = c.OwnerAllocation
	return pos
}

// ClaimableOwnerTokens quotes the owner's allocation at now.
func (c *Campaign) ClaimableOwnerTokens(now time.Time) (ClaimQuote, error) {
	const op = "claimable_owner_tokens"
	sched, err := c.OwnerVesting.Resolve(c.Config.Schedule.IdoEnd)
	if err != nil {
		return ClaimQuote{}, claimError(op, err)
	}
	q, err := sched.Quote(c.ownerPosition(), now)
	if err != nil {
		return ClaimQuote{}, claimError(op, err)
	}
	return ClaimQuote{Quote: q, Tokens: q.Claimable}, nil
}

// ClaimOwnerTokens pays the owner's newly vested allocation.
func (c *Campaign) ClaimOwnerTokens(env *Env, call Call) error {
	const op = "claim_owner_tokens"
	if err := c.guard(op); err != nil {
		return err
	}
	if err := c.requireOwner(op, call.Caller); err != nil {
		return err
	}
	if err := c.requireSuccess(op); err != nil {
		return err
	}
	sched, err := c.OwnerVesting.Resolve(c.Config.Schedule.IdoEnd)
	if err != nil {
		return claimError(op, err)
	}
	next, q, err := vesting.Claim(sched, c.ownerPosition(), env.Now)
	if err != nil {
		return claimError(op, err)
	}
	if err := env.settle(op, transfer(c.Config.Token.ID, c.Account, c.Owner, q.Claimable)); err != nil {
		return err
	}
	c.OwnerClaim = next
	return nil
}

func (c *Campaign) lpSchedule() (vesting.Schedule, error) {
	return c.Lp.Lock.Resolve(c.Settlement.At)
}

// ClaimableLp quotes every locked LP position at now.
func (c *Campaign) ClaimableLp(now time.Time) ([]ClaimQuote, error) {
	const op = "claimable_lp"
	if !c.Flags.Has(FlagLpCreated) {
		return nil, reject(op, CodeLpNotCreated, "no LP was created")
	}
	sched, err := c.lpSchedule()
	if err != nil {
		return nil, claimError(op, err)
	}
	out := make([]ClaimQuote, len(c.LpPositions))
	for i, lp := range c.LpPositions {
		q, err := sched.Quote(lp.Position, now)
		if err != nil {
			return nil, claimError(op, err)
		}
		out[i] = ClaimQuote{Quote: q, Tokens: q.Claimable}
	}
	return out, nil
}

// ClaimLpTokens releases unlocked LP units to the owner.
func (c *Campaign) ClaimLpTokens(env *Env, call Call) error {
	const op = "claim_lp_tokens"
	if err := c.guard(op); err != nil {
		return err
	}
	if err := c.requireOwner(op, call.Caller); err != nil {
		return err
	}
	if !c.Flags.Has(FlagLpCreated) {
		return reject(op, CodeLpNotCreated, "no LP was created")
	}
	sched, err := c.lpSchedule()
	if err != nil {
		return claimError(op, err)
	}
	next := make([]LpPosition, len(c.LpPositions))
	var moves []Movement
	for i, lp := range c.LpPositions {
		next[i] = lp
		pos, q, err := vesting.Claim(sched, lp.Position, env.Now)
		if errors.Is(err, vesting.ErrNothingToClaim) {
			continue
		}
		if err != nil {
			return claimError(op, err)
		}
		next[i].Position = pos
		moves = append(moves, transfer(lp.LpAsset, c.Account, c.Owner, q.Claimable))
	}
	if len(moves) == 0 {
		return reject(op, CodeClaimFailed, "no LP units unlocked yet")
	}
	if err := env.settle(op, moves...); err != nil {
		return err
	}
	c.LpPositions = next
	return nil
}
