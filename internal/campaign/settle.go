package campaign

import (
	"fmt"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/phase"
	"github.com/roach88/launchpad/internal/vesting"
)

// Settlement failure reasons.
const (
	ReasonSoftCapNotMet   = "soft_cap_not_met"
	ReasonTallyUnresolved = "tally_unresolved"
)

// lpTokensFor converts LP capital to tokens at the LP rate, or at the sale
// rate when no LP rate is set.
func (c *Campaign) lpTokensFor(capital amount.Amount) (amount.Amount, error) {
	if c.Lp == nil || c.Lp.Rate.IsZero() {
		return c.TokensForCapital(capital)
	}
	return amount.MulDiv(capital, c.Lp.Rate, amount.Unit(c.Config.Capital.Decimals))
}

// maxLpCapital is the most capital the LP can ever take.
func (c *Campaign) maxLpCapital() (amount.Amount, error) {
	if c.Lp == nil {
		return amount.Zero, nil
	}
	if c.Lp.SizeMode == LpAbsolute {
		return c.Lp.Size, nil
	}
	return c.Config.HardCap.Percent(uint64(c.Lp.SizePct))
}

func (c *Campaign) lpTokenReserve() (amount.Amount, error) {
	maxCap, err := c.maxLpCapital()
	if err != nil {
		return amount.Zero, err
	}
	return c.lpTokensFor(maxCap)
}

// lpCapitalFor sizes the LP for a successful raise. The fee is always
// taken on the gross raise; the order only changes the base of a
// percentage target.
func (c *Campaign) lpCapitalFor(raised, fee amount.Amount) (amount.Amount, error) {
	if c.Lp == nil {
		return amount.Zero, nil
	}
	net, err := raised.Sub(fee)
	if err != nil {
		return amount.Zero, err
	}
	var target amount.Amount
	switch {
	case c.Lp.SizeMode == LpAbsolute:
		target = c.Lp.Size
	case c.Lp.Order == LpFirst:
		target, err = raised.Percent(uint64(c.Lp.SizePct))
	default:
		target, err = net.Percent(uint64(c.Lp.SizePct))
	}
	if err != nil {
		return amount.Zero, err
	}
	return amount.Min(target, net), nil
}

// splitShares divides total by split percentages; the last split takes the
// rounding remainder so the shares sum to total.
func splitShares(total amount.Amount, splits []Split) ([]amount.Amount, error) {
	out := make([]amount.Amount, len(splits))
	left := total
	for i, s := range splits {
		if i == len(splits)-1 {
			out[i] = left
			break
		}
		share, err := total.Percent(uint64(s.Pct))
		if err != nil {
			return nil, err
		}
		out[i] = share
		if left, err = left.Sub(share); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FinishUp settles the campaign after the IDO. A raise below the soft cap,
// or a tally that never resolved, ends in the failed branch where every
// participant may ReturnFund. Otherwise the fee goes to the fee vault,
// the LP is seeded and locked, and consumed burn is destroyed.
func (c *Campaign) FinishUp(env *Env, call Call) error {
	const op = "finish_up"
	if err := c.guard(op); err != nil {
		return err
	}
	if !c.Flags.Has(FlagFinalized) {
		return reject(op, CodeUnapprovedConfig, "campaign is not finalized")
	}
	if c.Phase(env.Now) != phase.IdoEnded {
		return reject(op, CodeIdoNotEndedYet, "ido ends at %s", c.Config.Schedule.IdoEnd)
	}
	if c.Flags.Has(FlagFinishedUp) {
		return reject(op, CodeAlreadyFinishedUp, "campaign is already settled")
	}

	st := Settlement{At: env.Now, Raised: c.TotalRaised}
	switch {
	case !c.Flags.Has(FlagTally) && len(c.Subscriptions) > 0:
		st.Reason = ReasonTallyUnresolved
	case c.TotalRaised.Lt(c.Config.SoftCap) || c.TotalRaised.IsZero():
		st.Reason = ReasonSoftCapNotMet
	default:
		st.Succeeded = true
	}
	if !st.Succeeded {
		st.Reclaimable = c.Funded
		c.Settlement = &st
		c.Flags |= FlagFinishedUp
		return nil
	}

	moves, positions, err := c.settleSuccess(op, env, &st)
	if err != nil {
		return err
	}
	if err := env.settle(op, moves...); err != nil {
		return err
	}
	c.Settlement = &st
	c.LpPositions = positions
	c.Flags |= FlagFinishedUp
	if len(positions) > 0 {
		c.Flags |= FlagLpCreated
	}
	return nil
}

func (c *Campaign) settleSuccess(op string, env *Env, st *Settlement) ([]Movement, []LpPosition, error) {
	var err error
	if st.Fee, err = st.Raised.Percent(uint64(c.Config.FeePct)); err != nil {
		return nil, nil, arith(op, err)
	}
	if st.LpCapital, err = c.lpCapitalFor(st.Raised, st.Fee); err != nil {
		return nil, nil, arith(op, err)
	}
	if st.LpTokens, err = c.lpTokensFor(st.LpCapital); err != nil {
		return nil, nil, arith(op, err)
	}
	if st.OwnerCapital, err = st.Raised.Sub(st.Fee); err == nil {
		st.OwnerCapital, err = st.OwnerCapital.Sub(st.LpCapital)
	}
	if err != nil {
		return nil, nil, arith(op, err)
	}
	if st.SoldTokens, err = c.TotalSold(); err != nil {
		return nil, nil, arith(op, err)
	}
	if c.Tally != nil {
		st.BurnConsumed = c.Tally.TotalBurnConsumed
	}
	committed, err := amount.Sum(st.SoldTokens, c.OwnerAllocation, st.LpTokens)
	if err != nil {
		return nil, nil, arith(op, err)
	}
	if st.Reclaimable, err = c.Funded.Sub(committed); err != nil {
		return nil, nil, reject(op, CodeValueExceeded, "funded %s cannot cover %s committed tokens", c.Funded, committed)
	}

	var moves []Movement
	if !st.Fee.IsZero() {
		if env.Registry == nil || env.Registry.FeeVault() == "" {
			return nil, nil, reject(op, CodeInvalidAddress, "no fee vault configured")
		}
		moves = append(moves, transfer(c.Config.Capital.ID, c.Account, env.Registry.FeeVault(), st.Fee))
	}
	if !st.BurnConsumed.IsZero() {
		moves = append(moves, Movement{Kind: MoveBurn, Asset: c.Config.Burn.ID, From: c.Account, Amount: st.BurnConsumed})
	}

	if st.LpCapital.IsZero() {
		return moves, nil, nil
	}
	if env.Venue == nil {
		return nil, nil, reject(op, CodeCannotCreateLp, "no liquidity venue configured")
	}
	capShares, err := splitShares(st.LpCapital, c.Lp.Splits)
	if err != nil {
		return nil, nil, arith(op, err)
	}
	tokenShares, err := splitShares(st.LpTokens, c.Lp.Splits)
	if err != nil {
		return nil, nil, arith(op, err)
	}
	positions := make([]LpPosition, 0, len(c.Lp.Splits))
	for i, s := range c.Lp.Splits {
		dep, err := env.Venue.Quote(s.Provider, c.Config.Token.ID, c.Config.Capital.ID, tokenShares[i], capShares[i])
		if err != nil {
			return nil, nil, reject(op, CodeCannotCreateLp, "provider %s: %v", s.Provider, err)
		}
		moves = append(moves,
			transfer(c.Config.Token.ID, c.Account, dep.Pool, tokenShares[i]),
			transfer(c.Config.Capital.ID, c.Account, dep.Pool, capShares[i]),
			Movement{Kind: MoveMint, Asset: dep.LpAsset, To: c.Account, Amount: dep.Units},
		)
		positions = append(positions, LpPosition{
			Provider: s.Provider,
			Pool:     dep.Pool,
			LpAsset:  dep.LpAsset,
			Position: vesting.Position{Entitlement: dep.Units},
		})
	}
	return moves, positions, nil
}

func (c *Campaign) requireSuccess(op string) error {
	if c.Settlement == nil {
		return reject(op, CodeNotReady, "campaign is not settled")
	}
	if !c.Settlement.Succeeded {
		return reject(op, CodeSoftCapNotMet, "campaign failed: %s", c.Settlement.Reason)
	}
	return nil
}

// ClaimFunds pays the owner's share of the raise.
func (c *Campaign) ClaimFunds(env *Env, call Call) error {
	const op = "claim_funds"
	if err := c.guard(op); err != nil {
		return err
	}
	if err := c.requireOwner(op, call.Caller); err != nil {
		return err
	}
	if err := c.requireSuccess(op); err != nil {
		return err
	}
	if c.Flags.Has(FlagFundsClaimed) {
		return reject(op, CodeAlreadyClaimed, "funds already claimed")
	}
	// Fee and LP can take the whole raise; the claim then moves nothing.
	if !c.Settlement.OwnerCapital.IsZero() {
		if err := env.settle(op, transfer(c.Config.Capital.ID, c.Account, c.Owner, c.Settlement.OwnerCapital)); err != nil {
			return err
		}
	}
	c.Flags |= FlagFundsClaimed
	return nil
}

// OwnerFunds returns the owner's claimable capital, zero once claimed.
func (c *Campaign) OwnerFunds() amount.Amount {
	if c.Settlement == nil || !c.Settlement.Succeeded || c.Flags.Has(FlagFundsClaimed) {
		return amount.Zero
	}
	return c.Settlement.OwnerCapital
}

// Reclaimable returns the tokens the owner may still take back: unsold
// supply, unused LP reserve and surplus after success; everything funded
// after failure or cancellation.
func (c *Campaign) Reclaimable() amount.Amount {
	switch {
	case c.Cancelled:
		return c.Funded.SatSub(c.Reclaimed)
	case c.Settlement != nil:
		return c.Settlement.Reclaimable.SatSub(c.Reclaimed)
	}
	return amount.Zero
}

// FundOut returns amt of reclaimable tokens to the owner.
func (c *Campaign) FundOut(env *Env, call Call, amt amount.Amount) error {
	const op = "fund_out"
	if err := c.requireOwner(op, call.Caller); err != nil {
		return err
	}
	if !c.Cancelled && c.Settlement == nil {
		return reject(op, CodeNotReady, "tokens are locked until settlement")
	}
	if amt.IsZero() {
		return reject(op, CodeInvalidAmount, "amount must be positive")
	}
	if amt.Gt(c.Reclaimable()) {
		return reject(op, CodeValueExceeded, "amount %s exceeds reclaimable %s", amt, c.Reclaimable())
	}
	reclaimed, err := c.Reclaimed.Add(amt)
	if err != nil {
		return arith(op, err)
	}
	if err := env.settle(op, transfer(c.Config.Token.ID, c.Account, c.Owner, amt)); err != nil {
		return err
	}
	c.Reclaimed = reclaimed
	return nil
}

// Info summarizes the campaign for registry listings.
type Info struct {
	ID          string        `json:"id"`
	Index       int           `json:"index"`
	Owner       string        `json:"owner"`
	Phase       string        `json:"phase"`
	HardCap     amount.Amount `json:"hard_cap"`
	SoftCap     amount.Amount `json:"soft_cap"`
	TotalRaised amount.Amount `json:"total_raised"`
	Subscribers int           `json:"subscribers"`
	Buyers      int           `json:"buyers"`
	Settled     bool          `json:"settled"`
	Succeeded   bool          `json:"succeeded"`
	Cancelled   bool          `json:"cancelled"`
}

// Info returns a summary at now.
func (c *Campaign) Info(env *Env) Info {
	info := Info{
		ID:          c.ID,
		Index:       c.Index,
		Owner:       c.Owner,
		Phase:       c.Phase(env.Now).String(),
		HardCap:     c.Config.HardCap,
		SoftCap:     c.Config.SoftCap,
		TotalRaised: c.TotalRaised,
		Subscribers: len(c.Subscriptions),
		Buyers:      len(c.Buyers),
		Cancelled:   c.Cancelled,
	}
	if c.Settlement != nil {
		info.Settled = true
		info.Succeeded = c.Settlement.Succeeded
	}
	return info
}

func (s Settlement) String() string {
	if !s.Succeeded {
		return fmt.Sprintf("failed (%s), raised %s", s.Reason, s.Raised)
	}
	return fmt.Sprintf("raised %s, fee %s, lp %s, owner %s", s.Raised, s.Fee, s.LpCapital, s.OwnerCapital)
}
