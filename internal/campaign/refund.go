package campaign

import (
	"github.com/roach88/launchpad/internal/amount"
)

// RefundQuote is what a refund would return.
type RefundQuote struct {
	Refunded bool          `json:"refunded"`
	Capital  amount.Amount `json:"capital"`
	Burn     amount.Amount `json:"burn"`
}

func (c *Campaign) failed() bool {
	return c.Cancelled || (c.Settlement != nil && !c.Settlement.Succeeded)
}

// excess returns the subscription capital and burn the tally did not use.
func (c *Campaign) excess(account string) (amount.Amount, amount.Amount, error) {
	p := c.PurchaseOf(account)
	o, err := c.SubscriptionResult(account)
	if err != nil {
		return amount.Zero, amount.Zero, err
	}
	sub, _ := c.subscription(account)
	subCapital, err := sub.Amount.Add(sub.OverSub)
	if err != nil {
		return amount.Zero, amount.Zero, err
	}
	capital, err := subCapital.Sub(o.Allocated)
	if err != nil {
		return amount.Zero, amount.Zero, err
	}
	burn, err := p.BurnPaid.Sub(o.BurnConsumed)
	if err != nil {
		return amount.Zero, amount.Zero, err
	}
	return capital, burn, nil
}

// Refundable quotes account's refund. After a failure it is everything
// paid and not yet returned; otherwise it is the tally's unused excess.
func (c *Campaign) Refundable(account string) (RefundQuote, error) {
	const op = "refundable"
	p := c.PurchaseOf(account)
	if c.failed() {
		return RefundQuote{
			Refunded: p.HasReturnedFund,
			Capital:  p.Paid.SatSub(p.RefundedCapital),
			Burn:     p.BurnPaid.SatSub(p.RefundedBurn),
		}, nil
	}
	if p.HasRefundedExcess {
		return RefundQuote{Refunded: true}, nil
	}
	capital, burn, err := c.excess(account)
	if err != nil {
		if CodeOf(err) != "" {
			return RefundQuote{}, err
		}
		return RefundQuote{}, arith(op, err)
	}
	return RefundQuote{Capital: capital, Burn: burn}, nil
}

// RefundExcess returns the subscription capital and burn the tally did not
// allocate.
func (c *Campaign) RefundExcess(env *Env, call Call) error {
	const op = "refund_excess"
	if err := c.guard(op); err != nil {
		return err
	}
	if c.failed() {
		return reject(op, CodeCannotRefundExcess, "campaign failed; use return_fund")
	}
	p := c.Purchases[call.Caller]
	if p == nil {
		return reject(op, CodeCannotRefundExcess, "%s has no position", call.Caller)
	}
	if p.HasRefundedExcess {
		return reject(op, CodeCannotRefundExcess, "excess already refunded")
	}
	capital, burn, err := c.excess(call.Caller)
	if err != nil {
		if CodeOf(err) != "" {
			return err
		}
		return arith(op, err)
	}
	if capital.IsZero() && burn.IsZero() {
		return reject(op, CodeCannotRefundExcess, "nothing to refund")
	}
	refundedCapital, err := p.RefundedCapital.Add(capital)
	if err != nil {
		return arith(op, err)
	}
	refundedBurn, err := p.RefundedBurn.Add(burn)
	if err != nil {
		return arith(op, err)
	}
	if err := env.settle(op,
		transfer(c.Config.Capital.ID, c.Account, call.Caller, capital),
		transfer(c.Config.Burn.ID, c.Account, call.Caller, burn),
	); err != nil {
		return err
	}
	p.RefundedCapital = refundedCapital
	p.RefundedBurn = refundedBurn
	p.HasRefundedExcess = true
	return nil
}

// ReturnFund returns everything the caller paid and has not been refunded
// yet. It is available only after cancellation or a failed settlement,
// and only once.
func (c *Campaign) ReturnFund(env *Env, call Call) error {
	const op = "return_fund"
	if !c.failed() {
		return reject(op, CodeCannotReturnFund, "campaign has not failed")
	}
	p := c.Purchases[call.Caller]
	if p == nil {
		return reject(op, CodeCannotReturnFund, "%s has no position", call.Caller)
	}
	if p.HasReturnedFund {
		return reject(op, CodeCannotReturnFund, "funds already returned")
	}
	capital := p.Paid.SatSub(p.RefundedCapital)
	burn := p.BurnPaid.SatSub(p.RefundedBurn)
	if capital.IsZero() && burn.IsZero() {
		return reject(op, CodeCannotReturnFund, "nothing to return")
	}
	if err := env.settle(op,
		transfer(c.Config.Capital.ID, c.Account, call.Caller, capital),
		transfer(c.Config.Burn.ID, c.Account, call.Caller, burn),
	); err != nil {
		return err
	}
	p.RefundedCapital = p.Paid
	p.RefundedBurn = p.BurnPaid
	p.HasReturnedFund = true
	return nil
}
