package campaign

import (
	"github.com/roach88/launchpad/internal/allocation"
	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/phase"
)

// SubscribeRequest is one holder's subscription.
type SubscribeRequest struct {
	// Amount is the guaranteed subscription, or the lottery request for a
	// holder below the guaranteed floor.
	Amount   amount.Amount `json:"amount"`
	OverSub  amount.Amount `json:"over_sub"`
	Priority uint8         `json:"priority"`
	Burn     amount.Amount `json:"burn"`
}

// Subscribable returns the most account may subscribe and whether it is a
// guaranteed amount rather than a lottery request.
func (c *Campaign) Subscribable(env *Env, account string) (amount.Amount, bool, error) {
	const op = "subscribable"
	if !c.Flags.Has(FlagBasicSetup) {
		return amount.Zero, false, reject(op, CodeNoBasicSetup, "campaign is not initialized")
	}
	if env.Snapshots == nil {
		return amount.Zero, false, reject(op, CodeNotEnabled, "no snapshot source configured")
	}
	balance, err := env.Snapshots.BalanceAt(c.Config.SnapshotID, account)
	if err != nil {
		return amount.Zero, false, reject(op, CodeNotReady, "snapshot balance: %v", err)
	}
	supply, err := env.Snapshots.TotalSupplyAt(c.Config.SnapshotID)
	if err != nil {
		return amount.Zero, false, reject(op, CodeNotReady, "snapshot supply: %v", err)
	}
	capAmt, guaranteed, err := allocation.Subscribable(c.Config.HardCap, balance, supply, c.Config.GuaranteedFloor)
	if err != nil {
		return amount.Zero, false, arith(op, err)
	}
	return capAmt, guaranteed, nil
}

// BurnQuantity prices an oversubscription stake at priority.
func (c *Campaign) BurnQuantity(overSub amount.Amount, priority uint8) (amount.Amount, error) {
	return allocation.BurnQuantity(c.Config.StdBurnQty, c.Config.StdOverSubQty, overSub, priority)
}

// Subscribe records a write-once subscription and pulls its capital and
// burn payment.
func (c *Campaign) Subscribe(env *Env, call Call, req SubscribeRequest) error {
	const op = "subscribe"
	if err := c.guard(op); err != nil {
		return err
	}
	if ph := c.Phase(env.Now); ph != phase.Subscription {
		return reject(op, CodeNotEnabled, "subscriptions are closed during %s", ph)
	}
	if !c.Flags.Has(FlagFundedIn) {
		return reject(op, CodeNotReady, "campaign is not funded")
	}
	if _, ok := c.subscription(call.Caller); ok {
		return reject(op, CodeAlreadySubscribed, "%s already subscribed", call.Caller)
	}
	if req.Amount.IsZero() && req.OverSub.IsZero() {
		return reject(op, CodeInvalidAmount, "subscription is empty")
	}
	if req.Priority > allocation.MaxPriority {
		return reject(op, CodeInvalidRange, "priority %d exceeds %d", req.Priority, allocation.MaxPriority)
	}
	if req.OverSub.IsZero() && req.Priority != 0 {
		return reject(op, CodeInvalidRange, "priority without oversubscription")
	}

	capAmt, guaranteed, err := c.Subscribable(env, call.Caller)
	if err != nil {
		return err
	}
	if req.Amount.Gt(capAmt) {
		return reject(op, CodeValueExceeded, "amount %s exceeds subscribable %s", req.Amount, capAmt)
	}
	if req.OverSub.Gt(c.Config.HardCap) {
		return reject(op, CodeValueExceeded, "oversubscription %s exceeds hard cap", req.OverSub)
	}
	wantBurn, err := c.BurnQuantity(req.OverSub, req.Priority)
	if err != nil {
		return arith(op, err)
	}
	if !req.Burn.Eq(wantBurn) {
		return reject(op, CodeWrongValue, "burn %s does not match required %s", req.Burn, wantBurn)
	}

	capital, err := req.Amount.Add(req.OverSub)
	if err != nil {
		return arith(op, err)
	}
	prev := c.Purchases[call.Caller]
	if prev == nil {
		prev = &Purchase{}
	}
	paid, err := prev.Paid.Add(capital)
	if err != nil {
		return arith(op, err)
	}
	burnPaid, err := prev.BurnPaid.Add(req.Burn)
	if err != nil {
		return arith(op, err)
	}
	capMove, err := c.pullCapital(op, call, capital)
	if err != nil {
		return err
	}
	burnMove := pull(c.Config.Burn.ID, call.Caller, c.Account, req.Burn)
	if err := env.settle(op, capMove, burnMove); err != nil {
		return err
	}

	c.Subscriptions = append(c.Subscriptions, Subscription{
		Index:      len(c.Subscriptions),
		Account:    call.Caller,
		Guaranteed: guaranteed,
		Amount:     req.Amount,
		OverSub:    req.OverSub,
		Priority:   req.Priority,
		Burn:       req.Burn,
		At:         env.Now,
	})
	p := c.purchase(call.Caller)
	p.Paid = paid
	p.BurnPaid = burnPaid
	return nil
}
