package campaign

import (
	"encoding/hex"
	"fmt"

	"github.com/roach88/launchpad/internal/allocation"
	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/canon"
	"github.com/roach88/launchpad/internal/phase"
)

// RandomStatus is the state of the tally's randomness dependency.
type RandomStatus string

const (
	RandomNone        RandomStatus = "none"
	RandomPending     RandomStatus = "pending"
	RandomFulfilled   RandomStatus = "fulfilled"
	RandomNotRequired RandomStatus = "not_required"
)

// Randomness tracks the two-phase request/fulfil exchange with the oracle.
type Randomness struct {
	Status    RandomStatus `json:"status"`
	RequestID string       `json:"request_id,omitempty"`
	// Value is the fulfilled 32-byte value, hex encoded.
	Value string `json:"value,omitempty"`
}

func (r Randomness) status() RandomStatus {
	if r.Status == "" {
		return RandomNone
	}
	return r.Status
}

func (r Randomness) seed() ([32]byte, error) {
	var seed [32]byte
	if r.Value == "" {
		return seed, nil
	}
	b, err := hex.DecodeString(r.Value)
	if err != nil || len(b) != len(seed) {
		return seed, fmt.Errorf("malformed random value %q", r.Value)
	}
	copy(seed[:], b)
	return seed, nil
}

func (c *Campaign) entries() []allocation.Entry {
	out := make([]allocation.Entry, len(c.Subscriptions))
	for i, s := range c.Subscriptions {
		out[i] = allocation.Entry{
			Account:    s.Account,
			Guaranteed: s.Guaranteed,
			Amount:     s.Amount,
			OverSub:    s.OverSub,
			Priority:   s.Priority,
			Burn:       s.Burn,
		}
	}
	return out
}

func (c *Campaign) subscriptionsDigest() (string, error) {
	list := make([]any, len(c.Subscriptions))
	for i, s := range c.Subscriptions {
		list[i] = map[string]any{
			"account":    s.Account,
			"guaranteed": s.Guaranteed,
			"amount":     s.Amount,
			"over_sub":   s.OverSub,
			"priority":   s.Priority,
			"burn":       s.Burn,
		}
	}
	return canon.Digest(map[string]any{"campaign": c.ID, "subscriptions": list})
}

func (c *Campaign) computeTally(seed [32]byte) (allocation.Result, error) {
	return allocation.Tally(c.entries(), allocation.Params{
		HardCap:          c.Config.HardCap,
		LotteryBudgetPct: c.Config.LotteryBudgetPct,
		Seed:             seed,
	})
}

// commitTally books every allocation into the purchase records. All sums
// are computed before anything is assigned.
func (c *Campaign) commitTally(op string, res allocation.Result) error {
	totals := make([]amount.Amount, len(res.Outcomes))
	for i, o := range res.Outcomes {
		p := c.Purchases[o.Account]
		if p == nil {
			return reject(op, CodeInvalidAddress, "tally outcome for unknown subscriber %s", o.Account)
		}
		t, err := p.Total.Add(o.Allocated)
		if err != nil {
			return arith(op, err)
		}
		totals[i] = t
	}
	raised, err := c.TotalRaised.Add(res.TotalAllocated)
	if err != nil {
		return arith(op, err)
	}
	if raised.Gt(c.Config.HardCap) {
		return reject(op, CodeValueExceeded, "tally raises %s past hard cap", raised)
	}

	for i, o := range res.Outcomes {
		p := c.Purchases[o.Account]
		p.Subscribed = o.Allocated
		p.Total = totals[i]
	}
	c.TotalRaised = raised
	c.Tally = &res
	c.Flags |= FlagTally
	return nil
}

// RequestTally starts the tally. Without lottery entrants no randomness is
// needed and the tally commits immediately; otherwise a request goes to
// the oracle and the tally completes when the value arrives.
func (c *Campaign) RequestTally(env *Env, call Call) error {
	const op = "request_tally"
	if err := c.guard(op); err != nil {
		return err
	}
	if !c.Flags.Has(FlagBasicSetup) {
		return reject(op, CodeNoBasicSetup, "campaign is not initialized")
	}
	switch ph := c.Phase(env.Now); ph {
	case phase.Setup, phase.Subscription:
		return reject(op, CodeNotReady, "subscription has not ended")
	case phase.Tally:
	default:
		return reject(op, CodeNotEnabled, "tally window closed at ido start (phase %s)", ph)
	}
	if c.Flags.Has(FlagTally) || c.Random.status() != RandomNone {
		return reject(op, CodeAlreadyExist, "tally already requested")
	}

	entries := c.entries()
	if !allocation.HasLotteryEntrants(entries) {
		res, err := c.computeTally([32]byte{})
		if err != nil {
			return arith(op, err)
		}
		if err := c.commitTally(op, res); err != nil {
			return err
		}
		c.Random = Randomness{Status: RandomNotRequired}
		return nil
	}

	if env.Oracle == nil {
		return reject(op, CodeNotEnabled, "no randomness oracle configured")
	}
	digest, err := c.subscriptionsDigest()
	if err != nil {
		return reject(op, CodeValidation, "%v", err)
	}
	requestID, err := env.Oracle.RequestRandomness(c.ID, canon.Seed(c.ID, digest))
	if err != nil {
		return reject(op, CodeNotEnabled, "randomness request: %v", err)
	}
	c.Random = Randomness{Status: RandomPending, RequestID: requestID}
	return nil
}

// tallyOpen rejects tally commits once the campaign is settled or the IDO
// is over. An unresolved tally is final at that point.
func (c *Campaign) tallyOpen(op string, env *Env) error {
	if c.Flags.Has(FlagFinishedUp) {
		return reject(op, CodeNotEnabled, "campaign is settled")
	}
	if c.Phase(env.Now) == phase.IdoEnded {
		return reject(op, CodeNotEnabled, "ido has ended")
	}
	return nil
}

// FulfillRandomness stores the oracle's value for the pending request.
func (c *Campaign) FulfillRandomness(env *Env, requestID string, value [32]byte) error {
	const op = "fulfill_randomness"
	if err := c.guard(op); err != nil {
		return err
	}
	if err := c.tallyOpen(op, env); err != nil {
		return err
	}
	switch c.Random.status() {
	case RandomNone:
		return reject(op, CodeNotReady, "no randomness requested")
	case RandomFulfilled, RandomNotRequired:
		return reject(op, CodeAlreadyExist, "randomness already settled")
	}
	if requestID != c.Random.RequestID {
		return reject(op, CodeWrongValue, "request %s does not match pending %s", requestID, c.Random.RequestID)
	}
	c.Random.Status = RandomFulfilled
	c.Random.Value = hex.EncodeToString(value[:])
	return nil
}

// CompleteTally commits the tally once randomness has been fulfilled.
func (c *Campaign) CompleteTally(env *Env) error {
	const op = "complete_tally"
	if err := c.guard(op); err != nil {
		return err
	}
	if err := c.tallyOpen(op, env); err != nil {
		return err
	}
	if c.Flags.Has(FlagTally) {
		return reject(op, CodeAlreadyExist, "tally already committed")
	}
	if c.Random.status() != RandomFulfilled {
		return reject(op, CodeNotReady, "randomness is %s", c.Random.status())
	}
	seed, err := c.Random.seed()
	if err != nil {
		return reject(op, CodeValidation, "%v", err)
	}
	res, err := c.computeTally(seed)
	if err != nil {
		return arith(op, err)
	}
	return c.commitTally(op, res)
}

// PeekTally computes the tally without committing it. Once committed it
// returns the stored result, which is identical to what the peek computed.
func (c *Campaign) PeekTally() (allocation.Result, error) {
	const op = "peek_tally"
	if c.Tally != nil {
		return *c.Tally, nil
	}
	var seed [32]byte
	switch c.Random.status() {
	case RandomFulfilled:
		var err error
		if seed, err = c.Random.seed(); err != nil {
			return allocation.Result{}, reject(op, CodeValidation, "%v", err)
		}
	case RandomPending:
		return allocation.Result{}, reject(op, CodeNotReady, "randomness is pending")
	default:
		if allocation.HasLotteryEntrants(c.entries()) {
			return allocation.Result{}, reject(op, CodeNotReady, "randomness has not been requested")
		}
	}
	res, err := c.computeTally(seed)
	if err != nil {
		return allocation.Result{}, arith(op, err)
	}
	return res, nil
}

// SubscriptionResult returns account's tally outcome.
func (c *Campaign) SubscriptionResult(account string) (allocation.Outcome, error) {
	const op = "subscription_result"
	if c.Tally == nil {
		return allocation.Outcome{}, reject(op, CodeNotReady, "tally is %s", c.Random.status())
	}
	o, ok := c.Tally.Outcome(account)
	if !ok {
		return allocation.Outcome{}, reject(op, CodeInvalidAddress, "%s did not subscribe", account)
	}
	return o, nil
}
