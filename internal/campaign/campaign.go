package campaign

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/launchpad/internal/allocation"
	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/phase"
	"github.com/roach88/launchpad/internal/vesting"
)

// Flags records which lifecycle steps have completed.
type Flags uint16

const (
	FlagBasicSetup Flags = 1 << iota
	FlagVesting
	FlagApproved
	FlagFinalized
	FlagFundedIn
	FlagTally
	FlagFinishedUp
	FlagLpCreated
	FlagFundsClaimed
)

// Has reports whether every bit of f is set.
func (fl Flags) Has(f Flags) bool { return fl&f == f }

// Subscription is one holder's write-once subscription.
type Subscription struct {
	Index      int           `json:"index"`
	Account    string        `json:"account"`
	Guaranteed bool          `json:"guaranteed"`
	Amount     amount.Amount `json:"amount"`
	OverSub    amount.Amount `json:"over_sub"`
	Priority   uint8         `json:"priority"`
	Burn       amount.Amount `json:"burn"`
	At         time.Time     `json:"at"`
}

// Purchase is one holder's capital position across every phase.
type Purchase struct {
	Subscribed  amount.Amount `json:"subscribed"`
	Whitelisted amount.Amount `json:"whitelisted"`
	Public      amount.Amount `json:"public"`
	Total       amount.Amount `json:"total"`

	Paid     amount.Amount `json:"paid"`
	BurnPaid amount.Amount `json:"burn_paid"`

	RefundedCapital   amount.Amount `json:"refunded_capital"`
	RefundedBurn      amount.Amount `json:"refunded_burn"`
	HasRefundedExcess bool          `json:"has_refunded_excess"`
	HasReturnedFund   bool          `json:"has_returned_fund"`
}

// LpPosition is the locked LP from one provider split.
type LpPosition struct {
	Provider string           `json:"provider"`
	Pool     string           `json:"pool"`
	LpAsset  string           `json:"lp_asset"`
	Position vesting.Position `json:"position"`
}

// Settlement records the outcome of FinishUp.
type Settlement struct {
	At           time.Time     `json:"at"`
	Succeeded    bool          `json:"succeeded"`
	Reason       string        `json:"reason,omitempty"`
	Raised       amount.Amount `json:"raised"`
	Fee          amount.Amount `json:"fee"`
	LpCapital    amount.Amount `json:"lp_capital"`
	LpTokens     amount.Amount `json:"lp_tokens"`
	OwnerCapital amount.Amount `json:"owner_capital"`
	SoldTokens   amount.Amount `json:"sold_tokens"`
	BurnConsumed amount.Amount `json:"burn_consumed"`
	// Reclaimable is the token amount the owner may take back with FundOut.
	Reclaimable amount.Amount `json:"reclaimable"`
}

// Campaign is the sale aggregate. All fields are exported for
// persistence; mutate only through methods.
type Campaign struct {
	ID      string `json:"id"`
	Index   int    `json:"index"`
	Owner   string `json:"owner"`
	Account string `json:"account"`

	Flags     Flags `json:"flags"`
	Cancelled bool  `json:"cancelled"`

	Config          Config          `json:"config"`
	Whitelist       WhitelistConfig `json:"whitelist"`
	BuyerVesting    vesting.Config  `json:"buyer_vesting"`
	OwnerVesting    vesting.Config  `json:"owner_vesting"`
	OwnerAllocation amount.Amount   `json:"owner_allocation"`
	Lp              *LpConfig       `json:"lp,omitempty"`

	Funded    amount.Amount `json:"funded"`
	Reclaimed amount.Amount `json:"reclaimed"`

	Subscriptions []Subscription       `json:"subscriptions"`
	Random        Randomness           `json:"random"`
	Tally         *allocation.Result   `json:"tally,omitempty"`
	Purchases     map[string]*Purchase `json:"purchases"`
	Buyers        []string             `json:"buyers"`
	TotalRaised   amount.Amount        `json:"total_raised"`

	Claims      map[string]vesting.Position `json:"claims"`
	OwnerClaim  vesting.Position            `json:"owner_claim"`
	LpPositions []LpPosition                `json:"lp_positions,omitempty"`
	Settlement  *Settlement                 `json:"settlement,omitempty"`
}

// New creates an empty campaign. account is the ledger account that holds
// the campaign's funds.
func New(id string, index int, owner, account string) *Campaign {
	return &Campaign{
		ID:            id,
		Index:         index,
		Owner:         owner,
		Account:       account,
		Whitelist:     WhitelistConfig{Mode: WhitelistNone},
		Subscriptions: []Subscription{},
		Purchases:     map[string]*Purchase{},
		Buyers:        []string{},
		Claims:        map[string]vesting.Position{},
	}
}

// Clone returns a deep copy.
func (c *Campaign) Clone() (*Campaign, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("clone campaign: %w", err)
	}
	return Unmarshal(data)
}

// Marshal encodes the campaign for persistence.
func (c *Campaign) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal decodes a persisted campaign.
func Unmarshal(data []byte) (*Campaign, error) {
	var c Campaign
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal campaign: %w", err)
	}
	if c.Purchases == nil {
		c.Purchases = map[string]*Purchase{}
	}
	if c.Claims == nil {
		c.Claims = map[string]vesting.Position{}
	}
	if c.Subscriptions == nil {
		c.Subscriptions = []Subscription{}
	}
	if c.Buyers == nil {
		c.Buyers = []string{}
	}
	return &c, nil
}

// Phase returns the phase in effect at now.
func (c *Campaign) Phase(now time.Time) phase.Phase {
	if !c.Flags.Has(FlagBasicSetup) {
		if c.Cancelled {
			return phase.Cancelled
		}
		return phase.Setup
	}
	return phase.At(c.Config.Schedule, c.Whitelist.Duration, c.Cancelled, now)
}

func (c *Campaign) guard(op string) error {
	if c.Cancelled {
		return reject(op, CodeAborted, "campaign %s is cancelled", c.ID)
	}
	return nil
}

func (c *Campaign) requireRole(op string, env *Env, role Role, caller string) error {
	if env.Registry == nil || !env.Registry.HasRole(role, caller) {
		return reject(op, CodeNoRights, "%s lacks role %s", caller, role)
	}
	return nil
}

func (c *Campaign) requireOwner(op, caller string) error {
	if caller != c.Owner {
		return reject(op, CodeNoRights, "%s is not the campaign owner", caller)
	}
	return nil
}

// requireSetupOpen rejects configuration changes once approved or once
// subscriptions could have started.
func (c *Campaign) requireSetupOpen(op string, env *Env) error {
	if !c.Flags.Has(FlagBasicSetup) {
		return reject(op, CodeNoBasicSetup, "campaign is not initialized")
	}
	if c.Flags.Has(FlagApproved) {
		return reject(op, CodeCannotConfigure, "configuration is already approved")
	}
	if !env.Now.Before(c.Config.Schedule.SubStart) {
		return reject(op, CodeCannotConfigure, "subscription has started")
	}
	return nil
}

// Initialize sets the basic configuration.
func (c *Campaign) Initialize(env *Env, call Call, cfg Config) error {
	const op = "initialize"
	if err := c.guard(op); err != nil {
		return err
	}
	if err := c.requireRole(op, env, RoleConfigurator, call.Caller); err != nil {
		return err
	}
	if c.Flags.Has(FlagApproved) {
		return reject(op, CodeCannotInitialize, "configuration is already approved")
	}
	if c.Flags.Has(FlagBasicSetup) {
		return reject(op, CodeAlreadyCreated, "campaign is already initialized")
	}
	if err := cfg.validate(op, env.Registry); err != nil {
		return err
	}
	if !env.Now.Before(cfg.Schedule.SubStart) {
		return reject(op, CodeCannotInitialize, "subscription start %s is not in the future", cfg.Schedule.SubStart)
	}
	c.Config = cfg
	c.Flags |= FlagBasicSetup
	return nil
}

// SetupWhitelist configures the whitelisted buying window.
func (c *Campaign) SetupWhitelist(env *Env, call Call, w WhitelistConfig) error {
	const op = "setup_whitelist"
	if err := c.guard(op); err != nil {
		return err
	}
	if err := c.requireRole(op, env, RoleConfigurator, call.Caller); err != nil {
		return err
	}
	if err := c.requireSetupOpen(op, env); err != nil {
		return err
	}
	if err := w.validate(op, c.Config.Schedule); err != nil {
		return err
	}
	w.Tiers = append([]Tier(nil), w.Tiers...)
	c.Whitelist = w
	return nil
}

// SetupVesting configures buyer and owner vesting and the owner's token
// allocation.
func (c *Campaign) SetupVesting(env *Env, call Call, buyer, owner vesting.Config, ownerAllocation amount.Amount) error {
	const op = "setup_vesting"
	if err := c.guard(op); err != nil {
		return err
	}
	if err := c.requireRole(op, env, RoleConfigurator, call.Caller); err != nil {
		return err
	}
	if err := c.requireSetupOpen(op, env); err != nil {
		return err
	}
	if _, err := buyer.Resolve(c.Config.Schedule.IdoEnd); err != nil {
		return reject(op, CodeInvalidArray, "buyer vesting: %v", err)
	}
	if _, err := owner.Resolve(c.Config.Schedule.IdoEnd); err != nil {
		return reject(op, CodeInvalidArray, "owner vesting: %v", err)
	}
	c.BuyerVesting = buyer
	c.OwnerVesting = owner
	c.OwnerAllocation = ownerAllocation
	c.Flags |= FlagVesting
	return nil
}

// SetupLp configures liquidity provisioning.
func (c *Campaign) SetupLp(env *Env, call Call, lp LpConfig) error {
	const op = "setup_lp"
	if err := c.guard(op); err != nil {
		return err
	}
	if err := c.requireRole(op, env, RoleConfigurator, call.Caller); err != nil {
		return err
	}
	if err := c.requireSetupOpen(op, env); err != nil {
		return err
	}
	if err := lp.validate(op); err != nil {
		return err
	}
	if env.Venue == nil {
		return reject(op, CodeCannotCreateLp, "no liquidity venue configured")
	}
	lp.Splits = append([]Split(nil), lp.Splits...)
	c.Lp = &lp
	return nil
}

// ApproveConfig freezes the configuration.
func (c *Campaign) ApproveConfig(env *Env, call Call) error {
	const op = "approve_config"
	if err := c.guard(op); err != nil {
		return err
	}
	if err := c.requireRole(op, env, RoleApprover, call.Caller); err != nil {
		return err
	}
	if !c.Flags.Has(FlagBasicSetup | FlagVesting) {
		return reject(op, CodeNoBasicSetup, "initialize and vesting setup are required")
	}
	if c.Flags.Has(FlagApproved) {
		return reject(op, CodeAlreadyExist, "configuration is already approved")
	}
	if !env.Now.Before(c.Config.Schedule.SubStart) {
		return reject(op, CodeCannotConfigure, "subscription has started")
	}
	if _, err := c.RequiredFunding(); err != nil {
		return arith(op, err)
	}
	c.Flags |= FlagApproved
	return nil
}

// Finalize freezes the approved configuration for funding.
func (c *Campaign) Finalize(env *Env, call Call) error {
	const op = "finalize"
	if err := c.guard(op); err != nil {
		return err
	}
	if err := c.requireRole(op, env, RoleDeployer, call.Caller); err != nil {
		return err
	}
	if !c.Flags.Has(FlagApproved) {
		return reject(op, CodeUnapprovedConfig, "configuration is not approved")
	}
	if c.Flags.Has(FlagFinalized) {
		return reject(op, CodeAlreadyExist, "campaign is already finalized")
	}
	c.Flags |= FlagFinalized
	return nil
}

// FundIn pulls sale, owner and LP tokens from the owner. The campaign
// opens for subscriptions once the funded total reaches RequiredFunding.
func (c *Campaign) FundIn(env *Env, call Call, amt amount.Amount) error {
	const op = "fund_in"
	if err := c.guard(op); err != nil {
		return err
	}
	if err := c.requireOwner(op, call.Caller); err != nil {
		return err
	}
	if !c.Flags.Has(FlagFinalized) {
		return reject(op, CodeUnapprovedConfig, "campaign is not finalized")
	}
	if c.Flags.Has(FlagFinishedUp) {
		return reject(op, CodeAlreadyFinishedUp, "campaign is settled")
	}
	if amt.IsZero() {
		return reject(op, CodeInvalidAmount, "fund amount must be positive")
	}
	funded, err := c.Funded.Add(amt)
	if err != nil {
		return arith(op, err)
	}
	required, err := c.RequiredFunding()
	if err != nil {
		return arith(op, err)
	}
	if err := env.settle(op, pull(c.Config.Token.ID, call.Caller, c.Account, amt)); err != nil {
		return err
	}
	c.Funded = funded
	if !funded.Lt(required) {
		c.Flags |= FlagFundedIn
	}
	return nil
}

// Cancel aborts the campaign. Participants may then ReturnFund and the
// owner may FundOut everything funded.
func (c *Campaign) Cancel(env *Env, call Call) error {
	const op = "cancel"
	if err := c.guard(op); err != nil {
		return err
	}
	if err := c.requireRole(op, env, RoleDeployer, call.Caller); err != nil {
		return err
	}
	if c.Flags.Has(FlagFinishedUp) {
		return reject(op, CodeAlreadyFinishedUp, "campaign is settled")
	}
	c.Cancelled = true
	return nil
}

// RequiredFunding is SaleSupply + OwnerAllocation + the LP token reserve.
func (c *Campaign) RequiredFunding() (amount.Amount, error) {
	reserve, err := c.lpTokenReserve()
	if err != nil {
		return amount.Zero, err
	}
	return amount.Sum(c.Config.SaleSupply, c.OwnerAllocation, reserve)
}

// TokensForCapital converts capital to sale tokens at the fixed sale rate
// SaleSupply/HardCap, flooring.
func (c *Campaign) TokensForCapital(capital amount.Amount) (amount.Amount, error) {
	return amount.MulDiv(capital, c.Config.SaleSupply, c.Config.HardCap)
}

func (c *Campaign) purchase(account string) *Purchase {
	p, ok := c.Purchases[account]
	if !ok {
		p = &Purchase{}
		c.Purchases[account] = p
		c.Buyers = append(c.Buyers, account)
	}
	return p
}

func (c *Campaign) subscription(account string) (Subscription, bool) {
	for _, s := range c.Subscriptions {
		if s.Account == account {
			return s, true
		}
	}
	return Subscription{}, false
}

// pullCapital builds the movement that brings amt of capital from caller,
// checking the attached native value.
func (c *Campaign) pullCapital(op string, call Call, amt amount.Amount) (Movement, error) {
	if c.Config.CapitalMode == CapitalNative {
		if !call.Value.Eq(amt) {
			return Movement{}, reject(op, CodeWrongValue, "attached value %s does not match %s", call.Value, amt)
		}
		return transfer(c.Config.Capital.ID, call.Caller, c.Account, amt), nil
	}
	if !call.Value.IsZero() {
		return Movement{}, reject(op, CodeWrongValue, "native value attached to a pulled-capital campaign")
	}
	return pull(c.Config.Capital.ID, call.Caller, c.Account, amt), nil
}
