package engine

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/campaign"
	"github.com/roach88/launchpad/internal/canon"
	"github.com/roach88/launchpad/internal/registry"
	"github.com/roach88/launchpad/internal/vesting"
)

// Action names.
const (
	ActionMint           = "mint"
	ActionTransfer       = "transfer"
	ActionApprove        = "approve"
	ActionSnapshot       = "snapshot"
	ActionRecordSnapshot = "record_snapshot"
	ActionGrantRole      = "grant_role"
	ActionRevokeRole     = "revoke_role"
	ActionAddCurrency    = "add_currency"
	ActionRemoveCurrency = "remove_currency"
	ActionSetFeeVault    = "set_fee_vault"
	ActionAddProvider    = "add_provider"

	ActionCreate            = "create"
	ActionInitialize        = "initialize"
	ActionSetupWhitelist    = "setup_whitelist"
	ActionSetupVesting      = "setup_vesting"
	ActionSetupLp           = "setup_lp"
	ActionApproveConfig     = "approve_config"
	ActionFinalize          = "finalize"
	ActionFundIn            = "fund_in"
	ActionCancel            = "cancel"
	ActionSubscribe         = "subscribe"
	ActionRequestTally      = "request_tally"
	ActionFulfillRandomness = "fulfill_randomness"
	ActionBuyTokens         = "buy_tokens"
	ActionFinishUp          = "finish_up"
	ActionClaimFunds        = "claim_funds"
	ActionClaimTokens       = "claim_tokens"
	ActionClaimOwnerTokens  = "claim_owner_tokens"
	ActionClaimLpTokens     = "claim_lp_tokens"
	ActionFundOut           = "fund_out"
	ActionRefundExcess      = "refund_excess"
	ActionReturnFund        = "return_fund"
)

type scope int

const (
	scopePlatform scope = iota
	scopeCreate
	scopeCampaign
)

type handler struct {
	scope scope
	run   func(x *execution) error
}

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		ActionMint:           {scopePlatform, runMint},
		ActionTransfer:       {scopePlatform, runTransfer},
		ActionApprove:        {scopePlatform, runApprove},
		ActionSnapshot:       {scopePlatform, runSnapshot},
		ActionRecordSnapshot: {scopePlatform, runRecordSnapshot},
		ActionGrantRole:      {scopePlatform, runRole(true)},
		ActionRevokeRole:     {scopePlatform, runRole(false)},
		ActionAddCurrency:    {scopePlatform, runCurrency(true)},
		ActionRemoveCurrency: {scopePlatform, runCurrency(false)},
		ActionSetFeeVault:    {scopePlatform, runSetFeeVault},
		ActionAddProvider:    {scopePlatform, runAddProvider},

		ActionCreate:            {scopeCreate, runCreate},
		ActionInitialize:        {scopeCampaign, runInitialize},
		ActionSetupWhitelist:    {scopeCampaign, runSetupWhitelist},
		ActionSetupVesting:      {scopeCampaign, runSetupVesting},
		ActionSetupLp:           {scopeCampaign, runSetupLp},
		ActionApproveConfig:     {scopeCampaign, simple((*campaign.Campaign).ApproveConfig)},
		ActionFinalize:          {scopeCampaign, simple((*campaign.Campaign).Finalize)},
		ActionFundIn:            {scopeCampaign, runFundIn},
		ActionCancel:            {scopeCampaign, simple((*campaign.Campaign).Cancel)},
		ActionSubscribe:         {scopeCampaign, runSubscribe},
		ActionRequestTally:      {scopeCampaign, runRequestTally},
		ActionFulfillRandomness: {scopeCampaign, runFulfillRandomness},
		ActionBuyTokens:         {scopeCampaign, runBuyTokens},
		ActionFinishUp:          {scopeCampaign, runFinishUp},
		ActionClaimFunds:        {scopeCampaign, payout((*campaign.Campaign).ClaimFunds)},
		ActionClaimTokens:       {scopeCampaign, payout((*campaign.Campaign).ClaimTokens)},
		ActionClaimOwnerTokens:  {scopeCampaign, payout((*campaign.Campaign).ClaimOwnerTokens)},
		ActionClaimLpTokens:     {scopeCampaign, payout((*campaign.Campaign).ClaimLpTokens)},
		ActionFundOut:           {scopeCampaign, runFundOut},
		ActionRefundExcess:      {scopeCampaign, payout((*campaign.Campaign).RefundExcess)},
		ActionReturnFund:        {scopeCampaign, payout((*campaign.Campaign).ReturnFund)},
	}
}

// Actions lists every registered action name in sorted order.
func Actions() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CampaignScoped reports whether action addresses an existing campaign.
func CampaignScoped(action string) bool {
	h, ok := handlers[action]
	return ok && h.scope == scopeCampaign
}

// decode reads the canonical args into v, rejecting unknown fields.
func (x *execution) decode(v any) error {
	dec := json.NewDecoder(bytes.NewReader(x.raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalidArgs(x.action, x.campID, err)
	}
	return nil
}

func (x *execution) reject(code campaign.Code, format string, args ...any) error {
	return &campaign.Error{Code: code, Op: x.action, Message: fmt.Sprintf(format, args...)}
}

func (x *execution) requireRole(role campaign.Role) error {
	if !x.e.registry.HasRole(role, x.call.Caller) {
		return x.reject(campaign.CodeNoRights, "%s lacks role %s", x.call.Caller, role)
	}
	return nil
}

// settle applies platform movements and records them for revert.
func (x *execution) settle(moves ...campaign.Movement) error {
	if err := x.e.ledger.Settle(moves); err != nil {
		return x.reject(campaign.CodeTransferFailed, "%v", err)
	}
	x.env.Settled = append(x.env.Settled, moves...)
	return nil
}

// received sums what account got in this action, per asset.
func (x *execution) received(account string) map[string]any {
	totals := map[string]amount.Amount{}
	for _, m := range x.env.Settled {
		if m.To != account {
			continue
		}
		sum, err := totals[m.Asset].Add(m.Amount)
		if err != nil {
			continue
		}
		totals[m.Asset] = sum
	}
	out := make(map[string]any, len(totals))
	for asset, amt := range totals {
		out[asset] = amt.String()
	}
	return out
}

// Platform handlers.

type assetArgs struct {
	Asset  string        `json:"asset"`
	To     string        `json:"to"`
	Amount amount.Amount `json:"amount"`
}

func runMint(x *execution) error {
	var a assetArgs
	if err := x.decode(&a); err != nil {
		return err
	}
	if err := x.requireRole(campaign.RoleDeployer); err != nil {
		return err
	}
	if a.Asset == "" || a.To == "" {
		return x.reject(campaign.CodeInvalidAddress, "asset and recipient are required")
	}
	if a.Amount.IsZero() {
		return x.reject(campaign.CodeInvalidAmount, "amount must be positive")
	}
	return x.settle(campaign.Movement{Kind: campaign.MoveMint, Asset: a.Asset, To: a.To, Amount: a.Amount})
}

func runTransfer(x *execution) error {
	var a assetArgs
	if err := x.decode(&a); err != nil {
		return err
	}
	if a.Asset == "" || a.To == "" {
		return x.reject(campaign.CodeInvalidAddress, "asset and recipient are required")
	}
	if a.Amount.IsZero() {
		return x.reject(campaign.CodeInvalidAmount, "amount must be positive")
	}
	return x.settle(campaign.Movement{Kind: campaign.MoveTransfer, Asset: a.Asset, From: x.call.Caller, To: a.To, Amount: a.Amount})
}

type approveArgs struct {
	Asset string `json:"asset"`
	// Spender or Campaign names who may pull; Campaign resolves to the
	// campaign's ledger account.
	Spender  string        `json:"spender"`
	Campaign string        `json:"campaign"`
	Amount   amount.Amount `json:"amount"`
}

func runApprove(x *execution) error {
	var a approveArgs
	if err := x.decode(&a); err != nil {
		return err
	}
	spender := a.Spender
	if a.Campaign != "" {
		entry, ok := x.e.registry.Lookup(a.Campaign)
		if !ok {
			return unknownCampaign(x.action, a.Campaign)
		}
		spender = entry.Account
	}
	if a.Asset == "" || spender == "" {
		return x.reject(campaign.CodeInvalidAddress, "asset and spender are required")
	}
	owner := x.call.Caller
	x.commit(func() { x.e.ledger.Approve(a.Asset, owner, spender, a.Amount) })
	x.result["spender"] = spender
	x.result["allowance"] = a.Amount.String()
	return nil
}

type snapshotArgs struct {
	ID       string                   `json:"id"`
	Asset    string                   `json:"asset"`
	Supply   *amount.Amount           `json:"supply"`
	Balances map[string]amount.Amount `json:"balances"`
}

func runSnapshot(x *execution) error {
	var a snapshotArgs
	if err := x.decode(&a); err != nil {
		return err
	}
	if err := x.requireRole(campaign.RoleDeployer); err != nil {
		return err
	}
	if a.ID == "" || a.Asset == "" {
		return x.reject(campaign.CodeInvalidAddress, "snapshot id and asset are required")
	}
	x.commit(func() { x.e.ledger.Snapshot(a.ID, a.Asset) })
	x.result["supply"] = x.e.ledger.TotalSupply(a.Asset).String()
	return nil
}

func runRecordSnapshot(x *execution) error {
	var a snapshotArgs
	if err := x.decode(&a); err != nil {
		return err
	}
	if err := x.requireRole(campaign.RoleDeployer); err != nil {
		return err
	}
	if a.ID == "" || a.Asset == "" {
		return x.reject(campaign.CodeInvalidAddress, "snapshot id and asset are required")
	}
	listed := amount.Zero
	for account, bal := range a.Balances {
		sum, err := listed.Add(bal)
		if err != nil {
			return x.reject(campaign.CodeOverflow, "balance of %s: %v", account, err)
		}
		listed = sum
	}
	supply := listed
	if a.Supply != nil {
		if listed.Gt(*a.Supply) {
			return x.reject(campaign.CodeInvalidAmount, "balances %s exceed supply %s", listed, *a.Supply)
		}
		supply = *a.Supply
	}
	x.commit(func() {
		if err := x.e.ledger.RecordSnapshotWithSupply(a.ID, a.Asset, supply, a.Balances); err != nil {
			slog.Error("record snapshot", "id", a.ID, "error", err)
		}
	})
	x.result["supply"] = supply.String()
	x.result["holders"] = len(a.Balances)
	return nil
}

type roleArgs struct {
	Role    campaign.Role `json:"role"`
	Account string        `json:"account"`
}

func runRole(grant bool) func(x *execution) error {
	return func(x *execution) error {
		var a roleArgs
		if err := x.decode(&a); err != nil {
			return err
		}
		if err := x.requireRole(campaign.RoleDeployer); err != nil {
			return err
		}
		switch a.Role {
		case campaign.RoleDeployer, campaign.RoleConfigurator, campaign.RoleApprover:
		default:
			return x.reject(campaign.CodeValidation, "unknown role %q", a.Role)
		}
		if a.Account == "" {
			return x.reject(campaign.CodeInvalidAddress, "account is required")
		}
		if grant {
			x.commit(func() { x.e.registry.Grant(a.Role, a.Account) })
		} else {
			x.commit(func() { x.e.registry.Revoke(a.Role, a.Account) })
		}
		return nil
	}
}

type currencyArgs struct {
	Asset string `json:"asset"`
}

func runCurrency(add bool) func(x *execution) error {
	return func(x *execution) error {
		var a currencyArgs
		if err := x.decode(&a); err != nil {
			return err
		}
		if err := x.requireRole(campaign.RoleDeployer); err != nil {
			return err
		}
		if a.Asset == "" {
			return x.reject(campaign.CodeInvalidCurrency, "asset is required")
		}
		if add {
			x.commit(func() { x.e.registry.AddCurrency(a.Asset) })
		} else {
			x.commit(func() { x.e.registry.RemoveCurrency(a.Asset) })
		}
		return nil
	}
}

func runSetFeeVault(x *execution) error {
	var a struct {
		Account string `json:"account"`
	}
	if err := x.decode(&a); err != nil {
		return err
	}
	if err := x.requireRole(campaign.RoleDeployer); err != nil {
		return err
	}
	if a.Account == "" {
		return x.reject(campaign.CodeInvalidAddress, "fee vault account is required")
	}
	x.commit(func() { x.e.registry.SetFeeVault(a.Account) })
	return nil
}

func runAddProvider(x *execution) error {
	var a struct {
		Provider string `json:"provider"`
	}
	if err := x.decode(&a); err != nil {
		return err
	}
	if err := x.requireRole(campaign.RoleDeployer); err != nil {
		return err
	}
	if a.Provider == "" {
		return x.reject(campaign.CodeInvalidAddress, "provider is required")
	}
	x.commit(func() { x.e.venue.AddProvider(a.Provider) })
	return nil
}

// Campaign handlers.

type createArgs struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
}

func runCreate(x *execution) error {
	var a createArgs
	if err := x.decode(&a); err != nil {
		return err
	}
	if err := x.requireRole(campaign.RoleDeployer); err != nil {
		return err
	}
	if a.ID == "" || a.Owner == "" {
		return x.reject(campaign.CodeInvalidAddress, "campaign id and owner are required")
	}
	if _, ok := x.e.registry.Lookup(a.ID); ok {
		return x.reject(campaign.CodeAlreadyExist, "campaign %s already exists", a.ID)
	}
	x.created = &registry.Entry{
		Index:   x.e.registry.Total(),
		ID:      a.ID,
		Owner:   a.Owner,
		Account: registry.AccountFor(a.ID),
	}
	x.result["campaign_id"] = x.created.ID
	x.result["index"] = x.created.Index
	x.result["account"] = x.created.Account
	return nil
}

func runInitialize(x *execution) error {
	var cfg campaign.Config
	if err := x.decode(&cfg); err != nil {
		return err
	}
	return x.campaign.Initialize(x.env, x.call, cfg)
}

func runSetupWhitelist(x *execution) error {
	var w campaign.WhitelistConfig
	if err := x.decode(&w); err != nil {
		return err
	}
	return x.campaign.SetupWhitelist(x.env, x.call, w)
}

type vestingArgs struct {
	Buyer           vesting.Config `json:"buyer"`
	Owner           vesting.Config `json:"owner"`
	OwnerAllocation amount.Amount  `json:"owner_allocation"`
}

func runSetupVesting(x *execution) error {
	var a vestingArgs
	if err := x.decode(&a); err != nil {
		return err
	}
	return x.campaign.SetupVesting(x.env, x.call, a.Buyer, a.Owner, a.OwnerAllocation)
}

func runSetupLp(x *execution) error {
	var lp campaign.LpConfig
	if err := x.decode(&lp); err != nil {
		return err
	}
	return x.campaign.SetupLp(x.env, x.call, lp)
}

func simple(op func(*campaign.Campaign, *campaign.Env, campaign.Call) error) func(x *execution) error {
	return func(x *execution) error {
		if err := x.decode(&struct{}{}); err != nil {
			return err
		}
		return op(x.campaign, x.env, x.call)
	}
}

// payout runs an operation that pays the caller and reports what arrived.
func payout(op func(*campaign.Campaign, *campaign.Env, campaign.Call) error) func(x *execution) error {
	return func(x *execution) error {
		if err := x.decode(&struct{}{}); err != nil {
			return err
		}
		if err := op(x.campaign, x.env, x.call); err != nil {
			return err
		}
		x.result["received"] = x.received(x.call.Caller)
		return nil
	}
}

type amountArgs struct {
	Amount amount.Amount `json:"amount"`
	Value  amount.Amount `json:"value"`
}

func runFundIn(x *execution) error {
	var a amountArgs
	if err := x.decode(&a); err != nil {
		return err
	}
	x.call.Value = a.Value
	if err := x.campaign.FundIn(x.env, x.call, a.Amount); err != nil {
		return err
	}
	x.result["funded"] = x.campaign.Funded.String()
	x.result["funded_in"] = x.campaign.Flags.Has(campaign.FlagFundedIn)
	return nil
}

func runFundOut(x *execution) error {
	var a amountArgs
	if err := x.decode(&a); err != nil {
		return err
	}
	if err := x.campaign.FundOut(x.env, x.call, a.Amount); err != nil {
		return err
	}
	x.result["received"] = x.received(x.call.Caller)
	x.result["reclaimable"] = x.campaign.Reclaimable().String()
	return nil
}

type subscribeArgs struct {
	campaign.SubscribeRequest
	Value amount.Amount `json:"value"`
}

func runSubscribe(x *execution) error {
	var a subscribeArgs
	if err := x.decode(&a); err != nil {
		return err
	}
	x.call.Value = a.Value
	if err := x.campaign.Subscribe(x.env, x.call, a.SubscribeRequest); err != nil {
		return err
	}
	sub := x.campaign.Subscriptions[len(x.campaign.Subscriptions)-1]
	x.result["index"] = sub.Index
	x.result["guaranteed"] = sub.Guaranteed
	x.result["burn"] = sub.Burn.String()
	return nil
}

func runRequestTally(x *execution) error {
	if err := x.decode(&struct{}{}); err != nil {
		return err
	}
	if err := x.campaign.RequestTally(x.env, x.call); err != nil {
		return err
	}
	x.result["status"] = string(x.campaign.Random.Status)
	if x.campaign.Random.RequestID != "" {
		x.result["request_id"] = x.campaign.Random.RequestID
	}
	if x.campaign.Tally != nil {
		x.result["digest"] = x.campaign.Tally.Digest
	}
	return nil
}

type fulfillArgs struct {
	RequestID string `json:"request_id"`
	Value     string `json:"value"`
}

// runFulfillRandomness stores the oracle value and commits the tally in
// the same action.
func runFulfillRandomness(x *execution) error {
	var a fulfillArgs
	if err := x.decode(&a); err != nil {
		return err
	}
	if x.call.Caller != OracleCaller {
		return x.reject(campaign.CodeNoRights, "%s is not the randomness oracle", x.call.Caller)
	}
	var value [32]byte
	b, err := hex.DecodeString(a.Value)
	if err != nil || len(b) != len(value) {
		return invalidArgs(x.action, x.campID, fmt.Errorf("value must be 32 hex-encoded bytes"))
	}
	copy(value[:], b)

	err = x.campaign.FulfillRandomness(x.env, a.RequestID, value)
	if err == nil {
		err = x.campaign.CompleteTally(x.env)
	}
	if err != nil {
		// A closed tally never takes the value; stop offering the request.
		if campaign.CodeOf(err) == campaign.CodeNotEnabled {
			x.e.oracle.Forget(a.RequestID)
		}
		return err
	}
	x.commit(func() { x.e.oracle.Forget(a.RequestID) })
	x.result["digest"] = x.campaign.Tally.Digest
	x.result["total_allocated"] = x.campaign.Tally.TotalAllocated.String()
	return nil
}

func runBuyTokens(x *execution) error {
	var a amountArgs
	if err := x.decode(&a); err != nil {
		return err
	}
	x.call.Value = a.Value
	if err := x.campaign.BuyTokens(x.env, x.call, a.Amount); err != nil {
		return err
	}
	tokens, err := x.campaign.TokensForCapital(a.Amount)
	if err != nil {
		return x.reject(campaign.CodeOverflow, "%v", err)
	}
	x.result["tokens"] = tokens.String()
	x.result["total_raised"] = x.campaign.TotalRaised.String()
	return nil
}

func runFinishUp(x *execution) error {
	if err := x.decode(&struct{}{}); err != nil {
		return err
	}
	var pending string
	if x.campaign.Random.Status == campaign.RandomPending {
		pending = x.campaign.Random.RequestID
	}
	if err := x.campaign.FinishUp(x.env, x.call); err != nil {
		return err
	}
	if pending != "" {
		x.commit(func() { x.e.oracle.Forget(pending) })
	}
	settlement, err := canon.NormalizeObject(x.campaign.Settlement)
	if err != nil {
		return fmt.Errorf("settlement: %w", err)
	}
	x.result = settlement
	return nil
}
