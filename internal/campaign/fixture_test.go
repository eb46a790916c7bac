package campaign_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/campaign"
	"github.com/roach88/launchpad/internal/ledger"
	"github.com/roach88/launchpad/internal/liquidity"
	"github.com/roach88/launchpad/internal/oracle"
	"github.com/roach88/launchpad/internal/phase"
	"github.com/roach88/launchpad/internal/registry"
	"github.com/roach88/launchpad/internal/vesting"
)

const (
	admin = "admin"
	owner = "owner"
	vault = "vault"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Offsets from t0 landing inside each phase of testSchedule.
const (
	inSetup        = 0
	inSubscription = 90 * time.Minute
	inTally        = 150 * time.Minute
	inIdo          = 210 * time.Minute
	afterIdo       = 6 * time.Hour
)

func usdc(s string) amount.Amount { return amount.MustParse(s, 6) }
func tkn(s string) amount.Amount  { return amount.MustParse(s, 18) }
func brn(s string) amount.Amount  { return amount.MustParse(s, 18) }

func testSchedule() phase.Schedule {
	return phase.Schedule{
		SubStart: t0.Add(time.Hour),
		SubEnd:   t0.Add(2 * time.Hour),
		IdoStart: t0.Add(3 * time.Hour),
		IdoEnd:   t0.Add(5 * time.Hour),
	}
}

func baseConfig() campaign.Config {
	return campaign.Config{
		Token:           campaign.Asset{ID: "TKN", Decimals: 18},
		Capital:         campaign.Asset{ID: "USDC", Decimals: 6},
		CapitalMode:     campaign.CapitalPulled,
		Burn:            campaign.Asset{ID: "BRN", Decimals: 18},
		Schedule:        testSchedule(),
		SoftCap:         usdc("1"),
		HardCap:         usdc("10"),
		SaleSupply:      tkn("1000"),
		SnapshotID:      "snap",
		GuaranteedFloor: usdc("0.1"),
		StdOverSubQty:   usdc("1.5"),
		StdBurnQty:      brn("180"),
	}
}

type seqIDs struct{ n int }

func (g *seqIDs) Generate() string {
	g.n++
	return fmt.Sprintf("req-%d", g.n)
}

type fixture struct {
	t      *testing.T
	now    time.Time
	ledger *ledger.Ledger
	reg    *registry.Registry
	oracle *oracle.Provider
	venue  *liquidity.Venue
	c      *campaign.Campaign
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := ledger.New()
	reg := registry.New(admin, vault)
	reg.AddCurrency("USDC")
	reg.AddCurrency("ETH")
	entry, err := reg.Register("camp-1", owner)
	require.NoError(t, err)
	return &fixture{
		t:      t,
		now:    t0,
		ledger: l,
		reg:    reg,
		oracle: oracle.New(oracle.WithIDs(&seqIDs{})),
		venue:  liquidity.New(l, "uni", "curve"),
		c:      campaign.New(entry.ID, entry.Index, entry.Owner, entry.Account),
	}
}

func (f *fixture) env() *campaign.Env {
	return &campaign.Env{
		Now:       f.now,
		Ledger:    f.ledger,
		Snapshots: f.ledger,
		Oracle:    f.oracle,
		Registry:  f.reg,
		Venue:     f.venue,
	}
}

func (f *fixture) at(d time.Duration) { f.now = t0.Add(d) }

func call(caller string) campaign.Call { return campaign.Call{Caller: caller} }

// give mints amt of asset to account and approves the campaign to pull it.
func (f *fixture) give(account, asset string, amt amount.Amount) {
	f.t.Helper()
	require.NoError(f.t, f.ledger.Mint(asset, account, amt))
	allowance, err := f.ledger.Allowance(asset, account, f.c.Account).Add(amt)
	require.NoError(f.t, err)
	f.ledger.Approve(asset, account, f.c.Account, allowance)
}

// holders records the governance snapshot; supply is 1000 GOV.
func (f *fixture) holders(balances map[string]uint64) {
	f.t.Helper()
	bs := make(map[string]amount.Amount, len(balances))
	for k, v := range balances {
		bs[k] = amount.New(v)
	}
	require.NoError(f.t, f.ledger.RecordSnapshotWithSupply("snap", "GOV", amount.New(1000), bs))
}

type setupOpts struct {
	whitelist       *campaign.WhitelistConfig
	lp              *campaign.LpConfig
	buyerVesting    vesting.Config
	ownerVesting    vesting.Config
	ownerAllocation amount.Amount
}

// setup runs the full configuration lifecycle and funds the campaign.
func (f *fixture) setup(cfg campaign.Config, o setupOpts) {
	f.t.Helper()
	f.at(inSetup)
	env := f.env()
	require.NoError(f.t, f.c.Initialize(env, call(admin), cfg))
	if o.whitelist != nil {
		require.NoError(f.t, f.c.SetupWhitelist(env, call(admin), *o.whitelist))
	}
	if o.buyerVesting.Kind == "" {
		o.buyerVesting = vesting.Immediate()
	}
	if o.ownerVesting.Kind == "" {
		o.ownerVesting = vesting.Immediate()
	}
	require.NoError(f.t, f.c.SetupVesting(env, call(admin), o.buyerVesting, o.ownerVesting, o.ownerAllocation))
	if o.lp != nil {
		require.NoError(f.t, f.c.SetupLp(env, call(admin), *o.lp))
	}
	require.NoError(f.t, f.c.ApproveConfig(env, call(admin)))
	require.NoError(f.t, f.c.Finalize(env, call(admin)))

	required, err := f.c.RequiredFunding()
	require.NoError(f.t, err)
	f.give(owner, cfg.Token.ID, required)
	require.NoError(f.t, f.c.FundIn(env, call(owner), required))
	require.True(f.t, f.c.Flags.Has(campaign.FlagFundedIn))
}

// tally runs RequestTally in the tally window and, when randomness was
// requested, fulfils it with value and completes the tally.
func (f *fixture) tally(value [32]byte) {
	f.t.Helper()
	f.at(inTally)
	require.NoError(f.t, f.c.RequestTally(f.env(), call("anyone")))
	if f.c.Random.Status == campaign.RandomPending {
		require.NoError(f.t, f.c.FulfillRandomness(f.env(), f.c.Random.RequestID, value))
		require.NoError(f.t, f.c.CompleteTally(f.env()))
	}
	require.True(f.t, f.c.Flags.Has(campaign.FlagTally))
}

func (f *fixture) buy(account string, amt amount.Amount) {
	f.t.Helper()
	f.give(account, f.c.Config.Capital.ID, amt)
	require.NoError(f.t, f.c.BuyTokens(f.env(), call(account), amt))
}

func (f *fixture) subscribe(account string, req campaign.SubscribeRequest) error {
	f.t.Helper()
	capital, err := req.Amount.Add(req.OverSub)
	require.NoError(f.t, err)
	f.give(account, f.c.Config.Capital.ID, capital)
	f.give(account, f.c.Config.Burn.ID, req.Burn)
	return f.c.Subscribe(f.env(), call(account), req)
}

func (f *fixture) balance(asset, account string) amount.Amount {
	return f.ledger.BalanceOf(asset, account)
}

func requireCode(t *testing.T, want campaign.Code, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, campaign.CodeOf(err), "error: %v", err)
}
