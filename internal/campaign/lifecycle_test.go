package campaign_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/campaign"
	"github.com/roach88/launchpad/internal/phase"
	"github.com/roach88/launchpad/internal/vesting"
)

func TestSetupLifecycleRejections(t *testing.T) {
	f := newFixture(t)
	env := f.env()

	requireCode(t, campaign.CodeNoRights, f.c.Initialize(env, call("mallory"), baseConfig()))

	bad := baseConfig()
	bad.Capital = campaign.Asset{ID: "DOGE", Decimals: 8}
	requireCode(t, campaign.CodeInvalidCurrency, f.c.Initialize(env, call(admin), bad))

	bad = baseConfig()
	bad.FeePct = campaign.MaxFeePct + 1
	requireCode(t, campaign.CodeInvalidFee, f.c.Initialize(env, call(admin), bad))

	bad = baseConfig()
	bad.SoftCap = usdc("11")
	requireCode(t, campaign.CodeInvalidRange, f.c.Initialize(env, call(admin), bad))

	requireCode(t, campaign.CodeNoBasicSetup, f.c.ApproveConfig(env, call(admin)))

	require.NoError(t, f.c.Initialize(env, call(admin), baseConfig()))
	requireCode(t, campaign.CodeAlreadyCreated, f.c.Initialize(env, call(admin), baseConfig()))
	requireCode(t, campaign.CodeNoBasicSetup, f.c.ApproveConfig(env, call(admin)))
	requireCode(t, campaign.CodeUnapprovedConfig, f.c.Finalize(env, call(admin)))

	badSlots := vesting.Config{Kind: vesting.KindInterval, Slots: []vesting.Slot{{Pct: 10}}}
	requireCode(t, campaign.CodeInvalidArray, f.c.SetupVesting(env, call(admin), badSlots, vesting.Immediate(), amount.Zero))
	require.NoError(t, f.c.SetupVesting(env, call(admin), vesting.Immediate(), vesting.Immediate(), amount.Zero))

	requireCode(t, campaign.CodeNoRights, f.c.ApproveConfig(env, call(owner)))
	require.NoError(t, f.c.ApproveConfig(env, call(admin)))
	requireCode(t, campaign.CodeAlreadyExist, f.c.ApproveConfig(env, call(admin)))
	requireCode(t, campaign.CodeCannotConfigure, f.c.SetupVesting(env, call(admin), vesting.Immediate(), vesting.Immediate(), amount.Zero))

	requireCode(t, campaign.CodeNoRights, f.c.Finalize(env, call(owner)))
	require.NoError(t, f.c.Finalize(env, call(admin)))
	requireCode(t, campaign.CodeAlreadyExist, f.c.Finalize(env, call(admin)))

	requireCode(t, campaign.CodeNoRights, f.c.FundIn(env, call("mallory"), tkn("1")))
	f.give(owner, "TKN", tkn("400"))
	require.NoError(t, f.c.FundIn(env, call(owner), tkn("400")))
	assert.False(t, f.c.Flags.Has(campaign.FlagFundedIn))

	f.holders(map[string]uint64{"alice": 100})
	f.at(inSubscription)
	requireCode(t, campaign.CodeNotReady, f.subscribe("alice", campaign.SubscribeRequest{Amount: usdc("1")}))

	f.give(owner, "TKN", tkn("600"))
	require.NoError(t, f.c.FundIn(f.env(), call(owner), tkn("600")))
	assert.True(t, f.c.Flags.Has(campaign.FlagFundedIn))
	require.NoError(t, f.c.Subscribe(f.env(), call("alice"), campaign.SubscribeRequest{Amount: usdc("1")}))
}

func TestInitializeAfterSubscriptionStart(t *testing.T) {
	f := newFixture(t)
	f.at(inSubscription)
	requireCode(t, campaign.CodeCannotInitialize, f.c.Initialize(f.env(), call(admin), baseConfig()))
}

func TestPhaseIsDerivedFromTime(t *testing.T) {
	f := newFixture(t)
	wl := &campaign.WhitelistConfig{Mode: campaign.WhitelistAllocation, Duration: 30 * time.Minute}
	f.setup(baseConfig(), setupOpts{whitelist: wl})

	cases := []struct {
		at   time.Duration
		want phase.Phase
	}{
		{inSetup, phase.Setup},
		{inSubscription, phase.Subscription},
		{inTally, phase.Tally},
		{3*time.Hour + 10*time.Minute, phase.IdoWhitelisted},
		{3*time.Hour + 30*time.Minute, phase.IdoPublic},
		{5 * time.Hour, phase.IdoEnded},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, f.c.Phase(t0.Add(tc.at)), "at %s", tc.at)
	}
	require.NoError(t, f.c.Cancel(f.env(), call(admin)))
	assert.Equal(t, phase.Cancelled, f.c.Phase(t0.Add(inIdo)))
}

func TestSubscribeRules(t *testing.T) {
	f := newFixture(t)
	f.setup(baseConfig(), setupOpts{})
	f.holders(map[string]uint64{"alice": 100, "bob": 1})

	f.at(inSetup)
	requireCode(t, campaign.CodeNotEnabled, f.subscribe("alice", campaign.SubscribeRequest{Amount: usdc("1")}))

	f.at(inSubscription)
	capAmt, guaranteed, err := f.c.Subscribable(f.env(), "alice")
	require.NoError(t, err)
	assert.True(t, guaranteed)
	assert.Equal(t, usdc("1"), capAmt)

	capAmt, guaranteed, err = f.c.Subscribable(f.env(), "bob")
	require.NoError(t, err)
	assert.False(t, guaranteed)
	assert.Equal(t, usdc("0.1"), capAmt)

	requireCode(t, campaign.CodeInvalidAmount, f.subscribe("alice", campaign.SubscribeRequest{}))
	requireCode(t, campaign.CodeValueExceeded, f.subscribe("alice", campaign.SubscribeRequest{Amount: usdc("1.1")}))
	requireCode(t, campaign.CodeWrongValue, f.subscribe("alice", campaign.SubscribeRequest{Amount: usdc("1"), OverSub: usdc("1"), Burn: brn("1")}))
	requireCode(t, campaign.CodeInvalidRange, f.subscribe("alice", campaign.SubscribeRequest{Amount: usdc("1"), Priority: 3}))
	requireCode(t, campaign.CodeInvalidRange, f.subscribe("alice", campaign.SubscribeRequest{OverSub: usdc("1"), Priority: 101}))

	burn, err := f.c.BurnQuantity(usdc("1"), 15)
	require.NoError(t, err)
	assert.Equal(t, brn("300"), burn)
	require.NoError(t, f.subscribe("alice", campaign.SubscribeRequest{Amount: usdc("1"), OverSub: usdc("1"), Priority: 15, Burn: burn}))

	requireCode(t, campaign.CodeAlreadySubscribed, f.subscribe("alice", campaign.SubscribeRequest{Amount: usdc("1")}))
	require.Len(t, f.c.Subscriptions, 1)
	p := f.c.PurchaseOf("alice")
	assert.Equal(t, usdc("2"), p.Paid)
	assert.Equal(t, burn, p.BurnPaid)
	assert.True(t, p.Total.IsZero())
}

func TestTallyPeekMatchesCommit(t *testing.T) {
	f := newFixture(t)
	f.setup(baseConfig(), setupOpts{})
	f.holders(map[string]uint64{"alice": 100, "bob": 1})

	f.at(inSubscription)
	require.NoError(t, f.subscribe("alice", campaign.SubscribeRequest{Amount: usdc("1")}))
	require.NoError(t, f.subscribe("bob", campaign.SubscribeRequest{Amount: usdc("0.1")}))
	requireCode(t, campaign.CodeNotReady, f.c.RequestTally(f.env(), call("anyone")))

	f.at(inTally)
	_, err := f.c.PeekTally()
	requireCode(t, campaign.CodeNotReady, err)

	require.NoError(t, f.c.RequestTally(f.env(), call("anyone")))
	assert.Equal(t, campaign.RandomPending, f.c.Random.Status)
	assert.Equal(t, "req-1", f.c.Random.RequestID)
	requireCode(t, campaign.CodeAlreadyExist, f.c.RequestTally(f.env(), call("anyone")))

	_, err = f.c.PeekTally()
	assert.True(t, campaign.IsNotReady(err))
	_, err = f.c.SubscriptionResult("bob")
	assert.True(t, campaign.IsNotReady(err))
	requireCode(t, campaign.CodeNotReady, f.c.CompleteTally(f.env()))

	f.at(inIdo)
	f.give("carol", "USDC", usdc("1"))
	requireCode(t, campaign.CodeNotReady, f.c.BuyTokens(f.env(), call("carol"), usdc("1")))

	value := [32]byte{7, 7, 7}
	requireCode(t, campaign.CodeWrongValue, f.c.FulfillRandomness(f.env(), "req-9", value))
	require.NoError(t, f.c.FulfillRandomness(f.env(), "req-1", value))
	requireCode(t, campaign.CodeAlreadyExist, f.c.FulfillRandomness(f.env(), "req-1", value))

	peek, err := f.c.PeekTally()
	require.NoError(t, err)
	require.NoError(t, f.c.CompleteTally(f.env()))
	require.NotNil(t, f.c.Tally)
	assert.Equal(t, peek, *f.c.Tally)
	requireCode(t, campaign.CodeAlreadyExist, f.c.CompleteTally(f.env()))

	after, err := f.c.PeekTally()
	require.NoError(t, err)
	assert.Equal(t, peek.Digest, after.Digest)

	bob, err := f.c.SubscriptionResult("bob")
	require.NoError(t, err)
	assert.True(t, bob.WonLottery)
	assert.Equal(t, usdc("0.1"), bob.Allocated)
	assert.Equal(t, usdc("1.1"), f.c.TotalRaised)

	_, err = f.c.SubscriptionResult("carol")
	requireCode(t, campaign.CodeInvalidAddress, err)
}

func TestTallyIsDeterministicAcrossClones(t *testing.T) {
	f := newFixture(t)
	f.setup(baseConfig(), setupOpts{})
	f.holders(map[string]uint64{"a": 1, "b": 2, "c": 3, "d": 4})
	f.at(inSubscription)
	for _, acct := range []string{"a", "b", "c", "d"} {
		require.NoError(t, f.subscribe(acct, campaign.SubscribeRequest{Amount: usdc("0.1")}))
	}
	f.at(inTally)
	require.NoError(t, f.c.RequestTally(f.env(), call("anyone")))
	require.NoError(t, f.c.FulfillRandomness(f.env(), f.c.Random.RequestID, [32]byte{42}))

	clone, err := f.c.Clone()
	require.NoError(t, err)
	require.NoError(t, f.c.CompleteTally(f.env()))
	require.NoError(t, clone.CompleteTally(f.env()))
	assert.Equal(t, f.c.Tally.Digest, clone.Tally.Digest)
}

func TestRefundExcessAfterOversubscription(t *testing.T) {
	f := newFixture(t)
	f.setup(baseConfig(), setupOpts{})
	f.holders(map[string]uint64{"alice": 100, "carol": 500})

	f.at(inSubscription)
	require.NoError(t, f.subscribe("alice", campaign.SubscribeRequest{Amount: usdc("1"), OverSub: usdc("6"), Burn: brn("720")}))
	require.NoError(t, f.subscribe("carol", campaign.SubscribeRequest{Amount: usdc("5"), OverSub: usdc("6"), Burn: brn("720")}))

	f.tally([32]byte{})
	assert.Equal(t, campaign.RandomNotRequired, f.c.Random.Status)

	alice, err := f.c.SubscriptionResult("alice")
	require.NoError(t, err)
	assert.Equal(t, usdc("2"), alice.OverSubAmount)
	assert.Equal(t, usdc("3"), alice.Allocated)
	assert.Equal(t, brn("240"), alice.BurnConsumed)
	assert.Equal(t, usdc("10"), f.c.TotalRaised)

	quote, err := f.c.Refundable("alice")
	require.NoError(t, err)
	assert.Equal(t, usdc("4"), quote.Capital)
	assert.Equal(t, brn("480"), quote.Burn)

	requireCode(t, campaign.CodeCannotReturnFund, f.c.ReturnFund(f.env(), call("alice")))
	require.NoError(t, f.c.RefundExcess(f.env(), call("alice")))
	assert.Equal(t, usdc("4"), f.balance("USDC", "alice"))
	assert.Equal(t, brn("480"), f.balance("BRN", "alice"))
	requireCode(t, campaign.CodeCannotRefundExcess, f.c.RefundExcess(f.env(), call("alice")))

	f.at(inIdo)
	f.give("dave", "USDC", usdc("1"))
	requireCode(t, campaign.CodeValueExceeded, f.c.BuyTokens(f.env(), call("dave"), usdc("1")))

	f.at(afterIdo)
	require.NoError(t, f.c.FinishUp(f.env(), call("anyone")))
	st := f.c.Settlement
	require.True(t, st.Succeeded)
	assert.Equal(t, tkn("1000"), st.SoldTokens)
	assert.Equal(t, brn("480"), st.BurnConsumed)
	assert.Equal(t, brn("960"), f.ledger.TotalSupply("BRN"))
	assert.True(t, f.c.Reclaimable().IsZero())

	sold, err := f.c.TotalSold()
	require.NoError(t, err)
	assert.False(t, sold.Gt(f.c.Config.SaleSupply))
}

func TestFailedSettlementSoftCap(t *testing.T) {
	f := newFixture(t)
	f.setup(baseConfig(), setupOpts{})
	f.tally([32]byte{})

	f.at(inIdo)
	f.buy("alice", usdc("0.5"))

	requireCode(t, campaign.CodeIdoNotEndedYet, f.c.FinishUp(f.env(), call("anyone")))
	f.at(afterIdo)
	require.NoError(t, f.c.FinishUp(f.env(), call("anyone")))
	requireCode(t, campaign.CodeAlreadyFinishedUp, f.c.FinishUp(f.env(), call("anyone")))

	assert.False(t, f.c.Settlement.Succeeded)
	assert.Equal(t, campaign.ReasonSoftCapNotMet, f.c.Settlement.Reason)
	requireCode(t, campaign.CodeSoftCapNotMet, f.c.ClaimTokens(f.env(), call("alice")))
	requireCode(t, campaign.CodeSoftCapNotMet, f.c.ClaimFunds(f.env(), call(owner)))
	requireCode(t, campaign.CodeCannotRefundExcess, f.c.RefundExcess(f.env(), call("alice")))

	require.NoError(t, f.c.ReturnFund(f.env(), call("alice")))
	assert.Equal(t, usdc("0.5"), f.balance("USDC", "alice"))
	assert.Equal(t, tkn("1000"), f.c.Reclaimable())
}

func TestFailedSettlementTallyUnresolved(t *testing.T) {
	f := newFixture(t)
	f.setup(baseConfig(), setupOpts{})
	f.holders(map[string]uint64{"bob": 1})

	f.at(inSubscription)
	require.NoError(t, f.subscribe("bob", campaign.SubscribeRequest{Amount: usdc("0.1")}))
	f.at(inTally)
	require.NoError(t, f.c.RequestTally(f.env(), call("anyone")))

	f.at(afterIdo)
	requireCode(t, campaign.CodeNotEnabled, f.c.RequestTally(f.env(), call("anyone")))
	require.NoError(t, f.c.FinishUp(f.env(), call("anyone")))
	assert.Equal(t, campaign.ReasonTallyUnresolved, f.c.Settlement.Reason)

	require.NoError(t, f.c.ReturnFund(f.env(), call("bob")))
	assert.Equal(t, usdc("0.1"), f.balance("USDC", "bob"))
}

func TestRequestTallyClosesAtIdoStart(t *testing.T) {
	for _, at := range []time.Duration{inIdo, afterIdo} {
		t.Run(at.String(), func(t *testing.T) {
			f := newFixture(t)
			f.setup(baseConfig(), setupOpts{})

			f.at(at)
			requireCode(t, campaign.CodeNotEnabled, f.c.RequestTally(f.env(), call("anyone")))
			assert.False(t, f.c.Flags.Has(campaign.FlagTally))
			assert.Empty(t, f.c.Random.RequestID)

			f.give("alice", "USDC", usdc("1"))
			assert.Error(t, f.c.BuyTokens(f.env(), call("alice"), usdc("1")))
		})
	}
}

func TestLateRandomnessAfterSettlement(t *testing.T) {
	value := [32]byte{7, 7, 7}
	tests := []struct {
		name   string
		settle bool
	}{
		{"ido ended", false},
		{"finished up", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.setup(baseConfig(), setupOpts{})
			f.holders(map[string]uint64{"alice": 100, "bob": 1})

			f.at(inSubscription)
			require.NoError(t, f.subscribe("alice", campaign.SubscribeRequest{Amount: usdc("1")}))
			require.NoError(t, f.subscribe("bob", campaign.SubscribeRequest{Amount: usdc("0.1")}))
			f.at(inTally)
			require.NoError(t, f.c.RequestTally(f.env(), call("anyone")))
			require.Equal(t, campaign.RandomPending, f.c.Random.Status)

			f.at(afterIdo)
			if tt.settle {
				require.NoError(t, f.c.FinishUp(f.env(), call("anyone")))
				assert.Equal(t, campaign.ReasonTallyUnresolved, f.c.Settlement.Reason)
			}

			requireCode(t, campaign.CodeNotEnabled, f.c.FulfillRandomness(f.env(), "req-1", value))
			requireCode(t, campaign.CodeNotEnabled, f.c.CompleteTally(f.env()))
			assert.Equal(t, campaign.RandomPending, f.c.Random.Status)
			assert.False(t, f.c.Flags.Has(campaign.FlagTally))
			assert.Nil(t, f.c.Tally)
			assert.True(t, f.c.TotalRaised.IsZero())

			if tt.settle {
				require.NoError(t, f.c.ReturnFund(f.env(), call("alice")))
				assert.Equal(t, usdc("1"), f.balance("USDC", "alice"))
			}
		})
	}
}

func TestIntervalVestingLeavesNoDust(t *testing.T) {
	f := newFixture(t)
	thirds := vesting.Config{Kind: vesting.KindInterval, Slots: []vesting.Slot{
		{Pct: 333_333},
		{Pct: 333_333, Offset: time.Hour},
		{Pct: 333_334, Offset: 2 * time.Hour},
	}}
	f.setup(baseConfig(), setupOpts{buyerVesting: thirds})
	f.tally([32]byte{})
	f.at(inIdo)
	f.buy("alice", usdc("1"))

	f.at(5 * time.Hour)
	require.NoError(t, f.c.FinishUp(f.env(), call("anyone")))

	q, err := f.c.ClaimableTokens("alice", f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, q.NewSlots)
	require.NoError(t, f.c.ClaimTokens(f.env(), call("alice")))
	requireCode(t, campaign.CodeClaimFailed, f.c.ClaimTokens(f.env(), call("alice")))

	f.at(6 * time.Hour)
	require.NoError(t, f.c.ClaimTokens(f.env(), call("alice")))
	f.at(9 * time.Hour)
	q, err = f.c.ClaimableTokens("alice", f.now)
	require.NoError(t, err)
	assert.Equal(t, 2, q.StartIndex)
	require.NoError(t, f.c.ClaimTokens(f.env(), call("alice")))

	assert.Equal(t, tkn("100"), f.balance("TKN", "alice"))
	requireCode(t, campaign.CodeInvalidAmount, f.c.ClaimTokens(f.env(), call("bob")))
}

func TestOwnerLinearVesting(t *testing.T) {
	f := newFixture(t)
	linear := vesting.Config{Kind: vesting.KindLinear, Duration: 2 * time.Hour}
	f.setup(baseConfig(), setupOpts{ownerVesting: linear, ownerAllocation: tkn("50")})
	assert.Equal(t, tkn("1050"), f.c.Funded)

	f.tally([32]byte{})
	f.at(inIdo)
	f.buy("alice", usdc("1"))
	f.at(5 * time.Hour)
	require.NoError(t, f.c.FinishUp(f.env(), call("anyone")))

	f.at(6 * time.Hour)
	q, err := f.c.ClaimableOwnerTokens(f.now)
	require.NoError(t, err)
	assert.Equal(t, tkn("25"), q.Claimable)
	requireCode(t, campaign.CodeNoRights, f.c.ClaimOwnerTokens(f.env(), call("alice")))
	require.NoError(t, f.c.ClaimOwnerTokens(f.env(), call(owner)))

	f.at(8 * time.Hour)
	require.NoError(t, f.c.ClaimOwnerTokens(f.env(), call(owner)))
	assert.Equal(t, tkn("50"), f.balance("TKN", owner))
	assert.Equal(t, tkn("900"), f.c.Reclaimable())
}

func TestFcfsWhitelist(t *testing.T) {
	f := newFixture(t)
	wl := &campaign.WhitelistConfig{
		Mode:     campaign.WhitelistFCFS,
		Duration: time.Hour,
		Tiers: []campaign.Tier{
			{Min: usdc("0.5"), Max: usdc("1")},
			{Min: usdc("0.1"), Max: usdc("2")},
		},
	}
	f.setup(baseConfig(), setupOpts{whitelist: wl})
	f.holders(map[string]uint64{"alice": 100})
	f.at(inSubscription)
	require.NoError(t, f.subscribe("alice", campaign.SubscribeRequest{Amount: usdc("1")}))
	f.tally([32]byte{})

	f.at(3*time.Hour + 10*time.Minute)
	f.give("alice", "USDC", usdc("5"))
	requireCode(t, campaign.CodeInvalidAmount, f.c.BuyTokens(f.env(), call("alice"), usdc("0.2")))
	require.NoError(t, f.c.BuyTokens(f.env(), call("alice"), usdc("1")))
	requireCode(t, campaign.CodeValueExceeded, f.c.BuyTokens(f.env(), call("alice"), usdc("0.5")))

	f.give("bob", "USDC", usdc("1"))
	requireCode(t, campaign.CodeNotWhitelisted, f.c.BuyTokens(f.env(), call("bob"), usdc("1")))

	f.at(3*time.Hour + 40*time.Minute)
	require.NoError(t, f.c.BuyTokens(f.env(), call("alice"), usdc("1")))
	requireCode(t, campaign.CodeValueExceeded, f.c.BuyTokens(f.env(), call("alice"), usdc("0.1")))

	p := f.c.PurchaseOf("alice")
	assert.Equal(t, usdc("2"), p.Whitelisted)
	assert.Equal(t, usdc("3"), p.Total)

	f.at(4*time.Hour + 30*time.Minute)
	require.NoError(t, f.c.BuyTokens(f.env(), call("bob"), usdc("1")))
	assert.Equal(t, usdc("1"), f.c.PurchaseOf("bob").Public)
}

func TestAllocationWhitelistTopsUpGuaranteedShare(t *testing.T) {
	f := newFixture(t)
	wl := &campaign.WhitelistConfig{Mode: campaign.WhitelistAllocation, Duration: time.Hour}
	f.setup(baseConfig(), setupOpts{whitelist: wl})
	f.holders(map[string]uint64{"alice": 100, "bob": 1})
	f.at(inSubscription)
	require.NoError(t, f.subscribe("alice", campaign.SubscribeRequest{Amount: usdc("0.4")}))
	require.NoError(t, f.subscribe("bob", campaign.SubscribeRequest{Amount: usdc("0.1")}))
	f.tally([32]byte{1})

	f.at(3*time.Hour + 10*time.Minute)
	f.give("alice", "USDC", usdc("1"))
	requireCode(t, campaign.CodeValueExceeded, f.c.BuyTokens(f.env(), call("alice"), usdc("0.7")))
	require.NoError(t, f.c.BuyTokens(f.env(), call("alice"), usdc("0.6")))

	f.give("bob", "USDC", usdc("0.1"))
	requireCode(t, campaign.CodeNotWhitelisted, f.c.BuyTokens(f.env(), call("bob"), usdc("0.1")))
}

func TestFailedTransferLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.setup(baseConfig(), setupOpts{})
	f.tally([32]byte{})
	f.at(inIdo)

	require.NoError(t, f.ledger.Mint("USDC", "alice", usdc("1")))
	before, err := f.c.Marshal()
	require.NoError(t, err)

	requireCode(t, campaign.CodeTransferFailed, f.c.BuyTokens(f.env(), call("alice"), usdc("1")))
	after, err := f.c.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
	assert.Equal(t, usdc("1"), f.balance("USDC", "alice"))
}

func TestPublicBuyLimits(t *testing.T) {
	f := newFixture(t)
	cfg := baseConfig()
	cfg.BuyLimitMin = usdc("0.5")
	cfg.BuyLimitMax = usdc("2")
	f.setup(cfg, setupOpts{})
	f.tally([32]byte{})

	f.at(inTally)
	requireCode(t, campaign.CodeCannotBuyToken, f.c.BuyTokens(f.env(), call("alice"), usdc("1")))

	f.at(inIdo)
	f.give("alice", "USDC", usdc("10"))
	requireCode(t, campaign.CodeInvalidAmount, f.c.BuyTokens(f.env(), call("alice"), usdc("0.4")))
	requireCode(t, campaign.CodeValueExceeded, f.c.BuyTokens(f.env(), call("alice"), usdc("2.1")))
	requireCode(t, campaign.CodeInvalidAmount, f.c.BuyTokens(f.env(), call("alice"), amount.Zero))
	require.NoError(t, f.c.BuyTokens(f.env(), call("alice"), usdc("2")))
	assert.Equal(t, campaign.BuyLimit{Min: usdc("0.5"), Max: usdc("2")}, f.c.PublicBuyLimit())
}

func TestCloneRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.setup(baseConfig(), setupOpts{})
	f.tally([32]byte{})
	f.at(inIdo)
	f.buy("alice", usdc("1"))

	clone, err := f.c.Clone()
	require.NoError(t, err)
	assert.Equal(t, f.c, clone)

	require.NoError(t, clone.Cancel(f.env(), call(admin)))
	assert.False(t, f.c.Cancelled)
}
