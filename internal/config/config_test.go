package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/campaign"
	"github.com/roach88/launchpad/internal/engine"
	"github.com/roach88/launchpad/internal/vesting"
)

var anchor = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

const validCUE = `
campaigns: [{
	id:    "sale"
	owner: "owner"
	token:   {id: "TKN", decimals: 18}
	capital: {id: "USDC", decimals: 6}
	burn:    {id: "BRN", decimals: 18}
	schedule: {
		sub_start: "+1h"
		sub_end:   "+2h"
		ido_start: "+3h"
		ido_end:   "2026-01-01T05:00:00Z"
	}
	soft_cap:         "1"
	hard_cap:         "10"
	sale_supply:      "1000"
	snapshot_id:      "snap"
	guaranteed_floor: "0.1"
	std_over_sub_qty: "1.5"
	std_burn_qty:     "180"
	fee_pct:          "2.5"
	whitelist: {
		mode:     "fcfs"
		duration: "30m"
		tiers: [{min: "0.1", max: "1"}]
	}
	vesting: {
		buyer: {kind: "interval", slots: [{pct: "50"}, {pct: "50", offset: "720h"}]}
		owner_allocation: "100"
	}
	lp: {
		size_mode: "percent"
		size_pct:  "20"
		splits: [{provider: "uni", pct: "100"}]
		lock: {kind: "linear", duration: "24h"}
	}
}]
`

const validYAML = `
campaigns:
  - id: sale
    owner: owner
    token: {id: TKN, decimals: 18}
    capital: {id: USDC, decimals: 6}
    capital_mode: native
    burn: {id: BRN, decimals: 18}
    schedule: {sub_start: "+1h", sub_end: "+2h", ido_start: "+3h", ido_end: "+5h"}
    soft_cap: "1"
    hard_cap: "10"
    sale_supply: "1000"
    snapshot_id: snap
    guaranteed_floor: "0.1"
    std_over_sub_qty: "1.5"
    std_burn_qty: "180"
    vesting:
      buyer: {kind: linear, duration: 48h}
`

func TestParseCUE_Valid(t *testing.T) {
	f, err := ParseCUE([]byte(validCUE), "campaigns.cue")
	require.NoError(t, err)
	require.Len(t, f.Campaigns, 1)

	spec := f.Campaigns[0]
	assert.Equal(t, "sale", spec.ID)
	assert.Equal(t, "pulled", spec.CapitalMode, "schema default applies")
	assert.Equal(t, "fee_first", spec.Lp.Order)
	require.Len(t, spec.Vesting.Buyer.Slots, 2)
}

func TestParseYAML_Valid(t *testing.T) {
	f, err := ParseYAML([]byte(validYAML))
	require.NoError(t, err)
	require.Len(t, f.Campaigns, 1)
	assert.Equal(t, "native", f.Campaigns[0].CapitalMode)
	assert.Nil(t, f.Campaigns[0].Lp)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name  string
		from  string
		to    string
		field string
	}{
		{"numeric amount", `hard_cap: "10"`, `hard_cap: 10`, "hard_cap"},
		{"unknown capital mode", `capital_mode: native`, `capital_mode: wired`, "capital_mode"},
		{"bad time", `sub_start: "+1h"`, `sub_start: tomorrow`, "sub_start"},
		{"missing owner", `owner: owner`, `owner: ""`, "owner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(validYAML, tt.from, tt.to, 1)
			require.NotEqual(t, validYAML, doc)

			_, err := ParseYAML([]byte(doc))
			require.Error(t, err)
			errs, ok := AsValidationErrors(err)
			require.True(t, ok, "got %T", err)
			assert.Equal(t, ErrCodeSchema, errs[0].Code)
			assert.Contains(t, errs.Error(), tt.field)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	cuePath := filepath.Join(dir, "c.cue")
	require.NoError(t, os.WriteFile(cuePath, []byte(validCUE), 0o644))
	yamlPath := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(validYAML), 0o644))

	f, err := LoadFile(cuePath)
	require.NoError(t, err)
	assert.Len(t, f.Campaigns, 1)

	f, err = LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Len(t, f.Campaigns, 1)

	_, err = LoadFile(filepath.Join(dir, "c.toml"))
	errs, ok := AsValidationErrors(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeRead, errs[0].Code)
}

func TestBuild_ConvertsUnits(t *testing.T) {
	f, err := ParseCUE([]byte(validCUE), "campaigns.cue")
	require.NoError(t, err)

	setup, err := f.Campaigns[0].Build(anchor)
	require.NoError(t, err)

	cfg := setup.Config
	assert.Equal(t, campaign.CapitalPulled, cfg.CapitalMode)
	assert.Equal(t, anchor.Add(time.Hour), cfg.Schedule.SubStart)
	assert.Equal(t, anchor.Add(5*time.Hour), cfg.Schedule.IdoEnd)
	assert.Equal(t, amount.MustParse("10", 6), cfg.HardCap)
	assert.Equal(t, amount.MustParse("1000", 18), cfg.SaleSupply)
	assert.Equal(t, amount.MustParse("0.1", 6), cfg.GuaranteedFloor)
	assert.Equal(t, uint32(25_000), cfg.FeePct)

	require.NotNil(t, setup.Whitelist)
	assert.Equal(t, 30*time.Minute, setup.Whitelist.Duration)
	assert.Equal(t, amount.MustParse("1", 6), setup.Whitelist.Tiers[0].Max)

	assert.Equal(t, vesting.KindInterval, setup.BuyerVesting.Kind)
	assert.Equal(t, uint32(500_000), setup.BuyerVesting.Slots[1].Pct)
	assert.Equal(t, 720*time.Hour, setup.BuyerVesting.Slots[1].Offset)
	assert.Equal(t, vesting.Immediate(), setup.OwnerVesting)
	assert.Equal(t, amount.MustParse("100", 18), setup.OwnerAllocation)

	require.NotNil(t, setup.Lp)
	assert.Equal(t, uint32(200_000), setup.Lp.SizePct)
	assert.Equal(t, uint32(amount.Pct100), setup.Lp.Splits[0].Pct)
	assert.Equal(t, 24*time.Hour, setup.Lp.Lock.Duration)
}

func TestBuild_CollectsConversionErrors(t *testing.T) {
	spec := CampaignSpec{
		Owner:    "owner",
		Capital:  AssetSpec{ID: "USDC", Decimals: 6},
		HardCap:  "0.0000001",
		FeePct:   "0.00001",
		Schedule: ScheduleSpec{SubStart: "+1x", SubEnd: "+2h", IdoStart: "+3h", IdoEnd: "+5h"},
		Vesting:  VestingSetupSpec{Buyer: VestingSpec{Kind: "linear", Duration: "1h"}},
	}
	_, err := spec.Build(anchor)
	errs, ok := AsValidationErrors(err)
	require.True(t, ok)

	codes := map[string]string{}
	for _, e := range errs {
		codes[e.Field] = e.Code
	}
	assert.Equal(t, ErrCodeAmount, codes["hard_cap"])
	assert.Equal(t, ErrCodePercent, codes["fee_pct"])
	assert.Equal(t, ErrCodeTime, codes["schedule.sub_start"])
}

func TestSetupCommands(t *testing.T) {
	f, err := ParseCUE([]byte(validCUE), "campaigns.cue")
	require.NoError(t, err)
	setup, err := f.Campaigns[0].Build(anchor)
	require.NoError(t, err)

	cmds, err := setup.Commands("admin")
	require.NoError(t, err)

	var actions []string
	for _, c := range cmds {
		actions = append(actions, c.Action)
		assert.Equal(t, "admin", c.Caller)
	}
	assert.Equal(t, []string{
		engine.ActionCreate,
		engine.ActionInitialize,
		engine.ActionSetupWhitelist,
		engine.ActionSetupVesting,
		engine.ActionSetupLp,
		engine.ActionApproveConfig,
		engine.ActionFinalize,
	}, actions)
	assert.Empty(t, cmds[0].Campaign)
	assert.Equal(t, "sale", cmds[1].Campaign)
	assert.Equal(t, amount.MustParse("10", 6).String(), cmds[1].Args["hard_cap"])

	setup.ID = ""
	_, err = setup.Commands("admin")
	assert.Error(t, err)
}

func TestSetupCommands_RunOnEngine(t *testing.T) {
	f, err := ParseYAML([]byte(validYAML))
	require.NoError(t, err)
	spec := f.Campaigns[0]
	spec.Capital.ID = "ETH"
	setup, err := spec.Build(anchor)
	require.NoError(t, err)
	cmds, err := setup.Commands("admin")
	require.NoError(t, err)

	e := engine.New(engine.WithPlatform(engine.Platform{
		Admin:      "admin",
		FeeVault:   "vault",
		Currencies: []string{"ETH"},
	}))
	for _, cmd := range cmds {
		cmd.At = anchor
		_, err := e.Execute(t.Context(), cmd)
		require.NoError(t, err, cmd.Action)
	}
	c, err := e.Campaign("sale")
	require.NoError(t, err)
	assert.True(t, c.Flags.Has(campaign.FlagFinalized))
}
