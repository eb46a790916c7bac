// Package config reads campaign definitions written in human units and
// converts them into the base-unit configuration the campaign engine
// executes.
//
// Definitions are validated against an embedded CUE schema before any
// conversion. Conversion then checks what the schema cannot: that every
// amount fits its asset's precision, that times parse, and that
// percentages are representable in millionths.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/campaign"
	"github.com/roach88/launchpad/internal/phase"
	"github.com/roach88/launchpad/internal/vesting"
)

// AssetSpec names an asset and its decimals.
type AssetSpec struct {
	ID       string `json:"id" yaml:"id"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

// ScheduleSpec holds the four boundaries as times or anchor offsets.
type ScheduleSpec struct {
	SubStart string `json:"sub_start" yaml:"sub_start"`
	SubEnd   string `json:"sub_end" yaml:"sub_end"`
	IdoStart string `json:"ido_start" yaml:"ido_start"`
	IdoEnd   string `json:"ido_end" yaml:"ido_end"`
}

type SlotSpec struct {
	Pct    string `json:"pct" yaml:"pct"`
	Offset string `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// VestingSpec describes an interval or linear release.
type VestingSpec struct {
	Kind     string     `json:"kind" yaml:"kind"`
	UnlockAt string     `json:"unlock_at,omitempty" yaml:"unlock_at,omitempty"`
	Slots    []SlotSpec `json:"slots,omitempty" yaml:"slots,omitempty"`
	Duration string     `json:"duration,omitempty" yaml:"duration,omitempty"`
}

type TierSpec struct {
	Min string `json:"min" yaml:"min"`
	Max string `json:"max" yaml:"max"`
}

type WhitelistSpec struct {
	Mode     string     `json:"mode" yaml:"mode"`
	Duration string     `json:"duration" yaml:"duration"`
	Tiers    []TierSpec `json:"tiers,omitempty" yaml:"tiers,omitempty"`
}

type SplitSpec struct {
	Provider string `json:"provider" yaml:"provider"`
	Pct      string `json:"pct" yaml:"pct"`
}

type LpSpec struct {
	SizeMode string      `json:"size_mode" yaml:"size_mode"`
	Size     string      `json:"size,omitempty" yaml:"size,omitempty"`
	SizePct  string      `json:"size_pct,omitempty" yaml:"size_pct,omitempty"`
	Rate     string      `json:"rate,omitempty" yaml:"rate,omitempty"`
	Splits   []SplitSpec `json:"splits" yaml:"splits"`
	Lock     VestingSpec `json:"lock" yaml:"lock"`
	Order    string      `json:"order" yaml:"order"`
}

type VestingSetupSpec struct {
	Buyer           VestingSpec  `json:"buyer" yaml:"buyer"`
	Owner           *VestingSpec `json:"owner,omitempty" yaml:"owner,omitempty"`
	OwnerAllocation string       `json:"owner_allocation,omitempty" yaml:"owner_allocation,omitempty"`
}

// CampaignSpec is one campaign definition in human units.
type CampaignSpec struct {
	ID          string    `json:"id,omitempty" yaml:"id,omitempty"`
	Owner       string    `json:"owner" yaml:"owner"`
	Token       AssetSpec `json:"token" yaml:"token"`
	Capital     AssetSpec `json:"capital" yaml:"capital"`
	CapitalMode string    `json:"capital_mode" yaml:"capital_mode"`
	Burn        AssetSpec `json:"burn" yaml:"burn"`

	Schedule ScheduleSpec `json:"schedule" yaml:"schedule"`

	SoftCap    string `json:"soft_cap" yaml:"soft_cap"`
	HardCap    string `json:"hard_cap" yaml:"hard_cap"`
	SaleSupply string `json:"sale_supply" yaml:"sale_supply"`

	SnapshotID      string `json:"snapshot_id" yaml:"snapshot_id"`
	GuaranteedFloor string `json:"guaranteed_floor" yaml:"guaranteed_floor"`
	StdOverSubQty   string `json:"std_over_sub_qty" yaml:"std_over_sub_qty"`
	StdBurnQty      string `json:"std_burn_qty" yaml:"std_burn_qty"`

	BuyLimitMin      string `json:"buy_limit_min,omitempty" yaml:"buy_limit_min,omitempty"`
	BuyLimitMax      string `json:"buy_limit_max,omitempty" yaml:"buy_limit_max,omitempty"`
	FeePct           string `json:"fee_pct,omitempty" yaml:"fee_pct,omitempty"`
	LotteryBudgetPct string `json:"lottery_budget_pct,omitempty" yaml:"lottery_budget_pct,omitempty"`

	Whitelist *WhitelistSpec   `json:"whitelist,omitempty" yaml:"whitelist,omitempty"`
	Vesting   VestingSetupSpec `json:"vesting" yaml:"vesting"`
	Lp        *LpSpec          `json:"lp,omitempty" yaml:"lp,omitempty"`
}

// Setup is a campaign definition converted to base units and absolute
// times, ready to be issued as setup commands.
type Setup struct {
	ID              string
	Owner           string
	Config          campaign.Config
	Whitelist       *campaign.WhitelistConfig
	BuyerVesting    vesting.Config
	OwnerVesting    vesting.Config
	OwnerAllocation amount.Amount
	Lp              *campaign.LpConfig
}

// builder accumulates conversion errors so one pass reports them all.
type builder struct {
	anchor time.Time
	errs   ValidationErrors
}

func (b *builder) fail(field, code, format string, args ...any) {
	b.errs = append(b.errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (b *builder) amount(field, s string, decimals uint8) amount.Amount {
	if s == "" {
		return amount.Zero
	}
	a, err := amount.Parse(s, decimals)
	if err != nil {
		b.fail(field, ErrCodeAmount, "%v", err)
	}
	return a
}

func (b *builder) time(field, s string) time.Time {
	if offset, ok := strings.CutPrefix(s, "+"); ok {
		d, err := time.ParseDuration(offset)
		if err != nil {
			b.fail(field, ErrCodeTime, "%v", err)
		}
		return b.anchor.Add(d)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		b.fail(field, ErrCodeTime, "%v", err)
	}
	return t.UTC()
}

func (b *builder) duration(field, s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		b.fail(field, ErrCodeTime, "%v", err)
	}
	return d
}

// pct converts a percentage out of 100 into millionths of the whole.
func (b *builder) pct(field, s string) uint32 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		b.fail(field, ErrCodePercent, "%v", err)
		return 0
	}
	scaled := d.Mul(decimal.NewFromInt(amount.Pct100 / 100))
	if !scaled.IsInteger() {
		b.fail(field, ErrCodePercent, "%s%% is finer than a millionth", s)
		return 0
	}
	if scaled.IsNegative() || scaled.GreaterThan(decimal.NewFromInt(amount.Pct100)) {
		b.fail(field, ErrCodePercent, "%s%% is out of range", s)
		return 0
	}
	return uint32(scaled.IntPart())
}

func (b *builder) vesting(field string, v VestingSpec) vesting.Config {
	cfg := vesting.Config{Kind: vesting.Kind(v.Kind)}
	if v.UnlockAt != "" {
		cfg.UnlockAt = b.time(field+".unlock_at", v.UnlockAt)
	}
	for i, s := range v.Slots {
		cfg.Slots = append(cfg.Slots, vesting.Slot{
			Pct:    b.pct(fmt.Sprintf("%s.slots[%d].pct", field, i), s.Pct),
			Offset: b.duration(fmt.Sprintf("%s.slots[%d].offset", field, i), s.Offset),
		})
	}
	cfg.Duration = b.duration(field+".duration", v.Duration)
	return cfg
}

// Build converts s to base units. Offsets such as "+90m" are taken from
// anchor.
func (s CampaignSpec) Build(anchor time.Time) (Setup, error) {
	b := &builder{anchor: anchor.UTC()}
	capDec, tokDec, burnDec := s.Capital.Decimals, s.Token.Decimals, s.Burn.Decimals

	mode := campaign.CapitalMode(s.CapitalMode)
	if mode == "" {
		mode = campaign.CapitalPulled
	}
	cfg := campaign.Config{
		Token:       campaign.Asset{ID: s.Token.ID, Decimals: tokDec},
		Capital:     campaign.Asset{ID: s.Capital.ID, Decimals: capDec},
		CapitalMode: mode,
		Burn:        campaign.Asset{ID: s.Burn.ID, Decimals: burnDec},
		Schedule: phase.Schedule{
			SubStart: b.time("schedule.sub_start", s.Schedule.SubStart),
			SubEnd:   b.time("schedule.sub_end", s.Schedule.SubEnd),
			IdoStart: b.time("schedule.ido_start", s.Schedule.IdoStart),
			IdoEnd:   b.time("schedule.ido_end", s.Schedule.IdoEnd),
		},
		SoftCap:          b.amount("soft_cap", s.SoftCap, capDec),
		HardCap:          b.amount("hard_cap", s.HardCap, capDec),
		SaleSupply:       b.amount("sale_supply", s.SaleSupply, tokDec),
		SnapshotID:       s.SnapshotID,
		GuaranteedFloor:  b.amount("guaranteed_floor", s.GuaranteedFloor, capDec),
		StdOverSubQty:    b.amount("std_over_sub_qty", s.StdOverSubQty, capDec),
		StdBurnQty:       b.amount("std_burn_qty", s.StdBurnQty, burnDec),
		BuyLimitMin:      b.amount("buy_limit_min", s.BuyLimitMin, capDec),
		BuyLimitMax:      b.amount("buy_limit_max", s.BuyLimitMax, capDec),
		FeePct:           b.pct("fee_pct", s.FeePct),
		LotteryBudgetPct: b.pct("lottery_budget_pct", s.LotteryBudgetPct),
	}

	setup := Setup{
		ID:              s.ID,
		Owner:           s.Owner,
		Config:          cfg,
		BuyerVesting:    b.vesting("vesting.buyer", s.Vesting.Buyer),
		OwnerVesting:    vesting.Immediate(),
		OwnerAllocation: b.amount("vesting.owner_allocation", s.Vesting.OwnerAllocation, tokDec),
	}
	if s.Vesting.Owner != nil {
		setup.OwnerVesting = b.vesting("vesting.owner", *s.Vesting.Owner)
	}

	if w := s.Whitelist; w != nil {
		wl := &campaign.WhitelistConfig{
			Mode:     campaign.WhitelistMode(w.Mode),
			Duration: b.duration("whitelist.duration", w.Duration),
		}
		for i, t := range w.Tiers {
			wl.Tiers = append(wl.Tiers, campaign.Tier{
				Min: b.amount(fmt.Sprintf("whitelist.tiers[%d].min", i), t.Min, capDec),
				Max: b.amount(fmt.Sprintf("whitelist.tiers[%d].max", i), t.Max, capDec),
			})
		}
		setup.Whitelist = wl
	}

	if l := s.Lp; l != nil {
		order := campaign.LpOrder(l.Order)
		if order == "" {
			order = campaign.LpFeeFirst
		}
		lp := &campaign.LpConfig{
			SizeMode: campaign.LpSizeMode(l.SizeMode),
			Size:     b.amount("lp.size", l.Size, capDec),
			SizePct:  b.pct("lp.size_pct", l.SizePct),
			Rate:     b.amount("lp.rate", l.Rate, tokDec),
			Lock:     b.vesting("lp.lock", l.Lock),
			Order:    order,
		}
		for i, sp := range l.Splits {
			lp.Splits = append(lp.Splits, campaign.Split{
				Provider: sp.Provider,
				Pct:      b.pct(fmt.Sprintf("lp.splits[%d].pct", i), sp.Pct),
			})
		}
		setup.Lp = lp
	}

	if len(b.errs) > 0 {
		return Setup{}, b.errs
	}
	return setup, nil
}
