package campaign

import (
	"time"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/phase"
	"github.com/roach88/launchpad/internal/vesting"
)

// Asset identifies a ledger asset and its precision.
type Asset struct {
	ID       string `json:"id"`
	Decimals uint8  `json:"decimals"`
}

// CapitalMode selects how capital reaches the campaign.
type CapitalMode string

const (
	// CapitalNative expects the capital as value attached to the call.
	CapitalNative CapitalMode = "native"
	// CapitalPulled pulls capital through a prior allowance.
	CapitalPulled CapitalMode = "pulled"
)

// MaxFeePct caps the settlement fee at 50%.
const MaxFeePct = amount.Pct100 / 2

// Config is the basic campaign configuration set by Initialize.
type Config struct {
	Token       Asset       `json:"token"`
	Capital     Asset       `json:"capital"`
	CapitalMode CapitalMode `json:"capital_mode"`
	Burn        Asset       `json:"burn"`

	Schedule phase.Schedule `json:"schedule"`

	SoftCap    amount.Amount `json:"soft_cap"`
	HardCap    amount.Amount `json:"hard_cap"`
	SaleSupply amount.Amount `json:"sale_supply"`

	SnapshotID      string        `json:"snapshot_id"`
	GuaranteedFloor amount.Amount `json:"guaranteed_floor"`
	StdOverSubQty   amount.Amount `json:"std_over_sub_qty"`
	StdBurnQty      amount.Amount `json:"std_burn_qty"`

	BuyLimitMin amount.Amount `json:"buy_limit_min"`
	// BuyLimitMax of zero means no per-call maximum.
	BuyLimitMax amount.Amount `json:"buy_limit_max"`

	FeePct           uint32 `json:"fee_pct"`
	LotteryBudgetPct uint32 `json:"lottery_budget_pct"`
}

func (c Config) validate(op string, reg Registry) error {
	if c.Token.ID == "" || c.Capital.ID == "" || c.Burn.ID == "" {
		return reject(op, CodeInvalidAddress, "token, capital and burn assets are required")
	}
	if c.Token.ID == c.Capital.ID {
		return reject(op, CodeInvalidAddress, "token and capital must differ")
	}
	if c.CapitalMode != CapitalNative && c.CapitalMode != CapitalPulled {
		return reject(op, CodeValidation, "unknown capital mode %q", c.CapitalMode)
	}
	if reg != nil && !reg.AcceptsCurrency(c.Capital.ID) {
		return reject(op, CodeInvalidCurrency, "capital asset %s is not accepted", c.Capital.ID)
	}
	if err := c.Schedule.Validate(0); err != nil {
		return reject(op, CodeInvalidRange, "%v", err)
	}
	if c.HardCap.IsZero() || c.SaleSupply.IsZero() {
		return reject(op, CodeInvalidAmount, "hard cap and sale supply must be positive")
	}
	if c.SoftCap.Gt(c.HardCap) {
		return reject(op, CodeInvalidRange, "soft cap %s exceeds hard cap %s", c.SoftCap, c.HardCap)
	}
	if c.StdOverSubQty.IsZero() {
		return reject(op, CodeInvalidAmount, "standard oversubscription quantity must be positive")
	}
	if c.GuaranteedFloor.Gt(c.HardCap) {
		return reject(op, CodeInvalidRange, "guaranteed floor exceeds hard cap")
	}
	if !c.BuyLimitMax.IsZero() && c.BuyLimitMin.Gt(c.BuyLimitMax) {
		return reject(op, CodeInvalidRange, "buy limit min %s exceeds max %s", c.BuyLimitMin, c.BuyLimitMax)
	}
	if c.FeePct > MaxFeePct {
		return reject(op, CodeInvalidFee, "fee %d exceeds %d", c.FeePct, MaxFeePct)
	}
	if c.LotteryBudgetPct > amount.Pct100 {
		return reject(op, CodeInvalidRange, "lottery budget %d exceeds %d", c.LotteryBudgetPct, amount.Pct100)
	}
	return nil
}

// WhitelistMode selects the whitelisted-phase purchase policy.
type WhitelistMode string

const (
	WhitelistNone WhitelistMode = "none"
	// WhitelistFCFS lets subscribers buy first-come-first-served within
	// time tiers that each carry their own bounds.
	WhitelistFCFS WhitelistMode = "fcfs"
	// WhitelistAllocation lets guaranteed subscribers top up the unused
	// part of their snapshot share.
	WhitelistAllocation WhitelistMode = "allocation"
)

// Tier bounds whitelisted buying during one slice of the window.
type Tier struct {
	Min amount.Amount `json:"min"`
	Max amount.Amount `json:"max"`
}

// WhitelistConfig configures the whitelisted phase.
type WhitelistConfig struct {
	Mode     WhitelistMode `json:"mode"`
	Duration time.Duration `json:"duration"`
	Tiers    []Tier        `json:"tiers,omitempty"`
}

func (w WhitelistConfig) validate(op string, s phase.Schedule) error {
	switch w.Mode {
	case WhitelistNone:
		if w.Duration != 0 {
			return reject(op, CodeInvalidRange, "whitelist duration set without a mode")
		}
		return nil
	case WhitelistFCFS:
		if len(w.Tiers) == 0 {
			return reject(op, CodeInvalidArray, "fcfs whitelist needs at least one tier")
		}
		for i, t := range w.Tiers {
			if t.Max.IsZero() || t.Min.Gt(t.Max) {
				return reject(op, CodeInvalidRange, "tier %d bounds [%s, %s]", i, t.Min, t.Max)
			}
		}
	case WhitelistAllocation:
	default:
		return reject(op, CodeValidation, "unknown whitelist mode %q", w.Mode)
	}
	if w.Duration <= 0 {
		return reject(op, CodeInvalidRange, "whitelist duration must be positive")
	}
	if err := s.Validate(w.Duration); err != nil {
		return reject(op, CodeInvalidRange, "%v", err)
	}
	return nil
}

// LpSizeMode selects how the LP target is expressed.
type LpSizeMode string

const (
	LpAbsolute LpSizeMode = "absolute"
	LpPercent  LpSizeMode = "percent"
)

// LpOrder selects the base a percentage LP target is taken from.
type LpOrder string

const (
	// LpFeeFirst takes the LP percentage of the raise net of fee.
	LpFeeFirst LpOrder = "fee_first"
	// LpFirst takes the LP percentage of the gross raise.
	LpFirst LpOrder = "lp_first"
)

// Split assigns a share of the LP to one venue provider.
type Split struct {
	Provider string `json:"provider"`
	Pct      uint32 `json:"pct"`
}

// LpConfig configures liquidity provisioning at settlement.
type LpConfig struct {
	SizeMode LpSizeMode `json:"size_mode"`
	// Size is the absolute LP capital for LpAbsolute.
	Size amount.Amount `json:"size"`
	// SizePct is the LP share for LpPercent.
	SizePct uint32 `json:"size_pct"`
	// Rate is token base units per whole capital unit. Zero uses the sale
	// rate.
	Rate   amount.Amount  `json:"rate"`
	Splits []Split        `json:"splits"`
	Lock   vesting.Config `json:"lock"`
	Order  LpOrder        `json:"order"`
}

func (l LpConfig) validate(op string) error {
	switch l.SizeMode {
	case LpAbsolute:
		if l.Size.IsZero() {
			return reject(op, CodeInvalidAmount, "absolute LP size must be positive")
		}
	case LpPercent:
		if l.SizePct == 0 || l.SizePct > amount.Pct100 {
			return reject(op, CodeInvalidRange, "LP percentage %d out of range", l.SizePct)
		}
	default:
		return reject(op, CodeValidation, "unknown LP size mode %q", l.SizeMode)
	}
	if l.Order != LpFeeFirst && l.Order != LpFirst {
		return reject(op, CodeValidation, "unknown LP order %q", l.Order)
	}
	if len(l.Splits) == 0 {
		return reject(op, CodeInvalidArray, "LP needs at least one provider")
	}
	var total uint64
	for i, s := range l.Splits {
		if s.Provider == "" {
			return reject(op, CodeInvalidAddress, "split %d has no provider", i)
		}
		total += uint64(s.Pct)
	}
	if total != amount.Pct100 {
		return reject(op, CodeInvalidArray, "LP splits sum to %d, want %d", total, amount.Pct100)
	}
	if _, err := l.Lock.Resolve(time.Unix(0, 0)); err != nil {
		return reject(op, CodeInvalidArray, "LP lock: %v", err)
	}
	return nil
}
