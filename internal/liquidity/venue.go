// Package liquidity is an in-process constant-product liquidity venue.
//
// A venue hosts pools for registered providers. Quote prices a deposit:
// the first deposit into a pool mints sqrt(tokens*capital) LP units, later
// deposits mint in proportion to the smaller side's share of the reserves.
// Reserves and LP supply are read from the ledger, so a quote is only
// valid until the next movement touching the pool.
package liquidity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/campaign"
)

var (
	ErrUnknownProvider = errors.New("unknown liquidity provider")
	ErrEmptyDeposit    = errors.New("deposit needs both sides")
	ErrTooSmall        = errors.New("deposit mints no LP units")
)

// Balances is the read side of the ledger the venue prices against.
type Balances interface {
	BalanceOf(asset, account string) amount.Amount
	TotalSupply(asset string) amount.Amount
}

// Venue implements campaign.LiquidityVenue.
type Venue struct {
	ledger    Balances
	providers *xsync.Map[string, struct{}]
}

var _ campaign.LiquidityVenue = (*Venue)(nil)

// New creates a venue hosting providers.
func New(ledger Balances, providers ...string) *Venue {
	v := &Venue{ledger: ledger, providers: xsync.NewMap[string, struct{}]()}
	for _, p := range providers {
		v.AddProvider(p)
	}
	return v
}

// AddProvider registers a provider.
func (v *Venue) AddProvider(name string) {
	v.providers.Store(name, struct{}{})
}

// Providers lists registered providers, sorted.
func (v *Venue) Providers() []string {
	var out []string
	v.providers.Range(func(k string, _ struct{}) bool {
		out = append(out, k)
		return true
	})
	sort.Strings(out)
	return out
}

// PoolAccount is the ledger account holding a pool's reserves.
func PoolAccount(provider, token, capital string) string {
	return fmt.Sprintf("pool:%s:%s/%s", provider, token, capital)
}

// LpAsset is the asset a pool mints to depositors.
func LpAsset(provider, token, capital string) string {
	return fmt.Sprintf("lp:%s:%s/%s", provider, token, capital)
}

// Reserves returns a pool's token and capital reserves and LP supply.
func (v *Venue) Reserves(provider, token, capital string) (tokens, capitalAmt, supply amount.Amount) {
	pool := PoolAccount(provider, token, capital)
	return v.ledger.BalanceOf(token, pool),
		v.ledger.BalanceOf(capital, pool),
		v.ledger.TotalSupply(LpAsset(provider, token, capital))
}

// Quote prices a deposit of tokens and capitalAmt into provider's pool.
func (v *Venue) Quote(provider, token, capital string, tokens, capitalAmt amount.Amount) (campaign.Deposit, error) {
	if _, ok := v.providers.Load(provider); !ok {
		return campaign.Deposit{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if tokens.IsZero() || capitalAmt.IsZero() {
		return campaign.Deposit{}, ErrEmptyDeposit
	}
	dep := campaign.Deposit{
		Pool:    PoolAccount(provider, token, capital),
		LpAsset: LpAsset(provider, token, capital),
	}
	resT, resC, supply := v.Reserves(provider, token, capital)

	var err error
	if supply.IsZero() || resT.IsZero() || resC.IsZero() {
		product, err := tokens.Mul(capitalAmt)
		if err != nil {
			return campaign.Deposit{}, fmt.Errorf("quote %s: %w", provider, err)
		}
		dep.Units = product.Sqrt()
	} else {
		var byT, byC amount.Amount
		if byT, err = amount.MulDiv(tokens, supply, resT); err != nil {
			return campaign.Deposit{}, fmt.Errorf("quote %s: %w", provider, err)
		}
		if byC, err = amount.MulDiv(capitalAmt, supply, resC); err != nil {
			return campaign.Deposit{}, fmt.Errorf("quote %s: %w", provider, err)
		}
		dep.Units = amount.Min(byT, byC)
	}
	if dep.Units.IsZero() {
		return campaign.Deposit{}, ErrTooSmall
	}
	return dep, nil
}
