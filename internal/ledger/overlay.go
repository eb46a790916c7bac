package ledger

import (
	"fmt"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/campaign"
)

// overlay stages a batch. Reads fall through to the ledger; writes stay
// local until commit. Callers hold the ledger lock.
type overlay struct {
	l          *Ledger
	balances   map[balanceKey]amount.Amount
	allowances map[allowanceKey]amount.Amount
	supply     map[string]amount.Amount
}

func (l *Ledger) overlay() *overlay {
	return &overlay{
		l:          l,
		balances:   map[balanceKey]amount.Amount{},
		allowances: map[allowanceKey]amount.Amount{},
		supply:     map[string]amount.Amount{},
	}
}

func (o *overlay) balance(k balanceKey) amount.Amount {
	if v, ok := o.balances[k]; ok {
		return v
	}
	return o.l.balances[k]
}

func (o *overlay) allowance(k allowanceKey) amount.Amount {
	if v, ok := o.allowances[k]; ok {
		return v
	}
	return o.l.allowances[k]
}

func (o *overlay) totalSupply(asset string) amount.Amount {
	if v, ok := o.supply[asset]; ok {
		return v
	}
	return o.l.supply[asset]
}

func (o *overlay) debit(asset, account string, amt amount.Amount) error {
	k := balanceKey{asset, account}
	next, err := o.balance(k).Sub(amt)
	if err != nil {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, account, o.balance(k), amt)
	}
	o.balances[k] = next
	return nil
}

func (o *overlay) credit(asset, account string, amt amount.Amount) error {
	k := balanceKey{asset, account}
	next, err := o.balance(k).Add(amt)
	if err != nil {
		return err
	}
	o.balances[k] = next
	return nil
}

func (o *overlay) apply(m campaign.Movement) error {
	switch m.Kind {
	case campaign.MoveTransfer:
		if m.From == "" || m.To == "" {
			return fmt.Errorf("%w: transfer needs both accounts", ErrInvalidMovement)
		}
		if err := o.debit(m.Asset, m.From, m.Amount); err != nil {
			return err
		}
		return o.credit(m.Asset, m.To, m.Amount)

	case campaign.MoveTransferFrom:
		k := allowanceKey{m.Asset, m.From, m.Spender}
		left, err := o.allowance(k).Sub(m.Amount)
		if err != nil {
			return fmt.Errorf("%w: %s allowed %s, needs %s", ErrInsufficientAllowance, m.Spender, o.allowance(k), m.Amount)
		}
		o.allowances[k] = left
		if err := o.debit(m.Asset, m.From, m.Amount); err != nil {
			return err
		}
		return o.credit(m.Asset, m.To, m.Amount)

	case moveRestore:
		k := allowanceKey{m.Asset, m.To, m.Spender}
		restored, err := o.allowance(k).Add(m.Amount)
		if err != nil {
			return err
		}
		o.allowances[k] = restored
		if err := o.debit(m.Asset, m.From, m.Amount); err != nil {
			return err
		}
		return o.credit(m.Asset, m.To, m.Amount)

	case campaign.MoveMint:
		supply, err := o.totalSupply(m.Asset).Add(m.Amount)
		if err != nil {
			return err
		}
		o.supply[m.Asset] = supply
		return o.credit(m.Asset, m.To, m.Amount)

	case campaign.MoveBurn:
		if err := o.debit(m.Asset, m.From, m.Amount); err != nil {
			return err
		}
		supply, err := o.totalSupply(m.Asset).Sub(m.Amount)
		if err != nil {
			return err
		}
		o.supply[m.Asset] = supply
		return nil
	}
	return fmt.Errorf("%w: kind %q", ErrInvalidMovement, m.Kind)
}

func (o *overlay) commit() {
	for k, v := range o.balances {
		o.l.balances[k] = v
	}
	for k, v := range o.allowances {
		o.l.allowances[k] = v
	}
	for k, v := range o.supply {
		o.l.supply[k] = v
	}
}
