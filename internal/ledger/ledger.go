// Package ledger is an in-process fungible-asset ledger.
//
// It keeps balances, allowances and total supply per asset, records
// balance snapshots for guaranteed-cap lookups, and applies batches of
// campaign movements atomically. A batch is staged against an overlay and
// only written back when every movement in it succeeds.
package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sasha-s/go-deadlock"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/campaign"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnknownSnapshot       = errors.New("unknown snapshot")
	ErrInvalidMovement       = errors.New("invalid movement")
)

type balanceKey struct {
	asset, account string
}

type allowanceKey struct {
	asset, owner, spender string
}

type snapshot struct {
	asset    string
	supply   amount.Amount
	balances map[string]amount.Amount
}

// Ledger holds every asset's balances. Safe for concurrent use.
type Ledger struct {
	mu         *deadlock.Mutex
	balances   map[balanceKey]amount.Amount
	allowances map[allowanceKey]amount.Amount
	supply     map[string]amount.Amount
	snapshots  map[string]snapshot
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		mu:         &deadlock.Mutex{},
		balances:   map[balanceKey]amount.Amount{},
		allowances: map[allowanceKey]amount.Amount{},
		supply:     map[string]amount.Amount{},
		snapshots:  map[string]snapshot{},
	}
}

// BalanceOf returns account's balance of asset.
func (l *Ledger) BalanceOf(asset, account string) amount.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[balanceKey{asset, account}]
}

// TotalSupply returns asset's circulating supply.
func (l *Ledger) TotalSupply(asset string) amount.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply[asset]
}

// Allowance returns what spender may pull from owner.
func (l *Ledger) Allowance(asset, owner, spender string) amount.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[allowanceKey{asset, owner, spender}]
}

// Approve sets spender's allowance over owner's asset.
func (l *Ledger) Approve(asset, owner, spender string, amt amount.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{asset, owner, spender}] = amt
}

// Mint creates amt of asset for to.
func (l *Ledger) Mint(asset, to string, amt amount.Amount) error {
	return l.Settle([]campaign.Movement{{Kind: campaign.MoveMint, Asset: asset, To: to, Amount: amt}})
}

// Transfer moves amt of asset from one account to another.
func (l *Ledger) Transfer(asset, from, to string, amt amount.Amount) error {
	return l.Settle([]campaign.Movement{{Kind: campaign.MoveTransfer, Asset: asset, From: from, To: to, Amount: amt}})
}

// Settle applies moves atomically.
func (l *Ledger) Settle(moves []campaign.Movement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	o := l.overlay()
	for i, m := range moves {
		if err := o.apply(m); err != nil {
			return fmt.Errorf("movement %d (%s %s): %w", i, m.Kind, m.Asset, err)
		}
	}
	o.commit()
	return nil
}

// Revert undoes a batch previously applied by Settle. Movements are
// inverted and applied in reverse order, restoring spent allowances.
func (l *Ledger) Revert(moves []campaign.Movement) error {
	inverse := make([]campaign.Movement, 0, len(moves))
	for i := len(moves) - 1; i >= 0; i-- {
		m := moves[i]
		switch m.Kind {
		case campaign.MoveTransfer:
			inverse = append(inverse, campaign.Movement{Kind: campaign.MoveTransfer, Asset: m.Asset, From: m.To, To: m.From, Amount: m.Amount})
		case campaign.MoveTransferFrom:
			inverse = append(inverse, campaign.Movement{Kind: moveRestore, Asset: m.Asset, From: m.To, To: m.From, Spender: m.Spender, Amount: m.Amount})
		case campaign.MoveMint:
			inverse = append(inverse, campaign.Movement{Kind: campaign.MoveBurn, Asset: m.Asset, From: m.To, Amount: m.Amount})
		case campaign.MoveBurn:
			inverse = append(inverse, campaign.Movement{Kind: campaign.MoveMint, Asset: m.Asset, To: m.From, Amount: m.Amount})
		default:
			return fmt.Errorf("revert: %w: kind %q", ErrInvalidMovement, m.Kind)
		}
	}
	return l.Settle(inverse)
}

// moveRestore returns a pulled amount and re-grants the allowance it spent.
const moveRestore campaign.MoveKind = "restore"

// RecordSnapshot stores an explicit balance snapshot for asset.
func (l *Ledger) RecordSnapshot(id, asset string, balances map[string]amount.Amount) error {
	supply, err := sumBalances(balances)
	if err != nil {
		return err
	}
	return l.RecordSnapshotWithSupply(id, asset, supply, balances)
}

// RecordSnapshotWithSupply stores a snapshot whose total supply includes
// holders not listed in balances.
func (l *Ledger) RecordSnapshotWithSupply(id, asset string, supply amount.Amount, balances map[string]amount.Amount) error {
	listed, err := sumBalances(balances)
	if err != nil {
		return err
	}
	if listed.Gt(supply) {
		return fmt.Errorf("snapshot %s: balances %s exceed supply %s", id, listed, supply)
	}
	copied := make(map[string]amount.Amount, len(balances))
	for k, v := range balances {
		copied[k] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots[id] = snapshot{asset: asset, supply: supply, balances: copied}
	return nil
}

// Snapshot captures the current balances of asset under id.
func (l *Ledger) Snapshot(id, asset string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balances := map[string]amount.Amount{}
	for k, v := range l.balances {
		if k.asset == asset && !v.IsZero() {
			balances[k.account] = v
		}
	}
	l.snapshots[id] = snapshot{asset: asset, supply: l.supply[asset], balances: balances}
}

// BalanceAt returns account's balance in snapshot id.
func (l *Ledger) BalanceAt(id, account string) (amount.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.snapshots[id]
	if !ok {
		return amount.Zero, fmt.Errorf("%w: %s", ErrUnknownSnapshot, id)
	}
	return s.balances[account], nil
}

// TotalSupplyAt returns the supply recorded in snapshot id.
func (l *Ledger) TotalSupplyAt(id string) (amount.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.snapshots[id]
	if !ok {
		return amount.Zero, fmt.Errorf("%w: %s", ErrUnknownSnapshot, id)
	}
	return s.supply, nil
}

// Holders lists every account with a non-zero balance of asset, sorted.
func (l *Ledger) Holders(asset string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for k, v := range l.balances {
		if k.asset == asset && !v.IsZero() {
			out = append(out, k.account)
		}
	}
	sort.Strings(out)
	return out
}

func sumBalances(balances map[string]amount.Amount) (amount.Amount, error) {
	total := amount.Zero
	for _, v := range balances {
		var err error
		if total, err = total.Add(v); err != nil {
			return amount.Zero, err
		}
	}
	return total, nil
}
