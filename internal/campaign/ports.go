package campaign

import (
	"time"

	"github.com/roach88/launchpad/internal/amount"
)

// Role is an access-control role held in the registry.
type Role string

const (
	RoleDeployer     Role = "deployer"
	RoleConfigurator Role = "configurator"
	RoleApprover     Role = "approver"
)

// Registry is the campaign's view of the global registry: access control,
// accepted currencies and the fee vault.
type Registry interface {
	HasRole(role Role, account string) bool
	AcceptsCurrency(asset string) bool
	FeeVault() string
}

// MoveKind is the kind of a ledger movement.
type MoveKind string

const (
	MoveTransfer     MoveKind = "transfer"
	MoveTransferFrom MoveKind = "transfer_from"
	MoveMint         MoveKind = "mint"
	MoveBurn         MoveKind = "burn"
)

// Movement is one asset movement. TransferFrom spends an allowance that
// From granted to Spender.
type Movement struct {
	Kind    MoveKind      `json:"kind"`
	Asset   string        `json:"asset"`
	From    string        `json:"from,omitempty"`
	To      string        `json:"to,omitempty"`
	Spender string        `json:"spender,omitempty"`
	Amount  amount.Amount `json:"amount"`
}

// Ledger is the fungible-asset substrate. Settle applies a batch of
// movements atomically: either every movement succeeds or none does.
// Revert undoes a batch previously settled.
type Ledger interface {
	BalanceOf(asset, account string) amount.Amount
	Settle(moves []Movement) error
	Revert(moves []Movement) error
}

// SnapshotSource answers historical balance queries for guaranteed caps.
type SnapshotSource interface {
	BalanceAt(snapshotID, account string) (amount.Amount, error)
	TotalSupplyAt(snapshotID string) (amount.Amount, error)
}

// RandomnessOracle accepts a randomness request and later delivers the
// value through the engine. Delivery may be delayed arbitrarily.
type RandomnessOracle interface {
	RequestRandomness(campaignID string, seed [32]byte) (requestID string, err error)
}

// Deposit is a liquidity venue's answer to a deposit quote.
type Deposit struct {
	Pool    string        `json:"pool"`
	LpAsset string        `json:"lp_asset"`
	Units   amount.Amount `json:"units"`
}

// LiquidityVenue quotes liquidity deposits. The campaign moves both sides
// into Deposit.Pool and mints Deposit.Units of Deposit.LpAsset to itself.
type LiquidityVenue interface {
	Quote(provider, token, capital string, tokens, capitalAmt amount.Amount) (Deposit, error)
}

// Env carries time and collaborators into a campaign operation. The
// campaign holds no references of its own, which keeps it a plain value
// that can be cloned and persisted.
type Env struct {
	Now       time.Time
	Ledger    Ledger
	Snapshots SnapshotSource
	Oracle    RandomnessOracle
	Registry  Registry
	Venue     LiquidityVenue

	// Settled collects every batch this operation moved so the caller can
	// revert them if persisting the result fails.
	Settled []Movement
}

func (e *Env) settle(op string, moves ...Movement) error {
	var batch []Movement
	for _, m := range moves {
		if !m.Amount.IsZero() {
			batch = append(batch, m)
		}
	}
	if len(batch) == 0 {
		return nil
	}
	if err := e.Ledger.Settle(batch); err != nil {
		return reject(op, CodeTransferFailed, "%v", err)
	}
	e.Settled = append(e.Settled, batch...)
	return nil
}

// Call identifies the caller of a mutating operation and the native value
// attached to it.
type Call struct {
	Caller string        `json:"caller"`
	Value  amount.Amount `json:"value"`
}

func transfer(asset, from, to string, amt amount.Amount) Movement {
	return Movement{Kind: MoveTransfer, Asset: asset, From: from, To: to, Amount: amt}
}

func pull(asset, from, spender string, amt amount.Amount) Movement {
	return Movement{Kind: MoveTransferFrom, Asset: asset, From: from, To: spender, Spender: spender, Amount: amt}
}
