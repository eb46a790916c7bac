// Package registry tracks every campaign, the platform roles and the
// accepted capital currencies.
package registry

import (
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/sasha-s/go-deadlock"

	"github.com/roach88/launchpad/internal/campaign"
)

// Entry is one registered campaign.
type Entry struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Owner   string `json:"owner"`
	Account string `json:"account"`
}

// Registry implements campaign.Registry. Lookups are lock-free; Register
// serializes index assignment.
type Registry struct {
	roles      *xsync.Map[campaign.Role, map[string]bool]
	currencies *xsync.Map[string, bool]
	byID       *xsync.Map[string, Entry]

	mu       *deadlock.Mutex
	entries  []Entry
	feeVault string
}

var _ campaign.Registry = (*Registry)(nil)

// New creates a registry where admin holds every role.
func New(admin, feeVault string) *Registry {
	r := &Registry{
		roles:      xsync.NewMap[campaign.Role, map[string]bool](),
		currencies: xsync.NewMap[string, bool](),
		byID:       xsync.NewMap[string, Entry](),
		mu:         &deadlock.Mutex{},
		feeVault:   feeVault,
	}
	if admin != "" {
		for _, role := range []campaign.Role{campaign.RoleDeployer, campaign.RoleConfigurator, campaign.RoleApprover} {
			r.Grant(role, admin)
		}
	}
	return r
}

// Grant gives account role.
func (r *Registry) Grant(role campaign.Role, account string) {
	r.roles.Compute(role, func(old map[string]bool, loaded bool) (map[string]bool, xsync.ComputeOp) {
		next := make(map[string]bool, len(old)+1)
		for k := range old {
			next[k] = true
		}
		next[account] = true
		return next, xsync.UpdateOp
	})
}

// Revoke removes role from account.
func (r *Registry) Revoke(role campaign.Role, account string) {
	r.roles.Compute(role, func(old map[string]bool, loaded bool) (map[string]bool, xsync.ComputeOp) {
		if !loaded || !old[account] {
			return old, xsync.CancelOp
		}
		next := make(map[string]bool, len(old))
		for k := range old {
			if k != account {
				next[k] = true
			}
		}
		return next, xsync.UpdateOp
	})
}

// HasRole reports whether account holds role.
func (r *Registry) HasRole(role campaign.Role, account string) bool {
	holders, ok := r.roles.Load(role)
	return ok && holders[account]
}

// AddCurrency accepts asset as campaign capital.
func (r *Registry) AddCurrency(asset string) {
	r.currencies.Store(asset, true)
}

// RemoveCurrency stops accepting asset for new campaigns.
func (r *Registry) RemoveCurrency(asset string) {
	r.currencies.Delete(asset)
}

// AcceptsCurrency reports whether asset may be used as capital.
func (r *Registry) AcceptsCurrency(asset string) bool {
	_, ok := r.currencies.Load(asset)
	return ok
}

// Currencies lists accepted capital assets, sorted.
func (r *Registry) Currencies() []string {
	var out []string
	r.currencies.Range(func(k string, _ bool) bool {
		out = append(out, k)
		return true
	})
	sort.Strings(out)
	return out
}

// FeeVault returns the account that receives settlement fees.
func (r *Registry) FeeVault() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.feeVault
}

// SetFeeVault changes the fee vault.
func (r *Registry) SetFeeVault(account string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeVault = account
}

// Register records a new campaign under the next index. The campaign
// account is derived from the id.
func (r *Registry) Register(id, owner string) (Entry, error) {
	if id == "" || owner == "" {
		return Entry{}, &campaign.Error{Code: campaign.CodeInvalidAddress, Op: "register", Message: "campaign id and owner are required"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID.Load(id); ok {
		return Entry{}, &campaign.Error{Code: campaign.CodeAlreadyExist, Op: "register", Message: fmt.Sprintf("campaign %s already registered", id)}
	}
	e := Entry{Index: len(r.entries), ID: id, Owner: owner, Account: AccountFor(id)}
	r.entries = append(r.entries, e)
	r.byID.Store(id, e)
	return e, nil
}

// Restore re-registers a persisted entry at its original index.
func (r *Registry) Restore(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Index != len(r.entries) {
		return fmt.Errorf("restore %s: index %d, want %d", e.ID, e.Index, len(r.entries))
	}
	r.entries = append(r.entries, e)
	r.byID.Store(e.ID, e)
	return nil
}

// AccountFor is the ledger account that holds a campaign's funds.
func AccountFor(id string) string {
	return "campaign:" + id
}

// Total returns the number of registered campaigns.
func (r *Registry) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// At returns the campaign registered at index.
func (r *Registry) At(index int) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.entries) {
		return Entry{}, &campaign.Error{Code: campaign.CodeInvalidIndex, Op: "campaign_at", Message: fmt.Sprintf("index %d out of range [0, %d)", index, len(r.entries))}
	}
	return r.entries[index], nil
}

// Lookup returns the campaign registered under id.
func (r *Registry) Lookup(id string) (Entry, bool) {
	return r.byID.Load(id)
}

// List returns every entry in index order.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}
