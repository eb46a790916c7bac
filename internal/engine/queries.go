package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/campaign"
	"github.com/roach88/launchpad/internal/canon"
)

// Campaign returns a copy of campaign id.
func (e *Engine) Campaign(id string) (*campaign.Campaign, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.campaigns[id]
	if !ok {
		return nil, unknownCampaign("campaign", id)
	}
	return c.Clone()
}

// StateHash returns the hash of campaign id's canonical state, the same
// hash its latest action recorded.
func (e *Engine) StateHash(id string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.campaigns[id]
	if !ok {
		return "", unknownCampaign("state_hash", id)
	}
	state, err := canon.Canonicalize(c)
	if err != nil {
		return "", fmt.Errorf("state hash %s: %w", id, err)
	}
	return canon.StateHash(state), nil
}

// Campaigns lists every campaign summary in registry order at now.
func (e *Engine) Campaigns(now time.Time) []campaign.Info {
	e.mu.RLock()
	defer e.mu.RUnlock()
	env := e.queryEnv(now)
	infos := make([]campaign.Info, 0, len(e.campaigns))
	for _, entry := range e.registry.List() {
		if c, ok := e.campaigns[entry.ID]; ok {
			infos = append(infos, c.Info(env))
		}
	}
	return infos
}

// Balance returns account's balance of asset.
func (e *Engine) Balance(asset, account string) amount.Amount {
	return e.ledger.BalanceOf(asset, account)
}

func (e *Engine) queryEnv(now time.Time) *campaign.Env {
	if now.IsZero() {
		now = e.wall.Now()
	}
	return &campaign.Env{
		Now:       now.UTC(),
		Ledger:    e.ledger,
		Snapshots: e.ledger,
		Registry:  e.registry,
		Venue:     e.venue,
	}
}

// QueryArgs parameterizes a read.
type QueryArgs struct {
	Account string        `json:"account"`
	Amount  amount.Amount `json:"amount"`
	// Priority prices an oversubscription stake for burn_quantity.
	Priority uint8 `json:"priority"`
}

type query func(c *campaign.Campaign, env *campaign.Env, a QueryArgs) (any, error)

var queries = map[string]query{
	"info": func(c *campaign.Campaign, env *campaign.Env, _ QueryArgs) (any, error) {
		return c.Info(env), nil
	},
	"phase": func(c *campaign.Campaign, env *campaign.Env, _ QueryArgs) (any, error) {
		return c.Phase(env.Now).String(), nil
	},
	"subscribable": func(c *campaign.Campaign, env *campaign.Env, a QueryArgs) (any, error) {
		capAmt, guaranteed, err := c.Subscribable(env, a.Account)
		if err != nil {
			return nil, err
		}
		return map[string]any{"amount": capAmt, "guaranteed": guaranteed}, nil
	},
	"burn_quantity": func(c *campaign.Campaign, _ *campaign.Env, a QueryArgs) (any, error) {
		return c.BurnQuantity(a.Amount, a.Priority)
	},
	"subscription_result": func(c *campaign.Campaign, _ *campaign.Env, a QueryArgs) (any, error) {
		return c.SubscriptionResult(a.Account)
	},
	"tally": func(c *campaign.Campaign, _ *campaign.Env, _ QueryArgs) (any, error) {
		return c.PeekTally()
	},
	"refundable": func(c *campaign.Campaign, _ *campaign.Env, a QueryArgs) (any, error) {
		return c.Refundable(a.Account)
	},
	"purchase": func(c *campaign.Campaign, _ *campaign.Env, a QueryArgs) (any, error) {
		return c.PurchaseOf(a.Account), nil
	},
	"public_buy_limit": func(c *campaign.Campaign, _ *campaign.Env, _ QueryArgs) (any, error) {
		return c.PublicBuyLimit(), nil
	},
	"claimable_tokens": func(c *campaign.Campaign, env *campaign.Env, a QueryArgs) (any, error) {
		return c.ClaimableTokens(a.Account, env.Now)
	},
	"claimable_owner_tokens": func(c *campaign.Campaign, env *campaign.Env, _ QueryArgs) (any, error) {
		return c.ClaimableOwnerTokens(env.Now)
	},
	"claimable_lp": func(c *campaign.Campaign, env *campaign.Env, _ QueryArgs) (any, error) {
		return c.ClaimableLp(env.Now)
	},
	"owner_funds": func(c *campaign.Campaign, _ *campaign.Env, _ QueryArgs) (any, error) {
		return c.OwnerFunds(), nil
	},
	"reclaimable": func(c *campaign.Campaign, _ *campaign.Env, _ QueryArgs) (any, error) {
		return c.Reclaimable(), nil
	},
	"tokens_for_capital": func(c *campaign.Campaign, _ *campaign.Env, a QueryArgs) (any, error) {
		return c.TokensForCapital(a.Amount)
	},
	"required_funding": func(c *campaign.Campaign, _ *campaign.Env, _ QueryArgs) (any, error) {
		return c.RequiredFunding()
	},
	"total_sold": func(c *campaign.Campaign, _ *campaign.Env, _ QueryArgs) (any, error) {
		return c.TotalSold()
	},
	"remaining": func(c *campaign.Campaign, _ *campaign.Env, _ QueryArgs) (any, error) {
		return c.Remaining(), nil
	},
	"settlement": func(c *campaign.Campaign, _ *campaign.Env, _ QueryArgs) (any, error) {
		if c.Settlement == nil {
			return nil, &campaign.Error{Code: campaign.CodeIdoNotEndedYet, Op: "settlement", Message: "campaign is not settled"}
		}
		return *c.Settlement, nil
	},
}

// Queries lists every query name in sorted order.
func Queries() []string {
	names := make([]string, 0, len(queries))
	for name := range queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Query runs a named read against campaign id at now (zero means the
// wall clock).
func (e *Engine) Query(id, name string, now time.Time, a QueryArgs) (any, error) {
	q, ok := queries[name]
	if !ok {
		return nil, &RuntimeError{Code: ErrCodeUnknownAction, Message: "no query registered", Action: name, Campaign: id}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.campaigns[id]
	if !ok {
		return nil, unknownCampaign(name, id)
	}
	return q(c, e.queryEnv(now), a)
}

// QueryJSON is Query with the result re-encoded as a generic JSON value,
// which is what scenario assertions compare against.
func (e *Engine) QueryJSON(id, name string, now time.Time, a QueryArgs) (any, error) {
	v, err := e.Query(id, name, now, a)
	if err != nil {
		return nil, err
	}
	out, err := canon.Normalize(v)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	return out, nil
}
