// Package oracle is an in-process randomness provider.
//
// Campaigns request randomness when their tally needs a lottery. The
// provider records each request and delivers the value later through
// Fulfill, which hands it to the registered handler (the engine). Delivery
// may be delayed arbitrarily or never happen.
package oracle

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/roach88/launchpad/internal/campaign"
	"github.com/roach88/launchpad/internal/canon"
)

var (
	ErrUnknownRequest = errors.New("unknown randomness request")
	ErrNoHandler      = errors.New("no fulfilment handler")
	ErrDisabled       = errors.New("oracle is not accepting requests")
)

// IDGenerator issues request ids.
type IDGenerator interface {
	Generate() string
}

type uuidV7 struct{}

func (uuidV7) Generate() string { return uuid.Must(uuid.NewV7()).String() }

// Request is one outstanding randomness request.
type Request struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	Seed       string `json:"seed"`
	Seq        uint64 `json:"seq"`
}

// Handler receives fulfilled values.
type Handler func(ctx context.Context, campaignID, requestID string, value [32]byte) error

// Provider implements campaign.RandomnessOracle.
type Provider struct {
	ids     IDGenerator
	pending *xsync.Map[string, Request]
	seq     atomic.Uint64
	handler Handler
	enabled bool
}

var _ campaign.RandomnessOracle = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithIDs replaces the UUIDv7 request ids.
func WithIDs(g IDGenerator) Option {
	return func(p *Provider) { p.ids = g }
}

// Disabled makes every request fail.
func Disabled() Option {
	return func(p *Provider) { p.enabled = false }
}

// New creates a provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		ids:     uuidV7{},
		pending: xsync.NewMap[string, Request](),
		enabled: true,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SetHandler routes fulfilled values. It must be set before Fulfill.
func (p *Provider) SetHandler(h Handler) {
	p.handler = h
}

// RequestRandomness records a request and returns its id.
func (p *Provider) RequestRandomness(campaignID string, seed [32]byte) (string, error) {
	if !p.enabled {
		return "", ErrDisabled
	}
	req := Request{
		ID:         p.ids.Generate(),
		CampaignID: campaignID,
		Seed:       hex.EncodeToString(seed[:]),
		Seq:        p.seq.Add(1),
	}
	if _, loaded := p.pending.LoadOrStore(req.ID, req); loaded {
		return "", fmt.Errorf("duplicate request id %s", req.ID)
	}
	return req.ID, nil
}

// Pending lists outstanding requests in issue order.
func (p *Provider) Pending() []Request {
	var out []Request
	p.pending.Range(func(_ string, r Request) bool {
		out = append(out, r)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Lookup returns an outstanding request.
func (p *Provider) Lookup(requestID string) (Request, bool) {
	return p.pending.Load(requestID)
}

// Forget drops an outstanding request without delivering it.
func (p *Provider) Forget(requestID string) {
	p.pending.Delete(requestID)
}

// Fulfill delivers value for requestID. The request stays pending if the
// handler rejects it, so delivery can be retried.
func (p *Provider) Fulfill(ctx context.Context, requestID string, value [32]byte) error {
	req, ok := p.pending.Load(requestID)
	if !ok {
		return fmt.Errorf("fulfill %s: %w", requestID, ErrUnknownRequest)
	}
	if p.handler == nil {
		return fmt.Errorf("fulfill %s: %w", requestID, ErrNoHandler)
	}
	if err := p.handler(ctx, req.CampaignID, requestID, value); err != nil {
		return fmt.Errorf("fulfill %s: %w", requestID, err)
	}
	p.pending.Delete(requestID)
	return nil
}

// FulfillAll delivers a derived value for every pending request in issue
// order and returns the first error.
func (p *Provider) FulfillAll(ctx context.Context, salt string) error {
	for _, req := range p.Pending() {
		value, err := Derive(req, salt)
		if err != nil {
			return err
		}
		if err := p.Fulfill(ctx, req.ID, value); err != nil {
			return err
		}
	}
	return nil
}

// Derive computes a reproducible value for req from its seed and salt.
func Derive(req Request, salt string) ([32]byte, error) {
	var seed [32]byte
	b, err := hex.DecodeString(req.Seed)
	if err != nil || len(b) != len(seed) {
		return seed, fmt.Errorf("request %s: malformed seed", req.ID)
	}
	copy(seed[:], b)
	return canon.Seed(salt, hex.EncodeToString(seed[:])), nil
}
