package engine

import (
	"sync"

	"github.com/google/uuid"
)

// IDGenerator generates campaign ids when a create command omits one.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined ids for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("camp-1", "camp-2")
//	gen.Generate() // "camp-1"
//	gen.Generate() // "camp-2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, which catches a test that creates
// more campaigns than it declared.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// primedIDs hands out ids recorded in the action log before falling back
// to a live generator. Replay primes the oracle request id of each
// request_tally so the rebuilt campaign matches the recorded one.
type primedIDs struct {
	mu     sync.Mutex
	next   string
	source IDGenerator
}

func (p *primedIDs) prime(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = id
}

func (p *primedIDs) Generate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next != "" {
		id := p.next
		p.next = ""
		return id
	}
	return p.source.Generate()
}
