package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/roach88/launchpad/internal/campaign"
	"github.com/roach88/launchpad/internal/canon"
	"github.com/roach88/launchpad/internal/ledger"
	"github.com/roach88/launchpad/internal/liquidity"
	"github.com/roach88/launchpad/internal/oracle"
	"github.com/roach88/launchpad/internal/registry"
	"github.com/roach88/launchpad/internal/store"
)

// OracleCaller is the caller recorded for randomness deliveries.
const OracleCaller = "oracle"

// Platform is the state every campaign shares at startup. Replay must be
// given the same Platform the log was written with.
type Platform struct {
	Admin      string   `json:"admin" yaml:"admin" mapstructure:"admin"`
	FeeVault   string   `json:"fee_vault" yaml:"fee_vault" mapstructure:"fee_vault"`
	Currencies []string `json:"currencies" yaml:"currencies" mapstructure:"currencies"`
	Providers  []string `json:"providers" yaml:"providers" mapstructure:"providers"`
}

// DefaultPlatform is used when no platform is configured.
func DefaultPlatform() Platform {
	return Platform{Admin: "admin", FeeVault: "fee-vault"}
}

// Command is one request to the engine. An empty Campaign addresses the
// platform (ledger and registry) rather than a campaign.
type Command struct {
	Campaign string         `json:"campaign,omitempty"`
	Action   string         `json:"action"`
	Caller   string         `json:"caller"`
	Args     map[string]any `json:"args,omitempty"`
	// At overrides the wall clock. Replay sets it to the recorded time.
	At time.Time `json:"at,omitzero"`
}

// Outcome is what an executed command recorded.
type Outcome struct {
	ActionID  string              `json:"action_id"`
	Seq       int64               `json:"seq"`
	Campaign  string              `json:"campaign,omitempty"`
	Action    string              `json:"action"`
	At        time.Time           `json:"at"`
	Code      string              `json:"code,omitempty"`
	Result    map[string]any      `json:"result,omitempty"`
	Movements []campaign.Movement `json:"movements,omitempty"`
	StateHash string              `json:"state_hash,omitempty"`
}

// Engine executes commands against campaigns one at a time.
//
// Every command runs against a clone of its campaign. Ledger movements
// settle as one batch, the action record and the campaign snapshot are
// committed in one store transaction, and only then is the clone swapped
// in. A rejected command reverts its movements and leaves the campaign
// untouched; the rejection itself is still logged.
//
// Thread-safety model:
//   - Execute(), queries and Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Engine struct {
	mu         *deadlock.RWMutex
	store      *store.Store
	clock      *Clock
	wall       WallClock
	ids        IDGenerator
	requestIDs *primedIDs
	platform   Platform

	ledger    *ledger.Ledger
	registry  *registry.Registry
	oracle    *oracle.Provider
	venue     *liquidity.Venue
	campaigns map[string]*campaign.Campaign

	queue     *commandQueue
	replaying bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore persists every action and campaign snapshot to s.
func WithStore(s *store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithWallClock sets the clock commands without an explicit time run at.
func WithWallClock(w WallClock) Option {
	return func(e *Engine) { e.wall = w }
}

// WithIDs sets the generator for campaign ids.
func WithIDs(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithRequestIDs sets the generator for oracle request ids.
func WithRequestIDs(g IDGenerator) Option {
	return func(e *Engine) { e.requestIDs.source = g }
}

// WithPlatform sets the initial platform state.
func WithPlatform(p Platform) Option {
	return func(e *Engine) { e.platform = p }
}

// New creates an Engine. Without options it keeps everything in memory,
// reads the system clock and issues UUIDv7 ids.
func New(opts ...Option) *Engine {
	e := &Engine{
		mu:         &deadlock.RWMutex{},
		clock:      NewClock(),
		wall:       SystemClock{},
		ids:        UUIDv7Generator{},
		requestIDs: &primedIDs{source: UUIDv7Generator{}},
		platform:   DefaultPlatform(),
		campaigns:  map[string]*campaign.Campaign{},
		queue:      newCommandQueue(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.ledger = ledger.New()
	e.registry = registry.New(e.platform.Admin, e.platform.FeeVault)
	for _, c := range e.platform.Currencies {
		e.registry.AddCurrency(c)
	}
	e.venue = liquidity.New(e.ledger, e.platform.Providers...)
	e.oracle = oracle.New(oracle.WithIDs(e.requestIDs))
	e.oracle.SetHandler(e.deliverRandomness)
	return e
}

// deliverRandomness routes an oracle fulfilment back through Execute so
// it is logged and replayed like any other action.
func (e *Engine) deliverRandomness(ctx context.Context, campaignID, requestID string, value [32]byte) error {
	_, err := e.Execute(ctx, Command{
		Campaign: campaignID,
		Action:   ActionFulfillRandomness,
		Caller:   OracleCaller,
		Args: map[string]any{
			"request_id": requestID,
			"value":      hex.EncodeToString(value[:]),
		},
	})
	return err
}

// Oracle returns the randomness provider. Its pending requests are
// delivered with Fulfill or FulfillAll.
func (e *Engine) Oracle() *oracle.Provider { return e.oracle }

// Ledger returns the asset ledger.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Registry returns the campaign registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Platform returns the platform the engine was created with.
func (e *Engine) Platform() Platform { return e.platform }

// Seq returns the last sequence number issued.
func (e *Engine) Seq() int64 { return e.clock.Current() }

// Execute runs one command. A rejected command returns its Outcome (with
// Code set) together with the rejection error; an infrastructure failure
// returns only the error and records nothing.
func (e *Engine) Execute(ctx context.Context, cmd Command) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.execute(ctx, cmd, nil)
}

// execution is the working state of one command.
type execution struct {
	e        *Engine
	action   string
	campID   string
	args     map[string]any
	raw      []byte
	env      *campaign.Env
	call     campaign.Call
	campaign *campaign.Campaign
	created  *registry.Entry
	result   map[string]any
	after    []func()
}

// commit queues a platform mutation that must only happen once the
// action is durable.
func (x *execution) commit(fn func()) {
	x.after = append(x.after, fn)
}

func (e *Engine) execute(ctx context.Context, cmd Command, recorded *store.Action) (Outcome, error) {
	h, ok := handlers[cmd.Action]
	if !ok {
		return Outcome{}, &RuntimeError{
			Code:     ErrCodeUnknownAction,
			Message:  "no handler registered",
			Action:   cmd.Action,
			Campaign: cmd.Campaign,
		}
	}
	if h.scope == scopePlatform && cmd.Campaign != "" {
		return Outcome{}, invalidArgs(cmd.Action, cmd.Campaign, fmt.Errorf("platform action addressed to a campaign"))
	}

	args := map[string]any{}
	if len(cmd.Args) > 0 {
		var err error
		if args, err = canon.NormalizeObject(cmd.Args); err != nil {
			return Outcome{}, invalidArgs(cmd.Action, cmd.Campaign, err)
		}
	}
	if h.scope == scopeCreate {
		if _, ok := args["id"]; !ok {
			args["id"] = e.ids.Generate()
		}
	}
	raw, err := canon.Marshal(args)
	if err != nil {
		return Outcome{}, invalidArgs(cmd.Action, cmd.Campaign, err)
	}

	at := cmd.At
	if at.IsZero() {
		at = e.wall.Now()
	}
	at = at.UTC()

	if recorded != nil {
		e.clock.reset(recorded.Seq)
		if id, ok := recorded.Result["request_id"].(string); ok {
			e.requestIDs.prime(id)
		}
	}
	seq := e.clock.Next()
	actionID, err := canon.ActionID(cmd.Campaign, cmd.Action, args, seq)
	if err != nil {
		return Outcome{}, fmt.Errorf("action id: %w", err)
	}

	x := &execution{
		e:      e,
		action: cmd.Action,
		campID: cmd.Campaign,
		args:   args,
		raw:    raw,
		env: &campaign.Env{
			Now:       at,
			Ledger:    e.ledger,
			Snapshots: e.ledger,
			Oracle:    e.oracle,
			Registry:  e.registry,
			Venue:     e.venue,
		},
		call:   campaign.Call{Caller: cmd.Caller},
		result: map[string]any{},
	}

	out := Outcome{
		ActionID: actionID,
		Seq:      seq,
		Campaign: cmd.Campaign,
		Action:   cmd.Action,
		At:       at,
	}

	var prevRequest string
	if h.scope == scopeCampaign {
		c, ok := e.campaigns[cmd.Campaign]
		if !ok {
			err = unknownCampaign(cmd.Action, cmd.Campaign)
		} else if x.campaign, err = c.Clone(); err == nil {
			prevRequest = c.Random.RequestID
		}
	}
	if err == nil {
		err = h.run(x)
	}
	if err != nil {
		e.abort(x, prevRequest)
		if !IsRejected(err) {
			return Outcome{}, fmt.Errorf("%s: %w", cmd.Action, err)
		}
		out.Code = Code(err)
		if recorded != nil {
			return Outcome{}, NewReplayDivergedError(recorded.ID, seq, "outcome", store.OutcomeOK, out.Code)
		}
		if !e.replaying {
			if werr := e.record(ctx, x, out, err, nil); werr != nil {
				return Outcome{}, werr
			}
		}
		slog.Debug("action rejected",
			"action", cmd.Action,
			"campaign", cmd.Campaign,
			"caller", cmd.Caller,
			"seq", seq,
			"code", out.Code,
		)
		return out, err
	}

	out.Result = x.result
	out.Movements = x.env.Settled
	if out.Movements == nil {
		out.Movements = []campaign.Movement{}
	}

	target := x.campaign
	if x.created != nil {
		target = campaign.New(x.created.ID, x.created.Index, x.created.Owner, x.created.Account)
	}
	var snap *store.Snapshot
	if target != nil {
		state, err := canon.Canonicalize(target)
		if err != nil {
			e.abort(x, prevRequest)
			return Outcome{}, fmt.Errorf("%s: snapshot: %w", cmd.Action, err)
		}
		out.StateHash = canon.StateHash(state)
		snap = &store.Snapshot{
			ID:        target.ID,
			Index:     target.Index,
			Owner:     target.Owner,
			Account:   target.Account,
			State:     state,
			StateHash: out.StateHash,
			Seq:       seq,
		}
		if out.Campaign == "" {
			out.Campaign = target.ID
		}
	}

	if recorded != nil {
		if recorded.ID != actionID {
			e.abort(x, prevRequest)
			return Outcome{}, NewReplayDivergedError(recorded.ID, seq, "action id", recorded.ID, actionID)
		}
		if recorded.StateHash != out.StateHash {
			e.abort(x, prevRequest)
			return Outcome{}, NewReplayDivergedError(recorded.ID, seq, "state hash", recorded.StateHash, out.StateHash)
		}
	} else if !e.replaying {
		if err := e.record(ctx, x, out, nil, snap); err != nil {
			e.abort(x, prevRequest)
			return Outcome{}, err
		}
	}

	if x.created != nil {
		if _, err := e.registry.Register(x.created.ID, x.created.Owner); err != nil {
			return Outcome{}, fmt.Errorf("%s: register: %w", cmd.Action, err)
		}
	}
	if target != nil {
		e.campaigns[target.ID] = target
	}
	for _, fn := range x.after {
		fn()
	}

	slog.Debug("action applied",
		"action", cmd.Action,
		"campaign", out.Campaign,
		"caller", cmd.Caller,
		"seq", seq,
		"movements", len(out.Movements),
	)
	return out, nil
}

// abort reverts ledger movements and drops any oracle request the failed
// command issued.
func (e *Engine) abort(x *execution, prevRequest string) {
	if len(x.env.Settled) > 0 {
		if err := e.ledger.Revert(x.env.Settled); err != nil {
			// The batch settled moments ago under the same lock.
			slog.Error("revert failed",
				"action", x.action,
				"campaign", x.campID,
				"error", err,
			)
		}
		x.env.Settled = nil
	}
	if x.campaign != nil && x.campaign.Random.RequestID != prevRequest && x.campaign.Random.RequestID != "" {
		e.oracle.Forget(x.campaign.Random.RequestID)
	}
}

func (e *Engine) record(ctx context.Context, x *execution, out Outcome, cause error, snap *store.Snapshot) error {
	if e.store == nil {
		return nil
	}
	rec := store.Action{
		ID:         out.ActionID,
		Seq:        out.Seq,
		CampaignID: x.campID,
		Action:     x.action,
		Caller:     x.call.Caller,
		Args:       x.args,
		At:         out.At,
		Outcome:    store.OutcomeOK,
		Result:     out.Result,
		Movements:  out.Movements,
		StateHash:  out.StateHash,
	}
	if x.created != nil {
		rec.CampaignID = x.created.ID
	}
	if cause != nil {
		rec.Outcome = out.Code
		rec.Error = cause.Error()
		rec.Result = nil
		rec.Movements = nil
		rec.StateHash = ""
	}
	if err := e.store.Commit(ctx, rec, snap); err != nil {
		return fmt.Errorf("persist %s: %w", x.action, err)
	}
	return nil
}
