package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/canon"
	"github.com/roach88/launchpad/internal/config"
	"github.com/roach88/launchpad/internal/engine"
	"github.com/roach88/launchpad/internal/store"
	"github.com/roach88/launchpad/internal/testutil"
)

// DefaultStart anchors scenarios that don't set start.
var DefaultStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultCampaignID names the scenario campaign when its definition has
// no id.
const DefaultCampaignID = "campaign"

// Harness runs one scenario against a real engine.
type Harness struct {
	store    *store.Store
	engine   *engine.Engine
	clock    *testutil.ManualClock
	start    time.Time
	units    units
	campaign string
	platform engine.Platform
	checker  *invariantChecker
	logger   *slog.Logger
}

// Option configures a scenario run.
type Option func(*runOptions)

type runOptions struct {
	logger *slog.Logger
}

// WithLogger logs every step to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) { o.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database against a real engine
// with a manual clock and sequential ids, so the same scenario always
// produces the same trace. Step and assertion failures are reported in
// the result; the error return is reserved for scenarios that cannot run
// at all (bad campaign definition, unparsable amounts or times).
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	start := DefaultStart
	if scenario.Start != "" {
		t, err := time.Parse(time.RFC3339, scenario.Start)
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		start = t.UTC()
	}

	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	platform := engine.DefaultPlatform()
	if scenario.Platform != nil {
		platform = *scenario.Platform
	}

	clock := testutil.NewManualClock(start)
	h := &Harness{
		store:    st,
		clock:    clock,
		start:    start,
		units:    units{},
		platform: platform,
		checker:  newInvariantChecker(),
		logger:   o.logger,
	}
	h.engine = engine.New(
		engine.WithStore(st),
		engine.WithPlatform(platform),
		engine.WithWallClock(clock),
		engine.WithIDs(testutil.NewSeqIDs("campaign")),
		engine.WithRequestIDs(testutil.NewSeqIDs("req")),
	)
	for asset, decimals := range scenario.Assets {
		h.units[asset] = decimals
	}

	result := NewResult()
	if scenario.Campaign != nil {
		if err := h.setup(ctx, scenario); err != nil {
			return nil, fmt.Errorf("failed to set up campaign: %w", err)
		}
	}

	for i := range scenario.Steps {
		if err := h.step(ctx, i, &scenario.Steps[i], result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		for _, v := range h.checker.check(h.engine, clock.Now()) {
			result.AddError(fmt.Sprintf("step %d: invariant violated: %s", i, v))
		}
	}

	actions, err := st.ListActions(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	result.Trace = h.trace(actions)

	actx := &AssertionContext{Store: st, Engine: h.engine, Units: h.units, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// setup creates the scenario campaign at start, then funds it when the
// scenario asks for it.
func (h *Harness) setup(ctx context.Context, scenario *Scenario) error {
	spec, err := config.ParseCampaign(scenario.Campaign)
	if err != nil {
		return err
	}
	if spec.ID == "" {
		spec.ID = DefaultCampaignID
	}
	s, err := spec.Build(h.start)
	if err != nil {
		return err
	}
	h.campaign = s.ID
	h.units[s.Config.Token.ID] = s.Config.Token.Decimals
	h.units[s.Config.Capital.ID] = s.Config.Capital.Decimals
	h.units[s.Config.Burn.ID] = s.Config.Burn.Decimals

	cmds, err := s.Commands(h.platform.Admin)
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		if _, err := h.engine.Execute(ctx, cmd); err != nil {
			return fmt.Errorf("%s: %w", cmd.Action, err)
		}
	}

	if !scenario.FundIn {
		return nil
	}
	c, err := h.engine.Campaign(s.ID)
	if err != nil {
		return err
	}
	required, err := c.RequiredFunding()
	if err != nil {
		return err
	}
	if err := h.fund(ctx, s.Owner, s.Config.Token.ID, s.ID, required); err != nil {
		return err
	}
	_, err = h.engine.Execute(ctx, engine.Command{
		Campaign: s.ID,
		Action:   engine.ActionFundIn,
		Caller:   s.Owner,
		Args:     map[string]any{"amount": required.String()},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", engine.ActionFundIn, err)
	}
	return nil
}

// fund mints amt of asset to account and raises its allowance for the
// campaign by the same amount.
func (h *Harness) fund(ctx context.Context, account, asset, campaignID string, amt amount.Amount) error {
	_, err := h.engine.Execute(ctx, engine.Command{
		Action: engine.ActionMint,
		Caller: h.platform.Admin,
		Args:   map[string]any{"asset": asset, "to": account, "amount": amt.String()},
	})
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	if campaignID == "" {
		return nil
	}
	allowance := h.engine.Ledger().Allowance(asset, account, "campaign:"+campaignID)
	total, err := allowance.Add(amt)
	if err != nil {
		return err
	}
	_, err = h.engine.Execute(ctx, engine.Command{
		Action: engine.ActionApprove,
		Caller: account,
		Args:   map[string]any{"asset": asset, "campaign": campaignID, "amount": total.String()},
	})
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	return nil
}

func (h *Harness) step(ctx context.Context, i int, step *Step, result *Result) error {
	if step.At != "" {
		at, err := h.at(step.At)
		if err != nil {
			return err
		}
		h.clock.Set(at)
	}

	campaignID := step.Campaign
	if campaignID == "" {
		campaignID = h.campaign
	}

	switch {
	case step.Action != "":
		return h.action(ctx, i, step, campaignID, result)
	case step.Query != "":
		return h.query(i, step, campaignID, result)
	case step.Fund != nil:
		m := unitAmount.FindStringSubmatch(step.Fund.Amount)
		if m == nil {
			return fmt.Errorf("fund amount %q needs an asset", step.Fund.Amount)
		}
		amt, err := h.units.parse(step.Fund.Amount)
		if err != nil {
			return err
		}
		err = h.fund(ctx, step.Fund.Account, m[2], campaignID, amt)
		h.expectOutcome(i, step, nil, err, result)
		return nil
	case step.Fulfill != "":
		err := h.engine.Oracle().FulfillAll(ctx, step.Fulfill)
		h.expectOutcome(i, step, nil, err, result)
		return nil
	}
	return nil
}

func (h *Harness) action(ctx context.Context, i int, step *Step, campaignID string, result *Result) error {
	args, err := h.units.convertObject(step.Args)
	if err != nil {
		return fmt.Errorf("args: %w", err)
	}
	cmd := engine.Command{Action: step.Action, Caller: step.Caller, Args: args}
	if engine.CampaignScoped(step.Action) {
		cmd.Campaign = campaignID
	}
	out, execErr := h.engine.Execute(ctx, cmd)
	h.logger.Info("scenario step",
		"step", i,
		"action", step.Action,
		"campaign", cmd.Campaign,
		"caller", step.Caller,
		"code", engine.Code(execErr),
	)
	h.expectOutcome(i, step, out.Result, execErr, result)
	return nil
}

// expectOutcome checks a step's error code and, on success, its result.
func (h *Harness) expectOutcome(i int, step *Step, got map[string]any, err error, result *Result) {
	label := stepLabel(i, step)
	want := ""
	if step.Expect != nil {
		want = step.Expect.Error
	}
	switch {
	case err != nil && want == "":
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, err))
		return
	case err == nil && want != "":
		result.AddError(fmt.Sprintf("%s: expected error %s, got success", label, want))
		return
	case err != nil:
		if code := engine.Code(err); code != want {
			result.AddError(fmt.Sprintf("%s: expected error %s, got %s (%v)", label, want, code, err))
		}
		return
	}
	if step.Expect == nil || step.Expect.Result == nil {
		return
	}
	if msg := h.compare(step.Expect.Result, got); msg != "" {
		result.AddError(fmt.Sprintf("%s: result %s", label, msg))
	}
}

func (h *Harness) query(i int, step *Step, campaignID string, result *Result) error {
	label := stepLabel(i, step)
	qa := engine.QueryArgs{Account: step.Account, Priority: step.Priority}
	if step.Amount != "" {
		amt, err := h.units.parse(step.Amount)
		if err != nil {
			return err
		}
		qa.Amount = amt
	}
	got, err := h.engine.QueryJSON(campaignID, step.Query, h.clock.Now(), qa)

	want := ""
	if step.Expect != nil {
		want = step.Expect.Error
	}
	switch {
	case err != nil && want == "":
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, err))
		return nil
	case err == nil && want != "":
		result.AddError(fmt.Sprintf("%s: expected error %s, got success", label, want))
		return nil
	case err != nil:
		if code := engine.Code(err); code != want {
			result.AddError(fmt.Sprintf("%s: expected error %s, got %s", label, want, code))
		}
		return nil
	}

	result.Queries[fmt.Sprintf("%d", i)] = got
	if step.Expect != nil && step.Expect.Value != nil {
		if msg := h.compare(step.Expect.Value, got); msg != "" {
			result.AddError(fmt.Sprintf("%s: value %s", label, msg))
		}
	}
	return nil
}

// compare converts want's human amounts, normalizes both sides and
// reports a mismatch, or "" when got contains want.
func (h *Harness) compare(want, got any) string {
	converted, err := h.units.convert(want)
	if err != nil {
		return err.Error()
	}
	w, err := canon.Normalize(converted)
	if err != nil {
		return err.Error()
	}
	g, err := canon.Normalize(got)
	if err != nil {
		return err.Error()
	}
	if !matchValue(g, w) {
		return fmt.Sprintf("mismatch: expected %v, got %v", w, g)
	}
	return ""
}

// at resolves a step time against the scenario start.
func (h *Harness) at(s string) (time.Time, error) {
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return time.Time{}, fmt.Errorf("at %q: %w", s, err)
		}
		return h.start.Add(d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("at %q: %w", s, err)
	}
	return t.UTC(), nil
}

func (h *Harness) trace(actions []store.Action) []TraceEvent {
	events := make([]TraceEvent, 0, len(actions))
	for _, a := range actions {
		ev := TraceEvent{
			Seq:       a.Seq,
			At:        "+" + a.At.Sub(h.start).String(),
			Action:    a.Action,
			Campaign:  a.CampaignID,
			Caller:    a.Caller,
			Outcome:   a.Outcome,
			StateHash: a.StateHash,
		}
		if len(a.Args) > 0 {
			ev.Args = a.Args
		}
		if len(a.Result) > 0 {
			ev.Result = a.Result
		}
		events = append(events, ev)
	}
	return events
}

func stepLabel(i int, step *Step) string {
	switch {
	case step.Action != "":
		return fmt.Sprintf("step %d (%s by %s)", i, step.Action, step.Caller)
	case step.Query != "":
		return fmt.Sprintf("step %d (query %s)", i, step.Query)
	case step.Fund != nil:
		return fmt.Sprintf("step %d (fund %s)", i, step.Fund.Account)
	default:
		return fmt.Sprintf("step %d (fulfill)", i)
	}
}
