package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/launchpad/internal/campaign"
	"github.com/roach88/launchpad/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Action   string // optional - filter to one action name
	Rejected bool   // only rejected actions
}

// InspectEvent is one recorded action in the timeline.
type InspectEvent struct {
	Seq       int64               `json:"seq"`
	ID        string              `json:"id"`
	At        time.Time           `json:"at"`
	Campaign  string              `json:"campaign,omitempty"`
	Action    string              `json:"action"`
	Caller    string              `json:"caller"`
	Outcome   string              `json:"outcome"`
	Error     string              `json:"error,omitempty"`
	Args      map[string]any      `json:"args,omitempty"`
	Result    map[string]any      `json:"result,omitempty"`
	Movements []campaign.Movement `json:"movements,omitempty"`
	StateHash string              `json:"state_hash,omitempty"`
}

// InspectSnapshot is the persisted head of a campaign.
type InspectSnapshot struct {
	ID        string `json:"id"`
	Index     int    `json:"index"`
	Owner     string `json:"owner"`
	Account   string `json:"account"`
	Seq       int64  `json:"seq"`
	StateHash string `json:"state_hash"`
}

// InspectStats holds summary statistics for the timeline.
type InspectStats struct {
	Total    int `json:"total"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// InspectResult holds the complete inspect output.
type InspectResult struct {
	Campaign string           `json:"campaign,omitempty"`
	Snapshot *InspectSnapshot `json:"snapshot,omitempty"`
	Timeline []InspectEvent   `json:"timeline"`
	Stats    InspectStats     `json:"stats"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect [campaign]",
		Short: "Show the recorded action log",
		Long: `Show the action log, accepted and rejected, in seq order.

With a campaign id only that campaign's actions are listed, together with
its persisted snapshot. The log is read as stored; nothing is replayed.

Examples:
  launchpad inspect
  launchpad inspect sale --action buy_tokens
  launchpad inspect --rejected --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runInspect(opts, id, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to one action name")
	cmd.Flags().BoolVar(&opts.Rejected, "rejected", false, "only show rejected actions")

	return cmd
}

func runInspect(opts *InspectOptions, id string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	actions, err := st.ListActions(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read actions", err)
	}

	result := InspectResult{Campaign: id, Timeline: buildTimeline(actions, opts.Action, opts.Rejected)}
	for _, a := range actions {
		result.Stats.Total++
		if a.Accepted() {
			result.Stats.Accepted++
		} else {
			result.Stats.Rejected++
		}
	}

	if id != "" {
		snap, err := st.LoadSnapshot(ctx, id)
		switch {
		case err == nil:
			result.Snapshot = &InspectSnapshot{
				ID:        snap.ID,
				Index:     snap.Index,
				Owner:     snap.Owner,
				Account:   snap.Account,
				Seq:       snap.Seq,
				StateHash: snap.StateHash,
			}
		case errors.Is(err, store.ErrNotFound):
			if len(actions) == 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("campaign %s not found", id))
			}
		default:
			return WrapExitError(ExitCommandError, "failed to load snapshot", err)
		}
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: result})
	}
	outputInspectText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

// buildTimeline converts stored actions to timeline events, keeping only
// those matching the filters.
func buildTimeline(actions []store.Action, actionFilter string, rejectedOnly bool) []InspectEvent {
	timeline := make([]InspectEvent, 0, len(actions))
	for _, a := range actions {
		if actionFilter != "" && a.Action != actionFilter {
			continue
		}
		if rejectedOnly && a.Accepted() {
			continue
		}
		timeline = append(timeline, InspectEvent{
			Seq:       a.Seq,
			ID:        a.ID,
			At:        a.At,
			Campaign:  a.CampaignID,
			Action:    a.Action,
			Caller:    a.Caller,
			Outcome:   a.Outcome,
			Error:     a.Error,
			Args:      a.Args,
			Result:    a.Result,
			Movements: a.Movements,
			StateHash: a.StateHash,
		})
	}
	return timeline
}

func outputInspectText(w io.Writer, result InspectResult, verbose bool) {
	if result.Campaign != "" {
		fmt.Fprintf(w, "Campaign: %s\n", result.Campaign)
	}
	if s := result.Snapshot; s != nil {
		fmt.Fprintf(w, "Owner: %s (index %d, account %s)\n", s.Owner, s.Index, s.Account)
		fmt.Fprintf(w, "Head: seq %d, state %s\n", s.Seq, s.StateHash)
	}
	fmt.Fprintf(w, "Actions: %d (%d accepted, %d rejected)\n", result.Stats.Total, result.Stats.Accepted, result.Stats.Rejected)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no actions)")
		return
	}
	for _, ev := range result.Timeline {
		formatTimelineEvent(w, ev, verbose)
	}
}

func formatTimelineEvent(w io.Writer, ev InspectEvent, verbose bool) {
	status := "✓"
	if ev.Outcome != store.OutcomeOK {
		status = "✗"
	}
	fmt.Fprintf(w, "[%d] %s %s %s", ev.Seq, ev.At.Format(time.RFC3339), status, ev.Action)
	if ev.Campaign != "" {
		fmt.Fprintf(w, " on %s", ev.Campaign)
	}
	fmt.Fprintf(w, " by %s", ev.Caller)
	if ev.Outcome != store.OutcomeOK {
		fmt.Fprintf(w, " -> %s", ev.Outcome)
	}
	fmt.Fprintln(w)

	if !verbose {
		return
	}
	if len(ev.Args) > 0 {
		fmt.Fprintf(w, "    args: %s\n", compactJSON(ev.Args))
	}
	if len(ev.Result) > 0 {
		fmt.Fprintf(w, "    result: %s\n", compactJSON(ev.Result))
	}
	if ev.Error != "" {
		fmt.Fprintf(w, "    error: %s\n", ev.Error)
	}
	for _, m := range ev.Movements {
		fmt.Fprintf(w, "    %s %s %s: %s -> %s\n", m.Kind, m.Amount, m.Asset, m.From, m.To)
	}
}
