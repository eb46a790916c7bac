package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/launchpad/internal/engine"
	"github.com/roach88/launchpad/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Verify bool
}

// ReplayCampaign holds the rebuilt head of one campaign.
type ReplayCampaign struct {
	ID            string `json:"id"`
	Phase         string `json:"phase"`
	StateHash     string `json:"state_hash"`
	Deterministic bool   `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Actions          int              `json:"actions"`
	Rejected         int              `json:"rejected"`
	Seq              int64            `json:"seq"`
	Campaigns        []ReplayCampaign `json:"campaigns"`
	AllDeterministic bool             `json:"all_deterministic"`
	Error            string           `json:"error,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild state from the action log and verify determinism",
		Long: `Re-execute every accepted action in the log and check that each one
reproduces its recorded action id and state hash.

With --verify the rebuilt state of every campaign is also compared
against its persisted snapshot.

Exit codes:
  0 - Replay reproduced the log
  1 - Replay diverged from the log
  2 - Command error (database not found, etc.)

Examples:
  launchpad replay --db ./launchpad.db
  launchpad replay --verify --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "also compare rebuilt state against stored snapshots")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	actions, err := st.ListActions(ctx, "")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read actions", err)
	}
	result := ReplayResult{Actions: len(actions), Campaigns: []ReplayCampaign{}, AllDeterministic: true}
	for _, a := range actions {
		if !a.Accepted() {
			result.Rejected++
		}
	}

	platform := engine.WithPlatform(opts.platform())
	e, err := engine.Replay(ctx, st, platform)
	if err == nil && opts.Verify {
		err = engine.Verify(ctx, st, platform)
	}
	if err != nil {
		if !engine.IsReplayDiverged(err) {
			return WrapExitError(ExitCommandError, "replay failed", err)
		}
		result.AllDeterministic = false
		result.Error = err.Error()
		return outputReplay(cmd, opts, result)
	}

	result.Seq = e.Seq()
	snaps, err := st.ListSnapshots(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list snapshots", err)
	}
	for _, info := range e.Campaigns(time.Now()) {
		rc := ReplayCampaign{ID: info.ID, Phase: info.Phase, Deterministic: true}
		rc.StateHash, _ = e.StateHash(info.ID)
		for _, snap := range snaps {
			if snap.ID == info.ID && snap.StateHash != rc.StateHash {
				rc.Deterministic = false
				result.AllDeterministic = false
			}
		}
		result.Campaigns = append(result.Campaigns, rc)
	}
	return outputReplay(cmd, opts, result)
}

func outputReplay(cmd *cobra.Command, opts *ReplayOptions, result ReplayResult) error {
	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if !result.AllDeterministic {
			response.Status = "error"
			response.Error = &CLIError{Code: string(engine.ErrCodeReplayDiverged), Message: "determinism verification failed"}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd, result, opts.Verbose)
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d action(s), %d rejected\n", result.Actions, result.Rejected)
	fmt.Fprintln(w)

	for _, c := range result.Campaigns {
		status := "✓"
		if !c.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Campaign: %s (%s)\n", status, c.ID, c.Phase)
		if verbose {
			fmt.Fprintf(w, "  State: %s\n", c.StateHash)
		}
	}
	if len(result.Campaigns) > 0 {
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintf(w, "✓ Log replayed deterministically up to seq %d\n", result.Seq)
		return
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
	if result.Error != "" {
		fmt.Fprintf(w, "  %s\n", result.Error)
	}
}
