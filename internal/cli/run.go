package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/launchpad/internal/config"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Anchor string

	// Now overrides the wall clock used for the default anchor (for testing).
	Now func() time.Time
}

// RunCampaign reports the setup of one campaign.
type RunCampaign struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Actions  int    `json:"actions"`
	Existing bool   `json:"existing,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <campaign-file>",
		Short: "Create and configure the campaigns in a file",
		Long: `Create the campaigns declared in a .cue, .yaml or .json file.

Each campaign is created, initialized, configured and finalized by the
platform admin at --anchor, which defaults to now. Offsets such as "+1h"
in the schedule are taken from the anchor too. Campaigns whose id
already exists in the database are left untouched, so the same file can
be run again.

Example:
  launchpad run --db ./launchpad.db campaigns.yaml
  launchpad run campaigns.cue --anchor 2026-03-01T00:00:00Z`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCampaigns(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Anchor, "anchor", "", "time schedule offsets are taken from (RFC 3339, default now)")

	return cmd
}

func runCampaigns(opts *RunOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	out := formatter(cmd, opts.RootOptions)

	anchor, err := parseAt(opts.Anchor)
	if err != nil {
		return err
	}
	if anchor.IsZero() {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		anchor = now().UTC()
	}

	file, err := config.LoadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid campaign file", err)
	}

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()
	admin := s.engine.Platform().Admin

	results := make([]RunCampaign, 0, len(file.Campaigns))
	for i, spec := range file.Campaigns {
		setup, err := spec.Build(anchor)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("campaigns[%d]", i), err)
		}
		if setup.ID == "" {
			setup.ID = uuid.Must(uuid.NewV7()).String()
		}
		if _, err := s.engine.Campaign(setup.ID); err == nil {
			slog.Info("campaign exists, skipping", "id", setup.ID)
			results = append(results, RunCampaign{ID: setup.ID, Owner: setup.Owner, Existing: true})
			continue
		}

		cmds, err := setup.Commands(admin)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("campaigns[%d]", i), err)
		}
		for _, c := range cmds {
			c.At = anchor
			if _, err := s.engine.Execute(ctx, c); err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("campaign %s: %s", setup.ID, c.Action), err)
			}
			out.VerboseLog("  %s %s", setup.ID, c.Action)
		}
		slog.Info("campaign created", "id", setup.ID, "owner", setup.Owner, "actions", len(cmds))
		results = append(results, RunCampaign{ID: setup.ID, Owner: setup.Owner, Actions: len(cmds)})
	}

	if opts.Format == "json" {
		return out.Success(results)
	}
	w := cmd.OutOrStdout()
	for _, r := range results {
		if r.Existing {
			fmt.Fprintf(w, "- %s already exists\n", r.ID)
			continue
		}
		fmt.Fprintf(w, "✓ %s created for %s (%d actions)\n", r.ID, r.Owner, r.Actions)
	}
	return nil
}
