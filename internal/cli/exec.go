package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/launchpad/internal/engine"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Campaign string
	Caller   string
	Args     string
	At       string
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <action>",
		Short: "Execute one action against the database",
		Long: `Execute one action and append it to the action log.

The engine is rebuilt from the log first, so the action sees every
earlier one. Campaign actions need --campaign; platform actions (mint,
transfer, approve, record_snapshot, ...) must not have one.

A rejected action is still recorded and exits with code 1.

Example:
  launchpad exec mint --caller admin --args '{"asset":"USDC","to":"alice","amount":"1000000"}'
  launchpad exec buy_tokens --campaign sale --caller alice --args '{"amount":"1000000"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execAction(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Campaign, "campaign", "c", "", "campaign id")
	cmd.Flags().StringVar(&opts.Caller, "caller", "", "calling account (required)")
	cmd.Flags().StringVar(&opts.Args, "args", "", "action arguments as a JSON object")
	cmd.Flags().StringVar(&opts.At, "at", "", "execution time (RFC 3339, default now)")
	_ = cmd.MarkFlagRequired("caller")

	return cmd
}

func execAction(opts *ExecOptions, action string, cmd *cobra.Command) error {
	if !slices.Contains(engine.Actions(), action) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown action %q", action))
	}
	if engine.CampaignScoped(action) && opts.Campaign == "" {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s needs --campaign", action))
	}
	args, err := parseArgs(opts.Args)
	if err != nil {
		return err
	}
	at, err := parseAt(opts.At)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := s.engine.Execute(ctx, engine.Command{
		Campaign: opts.Campaign,
		Action:   action,
		Caller:   opts.Caller,
		Args:     args,
		At:       at,
	})
	return formatter(cmd, opts.RootOptions).Outcome(action, out, err)
}
