package cli

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/launchpad/internal/engine"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Account  string
	Amount   string
	Priority uint8
	At       string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <campaign> <name>",
		Short: "Read campaign state",
		Long: `Run a read-only query against a campaign. Nothing is recorded.

Amounts may be given in base units ("1000000") or with an asset the
campaign uses ("1 USDC").

Queries:
  ` + fmt.Sprint(engine.Queries()) + `

Example:
  launchpad query sale phase
  launchpad query sale claimable_tokens --account alice
  launchpad query sale tokens_for_capital --amount "1 USDC"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Account, "account", "", "account the query is about")
	cmd.Flags().StringVar(&opts.Amount, "amount", "", "amount the query prices")
	cmd.Flags().Uint8Var(&opts.Priority, "priority", 0, "oversubscription priority for burn_quantity")
	cmd.Flags().StringVar(&opts.At, "at", "", "query time (RFC 3339, default now)")

	return cmd
}

func runQuery(opts *QueryOptions, id, name string, cmd *cobra.Command) error {
	if !slices.Contains(engine.Queries(), name) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown query %q", name))
	}
	at, err := parseAt(opts.At)
	if err != nil {
		return err
	}

	s, err := openSession(commandContext(cmd), opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	args := engine.QueryArgs{Account: opts.Account, Priority: opts.Priority}
	if opts.Amount != "" {
		if args.Amount, err = campaignAmount(s.engine, id, opts.Amount); err != nil {
			return WrapExitError(ExitCommandError, "invalid --amount", err)
		}
	}

	out := formatter(cmd, opts.RootOptions)
	v, err := s.engine.QueryJSON(id, name, at, args)
	if err != nil {
		if err := out.Error(engine.Code(err), err.Error(), nil); err != nil {
			return err
		}
		return WrapExitError(ExitFailure, "query "+name+" failed", err)
	}

	if opts.Format == "json" {
		return out.Success(v)
	}
	if str, ok := v.(string); ok {
		fmt.Fprintln(cmd.OutOrStdout(), str)
		return nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
