package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// FulfillOptions holds flags for the fulfill command.
type FulfillOptions struct {
	*RootOptions
	Salt string
}

// PendingRequest is one randomness request the oracle answered.
type PendingRequest struct {
	ID       string `json:"id"`
	Campaign string `json:"campaign"`
}

// NewFulfillCommand creates the fulfill command.
func NewFulfillCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FulfillOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fulfill",
		Short: "Answer pending randomness requests",
		Long: `Deliver randomness to every lottery tally still waiting for it.

Each value is derived from the request seed and --salt, so the same salt
always produces the same draw. Deliveries are recorded as
fulfill_randomness actions by the oracle.

Example:
  launchpad fulfill --salt "block 19000000"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFulfill(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Salt, "salt", "", "salt mixed into every derived value (required)")
	_ = cmd.MarkFlagRequired("salt")

	return cmd
}

func runFulfill(opts *FulfillOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	oracle := s.engine.Oracle()
	pending := oracle.Pending()
	done := make([]PendingRequest, 0, len(pending))
	for _, req := range pending {
		done = append(done, PendingRequest{ID: req.ID, Campaign: req.CampaignID})
	}
	if err := oracle.FulfillAll(ctx, opts.Salt); err != nil {
		return WrapExitError(ExitFailure, "fulfillment failed", err)
	}

	if opts.Format == "json" {
		return formatter(cmd, opts.RootOptions).Success(done)
	}
	w := cmd.OutOrStdout()
	if len(done) == 0 {
		fmt.Fprintln(w, "No pending requests.")
		return nil
	}
	for _, r := range done {
		fmt.Fprintf(w, "✓ %s fulfilled for %s\n", r.ID, r.Campaign)
	}
	return nil
}
