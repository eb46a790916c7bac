package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/launchpad/internal/engine"
)

const testAnchor = "2026-01-01T00:00:00Z"

const campaignYAML = `campaigns:
  - id: sale
    owner: owner
    token: {id: TKN, decimals: 18}
    capital: {id: USDC, decimals: 6}
    burn: {id: BRN, decimals: 18}
    schedule: {sub_start: "+1h", sub_end: "+2h", ido_start: "+3h", ido_end: "+5h"}
    soft_cap: "1"
    hard_cap: "10"
    sale_supply: "1000"
    snapshot_id: snap
    guaranteed_floor: "0.1"
    std_over_sub_qty: "1.5"
    std_burn_qty: "180"
    vesting:
      buyer: {kind: interval, slots: [{pct: "100"}]}
`

// Base-unit amounts used across the command tests.
const (
	oneUSDC        = "1000000"
	oneHundredTKN  = "100000000000000000000"
	oneThousandTKN = "1000000000000000000000"
)

func testOptions(t *testing.T) *RootOptions {
	t.Helper()
	return &RootOptions{
		Format:   "text",
		Database: filepath.Join(t.TempDir(), "test.db"),
		Platform: engine.Platform{
			Admin:      "admin",
			FeeVault:   "vault",
			Currencies: []string{"USDC"},
			Providers:  []string{"uni"},
		},
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns everything it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// setupCampaign runs the campaign file into opts.Database.
func setupCampaign(t *testing.T, opts *RootOptions) {
	t.Helper()
	path := writeFile(t, "campaigns.yaml", campaignYAML)
	_, err := execute(NewRunCommand(opts), path, "--anchor", testAnchor)
	require.NoError(t, err)
}

// execOK runs one exec invocation that must be accepted.
func execOK(t *testing.T, opts *RootOptions, args ...string) string {
	t.Helper()
	out, err := execute(NewExecCommand(opts), args...)
	require.NoError(t, err, out)
	return out
}

// fundedCampaign sets up the campaign and has the owner fund it.
func fundedCampaign(t *testing.T, opts *RootOptions) {
	t.Helper()
	setupCampaign(t, opts)

	execOK(t, opts, "mint", "--caller", "admin", "--at", testAnchor,
		"--args", `{"asset":"TKN","to":"owner","amount":"`+oneThousandTKN+`"}`)
	execOK(t, opts, "approve", "--caller", "owner", "--at", testAnchor,
		"--args", `{"asset":"TKN","campaign":"sale","amount":"`+oneThousandTKN+`"}`)
	execOK(t, opts, "fund_in", "--campaign", "sale", "--caller", "owner", "--at", testAnchor,
		"--args", `{"amount":"`+oneThousandTKN+`"}`)
}

// fundedSale funds the campaign and buys 1 USDC worth of tokens for alice
// in the public round.
func fundedSale(t *testing.T, opts *RootOptions) {
	t.Helper()
	fundedCampaign(t, opts)

	execOK(t, opts, "request_tally", "--campaign", "sale", "--caller", "anyone", "--at", "2026-01-01T02:30:00Z")
	const ido = "2026-01-01T03:30:00Z"
	execOK(t, opts, "mint", "--caller", "admin", "--at", ido,
		"--args", `{"asset":"USDC","to":"alice","amount":"`+oneUSDC+`"}`)
	execOK(t, opts, "approve", "--caller", "alice", "--at", ido,
		"--args", `{"asset":"USDC","campaign":"sale","amount":"`+oneUSDC+`"}`)
	execOK(t, opts, "buy_tokens", "--campaign", "sale", "--caller", "alice", "--at", ido,
		"--args", `{"amount":"`+oneUSDC+`"}`)
}
