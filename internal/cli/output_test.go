package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/campaign"
	"github.com/roach88/launchpad/internal/engine"
)

func TestOutputFormatter_Success(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, (&OutputFormatter{Format: "text", Writer: buf}).Success("All campaigns valid"))
	assert.Equal(t, "All campaigns valid\n", buf.String())

	buf.Reset()
	require.NoError(t, (&OutputFormatter{Format: "json", Writer: buf}).Success(map[string]int{"campaigns": 2}))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"campaigns": float64(2)}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_Error(t *testing.T) {
	details := map[string]string{"field": "campaigns[0].soft_cap"}

	tests := []struct {
		name     string
		format   string
		verbose  bool
		details  any
		contains []string
		excludes []string
	}{
		{"text", "text", false, details, []string{"Error [E202]: invalid amount"}, []string{"Details:"}},
		{"text verbose", "text", true, details, []string{"Error [E202]", "Details: map[field:campaigns[0].soft_cap]"}, nil},
		{"text verbose without details", "text", true, nil, []string{"Error [E202]"}, []string{"Details:"}},
		{"json", "json", false, details, []string{`"status":"error"`, `"code":"E202"`, `"field":"campaigns[0].soft_cap"`}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: tt.format, Writer: buf, Verbose: tt.verbose}
			require.NoError(t, f.Error("E202", "invalid amount", tt.details))
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, buf.String(), unwanted)
			}
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}

	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag}
	f.VerboseLog("opening %s", "launchpad.db")
	assert.Empty(t, diag.String())

	f.Verbose = true
	f.VerboseLog("opening %s", "launchpad.db")
	assert.Equal(t, "opening launchpad.db\n", diag.String())
	assert.Empty(t, out.String(), "diagnostics stay off stdout")

	assert.Equal(t, out, (&OutputFormatter{Writer: out}).GetErrWriter())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := WrapExitError(ExitFailure, "replay failed", errors.New("diverged"))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "replay failed: diverged", wrapped.Error())
}

func testOutcome() engine.Outcome {
	return engine.Outcome{
		ActionID: "a-1",
		Seq:      7,
		Campaign: "sale",
		Action:   "claim_tokens",
		At:       time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC),
		Result:   map[string]any{"claimed": "5"},
		Movements: []campaign.Movement{
			{Kind: campaign.MoveTransfer, Asset: "TKN", From: "sale", To: "alice", Amount: amount.New(5)},
		},
		StateHash: "abc",
	}
}

func TestOutputFormatter_OutcomeText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Outcome("claim_tokens", testOutcome(), nil))
	assert.Contains(t, buf.String(), "✓ claim_tokens on sale (seq 7)")
	assert.Contains(t, buf.String(), `result: {"claimed":"5"}`)
	assert.Contains(t, buf.String(), "5 TKN: sale -> alice")
	assert.NotContains(t, buf.String(), "state: abc")

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Outcome("claim_tokens", testOutcome(), nil))
	assert.Contains(t, buf.String(), "state: abc")
}

func TestOutputFormatter_OutcomeRejected(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}
	rejection := &campaign.Error{Code: campaign.CodeNotReady, Op: "claim_tokens", Message: "not settled"}

	err := formatter.Outcome("claim_tokens", engine.Outcome{ActionID: "a-2", Seq: 8}, rejection)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, &campaign.Error{Code: campaign.CodeNotReady})
	assert.Contains(t, buf.String(), "✗ claim_tokens rejected [NOT_READY]")
	assert.Contains(t, buf.String(), "seq 8, action a-2")
}

func TestOutputFormatter_OutcomeJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Outcome("claim_tokens", testOutcome(), nil))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "a-1", resp.TraceID)

	buf.Reset()
	unknown := &engine.RuntimeError{Code: engine.ErrCodeUnknownAction, Message: "no handler", Action: "nope"}
	err := formatter.Outcome("nope", engine.Outcome{}, unknown)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNKNOWN_ACTION", resp.Error.Code)
}
