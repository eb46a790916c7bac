package harness

import (
	"bytes"
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/launchpad/internal/canon"
)

// GoldenDir is where RunWithGolden keeps its fixtures.
const GoldenDir = "testdata/golden"

// MarshalTrace renders a trace as canonical JSON, one event per line, so
// golden diffs point at the event that changed.
func MarshalTrace(trace []TraceEvent) ([]byte, error) {
	var buf bytes.Buffer
	for _, event := range trace {
		line, err := canon.Canonicalize(event)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario, fails t on any step or assertion
// error, and compares the trace against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) *Result {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		t.Fatalf("run %s: %v", scenario.Name, err)
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}
	AssertGolden(t, scenario.Name, result, opts...)
	return result
}

// AssertGolden compares a result's trace against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result, opts ...goldie.Option) {
	t.Helper()

	data, err := MarshalTrace(result.Trace)
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, name, data)
}
