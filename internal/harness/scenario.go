package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/launchpad/internal/engine"
)

// Scenario drives one or more campaigns through a scripted sequence of
// actions, queries and oracle deliveries, checking the outcome of each
// step and the final log.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the RFC 3339 instant "+offset" times are taken from.
	// Defaults to 2026-01-01T00:00:00Z.
	Start string `yaml:"start,omitempty"`

	// Platform overrides the default admin, fee vault, currencies and
	// providers.
	Platform *engine.Platform `yaml:"platform,omitempty"`

	// Assets maps asset ids to decimals so amounts can be written as
	// "1.5 USDC". The campaign's token, capital and burn assets are added
	// automatically.
	Assets map[string]uint8 `yaml:"assets,omitempty"`

	// Campaign is a campaign definition in the config schema. When set it
	// is created, configured, approved and finalized at Start.
	Campaign map[string]any `yaml:"campaign,omitempty"`

	// FundIn has the owner fund the campaign's required tokens right after
	// setup.
	FundIn bool `yaml:"fund_in,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final log and balances.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is exactly one of an action, a query, a funding shortcut or an
// oracle delivery.
type Step struct {
	// At moves the clock: "+90m" from Start or an RFC 3339 instant.
	// Empty keeps the current time.
	At string `yaml:"at,omitempty"`

	// Action runs a command. Campaign defaults to the scenario campaign
	// for campaign actions.
	Action   string         `yaml:"action,omitempty"`
	Campaign string         `yaml:"campaign,omitempty"`
	Caller   string         `yaml:"caller,omitempty"`
	Args     map[string]any `yaml:"args,omitempty"`

	// Query runs a named read with the given account, amount and
	// priority.
	Query    string `yaml:"query,omitempty"`
	Account  string `yaml:"account,omitempty"`
	Amount   string `yaml:"amount,omitempty"`
	Priority uint8  `yaml:"priority,omitempty"`

	// Fund mints an amount to an account and raises its allowance for
	// the campaign by the same amount.
	Fund *FundStep `yaml:"fund,omitempty"`

	// Fulfill delivers every pending randomness request, deriving values
	// from this salt.
	Fulfill string `yaml:"fulfill,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// FundStep mints Amount ("1 USDC") to Account.
type FundStep struct {
	Account string `yaml:"account"`
	Amount  string `yaml:"amount"`
}

// Expect checks one step. With no Error the step must succeed.
type Expect struct {
	// Error is the rejection code the step must produce.
	Error string `yaml:"error,omitempty"`

	// Result is a subset of the action's result.
	Result map[string]any `yaml:"result,omitempty"`

	// Value is the query result: a subset when it is a map, exact
	// otherwise.
	Value any `yaml:"value,omitempty"`
}

// Assertion validates the final log, the store or a balance.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count,
	// final_state or balance.
	Type string `yaml:"type"`

	// Action, Args and Outcome select log entries (trace_contains,
	// trace_count). Args is a subset match.
	Action  string         `yaml:"action,omitempty"`
	Args    map[string]any `yaml:"args,omitempty"`
	Outcome string         `yaml:"outcome,omitempty"`

	// Count is the expected number of matches for trace_count.
	Count int `yaml:"count,omitempty"`

	// Actions is the expected relative order for trace_order.
	Actions []string `yaml:"actions,omitempty"`

	// Table, Where and Expect query the store for final_state.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	// Account, Asset and Amount check a ledger balance.
	Account string `yaml:"account,omitempty"`
	Asset   string `yaml:"asset,omitempty"`
	Amount  string `yaml:"amount,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertBalance       = "balance"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.FundIn && s.Campaign == nil {
		return fmt.Errorf("fund_in requires a campaign")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(i int, step *Step) error {
	kinds := 0
	if step.Action != "" {
		kinds++
		if step.Caller == "" {
			return fmt.Errorf("steps[%d]: caller is required for action %s", i, step.Action)
		}
	}
	if step.Query != "" {
		kinds++
	}
	if step.Fund != nil {
		kinds++
		if step.Fund.Account == "" || step.Fund.Amount == "" {
			return fmt.Errorf("steps[%d]: fund needs account and amount", i)
		}
	}
	if step.Fulfill != "" {
		kinds++
	}
	switch kinds {
	case 0:
		if step.At == "" {
			return fmt.Errorf("steps[%d]: empty step", i)
		}
	case 1:
	default:
		return fmt.Errorf("steps[%d]: set exactly one of action, query, fund or fulfill", i)
	}
	if step.Expect != nil && step.Expect.Value != nil && step.Query == "" {
		return fmt.Errorf("steps[%d]: expect.value only applies to queries", i)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertBalance:
		if a.Account == "" || a.Asset == "" || a.Amount == "" {
			return fmt.Errorf("assertions[%d]: account, asset and amount are required for balance", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
