// Package harness runs scripted campaign scenarios against a real engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: public_sale
//	description: "Buy in the public round, then settle"
//	campaign:            # a campaign definition, as in campaign config files
//	  owner: owner
//	  token: {id: TKN, decimals: 18}
//	  ...
//	fund_in: true        # owner funds the required tokens after setup
//	steps:
//	  - at: "+150m"
//	    action: request_tally
//	    caller: admin
//	    expect:
//	      result: {status: not_required}
//	  - at: "+210m"
//	    fund: {account: alice, amount: "1 USDC"}
//	  - action: buy_tokens
//	    caller: alice
//	    args: {amount: "1 USDC"}
//	    expect:
//	      result: {tokens: "100 TKN"}
//	  - query: reclaimable
//	    expect:
//	      value: "900 TKN"
//	assertions:
//	  - type: balance
//	    account: alice
//	    asset: TKN
//	    amount: "100 TKN"
//
// Any string of the form "<quantity> <ASSET>" in args and expectations is
// converted to base units using the decimals of the campaign's assets
// and the scenario's assets table.
//
// # Assertion Types
//
//   - trace_contains: an action appears in the log with matching args and outcome
//   - trace_order: actions appear in the given relative order
//   - trace_count: an action appears exactly N times
//   - final_state: one row of a store table holds the expected values
//   - balance: an account holds an exact ledger balance
//
// # Determinism
//
// Every run uses a fresh in-memory store, a manual clock anchored at the
// scenario start and sequential campaign and request ids, so the same
// scenario always produces a byte-identical trace.
package harness
