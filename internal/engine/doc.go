// Package engine executes launchpad commands.
//
// The engine owns the platform state (ledger, registry, randomness oracle
// and liquidity venue) and every campaign aggregate. Commands name an
// action from a fixed table; their JSON arguments are canonicalized,
// stamped with a seq from the logical clock and hashed into an action id.
//
// Single writer:
// Execute holds one mutex for the whole command. The command runs on a
// clone of its campaign; ledger movements settle as one batch; the action
// record and the campaign snapshot commit in one store transaction; only
// then does the clone replace the live campaign. Any failure reverts the
// batch and drops the clone. Rejections are still written to the action
// log with their error code as outcome.
//
// Determinism:
// Action ordering uses seq, never wall time. Campaign time comes from the
// command (or the wall clock when absent) and is recorded with the action,
// so Replay re-executes the log at the recorded instants and checks that
// each action reproduces its recorded state hash.
//
// Randomness:
// request_tally hands a seed to the oracle. The oracle's fulfilment comes
// back through Execute as fulfill_randomness, which stores the value and
// commits the tally in the same action.
package engine
