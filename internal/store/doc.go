// Package store provides SQLite-backed durable storage for the launchpad
// action log and campaign snapshots.
//
// Every command the engine executes is recorded as an action, accepted or
// rejected. Accepted actions carry the ledger movements they settled and
// the hash of the campaign state they produced; the state itself is kept
// as the campaign's latest snapshot. Both are written in one transaction.
//
// # Ordering
//
// All queries order by seq, the engine's logical clock, and break ties by
// id COLLATE BINARY. Wall time is recorded for replay but never used to
// order records.
//
// # Idempotency
//
// Action ids are content-addressed (canon.ActionID), and inserts use
// ON CONFLICT DO NOTHING, so a retried write of the same action is a no-op.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability and performance
//   - busy_timeout=5000: wait on lock contention
//   - foreign_keys=ON
//   - single connection: SQLite has one writer
package store
