// Package campaign implements the token-sale campaign aggregate.
//
// A Campaign moves through setup, subscription, tally, a whitelisted and a
// public buying window, and settlement. Its phase is derived from the
// schedule on every call (see package phase); only explicit lifecycle flags
// and accounting are stored.
//
// Every mutating operation follows the same shape:
//
//  1. reject if the campaign is cancelled (except refunds and reclaims)
//  2. validate phase, role, arguments and amounts
//  3. settle all ledger movements as one atomic batch
//  4. mutate accounting
//
// Nothing mutates before step 3 succeeds, so a rejected operation leaves
// no trace. Operations receive their collaborators through Env; the
// aggregate itself is plain data that serializes to JSON for persistence.
//
// Capital accounting is kept in the capital asset's base units. Token
// entitlements derive from capital through TokensForCapital, which floors
// per holder so the sum of entitlements never exceeds the sale supply.
package campaign
