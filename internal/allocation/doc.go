// Package allocation implements the subscription tally.
//
// The tally distributes a campaign's hard cap among subscribers in three
// passes:
//
//  1. Guaranteed: holders whose snapshot share of the hard cap reaches the
//     guaranteed floor receive what they subscribed, up to that share.
//  2. Lottery: holders below the floor enter a stake-weighted draw without
//     replacement for a fixed budget. Winners receive their full request.
//  3. Oversubscription: whatever remains is shared pro-rata by
//     priority-weighted oversubscription stake, never exceeding a request.
//
// Every function here is pure. Given the same entries, parameters and seed
// the result is bit-for-bit identical, which is what lets a tally be
// previewed before it is committed.
package allocation
