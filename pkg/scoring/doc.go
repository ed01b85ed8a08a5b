/*
Package scoring projects the success ledgers into scores.

A team's score is the sum over its checks and flag checks of ledger
cardinality times point value. The projection is read-only over the
store except for the persisted leaderboard order used to detect rank
changes.
*/
package scoring
