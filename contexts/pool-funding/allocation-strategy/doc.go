// Package allocationstrategy implements the grant pool allocation strategy.
//
// The module owns the recipient registry (dense-index assignment and the
// 4-bit packed status ledger), allocation validation, and one-time payout
// distribution with the registration-closing phase latch. It exposes HTTP
// command/query handlers and the outbox relay worker entrypoint.
package allocationstrategy
