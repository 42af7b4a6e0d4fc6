// Package domain contains the core ledger entities and value objects of a worker node.
//
// This package is the innermost layer. It has no dependencies on infrastructure
// concerns (network, file system, logging) and contains only the ledger rules.
//
// # Entities
//
//   - [Account]: a balance plus the ids of the loans it has taken
//   - [Loan]: principal, pending amount and status of one loan
//   - [LogEntry]: one append-only transaction record of an account
//   - [Snapshot]: the full ledger of a worker, persisted as one durable unit
//   - [Event]: a change notification emitted after a successful commit
//
// # Invariants
//
// Snapshot methods never leave a snapshot half-mutated: every precondition is
// checked before the first write. Balances never go negative, pending loan
// amounts stay within [0, principal] and loan ids are never reused.
package domain
