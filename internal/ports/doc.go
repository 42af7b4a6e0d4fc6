// Package ports defines the interfaces that connect the worker's application
// layer to infrastructure adapters.
//
// # Port Interfaces
//
//   - [SnapshotStore]: loads and durably commits the ledger snapshot
//   - [EventPublisher]: publishes committed ledger changes
//   - [CommandHandler]: turns one command line into one response line
//   - [Dialer]: opens the connection to the coordinator
//   - [Logger]: structured logging abstraction
//
// The application layer (internal/app, internal/ledger) depends only on these
// interfaces. Infrastructure adapters (internal/adapters) implement them with
// the file system, SQL databases, Kafka and zerolog.
package ports
