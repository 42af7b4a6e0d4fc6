// Package worker provides an embeddable ledger worker for a sharded banking
// ledger.
//
// A worker owns one partition of accounts and loans. It connects to the
// coordinator, announces itself with its worker id and then answers every
// command the coordinator sends, one response line per command, in order.
// Every accepted mutation is durable before its response is written.
//
// # Basic Usage
//
//	cfg := worker.Config{
//	    WorkerID:        "w1",
//	    CoordinatorAddr: "localhost:9000",
//	    StateDir:        "/var/lib/ledger",
//	}
//
//	w, err := worker.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Storage
//
// The ledger snapshot is kept in a JSON file by default ([StorageFile]).
// [StorageSQLite] keeps it in a SQLite database in StateDir and
// [StoragePostgres] in the database named by DatabaseDSN.
//
// # Events
//
// Implement [EventHandler] and pass it via [WithEventHandler] to observe
// lifecycle and connection changes. Set KafkaBrokers, or pass a publisher via
// [WithEventPublisher], to publish every committed ledger change.
//
// # Lifecycle States
//
// A Worker can be in one of five states: [StateStopped], [StateStarting],
// [StateRunning], [StateStopping], or [StateCrashed]. Use [Worker.Status] to
// query the current state.
package worker
