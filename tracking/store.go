/*
store.go - Persistence interface for jobs, ledgers and the audit log

PURPOSE:
  Defines the interface between the engine and the relational store.
  The Store exposes plain row reads and the four write shapes the engine
  ever produces. Atomicity comes from TxStore.WithTx.

KEY INTERFACES:
  Store:   Row-level reads and writes (jobs, inventory, usage, logs)
  TxStore: Store plus WithTx for all-or-nothing multi-row writes

APPEND-ONLY CONTRACT:
  Job logs are append-only: AppendLog is the only write, there is no
  update or delete for log rows.

ABSENT ROWS:
  GetJob returns ErrJobNotFound. Inventory, usage and product lookups
  return (nil, nil) when the row does not exist, because an absent row
  is a normal branch of reconciliation rather than a failure.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite via database/sql
  - tracking/store/memory.go: In-memory, staged writes, fault injection
*/
package tracking

import "context"

// Store handles persistence of the engine's entities.
type Store interface {
	GetJob(ctx context.Context, id JobID) (*Job, error)
	SaveJob(ctx context.Context, job Job) error

	GetProduct(ctx context.Context, id ProductID) (*Product, error)
	SaveProduct(ctx context.Context, p Product) error

	GetInventory(ctx context.Context, worker WorkerID, product ProductID) (*Inventory, error)
	SaveInventory(ctx context.Context, inv Inventory) error
	ListInventory(ctx context.Context, worker WorkerID) ([]Inventory, error)

	GetUsage(ctx context.Context, job JobID, product ProductID) (*Usage, error)
	SaveUsage(ctx context.Context, u Usage) error
	ListUsage(ctx context.Context, job JobID) ([]Usage, error)

	// AppendLog persists a log entry. This is the ONLY write for logs.
	AppendLog(ctx context.Context, entry LogEntry) error

	// Logs returns every entry for a job in creation order.
	Logs(ctx context.Context, job JobID) ([]LogEntry, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, nothing fn wrote is visible to any reader.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
