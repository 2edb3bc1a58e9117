/*
coordinator.go - Atomic application of a clock-in / clock-out mutation set

PURPOSE:
  A clock-out touches the job, N usage rows, N inventory rows and N+2 log
  entries. The Coordinator makes that one unit: mutations are built first as
  a list of intents, then applied in order inside a single store transaction.

ORDERING:
  Mutations apply in the order supplied. The lifecycle controller always puts
  UpdateJob last so that a reader who sees the job COMPLETED also sees every
  ledger row that belongs to it.

LOCKING:
  Execute takes per-key locks before opening the transaction and holds them
  until commit or rollback:
  - job:<id>                     serializes clock-in/out of the same job
  - inventory:<worker>:<product> serializes the same worker reconciling the
                                 same product from two jobs at once
  Distinct keys never contend.

FAILURE:
  Any storage error, lock timeout or commit failure is returned as a
  *TransactionError (errors.Is(err, ErrTransactionFailed)). Errors returned by
  the plan that already carry a domain kind pass through unchanged.
*/
package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// =============================================================================
// MUTATIONS - Write intents applied by the coordinator
// =============================================================================

type MutationKind string

const (
	MutationUpdateJob       MutationKind = "update_job"
	MutationUpsertUsage     MutationKind = "upsert_usage"
	MutationUpdateInventory MutationKind = "update_inventory"
	MutationAppendLog       MutationKind = "append_log"
)

// Mutation is one write intent.
type Mutation interface {
	Kind() MutationKind
	Apply(ctx context.Context, store Store) error
}

type UpdateJob struct{ Job Job }

func (m UpdateJob) Kind() MutationKind { return MutationUpdateJob }
func (m UpdateJob) Apply(ctx context.Context, s Store) error {
	return s.SaveJob(ctx, m.Job)
}

// UpsertUsage carries the full resulting row; accumulation is computed while planning.
type UpsertUsage struct{ Usage Usage }

func (m UpsertUsage) Kind() MutationKind { return MutationUpsertUsage }
func (m UpsertUsage) Apply(ctx context.Context, s Store) error {
	return s.SaveUsage(ctx, m.Usage)
}

type UpdateInventory struct{ Inventory Inventory }

func (m UpdateInventory) Kind() MutationKind { return MutationUpdateInventory }
func (m UpdateInventory) Apply(ctx context.Context, s Store) error {
	if m.Inventory.Quantity.IsNegative() {
		return fmt.Errorf("inventory %s/%s: %w", m.Inventory.WorkerID, m.Inventory.ProductID, ErrInvalidQuantity)
	}
	return s.SaveInventory(ctx, m.Inventory)
}

type AppendLog struct{ Entry LogEntry }

func (m AppendLog) Kind() MutationKind { return MutationAppendLog }
func (m AppendLog) Apply(ctx context.Context, s Store) error {
	return s.AppendLog(ctx, m.Entry)
}

// =============================================================================
// COORDINATOR
// =============================================================================

// PlanFunc reads a consistent snapshot through store and returns the
// mutations to apply. It must not write.
type PlanFunc func(ctx context.Context, store Store) ([]Mutation, error)

type Coordinator struct {
	Store       TxStore
	Locks       *KeyedLocks
	LockTimeout time.Duration
}

func NewCoordinator(store TxStore, lockTimeout time.Duration) *Coordinator {
	return &Coordinator{
		Store:       store,
		Locks:       NewKeyedLocks(),
		LockTimeout: lockTimeout,
	}
}

// RunAtomic applies mutations in order as one transaction.
func (c *Coordinator) RunAtomic(ctx context.Context, mutations []Mutation) error {
	err := c.Store.WithTx(ctx, func(tx Store) error {
		return applyAll(ctx, tx, mutations)
	})
	if err != nil {
		return asTransactionError("", err)
	}
	return nil
}

// Execute locks keys, plans against a transactional view, applies the plan
// and commits. Locks are released after the transaction ends.
func (c *Coordinator) Execute(ctx context.Context, job JobID, keys []LockKey, plan PlanFunc) error {
	lockCtx := ctx
	if c.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, c.LockTimeout)
		defer cancel()
	}

	release, err := c.Locks.Acquire(lockCtx, keys...)
	if err != nil {
		log.Warn().Err(err).Str("job_id", string(job)).Msg("coordinator: lock acquisition failed")
		return &TransactionError{JobID: job, Err: fmt.Errorf("%w: %v", ErrLockTimeout, err)}
	}
	defer release()

	err = c.Store.WithTx(ctx, func(tx Store) error {
		mutations, err := plan(ctx, tx)
		if err != nil {
			return err
		}
		return applyAll(ctx, tx, mutations)
	})
	if err != nil {
		if isDomainError(err) {
			return err
		}
		log.Warn().Err(err).Str("job_id", string(job)).Msg("coordinator: transaction rolled back")
		return asTransactionError(job, err)
	}
	return nil
}

func applyAll(ctx context.Context, tx Store, mutations []Mutation) error {
	for i, m := range mutations {
		if err := m.Apply(ctx, tx); err != nil {
			return &mutationError{index: i, kind: m.Kind(), err: err}
		}
	}
	return nil
}

type mutationError struct {
	index int
	kind  MutationKind
	err   error
}

func (e *mutationError) Error() string {
	return fmt.Sprintf("mutation %d (%s): %v", e.index, e.kind, e.err)
}

func (e *mutationError) Unwrap() error { return e.err }

// isDomainError reports whether err came from a precondition check rather
// than storage. Failures while applying mutations are always storage failures.
func isDomainError(err error) bool {
	var me *mutationError
	if errors.As(err, &me) {
		return false
	}
	var te *TransactionError
	if errors.As(err, &te) {
		return false
	}
	return KindOf(err) != KindTransactionFailed
}

func asTransactionError(job JobID, err error) error {
	var te *TransactionError
	if errors.As(err, &te) {
		return err
	}
	return &TransactionError{JobID: job, Err: err}
}
