/*
Package tracking provides the job time-tracking and inventory reconciliation engine.

PURPOSE:
  A worker clocks in to a scheduled cleaning job, works, then clocks out while
  reporting how much of each consumable product they still carry. The engine
  infers what was used, writes it to the per-job usage ledger and the worker's
  inventory ledger, appends audit entries and flips the job's state. All of it
  commits as one unit.

KEY CONCEPTS IN THIS FILE (types.go):
  - Job:       The aggregate root for time-tracking (status + clock timestamps)
  - Inventory: What one worker currently carries of one product
  - Usage:     Cumulative consumption of one product on one job
  - LogEntry:  Append-only audit record for a job
  - Product:   Name and unit used to render log descriptions

DESIGN PRINCIPLES:
  1. Precision: quantities are decimal.Decimal, never float64
  2. Type Safety: distinct ID types for jobs, workers and products
  3. Optional fields are pointers (ClockInAt, ClockOutAt), never sentinel times

SEE ALSO:
  - lifecycle.go: Clock-in / clock-out state machine
  - reconcile.go: Usage inference
  - coordinator.go: Atomic application of mutations
*/
package tracking

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type JobID string
type WorkerID string
type ProductID string
type LogID string

// =============================================================================
// JOB - One scheduled cleaning engagement
// =============================================================================

type JobStatus string

const (
	StatusCreated    JobStatus = "CREATED"
	StatusScheduled  JobStatus = "SCHEDULED"
	StatusInProgress JobStatus = "IN_PROGRESS"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusCancelled  JobStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition may leave this status.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s JobStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Job is the aggregate root for time-tracking.
//
// INVARIANTS:
//   - ClockOutAt is set only if ClockInAt is set.
//   - ClockInAt never changes once set.
type Job struct {
	ID               JobID
	PrimaryWorker    WorkerID
	SecondaryWorkers []WorkerID

	ScheduledStart time.Time
	ScheduledEnd   *time.Time

	Status     JobStatus
	ClockInAt  *time.Time
	ClockOutAt *time.Time

	// Monetary fields are carried for display only.
	Price decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAssigned reports whether the worker is the primary or a secondary worker.
func (j *Job) IsAssigned(worker WorkerID) bool {
	if worker == "" {
		return false
	}
	if j.PrimaryWorker == worker {
		return true
	}
	for _, w := range j.SecondaryWorkers {
		if w == worker {
			return true
		}
	}
	return false
}

func (j *Job) IsClockedIn() bool  { return j.ClockInAt != nil }
func (j *Job) IsClockedOut() bool { return j.ClockOutAt != nil }

// Clone returns a deep copy so staged mutations never alias stored rows.
func (j Job) Clone() Job {
	c := j
	if j.SecondaryWorkers != nil {
		c.SecondaryWorkers = append([]WorkerID(nil), j.SecondaryWorkers...)
	}
	c.ScheduledEnd = cloneTime(j.ScheduledEnd)
	c.ClockInAt = cloneTime(j.ClockInAt)
	c.ClockOutAt = cloneTime(j.ClockOutAt)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// =============================================================================
// PRODUCT & INVENTORY
// =============================================================================

type Product struct {
	ID   ProductID
	Name string
	Unit string // e.g. "bottles", "ml", "rolls"
}

// Inventory is the quantity of one product currently held by one worker.
// Quantity is never negative and is only decremented through reconciliation.
type Inventory struct {
	WorkerID  WorkerID
	ProductID ProductID
	Quantity  decimal.Decimal
	UpdatedAt time.Time
}

// Usage is the cumulative consumption of one product on one job, plus the
// worker's on-hand snapshot at the last reconciliation.
type Usage struct {
	ID              string
	JobID           JobID
	ProductID       ProductID
	Quantity        decimal.Decimal
	InventoryBefore decimal.Decimal
	InventoryAfter  decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// =============================================================================
// AUDIT LOG ENTRY
// =============================================================================

type LogAction string

const (
	ActionClockedIn     LogAction = "CLOCKED_IN"
	ActionClockedOut    LogAction = "CLOCKED_OUT"
	ActionStatusChanged LogAction = "STATUS_CHANGED"
	ActionProductUsed   LogAction = "PRODUCT_USED"
)

// LogEntry is immutable once written. Seq is assigned by the store and breaks
// ties between entries written with the same timestamp.
type LogEntry struct {
	ID          LogID
	Seq         int64
	JobID       JobID
	ActorID     WorkerID
	Action      LogAction
	Description string
	OldValue    *string
	NewValue    *string
	CreatedAt   time.Time
}

// =============================================================================
// CLOCK-OUT INPUT & RESULTS
// =============================================================================

// InventoryReport is what the worker says they still hold after the job.
// OnHandAfter is kept as the raw submitted text so malformed values can be
// rejected per product instead of failing the whole request.
type InventoryReport struct {
	ProductID   ProductID
	OnHandAfter string
}

type OutcomeStatus string

const (
	OutcomeRecorded             OutcomeStatus = "recorded"
	OutcomeSkippedNoInventory   OutcomeStatus = "skipped_no_inventory"
	OutcomeSkippedNoConsumption OutcomeStatus = "skipped_no_consumption"
	OutcomeInvalidQuantity      OutcomeStatus = "invalid_quantity"
)

// ProductOutcome records what happened to one reported inventory entry.
type ProductOutcome struct {
	ProductID ProductID
	Status    OutcomeStatus
	Before    decimal.Decimal
	After     decimal.Decimal
	Used      decimal.Decimal
}

type ClockInResult struct {
	Job Job
}

type ClockOutResult struct {
	Job      Job
	Outcomes []ProductOutcome
}

// Recorded returns only the outcomes that produced ledger writes.
func (r *ClockOutResult) Recorded() []ProductOutcome {
	var out []ProductOutcome
	for _, o := range r.Outcomes {
		if o.Status == OutcomeRecorded {
			out = append(out, o)
		}
	}
	return out
}
