/*
lifecycle.go - Clock-in / clock-out state machine

PURPOSE:
  Validates preconditions and produces the mutation set for the two
  worker-initiated transitions:

    CREATED/SCHEDULED --ClockIn--> IN_PROGRESS --ClockOut--> COMPLETED

  CANCELLED is terminal and is entered elsewhere.

CLOCK-IN CHECKS (first failure wins):
  1. job exists                       NotFound
  2. worker assigned                  Forbidden
  3. clock-in unset                   AlreadyClockedIn
  4. status not terminal              JobClosed
  5. now >= start - ClockInWindow     TooEarly (with minutes remaining)

CLOCK-OUT CHECKS:
  1-2 as above, then clock-in set (NotClockedIn), clock-out unset
  (AlreadyClockedOut), status not CANCELLED (JobClosed).

CLOCK-OUT RECONCILIATION (per reported product, in order):
  no inventory row        -> skipped_no_inventory
  malformed / negative    -> invalid_quantity (other products still proceed)
  used <= 0               -> skipped_no_consumption
  used > 0                -> usage upsert, inventory = after, PRODUCT_USED log

MUTATION ORDER:
  clock-in:  CLOCKED_IN, STATUS_CHANGED, UpdateJob
  clock-out: [usage, inventory, PRODUCT_USED] per product,
             CLOCKED_OUT, STATUS_CHANGED, UpdateJob
*/
package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DefaultClockInWindow is how long before the scheduled start clock-in opens.
const DefaultClockInWindow = 15 * time.Minute

type Controller struct {
	Coordinator   *Coordinator
	Audit         *AuditLogger
	Clock         Clock
	ClockInWindow time.Duration
}

// NewController wires a controller around store with the default window.
func NewController(store TxStore, clock Clock, lockTimeout time.Duration) *Controller {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Controller{
		Coordinator:   NewCoordinator(store, lockTimeout),
		Audit:         NewAuditLogger(clock),
		Clock:         clock,
		ClockInWindow: DefaultClockInWindow,
	}
}

// =============================================================================
// CLOCK-IN
// =============================================================================

func (c *Controller) ClockIn(ctx context.Context, jobID JobID, worker WorkerID) (*ClockInResult, error) {
	var updated Job

	err := c.Coordinator.Execute(ctx, jobID, []LockKey{JobLock(jobID)},
		func(ctx context.Context, store Store) ([]Mutation, error) {
			job, err := c.loadAuthorized(ctx, store, jobID, worker)
			if err != nil {
				return nil, err
			}
			if job.IsClockedIn() {
				return nil, precondition(jobID, worker, ErrAlreadyClockedIn)
			}
			if job.Status.IsTerminal() {
				return nil, precondition(jobID, worker, ErrJobClosed)
			}

			now := c.Clock.Now()
			opensAt := job.ScheduledStart.Add(-c.ClockInWindow)
			if now.Before(opensAt) {
				return nil, &TooEarlyError{JobID: jobID, MinutesRemaining: minutesUntil(opensAt.Sub(now))}
			}

			prior := job.Status
			updated = job.Clone()
			updated.ClockInAt = &now
			updated.Status = StatusInProgress
			updated.UpdatedAt = now

			return []Mutation{
				AppendLog{Entry: c.Audit.Entry(jobID, worker, ActionClockedIn,
					fmt.Sprintf("Clocked in at %s", now.Format(time.RFC3339)))},
				AppendLog{Entry: c.Audit.StatusChange(jobID, worker, prior, StatusInProgress)},
				UpdateJob{Job: updated},
			}, nil
		})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("job_id", string(jobID)).
		Str("worker_id", string(worker)).
		Time("clock_in_at", *updated.ClockInAt).
		Msg("clocked in")
	return &ClockInResult{Job: updated}, nil
}

// =============================================================================
// CLOCK-OUT
// =============================================================================

func (c *Controller) ClockOut(ctx context.Context, jobID JobID, worker WorkerID, reports []InventoryReport) (*ClockOutResult, error) {
	keys := []LockKey{JobLock(jobID)}
	for _, r := range reports {
		keys = append(keys, InventoryLock(worker, r.ProductID))
	}

	var result *ClockOutResult

	err := c.Coordinator.Execute(ctx, jobID, keys,
		func(ctx context.Context, store Store) ([]Mutation, error) {
			job, err := c.loadAuthorized(ctx, store, jobID, worker)
			if err != nil {
				return nil, err
			}
			if !job.IsClockedIn() {
				return nil, precondition(jobID, worker, ErrNotClockedIn)
			}
			if job.IsClockedOut() {
				return nil, precondition(jobID, worker, ErrAlreadyClockedOut)
			}
			if job.Status == StatusCancelled {
				return nil, precondition(jobID, worker, ErrJobClosed)
			}

			now := c.Clock.Now()
			plan := newReconcilePlan(c, store, job.ID, worker, now)
			for _, r := range reports {
				if err := plan.add(ctx, r); err != nil {
					return nil, err
				}
			}

			prior := job.Status
			updated := job.Clone()
			updated.ClockOutAt = &now
			updated.Status = StatusCompleted
			updated.UpdatedAt = now

			mutations := plan.mutations
			mutations = append(mutations,
				AppendLog{Entry: c.Audit.Entry(jobID, worker, ActionClockedOut,
					fmt.Sprintf("Clocked out at %s", now.Format(time.RFC3339)))},
				AppendLog{Entry: c.Audit.StatusChange(jobID, worker, prior, StatusCompleted)},
				UpdateJob{Job: updated},
			)

			result = &ClockOutResult{Job: updated, Outcomes: plan.outcomes}
			return mutations, nil
		})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("job_id", string(jobID)).
		Str("worker_id", string(worker)).
		Int("reported", len(reports)).
		Int("recorded", len(result.Recorded())).
		Msg("clocked out")
	return result, nil
}

func (c *Controller) loadAuthorized(ctx context.Context, store Store, jobID JobID, worker WorkerID) (Job, error) {
	job, err := store.GetJob(ctx, jobID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return Job{}, precondition(jobID, worker, ErrJobNotFound)
		}
		return Job{}, err
	}
	if job == nil {
		return Job{}, precondition(jobID, worker, ErrJobNotFound)
	}
	if !job.IsAssigned(worker) {
		return Job{}, precondition(jobID, worker, ErrForbidden)
	}
	return *job, nil
}

// =============================================================================
// RECONCILE PLAN - Per-product mutations with in-flight state
// =============================================================================

// reconcilePlan keeps the projected inventory and usage rows for products
// already planned in this call, so a repeated product sees its own earlier
// effect as if the writes had been applied in sequence.
type reconcilePlan struct {
	ctrl   *Controller
	store  Store
	job    JobID
	worker WorkerID
	now    time.Time

	inventory map[ProductID]*Inventory
	usage     map[ProductID]*Usage

	mutations []Mutation
	outcomes  []ProductOutcome
}

func newReconcilePlan(c *Controller, store Store, job JobID, worker WorkerID, now time.Time) *reconcilePlan {
	return &reconcilePlan{
		ctrl:      c,
		store:     store,
		job:       job,
		worker:    worker,
		now:       now,
		inventory: make(map[ProductID]*Inventory),
		usage:     make(map[ProductID]*Usage),
	}
}

func (p *reconcilePlan) add(ctx context.Context, r InventoryReport) error {
	inv, err := p.currentInventory(ctx, r.ProductID)
	if err != nil {
		return err
	}
	if inv == nil {
		p.outcomes = append(p.outcomes, ProductOutcome{ProductID: r.ProductID, Status: OutcomeSkippedNoInventory})
		return nil
	}

	rec := Reconcile(inv.Quantity, r.OnHandAfter)
	if !rec.Valid {
		log.Debug().
			Err(&QuantityError{ProductID: r.ProductID, Value: r.OnHandAfter}).
			Str("job_id", string(p.job)).
			Msg("rejected inventory report")
		p.outcomes = append(p.outcomes, ProductOutcome{ProductID: r.ProductID, Status: OutcomeInvalidQuantity, Before: rec.Before})
		return nil
	}

	outcome := ProductOutcome{ProductID: r.ProductID, Before: rec.Before, After: rec.After, Used: rec.Used}
	if !rec.Consumed() {
		outcome.Status = OutcomeSkippedNoConsumption
		p.outcomes = append(p.outcomes, outcome)
		return nil
	}

	usage, err := p.currentUsage(ctx, r.ProductID)
	if err != nil {
		return err
	}
	next := Usage{
		ID:        uuid.NewString(),
		JobID:     p.job,
		ProductID: r.ProductID,
		Quantity:  rec.Used,
		CreatedAt: p.now,
	}
	if usage != nil {
		next = *usage
		next.Quantity = usage.Quantity.Add(rec.Used)
	}
	next.InventoryBefore = rec.Before
	next.InventoryAfter = rec.After
	next.UpdatedAt = p.now

	nextInv := *inv
	nextInv.Quantity = rec.After
	nextInv.UpdatedAt = p.now

	desc, err := p.describe(ctx, r.ProductID, rec.Used)
	if err != nil {
		return err
	}

	p.usage[r.ProductID] = &next
	p.inventory[r.ProductID] = &nextInv
	p.mutations = append(p.mutations,
		UpsertUsage{Usage: next},
		UpdateInventory{Inventory: nextInv},
		AppendLog{Entry: p.ctrl.Audit.Entry(p.job, p.worker, ActionProductUsed, desc)},
	)

	outcome.Status = OutcomeRecorded
	p.outcomes = append(p.outcomes, outcome)
	return nil
}

func (p *reconcilePlan) currentInventory(ctx context.Context, product ProductID) (*Inventory, error) {
	if inv, ok := p.inventory[product]; ok {
		return inv, nil
	}
	inv, err := p.store.GetInventory(ctx, p.worker, product)
	if err != nil {
		return nil, err
	}
	p.inventory[product] = inv
	return inv, nil
}

func (p *reconcilePlan) currentUsage(ctx context.Context, product ProductID) (*Usage, error) {
	if u, ok := p.usage[product]; ok {
		return u, nil
	}
	return p.store.GetUsage(ctx, p.job, product)
}

// describe renders e.g. "Used 4 bottles of Glass Cleaner".
func (p *reconcilePlan) describe(ctx context.Context, id ProductID, used decimal.Decimal) (string, error) {
	product, err := p.store.GetProduct(ctx, id)
	if err != nil {
		return "", err
	}
	name, unit := string(id), "units"
	if product != nil {
		if product.Name != "" {
			name = product.Name
		}
		if product.Unit != "" {
			unit = product.Unit
		}
	}
	return fmt.Sprintf("Used %s %s of %s", used.Round(2).String(), unit, name), nil
}
