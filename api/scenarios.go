/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the store with jobs, products
  and worker inventory so the clock-in / clock-out flow can be exercised
  without the job-management screens.

AVAILABLE SCENARIOS:
  single-job:        One job starting soon, two products in the worker's kit
  shared-inventory:  Same worker on two jobs drawing from one inventory row
  team-job:          Primary + secondary workers, secondary clocks in

HOW SCENARIOS WORK:
 1. Scheduled start is computed relative to the controller clock
 2. Products are registered (so logs say "Used 4 bottles of Glass Cleaner")
 3. Jobs are created in SCHEDULED state
 4. Missing worker inventory rows are created

Scenarios only create rows; they never clock in or out. Steps 3 and 4 run
as one coordinator transaction holding the worker+product locks of every
row they touch. Loading a scenario twice keeps the jobs and inventory rows
that already exist, so stock consumed by a clock-out is never handed back.

USAGE VIA API:
  GET  /api/scenarios
  POST /api/scenarios/load
  {"scenario_id": "single-job"}
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/warp/jobclock/tracking"
)

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type scenario struct {
	ScenarioDTO
	jobs  []demoJob
	stock []demoStock
}

type demoJob struct {
	id        tracking.JobID
	startsIn  time.Duration
	primary   tracking.WorkerID
	secondary []tracking.WorkerID
}

type demoStock struct {
	worker   tracking.WorkerID
	product  tracking.ProductID
	quantity string
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "single-job",
			Name:        "Single Job",
			Description: "Worker w-1 on job job-1 starting in 10 minutes, carrying glass cleaner and paper towels",
		},
		jobs: []demoJob{{id: "job-1", startsIn: 10 * time.Minute, primary: "w-1"}},
		stock: []demoStock{
			{worker: "w-1", product: "glass-cleaner", quantity: "10"},
			{worker: "w-1", product: "paper-towels", quantity: "12"},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "shared-inventory",
			Name:        "Shared Inventory",
			Description: "Worker w-1 on job-a and job-b, both drawing from the same 10 bottles",
		},
		jobs: []demoJob{
			{id: "job-a", startsIn: 5 * time.Minute, primary: "w-1"},
			{id: "job-b", startsIn: 3 * time.Hour, primary: "w-1"},
		},
		stock: []demoStock{{worker: "w-1", product: "glass-cleaner", quantity: "10"}},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "team-job",
			Name:        "Team Job",
			Description: "Job job-team with primary w-1 and secondary w-2; w-2 carries the supplies",
		},
		jobs: []demoJob{{id: "job-team", startsIn: time.Minute, primary: "w-1", secondary: []tracking.WorkerID{"w-2"}}},
		stock: []demoStock{
			{worker: "w-2", product: "floor-wax", quantity: "4.5"},
			{worker: "w-2", product: "paper-towels", quantity: "6"},
		},
	},
}

var demoProducts = []tracking.Product{
	{ID: "glass-cleaner", Name: "Glass Cleaner", Unit: "bottles"},
	{ID: "paper-towels", Name: "Paper Towels", Unit: "rolls"},
	{ID: "floor-wax", Name: "Floor Wax", Unit: "liters"},
}

// ListScenarios returns the loadable scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, out)
}

// LoadScenario seeds the store with one scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var found *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			found = &scenarios[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown scenario %q", req.ScenarioID), nil)
		return
	}

	for _, p := range demoProducts {
		if err := h.Store.SaveProduct(r.Context(), p); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
			return
		}
	}

	now := h.Controller.Clock.Now()
	err := h.Controller.Coordinator.Execute(r.Context(), "", found.lockKeys(),
		func(ctx context.Context, store tracking.Store) ([]tracking.Mutation, error) {
			return found.plan(ctx, store, now)
		})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	log.Info().Str("scenario", found.ID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, found.ScenarioDTO)
}

// =============================================================================
// SCENARIO PLANNING
// =============================================================================

func (s *scenario) lockKeys() []tracking.LockKey {
	keys := make([]tracking.LockKey, 0, len(s.stock))
	for _, st := range s.stock {
		keys = append(keys, tracking.InventoryLock(st.worker, st.product))
	}
	return keys
}

// plan creates the scenario's missing jobs and inventory rows.
func (s *scenario) plan(ctx context.Context, store tracking.Store, now time.Time) ([]tracking.Mutation, error) {
	var mutations []tracking.Mutation
	for _, j := range s.jobs {
		_, err := store.GetJob(ctx, j.id)
		if err == nil {
			continue
		}
		if !errors.Is(err, tracking.ErrJobNotFound) {
			return nil, err
		}
		startAt := now.Add(j.startsIn).Truncate(time.Minute)
		end := startAt.Add(2 * time.Hour)
		mutations = append(mutations, tracking.UpdateJob{Job: tracking.Job{
			ID:               j.id,
			PrimaryWorker:    j.primary,
			SecondaryWorkers: j.secondary,
			ScheduledStart:   startAt,
			ScheduledEnd:     &end,
			Status:           tracking.StatusScheduled,
			Price:            decimal.NewFromInt(150),
			CreatedAt:        now,
			UpdatedAt:        now,
		}})
	}

	for _, st := range s.stock {
		current, err := store.GetInventory(ctx, st.worker, st.product)
		if err != nil {
			return nil, err
		}
		if current != nil {
			continue
		}
		mutations = append(mutations, tracking.UpdateInventory{Inventory: tracking.Inventory{
			WorkerID:  st.worker,
			ProductID: st.product,
			Quantity:  decimal.RequireFromString(st.quantity),
			UpdatedAt: now,
		}})
	}
	return mutations, nil
}
