/*
handlers.go - HTTP API handlers for job time-tracking

PURPOSE:
  Exposes the clock-in / clock-out engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to tracking.Controller.

ENDPOINTS:
  Clock:
    POST   /api/jobs/{id}/clock-in               Clock in (body: worker_id)
    POST   /api/jobs/{id}/clock-out              Clock out with inventory report

  Reads:
    GET    /api/jobs/{id}                        Job details
    GET    /api/jobs/{id}/logs                   Audit trail in creation order
    GET    /api/jobs/{id}/usage                  Product usage for the job
    GET    /api/workers/{id}/inventory           Worker's on-hand inventory

  Seeding (stand-ins for the job / product management screens):
    POST   /api/jobs                             Create job
    POST   /api/products                         Create or rename product
    PUT    /api/workers/{id}/inventory/{product} Create or restock on-hand quantity

ERROR HANDLING:
  Clock endpoints always answer with ClockResponse. The HTTP status follows
  the error kind:
  - 400: InvalidRequest (unreadable body, missing worker_id or product_id)
  - 403: Forbidden
  - 404: NotFound
  - 409: AlreadyClockedIn, AlreadyClockedOut, NotClockedIn, JobClosed
  - 425: TooEarly
  - 422: InvalidQuantity
  - 503: TransactionFailed (retry is safe)
  Other endpoints use ErrorResponse with 400 / 404 / 409 / 500.

SECURITY NOTE:
  The acting worker is taken from the request body. Authentication is
  expected in front of this service.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/warp/jobclock/tracking"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      tracking.TxStore
	Controller *tracking.Controller
}

// NewHandler creates a new handler around an existing controller.
func NewHandler(store tracking.TxStore, ctrl *tracking.Controller) *Handler {
	return &Handler{Store: store, Controller: ctrl}
}

// =============================================================================
// CLOCK HANDLERS
// =============================================================================

// ClockIn starts work on a job.
func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	jobID := tracking.JobID(chi.URLParam(r, "id"))

	var req ClockInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeClockRequestError(w, r, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.WorkerID) == "" {
		writeClockRequestError(w, r, "worker_id is required", nil)
		return
	}

	res, err := h.Controller.ClockIn(r.Context(), jobID, tracking.WorkerID(req.WorkerID))
	if err != nil {
		writeClockError(w, r, err)
		return
	}

	job := toJobDTO(res.Job)
	writeJSON(w, http.StatusOK, ClockResponse{Success: true, Job: &job})
}

// ClockOut finishes a job and reconciles the reported inventory.
func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	jobID := tracking.JobID(chi.URLParam(r, "id"))

	var req ClockOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeClockRequestError(w, r, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.WorkerID) == "" {
		writeClockRequestError(w, r, "worker_id is required", nil)
		return
	}

	reports := make([]tracking.InventoryReport, 0, len(req.Inventory))
	for _, item := range req.Inventory {
		if item.ProductID == "" {
			writeClockRequestError(w, r, "inventory[].product_id is required", nil)
			return
		}
		reports = append(reports, tracking.InventoryReport{
			ProductID:   tracking.ProductID(item.ProductID),
			OnHandAfter: string(item.OnHandAfter),
		})
	}

	res, err := h.Controller.ClockOut(r.Context(), jobID, tracking.WorkerID(req.WorkerID), reports)
	if err != nil {
		writeClockError(w, r, err)
		return
	}

	job := toJobDTO(res.Job)
	writeJSON(w, http.StatusOK, ClockResponse{
		Success:  true,
		Job:      &job,
		Products: toOutcomeDTOs(res.Outcomes),
	})
}

// =============================================================================
// READ HANDLERS
// =============================================================================

// GetJob returns a single job.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(*job))
}

// GetJobLogs returns the audit trail for a job, oldest first.
func (h *Handler) GetJobLogs(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	entries, err := h.Controller.Audit.History(r.Context(), h.Store, job.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load job logs", err)
		return
	}
	writeJSON(w, http.StatusOK, toLogDTOs(entries))
}

// GetJobUsage returns cumulative product usage for a job.
func (h *Handler) GetJobUsage(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	rows, err := h.Store.ListUsage(r.Context(), job.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load usage", err)
		return
	}
	writeJSON(w, http.StatusOK, toUsageDTOs(rows))
}

// GetWorkerInventory returns every product a worker carries.
func (h *Handler) GetWorkerInventory(w http.ResponseWriter, r *http.Request) {
	worker := tracking.WorkerID(chi.URLParam(r, "id"))
	rows, err := h.Store.ListInventory(r.Context(), worker)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load inventory", err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryDTOs(rows))
}

func (h *Handler) loadJob(w http.ResponseWriter, r *http.Request) (*tracking.Job, bool) {
	id := tracking.JobID(chi.URLParam(r, "id"))
	job, err := h.Store.GetJob(r.Context(), id)
	if errors.Is(err, tracking.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "Job not found", nil)
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load job", err)
		return nil, false
	}
	return job, true
}

// =============================================================================
// SEEDING HANDLERS
// =============================================================================

// CreateJob registers a scheduled job.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.PrimaryWorker == "" {
		writeError(w, http.StatusBadRequest, "id and primary_worker_id are required", nil)
		return
	}
	if req.ScheduledStart.IsZero() {
		writeError(w, http.StatusBadRequest, "scheduled_start is required", nil)
		return
	}

	status := tracking.StatusScheduled
	if req.Status != "" {
		status = tracking.JobStatus(strings.ToUpper(req.Status))
		if !status.Valid() || status == tracking.StatusInProgress || status == tracking.StatusCompleted {
			writeError(w, http.StatusBadRequest, "status must be CREATED, SCHEDULED or CANCELLED", nil)
			return
		}
	}

	price := decimal.Zero
	if req.Price != "" {
		p, err := decimal.NewFromString(req.Price)
		if err != nil || p.IsNegative() {
			writeError(w, http.StatusBadRequest, "price must be a non-negative decimal", err)
			return
		}
		price = p
	}

	ctx := r.Context()
	if _, err := h.Store.GetJob(ctx, tracking.JobID(req.ID)); err == nil {
		writeError(w, http.StatusConflict, "Job already exists", nil)
		return
	} else if !errors.Is(err, tracking.ErrJobNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to check job", err)
		return
	}

	secondary := make([]tracking.WorkerID, 0, len(req.SecondaryWorkers))
	for _, s := range req.SecondaryWorkers {
		secondary = append(secondary, tracking.WorkerID(s))
	}
	now := h.Controller.Clock.Now()
	job := tracking.Job{
		ID:               tracking.JobID(req.ID),
		PrimaryWorker:    tracking.WorkerID(req.PrimaryWorker),
		SecondaryWorkers: secondary,
		ScheduledStart:   req.ScheduledStart.UTC(),
		ScheduledEnd:     req.ScheduledEnd,
		Status:           status,
		Price:            price,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.Store.SaveJob(ctx, job); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create job", err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobDTO(job))
}

// CreateProduct registers a product so usage logs can name it.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	p := tracking.Product{ID: tracking.ProductID(req.ID), Name: req.Name, Unit: req.Unit}
	if err := h.Store.SaveProduct(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save product", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// SetInventory creates a worker's on-hand row for a product or raises it
// (a restock). Lowering on-hand is clock-out's job, so a smaller quantity is
// rejected with 409 and the row is left alone. It takes the same
// worker+product lock as clock-out.
func (h *Handler) SetInventory(w http.ResponseWriter, r *http.Request) {
	worker := tracking.WorkerID(chi.URLParam(r, "id"))
	product := tracking.ProductID(chi.URLParam(r, "productID"))

	var req SetInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	qty, err := tracking.ParseQuantity(req.Quantity)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, tracking.Message(err), err)
		return
	}

	inv := tracking.Inventory{
		WorkerID:  worker,
		ProductID: product,
		Quantity:  qty,
		UpdatedAt: h.Controller.Clock.Now(),
	}
	err = h.Controller.Coordinator.Execute(r.Context(), "", []tracking.LockKey{tracking.InventoryLock(worker, product)},
		func(ctx context.Context, store tracking.Store) ([]tracking.Mutation, error) {
			return restock(ctx, store, inv)
		})
	var decrease *stockDecreaseError
	if errors.As(err, &decrease) {
		writeError(w, http.StatusConflict, decrease.Error(), nil)
		return
	}
	if err != nil {
		writeError(w, statusForKind(tracking.KindOf(err)), tracking.Message(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryDTOs([]tracking.Inventory{inv})[0])
}

// stockDecreaseError rejects a seeding write that would lower on-hand.
type stockDecreaseError struct {
	current   tracking.Inventory
	requested decimal.Decimal
}

func (e *stockDecreaseError) Error() string {
	return fmt.Sprintf("%s holds %s of %s; inventory can only be raised outside clock-out (requested %s)",
		e.current.WorkerID, e.current.Quantity.String(), e.current.ProductID, e.requested.String())
}

// Unwrap keeps the rejection a client error so the coordinator returns it
// as is.
func (e *stockDecreaseError) Unwrap() error { return tracking.ErrInvalidQuantity }

// restock plans a create-or-raise of one inventory row.
func restock(ctx context.Context, store tracking.Store, inv tracking.Inventory) ([]tracking.Mutation, error) {
	current, err := store.GetInventory(ctx, inv.WorkerID, inv.ProductID)
	if err != nil {
		return nil, err
	}
	if current != nil && inv.Quantity.LessThan(current.Quantity) {
		return nil, &stockDecreaseError{current: *current, requested: inv.Quantity}
	}
	return []tracking.Mutation{tracking.UpdateInventory{Inventory: inv}}, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// statusForKind maps an engine error kind to an HTTP status.
func statusForKind(kind tracking.ErrorKind) int {
	switch kind {
	case tracking.KindNotFound:
		return http.StatusNotFound
	case tracking.KindForbidden:
		return http.StatusForbidden
	case tracking.KindAlreadyClockedIn, tracking.KindAlreadyClockedOut,
		tracking.KindNotClockedIn, tracking.KindJobClosed:
		return http.StatusConflict
	case tracking.KindTooEarly:
		return http.StatusTooEarly
	case tracking.KindInvalidQuantity:
		return http.StatusUnprocessableEntity
	case tracking.KindTransactionFailed:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// KindInvalidRequest marks a clock request the API could not read.
const KindInvalidRequest tracking.ErrorKind = "InvalidRequest"

// writeClockRequestError answers a malformed clock request with the same
// discriminated shape as engine errors.
func writeClockRequestError(w http.ResponseWriter, r *http.Request, message string, err error) {
	log.Debug().Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("clock request malformed")
	writeJSON(w, http.StatusBadRequest, ClockResponse{
		Success:   false,
		ErrorKind: KindInvalidRequest,
		Message:   message,
	})
}

func writeClockError(w http.ResponseWriter, r *http.Request, err error) {
	kind := tracking.KindOf(err)
	resp := ClockResponse{
		Success:   false,
		ErrorKind: kind,
		Message:   tracking.Message(err),
	}
	var te *tracking.TooEarlyError
	if errors.As(err, &te) {
		minutes := te.MinutesRemaining
		resp.MinutesRemaining = &minutes
	}

	status := statusForKind(kind)
	evt := log.Debug()
	if status >= http.StatusInternalServerError {
		evt = log.Warn()
	}
	evt.Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("error_kind", string(kind)).
		Msg("clock request rejected")

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Int("status", status).Msg(message)
		}
	}
	writeJSON(w, status, resp)
}
