/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Result wrappers

CLOCK RESPONSES:
  Clock-in and clock-out return a discriminated result:
    {"success": true,  "job": {...}, "products": [...]}
    {"success": false, "error_kind": "TooEarly", "message": "...", "minutes_remaining": 3}

QUANTITIES:
  Quantities travel as decimal strings ("3.25") so no precision is lost.
  Reported on_hand_after values also accept a JSON number; any other JSON
  value is kept as text and rejected for that product only.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.
*/
package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/warp/jobclock/tracking"
)

// =============================================================================
// CLOCK REQUESTS / RESPONSES
// =============================================================================

type ClockInRequest struct {
	WorkerID string `json:"worker_id"`
}

// QuantityText is a reported quantity as the client wrote it.
type QuantityText string

// UnmarshalJSON takes a string's contents, or the literal text of any other
// value (6, 6.5, true, {}), and never fails.
func (q *QuantityText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*q = QuantityText(s)
		return nil
	}
	*q = QuantityText(bytes.TrimSpace(data))
	return nil
}

type InventoryReportDTO struct {
	ProductID   string       `json:"product_id"`
	OnHandAfter QuantityText `json:"on_hand_after"`
}

type ClockOutRequest struct {
	WorkerID  string               `json:"worker_id"`
	Inventory []InventoryReportDTO `json:"inventory"`
}

// ClockResponse is the discriminated clock-in / clock-out result.
type ClockResponse struct {
	Success bool `json:"success"`

	Job      *JobDTO             `json:"job,omitempty"`
	Products []ProductOutcomeDTO `json:"products,omitempty"`

	ErrorKind        tracking.ErrorKind `json:"error_kind,omitempty"`
	Message          string             `json:"message,omitempty"`
	MinutesRemaining *int64             `json:"minutes_remaining,omitempty"`
}

type ProductOutcomeDTO struct {
	ProductID string `json:"product_id"`
	Status    string `json:"status"`
	Before    string `json:"before,omitempty"`
	After     string `json:"after,omitempty"`
	Used      string `json:"used,omitempty"`
}

// =============================================================================
// READ MODELS
// =============================================================================

type JobDTO struct {
	ID               string     `json:"id"`
	PrimaryWorker    string     `json:"primary_worker_id"`
	SecondaryWorkers []string   `json:"secondary_worker_ids"`
	ScheduledStart   time.Time  `json:"scheduled_start"`
	ScheduledEnd     *time.Time `json:"scheduled_end,omitempty"`
	Status           string     `json:"status"`
	ClockInAt        *time.Time `json:"clock_in_at,omitempty"`
	ClockOutAt       *time.Time `json:"clock_out_at,omitempty"`
	Price            string     `json:"price"`
}

type LogEntryDTO struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actor_id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	OldValue    *string   `json:"old_value,omitempty"`
	NewValue    *string   `json:"new_value,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type UsageDTO struct {
	ProductID       string    `json:"product_id"`
	Quantity        string    `json:"quantity"`
	InventoryBefore string    `json:"inventory_before"`
	InventoryAfter  string    `json:"inventory_after"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type InventoryDTO struct {
	ProductID string    `json:"product_id"`
	Quantity  string    `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// SEEDING REQUESTS
// =============================================================================

type CreateJobRequest struct {
	ID               string     `json:"id"`
	PrimaryWorker    string     `json:"primary_worker_id"`
	SecondaryWorkers []string   `json:"secondary_worker_ids"`
	ScheduledStart   time.Time  `json:"scheduled_start"`
	ScheduledEnd     *time.Time `json:"scheduled_end,omitempty"`
	Status           string     `json:"status,omitempty"`
	Price            string     `json:"price,omitempty"`
}

type CreateProductRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

type SetInventoryRequest struct {
	Quantity string `json:"quantity"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toJobDTO(j tracking.Job) JobDTO {
	secondary := make([]string, len(j.SecondaryWorkers))
	for i, w := range j.SecondaryWorkers {
		secondary[i] = string(w)
	}
	return JobDTO{
		ID:               string(j.ID),
		PrimaryWorker:    string(j.PrimaryWorker),
		SecondaryWorkers: secondary,
		ScheduledStart:   j.ScheduledStart,
		ScheduledEnd:     j.ScheduledEnd,
		Status:           string(j.Status),
		ClockInAt:        j.ClockInAt,
		ClockOutAt:       j.ClockOutAt,
		Price:            j.Price.StringFixed(2),
	}
}

func toOutcomeDTOs(outcomes []tracking.ProductOutcome) []ProductOutcomeDTO {
	out := make([]ProductOutcomeDTO, len(outcomes))
	for i, o := range outcomes {
		dto := ProductOutcomeDTO{ProductID: string(o.ProductID), Status: string(o.Status)}
		if o.Status != tracking.OutcomeSkippedNoInventory {
			dto.Before = o.Before.String()
		}
		if o.Status == tracking.OutcomeRecorded || o.Status == tracking.OutcomeSkippedNoConsumption {
			dto.After = o.After.String()
			dto.Used = o.Used.String()
		}
		out[i] = dto
	}
	return out
}

func toLogDTOs(entries []tracking.LogEntry) []LogEntryDTO {
	out := make([]LogEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = LogEntryDTO{
			ID:          string(e.ID),
			ActorID:     string(e.ActorID),
			Action:      string(e.Action),
			Description: e.Description,
			OldValue:    e.OldValue,
			NewValue:    e.NewValue,
			CreatedAt:   e.CreatedAt,
		}
	}
	return out
}

func toUsageDTOs(rows []tracking.Usage) []UsageDTO {
	out := make([]UsageDTO, len(rows))
	for i, u := range rows {
		out[i] = UsageDTO{
			ProductID:       string(u.ProductID),
			Quantity:        u.Quantity.String(),
			InventoryBefore: u.InventoryBefore.String(),
			InventoryAfter:  u.InventoryAfter.String(),
			UpdatedAt:       u.UpdatedAt,
		}
	}
	return out
}

func toInventoryDTOs(rows []tracking.Inventory) []InventoryDTO {
	out := make([]InventoryDTO, len(rows))
	for i, inv := range rows {
		out[i] = InventoryDTO{
			ProductID: string(inv.ProductID),
			Quantity:  inv.Quantity.String(),
			UpdatedAt: inv.UpdatedAt,
		}
	}
	return out
}
