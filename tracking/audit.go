package tracking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AuditLogger builds and appends job log entries. It has no update or delete.
// The lifecycle controller is its only caller; UI code reads History.
type AuditLogger struct {
	Clock Clock
	NewID func() LogID
}

func NewAuditLogger(clock Clock) *AuditLogger {
	return &AuditLogger{
		Clock: clock,
		NewID: func() LogID { return LogID(uuid.NewString()) },
	}
}

// Entry builds a log entry stamped with the logger's clock.
func (a *AuditLogger) Entry(job JobID, actor WorkerID, action LogAction, description string) LogEntry {
	return LogEntry{
		ID:          a.NewID(),
		JobID:       job,
		ActorID:     actor,
		Action:      action,
		Description: description,
		CreatedAt:   a.Clock.Now(),
	}
}

// StatusChange builds a STATUS_CHANGED entry carrying old and new values.
func (a *AuditLogger) StatusChange(job JobID, actor WorkerID, from, to JobStatus) LogEntry {
	e := a.Entry(job, actor, ActionStatusChanged,
		fmt.Sprintf("Status changed from %s to %s", from, to))
	old, nw := string(from), string(to)
	e.OldValue = &old
	e.NewValue = &nw
	return e
}

// Append writes entry to store. Storage errors are returned unchanged.
func (a *AuditLogger) Append(ctx context.Context, store Store, entry LogEntry) error {
	if entry.ID == "" {
		entry.ID = a.NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.Clock.Now()
	}
	return store.AppendLog(ctx, entry)
}

// History returns the entries for a job in creation order.
func (a *AuditLogger) History(ctx context.Context, store Store, job JobID) ([]LogEntry, error) {
	return store.Logs(ctx, job)
}
