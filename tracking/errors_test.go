package tracking_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/jobclock/tracking"
	"github.com/warp/jobclock/tracking/store"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want tracking.ErrorKind
	}{
		{"nil", nil, ""},
		{"precondition", &tracking.PreconditionError{JobID: "j", Err: tracking.ErrForbidden}, tracking.KindForbidden},
		{"too early", &tracking.TooEarlyError{JobID: "j", MinutesRemaining: 2}, tracking.KindTooEarly},
		{"quantity", &tracking.QuantityError{ProductID: "p", Value: "-1"}, tracking.KindInvalidQuantity},
		{"wrapped sentinel", fmt.Errorf("ctx: %w", tracking.ErrJobClosed), tracking.KindJobClosed},
		{
			"transaction wrapping a domain sentinel",
			&tracking.TransactionError{Err: tracking.ErrInvalidQuantity},
			tracking.KindTransactionFailed,
		},
		{"unknown", errors.New("disk"), tracking.KindTransactionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tracking.KindOf(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "You can clock in in 1 minute.", tracking.Message(&tracking.TooEarlyError{MinutesRemaining: 1}))
	assert.Equal(t, "You can clock in in 14 minutes.", tracking.Message(&tracking.TooEarlyError{MinutesRemaining: 14}))
	assert.Equal(t, "You have already clocked out of this job.",
		tracking.Message(&tracking.PreconditionError{Err: tracking.ErrAlreadyClockedOut}))
	assert.Equal(t, "", tracking.Message(nil))
}

func TestErrorHelpers(t *testing.T) {
	txErr := &tracking.TransactionError{JobID: "j", Err: errors.New("busy")}
	assert.True(t, tracking.IsRetryable(txErr))
	assert.False(t, tracking.IsClientError(txErr))

	conflict := &tracking.PreconditionError{JobID: "j", Err: tracking.ErrAlreadyClockedIn}
	assert.True(t, tracking.IsStateConflict(conflict))
	assert.True(t, tracking.IsClientError(conflict))
	assert.False(t, tracking.IsRetryable(conflict))

	assert.False(t, tracking.IsClientError(nil))
}

func TestAuditLogger_AppendAndHistory(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	clock := tracking.NewFixedClock(start)
	audit := tracking.NewAuditLogger(clock)

	change := audit.StatusChange("j", "alice", tracking.StatusScheduled, tracking.StatusInProgress)
	assert.Equal(t, "Status changed from SCHEDULED to IN_PROGRESS", change.Description)
	require.NotNil(t, change.OldValue)
	assert.Equal(t, "SCHEDULED", *change.OldValue)
	assert.NotEmpty(t, change.ID)

	clock.Advance(time.Second)
	require.NoError(t, audit.Append(ctx, st, tracking.LogEntry{JobID: "j", ActorID: "alice", Action: tracking.ActionClockedIn}))
	require.NoError(t, audit.Append(ctx, st, change))

	history, err := audit.History(ctx, st, "j")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, tracking.ActionClockedIn, history[0].Action)
	assert.NotEmpty(t, history[0].ID)
	assert.True(t, history[0].CreatedAt.Equal(start.Add(time.Second)))
	assert.Equal(t, tracking.ActionStatusChanged, history[1].Action)
}
