/*
errors.go - Error taxonomy for clock-in / clock-out

PURPOSE:
  All error types in one place. Every error the engine returns maps to exactly
  one ErrorKind so the HTTP layer (or any other caller) can render a message
  without string matching.

ERROR CATEGORIES:
  1. Precondition errors - NotFound, Forbidden, AlreadyClockedIn,
     AlreadyClockedOut, NotClockedIn, JobClosed, TooEarly.
     Detected before any mutation is assembled; storage is untouched.
  2. Input errors - InvalidQuantity (per product, does not abort clock-out)
  3. Storage errors - TransactionFailed. Zero visible side effects, safe to retry.

USAGE:
    res, err := ctrl.ClockIn(ctx, jobID, workerID)
    if errors.Is(err, tracking.ErrTooEarly) {
        var te *tracking.TooEarlyError
        errors.As(err, &te)
        fmt.Println(te.MinutesRemaining)
    }
*/
package tracking

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrForbidden         = errors.New("worker is not assigned to this job")
	ErrAlreadyClockedIn  = errors.New("already clocked in")
	ErrAlreadyClockedOut = errors.New("already clocked out")
	ErrNotClockedIn      = errors.New("not clocked in")
	ErrJobClosed         = errors.New("job is closed")
	ErrTooEarly          = errors.New("too early to clock in")
	ErrInvalidQuantity   = errors.New("invalid quantity")

	// ErrTransactionFailed is returned when the mutation set cannot be committed.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrLockTimeout is wrapped in a TransactionError when a job or inventory
	// lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock acquisition timed out")
)

// =============================================================================
// ERROR KINDS
// =============================================================================

type ErrorKind string

const (
	KindNotFound          ErrorKind = "NotFound"
	KindForbidden         ErrorKind = "Forbidden"
	KindAlreadyClockedIn  ErrorKind = "AlreadyClockedIn"
	KindAlreadyClockedOut ErrorKind = "AlreadyClockedOut"
	KindNotClockedIn      ErrorKind = "NotClockedIn"
	KindJobClosed         ErrorKind = "JobClosed"
	KindTooEarly          ErrorKind = "TooEarly"
	KindInvalidQuantity   ErrorKind = "InvalidQuantity"
	KindTransactionFailed ErrorKind = "TransactionFailed"
)

var kindBySentinel = []struct {
	err  error
	kind ErrorKind
}{
	{ErrTransactionFailed, KindTransactionFailed},
	{ErrJobNotFound, KindNotFound},
	{ErrForbidden, KindForbidden},
	{ErrAlreadyClockedIn, KindAlreadyClockedIn},
	{ErrAlreadyClockedOut, KindAlreadyClockedOut},
	{ErrNotClockedIn, KindNotClockedIn},
	{ErrJobClosed, KindJobClosed},
	{ErrTooEarly, KindTooEarly},
	{ErrInvalidQuantity, KindInvalidQuantity},
}

// KindOf classifies err. TransactionFailed is checked first because a
// TransactionError also wraps its cause. Unknown errors are reported as
// TransactionFailed: anything unexpected escaping the engine comes from storage.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range kindBySentinel {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindTransactionFailed
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PreconditionError is a state-machine or authorization failure on one job.
type PreconditionError struct {
	JobID  JobID
	Worker WorkerID
	Err    error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("job %s: %v", e.JobID, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// TooEarlyError carries the whole minutes left until clock-in opens.
type TooEarlyError struct {
	JobID            JobID
	MinutesRemaining int64
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("job %s: too early to clock in, %d minute(s) remaining", e.JobID, e.MinutesRemaining)
}

func (e *TooEarlyError) Unwrap() error { return ErrTooEarly }

// QuantityError describes a rejected inventory report entry.
type QuantityError struct {
	ProductID ProductID
	Value     string
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %q for product %s", e.Value, e.ProductID)
}

func (e *QuantityError) Unwrap() error { return ErrInvalidQuantity }

// TransactionError wraps a storage failure. Both ErrTransactionFailed and the
// underlying cause match with errors.Is.
type TransactionError struct {
	JobID JobID
	Err   error
}

func (e *TransactionError) Error() string {
	if e.JobID == "" {
		return fmt.Sprintf("transaction failed: %v", e.Err)
	}
	return fmt.Sprintf("job %s: transaction failed: %v", e.JobID, e.Err)
}

func (e *TransactionError) Unwrap() []error { return []error{ErrTransactionFailed, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Message returns the user-facing text for err, pre-formatted for display.
func Message(err error) string {
	var te *TooEarlyError
	if errors.As(err, &te) {
		if te.MinutesRemaining == 1 {
			return "You can clock in in 1 minute."
		}
		return fmt.Sprintf("You can clock in in %d minutes.", te.MinutesRemaining)
	}
	switch KindOf(err) {
	case KindNotFound:
		return "Job not found."
	case KindForbidden:
		return "You are not assigned to this job."
	case KindAlreadyClockedIn:
		return "You have already clocked in to this job."
	case KindAlreadyClockedOut:
		return "You have already clocked out of this job."
	case KindNotClockedIn:
		return "You must clock in before clocking out."
	case KindJobClosed:
		return "This job is closed."
	case KindInvalidQuantity:
		return "Inventory quantities must be non-negative numbers."
	case KindTransactionFailed:
		return "Something went wrong while saving. Please try again."
	}
	return ""
}

// IsRetryable returns true if repeating the whole call might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed)
}

// IsStateConflict returns true for errors that mean the desired end state may
// already hold (stale client or double submission).
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrAlreadyClockedIn) ||
		errors.Is(err, ErrAlreadyClockedOut) ||
		errors.Is(err, ErrNotClockedIn)
}

// IsClientError returns true if the error is caused by the caller's request.
func IsClientError(err error) bool {
	k := KindOf(err)
	return err != nil && k != KindTransactionFailed
}

func precondition(job JobID, worker WorkerID, err error) error {
	return &PreconditionError{JobID: job, Worker: worker, Err: err}
}
