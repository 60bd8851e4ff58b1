// Package athena implements the asynchronous query lifecycle against the
// Athena engine: submit a query, poll its execution state at a fixed interval
// until it reaches a terminal state or the wait deadline passes, then fetch
// the tabular results. On top of the lifecycle it provides the flight-log
// query builders used by the telemetry ETL.
package athena

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/athena/types"
)

// State is the lifecycle state of a query execution as reported by the
// engine. The engine owns the state; this package only observes it. Once a
// terminal state is observed the execution never transitions again.
type State string

const (
	StateQueued    State = "QUEUED"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether no further transition can occur from s.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	}
	return false
}

// stateFromSDK converts the SDK's execution state enum.
func stateFromSDK(s types.QueryExecutionState) State {
	return State(s)
}

// Outcome is the result of waiting for a query execution. It extends the
// engine's terminal states with OutcomeTimedOut for waits abandoned at the
// deadline, which the engine itself never reports.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeCancelled
	OutcomeTimedOut
)

// Succeeded reports whether the wait ended with a successful execution.
func (o Outcome) Succeeded() bool {
	return o == OutcomeSucceeded
}

// String returns the outcome name for logs and errors.
func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "SUCCEEDED"
	case OutcomeFailed:
		return "FAILED"
	case OutcomeCancelled:
		return "CANCELLED"
	case OutcomeTimedOut:
		return "TIMED_OUT"
	}
	return "UNKNOWN"
}

var (
	// ErrQueryFailed is returned by Wait when the execution reaches FAILED.
	ErrQueryFailed = errors.New("query execution failed")

	// ErrQueryCancelled is returned by Wait when the execution reaches CANCELLED.
	ErrQueryCancelled = errors.New("query execution cancelled")

	// ErrWaitTimeout is returned by Wait when the deadline or context expires
	// before a terminal state is observed.
	ErrWaitTimeout = errors.New("timed out waiting for query execution")

	// ErrNotFound is returned by the accessors when a query succeeds but the
	// result set carries no data rows.
	ErrNotFound = errors.New("no matching rows")
)
