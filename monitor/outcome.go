package monitor

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"
)

// OutcomeKind classifies how a protected region ended.
type OutcomeKind string

const (
	OutcomeSuccess    OutcomeKind = "success"
	OutcomeFailure    OutcomeKind = "failure"
	OutcomeTerminated OutcomeKind = "terminated"
)

// Outcome is the classified result of one region exit. It is built at
// the moment the region ends and consumed once to compose the report.
type Outcome struct {
	Kind      OutcomeKind
	StartedAt time.Time
	EndedAt   time.Time

	// Failure details
	ErrorType    string
	ErrorMessage string
	StackTrace   string

	// Terminated details
	Signal string
}

// Duration is the wall-clock time the region was active.
func (o Outcome) Duration() time.Duration {
	return o.EndedAt.Sub(o.StartedAt)
}

func successOutcome(started, ended time.Time) Outcome {
	return Outcome{
		Kind:      OutcomeSuccess,
		StartedAt: started,
		EndedAt:   ended,
	}
}

func failureOutcome(err error, started, ended time.Time) Outcome {
	return Outcome{
		Kind:         OutcomeFailure,
		StartedAt:    started,
		EndedAt:      ended,
		ErrorType:    fmt.Sprintf("%T", err),
		ErrorMessage: err.Error(),
		StackTrace:   errorStack(err),
	}
}

func panicOutcome(value any, stack string, started, ended time.Time) Outcome {
	return Outcome{
		Kind:         OutcomeFailure,
		StartedAt:    started,
		EndedAt:      ended,
		ErrorType:    fmt.Sprintf("%T", value),
		ErrorMessage: fmt.Sprint(value),
		StackTrace:   stack,
	}
}

func terminatedOutcome(sig os.Signal, started, ended time.Time) Outcome {
	return Outcome{
		Kind:      OutcomeTerminated,
		StartedAt: started,
		EndedAt:   ended,
		Signal:    sig.String(),
	}
}

// errorStack extracts a stack trace carried by the error, if any.
func errorStack(err error) string {
	var stackTracer interface {
		StackTrace() errors.StackTrace
	}

	if errors.As(err, &stackTracer) {
		return fmt.Sprintf("%+v", stackTracer.StackTrace())
	}
	return ""
}

// currentStack captures the stack at the recovery point of a panic.
func currentStack() string {
	return string(debug.Stack())
}
