// Package controller implements the material-routing core: node discovery
// and role classification, output pairing, the allocation pool, the retry
// executor and parallel task group, the transfer orchestrator, and the
// control loop that drives them.
package controller

import (
	"errors"
	"fmt"
)

// Severity classifies a ControlError. The controller knows exactly two
// classes: fatal errors abort the whole run; warnings are logged and
// execution continues.
type Severity string

const (
	// SeverityFatal halts the controller; there is no partial recovery.
	SeverityFatal Severity = "fatal"

	// SeverityWarning is logged and otherwise ignored.
	SeverityWarning Severity = "warning"
)

// ControlError is the single propagating error type of the controller.
type ControlError struct {
	// Severity is the error classification.
	Severity Severity `json:"severity"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Op is the logical call site (e.g. "intake.list-items").
	Op string `json:"op,omitempty"`

	// Node is the address of the node involved, if any.
	Node string `json:"node,omitempty"`

	// Attempts is the number of attempts made before giving up; zero when
	// the error did not come from the retry executor.
	Attempts int `json:"attempts,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ControlError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	if e.Op != "" {
		msg += fmt.Sprintf(" (op=%s", e.Op)
		if e.Node != "" {
			msg += fmt.Sprintf(", node=%s", e.Node)
		}
		if e.Attempts > 0 {
			msg += fmt.Sprintf(", attempts=%d", e.Attempts)
		}
		msg += ")"
	} else if e.Node != "" {
		msg += fmt.Sprintf(" (node=%s)", e.Node)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ControlError) Unwrap() error {
	return e.Err
}

// NewFatal creates a fatal error.
func NewFatal(message string, err error) *ControlError {
	return &ControlError{Severity: SeverityFatal, Message: message, Err: err}
}

// NewFatalf creates a fatal error with a formatted message.
func NewFatalf(format string, args ...interface{}) *ControlError {
	return &ControlError{Severity: SeverityFatal, Message: fmt.Sprintf(format, args...)}
}

// NewWarning creates a warning error.
func NewWarning(message string, err error) *ControlError {
	return &ControlError{Severity: SeverityWarning, Message: message, Err: err}
}

// WithOp adds the logical call site to the error.
func (e *ControlError) WithOp(op string) *ControlError {
	e.Op = op
	return e
}

// WithNode adds the node address to the error.
func (e *ControlError) WithNode(address string) *ControlError {
	e.Node = address
	return e
}

// WithAttempts adds the attempt count to the error.
func (e *ControlError) WithAttempts(attempts int) *ControlError {
	e.Attempts = attempts
	return e
}

// IsFatal returns true if the error chain contains a fatal ControlError.
func IsFatal(err error) bool {
	var e *ControlError
	if errors.As(err, &e) {
		return e.Severity == SeverityFatal
	}
	return false
}

// IsWarning returns true if the error chain contains a warning ControlError.
func IsWarning(err error) bool {
	var e *ControlError
	if errors.As(err, &e) {
		return e.Severity == SeverityWarning
	}
	return false
}
