package contract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("record not found")
	ErrToolInvocation      = errors.New("tool invocation failed")
	ErrUnavailable         = errors.New("record store unavailable")
	ErrNegotiationConflict = errors.New("negotiation conflict")
	ErrInvalidQuery        = errors.New("query is empty")
	ErrModelInvoke         = errors.New("model invoke failed")
	ErrDependencyFailed    = errors.New("dependency failed")
)

// Wire error codes of the Tool Invocation Protocol.
const (
	CodeValidation       = "validation_error"
	CodeNotFound         = "not_found"
	CodeUnavailable      = "unavailable"
	CodeUnknownOperation = "unknown_operation"
	CodeInternal         = "internal"
	CodeConflict         = "negotiation_conflict"
	CodeToolInvocation   = "tool_invocation_error"
	CodeDependencyFailed = "dependency_failed"
)

// ErrorCode classifies err into a machine readable code. A skipped intent
// wraps its dependency's cause, so the dependency code is checked first.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDependencyFailed):
		return CodeDependencyFailed
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnavailable):
		return CodeUnavailable
	case errors.Is(err, ErrNegotiationConflict):
		return CodeConflict
	case errors.Is(err, ErrToolInvocation):
		return CodeToolInvocation
	default:
		return CodeInternal
	}
}

// FromCode rebuilds a taxonomy error from a wire error object.
func FromCode(code, message string) error {
	message = strings.TrimSpace(message)
	switch code {
	case CodeValidation:
		return fmt.Errorf("%w: %s", ErrValidation, message)
	case CodeNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case CodeUnavailable:
		return fmt.Errorf("%w: %s", ErrUnavailable, message)
	default:
		return fmt.Errorf("%w: %s: %s", ErrToolInvocation, code, message)
	}
}

// Retryable reports whether err is a transient store or transport failure.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Position is one agent's stance in a negotiation.
type Position struct {
	Agent   AgentRole `json:"agent"`
	Intent  Intent    `json:"intent"`
	Summary string    `json:"summary"`
}

// NegotiationConflictError reports contradictory guidance that precedence could not settle.
type NegotiationConflictError struct {
	Intent    Intent
	Positions []Position
}

func (e *NegotiationConflictError) Error() string {
	parts := make([]string, 0, len(e.Positions))
	for _, p := range e.Positions {
		parts = append(parts, fmt.Sprintf("%s says %q", p.Agent, p.Summary))
	}
	return fmt.Sprintf("%s: intent=%s: %s", ErrNegotiationConflict, e.Intent, strings.Join(parts, "; "))
}

func (e *NegotiationConflictError) Unwrap() error { return ErrNegotiationConflict }

// EscalationRequired is a control signal, not a failure: the Router must force the
// escalation path when it sees one.
type EscalationRequired struct {
	CustomerID int64
	Reason     string
}

func (e *EscalationRequired) Error() string {
	return fmt.Sprintf("escalation required for customer=%d: %s", e.CustomerID, e.Reason)
}

// AsEscalation extracts an escalation signal from err.
func AsEscalation(err error) (*EscalationRequired, bool) {
	var sig *EscalationRequired
	if errors.As(err, &sig) {
		return sig, true
	}
	return nil, false
}
