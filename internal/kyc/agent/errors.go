package agent

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy for agent calls.
type ErrorCategory string

const (
	ErrorTimeout          ErrorCategory = "timeout"
	ErrorBadData          ErrorCategory = "bad_data"
	ErrorProviderOutage   ErrorCategory = "provider_outage"
	ErrorContractMismatch ErrorCategory = "contract_mismatch"
	ErrorInternal         ErrorCategory = "internal"
)

// ErrCircuitOpen is returned without calling the agent while the breaker is open.
var ErrCircuitOpen = errors.New("agent circuit open")

// CallError wraps an agent failure with its category.
type CallError struct {
	Category   ErrorCategory
	Endpoint   string
	Message    string
	StatusCode int
	Underlying error
}

func (e *CallError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("agent %s [%s]: %s: %v", e.Endpoint, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("agent %s [%s]: %s", e.Endpoint, e.Category, e.Message)
}

func (e *CallError) Unwrap() error {
	return e.Underlying
}

func newCallError(category ErrorCategory, endpoint, message string, underlying error) *CallError {
	return &CallError{Category: category, Endpoint: endpoint, Message: message, Underlying: underlying}
}

// Category extracts the failure category, defaulting to internal.
func Category(err error) ErrorCategory {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Category
	}
	if errors.Is(err, ErrCircuitOpen) {
		return ErrorProviderOutage
	}
	return ErrorInternal
}
