package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for consistent error handling across the checkout.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a transport-level failure talking to the
// backend proxy: non-2xx status, network error, timeout or undecodable body.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a single invalid input field.
type ErrValidation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrValidationSet carries every failing field of a form at once.
type ErrValidationSet struct {
	Fields []ErrValidation `json:"fields"`
}

func (e *ErrValidationSet) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return fmt.Sprintf("validation failed on %d field(s): %s", len(e.Fields), strings.Join(names, ", "))
}

// Add appends a field error.
func (e *ErrValidationSet) Add(field, code, message string) {
	e.Fields = append(e.Fields, ErrValidation{Field: field, Code: code, Message: message})
}

// Has reports whether the given field failed.
func (e *ErrValidationSet) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// ErrOrNil returns nil when no field failed.
func (e *ErrValidationSet) ErrOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ErrBusinessFailure is a rejection reported by the gateway or the backend:
// declined charge, registration refused. Message is safe to show to the user.
type ErrBusinessFailure struct {
	Operation string
	Message   string
}

func (e *ErrBusinessFailure) Error() string {
	return e.Message
}

// ErrInvalidLink marks a slug that does not resolve to a payment link.
// It is terminal for the whole session.
type ErrInvalidLink struct {
	Slug string
}

func (e *ErrInvalidLink) Error() string {
	return "Link de pagamento inválido ou expirado"
}

// ErrInvalidTransition indicates an operation not allowed in the current state.
type ErrInvalidTransition struct {
	From   string
	Action string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot %s while in %s", e.Action, e.From)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrSessionClosed is returned by every operation on a closed session.
var ErrSessionClosed = errors.New("checkout session closed")

// ErrSessionChanged is returned when the session moved on (back, reset,
// regenerate, close) while a gateway call was in flight. The late result
// has been discarded.
var ErrSessionChanged = errors.New("checkout session changed while request was in flight")
