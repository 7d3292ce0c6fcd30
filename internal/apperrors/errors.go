// Package apperrors defines the business error taxonomy shared by services and handlers.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to clients
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeNotCompleted      = "NOT_COMPLETED"
	CodeNotEligible       = "NOT_ELIGIBLE"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeInternal          = "INTERNAL_ERROR"
)

// AppError is implemented by every error in the taxonomy
type AppError interface {
	error
	Status() int
	Code() string
	Details() map[string]interface{}
}

// ValidationError reports malformed input
type ValidationError struct {
	Field    string
	Message  string
	Expected interface{}
	Received interface{}
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Status() int   { return http.StatusBadRequest }
func (e *ValidationError) Code() string  { return CodeValidation }
func (e *ValidationError) Details() map[string]interface{} {
	d := map[string]interface{}{"field": e.Field}
	if e.Expected != nil {
		d["expected"] = e.Expected
	}
	if e.Received != nil {
		d["received"] = e.Received
	}
	return d
}

// NewValidation creates a ValidationError for a single field
func NewValidation(field, message string, expected, received interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Expected: expected, Received: received}
}

// AuthorizationError reports a caller whose role may not perform the action
type AuthorizationError struct {
	Action       string
	RequiredRole string
	ActualRole   string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q may not %s", e.ActualRole, e.Action)
}
func (e *AuthorizationError) Status() int  { return http.StatusForbidden }
func (e *AuthorizationError) Code() string { return CodeForbidden }
func (e *AuthorizationError) Details() map[string]interface{} {
	return map[string]interface{}{"action": e.Action, "requiredRole": e.RequiredRole, "role": e.ActualRole}
}

// NotFoundError reports a missing resource
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Resource, e.ID) }
func (e *NotFoundError) Status() int   { return http.StatusNotFound }
func (e *NotFoundError) Code() string  { return CodeNotFound }
func (e *NotFoundError) Details() map[string]interface{} {
	return map[string]interface{}{"resource": e.Resource, "id": e.ID}
}

// NotCompletedError reports an action that needs a progress record that does not exist yet
type NotCompletedError struct {
	GameID string
}

func (e *NotCompletedError) Error() string {
	return fmt.Sprintf("complete game %s first", e.GameID)
}
func (e *NotCompletedError) Status() int  { return http.StatusBadRequest }
func (e *NotCompletedError) Code() string { return CodeNotCompleted }
func (e *NotCompletedError) Details() map[string]interface{} {
	return map[string]interface{}{"gameId": e.GameID}
}

// NotEligibleError reports unmet badge or replay preconditions
type NotEligibleError struct {
	Reason  string
	Missing []string
	Extra   map[string]interface{}
}

func (e *NotEligibleError) Error() string { return e.Reason }
func (e *NotEligibleError) Status() int   { return http.StatusBadRequest }
func (e *NotEligibleError) Code() string  { return CodeNotEligible }
func (e *NotEligibleError) Details() map[string]interface{} {
	d := map[string]interface{}{}
	if e.Missing != nil {
		d["missing"] = e.Missing
	}
	for k, v := range e.Extra {
		d[k] = v
	}
	return d
}

// InsufficientFundsError reports a wallet balance below a required amount
type InsufficientFundsError struct {
	Required  int
	Available int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("need %d more coins", e.Required-e.Available)
}
func (e *InsufficientFundsError) Status() int  { return http.StatusBadRequest }
func (e *InsufficientFundsError) Code() string { return CodeInsufficientFunds }
func (e *InsufficientFundsError) Details() map[string]interface{} {
	return map[string]interface{}{
		"required":  e.Required,
		"available": e.Available,
		"shortfall": e.Required - e.Available,
	}
}

// PersistenceError wraps a storage failure. Its message is never shown to clients.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }
func (e *PersistenceError) Status() int   { return http.StatusInternalServerError }
func (e *PersistenceError) Code() string  { return CodeInternal }
func (e *PersistenceError) Details() map[string]interface{} {
	return nil
}

// Persistence wraps err as a PersistenceError unless it already belongs to the taxonomy
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr AppError
	if errors.As(err, &appErr) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// As extracts the taxonomy error from err. Unknown errors map to a PersistenceError.
func As(err error) AppError {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &PersistenceError{Op: "unexpected", Err: err}
}
