package errors

import (
	"errors"
	"fmt"
)

var (
	// Ledger errors
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrRefundNotFound      = errors.New("refund not found")
	ErrInvalidPaymentState = errors.New("payment state does not permit this operation")
	ErrRefundLimitExceeded = errors.New("refund amount exceeds the outstanding limit")
	ErrInvalidTransition   = errors.New("invalid state transition")

	// Merchant errors
	ErrMerchantNotFound = errors.New("merchant not found")

	// Idempotency errors
	ErrIdempotencyConflict   = errors.New("idempotency key reused with a different request")
	ErrIdempotencyInProgress = errors.New("request with this idempotency key is still in progress")

	// Webhook errors
	ErrAttemptNotFound  = errors.New("webhook attempt not found")
	ErrAttemptSucceeded = errors.New("webhook attempt already succeeded")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Infrastructure errors
	ErrUnavailable = errors.New("service temporarily unavailable")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
