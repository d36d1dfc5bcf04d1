package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
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

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeValidation           = "VALIDATION"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeReservationExpired   = "RESERVATION_EXPIRED"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrCodeRefundSettled        = "REFUND_ALREADY_SETTLED"
)

var (
	ErrInvalidTransition = &DomainError{Code: ErrCodeInvalidTransition, Message: "invalid state transition"}
	ErrInvalidAmount     = &DomainError{Code: ErrCodeInvalidAmount, Message: "invalid amount"}
)

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewValidationError(msg string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

func NewConflictError(msg string) *DomainError {
	return &DomainError{
		Code:    ErrCodeConflict,
		Message: msg,
	}
}

func NewForbiddenError(msg string) *DomainError {
	return &DomainError{
		Code:    ErrCodeForbidden,
		Message: msg,
	}
}

func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

func NewReservationExpiredError(orderID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeReservationExpired,
		Message: fmt.Sprintf("reservation for order %s has expired, re-reserve the listing", orderID),
	}
}

// NewInvalidTransitionError reports the actual current state so clients can
// resynchronize.
func NewInvalidTransitionError(current, target string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", current, target),
		Err:     ErrInvalidTransition,
	}
}

func NewRefundSettledError(orderID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeRefundSettled,
		Message: fmt.Sprintf("order %s already has a settled refund", orderID),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
