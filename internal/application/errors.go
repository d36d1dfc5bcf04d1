package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeIdempotencyMismatch = "IDEMPOTENCY_MISMATCH"
	ErrCodeRequestProcessing   = "REQUEST_PROCESSING"
	ErrCodeTimeout             = "TIMEOUT"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodePaymentDeclined     = "PAYMENT_DECLINED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"
)

func NewIdempotencyMismatchError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeIdempotencyMismatch,
		Message:    "Idempotency key reused with different request parameters",
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewRequestProcessingError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeRequestProcessing,
		Message:    "Request is being processed. Please retry in a moment.",
		HTTPStatus: http.StatusAccepted,
	}
}

func NewTimeoutError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeTimeout,
		Message:    "Request timed out waiting for completion",
		HTTPStatus: http.StatusRequestTimeout,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewUnauthenticatedError() *ServiceError {
	return &ServiceError{
		Code:       ErrCodeUnauthenticated,
		Message:    "Missing or invalid caller identity",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewUpstreamUnavailableError signals a processor/network failure. Safe for the
// caller to retry with the same idempotency key.
func NewUpstreamUnavailableError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeUpstreamUnavailable,
		Message:    "Payment processor is unavailable, retry with the same idempotency key",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// PaymentDeclinedError carries the processor failure code plus AVS/CVV results
// so clients can branch on them, and a user-safe message from the fixed
// decline table.
type PaymentDeclinedError struct {
	FailureCode string
	AVSResult   string
	CVVResult   string
	Message     string
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment declined [%s]: %s", e.FailureCode, e.Message)
}

func IsPaymentDeclined(err error) (*PaymentDeclinedError, bool) {
	var declined *PaymentDeclinedError
	ok := errors.As(err, &declined)
	return declined, ok
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
