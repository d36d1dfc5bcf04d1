package application

import (
	"context"
	"errors"
	"net/http"

	"github.com/marketloop/order-engine/internal/domain"
	"github.com/marketloop/order-engine/internal/infrastructure/persistence/postgres"
)

// ErrorCategory represents the nature of an error for retry logic
type ErrorCategory string

const (
	CategoryTransient      ErrorCategory = "TRANSIENT"
	CategoryPermanent      ErrorCategory = "PERMANENT"
	CategoryBusinessRule   ErrorCategory = "BUSINESS_RULE"
	CategoryClientError    ErrorCategory = "CLIENT_ERROR"
	CategoryInfrastructure ErrorCategory = "INFRASTRUCTURE"
)

// retryable is satisfied by upstream processor errors without importing the
// infrastructure package.
type retryable interface {
	IsRetryable() bool
}

// CategorizeError determines error category for retry and logging purposes
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	// Context Errors (Transient - network/timeout issues)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	if _, ok := IsPaymentDeclined(err); ok {
		return CategoryPermanent
	}

	// Domain Errors (Business Rules)
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case domain.ErrCodeValidation, domain.ErrCodeMissingRequiredField, domain.ErrCodeInvalidAmount:
			return CategoryClientError
		case domain.ErrCodeNotFound:
			return CategoryClientError
		default:
			return CategoryBusinessRule
		}
	}

	// Service/Application Errors
	if svcErr, ok := IsServiceError(err); ok {
		switch svcErr.Code {
		case ErrCodeIdempotencyMismatch, ErrCodeInvalidInput, ErrCodeUnauthenticated:
			return CategoryClientError
		case ErrCodeInternal:
			return CategoryInfrastructure
		case ErrCodeRequestProcessing, ErrCodeTimeout, ErrCodeUpstreamUnavailable:
			return CategoryTransient
		case ErrCodePaymentDeclined:
			return CategoryPermanent
		}
	}

	// Persistence Errors
	if errors.Is(err, postgres.ErrOrderNotFound) ||
		errors.Is(err, postgres.ErrListingNotFound) ||
		errors.Is(err, postgres.ErrRefundRequestNotFound) {
		return CategoryClientError
	}

	// Processor errors carry their own retryability
	var upstream retryable
	if errors.As(err, &upstream) {
		if upstream.IsRetryable() {
			return CategoryTransient
		}
		return CategoryPermanent
	}

	// Default: Transient (safe fallback)
	return CategoryTransient
}

// IsRetryable returns true if the error category suggests retry
func IsRetryable(err error) bool {
	category := CategorizeError(err)
	return category == CategoryTransient || category == CategoryInfrastructure
}

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if _, ok := IsPaymentDeclined(err); ok {
		return http.StatusPaymentRequired
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case domain.ErrCodeConflict, domain.ErrCodeRefundSettled:
			return http.StatusConflict
		case domain.ErrCodeForbidden:
			return http.StatusForbidden
		case domain.ErrCodeNotFound:
			return http.StatusNotFound
		default:
			return http.StatusBadRequest
		}
	}

	switch {
	case errors.Is(err, postgres.ErrOrderNotFound),
		errors.Is(err, postgres.ErrListingNotFound),
		errors.Is(err, postgres.ErrRefundRequestNotFound):
		return http.StatusNotFound

	case errors.Is(err, postgres.ErrDuplicateIdempotencyKey):
		return http.StatusConflict

	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}

	// Default to 500
	return http.StatusInternalServerError
}

// ToErrorCode clear error code for API responses
func ToErrorCode(err error) string {
	if _, ok := IsPaymentDeclined(err); ok {
		return ErrCodePaymentDeclined
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	if errors.Is(err, postgres.ErrOrderNotFound) {
		return "ORDER_NOT_FOUND"
	}
	if errors.Is(err, postgres.ErrListingNotFound) {
		return "LISTING_NOT_FOUND"
	}
	if errors.Is(err, postgres.ErrRefundRequestNotFound) {
		return "REFUND_REQUEST_NOT_FOUND"
	}
	if errors.Is(err, postgres.ErrDuplicateIdempotencyKey) {
		return "DUPLICATE_IDEMPOTENCY_KEY"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "TIMEOUT"
	}

	return ErrCodeInternal
}
