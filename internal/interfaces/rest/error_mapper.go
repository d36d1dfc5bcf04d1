package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/marketloop/order-engine/internal/application"
)

type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteError maps application errors to HTTP responses. Declines additionally
// carry the processor failure code and the AVS/CVV results.
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	statusCode := application.ToHTTPStatus(err)
	errorCode := application.ToErrorCode(err)

	response := ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    errorCode,
			Message: err.Error(),
		},
	}

	if declined, ok := application.IsPaymentDeclined(err); ok {
		response.Error.Message = declined.Message
		response.Error.Details = map[string]string{
			"failure_code": declined.FailureCode,
			"avs_result":   declined.AVSResult,
			"cvv_result":   declined.CVVResult,
		}
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Error("request failed", "status", statusCode, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
