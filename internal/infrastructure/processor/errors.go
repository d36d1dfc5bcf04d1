package processor

import (
	"errors"
	"fmt"
)

// ProcessorError is a structured rejection from the payment processor's API.
type ProcessorError struct {
	Code       string
	Message    string
	StatusCode int
	AVSResult  string
	CVVResult  string
}

type processorErrorResponse struct {
	Err       string `json:"error"`
	Message   string `json:"message"`
	AVSResult string `json:"avs_result"`
	CVVResult string `json:"cvv_result"`
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("processor error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

func (e *ProcessorError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// IsDecline reports whether the processor rejected the charge itself rather
// than the request.
func (e *ProcessorError) IsDecline() bool {
	return e.StatusCode == 402
}

func IsProcessorError(err error) (*ProcessorError, bool) {
	var procErr *ProcessorError
	ok := errors.As(err, &procErr)
	return procErr, ok
}
