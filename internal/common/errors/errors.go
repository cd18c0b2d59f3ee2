// Package errors provides the standardized error taxonomy for lead intake and delivery.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// ErrCodeConfigurationMissing marks a sink without credentials. It is a skip, not a failure.
	ErrCodeConfigurationMissing ErrorCode = "CONFIGURATION_MISSING"
	// ErrCodeTransportFailure covers network errors, non-2xx responses and malformed bodies.
	ErrCodeTransportFailure ErrorCode = "TRANSPORT_FAILURE"
	ErrCodeTimeout          ErrorCode = "TIMEOUT"
	// ErrCodeCanceled marks a delivery abandoned because its context was canceled.
	ErrCodeCanceled  ErrorCode = "CANCELED"
	ErrCodeSinkPanic ErrorCode = "SINK_PANIC"
	// ErrCodeUnknownStage marks a sink registered with a stage the coordinator never runs.
	ErrCodeUnknownStage ErrorCode = "UNKNOWN_STAGE"
	// ErrCodeValidationFailure only happens in the lead validator, before dispatch.
	ErrCodeValidationFailure ErrorCode = "VALIDATION_FAILURE"
	ErrCodeInputParsing      ErrorCode = "INPUT_PARSING_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// BPMNError represents an error that can be thrown to the Zeebe workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Zeebe job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// NewConfigurationMissingError reports which setting a sink is missing.
func NewConfigurationMissingError(sink, setting string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationMissing,
		Message:   "not configured",
		Details:   fmt.Sprintf("sink: %s, missing: %s", sink, setting),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportFailureError wraps a network or protocol error from a third-party API.
func NewTransportFailureError(target string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailure,
		Message:   "delivery to " + target + " failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStatusError is a TransportFailure for a non-2xx response.
func NewStatusError(target string, status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailure,
		Message:   "delivery to " + target + " failed",
		Details:   fmt.Sprintf("status %d: %s", status, truncate(body, 512)),
		Retryable: status >= 500 || status == 429,
		Metadata:  map[string]interface{}{"status": status},
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(target string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   "delivery to " + target + " timed out",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewCanceledError(target string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCanceled,
		Message:   "delivery to " + target + " was canceled",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewUnknownStageError(sink, stage string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownStage,
		Message:   "sink " + sink + " has an unknown stage",
		Details:   stage,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationFailureError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailure,
		Message:   "lead validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInputParsingError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputParsing,
		Message:   "failed to parse input",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// Classify turns any transport-level error into a StandardError, separating deadline
// expiry from other failures.
func Classify(target string, err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || isTimeoutMessage(err) {
		return NewTimeoutError(target, err)
	}
	if stderrors.Is(err, context.Canceled) {
		return NewCanceledError(target, err)
	}
	return NewTransportFailureError(target, err)
}

// CodeOf extracts the error code, or "UNKNOWN_ERROR".
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return "UNKNOWN_ERROR"
}

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationFailure: "LEAD_VALIDATION_FAILED",
	ErrCodeInputParsing:      "LEAD_INPUT_INVALID",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTransportFailure:
		return 3
	case ErrCodeTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Zeebe.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func isTimeoutMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
