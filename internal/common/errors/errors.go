// Package errors provides standardized error handling for alert dispatch and BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Operator-side submit failures. Never retried.
const (
	ErrCodeOffline          ErrorCode = "ALERT_OFFLINE"
	ErrCodeInvalidEmail     ErrorCode = "INVALID_EMAIL"
	ErrCodeMissingContent   ErrorCode = "MISSING_CONTENT"
	ErrCodeNoPhoneNumbers   ErrorCode = "NO_PHONE_NUMBERS"
	ErrCodeInvalidPhone     ErrorCode = "INVALID_PHONE"
	ErrCodeDispatchInFlight ErrorCode = "DISPATCH_IN_FLIGHT"
)

// Dispatch backend and transport failures.
const (
	ErrCodeDispatchTransport          ErrorCode = "DISPATCH_TRANSPORT_FAILED"
	ErrCodeRequestValidationFailed    ErrorCode = "REQUEST_VALIDATION_FAILED"
	ErrCodeInputParsingFailed         ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeEmailSendFailed            ErrorCode = "EMAIL_SEND_FAILED"
	ErrCodeSMSProviderNotConfigured   ErrorCode = "SMS_PROVIDER_NOT_CONFIGURED"
	ErrCodeProviderVerificationFailed ErrorCode = "PROVIDER_VERIFICATION_FAILED"
	ErrCodeDatabaseConnectionFailed   ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed       ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeQueryExecutionFailed       ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeElasticsearchIndexFailed   ErrorCode = "ELASTICSEARCH_INDEX_FAILED"
	ErrCodeEventPublishFailed         ErrorCode = "EVENT_PUBLISH_FAILED"
	ErrCodeAuthenticationFailed       ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeInternal                   ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any *StandardError carrying the same code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first StandardError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// AsStandard returns the first StandardError in err's chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	ok := stderrors.As(err, &stdErr)
	return stdErr, ok
}

// Sentinels for errors.Is comparisons.
var (
	ErrOffline          = &StandardError{Code: ErrCodeOffline}
	ErrInvalidEmail     = &StandardError{Code: ErrCodeInvalidEmail}
	ErrMissingContent   = &StandardError{Code: ErrCodeMissingContent}
	ErrNoPhoneNumbers   = &StandardError{Code: ErrCodeNoPhoneNumbers}
	ErrInvalidPhone     = &StandardError{Code: ErrCodeInvalidPhone}
	ErrDispatchInFlight = &StandardError{Code: ErrCodeDispatchInFlight}
	ErrDispatchFailed   = &StandardError{Code: ErrCodeDispatchTransport}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
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

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewOfflineError reports a submit attempted without connectivity.
func NewOfflineError() *StandardError {
	return newError(ErrCodeOffline, "Cannot send alerts while offline", "", false)
}

func NewInvalidEmailError(email string) *StandardError {
	err := newError(ErrCodeInvalidEmail, "Invalid recipient email address", fmt.Sprintf("email: %q", email), false)
	err.Metadata = map[string]interface{}{"field": "recipientEmail"}
	return err
}

func NewMissingContentError(missing ...string) *StandardError {
	return newError(ErrCodeMissingContent, "Subject and message are required", strings.Join(missing, ", "), false)
}

func NewNoPhoneNumbersError() *StandardError {
	return newError(ErrCodeNoPhoneNumbers, "At least one phone number is required for SMS alerts", "", false)
}

// NewInvalidPhoneError carries the number of offending entries in Metadata["invalidCount"].
func NewInvalidPhoneError(invalid []string) *StandardError {
	err := newError(ErrCodeInvalidPhone,
		fmt.Sprintf("%d invalid phone number(s)", len(invalid)),
		strings.Join(invalid, ", "), false)
	err.Metadata = map[string]interface{}{"invalidCount": len(invalid)}
	return err
}

func NewDispatchInFlightError() *StandardError {
	return newError(ErrCodeDispatchInFlight, "An alert dispatch is already in progress", "", false)
}

// NewDispatchTransportError wraps a failed call to the dispatch endpoint.
func NewDispatchTransportError(cause error) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	err := newError(ErrCodeDispatchTransport, "Alert dispatch failed", details, true)
	err.cause = cause
	return err
}

func NewRequestValidationError(details string) *StandardError {
	return newError(ErrCodeRequestValidationFailed, "Dispatch request validation failed", details, false)
}

func NewInputParsingError(err error) *StandardError {
	stdErr := newError(ErrCodeInputParsingFailed, "Failed to parse job variables", err.Error(), false)
	stdErr.cause = err
	return stdErr
}

func NewEmailSendFailedError(err error) *StandardError {
	stdErr := newError(ErrCodeEmailSendFailed, "Failed to send alert email", err.Error(), true)
	stdErr.cause = err
	return stdErr
}

func NewSMSProviderNotConfiguredError(details string) *StandardError {
	return newError(ErrCodeSMSProviderNotConfigured, "SMS provider is not configured", details, false)
}

func NewProviderVerificationError(provider string, err error) *StandardError {
	stdErr := newError(ErrCodeProviderVerificationFailed,
		fmt.Sprintf("Provider '%s' verification failed", provider), err.Error(), true)
	stdErr.cause = err
	return stdErr
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	stdErr := newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
	stdErr.cause = err
	return stdErr
}

func NewDatabaseInsertFailedError(table string, err error) *StandardError {
	stdErr := newError(ErrCodeDatabaseInsertFailed, "Database insert failed",
		fmt.Sprintf("table: %s, error: %s", table, err.Error()), true)
	stdErr.cause = err
	return stdErr
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	stdErr := newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
	stdErr.cause = err
	return stdErr
}

func NewElasticsearchIndexError(index string, err error) *StandardError {
	stdErr := newError(ErrCodeElasticsearchIndexFailed, "Elasticsearch indexing failed",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
	stdErr.cause = err
	return stdErr
}

func NewEventPublishError(topic string, err error) *StandardError {
	stdErr := newError(ErrCodeEventPublishFailed, "Event publish failed",
		fmt.Sprintf("topic: %s, error: %s", topic, err.Error()), true)
	stdErr.cause = err
	return stdErr
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthenticationFailed, "Authentication failed", details, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeRequestValidationFailed:    "ALERT_REQUEST_INVALID",
	ErrCodeInputParsingFailed:         "ALERT_REQUEST_INVALID",
	ErrCodeEmailSendFailed:            "ALERT_EMAIL_FAILED",
	ErrCodeSMSProviderNotConfigured:   "ALERT_SMS_NOT_CONFIGURED",
	ErrCodeProviderVerificationFailed: "ALERT_PROVIDER_UNAVAILABLE",
	ErrCodeDispatchTransport:          "ALERT_DISPATCH_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeEmailSendFailed,
		ErrCodeDispatchTransport,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeQueryExecutionFailed:
		return 3

	case ErrCodeProviderVerificationFailed,
		ErrCodeElasticsearchIndexFailed,
		ErrCodeEventPublishFailed:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeOffline || code == ErrCodeDispatchInFlight:
		return "OPERATOR"
	case strings.Contains(codeStr, "SEND") || strings.Contains(codeStr, "SMS") || strings.Contains(codeStr, "PROVIDER"):
		return "PROVIDER"
	case strings.Contains(codeStr, "EMAIL") || strings.Contains(codeStr, "PHONE") || strings.Contains(codeStr, "CONTENT"):
		return "VALIDATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PARSING"):
		return "VALIDATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "EVENT"):
		return "MESSAGING"
	case strings.Contains(codeStr, "DISPATCH"):
		return "TRANSPORT"
	default:
		return "OTHER"
	}
}
