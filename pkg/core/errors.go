package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of an exchange error.
type ErrorType int

// Error type constants categorize errors for proper handling.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork indicates the transport failed to complete the request.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates the request exceeded its deadline.
	ErrorTypeTimeout
	// ErrorTypeRateLimit indicates rate limit was exceeded.
	ErrorTypeRateLimit
	// ErrorTypeAuthentication indicates missing, invalid or expired credentials.
	ErrorTypeAuthentication
	// ErrorTypeBadRequest indicates the venue rejected the request parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates the requested resource does not exist.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a server-side error.
	ErrorTypeServerError
	// ErrorTypeInsufficientFunds indicates account lacks required balance.
	ErrorTypeInsufficientFunds
	// ErrorTypeInvalidOrder indicates the order violates exchange rules.
	ErrorTypeInvalidOrder
	// ErrorTypeValidation indicates a caller argument was missing or malformed.
	// It is raised before any network call.
	ErrorTypeValidation
	// ErrorTypeDataContract indicates a response lacks a field that cannot be defaulted.
	ErrorTypeDataContract
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"NETWORK",
		"TIMEOUT",
		"RATE_LIMIT",
		"AUTHENTICATION",
		"BAD_REQUEST",
		"NOT_FOUND",
		"SERVER_ERROR",
		"INSUFFICIENT_FUNDS",
		"INVALID_ORDER",
		"VALIDATION",
		"DATA_CONTRACT",
	}[t]
}

// Sentinel errors for common error conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrNoCredentials is returned when no API credentials are configured.
	ErrNoCredentials = errors.New("no credentials configured")
	// ErrNoAPIKey is returned when no API key is available.
	ErrNoAPIKey = errors.New("no available API key")
)

// ExchangeError represents a structured error raised by the connector or returned by the venue.
type ExchangeError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code from the response, 0 when no response was received.
	StatusCode int `json:"status_code"`
	// Code is a stable error code, or the venue's error_code when it reported one.
	Code string `json:"code"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// RawError contains the original error response for debugging.
	RawError any `json:"raw_error,omitempty"`
	// Exchange identifies which exchange returned this error.
	Exchange string `json:"exchange"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

// Error implements the error interface for ExchangeError.
func (e *ExchangeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s (%d/%s): %s",
			e.Exchange, e.Type, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s (%d): %s",
		e.Exchange, e.Type, e.StatusCode, msg)
}

// Unwrap returns the underlying cause so errors.Is and errors.As see through the wrapper.
func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// WithCode sets the error code and returns the error for chaining.
func (e *ExchangeError) WithCode(code ErrorCode) *ExchangeError {
	e.Code = string(code)
	return e
}

// WithCause sets the underlying error and returns the error for chaining.
func (e *ExchangeError) WithCause(err error) *ExchangeError {
	e.Err = err
	return e
}

// NewExchangeError creates a new ExchangeError with the specified details.
// The timestamp is automatically set to the current time.
func NewExchangeError(exchange string, errorType ErrorType, statusCode int, message string) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Exchange:   exchange,
		Timestamp:  time.Now(),
	}
}

// NewExchangeErrorWithCode creates a new ExchangeError including an exchange-specific error code.
func NewExchangeErrorWithCode(exchange string, errorType ErrorType, statusCode int, code, message string) *ExchangeError {
	e := NewExchangeError(exchange, errorType, statusCode, message)
	e.Code = code
	return e
}

// NewValidationError reports a missing or malformed caller argument.
func NewValidationError(exchange, format string, args ...any) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeValidation, 0, fmt.Sprintf(format, args...)).
		WithCode(ErrCodeValidation)
}

// NewAuthenticationError reports a private call attempted without usable credentials.
func NewAuthenticationError(exchange string, cause error) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeAuthentication, 0, "credentials required").
		WithCode(ErrCodeNoCredentials).
		WithCause(cause)
}

// NewNotFoundError reports that a successful response indicated absence of the resource.
func NewNotFoundError(exchange, format string, args ...any) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeNotFound, 0, fmt.Sprintf(format, args...)).
		WithCode(ErrCodeNotFound)
}

// NewDataContractError reports a response the normalizer cannot safely interpret.
func NewDataContractError(exchange, format string, args ...any) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeDataContract, 0, fmt.Sprintf(format, args...)).
		WithCode(ErrCodeDataContract)
}

// NewTransportError wraps a transport failure; the cause stays reachable through Unwrap.
func NewTransportError(exchange string, cause error) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeNetwork, 0, "transport failure").
		WithCode(ErrCodeNetwork).
		WithCause(cause)
}

func errorTypeOf(err error) (ErrorType, bool) {
	var e *ExchangeError
	if errors.As(err, &e) {
		return e.Type, true
	}
	return ErrorTypeUnknown, false
}

func isType(err error, t ErrorType) bool {
	got, ok := errorTypeOf(err)
	return ok && got == t
}

// IsNetworkError returns true if the error is a transport failure.
func IsNetworkError(err error) bool {
	return isType(err, ErrorTypeNetwork)
}

// IsTimeoutError returns true if the error is a timeout.
func IsTimeoutError(err error) bool {
	return isType(err, ErrorTypeTimeout)
}

// IsRateLimitError returns true if the error is a rate limit violation.
func IsRateLimitError(err error) bool {
	return isType(err, ErrorTypeRateLimit)
}

// IsAuthenticationError returns true if the error is an authentication failure.
// Authentication errors require credential validation and are not retryable.
func IsAuthenticationError(err error) bool {
	return isType(err, ErrorTypeAuthentication)
}

// IsValidationError returns true if a caller argument was rejected before any network call.
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsNotFoundError returns true if the requested resource does not exist.
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsDataContractError returns true if a response could not be normalized.
func IsDataContractError(err error) bool {
	return isType(err, ErrorTypeDataContract)
}

// IsTerminalError returns true if the error indicates a terminal condition.
// Terminal errors should not be retried as they will not succeed.
func IsTerminalError(err error) bool {
	t, ok := errorTypeOf(err)
	if !ok {
		return false
	}
	switch t {
	case ErrorTypeInsufficientFunds, ErrorTypeInvalidOrder, ErrorTypeNotFound,
		ErrorTypeValidation, ErrorTypeAuthentication, ErrorTypeDataContract:
		return true
	}
	return false
}
