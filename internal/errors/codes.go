package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents internal error codes for catalog operations
type ErrorCode int

const (
	// Success
	ErrCodeOK ErrorCode = 0

	// Caller errors, rejected synchronously
	ErrCodeValidation ErrorCode = 1000

	// Fetch outcomes, absorbed into status flags
	ErrCodeStaleResponse ErrorCode = 2000
	ErrCodeNetwork       ErrorCode = 2001
	ErrCodeRateLimited   ErrorCode = 2002
	ErrCodeCapExceeded   ErrorCode = 2003

	ErrCodeNotFound ErrorCode = 3000
	ErrCodeInternal ErrorCode = 4000
)

// String returns the code name used in logs and API responses
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "OK"
	case ErrCodeValidation:
		return "VALIDATION_ERROR"
	case ErrCodeStaleResponse:
		return "STALE_RESPONSE"
	case ErrCodeNetwork:
		return "NETWORK_ERROR"
	case ErrCodeRateLimited:
		return "RATE_LIMITED"
	case ErrCodeCapExceeded:
		return "CAP_EXCEEDED"
	case ErrCodeNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}

// CatalogError represents a structured error with code and context
type CatalogError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *CatalogError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *CatalogError) Unwrap() error {
	return e.Cause
}

// Is matches any CatalogError carrying the same code
func (e *CatalogError) Is(target error) bool {
	t, ok := target.(*CatalogError)
	return ok && t.Code == e.Code
}

// HTTPStatus maps the error code to an HTTP status code
func (e *CatalogError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeOK:
		return http.StatusOK
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewCatalogError creates a new CatalogError
func NewCatalogError(code ErrorCode, message string, cause error) *CatalogError {
	return &CatalogError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// WithDetail adds a detail to the error
func (e *CatalogError) WithDetail(key string, value interface{}) *CatalogError {
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons
var (
	ErrValidation    = &CatalogError{Code: ErrCodeValidation}
	ErrStaleResponse = &CatalogError{Code: ErrCodeStaleResponse}
	ErrNetwork       = &CatalogError{Code: ErrCodeNetwork}
	ErrRateLimited   = &CatalogError{Code: ErrCodeRateLimited}
	ErrNotFound      = &CatalogError{Code: ErrCodeNotFound}
)

// Convenience constructors for common errors

func Validation(message string) *CatalogError {
	return NewCatalogError(ErrCodeValidation, message, nil)
}

func UnknownDimension(name string) *CatalogError {
	return NewCatalogError(ErrCodeValidation, fmt.Sprintf("unknown dimension %q", name), nil).
		WithDetail("dimension", name)
}

func InvalidValue(dimension, value, reason string) *CatalogError {
	return NewCatalogError(ErrCodeValidation, fmt.Sprintf("invalid value %q for %s: %s", value, dimension, reason), nil).
		WithDetail("dimension", dimension).
		WithDetail("value", value).
		WithDetail("reason", reason)
}

func StaleResponse(component string, got, latest uint64) *CatalogError {
	return NewCatalogError(ErrCodeStaleResponse, fmt.Sprintf("stale %s response: sequence %d, latest %d", component, got, latest), nil).
		WithDetail("component", component).
		WithDetail("sequence", got).
		WithDetail("latest", latest)
}

func NetworkError(message string, cause error) *CatalogError {
	return NewCatalogError(ErrCodeNetwork, message, cause)
}

func RateLimited(retryAfter time.Duration) *CatalogError {
	return NewCatalogError(ErrCodeRateLimited, fmt.Sprintf("rate limited, retry after %v", retryAfter), nil).
		WithDetail("retry_after_ms", retryAfter.Milliseconds())
}

func CapExceeded(total, limit int) *CatalogError {
	return NewCatalogError(ErrCodeCapExceeded, fmt.Sprintf("%d matches exceed cap of %d", total, limit), nil).
		WithDetail("total", total).
		WithDetail("cap", limit)
}

func NotFound(kind, id string) *CatalogError {
	return NewCatalogError(ErrCodeNotFound, fmt.Sprintf("%s not found: %s", kind, id), nil).
		WithDetail("kind", kind).
		WithDetail("id", id)
}

func InternalError(message string, cause error) *CatalogError {
	return NewCatalogError(ErrCodeInternal, message, cause)
}

// IsCatalogError checks if an error is, or wraps, a CatalogError
func IsCatalogError(err error) bool {
	var ce *CatalogError
	return stderrors.As(err, &ce)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	return GetCode(err) == ErrCodeValidation
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var ce *CatalogError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternal
}

// RetryAfter returns the server-suggested delay carried by a RateLimited error
func RetryAfter(err error) (time.Duration, bool) {
	var ce *CatalogError
	if !stderrors.As(err, &ce) || ce.Code != ErrCodeRateLimited {
		return 0, false
	}
	ms, ok := ce.Details["retry_after_ms"].(int64)
	if !ok {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

// Detail returns a detail value carried by a CatalogError anywhere in err's chain
func Detail(err error, key string) (interface{}, bool) {
	var ce *CatalogError
	if !stderrors.As(err, &ce) || ce.Details == nil {
		return nil, false
	}
	v, ok := ce.Details[key]
	return v, ok
}
