package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Session lifecycle
	ErrCodeDuplicateSession    ErrorCode = "DUPLICATE_SESSION"
	ErrCodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionNotConnected ErrorCode = "SESSION_NOT_CONNECTED"
	ErrCodeQRUnavailable       ErrorCode = "QR_UNAVAILABLE"

	// Delivery
	ErrCodeChannelTransport ErrorCode = "CHANNEL_TRANSPORT_ERROR"
	ErrCodeMediaDownload    ErrorCode = "MEDIA_DOWNLOAD_ERROR"

	// Collaborators
	ErrCodePersistenceWrite ErrorCode = "PERSISTENCE_WRITE_ERROR"
	ErrCodeResponder        ErrorCode = "RESPONDER_ERROR"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func DuplicateSession(sessionID string) *AppError {
	return New(ErrCodeDuplicateSession, fmt.Sprintf("Session %q already exists", sessionID))
}

func SessionNotFound(sessionID string) *AppError {
	return New(ErrCodeSessionNotFound, fmt.Sprintf("Session %q not found", sessionID))
}

func SessionNotConnected(sessionID string) *AppError {
	return New(ErrCodeSessionNotConnected, fmt.Sprintf("Session %q is not connected", sessionID))
}

func QRUnavailable(sessionID string) *AppError {
	return New(ErrCodeQRUnavailable, fmt.Sprintf("QR code for session %q is not available", sessionID))
}

func ChannelTransport(cause error) *AppError {
	return Wrap(ErrCodeChannelTransport, "Channel transport error", cause)
}

func MediaDownload(url string, cause error) *AppError {
	return Wrap(ErrCodeMediaDownload, fmt.Sprintf("Failed to download media: %s", url), cause)
}

func PersistenceWrite(cause error) *AppError {
	return Wrap(ErrCodePersistenceWrite, "Failed to write session snapshot", cause)
}

func Responder(cause error) *AppError {
	return Wrap(ErrCodeResponder, "Responder failed to produce a reply", cause)
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// Retryable reports whether err is a transient failure worth retrying.
func Retryable(err error) bool {
	return HasCode(err, ErrCodeChannelTransport) || HasCode(err, ErrCodeMediaDownload)
}
