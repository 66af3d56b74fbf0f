package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrNotFound     ErrorType = "NOT_FOUND"
	ErrInvalidInput ErrorType = "INVALID_INPUT"
	ErrInternal     ErrorType = "INTERNAL"
	ErrUnauthorized ErrorType = "UNAUTHORIZED"

	// Upstream quota
	ErrRateLimit        ErrorType = "RATE_LIMIT"
	ErrAbuseDetected    ErrorType = "ABUSE_DETECTED"
	ErrRetriesExhausted ErrorType = "RETRIES_EXHAUSTED"

	// Credential lifecycle
	ErrCredentialMissing   ErrorType = "CREDENTIAL_MISSING"
	ErrCredentialExpired   ErrorType = "CREDENTIAL_EXPIRED"
	ErrEncryptionFailure   ErrorType = "ENCRYPTION_FAILURE"
	ErrMalformedCiphertext ErrorType = "MALFORMED_CIPHERTEXT"

	ErrDataIntegrity ErrorType = "DATA_INTEGRITY"
)

// AppError represents an application error
type AppError struct {
	Type      ErrorType
	Message   string
	Cause     error
	Timestamp time.Time
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:      errType,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// IsType reports whether any AppError in err's chain has the given type.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == errType {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrNotFound)
}

// IsRateLimit checks if the error is a primary or secondary rate limit error
func IsRateLimit(err error) bool {
	return IsType(err, ErrRateLimit) || IsType(err, ErrAbuseDetected)
}

// IsRetriesExhausted reports whether the upstream call gave up after its retry budget.
func IsRetriesExhausted(err error) bool {
	return IsType(err, ErrRetriesExhausted)
}

// IsCredentialError reports whether err means the user has to re-authenticate.
func IsCredentialError(err error) bool {
	return IsType(err, ErrCredentialMissing) ||
		IsType(err, ErrCredentialExpired) ||
		IsType(err, ErrMalformedCiphertext) ||
		IsType(err, ErrEncryptionFailure)
}

// IsDataIntegrity checks if the error is a data integrity violation
func IsDataIntegrity(err error) bool {
	return IsType(err, ErrDataIntegrity)
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return IsType(err, ErrInvalidInput)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, err error) *AppError {
	return New(ErrNotFound, message, err)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, err error) *AppError {
	return New(ErrInvalidInput, message, err)
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string, err error) *AppError {
	return New(ErrUnauthorized, message, err)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return New(ErrInternal, message, err)
}

// NewCredentialMissingError is returned when a user has no stored credential.
func NewCredentialMissingError(userID string) *AppError {
	return New(ErrCredentialMissing, fmt.Sprintf("no credential stored for user %s", userID), nil)
}

// NewCredentialExpiredError is returned when the stored credential is past its expiry.
func NewCredentialExpiredError(userID string, expiredAt time.Time) *AppError {
	return New(ErrCredentialExpired,
		fmt.Sprintf("credential for user %s expired at %s", userID, expiredAt.UTC().Format(time.RFC3339)), nil)
}

// NewDataIntegrityError creates a new data integrity error
func NewDataIntegrityError(message string, err error) *AppError {
	return New(ErrDataIntegrity, message, err)
}
