package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidCategory      = NewDomainError(ErrCodeValidation, "invalid knowledge category")
	ErrEmptyContent         = NewDomainError(ErrCodeValidation, "content is required")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrItemNotFound      = NewDomainError(ErrCodeNotFound, "knowledge item not found")
	ErrCandidateNotFound = NewDomainError(ErrCodeNotFound, "candidate not found")
	ErrAPIKeyNotFound    = NewDomainError(ErrCodeNotFound, "api key not found")
)

// Already exists errors
var (
	// ErrDuplicateContent is returned when a candidate's content hash
	// already exists in the staging store or the content store. Callers
	// treat it as a normal dedup outcome, not a failure.
	ErrDuplicateContent = NewDomainError(ErrCodeAlreadyExists, "content already known")
)

// Authorization errors
var (
	ErrAPIKeyRevoked    = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey    = NewDomainError(ErrCodeUnauthorized, "invalid api key")
	ErrReviewerRequired = NewDomainError(ErrCodeForbidden, "reviewer role required")
)

// Operation errors
var (
	ErrNotFlagged          = NewDomainError(ErrCodeInvalidOperation, "item is not flagged for deletion")
	ErrDirectCreateGated   = NewDomainError(ErrCodeInvalidOperation, "only preference items may be created directly; stage a candidate instead")
	ErrSupersededImmutable = NewDomainError(ErrCodeInvalidOperation, "superseded items cannot regain weight")
)
