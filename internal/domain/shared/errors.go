// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import "errors"

// Kinds. Every domain error wraps exactly one of these, and the HTTP layer
// maps kinds to status codes.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrValueOutOfRange = errors.New("value out of range")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrTimeout is returned when a per-key lock cannot be taken in time.
	ErrTimeout = errors.New("operation timeout")
)

// DomainError carries where an error happened and what kind it is.
// errors.Is matches both the kind and the wrapped cause.
type DomainError struct {
	Domain  string // "course", "enrollment", "auth", ...
	Op      string // "Enroll", "Delete", ...
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	msg := e.Domain + "." + e.Op + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DomainError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewDomainError builds a sentinel-style error of the given kind.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError attaches a cause to a domain error of the given kind.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// User domain errors
var (
	ErrUserNotFound      = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrEmailAlreadyTaken = NewDomainError("user", "Signup", ErrAlreadyExists, "email already registered")
	ErrInvalidRole       = NewDomainError("user", "Validate", ErrInvalidInput, "invalid role")
	ErrInvalidCredential = NewDomainError("auth", "Resolve", ErrUnauthorized, "invalid or expired credential")
	ErrMissingCredential = NewDomainError("auth", "Resolve", ErrUnauthorized, "missing credential")
	ErrWrongPassword     = NewDomainError("auth", "Login", ErrUnauthorized, "invalid email or password")
	ErrRoleNotPermitted  = NewDomainError("auth", "Authorize", ErrForbidden, "role lacks permission")
)

// Course domain errors
var (
	ErrCourseNotFound  = NewDomainError("course", "Find", ErrNotFound, "course not found")
	ErrInvalidLevel    = NewDomainError("course", "Validate", ErrInvalidInput, "invalid course level")
	ErrDuplicateModule = NewDomainError("course", "Validate", ErrInvalidInput, "duplicate module id")
	ErrNotCourseOwner  = NewDomainError("course", "Delete", ErrForbidden, "you can only delete your own courses")
	ErrPathNotFound    = NewDomainError("learning_path", "Find", ErrNotFound, "path not found")
)

// Enrollment domain errors
var (
	ErrEnrollmentNotFound = NewDomainError("enrollment", "Find", ErrNotFound, "enrollment not found")
	ErrInvalidProgress    = NewDomainError("enrollment", "Validate", ErrValueOutOfRange, "progress must be between 0 and 100")
	ErrInvalidPercentage  = NewDomainError("video_progress", "Validate", ErrValueOutOfRange, "percentage must be a non-negative number")
)

// External service errors
var (
	ErrStorageUnavailable = NewDomainError("storage", "Request", ErrServiceUnavailable, "object storage is unavailable")
	ErrStorageRejected    = NewDomainError("storage", "Upload", ErrExternalService, "object storage rejected the upload")
)

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }
func IsUnauthorized(err error) bool  { return errors.Is(err, ErrUnauthorized) }
func IsForbidden(err error) bool     { return errors.Is(err, ErrForbidden) }

// IsValidation covers every kind that maps to 400.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsExternalService covers failures of a dependency rather than the caller.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// Validation wraps a field-level validation failure.
func Validation(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrValidation, message)
}
