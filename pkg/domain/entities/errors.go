package entities

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable error taxonomy surfaced to callers. Handlers map
// kinds to HTTP status codes; the background worker retries only
// dependency-kind failures.
type ErrorKind string

const (
	// ErrKindValidation is a bad input: missing version, soft-deleted
	// target, malformed domain. Local, immediate, never auto-retried.
	ErrKindValidation ErrorKind = "validation"
	// ErrKindConflict means the per-project lock is held or the request
	// duplicates an in-flight operation. Safe to retry with the same
	// idempotency key.
	ErrKindConflict ErrorKind = "conflict"
	// ErrKindDependency is a storage/DNS/provider failure. Retried a
	// bounded number of times by the background worker.
	ErrKindDependency ErrorKind = "dependency"
	// ErrKindIntegrity is a checksum mismatch. Fatal for the attempt,
	// never silently served.
	ErrKindIntegrity ErrorKind = "integrity"
)

// DomainError carries a stable kind plus operation context so callers can
// render specific guidance instead of a raw lower-level error string.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

func NewValidationError(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: ErrKindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: ErrKindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewDependencyError(message string, err error) *DomainError {
	return &DomainError{Kind: ErrKindDependency, Message: message, Err: err}
}

func NewIntegrityError(message string, err error) *DomainError {
	return &DomainError{Kind: ErrKindIntegrity, Message: message, Err: err}
}

// KindOf extracts the taxonomy kind from an error chain. Unclassified
// errors report as dependency failures, the only safe default for the
// retry policy.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ErrKindDependency
}

// Sentinel validation errors for the distinct publish/rollback failure
// conditions the API documents.
var (
	ErrVersionNotFound        = NewValidationError("version not found")
	ErrVersionWrongProject    = NewValidationError("version does not belong to this project")
	ErrVersionSoftDeleted     = NewValidationError("version has been deleted")
	ErrVersionNoArtifact      = NewValidationError("version has no verified artifact")
	ErrProjectNotFound        = NewValidationError("project not found")
	ErrNothingPublished       = NewValidationError("project has no published version")
	ErrInvalidDomainName      = NewValidationError("invalid domain name")
	ErrInvalidVersionName     = NewValidationError("version name must match MAJOR.MINOR.PATCH[-label]")
	ErrProjectLocked          = NewConflictError("another operation is in progress for this project, retry later")
	ErrDuplicateDomain        = NewConflictError("domain is already attached to this project")
	ErrAlreadyPublished       = NewConflictError("version is already published")
	ErrProjectNotRollbackable = NewValidationError("project state does not allow rollback")
)
