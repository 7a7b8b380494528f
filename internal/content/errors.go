package content

import (
	"errors"
	"fmt"
)

var (
	// ErrItemNotFound indicates the requested content item does not exist.
	ErrItemNotFound = errors.New("content: item not found")
	// ErrVersionNotFound indicates the requested version is not part of the item's history.
	ErrVersionNotFound = errors.New("content: version not found")
	// ErrItemLocked indicates a mutating operation was attempted on an item locked by another user.
	ErrItemLocked = errors.New("content: item locked by another user")
	// ErrAlreadyLocked indicates a lock acquisition failed because another user holds the lock.
	ErrAlreadyLocked = errors.New("content: item already locked")
	// ErrNotLockHolder indicates a release attempt by someone other than the lock holder.
	ErrNotLockHolder = errors.New("content: not the lock holder")
	// ErrNotAuthorized indicates the acting identity may not perform the requested transition.
	ErrNotAuthorized = errors.New("content: not authorized")
	// ErrMalformedVersionNumber indicates a version label could not be parsed as major.minor.
	ErrMalformedVersionNumber = errors.New("content: malformed version number")
	// ErrIntegrityViolation indicates a stored digest no longer matches the recomputed one.
	ErrIntegrityViolation = errors.New("content: integrity violation")
	// ErrValidation indicates a required field is missing or malformed.
	ErrValidation = errors.New("content: validation failed")
)

// InvalidTransitionError reports a workflow transition outside the permitted table.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("content: invalid transition from %s to %s", e.From, e.To)
}

// ServiceError wraps an engine failure with a dotted operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
