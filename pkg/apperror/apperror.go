// Package apperror defines the error kinds shared by every layer of the
// backend. Callers wrap one of the sentinels with fmt.Errorf("%w: ...") and
// the HTTP layer maps the kind to a status code with errors.Is.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input (bad domain, unknown status, ...).
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an unknown id.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateFilter is returned when a domain filter already exists.
	ErrDuplicateFilter = errors.New("domain filter already exists")
	// ErrAlreadyLinked is returned when an email is linked to another application.
	ErrAlreadyLinked = errors.New("email already linked to a different application")
	// ErrSyncInProgress is returned when a sync for the same account is running.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrProvider marks a mailbox provider failure that survived retries.
	ErrProvider = errors.New("mailbox provider error")
)

// Kind names used in API responses.
const (
	KindValidation      = "validation"
	KindNotFound        = "not_found"
	KindDuplicateFilter = "duplicate_filter"
	KindAlreadyLinked   = "already_linked"
	KindSyncInProgress  = "sync_in_progress"
	KindProvider        = "provider"
	KindInternal        = "internal"
)

// Kind returns the stable kind name for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateFilter):
		return KindDuplicateFilter
	case errors.Is(err, ErrAlreadyLinked):
		return KindAlreadyLinked
	case errors.Is(err, ErrSyncInProgress):
		return KindSyncInProgress
	case errors.Is(err, ErrProvider):
		return KindProvider
	default:
		return KindInternal
	}
}

// Validation wraps ErrValidation with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound naming the missing entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
}

// ProviderError is a failure reported by a mailbox provider adapter.
// Transient errors (rate limiting, timeouts, 5xx) are retried by the sync
// coordinator; everything else is surfaced immediately.
type ProviderError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Transient {
		return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is makes every ProviderError match ErrProvider.
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
