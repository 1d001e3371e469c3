// Package ledger holds the error taxonomy and day arithmetic shared by the
// capacity reconciliation packages.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotConfigured is returned when the time reference was never initialised.
	// Callers must surface it; falling back to the host clock is not allowed.
	ErrNotConfigured = errors.New("time reference not configured")

	// ErrDataIntegrityGap is returned when a consignment has neither an
	// estimated nor an actual capacity source.
	ErrDataIntegrityGap = errors.New("consignment has no capacity source")

	// ErrInvalidArgument is returned for malformed ids, non-positive deltas and
	// invalid inputs.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConcurrentWriteConflict is returned when the store reports a busy or
	// locked database, or an optimistic version check fails. Safe to retry.
	ErrConcurrentWriteConflict = errors.New("concurrent write conflict")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
)

// GapError identifies the consignment missing a capacity source.
type GapError struct {
	ConsignmentID int64
}

func (e *GapError) Error() string {
	return fmt.Sprintf("consignment %d has no estimated or actual capacity source", e.ConsignmentID)
}

func (e *GapError) Unwrap() error {
	return ErrDataIntegrityGap
}

// InvalidArgument builds an error wrapping ErrInvalidArgument.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// NotFound builds an error wrapping ErrNotFound.
func NotFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// IsRetryable reports whether err may succeed when the operation is repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentWriteConflict)
}

// Day truncates t to the start of its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseTime accepts an RFC 3339 timestamp or a YYYY-MM-DD day and returns it
// in UTC. Anything else is an invalid argument.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, InvalidArgument("%q is neither RFC3339 nor YYYY-MM-DD", value)
}

// ValidID rejects identifiers that can never reference a stored row.
func ValidID(entity string, id int64) error {
	if id <= 0 {
		return InvalidArgument("%s id must be positive, got %d", entity, id)
	}
	return nil
}
