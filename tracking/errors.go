/*
errors.go - Centralized error types for the tracking engine

PURPOSE:
  All error kinds of the core in one place. Callers branch with errors.Is
  and errors.As; the transport layer maps these to response codes.

ERROR CATEGORIES:
  1. Validation errors - malformed input, recovered per-row/per-command
  2. Not-found errors  - unknown personnel/link, no partial mutation
  3. Conflict errors   - writes rejected to protect an invariant
  4. Store errors      - adapter failures, fatal for that one operation

PROPAGATION POLICY:
  The core never retries. Every public operation is idempotent for the
  same inputs, so the scheduler or transport may retry at its level.

SEE ALSO:
  - store.go: Store contract these wrap
  - api/handlers.go: HTTP status mapping
*/
package tracking

import (
	"errors"
	"fmt"

	"github.com/warp/readiness-engine/window"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPersonnelNotFound is returned when a personnel ID has no record.
	ErrPersonnelNotFound = errors.New("personnel not found")

	// ErrLinkNotFound is returned when a chat identity has no verified link.
	ErrLinkNotFound = errors.New("link not found")

	// ErrIdentityMismatch is returned by Verify when the claimed birthday
	// does not match the personnel record.
	ErrIdentityMismatch = errors.New("personnel id and birthday do not match")

	// ErrAlreadyLinked is returned when a personnel record is already
	// claimed by a different chat identity.
	ErrAlreadyLinked = errors.New("personnel already linked to another identity")

	// ErrCompletionNotFound is returned when undoing a completion that
	// does not exist for the requested window-year.
	ErrCompletionNotFound = errors.New("no completion for window-year")

	// ErrOutsideWindow is returned when a completion date falls outside its
	// window and the force flag was not set.
	ErrOutsideWindow = errors.New("completion date outside window")

	// ErrAmbiguousToken is returned by Resolve when a token matches both a
	// chat identity and a personnel ID.
	ErrAmbiguousToken = errors.New("token matches multiple records")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports malformed input. Batch operations collect these
// per row and keep going; single commands surface them directly.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ConflictError reports a write rejected to protect the window invariant,
// e.g. an admin completion date outside the window without force.
type ConflictError struct {
	PersonnelID PersonnelID
	WindowYear  int
	Date        window.Date
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("completion %s for %s is outside window-year %d (use force to override)",
		e.Date, e.PersonnelID, e.WindowYear)
}

func (e *ConflictError) Unwrap() error { return ErrOutsideWindow }

// StoreError wraps an adapter read/write failure. The store is never
// assumed to be in a known state afterwards, so the caller must not assume
// the operation completed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPersonnelNotFound) ||
		errors.Is(err, ErrLinkNotFound) ||
		errors.Is(err, ErrCompletionNotFound)
}

// IsClientError reports whether the error is due to invalid client input.
func IsClientError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v) ||
		errors.Is(err, ErrIdentityMismatch) ||
		errors.Is(err, ErrAmbiguousToken)
}

// IsConflict reports whether the error is a rejected conflicting write.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOutsideWindow) || errors.Is(err, ErrAlreadyLinked)
}
