/*
Package tracking maintains per-person annual obligation state.

PURPOSE:
  This package owns the data model and the decision logic of the window &
  deferment engine: who is tracked (Personnel), who they are on the chat
  side (Link), what happened inside each window-year (Completion,
  Deferment), and what that means right now (Status).

KEY CONCEPTS IN THIS FILE (types.go):
  - Personnel: a tracked individual keyed by a stable personnel ID
  - Link: binding between a chat identity and a personnel record
  - Completion/Deferment: records keyed by (personnel, window-year)
  - Status: the single classification Evaluate produces for a moment

DESIGN PRINCIPLES:
  1. Windows are derived, never stored - a new window-year simply has no
     row until one is written, so there is no year-rollover reset job
  2. Records are written whole: read the fresh row, compute the next
     state, upsert the complete replacement
  3. Type-safe identifiers keep personnel IDs and chat IDs apart

SEE ALSO:
  - store.go: Persistence contract for these records
  - evaluate.go: Status classification
*/
package tracking

import (
	"strings"
	"time"

	"github.com/warp/readiness-engine/window"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// PersonnelID is the stable key an admin assigns to a tracked individual.
type PersonnelID string

// TelegramID is the external chat identity carried by verified links.
type TelegramID int64

// DefaultGroup labels personnel with no cohort assignment.
const DefaultGroup = "No Group"

// =============================================================================
// RECORDS
// =============================================================================

// Personnel is a tracked individual. Birthday month and day drive the
// recurring window; the year may be real or a placeholder.
type Personnel struct {
	ID       PersonnelID
	Birthday window.Date
	Group    string
}

// GroupLabel returns the cohort label, folding blanks to DefaultGroup.
func (p Personnel) GroupLabel() string {
	g := strings.TrimSpace(p.Group)
	if g == "" {
		return DefaultGroup
	}
	return g
}

// Link binds one chat identity to one personnel record. A personnel may
// exist with no link (not yet claimed); once verified the binding is 1:1
// in both directions.
type Link struct {
	TelegramID  TelegramID
	PersonnelID PersonnelID
	VerifiedAt  time.Time
}

// Completion marks one window-year as done. CompletedOn must fall inside
// the window unless the record was explicitly forced by an admin, in which
// case Forced is set so the override is never silent.
type Completion struct {
	ID          string // row identity, assigned on first write
	PersonnelID PersonnelID
	WindowYear  int
	CompletedOn window.Date
	Forced      bool
	RecordedAt  time.Time
}

// Deferment pauses reminders and report highlighting for one window-year.
// It carries a reason and stays on file when cleared (Active=false) so the
// history remains visible in reports.
type Deferment struct {
	ID          string
	PersonnelID PersonnelID
	WindowYear  int
	Reason      string
	Active      bool
	RecordedAt  time.Time
}

// Effective reports whether the deferment currently pauses the entity:
// active with a non-empty reason.
func (d Deferment) Effective() bool {
	return d.Active && strings.TrimSpace(d.Reason) != ""
}

// =============================================================================
// STATUS - Evaluate output
// =============================================================================

type StatusKind string

const (
	StatusCompleted StatusKind = "completed"
	StatusInWindow  StatusKind = "in_window"
	StatusOverdue   StatusKind = "overdue"
	StatusDeferred  StatusKind = "deferred"
	StatusNotOpen   StatusKind = "window_not_open"
)

// Status is the single classification for an entity at a moment in time.
// Exactly one Kind applies; the companion fields are only meaningful for
// the kinds noted.
type Status struct {
	Kind   StatusKind
	Window window.Window

	DaysLeft    int         // StatusInWindow
	DaysOverdue int         // StatusOverdue
	NextStart   window.Date // StatusNotOpen
	DeferReason string      // StatusDeferred
	CompletedOn window.Date // StatusCompleted
}
