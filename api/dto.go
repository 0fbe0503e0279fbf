/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the transport boundary. These decouple the internal
  model from the wire contract; validation happens in handlers, DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/readiness-engine/report"
	"github.com/warp/readiness-engine/tracking"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// VerifyRequest is a self-verification claim: chat identity plus the
// personnel ID and birthday that must match the stored record.
type VerifyRequest struct {
	TelegramID  int64  `json:"telegram_id"`
	PersonnelID string `json:"personnel_id"`
	Birthday    string `json:"birthday"`
}

// AddPersonnelRequest creates or overwrites a personnel record.
type AddPersonnelRequest struct {
	PersonnelID string `json:"personnel_id"`
	Birthday    string `json:"birthday"`
	Group       string `json:"group,omitempty"`
}

// CompleteRequest marks a window-year done. Date defaults to today; Force
// lets an admin record a date outside the window (flagged, never silent).
type CompleteRequest struct {
	Date  string `json:"date,omitempty"`
	Force bool   `json:"force,omitempty"`
}

// UncompleteRequest undoes a completion. WindowYear defaults to the
// entity's current window-year.
type UncompleteRequest struct {
	WindowYear int `json:"window_year,omitempty"`
}

// DeferRequest records an active deferment with a required reason.
type DeferRequest struct {
	Reason     string `json:"reason"`
	WindowYear int    `json:"window_year,omitempty"`
}

// UnlinkRequest removes a link by mixed token (chat ID or personnel ID).
type UnlinkRequest struct {
	Token string `json:"token"`
}

// TickRequest triggers a daily tick, optionally for a specific date.
type TickRequest struct {
	AsOf string `json:"as_of,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// PersonnelDTO represents a personnel record.
type PersonnelDTO struct {
	PersonnelID string `json:"personnel_id"`
	Birthday    string `json:"birthday"`
	Group       string `json:"group"`
	Verified    bool   `json:"verified"`
}

// HistoryEntryDTO is one past window-year record shown with the status.
type HistoryEntryDTO struct {
	WindowYear  int    `json:"window_year"`
	CompletedOn string `json:"completed_on,omitempty"`
	Forced      bool   `json:"forced,omitempty"`
	DeferReason string `json:"defer_reason,omitempty"`
	DeferActive bool   `json:"defer_active,omitempty"`
}

// StatusDTO is the evaluated state of one entity.
type StatusDTO struct {
	PersonnelID  string `json:"personnel_id"`
	Group        string `json:"group"`
	Verified     bool   `json:"verified"`
	WindowYear   int    `json:"window_year"`
	WindowStart  string `json:"window_start"`
	WindowEnd    string `json:"window_end"`
	Status       string `json:"status"`
	DaysLeft     int    `json:"days_left,omitempty"`
	DaysOverdue  int    `json:"days_overdue,omitempty"`
	NextStart    string `json:"next_start,omitempty"`
	DeferReason  string `json:"defer_reason,omitempty"`
	CompletedOn  string `json:"completed_on,omitempty"`
	NextReminder string `json:"next_reminder,omitempty"`

	History []HistoryEntryDTO `json:"history,omitempty"`
}

// DecisionDTO is one per-entity tick outcome.
type DecisionDTO struct {
	PersonnelID  string `json:"personnel_id"`
	TelegramID   int64  `json:"telegram_id,omitempty"`
	Verified     bool   `json:"verified"`
	Status       string `json:"status,omitempty"`
	ShouldRemind bool   `json:"should_remind"`
	Error        string `json:"error,omitempty"`
}

// TickResponse is the daily tick result.
type TickResponse struct {
	AsOf      string        `json:"as_of"`
	Reminders int           `json:"reminders"`
	Decisions []DecisionDTO `json:"decisions"`
}

// ImportResponse reports reconciliation counts plus per-row failures.
type ImportResponse struct {
	Inserted int              `json:"inserted"`
	Updated  int              `json:"updated"`
	Errors   []ImportRowError `json:"errors,omitempty"`
}

type ImportRowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// SummaryDTO aggregates one report sheet.
type SummaryDTO struct {
	Total          int    `json:"total"`
	Completed      int    `json:"completed"`
	Outstanding    int    `json:"outstanding"`
	Deferred       int    `json:"deferred"`
	CompletionRate string `json:"completion_rate"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toStatusDTO(p tracking.Personnel, verified bool, st tracking.Status) StatusDTO {
	dto := StatusDTO{
		PersonnelID: string(p.ID),
		Group:       p.GroupLabel(),
		Verified:    verified,
		WindowYear:  st.Window.Year,
		WindowStart: st.Window.Start.String(),
		WindowEnd:   st.Window.End.String(),
		Status:      string(st.Kind),
	}
	switch st.Kind {
	case tracking.StatusInWindow:
		dto.DaysLeft = st.DaysLeft
	case tracking.StatusOverdue:
		dto.DaysOverdue = st.DaysOverdue
	case tracking.StatusNotOpen:
		dto.NextStart = st.NextStart.String()
	case tracking.StatusDeferred:
		dto.DeferReason = st.DeferReason
	case tracking.StatusCompleted:
		dto.CompletedOn = st.CompletedOn.String()
	}
	return dto
}

func toDecisionDTO(d tracking.Decision) DecisionDTO {
	dto := DecisionDTO{
		PersonnelID:  string(d.PersonnelID),
		TelegramID:   int64(d.TelegramID),
		Verified:     d.Verified,
		ShouldRemind: d.ShouldRemind,
	}
	if d.Err != nil {
		dto.Error = d.Err.Error()
	} else {
		dto.Status = string(d.Status.Kind)
	}
	return dto
}

func toSummaryDTO(s report.Summary) SummaryDTO {
	return SummaryDTO{
		Total:          s.Total,
		Completed:      s.Completed,
		Outstanding:    s.Outstanding,
		Deferred:       s.Deferred,
		CompletionRate: s.CompletionRate.StringFixed(1),
	}
}
