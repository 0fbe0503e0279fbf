/*
ops.go - State transitions (verify, complete, defer, remove)

PURPOSE:
  The write-side operations exposed to the transport. Each one re-reads
  the fresh row immediately before writing and upserts a complete
  replacement; the store's per-key atomic upsert serializes concurrent
  admin commands on the same personnel.

IDEMPOTENCY:
  Re-invoking any operation with the same inputs converges on the same
  stored state, so callers may retry at their level after a failure.
*/
package tracking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/readiness-engine/window"
)

// AddPersonnel creates or overwrites a personnel record.
func (t *Tracker) AddPersonnel(ctx context.Context, p Personnel) error {
	if strings.TrimSpace(string(p.ID)) == "" {
		return &ValidationError{Field: "personnel_id", Message: "must not be empty"}
	}
	if p.Birthday.IsZero() {
		return &ValidationError{Field: "birthday", Message: "must be a calendar date"}
	}
	if err := t.Store.UpsertPersonnel(ctx, p); err != nil {
		return &StoreError{Op: "upsert personnel", Err: err}
	}
	return nil
}

// Verify links a chat identity to a personnel record after the claimed
// birthday matches. Re-verifying from the same chat identity moves the
// link; claiming a personnel already held by a different identity is
// rejected so the 1:1 invariant holds.
func (t *Tracker) Verify(ctx context.Context, id TelegramID, pid PersonnelID, birthday window.Date, now time.Time) error {
	p, err := t.Store.GetPersonnel(ctx, pid)
	if err != nil {
		return &StoreError{Op: "get personnel", Err: err}
	}
	if p == nil {
		return ErrPersonnelNotFound
	}
	if !p.Birthday.Equal(birthday) {
		return ErrIdentityMismatch
	}

	existing, err := t.Store.GetLinkByPersonnel(ctx, pid)
	if err != nil {
		return &StoreError{Op: "get link", Err: err}
	}
	if existing != nil && existing.TelegramID != id {
		return ErrAlreadyLinked
	}

	link := Link{TelegramID: id, PersonnelID: pid, VerifiedAt: now}
	if err := t.Store.UpsertLink(ctx, link); err != nil {
		return &StoreError{Op: "upsert link", Err: err}
	}
	return nil
}

// Unlink removes a chat identity binding. The personnel record and its
// window-year records stay on file.
func (t *Tracker) Unlink(ctx context.Context, id TelegramID) error {
	link, err := t.Store.GetLink(ctx, id)
	if err != nil {
		return &StoreError{Op: "get link", Err: err}
	}
	if link == nil {
		return ErrLinkNotFound
	}
	if err := t.Store.DeleteLink(ctx, id); err != nil {
		return &StoreError{Op: "delete link", Err: err}
	}
	return nil
}

// Complete records a completion on the given date. The window containing
// the date determines the window-year. A date outside any open window is
// rejected with a ConflictError unless force is set; forced records carry
// the Forced flag so the override is never silent.
func (t *Tracker) Complete(ctx context.Context, pid PersonnelID, on window.Date, force bool, now time.Time) (Completion, error) {
	p, err := t.Store.GetPersonnel(ctx, pid)
	if err != nil {
		return Completion{}, &StoreError{Op: "get personnel", Err: err}
	}
	if p == nil {
		return Completion{}, ErrPersonnelNotFound
	}

	w := t.Window(*p, on)
	forced := false
	if !w.Contains(on) {
		if !force {
			return Completion{}, &ConflictError{PersonnelID: pid, WindowYear: w.Year, Date: on}
		}
		forced = true
	}

	c := Completion{
		ID:          uuid.NewString(),
		PersonnelID: pid,
		WindowYear:  w.Year,
		CompletedOn: on,
		Forced:      forced,
		RecordedAt:  now,
	}
	if prev, err := t.Store.GetCompletion(ctx, pid, w.Year); err != nil {
		return Completion{}, &StoreError{Op: "get completion", Err: err}
	} else if prev != nil {
		c.ID = prev.ID
	}

	if err := t.Store.UpsertCompletion(ctx, c); err != nil {
		return Completion{}, &StoreError{Op: "upsert completion", Err: err}
	}
	return c, nil
}

// Uncomplete removes the completion for a window-year.
func (t *Tracker) Uncomplete(ctx context.Context, pid PersonnelID, windowYear int) error {
	c, err := t.Store.GetCompletion(ctx, pid, windowYear)
	if err != nil {
		return &StoreError{Op: "get completion", Err: err}
	}
	if c == nil {
		return ErrCompletionNotFound
	}
	if err := t.Store.DeleteCompletion(ctx, pid, windowYear); err != nil {
		return &StoreError{Op: "delete completion", Err: err}
	}
	return nil
}

// Defer records an active deferment for a window-year. The reason is
// required: the reason-only model has no separate approval step, a
// non-empty reason on an active row is what pauses the entity.
func (t *Tracker) Defer(ctx context.Context, pid PersonnelID, windowYear int, reason string, now time.Time) (Deferment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Deferment{}, &ValidationError{Field: "reason", Message: "must not be empty"}
	}
	p, err := t.Store.GetPersonnel(ctx, pid)
	if err != nil {
		return Deferment{}, &StoreError{Op: "get personnel", Err: err}
	}
	if p == nil {
		return Deferment{}, ErrPersonnelNotFound
	}

	d := Deferment{
		ID:          uuid.NewString(),
		PersonnelID: pid,
		WindowYear:  windowYear,
		Reason:      reason,
		Active:      true,
		RecordedAt:  now,
	}
	if prev, err := t.Store.GetDeferment(ctx, pid, windowYear); err != nil {
		return Deferment{}, &StoreError{Op: "get deferment", Err: err}
	} else if prev != nil {
		d.ID = prev.ID
	}

	if err := t.Store.UpsertDeferment(ctx, d); err != nil {
		return Deferment{}, &StoreError{Op: "upsert deferment", Err: err}
	}
	return d, nil
}

// ClearDeferment deactivates a deferment, keeping the reason on file for
// reports. Clearing an absent or already-inactive row is a no-op.
func (t *Tracker) ClearDeferment(ctx context.Context, pid PersonnelID, windowYear int, now time.Time) error {
	d, err := t.Store.GetDeferment(ctx, pid, windowYear)
	if err != nil {
		return &StoreError{Op: "get deferment", Err: err}
	}
	if d == nil || !d.Active {
		return nil
	}
	d.Active = false
	d.RecordedAt = now
	if err := t.Store.UpsertDeferment(ctx, *d); err != nil {
		return &StoreError{Op: "upsert deferment", Err: err}
	}
	return nil
}

// Remove deletes a personnel record with cascade to links, completions and
// deferments.
func (t *Tracker) Remove(ctx context.Context, pid PersonnelID) error {
	p, err := t.Store.GetPersonnel(ctx, pid)
	if err != nil {
		return &StoreError{Op: "get personnel", Err: err}
	}
	if p == nil {
		return ErrPersonnelNotFound
	}
	if err := t.Store.DeletePersonnel(ctx, pid); err != nil {
		return &StoreError{Op: "delete personnel", Err: err}
	}
	return nil
}
