/*
evaluate.go - State classification for one entity at one moment

PURPOSE:
  Combines the derived window with the Completion/Deferment records scoped
  to its window-year and produces exactly one Status.

PRECEDENCE (hard invariant):
  Deferred > Completed > InWindow/Overdue/NotOpen.
  Deferment is checked BEFORE completion: an admin may defer a
  reminder-fatigued entity regardless of historical completion marks.

SEE ALSO:
  - window/window.go: Window derivation
  - reminder.go: Fire/no-fire decision built on Status
*/
package tracking

import (
	"context"

	"github.com/warp/readiness-engine/window"
)

// Tracker is the engine facade: evaluation, reminder ticks, and the state
// transitions in ops.go all go through it. It holds no state of its own;
// every decision starts from a fresh store read.
type Tracker struct {
	Store  Store
	Config Config
}

// NewTracker builds a Tracker, filling unset config fields with defaults.
func NewTracker(store Store, cfg Config) *Tracker {
	if cfg.IntervalDays <= 0 {
		cfg.IntervalDays = DefaultIntervalDays
	}
	if cfg.WindowMode == "" {
		cfg.WindowMode = window.ModeFixedLength
	}
	if cfg.FixedLengthDays <= 0 {
		cfg.FixedLengthDays = window.DefaultFixedLengthDays
	}
	return &Tracker{Store: store, Config: cfg}
}

// Window derives the obligation window for a personnel record at asOf.
func (t *Tracker) Window(p Personnel, asOf window.Date) window.Window {
	return window.Compute(p.Birthday, asOf, t.Config.WindowMode, t.Config.FixedLengthDays)
}

// Evaluate classifies the entity's obligation state at asOf.
func (t *Tracker) Evaluate(ctx context.Context, p Personnel, asOf window.Date) (Status, error) {
	w := t.Window(p, asOf)

	// Deferment takes precedence over everything, completion included.
	d, err := t.Store.GetDeferment(ctx, p.ID, w.Year)
	if err != nil {
		return Status{}, &StoreError{Op: "get deferment", Err: err}
	}
	if d != nil && d.Effective() {
		return Status{Kind: StatusDeferred, Window: w, DeferReason: d.Reason}, nil
	}

	c, err := t.Store.GetCompletion(ctx, p.ID, w.Year)
	if err != nil {
		return Status{}, &StoreError{Op: "get completion", Err: err}
	}
	if c != nil && (w.Contains(c.CompletedOn) || c.Forced) {
		return Status{Kind: StatusCompleted, Window: w, CompletedOn: c.CompletedOn}, nil
	}

	switch {
	case w.NotYetOpen:
		return Status{Kind: StatusNotOpen, Window: w, NextStart: w.Start}, nil
	case w.Open:
		return Status{Kind: StatusInWindow, Window: w, DaysLeft: window.DaysBetween(asOf, w.End)}, nil
	default:
		return Status{Kind: StatusOverdue, Window: w, DaysOverdue: window.DaysBetween(w.End, asOf)}, nil
	}
}
