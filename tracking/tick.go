/*
tick.go - Daily scheduler entry point

PURPOSE:
  One tick per local day walks every personnel record sequentially and
  produces a reminder decision for each. The caller (the scheduler in the
  api package, or an operator hitting the admin endpoint) owns actual
  dispatch and may re-run a tick safely: decisions are pure functions of
  the stored state and asOf.

FAILURE MODEL:
  A store failure on one entity is recorded on that entity's decision and
  the tick moves on - never retried silently, never aborting the batch.
  Only the initial personnel scan is fatal for the whole tick.
*/
package tracking

import (
	"context"

	"github.com/warp/readiness-engine/window"
)

// Decision is the per-entity outcome of one daily tick.
type Decision struct {
	PersonnelID  PersonnelID
	TelegramID   TelegramID
	Verified     bool
	Status       Status
	ShouldRemind bool

	// Err records a store failure for this entity; the entity was skipped
	// and the rest of the tick continued.
	Err error
}

// RunDailyTick evaluates every entity at asOf and decides reminder firing.
func (t *Tracker) RunDailyTick(ctx context.Context, asOf window.Date) ([]Decision, error) {
	people, err := t.Store.ListPersonnel(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list personnel", Err: err}
	}

	decisions := make([]Decision, 0, len(people))
	for _, p := range people {
		d := Decision{PersonnelID: p.ID}

		link, err := t.Store.GetLinkByPersonnel(ctx, p.ID)
		if err != nil {
			d.Err = &StoreError{Op: "get link", Err: err}
			decisions = append(decisions, d)
			continue
		}
		if link != nil {
			d.Verified = true
			d.TelegramID = link.TelegramID
		}

		st, err := t.Evaluate(ctx, p, asOf)
		if err != nil {
			d.Err = err
			decisions = append(decisions, d)
			continue
		}
		d.Status = st
		d.ShouldRemind = ShouldRemind(st, d.Verified, asOf, t.Config.IntervalDays, t.Config.RemindOverdue)
		decisions = append(decisions, d)
	}
	return decisions, nil
}
