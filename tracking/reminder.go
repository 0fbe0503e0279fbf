/*
reminder.go - Daily fire/no-fire decision

PURPOSE:
  Decides, for one entity on one day, whether a reminder should go out.
  Pure given its inputs; the scheduler loop owns retry/skip bookkeeping
  for missed ticks.

ANCHORING:
  The interval grid is anchored at the window start using integer day
  arithmetic, so the grid stays stable even if the scheduler misses a
  tick: day 0, day interval, day 2*interval, ... from the start. Overdue
  entities stay on the same grid while remindOverdue is set.
*/
package tracking

import "github.com/warp/readiness-engine/window"

// ShouldRemind reports whether a reminder fires for this entity today.
// Completed, deferred and not-yet-open entities never get one, nor do
// entities without a verified link (no destination to notify).
func ShouldRemind(st Status, verified bool, asOf window.Date, intervalDays int, remindOverdue bool) bool {
	if !verified {
		return false
	}
	if intervalDays <= 0 {
		intervalDays = DefaultIntervalDays
	}

	switch st.Kind {
	case StatusInWindow:
	case StatusOverdue:
		if !remindOverdue {
			return false
		}
	default:
		return false
	}

	since := window.DaysBetween(st.Window.Start, asOf)
	return since >= 0 && since%intervalDays == 0
}
