package tracking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/readiness-engine/tracking"
	"github.com/warp/readiness-engine/window"
)

func inWindowStatus(start window.Date) tracking.Status {
	return tracking.Status{
		Kind: tracking.StatusInWindow,
		Window: window.Window{
			Year:  start.Year(),
			Start: start,
			End:   start.AddDays(100),
			Open:  true,
		},
	}
}

// =============================================================================
// GRID ANCHORING
// =============================================================================

func TestShouldRemind_AnchoredAtWindowStart(t *testing.T) {
	// GIVEN: Window starting 2025-01-01, interval 10
	// THEN: Reminders fire on day 0, 10, 20, ... and nowhere else
	start := window.NewDate(2025, time.January, 1)
	st := inWindowStatus(start)

	cases := []struct {
		asOf string
		want bool
	}{
		{"2025-01-01", true},  // day 0
		{"2025-01-02", false}, // day 1
		{"2025-01-11", true},  // day 10
		{"2025-01-15", false}, // day 14
		{"2025-01-21", true},  // day 20
		{"2025-02-10", true},  // day 40
	}
	for _, c := range cases {
		asOf, err := window.ParseDate(c.asOf)
		assert.NoError(t, err)
		got := tracking.ShouldRemind(st, true, asOf, 10, true)
		assert.Equal(t, c.want, got, "asOf=%s", c.asOf)
	}
}

func TestShouldRemind_GridSurvivesMissedTicks(t *testing.T) {
	// GIVEN: The scheduler missed the day-10 tick
	// THEN: Day 11 stays silent; the next firing is still day 20
	start := window.NewDate(2025, time.January, 1)
	st := inWindowStatus(start)

	assert.False(t, tracking.ShouldRemind(st, true, start.AddDays(11), 10, true))
	assert.True(t, tracking.ShouldRemind(st, true, start.AddDays(20), 10, true))
}

// =============================================================================
// GATING
// =============================================================================

func TestShouldRemind_RequiresVerifiedLink(t *testing.T) {
	start := window.NewDate(2025, time.January, 1)
	st := inWindowStatus(start)

	assert.False(t, tracking.ShouldRemind(st, false, start, 10, true),
		"no verified link means no destination to notify")
}

func TestShouldRemind_OverdueFollowsFlag(t *testing.T) {
	// GIVEN: An overdue entity on a grid day
	// THEN: remind_overdue decides whether it still fires
	start := window.NewDate(2025, time.January, 1)
	st := tracking.Status{
		Kind:   tracking.StatusOverdue,
		Window: window.Window{Year: 2025, Start: start, End: start.AddDays(100)},
	}
	asOf := start.AddDays(110)

	assert.True(t, tracking.ShouldRemind(st, true, asOf, 10, true))
	assert.False(t, tracking.ShouldRemind(st, true, asOf, 10, false))
}

func TestShouldRemind_TerminalKindsNeverFire(t *testing.T) {
	start := window.NewDate(2025, time.January, 1)
	w := window.Window{Year: 2025, Start: start, End: start.AddDays(100)}

	for _, kind := range []tracking.StatusKind{
		tracking.StatusCompleted,
		tracking.StatusDeferred,
		tracking.StatusNotOpen,
	} {
		st := tracking.Status{Kind: kind, Window: w}
		assert.False(t, tracking.ShouldRemind(st, true, start, 10, true), string(kind))
	}
}
