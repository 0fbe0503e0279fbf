package window_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/readiness-engine/window"
)

// =============================================================================
// DATE ARITHMETIC
// =============================================================================

func TestParseDate_Strict(t *testing.T) {
	d, err := window.ParseDate("2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, window.NewDate(2025, time.March, 10), d)

	for _, bad := range []string{"10/03/2025", "2025-3-10", "2025-03-10T00:00:00Z", "", "not-a-date"} {
		_, err := window.ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestDaysBetween_Signed(t *testing.T) {
	a := window.NewDate(2025, time.January, 1)
	b := window.NewDate(2025, time.January, 11)

	assert.Equal(t, 10, window.DaysBetween(a, b))
	assert.Equal(t, -10, window.DaysBetween(b, a))
	assert.Equal(t, 0, window.DaysBetween(a, a))
}

// =============================================================================
// ANNIVERSARY
// =============================================================================

func TestAnniversary_LeapBirthday(t *testing.T) {
	// GIVEN: A Feb 29 birthday
	// THEN: Leap years keep Feb 29, non-leap years map to Feb 28
	bd := window.NewDate(2020, time.February, 29)

	assert.Equal(t, window.NewDate(2024, time.February, 29), window.Anniversary(bd, 2024))
	assert.Equal(t, window.NewDate(2021, time.February, 28), window.Anniversary(bd, 2021))
	assert.Equal(t, window.NewDate(2100, time.February, 28), window.Anniversary(bd, 2100))
	assert.Equal(t, window.NewDate(2000, time.February, 29), window.Anniversary(bd, 2000))
}

// =============================================================================
// FIXED-LENGTH MODE
// =============================================================================

func TestCompute_FixedLength_OpenWindow(t *testing.T) {
	// GIVEN: Birthday July 14, window length 100 days
	// WHEN: Evaluated mid-window
	// THEN: Window anchors at this year's anniversary and is open
	bd := window.NewDate(1990, time.July, 14)
	asOf := window.NewDate(2025, time.August, 1)

	w := window.Compute(bd, asOf, window.ModeFixedLength, 100)

	assert.Equal(t, 2025, w.Year)
	assert.Equal(t, window.NewDate(2025, time.July, 14), w.Start)
	assert.Equal(t, window.NewDate(2025, time.October, 22), w.End)
	assert.True(t, w.Open)
	assert.False(t, w.NotYetOpen)
}

func TestCompute_FixedLength_BeforeAnniversary_UsesPreviousYear(t *testing.T) {
	// GIVEN: asOf earlier in the year than the anniversary
	// THEN: The window belongs to the previous anniversary
	bd := window.NewDate(1990, time.July, 14)
	asOf := window.NewDate(2025, time.March, 1)

	w := window.Compute(bd, asOf, window.ModeFixedLength, 100)

	assert.Equal(t, 2024, w.Year)
	assert.Equal(t, window.NewDate(2024, time.July, 14), w.Start)
	assert.False(t, w.Open, "100-day window from July 2024 closed before March 2025")
}

func TestCompute_FixedLength_LeapBirthdayVector(t *testing.T) {
	// GIVEN: Birthday 2020-02-29, evaluated 2021-03-01
	// THEN: Window starts 2021-02-28 and ends 100 days later on 2021-06-08
	bd := window.NewDate(2020, time.February, 29)
	asOf := window.NewDate(2021, time.March, 1)

	w := window.Compute(bd, asOf, window.ModeFixedLength, 100)

	assert.Equal(t, 2021, w.Year)
	assert.Equal(t, window.NewDate(2021, time.February, 28), w.Start)
	assert.Equal(t, window.NewDate(2021, time.June, 8), w.End)
	assert.True(t, w.Open)
}

func TestCompute_FixedLength_DefaultLength(t *testing.T) {
	bd := window.NewDate(1990, time.July, 14)
	asOf := window.NewDate(2025, time.July, 14)

	zero := window.Compute(bd, asOf, window.ModeFixedLength, 0)
	explicit := window.Compute(bd, asOf, window.ModeFixedLength, window.DefaultFixedLengthDays)

	assert.Equal(t, explicit, zero)
}

func TestCompute_NotYetOpen_BeforeFirstAnniversary(t *testing.T) {
	// GIVEN: asOf before the first anniversary ever
	// THEN: The window is reported as upcoming, not open
	bd := window.NewDate(2024, time.July, 14)
	asOf := window.NewDate(2025, time.March, 1)

	w := window.Compute(bd, asOf, window.ModeFixedLength, 100)

	assert.True(t, w.NotYetOpen)
	assert.False(t, w.Open)
	assert.Equal(t, window.NewDate(2025, time.July, 14), w.Start)
}

// =============================================================================
// FULL-YEAR MODE
// =============================================================================

func TestCompute_FullYear_EndIsDayBeforeNextAnniversary(t *testing.T) {
	bd := window.NewDate(1990, time.July, 14)
	asOf := window.NewDate(2026, time.January, 5)

	w := window.Compute(bd, asOf, window.ModeFullYear, 0)

	assert.Equal(t, 2025, w.Year)
	assert.Equal(t, window.NewDate(2025, time.July, 14), w.Start)
	assert.Equal(t, window.NewDate(2026, time.July, 13), w.End)
	assert.True(t, w.Open)
}

func TestCompute_FullYear_EveryDayCoveredExactlyOnce(t *testing.T) {
	// GIVEN: A full-year layout
	// THEN: Consecutive windows tile the calendar with no gap or overlap
	bd := window.NewDate(1990, time.July, 14)

	prevEnd := window.Date{}
	d := window.NewDate(2023, time.July, 14)
	for i := 0; i < 800; i++ {
		w := window.Compute(bd, d, window.ModeFullYear, 0)
		require.True(t, w.Contains(d), "day %s must be inside its own window", d)
		if !prevEnd.IsZero() && w.Start.After(prevEnd) {
			assert.Equal(t, prevEnd.AddDays(1), w.Start, "windows must abut")
		}
		prevEnd = w.End
		d = d.AddDays(1)
	}
}

// =============================================================================
// REMINDER GRID
// =============================================================================

func TestNextReminder_OnGridAndOffGrid(t *testing.T) {
	w := window.Window{
		Year:  2025,
		Start: window.NewDate(2025, time.January, 1),
		End:   window.NewDate(2025, time.April, 11),
	}

	// On a grid day the reminder is that same day.
	next, ok := window.NextReminder(w, window.NewDate(2025, time.January, 11), 10)
	require.True(t, ok)
	assert.Equal(t, window.NewDate(2025, time.January, 11), next)

	// Off-grid rounds up to the next grid day.
	next, ok = window.NextReminder(w, window.NewDate(2025, time.January, 15), 10)
	require.True(t, ok)
	assert.Equal(t, window.NewDate(2025, time.January, 21), next)

	// Before the window the first reminder is the start itself.
	next, ok = window.NextReminder(w, window.NewDate(2024, time.December, 20), 10)
	require.True(t, ok)
	assert.Equal(t, w.Start, next)

	// Past the end there is nothing left.
	_, ok = window.NextReminder(w, window.NewDate(2025, time.April, 12), 10)
	assert.False(t, ok)
}
