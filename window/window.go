/*
window.go - Obligation window computation

PURPOSE:
  Converts an anniversary date (birthday) plus an "as of" date into the
  active obligation window: which window-year it belongs to, its start and
  end boundaries, and whether it is currently open. This is the only place
  in the system that knows how windows are laid out on the calendar.

WINDOW MODES:
  fixed_length  start = most recent anniversary on/before asOf,
                end   = start + N days, inclusive (default N = 100)
  full_year     start = most recent anniversary on/before asOf,
                end   = day before the next anniversary

  End is always the LAST day inside the window, so containment is the
  uniform check start <= d <= end in both modes. A full-year window whose
  next anniversary is 2026-07-14 therefore ends on 2026-07-13.

LEAP DAYS:
  A Feb 29 birthday maps to Feb 28 in non-leap years. This rule is fixed:
  the anniversary is the nearest valid prior date, never Mar 1.

INVARIANT:
  For any (birthday, asOf) exactly one window contains asOf, except when
  asOf precedes the first anniversary of a real birth year - then the
  window is reported as not yet open with the upcoming start.

DETERMINISM:
  Compute is a pure function of its arguments. Repeated calls with the
  same inputs return the same Window.

SEE ALSO:
  - date.go: Date arithmetic
  - tracking/evaluate.go: Status classification on top of Window
*/
package window

import "time"

// Mode selects how window boundaries are derived from the anniversary.
type Mode string

const (
	ModeFixedLength Mode = "fixed_length"
	ModeFullYear    Mode = "full_year"
)

// DefaultFixedLengthDays is the canonical window length for ModeFixedLength.
const DefaultFixedLengthDays = 100

// Window is the derived obligation window for one entity at one moment.
// It is never persisted; (PersonnelID, Year) keys the records scoped to it.
type Window struct {
	Year  int  // calendar year of Start; the window-year persistence key
	Start Date // first day inside the window
	End   Date // last day inside the window
	Open  bool // Start <= asOf <= End at computation time

	// NotYetOpen is set when asOf precedes the first anniversary of a real
	// birth year: no window contains asOf yet, and Start/End describe the
	// upcoming window.
	NotYetOpen bool
}

// Contains reports whether d falls inside the window.
func (w Window) Contains(d Date) bool {
	return d.AfterOrEqual(w.Start) && d.BeforeOrEqual(w.End)
}

// Anniversary returns the birthday's anniversary in the given year.
// Feb 29 birthdays fall back to Feb 28 in non-leap years.
func Anniversary(birthday Date, year int) Date {
	if birthday.Month() == time.February && birthday.Day() == 29 && !isLeap(year) {
		return NewDate(year, time.February, 28)
	}
	return NewDate(year, birthday.Month(), birthday.Day())
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// Compute returns the window for the given anniversary date and asOf date.
// fixedDays is only consulted in ModeFixedLength; zero or negative values
// fall back to DefaultFixedLengthDays.
func Compute(birthday, asOf Date, mode Mode, fixedDays int) Window {
	if fixedDays <= 0 {
		fixedDays = DefaultFixedLengthDays
	}

	start := Anniversary(birthday, asOf.Year())
	if asOf.Before(start) {
		prev := Anniversary(birthday, asOf.Year()-1)
		if prev.Before(birthday) {
			// asOf predates the first anniversary: the upcoming window is
			// the only one that exists.
			w := build(birthday, start, mode, fixedDays)
			w.NotYetOpen = true
			return w
		}
		start = prev
	}

	w := build(birthday, start, mode, fixedDays)
	w.Open = w.Contains(asOf)
	return w
}

func build(birthday, start Date, mode Mode, fixedDays int) Window {
	var end Date
	switch mode {
	case ModeFullYear:
		end = Anniversary(birthday, start.Year()+1).AddDays(-1)
	default: // ModeFixedLength
		end = start.AddDays(fixedDays)
	}
	return Window{Year: start.Year(), Start: start, End: end}
}

// NextReminder returns the next date on the interval grid anchored at the
// window start, on or after asOf. The second return is false when no
// reminder date remains inside the window.
func NextReminder(w Window, asOf Date, intervalDays int) (Date, bool) {
	if intervalDays <= 0 {
		return Date{}, false
	}
	if asOf.Before(w.Start) {
		return w.Start, true
	}
	if asOf.After(w.End) {
		return Date{}, false
	}
	rem := DaysBetween(w.Start, asOf) % intervalDays
	next := asOf
	if rem != 0 {
		next = asOf.AddDays(intervalDays - rem)
	}
	if next.After(w.End) {
		return Date{}, false
	}
	return next, true
}
