package brokerage

import (
	"fmt"
	"time"
)

// DateLayout is the storage and wire format of calendar dates.
const DateLayout = "2006-01-02"

// =============================================================================
// DATES - Calendar days at UTC midnight
// =============================================================================

// NewDate returns the calendar day at UTC midnight.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day.
func Today() time.Time {
	return Day(time.Now())
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return Day(t).Format(DateLayout)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// =============================================================================
// WINDOW - Half-open calendar-month range [Start, End)
// =============================================================================

// Window is the half-open date range used by every period aggregate.
// End is also the key under which monthly commission totals are stored.
type Window struct {
	Start time.Time
	End   time.Time
}

// MonthWindow returns [first of month, first of next month).
// December rolls over into January of the next year.
func MonthWindow(year int, month time.Month) (Window, error) {
	if month < time.January || month > time.December {
		return Window{}, fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	start := NewDate(year, month, 1)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

// MustMonthWindow is MonthWindow for months known to be valid.
func MustMonthWindow(year int, month time.Month) Window {
	w, err := MonthWindow(year, month)
	if err != nil {
		panic(err)
	}
	return w
}

// Contains reports whether t falls in [Start, End).
func (w Window) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(w.Start) && d.Before(w.End)
}

// Key returns the period key of monthly commission rows for this window.
func (w Window) Key() time.Time {
	return w.End
}

// Year and Month identify the calendar month the window covers.
func (w Window) Year() int { return w.Start.Year() }
func (w Window) Month() time.Month { return w.Start.Month() }

func (w Window) String() string {
	return "[" + FormatDate(w.Start) + ", " + FormatDate(w.End) + ")"
}
