package ledger

import (
	"fmt"
	"time"
)

// DateOf truncates t to its calendar date in loc and returns it as midnight
// UTC. Planned dates are stored in this form so that comparisons agree
// across databases.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsDue reports whether a planned date has been reached on today.
func IsDue(planned *time.Time, today time.Time) bool {
	if planned == nil {
		return true
	}
	return !DateOf(*planned, time.UTC).After(today)
}

// PeriodUnit is the granularity of a period filter.
type PeriodUnit string

const (
	PeriodDay   PeriodUnit = "day"
	PeriodMonth PeriodUnit = "month"
	PeriodYear  PeriodUnit = "year"
)

// Period selects a calendar day, month or year. Zero fields default to
// today's corresponding unit, so Period{Unit: PeriodMonth} is the current
// month and Period{Unit: PeriodDay, Day: 3} is the 3rd of the current month.
// A defaulted day is clamped to the last day of a shorter month; an explicit
// day that does not exist is an error.
type Period struct {
	Unit  PeriodUnit
	Day   int
	Month int
	Year  int
}

// Validate checks the unit and the explicit numbers.
func (p Period) Validate() error {
	switch p.Unit {
	case PeriodDay, PeriodMonth, PeriodYear:
	default:
		return fmt.Errorf("unknown period %q", string(p.Unit))
	}
	if p.Day < 0 || p.Day > 31 {
		return fmt.Errorf("day must be between 1 and 31, got %d", p.Day)
	}
	if p.Month < 0 || p.Month > 12 {
		return fmt.Errorf("month must be between 1 and 12, got %d", p.Month)
	}
	if p.Year < 0 || p.Year > 9999 {
		return fmt.Errorf("invalid year %d", p.Year)
	}
	return nil
}

// Range resolves the period against now into a half-open UTC interval
// [from, to).
func (p Period) Range(now time.Time, loc *time.Location) (from, to time.Time, err error) {
	if err := p.Validate(); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	year, month, day := p.Year, time.Month(p.Month), p.Day
	if year == 0 {
		year = local.Year()
	}
	if month == 0 {
		month = local.Month()
	}
	if day == 0 {
		day = min(local.Day(), daysIn(year, month))
	}

	switch p.Unit {
	case PeriodDay:
		from = time.Date(year, month, day, 0, 0, 0, 0, loc)
		if from.Day() != day {
			return time.Time{}, time.Time{}, fmt.Errorf("day %d does not exist in %s %d", day, month, year)
		}
		to = from.AddDate(0, 0, 1)
	case PeriodMonth:
		from = time.Date(year, month, 1, 0, 0, 0, 0, loc)
		to = from.AddDate(0, 1, 0)
	case PeriodYear:
		from = time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		to = from.AddDate(1, 0, 0)
	}
	return from.UTC(), to.UTC(), nil
}

// daysIn returns the number of days in month of year.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
