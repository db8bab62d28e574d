package recurring

import (
	"fmt"
	"time"

	"github.com/rezkam/shopfloor/internal/domain"
)

// maxCadenceSteps caps the anchored-period search. Reaching it means the
// pattern cannot produce a date (never happens for validated patterns).
const maxCadenceSteps = 1000

// DailyCalculator fires every Interval days after the reference date.
type DailyCalculator struct{}

func (c *DailyCalculator) Next(p domain.RecurrencePattern, after time.Time) (*time.Time, error) {
	next := domain.DateOf(after).AddDate(0, 0, p.Interval)
	return &next, nil
}

// WeeklyCalculator fires on the pattern's weekdays in weeks that are a whole
// multiple of Interval weeks after the start date's week. Weeks start on Monday.
type WeeklyCalculator struct{}

func (c *WeeklyCalculator) Next(p domain.RecurrencePattern, after time.Time) (*time.Time, error) {
	days := make(map[time.Weekday]bool, 7)
	for _, wd := range p.Weekdays() {
		days[wd] = true
	}

	candidate := domain.DateOf(after).AddDate(0, 0, 1)
	week := weekStart(candidate)
	if off := mod(domain.DaysBetween(weekStart(p.StartDate), week)/7, p.Interval); off != 0 {
		week = week.AddDate(0, 0, 7*(p.Interval-off))
		candidate = week
	}

	// The aligned week may have no selected day left; the next aligned week always does.
	for range 2 {
		end := week.AddDate(0, 0, 7)
		for d := candidate; d.Before(end); d = d.AddDate(0, 0, 1) {
			if days[d.Weekday()] {
				found := d
				return &found, nil
			}
		}
		week = week.AddDate(0, 0, 7*p.Interval)
		candidate = week
	}

	return nil, fmt.Errorf("%w: no weekly occurrence after %s",
		domain.ErrConfiguration, after.Format(domain.DateLayout))
}

// MonthlyCalculator fires once per anchored month, either on a fixed day
// (clamped to the month's length) or on the Nth weekday of the month.
// Anchored months are the start month advanced by whole multiples of Interval.
type MonthlyCalculator struct{}

func (c *MonthlyCalculator) Next(p domain.RecurrencePattern, after time.Time) (*time.Time, error) {
	if err := validateMonthlyDaySelection(p); err != nil {
		return nil, err
	}

	pick := func(year int, month time.Month) time.Time {
		if p.DayOfMonth != nil {
			return clampedDate(year, month, *p.DayOfMonth)
		}
		return nthWeekday(year, month, *p.DayOfWeekMonthly, *p.WeekOfMonth)
	}
	return nextAnchoredMonth(p.StartDate, p.Interval, after, pick)
}

// QuarterlyCalculator is a monthly cadence of Interval*3 months on a fixed day
// (DayOfMonth, or the start date's day).
type QuarterlyCalculator struct{}

func (c *QuarterlyCalculator) Next(p domain.RecurrencePattern, after time.Time) (*time.Time, error) {
	day := p.StartDate.Day()
	if p.DayOfMonth != nil {
		day = *p.DayOfMonth
	}

	pick := func(year int, month time.Month) time.Time {
		return clampedDate(year, month, day)
	}
	return nextAnchoredMonth(p.StartDate, p.Interval*3, after, pick)
}

// YearlyCalculator fires on the start date's day every Interval years, in Month
// when set or the start date's month otherwise. Feb 29 clamps to Feb 28.
type YearlyCalculator struct{}

func (c *YearlyCalculator) Next(p domain.RecurrencePattern, after time.Time) (*time.Time, error) {
	month := p.StartDate.Month()
	if p.Month != nil {
		month = *p.Month
	}
	day := p.StartDate.Day()
	from := domain.DateOf(after)

	start := max(1, (from.Year()-p.StartDate.Year())/p.Interval)
	for k := start; k < start+maxCadenceSteps; k++ {
		candidate := clampedDate(p.StartDate.Year()+k*p.Interval, month, day)
		if candidate.After(from) {
			return &candidate, nil
		}
	}

	return nil, fmt.Errorf("%w: no yearly occurrence after %s", domain.ErrConfiguration, from.Format(domain.DateLayout))
}

// CustomCalculator walks an explicit date list, or delegates to an
// ExpressionEvaluator when the pattern carries a custom expression.
type CustomCalculator struct {
	Evaluator ExpressionEvaluator
}

func (c *CustomCalculator) Next(p domain.RecurrencePattern, after time.Time) (*time.Time, error) {
	from := domain.DateOf(after)

	if p.CustomExpression != "" {
		if c.Evaluator == nil {
			return nil, fmt.Errorf("%w: no evaluator configured for custom expression %q",
				domain.ErrConfiguration, p.CustomExpression)
		}
		next, err := c.Evaluator.Next(p.CustomExpression, from)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		candidate := domain.DateOf(*next)
		if !candidate.After(from) {
			return nil, fmt.Errorf("%w: evaluator returned %s for expression %q, not after %s",
				domain.ErrConfiguration, candidate.Format(domain.DateLayout), p.CustomExpression, from.Format(domain.DateLayout))
		}
		return &candidate, nil
	}

	for _, d := range p.CustomDates {
		candidate := domain.DateOf(d)
		if candidate.After(from) {
			return &candidate, nil
		}
	}
	return nil, nil
}

// nextAnchoredMonth returns the earliest date picked from an anchored month
// (start month + k*step, k >= 1) that falls after the reference date.
// The start month itself is the anchor and never produces an occurrence.
func nextAnchoredMonth(start time.Time, step int, after time.Time, pick func(int, time.Month) time.Time) (*time.Time, error) {
	from := domain.DateOf(after)
	startIdx := monthIndex(start)

	k := max(1, (monthIndex(from)-startIdx)/step)
	for range maxCadenceSteps {
		idx := startIdx + k*step
		candidate := pick(idx/12, time.Month(idx%12+1))
		if candidate.After(from) {
			return &candidate, nil
		}
		k++
	}

	return nil, fmt.Errorf("%w: no monthly occurrence after %s", domain.ErrConfiguration, from.Format(domain.DateLayout))
}

func validateMonthlyDaySelection(p domain.RecurrencePattern) error {
	byDay := p.DayOfMonth != nil
	byWeekday := p.WeekOfMonth != nil && p.DayOfWeekMonthly != nil
	partial := (p.WeekOfMonth != nil) != (p.DayOfWeekMonthly != nil)

	if partial || byDay == byWeekday {
		return fmt.Errorf("%w: monthly pattern needs exactly one of day of month or week of month with day of week",
			domain.ErrConfiguration)
	}
	return nil
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampedDate builds year-month-day, moving day back to the month's last day when it overflows.
func clampedDate(year int, month time.Month, day int) time.Time {
	return domain.Date(year, month, min(day, daysIn(year, month)))
}

// nthWeekday returns the nth (1-4) weekday of the month, or the last one when n is 5.
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	if n >= domain.LastWeekOfMonth {
		last := domain.Date(year, month, daysIn(year, month))
		back := mod(int(last.Weekday())-int(wd), 7)
		return last.AddDate(0, 0, -back)
	}

	first := domain.Date(year, month, 1)
	offset := mod(int(wd)-int(first.Weekday()), 7)
	return first.AddDate(0, 0, offset+(n-1)*7)
}

// weekStart returns the Monday of t's week.
func weekStart(t time.Time) time.Time {
	d := domain.DateOf(t)
	return d.AddDate(0, 0, -mod(int(d.Weekday())-int(time.Monday), 7))
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}
