package domain

import (
	"fmt"
	"slices"
	"time"
)

// LastWeekOfMonth selects the last matching weekday of a month when used as WeekOfMonth.
const LastWeekOfMonth = 5

// MaxInterval is the largest accepted pattern interval.
const MaxInterval = 1000

// RecurrencePattern is an immutable description of a repeating schedule.
//
// Day selection depends on Frequency:
//   - WEEKLY: DaysOfWeek (defaults to StartDate's weekday)
//   - MONTHLY: exactly one of DayOfMonth or WeekOfMonth+DayOfWeekMonthly
//   - QUARTERLY: DayOfMonth (defaults to StartDate's day)
//   - YEARLY: StartDate's day in Month (defaults to StartDate's month)
//   - CUSTOM: CustomDates or CustomExpression
//
// Terminal conditions (EndDate, EndAfterOccurrences) combine: the pattern ends
// when either is reached.
type RecurrencePattern struct {
	Frequency Frequency `json:"frequency"`
	Interval  int       `json:"interval"`
	StartDate time.Time `json:"start_date"`

	EndDate             *time.Time `json:"end_date,omitempty"`
	EndAfterOccurrences *int       `json:"end_after_occurrences,omitempty"`

	DaysOfWeek       []time.Weekday `json:"days_of_week,omitempty"`
	DayOfMonth       *int           `json:"day_of_month,omitempty"`
	WeekOfMonth      *int           `json:"week_of_month,omitempty"`
	DayOfWeekMonthly *time.Weekday  `json:"day_of_week_monthly,omitempty"`
	Month            *time.Month    `json:"month,omitempty"`

	CustomDates      []time.Time `json:"custom_dates,omitempty"`
	CustomExpression string      `json:"custom_expression,omitempty"`

	SkipWeekends         bool                 `json:"skip_weekends"`
	SkipHolidays         bool                 `json:"skip_holidays"`
	Holidays             []time.Time          `json:"holidays,omitempty"`
	DisabledDateHandling DisabledDateHandling `json:"disabled_date_handling,omitempty"`
}

// Validate checks the pattern's structural invariants.
// Every violation wraps ErrConfiguration.
func (p RecurrencePattern) Validate() error {
	if _, err := NewFrequency(string(p.Frequency)); err != nil {
		return err
	}
	if p.Interval < 1 || p.Interval > MaxInterval {
		return configErr("interval must be within 1-%d, got %d", MaxInterval, p.Interval)
	}
	if p.StartDate.IsZero() {
		return configErr("start date is required")
	}
	if p.EndDate != nil && DateOf(*p.EndDate).Before(DateOf(p.StartDate)) {
		return configErr("end date %s is before start date %s",
			p.EndDate.Format(DateLayout), p.StartDate.Format(DateLayout))
	}
	if p.EndAfterOccurrences != nil && *p.EndAfterOccurrences < 1 {
		return configErr("end after occurrences must be at least 1, got %d", *p.EndAfterOccurrences)
	}
	if p.DisabledDateHandling != "" {
		if _, err := NewDisabledDateHandling(string(p.DisabledDateHandling)); err != nil {
			return err
		}
	}
	if p.DayOfMonth != nil && (*p.DayOfMonth < 1 || *p.DayOfMonth > 31) {
		return configErr("day of month must be within 1-31, got %d", *p.DayOfMonth)
	}
	if p.WeekOfMonth != nil && (*p.WeekOfMonth < 1 || *p.WeekOfMonth > LastWeekOfMonth) {
		return configErr("week of month must be within 1-5, got %d", *p.WeekOfMonth)
	}
	if p.Month != nil && (*p.Month < time.January || *p.Month > time.December) {
		return configErr("month must be within 1-12, got %d", int(*p.Month))
	}
	for _, wd := range p.DaysOfWeek {
		if wd < time.Sunday || wd > time.Saturday {
			return configErr("invalid weekday %d", int(wd))
		}
	}

	switch p.Frequency {
	case FrequencyMonthly:
		byDay := p.DayOfMonth != nil
		byWeekday := p.WeekOfMonth != nil || p.DayOfWeekMonthly != nil
		if byWeekday && (p.WeekOfMonth == nil || p.DayOfWeekMonthly == nil) {
			return configErr("monthly pattern needs both week of month and day of week")
		}
		if byDay == byWeekday {
			return configErr("monthly pattern needs exactly one of day of month or week of month with day of week")
		}
	case FrequencyCustom:
		if len(p.CustomDates) == 0 && p.CustomExpression == "" {
			return configErr("custom pattern needs custom dates or a custom expression")
		}
		if !slices.IsSortedFunc(p.CustomDates, func(a, b time.Time) int { return a.Compare(b) }) {
			return configErr("custom dates must be in ascending order")
		}
	}

	return nil
}

// Weekdays returns the weekdays a WEEKLY pattern fires on.
// Falls back to the start date's weekday when none are set.
func (p RecurrencePattern) Weekdays() []time.Weekday {
	if len(p.DaysOfWeek) == 0 {
		return []time.Weekday{p.StartDate.Weekday()}
	}
	return p.DaysOfWeek
}

// DisabledHandling returns the configured policy, defaulting to DisabledDateNext.
func (p RecurrencePattern) DisabledHandling() DisabledDateHandling {
	if p.DisabledDateHandling == "" {
		return DisabledDateNext
	}
	return p.DisabledDateHandling
}

// IsHoliday reports whether t is one of the pattern's holidays.
func (p RecurrencePattern) IsHoliday(t time.Time) bool {
	day := DateOf(t)
	for _, h := range p.Holidays {
		if DateOf(h).Equal(day) {
			return true
		}
	}
	return false
}

// IsDisabled reports whether the skip rules exclude t.
func (p RecurrencePattern) IsDisabled(t time.Time) bool {
	if p.SkipWeekends && IsWeekend(t) {
		return true
	}
	return p.SkipHolidays && p.IsHoliday(t)
}

// HasSkipRules reports whether any date can be excluded.
func (p RecurrencePattern) HasSkipRules() bool {
	return p.SkipWeekends || (p.SkipHolidays && len(p.Holidays) > 0)
}

// WithHolidays returns a copy of the pattern with extra holidays merged in.
func (p RecurrencePattern) WithHolidays(extra []time.Time) RecurrencePattern {
	if len(extra) == 0 {
		return p
	}
	merged := make([]time.Time, 0, len(p.Holidays)+len(extra))
	merged = append(merged, p.Holidays...)
	merged = append(merged, extra...)
	p.Holidays = merged
	return p
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
