package recurring

import (
	"fmt"
	"time"

	"github.com/rezkam/shopfloor/internal/domain"
)

// maxSkipRounds bounds how often a disabled candidate may push the cadence
// forward before the pattern is considered unsatisfiable.
const maxSkipRounds = 366

// maxShiftDays bounds a previous/next shift across consecutive disabled days.
const maxShiftDays = 31

// PatternCalculator computes the base candidate for one frequency.
// Skip rules and terminal conditions are applied by Calculator on top.
type PatternCalculator interface {
	// Next returns the first cadence date strictly after the given date.
	// Returns nil if the cadence has no further dates.
	Next(p domain.RecurrencePattern, after time.Time) (*time.Time, error)
}

// ExpressionEvaluator resolves CUSTOM patterns that carry a custom expression.
type ExpressionEvaluator interface {
	// Next returns the first date matched by expression strictly after the given date,
	// or nil when the expression matches nothing further.
	Next(expression string, after time.Time) (*time.Time, error)
}

// Calculator evaluates recurrence patterns. It is pure and safe for concurrent use.
type Calculator struct {
	evaluator ExpressionEvaluator
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithExpressionEvaluator sets the evaluator used for CUSTOM expression patterns.
func WithExpressionEvaluator(e ExpressionEvaluator) Option {
	return func(c *Calculator) {
		c.evaluator = e
	}
}

// NewCalculator creates a Calculator. Custom expressions are evaluated as cron
// expressions unless another evaluator is supplied.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		evaluator: NewCronEvaluator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCalculator = NewCalculator()

// ComputeNextOccurrence returns the next valid occurrence of p after from using the
// default calculator. Returns nil once the pattern has ended.
func ComputeNextOccurrence(p domain.RecurrencePattern, from time.Time) (*time.Time, error) {
	return defaultCalculator.NextOccurrence(p, from)
}

// GetCalculator returns the base calculator for the given frequency, or nil if unknown.
func (c *Calculator) GetCalculator(f domain.Frequency) PatternCalculator {
	switch f {
	case domain.FrequencyDaily:
		return &DailyCalculator{}
	case domain.FrequencyWeekly:
		return &WeeklyCalculator{}
	case domain.FrequencyMonthly:
		return &MonthlyCalculator{}
	case domain.FrequencyQuarterly:
		return &QuarterlyCalculator{}
	case domain.FrequencyYearly:
		return &YearlyCalculator{}
	case domain.FrequencyCustom:
		return &CustomCalculator{Evaluator: c.evaluator}
	default:
		return nil
	}
}

// NextOccurrence returns the next valid occurrence of p strictly after from.
//
// The result honours the pattern's skip rules and returns nil once EndDate or
// EndAfterOccurrences is reached; a nil result stays nil for every later from.
// For every frequency except DAILY, reference dates before the start date are
// treated as the start date.
// Structurally invalid patterns fail with domain.ErrConfiguration.
func (c *Calculator) NextOccurrence(p domain.RecurrencePattern, from time.Time) (*time.Time, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	next, err := c.next(p, from)
	if err != nil || next == nil {
		return nil, err
	}

	if p.EndAfterOccurrences != nil {
		exceeded, err := c.exceedsOccurrenceLimit(p, *next)
		if err != nil {
			return nil, err
		}
		if exceeded {
			return nil, nil
		}
	}

	return next, nil
}

// Occurrences lists up to limit successive occurrences after from, stopping at
// until (inclusive) when until is non-zero.
func (c *Calculator) Occurrences(p domain.RecurrencePattern, from, until time.Time, limit int) ([]time.Time, error) {
	var out []time.Time
	cursor := from

	for len(out) < limit {
		next, err := c.NextOccurrence(p, cursor)
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		if !until.IsZero() && next.After(domain.DateOf(until)) {
			break
		}
		out = append(out, *next)
		cursor = *next
	}

	return out, nil
}

// next computes the skip-adjusted candidate, applying EndDate but not the
// occurrence limit.
func (c *Calculator) next(p domain.RecurrencePattern, from time.Time) (*time.Time, error) {
	calc := c.GetCalculator(p.Frequency)
	if calc == nil {
		return nil, fmt.Errorf("%w: unknown frequency %q", domain.ErrConfiguration, p.Frequency)
	}

	// Daily cadences count from the reference date itself; the others are
	// anchored to the start date and never look before it.
	cursor := domain.DateOf(from)
	if start := domain.DateOf(p.StartDate); p.Frequency != domain.FrequencyDaily && cursor.Before(start) {
		cursor = start
	}

	for range maxSkipRounds {
		base, err := calc.Next(p, cursor)
		if err != nil {
			return nil, err
		}
		if base == nil {
			return nil, nil
		}
		if p.EndDate != nil && base.After(domain.DateOf(*p.EndDate)) {
			return nil, nil
		}

		if !p.IsDisabled(*base) {
			return base, nil
		}

		switch p.DisabledHandling() {
		case domain.DisabledDateSkip:
			// Advance the cadence, not just the date, so occurrences never pile
			// up on the same adjusted day.
			cursor = *base
			continue
		case domain.DisabledDatePrevious:
			adjusted, err := shift(p, *base, -1)
			if err != nil {
				return nil, err
			}
			if adjusted.After(cursor) {
				return &adjusted, nil
			}
			// Shifting back would land on or before the reference date.
			cursor = *base
		default:
			adjusted, err := shift(p, *base, 1)
			if err != nil {
				return nil, err
			}
			return &adjusted, nil
		}
	}

	return nil, fmt.Errorf("%w: no allowed date found after %d cadence steps from %s",
		domain.ErrConfiguration, maxSkipRounds, from.Format(domain.DateLayout))
}

// exceedsOccurrenceLimit reports whether candidate's ordinal in the pattern's
// occurrence chain is beyond EndAfterOccurrences. The ordinal is one more than
// the number of chain occurrences strictly before candidate.
func (c *Calculator) exceedsOccurrenceLimit(p domain.RecurrencePattern, candidate time.Time) (bool, error) {
	limit := *p.EndAfterOccurrences
	cursor := domain.DateOf(p.StartDate)

	for range limit {
		occ, err := c.next(p, cursor)
		if err != nil {
			return false, err
		}
		if occ == nil || !occ.Before(candidate) {
			return false, nil
		}
		cursor = *occ
	}

	return true, nil
}

// shift moves date by step days until it lands on an allowed day.
func shift(p domain.RecurrencePattern, date time.Time, step int) (time.Time, error) {
	for range maxShiftDays {
		date = date.AddDate(0, 0, step)
		if !p.IsDisabled(date) {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: no allowed date within %d days of %s",
		domain.ErrConfiguration, maxShiftDays, date.Format(domain.DateLayout))
}
