package recurring

import (
	"testing"
	"time"

	"github.com/rezkam/shopfloor/internal/domain"
	"github.com/rezkam/shopfloor/internal/ptr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return domain.Date(y, m, d)
}

func mustNext(t *testing.T, c *Calculator, p domain.RecurrencePattern, from time.Time) time.Time {
	t.Helper()
	next, err := c.NextOccurrence(p, from)
	require.NoError(t, err)
	require.NotNil(t, next, "expected an occurrence after %s", from.Format(domain.DateLayout))
	return *next
}

// TestDailyCalculator tests daily recurrence pattern
func TestDailyCalculator(t *testing.T) {
	calc := NewCalculator()
	start := day(2025, 1, 1)

	for _, interval := range []int{1, 2, 7, 30} {
		p := domain.RecurrencePattern{Frequency: domain.FrequencyDaily, Interval: interval, StartDate: start}

		for _, from := range []time.Time{start, day(2025, 2, 27), day(2025, 12, 31), day(2028, 2, 28)} {
			got := mustNext(t, calc, p, from)
			assert.Equal(t, from.AddDate(0, 0, interval), got, "interval %d from %s", interval, from)
		}
	}

	t.Run("time of day is ignored", func(t *testing.T) {
		p := domain.RecurrencePattern{Frequency: domain.FrequencyDaily, Interval: 1, StartDate: start}
		got := mustNext(t, calc, p, time.Date(2025, 1, 5, 23, 59, 0, 0, time.UTC))
		assert.Equal(t, day(2025, 1, 6), got)
	})
}

// TestWeeklyCalculator tests weekly recurrence pattern
func TestWeeklyCalculator(t *testing.T) {
	calc := NewCalculator()

	t.Run("single weekday", func(t *testing.T) {
		p := domain.RecurrencePattern{
			Frequency:  domain.FrequencyWeekly,
			Interval:   1,
			DaysOfWeek: []time.Weekday{time.Monday},
			StartDate:  day(2025, 1, 6), // Monday
		}
		assert.Equal(t, day(2025, 1, 13), mustNext(t, calc, p, day(2025, 1, 6)))
	})

	t.Run("defaults to start weekday", func(t *testing.T) {
		p := domain.RecurrencePattern{
			Frequency: domain.FrequencyWeekly,
			Interval:  1,
			StartDate: day(2025, 1, 1), // Wednesday
		}
		assert.Equal(t, day(2025, 1, 8), mustNext(t, calc, p, day(2025, 1, 1)))
	})

	t.Run("every other week on two days", func(t *testing.T) {
		p := domain.RecurrencePattern{
			Frequency:  domain.FrequencyWeekly,
			Interval:   2,
			DaysOfWeek: []time.Weekday{time.Monday, time.Thursday},
			StartDate:  day(2025, 1, 6),
		}

		got, err := calc.Occurrences(p, p.StartDate, time.Time{}, 6)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{
			day(2025, 1, 9),
			day(2025, 1, 20),
			day(2025, 1, 23),
			day(2025, 2, 3),
			day(2025, 2, 6),
			day(2025, 2, 17),
		}, got)

		lastSeen := map[time.Weekday]time.Time{}
		for _, occ := range got {
			assert.Contains(t, p.DaysOfWeek, occ.Weekday())
			if prev, ok := lastSeen[occ.Weekday()]; ok {
				assert.Equal(t, 14, domain.DaysBetween(prev, occ), "same weekday must be interval weeks apart")
			}
			lastSeen[occ.Weekday()] = occ
		}
	})

	t.Run("skips to the next aligned week", func(t *testing.T) {
		p := domain.RecurrencePattern{
			Frequency:  domain.FrequencyWeekly,
			Interval:   3,
			DaysOfWeek: []time.Weekday{time.Friday},
			StartDate:  day(2025, 1, 6),
		}
		assert.Equal(t, day(2025, 1, 31), mustNext(t, calc, p, day(2025, 1, 20)))
	})

	t.Run("no selected day left in aligned week", func(t *testing.T) {
		p := domain.RecurrencePattern{
			Frequency:  domain.FrequencyWeekly,
			Interval:   2,
			DaysOfWeek: []time.Weekday{time.Monday},
			StartDate:  day(2025, 1, 6),
		}
		assert.Equal(t, day(2025, 1, 20), mustNext(t, calc, p, day(2025, 1, 7)))
	})

	t.Run("largest interval", func(t *testing.T) {
		p := domain.RecurrencePattern{
			Frequency:  domain.FrequencyWeekly,
			Interval:   domain.MaxInterval,
			DaysOfWeek: []time.Weekday{time.Monday},
			StartDate:  day(2025, 1, 6),
		}
		assert.Equal(t, day(2044, 3, 7), mustNext(t, calc, p, day(2025, 1, 6)))

		p.Interval = domain.MaxInterval + 1
		_, err := calc.NextOccurrence(p, day(2025, 1, 6))
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

// TestMonthlyCalculator tests monthly recurrence pattern
func TestMonthlyCalculator(t *testing.T) {
	calc := NewCalculator()

	t.Run("day 31 clamps to shorter months", func(t *testing.T) {
		p := domain.RecurrencePattern{
			Frequency:  domain.FrequencyMonthly,
			Interval:   1,
			DayOfMonth: ptr.To(31),
			StartDate:  day(2025, 1, 31),
		}

		got, err := calc.Occurrences(p, p.StartDate, time.Time{}, 4)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{
			day(2025, 2, 28),
			day(2025, 3, 31),
			day(2025, 4, 30),
			day(2025, 5, 31),
		}, got)
	})

	t.Run("leap year February", func(t *testing.T) {
		p := domain.RecurrencePattern{
			Frequency:  domain.FrequencyMonthly,
			Interval:   1,
			DayOfMonth: ptr.To(31),
			StartDate:  day(2024, 1, 31),
		}
		assert.Equal(t, day(2024, 2, 29), mustNext(t, calc, p, p.StartDate))
	})

	t.Run("first Monday", func(t *testing.T) {
		p := domain.RecurrencePattern{
			Frequency:        domain.FrequencyMonthly,
			Interval:         1,
			WeekOfMonth:      ptr.To(1),
			DayOfWeekMonthly: ptr.To(time.Monday),
			StartDate:        day(2025, 1, 1),
		}
		assert.Equal(t, day(2025, 2, 3), mustNext(t, calc, p, day(2025, 1, 1)))
	})

	t.Run("last Friday", func(t *testing.T) {
		p := domain.RecurrencePattern{
			Frequency:        domain.FrequencyMonthly,
			Interval:         1,
			WeekOfMonth:      ptr.To(domain.LastWeekOfMonth),
			DayOfWeekMonthly: ptr.To(time.Friday),
			StartDate:        day(2025, 1, 1),
		}

		got, err := calc.Occurrences(p, p.StartDate, time.Time{}, 2)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(2025, 2, 28), day(2025, 3, 28)}, got)
	})

	t.Run("interval follows the start month", func(t *testing.T) {
		p := domain.RecurrencePattern{
			Frequency:  domain.FrequencyMonthly,
			Interval:   2,
			DayOfMonth: ptr.To(10),
			StartDate:  day(2025, 1, 10),
		}
		// From a date in a non-anchored month the next anchored month is picked.
		assert.Equal(t, day(2025, 5, 10), mustNext(t, calc, p, day(2025, 4, 2)))
		assert.Equal(t, day(2025, 3, 10), mustNext(t, calc, p, day(2025, 1, 10)))
	})

	t.Run("year boundary", func(t *testing.T) {
		p := domain.RecurrencePattern{
			Frequency:  domain.FrequencyMonthly,
			Interval:   1,
			DayOfMonth: ptr.To(15),
			StartDate:  day(2024, 11, 15),
		}
		assert.Equal(t, day(2025, 1, 15), mustNext(t, calc, p, day(2024, 12, 15)))
	})
}

func TestMonthlyCalculator_AmbiguousDaySelection(t *testing.T) {
	calc := NewCalculator()
	base := domain.RecurrencePattern{
		Frequency: domain.FrequencyMonthly,
		Interval:  1,
		StartDate: day(2025, 1, 1),
	}

	tests := []struct {
		name   string
		mutate func(p *domain.RecurrencePattern)
	}{
		{"neither mode", func(p *domain.RecurrencePattern) {}},
		{"both modes", func(p *domain.RecurrencePattern) {
			p.DayOfMonth = ptr.To(3)
			p.WeekOfMonth = ptr.To(1)
			p.DayOfWeekMonthly = ptr.To(time.Monday)
		}},
		{"week without weekday", func(p *domain.RecurrencePattern) {
			p.WeekOfMonth = ptr.To(2)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			next, err := calc.NextOccurrence(p, p.StartDate)
			require.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Nil(t, next)
		})
	}
}

// TestQuarterlyCalculator tests quarterly recurrence
func TestQuarterlyCalculator(t *testing.T) {
	calc := NewCalculator()

	t.Run("start day", func(t *testing.T) {
		p := domain.RecurrencePattern{Frequency: domain.FrequencyQuarterly, Interval: 1, StartDate: day(2025, 1, 15)}
		got, err := calc.Occurrences(p, p.StartDate, time.Time{}, 2)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(2025, 4, 15), day(2025, 7, 15)}, got)
	})

	t.Run("explicit day clamps", func(t *testing.T) {
		p := domain.RecurrencePattern{
			Frequency:  domain.FrequencyQuarterly,
			Interval:   1,
			DayOfMonth: ptr.To(31),
			StartDate:  day(2025, 1, 1),
		}
		got, err := calc.Occurrences(p, p.StartDate, time.Time{}, 2)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(2025, 4, 30), day(2025, 7, 31)}, got)
	})
}

// TestYearlyCalculator tests yearly recurrence
func TestYearlyCalculator(t *testing.T) {
	calc := NewCalculator()

	t.Run("next year", func(t *testing.T) {
		p := domain.RecurrencePattern{Frequency: domain.FrequencyYearly, Interval: 1, StartDate: day(2024, 3, 15)}
		assert.Equal(t, day(2025, 3, 15), mustNext(t, calc, p, p.StartDate))
	})

	t.Run("month override", func(t *testing.T) {
		p := domain.RecurrencePattern{
			Frequency: domain.FrequencyYearly,
			Interval:  1,
			Month:     ptr.To(time.June),
			StartDate: day(2024, 3, 15),
		}
		assert.Equal(t, day(2025, 6, 15), mustNext(t, calc, p, p.StartDate))
	})

	t.Run("leap day clamps", func(t *testing.T) {
		p := domain.RecurrencePattern{Frequency: domain.FrequencyYearly, Interval: 1, StartDate: day(2024, 2, 29)}
		got, err := calc.Occurrences(p, p.StartDate, time.Time{}, 4)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(2025, 2, 28), day(2026, 2, 28), day(2027, 2, 28), day(2028, 2, 29)}, got)
	})

	t.Run("every other year", func(t *testing.T) {
		p := domain.RecurrencePattern{Frequency: domain.FrequencyYearly, Interval: 2, StartDate: day(2024, 5, 1)}
		assert.Equal(t, day(2028, 5, 1), mustNext(t, calc, p, day(2026, 5, 1)))
	})
}

func TestCustomCalculator_Dates(t *testing.T) {
	calc := NewCalculator()
	p := domain.RecurrencePattern{
		Frequency:   domain.FrequencyCustom,
		Interval:    1,
		StartDate:   day(2025, 1, 1),
		CustomDates: []time.Time{day(2025, 1, 10), day(2025, 2, 5), day(2025, 3, 1)},
	}

	assert.Equal(t, day(2025, 1, 10), mustNext(t, calc, p, day(2025, 1, 1)))
	assert.Equal(t, day(2025, 3, 1), mustNext(t, calc, p, day(2025, 2, 5)))

	next, err := calc.NextOccurrence(p, day(2025, 3, 1))
	require.NoError(t, err)
	assert.Nil(t, next, "no custom dates left")
}

func TestGetCalculator(t *testing.T) {
	calc := NewCalculator()

	for _, f := range []domain.Frequency{
		domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly,
		domain.FrequencyQuarterly, domain.FrequencyYearly, domain.FrequencyCustom,
	} {
		assert.NotNil(t, calc.GetCalculator(f), "frequency %s", f)
	}
	assert.Nil(t, calc.GetCalculator("HOURLY"))
}

func TestNthWeekday(t *testing.T) {
	tests := []struct {
		name string
		n    int
		wd   time.Weekday
		want time.Time
	}{
		{"first Monday", 1, time.Monday, day(2025, 3, 3)},
		{"second Tuesday", 2, time.Tuesday, day(2025, 3, 11)},
		{"fourth Saturday", 4, time.Saturday, day(2025, 3, 22)},
		{"last Monday", 5, time.Monday, day(2025, 3, 31)},
		{"last Sunday", 5, time.Sunday, day(2025, 3, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nthWeekday(2025, time.March, tt.wd, tt.n))
		})
	}
}
