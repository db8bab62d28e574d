package recurring

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rezkam/shopfloor/internal/domain"
)

// HolidayCalendar is a named set of non-working days shared by many definitions.
//
// File format:
//
//	name: se-2025
//	holidays:
//	  - date: 2025-01-01
//	    name: New Year's Day
//	  - date: 2025-12-25
//	    name: Christmas Day
type HolidayCalendar struct {
	Name     string    `yaml:"name"`
	Holidays []Holiday `yaml:"holidays"`
}

// Holiday is a single non-working day.
type Holiday struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

// LoadHolidayCalendar reads a YAML holiday calendar from path.
func LoadHolidayCalendar(path string) (*HolidayCalendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read holiday calendar: %w", err)
	}
	return ParseHolidayCalendar(data)
}

// ParseHolidayCalendar decodes and validates a YAML holiday calendar.
func ParseHolidayCalendar(data []byte) (*HolidayCalendar, error) {
	var cal HolidayCalendar
	if err := yaml.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("failed to parse holiday calendar: %w", err)
	}

	for i, h := range cal.Holidays {
		if _, err := domain.ParseDate(h.Date); err != nil {
			return nil, fmt.Errorf("holiday %d (%s): invalid date %q: %w", i, h.Name, h.Date, err)
		}
	}
	return &cal, nil
}

// Dates returns the calendar's holidays in ascending order.
func (c *HolidayCalendar) Dates() []time.Time {
	if c == nil {
		return nil
	}
	dates := make([]time.Time, 0, len(c.Holidays))
	for _, h := range c.Holidays {
		// Dates were validated when the calendar was parsed.
		d, _ := domain.ParseDate(h.Date)
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	return dates
}

// Apply merges the calendar's holidays into a pattern that skips holidays.
// Patterns that do not skip holidays are returned unchanged.
func (c *HolidayCalendar) Apply(p domain.RecurrencePattern) domain.RecurrencePattern {
	if c == nil || !p.SkipHolidays {
		return p
	}
	return p.WithHolidays(c.Dates())
}

// LoadHolidayCalendars reads and merges several calendar files. No paths
// yields a nil calendar, which Apply treats as empty.
func LoadHolidayCalendars(paths []string) (*HolidayCalendar, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	merged := &HolidayCalendar{}
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		cal, err := LoadHolidayCalendar(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		names = append(names, cal.Name)
		merged.Holidays = append(merged.Holidays, cal.Holidays...)
	}
	merged.Name = strings.Join(names, "+")
	return merged, nil
}
