package domain

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is the unit a recurrence pattern repeats in.
// Value object - immutable string enum.
type Frequency string

const (
	FrequencyDaily     Frequency = "DAILY"
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyYearly    Frequency = "YEARLY"
	FrequencyCustom    Frequency = "CUSTOM"
)

// NewFrequency validates and creates a Frequency. Input is case-insensitive.
func NewFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToUpper(strings.TrimSpace(s)))

	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencyYearly, FrequencyCustom:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown frequency %q", ErrConfiguration, s)
	}
}

// DisabledDateHandling decides what happens to an occurrence that lands on a
// weekend or holiday the pattern excludes.
type DisabledDateHandling string

const (
	// DisabledDatePrevious moves the occurrence back to the closest allowed day.
	DisabledDatePrevious DisabledDateHandling = "previous"
	// DisabledDateNext moves the occurrence forward to the closest allowed day.
	DisabledDateNext DisabledDateHandling = "next"
	// DisabledDateSkip drops the occurrence and advances the cadence.
	DisabledDateSkip DisabledDateHandling = "skip"
)

// NewDisabledDateHandling validates and creates a DisabledDateHandling.
// Empty input defaults to DisabledDateNext.
func NewDisabledDateHandling(s string) (DisabledDateHandling, error) {
	if strings.TrimSpace(s) == "" {
		return DisabledDateNext, nil
	}

	h := DisabledDateHandling(strings.ToLower(strings.TrimSpace(s)))

	switch h {
	case DisabledDatePrevious, DisabledDateNext, DisabledDateSkip:
		return h, nil
	default:
		return "", fmt.Errorf("%w: unknown disabled date handling %q", ErrConfiguration, s)
	}
}

// RecordStatus is the state of a generated project ledger record.
type RecordStatus string

const (
	RecordStatusScheduled RecordStatus = "scheduled"
	RecordStatusGenerated RecordStatus = "generated"
	RecordStatusSkipped   RecordStatus = "skipped"
	RecordStatusFailed    RecordStatus = "failed"
)

// Validate checks if the record status is valid.
func (s RecordStatus) Validate() error {
	switch s {
	case RecordStatusScheduled, RecordStatusGenerated, RecordStatusSkipped, RecordStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid record status: %q", string(s))
	}
}

// ProjectStatus is the lifecycle stage of a project.
// The workflow itself belongs to the project module; the scheduler only sets the first stage.
type ProjectStatus string

const (
	ProjectStatusPlanning   ProjectStatus = "PLANNING"
	ProjectStatusInProgress ProjectStatus = "IN_PROGRESS"
	ProjectStatusCompleted  ProjectStatus = "COMPLETED"
	ProjectStatusOnHold     ProjectStatus = "ON_HOLD"
)

// ParseWeekday parses an English weekday name ("monday", "Mon") into time.Weekday.
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	case "tuesday", "tue":
		return time.Tuesday, nil
	case "wednesday", "wed":
		return time.Wednesday, nil
	case "thursday", "thu":
		return time.Thursday, nil
	case "friday", "fri":
		return time.Friday, nil
	case "saturday", "sat":
		return time.Saturday, nil
	default:
		return 0, fmt.Errorf("%w: unknown weekday %q", ErrConfiguration, s)
	}
}
