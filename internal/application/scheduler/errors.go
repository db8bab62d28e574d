package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/rezkam/shopfloor/internal/domain"
)

// GenerationFailure reports that an otherwise valid occurrence could not be
// materialized or persisted. It is retryable: the occurrence stays current and
// the next tick attempts the same occurrence number again.
//
// Use errors.As to inspect it:
//
//	var failure *scheduler.GenerationFailure
//	if errors.As(err, &failure) && failure.Escalated {
//	    alert(failure.DefinitionID)
//	}
type GenerationFailure struct {
	DefinitionID     string
	OccurrenceNumber int
	ScheduledDate    time.Time
	Attempts         int  // Consecutive failures including this one
	Escalated        bool // The definition was deactivated and flagged for attention
	Err              error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("generate occurrence %d of %s (scheduled %s, attempt %d): %v",
		e.OccurrenceNumber, e.DefinitionID, e.ScheduledDate.Format(domain.DateLayout), e.Attempts, e.Err)
}

func (e *GenerationFailure) Unwrap() error { return e.Err }

// IsGenerationFailure returns true if err carries a GenerationFailure.
func IsGenerationFailure(err error) bool {
	var failure *GenerationFailure
	return errors.As(err, &failure)
}

// AsGenerationFailure extracts the GenerationFailure carried by err.
func AsGenerationFailure(err error) (*GenerationFailure, bool) {
	var failure *GenerationFailure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}
