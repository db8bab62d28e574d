package recurring

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rezkam/shopfloor/internal/domain"
)

// CronEvaluator evaluates custom expressions as standard five-field cron
// expressions or descriptors ("@monthly"). Only the date part of a match is
// used; a match on the reference day itself does not count.
type CronEvaluator struct {
	parser cron.Parser
	cache  sync.Map // expression -> cron.Schedule
}

// NewCronEvaluator creates an evaluator accepting minute, hour, day-of-month,
// month, day-of-week fields and descriptors.
func NewCronEvaluator() *CronEvaluator {
	return &CronEvaluator{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Next returns the first matching calendar day after the given day.
func (e *CronEvaluator) Next(expression string, after time.Time) (*time.Time, error) {
	schedule, err := e.schedule(expression)
	if err != nil {
		return nil, err
	}

	// Start from the last second of the reference day so same-day matches are excluded.
	endOfDay := domain.DateOf(after).Add(24*time.Hour - time.Second)
	next := schedule.Next(endOfDay)
	if next.IsZero() {
		return nil, nil
	}

	day := domain.DateOf(next)
	return &day, nil
}

func (e *CronEvaluator) schedule(expression string) (cron.Schedule, error) {
	expr := strings.TrimSpace(expression)
	if cached, ok := e.cache.Load(expr); ok {
		return cached.(cron.Schedule), nil
	}

	schedule, err := e.parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: parse custom expression %q: %w", domain.ErrConfiguration, expression, err)
	}

	e.cache.Store(expr, schedule)
	return schedule, nil
}
