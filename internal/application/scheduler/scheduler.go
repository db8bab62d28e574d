package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rezkam/shopfloor/internal/domain"
	"github.com/rezkam/shopfloor/internal/recurring"
)

// ActionKind is the outcome of a scheduling step.
type ActionKind string

const (
	ActionNoop      ActionKind = "noop"
	ActionGenerated ActionKind = "generated"
	ActionFailed    ActionKind = "failed"
	ActionEnded     ActionKind = "ended"
)

// Noop reasons.
const (
	ReasonInactive         = "definition inactive"
	ReasonManualOnly       = "auto generation disabled"
	ReasonNotDue           = "outside advance notice window"
	ReasonAlreadyGenerated = "occurrence already generated"
)

// Action describes what a Tick or manual generation did.
type Action struct {
	Kind ActionKind

	// Record is the ledger entry written for Generated and Failed actions.
	Record *domain.GeneratedProjectRecord

	// Project is the created project for Generated actions.
	Project *domain.PersistedProject

	// Candidate is the occurrence date that was considered, if any.
	Candidate *time.Time

	// Reason explains a Noop.
	Reason string
}

// Scheduler drives recurring project generation. Mutating calls for the same
// definition are serialized through the KeyedLocker; different definitions run
// independently.
type Scheduler struct {
	definitions DefinitionRepository
	ledger      Ledger
	projects    ProjectCreator

	calculator    *recurring.Calculator
	clock         Clock
	locker        KeyedLocker
	holidays      *recurring.HolidayCalendar
	createTimeout time.Duration
	maxFailures   int
	newID         func() string

	telemetry instruments
}

// Option is a functional option for configuring Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithLocker sets the per-definition lock. Multi-process deployments need a
// shared implementation such as the Redis locker.
func WithLocker(l KeyedLocker) Option {
	return func(s *Scheduler) {
		s.locker = l
	}
}

// WithCalculator replaces the occurrence calculator.
func WithCalculator(c *recurring.Calculator) Option {
	return func(s *Scheduler) {
		s.calculator = c
	}
}

// WithHolidayCalendar merges a shared holiday calendar into every pattern that skips holidays.
func WithHolidayCalendar(cal *recurring.HolidayCalendar) Option {
	return func(s *Scheduler) {
		s.holidays = cal
	}
}

// WithCreateTimeout bounds each project-creation call.
func WithCreateTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.createTimeout = d
	}
}

// WithMaxConsecutiveFailures sets how many consecutive failures of one
// occurrence deactivate the definition. Zero disables escalation.
func WithMaxConsecutiveFailures(n int) Option {
	return func(s *Scheduler) {
		s.maxFailures = n
	}
}

// WithIDGenerator sets the generator for ledger record IDs.
func WithIDGenerator(f func() string) Option {
	return func(s *Scheduler) {
		s.newID = f
	}
}

// New creates a Scheduler over the given ports.
func New(definitions DefinitionRepository, ledger Ledger, projects ProjectCreator, opts ...Option) *Scheduler {
	s := &Scheduler{
		definitions:   definitions,
		ledger:        ledger,
		projects:      projects,
		calculator:    recurring.NewCalculator(),
		clock:         systemClock{},
		locker:        NewLocalLocker(),
		createTimeout: 30 * time.Second,
		maxFailures:   5,
		newID:         newRecordID,
		telemetry:     newInstruments(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func newRecordID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Tick evaluates one definition and generates its current occurrence when due.
//
// Configuration errors are returned without touching the ledger. A failed
// generation returns an ActionFailed together with a *GenerationFailure.
func (s *Scheduler) Tick(ctx context.Context, definitionID string) (action Action, err error) {
	ctx, span := s.telemetry.tracer.Start(ctx, "scheduler.Tick",
		trace.WithAttributes(attribute.String("definition.id", definitionID)))
	defer func() { endSpan(span, action, err) }()

	unlock, err := s.locker.Lock(ctx, definitionID)
	if err != nil {
		return Action{}, fmt.Errorf("failed to lock definition %s: %w", definitionID, err)
	}
	defer unlock()

	def, err := s.definitions.FindByID(ctx, definitionID)
	if err != nil {
		return Action{}, err
	}

	if !def.IsActive {
		return Action{Kind: ActionNoop, Reason: ReasonInactive}, nil
	}

	candidate, err := s.currentCandidate(def)
	if err != nil {
		return Action{}, err
	}

	if candidate == nil {
		return s.end(ctx, def)
	}

	if !def.AutoGenerate {
		return Action{Kind: ActionNoop, Reason: ReasonManualOnly, Candidate: candidate}, nil
	}

	today := domain.DateOf(s.clock.Now())
	if domain.DaysBetween(today, *candidate) > def.AdvanceNoticeDays {
		return Action{Kind: ActionNoop, Reason: ReasonNotDue, Candidate: candidate}, nil
	}

	return s.generate(ctx, def, *candidate, nil)
}

// GenerateManualOccurrence generates the definition's next occurrence number
// for scheduledDate, ignoring AutoGenerate and the advance notice window.
// Customizations only affect the created project.
func (s *Scheduler) GenerateManualOccurrence(ctx context.Context, definitionID string, scheduledDate time.Time, custom *domain.Customizations) (action Action, err error) {
	ctx, span := s.telemetry.tracer.Start(ctx, "scheduler.GenerateManualOccurrence",
		trace.WithAttributes(
			attribute.String("definition.id", definitionID),
			attribute.String("scheduled_date", scheduledDate.Format(domain.DateLayout)),
		))
	defer func() { endSpan(span, action, err) }()

	unlock, err := s.locker.Lock(ctx, definitionID)
	if err != nil {
		return Action{}, fmt.Errorf("failed to lock definition %s: %w", definitionID, err)
	}
	defer unlock()

	def, err := s.definitions.FindByID(ctx, definitionID)
	if err != nil {
		return Action{}, err
	}

	if !def.IsActive {
		return Action{}, fmt.Errorf("%w: %s", domain.ErrDefinitionInactive, definitionID)
	}

	candidate, err := s.currentCandidate(def)
	if err != nil {
		return Action{}, err
	}
	if candidate == nil {
		return s.end(ctx, def)
	}

	return s.generate(ctx, def, domain.DateOf(scheduledDate), custom)
}

// ListGeneratedProjects returns the ledger history of a definition.
func (s *Scheduler) ListGeneratedProjects(ctx context.Context, definitionID string) ([]domain.GeneratedProjectRecord, error) {
	if _, err := s.definitions.FindByID(ctx, definitionID); err != nil {
		return nil, err
	}

	records, err := s.ledger.ListByDefinition(ctx, definitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list generated projects: %w", err)
	}
	return records, nil
}

// GetDefinition loads a definition with its generation history attached.
func (s *Scheduler) GetDefinition(ctx context.Context, definitionID string) (*domain.RecurringProjectDefinition, error) {
	def, err := s.definitions.FindByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	records, err := s.ledger.ListByDefinition(ctx, definitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list generated projects: %w", err)
	}
	def.GeneratedProjects = records
	return def, nil
}

// PreviewNextOccurrence computes the next occurrence of pattern after from
// without reading or writing any state.
func (s *Scheduler) PreviewNextOccurrence(_ context.Context, pattern domain.RecurrencePattern, from time.Time) (*time.Time, error) {
	return s.calculator.NextOccurrence(s.holidays.Apply(pattern), from)
}

// PreviewOccurrences lists up to limit upcoming occurrences of pattern after from.
func (s *Scheduler) PreviewOccurrences(_ context.Context, pattern domain.RecurrencePattern, from time.Time, limit int) ([]time.Time, error) {
	return s.calculator.Occurrences(s.holidays.Apply(pattern), from, time.Time{}, limit)
}

// currentCandidate returns the occurrence the definition is waiting on, or
// nil once the pattern has ended. The start date anchors the cadence and is
// not itself generated.
func (s *Scheduler) currentCandidate(def *domain.RecurringProjectDefinition) (*time.Time, error) {
	if limitReached(def) {
		return nil, nil
	}
	if def.NextOccurrence != nil {
		next := domain.DateOf(*def.NextOccurrence)
		return &next, nil
	}

	from := def.Pattern.StartDate
	if def.LastOccurrence != nil {
		from = *def.LastOccurrence
	}
	return s.calculator.NextOccurrence(s.pattern(def), from)
}

// limitReached reports whether the definition has generated every occurrence
// its pattern allows. Manual occurrences count toward the limit.
func limitReached(def *domain.RecurringProjectDefinition) bool {
	limit := def.Pattern.EndAfterOccurrences
	return limit != nil && def.TotalOccurrences >= *limit
}

func (s *Scheduler) pattern(def *domain.RecurringProjectDefinition) domain.RecurrencePattern {
	return s.holidays.Apply(def.Pattern)
}

func (s *Scheduler) end(ctx context.Context, def *domain.RecurringProjectDefinition) (Action, error) {
	def.IsActive = false
	def.NextOccurrence = nil
	def.UpdatedAt = s.clock.Now()

	if err := s.definitions.Save(ctx, def); err != nil {
		return Action{}, fmt.Errorf("failed to deactivate ended definition %s: %w", def.ID, err)
	}

	s.telemetry.ended.Add(ctx, 1)
	slog.InfoContext(ctx, "recurring definition ended",
		"definition_id", def.ID,
		"total_occurrences", def.TotalOccurrences)

	return Action{Kind: ActionEnded}, nil
}

// generate runs the check-and-generate sequence for the next occurrence
// number. Callers must hold the definition lock.
func (s *Scheduler) generate(ctx context.Context, def *domain.RecurringProjectDefinition, date time.Time, custom *domain.Customizations) (Action, error) {
	if limitReached(def) {
		return s.end(ctx, def)
	}
	n := def.TotalOccurrences + 1

	// Computed up front so a broken pattern never produces a project.
	next, err := s.calculator.NextOccurrence(s.pattern(def), date)
	if err != nil {
		return Action{}, err
	}

	done, err := s.ledger.Has(ctx, def.ID, n)
	if err != nil {
		return Action{}, fmt.Errorf("failed to check ledger: %w", err)
	}
	if done {
		return s.reconcile(ctx, def, n, date, next)
	}

	now := s.clock.Now()
	payload := recurring.Materialize(def, date, n, custom, now)

	project, err := s.createProject(ctx, payload)
	if err != nil {
		return s.fail(ctx, def, n, date, err)
	}

	rec := &domain.GeneratedProjectRecord{
		ID:                   s.newID(),
		ProjectID:            &project.ID,
		RecurringProjectID:   def.ID,
		OccurrenceNumber:     n,
		ScheduledDate:        date,
		ActualGenerationDate: now,
		Status:               domain.RecordStatusGenerated,
	}
	if err := s.ledger.Record(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrAlreadyGenerated) {
			// Another writer got there first.
			return s.reconcile(ctx, def, n, date, next)
		}
		return s.fail(ctx, def, n, date, fmt.Errorf("project %s created but ledger write failed: %w", project.ID, err))
	}

	advance(def, date, next, now)
	if err := s.definitions.Save(ctx, def); err != nil {
		// The ledger already holds the occurrence; the next tick reconciles.
		return Action{}, fmt.Errorf("failed to save definition %s after generating occurrence %d: %w", def.ID, n, err)
	}

	s.telemetry.generated.Add(ctx, 1)
	slog.InfoContext(ctx, "generated recurring occurrence",
		"definition_id", def.ID,
		"occurrence_number", n,
		"scheduled_date", date.Format(domain.DateLayout),
		"project_id", project.ID)

	return Action{Kind: ActionGenerated, Record: rec, Project: project, Candidate: &date}, nil
}

func (s *Scheduler) createProject(ctx context.Context, payload domain.ProjectPayload) (*domain.PersistedProject, error) {
	createCtx, cancel := context.WithTimeout(ctx, s.createTimeout)
	defer cancel()

	project, err := s.projects.CreateProject(createCtx, payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s: %w", domain.ErrProjectCreation, s.createTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrProjectCreation, err)
	}
	if project == nil {
		return nil, fmt.Errorf("%w: no project returned", domain.ErrProjectCreation)
	}
	return project, nil
}

// reconcile catches bookkeeping up with a ledger that already holds occurrence n.
func (s *Scheduler) reconcile(ctx context.Context, def *domain.RecurringProjectDefinition, n int, date time.Time, next *time.Time) (Action, error) {
	slog.WarnContext(ctx, "occurrence already in ledger, reconciling definition",
		"definition_id", def.ID,
		"occurrence_number", n)

	advance(def, date, next, s.clock.Now())
	if err := s.definitions.Save(ctx, def); err != nil {
		return Action{}, fmt.Errorf("failed to reconcile definition %s: %w", def.ID, err)
	}

	return Action{Kind: ActionNoop, Reason: ReasonAlreadyGenerated, Candidate: &date}, nil
}

// fail ledgers a failed attempt without moving the cursor and escalates once
// the same occurrence has failed too often.
func (s *Scheduler) fail(ctx context.Context, def *domain.RecurringProjectDefinition, n int, date time.Time, cause error) (Action, error) {
	rec := &domain.GeneratedProjectRecord{
		ID:                   s.newID(),
		RecurringProjectID:   def.ID,
		OccurrenceNumber:     n,
		ScheduledDate:        date,
		ActualGenerationDate: s.clock.Now(),
		Status:               domain.RecordStatusFailed,
		Notes:                cause.Error(),
	}
	if err := s.ledger.Record(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "failed to record failed occurrence",
			"definition_id", def.ID,
			"occurrence_number", n,
			"error", err)
	}

	def.ConsecutiveFailures++
	failure := &GenerationFailure{
		DefinitionID:     def.ID,
		OccurrenceNumber: n,
		ScheduledDate:    date,
		Attempts:         def.ConsecutiveFailures,
		Err:              cause,
	}

	if s.maxFailures > 0 && def.ConsecutiveFailures >= s.maxFailures {
		reason := fmt.Sprintf("occurrence %d failed %d consecutive times: %v", n, def.ConsecutiveFailures, cause)
		def.IsActive = false
		def.NeedsAttention = true
		def.AttentionReason = &reason
		failure.Escalated = true
	}
	def.UpdatedAt = s.clock.Now()

	if err := s.definitions.Save(ctx, def); err != nil {
		slog.ErrorContext(ctx, "failed to save failure bookkeeping",
			"definition_id", def.ID,
			"error", err)
	}

	s.telemetry.failed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("escalated", failure.Escalated)))
	slog.ErrorContext(ctx, "recurring occurrence generation failed",
		"definition_id", def.ID,
		"occurrence_number", n,
		"attempts", failure.Attempts,
		"escalated", failure.Escalated,
		"error", cause)

	return Action{Kind: ActionFailed, Record: rec, Candidate: &date}, failure
}

// advance moves the scheduling cursor past a generated occurrence.
func advance(def *domain.RecurringProjectDefinition, date time.Time, next *time.Time, now time.Time) {
	def.LastOccurrence = &date
	def.NextOccurrence = next
	def.TotalOccurrences++
	if limitReached(def) {
		def.NextOccurrence = nil
	}
	if def.RemainingOccurrences != nil {
		remaining := max(*def.RemainingOccurrences-1, 0)
		def.RemainingOccurrences = &remaining
	}
	def.ConsecutiveFailures = 0
	def.UpdatedAt = now
}

func endSpan(span trace.Span, action Action, err error) {
	if action.Kind != "" {
		span.SetAttributes(attribute.String("scheduler.action", string(action.Kind)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
