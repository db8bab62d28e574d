package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/shopfloor/internal/domain"
	"github.com/rezkam/shopfloor/internal/infrastructure/persistence/memory"
	"github.com/rezkam/shopfloor/internal/ptr"
	"github.com/rezkam/shopfloor/internal/recurring"
)

// mockProjectCreator records calls and delegates to createFn when set.
type mockProjectCreator struct {
	mu       sync.Mutex
	calls    []domain.ProjectPayload
	createFn func(ctx context.Context, payload domain.ProjectPayload) (*domain.PersistedProject, error)
	store    *memory.Store
}

func (m *mockProjectCreator) CreateProject(ctx context.Context, payload domain.ProjectPayload) (*domain.PersistedProject, error) {
	m.mu.Lock()
	m.calls = append(m.calls, payload)
	fn := m.createFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, payload)
	}
	return m.store.CreateProject(ctx, payload)
}

func (m *mockProjectCreator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockDefinitions wraps a real store and lets a test intercept Save.
type mockDefinitions struct {
	*memory.Store
	saveFn func(ctx context.Context, def *domain.RecurringProjectDefinition) error
}

func (m *mockDefinitions) Save(ctx context.Context, def *domain.RecurringProjectDefinition) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, def)
	}
	return m.Store.Save(ctx, def)
}

type fixture struct {
	store     *memory.Store
	creator   *mockProjectCreator
	now       time.Time
	scheduler *Scheduler
}

func newFixture(t *testing.T, now time.Time, opts ...Option) *fixture {
	t.Helper()

	store := memory.New()
	f := &fixture{
		store:   store,
		creator: &mockProjectCreator{store: store},
		now:     now,
	}
	opts = append([]Option{WithClock(ClockFunc(func() time.Time { return f.now }))}, opts...)
	f.scheduler = New(store, store, f.creator, opts...)
	return f
}

func (f *fixture) seed(t *testing.T, def *domain.RecurringProjectDefinition) {
	t.Helper()
	def.InitRemaining()
	require.NoError(t, f.store.Save(context.Background(), def))
}

func (f *fixture) load(t *testing.T, id string) *domain.RecurringProjectDefinition {
	t.Helper()
	def, err := f.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	return def
}

func (f *fixture) ledger(t *testing.T, id string) []domain.GeneratedProjectRecord {
	t.Helper()
	records, err := f.store.ListByDefinition(context.Background(), id)
	require.NoError(t, err)
	return records
}

func day(y int, m time.Month, d int) time.Time {
	return domain.Date(y, m, d)
}

func weeklyDefinition() *domain.RecurringProjectDefinition {
	return &domain.RecurringProjectDefinition{
		ID:         "weekly-line-check",
		TemplateID: "tpl-line-check",
		Name:       "Line check",
		Duration:   2,
		Components: []domain.Component{{ID: "c1", Name: "Conveyor belt", Quantity: 1}},
		Pattern: domain.RecurrencePattern{
			Frequency:  domain.FrequencyWeekly,
			Interval:   1,
			DaysOfWeek: []time.Weekday{time.Monday},
			StartDate:  day(2025, 1, 6),
		},
		IsActive:          true,
		AutoGenerate:      true,
		AdvanceNoticeDays: 3,
	}
}

func dailyDefinition() *domain.RecurringProjectDefinition {
	return &domain.RecurringProjectDefinition{
		ID:       "daily-cleanup",
		Name:     "Cleanup",
		Duration: 0,
		Pattern: domain.RecurrencePattern{
			Frequency: domain.FrequencyDaily,
			Interval:  1,
			StartDate: day(2025, 1, 1),
		},
		IsActive:     true,
		AutoGenerate: true,
	}
}

func TestTick_GeneratesDueOccurrence(t *testing.T) {
	f := newFixture(t, day(2025, 1, 10))
	f.seed(t, weeklyDefinition())

	action, err := f.scheduler.Tick(context.Background(), "weekly-line-check")
	require.NoError(t, err)

	assert.Equal(t, ActionGenerated, action.Kind)
	require.NotNil(t, action.Record)
	assert.Equal(t, 1, action.Record.OccurrenceNumber)
	assert.Equal(t, day(2025, 1, 13), action.Record.ScheduledDate)
	assert.Equal(t, domain.RecordStatusGenerated, action.Record.Status)
	require.NotNil(t, action.Project)
	assert.Equal(t, action.Project.ID, *action.Record.ProjectID)

	project, ok := f.store.Project(action.Project.ID)
	require.True(t, ok)
	assert.Equal(t, "Line check #1", project.Name)
	assert.Equal(t, day(2025, 1, 15), project.DueDate)
	assert.Equal(t, "weekly-line-check", project.RecurringProjectID)

	def := f.load(t, "weekly-line-check")
	assert.Equal(t, 1, def.TotalOccurrences)
	assert.Equal(t, day(2025, 1, 13), *def.LastOccurrence)
	assert.Equal(t, day(2025, 1, 20), *def.NextOccurrence)
	assert.Nil(t, def.RemainingOccurrences)
}

func TestTick_OutsideAdvanceNotice(t *testing.T) {
	f := newFixture(t, day(2025, 1, 9))
	f.seed(t, weeklyDefinition())

	action, err := f.scheduler.Tick(context.Background(), "weekly-line-check")
	require.NoError(t, err)

	assert.Equal(t, ActionNoop, action.Kind)
	assert.Equal(t, ReasonNotDue, action.Reason)
	assert.Equal(t, day(2025, 1, 13), *action.Candidate)
	assert.Zero(t, f.creator.callCount())
	assert.Empty(t, f.ledger(t, "weekly-line-check"))
}

func TestTick_Idempotent(t *testing.T) {
	f := newFixture(t, day(2025, 1, 10))
	f.seed(t, weeklyDefinition())

	first, err := f.scheduler.Tick(context.Background(), "weekly-line-check")
	require.NoError(t, err)
	assert.Equal(t, ActionGenerated, first.Kind)

	second, err := f.scheduler.Tick(context.Background(), "weekly-line-check")
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, second.Kind)

	assert.Len(t, f.ledger(t, "weekly-line-check"), 1)
	assert.Equal(t, 1, f.creator.callCount())
}

func TestTick_ReconcilesLedgerAhead(t *testing.T) {
	f := newFixture(t, day(2025, 1, 10))
	f.seed(t, weeklyDefinition())

	// A previous run wrote the ledger entry but crashed before saving bookkeeping.
	require.NoError(t, f.store.Record(context.Background(), &domain.GeneratedProjectRecord{
		ID:                 "rec-1",
		ProjectID:          ptr.To("project-1"),
		RecurringProjectID: "weekly-line-check",
		OccurrenceNumber:   1,
		ScheduledDate:      day(2025, 1, 13),
		Status:             domain.RecordStatusGenerated,
	}))

	action, err := f.scheduler.Tick(context.Background(), "weekly-line-check")
	require.NoError(t, err)

	assert.Equal(t, ActionNoop, action.Kind)
	assert.Equal(t, ReasonAlreadyGenerated, action.Reason)
	assert.Zero(t, f.creator.callCount())

	def := f.load(t, "weekly-line-check")
	assert.Equal(t, 1, def.TotalOccurrences)
	assert.Equal(t, day(2025, 1, 20), *def.NextOccurrence)
}

func TestTick_FailedOccurrenceIsRetriedWithSameNumber(t *testing.T) {
	f := newFixture(t, day(2025, 1, 5))
	def := dailyDefinition()
	def.TotalOccurrences = 3
	def.LastOccurrence = ptr.To(day(2025, 1, 4))
	def.NextOccurrence = ptr.To(day(2025, 1, 5))
	f.seed(t, def)

	storeErr := errors.New("projects table locked")
	f.creator.createFn = func(context.Context, domain.ProjectPayload) (*domain.PersistedProject, error) {
		return nil, storeErr
	}

	action, err := f.scheduler.Tick(context.Background(), "daily-cleanup")
	require.Error(t, err)

	var failure *GenerationFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 4, failure.OccurrenceNumber)
	assert.Equal(t, 1, failure.Attempts)
	assert.False(t, failure.Escalated)
	assert.ErrorIs(t, err, storeErr)
	assert.ErrorIs(t, err, domain.ErrProjectCreation)
	assert.True(t, IsGenerationFailure(err))

	assert.Equal(t, ActionFailed, action.Kind)
	require.NotNil(t, action.Record)
	assert.Equal(t, domain.RecordStatusFailed, action.Record.Status)
	assert.Nil(t, action.Record.ProjectID)
	assert.Contains(t, action.Record.Notes, "projects table locked")

	stored := f.load(t, "daily-cleanup")
	assert.Equal(t, 3, stored.TotalOccurrences)
	assert.Equal(t, day(2025, 1, 4), *stored.LastOccurrence)
	assert.Equal(t, 1, stored.ConsecutiveFailures)
	assert.True(t, stored.IsActive)

	f.creator.createFn = nil
	action, err = f.scheduler.Tick(context.Background(), "daily-cleanup")
	require.NoError(t, err)
	assert.Equal(t, ActionGenerated, action.Kind)
	assert.Equal(t, 4, action.Record.OccurrenceNumber)

	stored = f.load(t, "daily-cleanup")
	assert.Equal(t, 4, stored.TotalOccurrences)
	assert.Zero(t, stored.ConsecutiveFailures)

	records := f.ledger(t, "daily-cleanup")
	require.Len(t, records, 2)
	assert.Equal(t, domain.RecordStatusFailed, records[0].Status)
	assert.Equal(t, domain.RecordStatusGenerated, records[1].Status)
	assert.Equal(t, 4, records[0].OccurrenceNumber)
	assert.Equal(t, 4, records[1].OccurrenceNumber)
}

func TestTick_EndAfterOccurrences(t *testing.T) {
	f := newFixture(t, day(2025, 2, 1))
	def := weeklyDefinition()
	def.Pattern.EndAfterOccurrences = ptr.To(3)
	f.seed(t, def)

	ctx := context.Background()
	for i, want := range []time.Time{day(2025, 1, 13), day(2025, 1, 20), day(2025, 1, 27)} {
		action, err := f.scheduler.Tick(ctx, def.ID)
		require.NoError(t, err)
		require.Equal(t, ActionGenerated, action.Kind)
		assert.Equal(t, i+1, action.Record.OccurrenceNumber)
		assert.Equal(t, want, action.Record.ScheduledDate)
	}

	stored := f.load(t, def.ID)
	assert.Equal(t, 0, *stored.RemainingOccurrences)
	assert.Nil(t, stored.NextOccurrence)

	next, err := recurring.ComputeNextOccurrence(stored.Pattern, *stored.LastOccurrence)
	require.NoError(t, err)
	assert.Nil(t, next)

	action, err := f.scheduler.Tick(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionEnded, action.Kind)
	assert.False(t, f.load(t, def.ID).IsActive)

	action, err = f.scheduler.Tick(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, action.Kind)
	assert.Equal(t, ReasonInactive, action.Reason)
	assert.Len(t, f.ledger(t, def.ID), 3)
}

func TestTick_EndDateReached(t *testing.T) {
	f := newFixture(t, day(2025, 3, 1))
	def := dailyDefinition()
	def.Pattern.EndDate = ptr.To(day(2025, 1, 31))
	def.LastOccurrence = ptr.To(day(2025, 1, 31))
	f.seed(t, def)

	action, err := f.scheduler.Tick(context.Background(), def.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionEnded, action.Kind)
	assert.Empty(t, f.ledger(t, def.ID))
}

func TestTick_ManualOnlyDefinition(t *testing.T) {
	f := newFixture(t, day(2025, 1, 12))
	def := weeklyDefinition()
	def.AutoGenerate = false
	f.seed(t, def)

	action, err := f.scheduler.Tick(context.Background(), def.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, action.Kind)
	assert.Equal(t, ReasonManualOnly, action.Reason)
	assert.Zero(t, f.creator.callCount())
}

func TestTick_ConfigurationError(t *testing.T) {
	f := newFixture(t, day(2025, 1, 12))
	def := weeklyDefinition()
	def.Pattern.Frequency = domain.FrequencyMonthly
	f.seed(t, def)

	_, err := f.scheduler.Tick(context.Background(), def.ID)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.False(t, IsGenerationFailure(err))
	assert.Empty(t, f.ledger(t, def.ID))
	assert.True(t, f.load(t, def.ID).IsActive)
}

func TestTick_DefinitionNotFound(t *testing.T) {
	f := newFixture(t, day(2025, 1, 12))

	_, err := f.scheduler.Tick(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrDefinitionNotFound)
}

func TestTick_EscalatesAfterConsecutiveFailures(t *testing.T) {
	f := newFixture(t, day(2025, 1, 2), WithMaxConsecutiveFailures(3))
	f.seed(t, dailyDefinition())
	f.creator.createFn = func(context.Context, domain.ProjectPayload) (*domain.PersistedProject, error) {
		return nil, errors.New("template missing")
	}

	ctx := context.Background()
	var failure *GenerationFailure
	for attempt := 1; attempt <= 3; attempt++ {
		action, err := f.scheduler.Tick(ctx, "daily-cleanup")
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, ActionFailed, action.Kind)
		assert.Equal(t, attempt, failure.Attempts)
		assert.Equal(t, 1, failure.OccurrenceNumber)
	}
	assert.True(t, failure.Escalated)

	stored := f.load(t, "daily-cleanup")
	assert.False(t, stored.IsActive)
	assert.True(t, stored.NeedsAttention)
	require.NotNil(t, stored.AttentionReason)
	assert.Contains(t, *stored.AttentionReason, "template missing")

	action, err := f.scheduler.Tick(ctx, "daily-cleanup")
	require.NoError(t, err)
	assert.Equal(t, ReasonInactive, action.Reason)
	assert.Len(t, f.ledger(t, "daily-cleanup"), 3)
}

func TestTick_ProjectCreationTimeout(t *testing.T) {
	f := newFixture(t, day(2025, 1, 2), WithCreateTimeout(20*time.Millisecond))
	f.seed(t, dailyDefinition())
	f.creator.createFn = func(ctx context.Context, _ domain.ProjectPayload) (*domain.PersistedProject, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	action, err := f.scheduler.Tick(context.Background(), "daily-cleanup")
	assert.Equal(t, ActionFailed, action.Kind)
	assert.True(t, IsGenerationFailure(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, f.load(t, "daily-cleanup").TotalOccurrences)
}

func TestTick_SaveFailureIsReconciledOnNextTick(t *testing.T) {
	store := memory.New()
	defs := &mockDefinitions{Store: store}
	creator := &mockProjectCreator{store: store}
	s := New(defs, store, creator, WithClock(ClockFunc(func() time.Time { return day(2025, 1, 2) })))

	def := dailyDefinition()
	require.NoError(t, store.Save(context.Background(), def))

	defs.saveFn = func(context.Context, *domain.RecurringProjectDefinition) error {
		return errors.New("connection reset")
	}
	_, err := s.Tick(context.Background(), def.ID)
	require.Error(t, err)
	assert.False(t, IsGenerationFailure(err))

	defs.saveFn = nil
	action, err := s.Tick(context.Background(), def.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, action.Kind)
	assert.Equal(t, ReasonAlreadyGenerated, action.Reason)
	assert.Equal(t, 1, creator.callCount())

	stored, err := store.FindByID(context.Background(), def.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalOccurrences)
}

func TestTick_ConcurrentTicksGenerateOnce(t *testing.T) {
	f := newFixture(t, day(2025, 1, 10))
	f.seed(t, weeklyDefinition())

	var wg sync.WaitGroup
	actions := make(chan ActionKind, 20)
	for range 20 {
		wg.Go(func() {
			action, err := f.scheduler.Tick(context.Background(), "weekly-line-check")
			assert.NoError(t, err)
			actions <- action.Kind
		})
	}
	wg.Wait()
	close(actions)

	generated := 0
	for kind := range actions {
		if kind == ActionGenerated {
			generated++
		}
	}

	assert.Equal(t, 1, generated)
	assert.Len(t, f.ledger(t, "weekly-line-check"), 1)
	assert.Equal(t, 1, f.creator.callCount())
}

func TestGenerateManualOccurrence(t *testing.T) {
	f := newFixture(t, day(2025, 1, 2))
	def := weeklyDefinition()
	def.AutoGenerate = false
	f.seed(t, def)

	custom := &domain.Customizations{Name: ptr.To("Line check (audit)"), Duration: ptr.To(5)}
	action, err := f.scheduler.GenerateManualOccurrence(context.Background(), def.ID, day(2025, 3, 3), custom)
	require.NoError(t, err)

	assert.Equal(t, ActionGenerated, action.Kind)
	assert.Equal(t, 1, action.Record.OccurrenceNumber)
	assert.Equal(t, day(2025, 3, 3), action.Record.ScheduledDate)

	project, ok := f.store.Project(action.Project.ID)
	require.True(t, ok)
	assert.Equal(t, "Line check (audit)", project.Name)
	assert.Equal(t, day(2025, 3, 8), project.DueDate)

	stored := f.load(t, def.ID)
	assert.Equal(t, "Line check", stored.Name)
	assert.Equal(t, 2, stored.Duration)
	assert.Equal(t, 1, stored.TotalOccurrences)
	assert.Equal(t, day(2025, 3, 3), *stored.LastOccurrence)
	assert.Equal(t, day(2025, 3, 10), *stored.NextOccurrence)
}

func TestGenerateManualOccurrence_Inactive(t *testing.T) {
	f := newFixture(t, day(2025, 1, 2))
	def := weeklyDefinition()
	def.IsActive = false
	f.seed(t, def)

	_, err := f.scheduler.GenerateManualOccurrence(context.Background(), def.ID, day(2025, 3, 3), nil)
	assert.ErrorIs(t, err, domain.ErrDefinitionInactive)
	assert.Zero(t, f.creator.callCount())
}

func TestGenerateManualOccurrence_AfterOccurrenceLimit(t *testing.T) {
	f := newFixture(t, day(2025, 1, 10))
	def := dailyDefinition()
	def.Pattern.EndAfterOccurrences = ptr.To(3)
	f.seed(t, def)

	ctx := context.Background()
	for range 3 {
		action, err := f.scheduler.Tick(ctx, def.ID)
		require.NoError(t, err)
		require.Equal(t, ActionGenerated, action.Kind)
	}

	action, err := f.scheduler.GenerateManualOccurrence(ctx, def.ID, day(2025, 1, 10), nil)
	require.NoError(t, err)
	assert.Equal(t, ActionEnded, action.Kind)

	stored := f.load(t, def.ID)
	assert.False(t, stored.IsActive)
	assert.Equal(t, 3, stored.TotalOccurrences)
	assert.Equal(t, 3, f.creator.callCount())
	assert.Len(t, f.ledger(t, def.ID), 3)
}

func TestGenerateManualOccurrence_CountsTowardLimit(t *testing.T) {
	f := newFixture(t, day(2025, 1, 10))
	def := dailyDefinition()
	def.Pattern.EndAfterOccurrences = ptr.To(3)
	f.seed(t, def)

	ctx := context.Background()
	action, err := f.scheduler.Tick(ctx, def.ID)
	require.NoError(t, err)
	require.Equal(t, ActionGenerated, action.Kind)
	require.Equal(t, day(2025, 1, 2), action.Record.ScheduledDate)

	action, err = f.scheduler.GenerateManualOccurrence(ctx, def.ID, day(2025, 1, 2), nil)
	require.NoError(t, err)
	require.Equal(t, ActionGenerated, action.Kind)
	assert.Equal(t, 2, action.Record.OccurrenceNumber)

	action, err = f.scheduler.Tick(ctx, def.ID)
	require.NoError(t, err)
	require.Equal(t, ActionGenerated, action.Kind)
	assert.Equal(t, 3, action.Record.OccurrenceNumber)

	stored := f.load(t, def.ID)
	assert.Equal(t, 0, *stored.RemainingOccurrences)
	assert.Nil(t, stored.NextOccurrence)

	action, err = f.scheduler.Tick(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionEnded, action.Kind)

	assert.Equal(t, 3, f.creator.callCount())
	assert.Len(t, f.ledger(t, def.ID), 3)
}

func TestListGeneratedProjects(t *testing.T) {
	f := newFixture(t, day(2025, 2, 1))
	f.seed(t, weeklyDefinition())

	for range 2 {
		_, err := f.scheduler.Tick(context.Background(), "weekly-line-check")
		require.NoError(t, err)
	}

	records, err := f.scheduler.ListGeneratedProjects(context.Background(), "weekly-line-check")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].OccurrenceNumber)
	assert.Equal(t, 2, records[1].OccurrenceNumber)

	again, err := f.scheduler.ListGeneratedProjects(context.Background(), "weekly-line-check")
	require.NoError(t, err)
	assert.Equal(t, records, again)

	def, err := f.scheduler.GetDefinition(context.Background(), "weekly-line-check")
	require.NoError(t, err)
	assert.Equal(t, records, def.GeneratedProjects)

	_, err = f.scheduler.ListGeneratedProjects(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrDefinitionNotFound)
}

func TestPreviewNextOccurrence_HolidayCalendar(t *testing.T) {
	cal, err := recurring.ParseHolidayCalendar([]byte("holidays:\n  - date: 2025-12-25\n    name: Christmas Day\n"))
	require.NoError(t, err)

	f := newFixture(t, day(2025, 1, 1), WithHolidayCalendar(cal))
	p := domain.RecurrencePattern{
		Frequency:    domain.FrequencyDaily,
		Interval:     1,
		StartDate:    day(2025, 12, 1),
		SkipHolidays: true,
	}

	next, err := f.scheduler.PreviewNextOccurrence(context.Background(), p, day(2025, 12, 24))
	require.NoError(t, err)
	assert.Equal(t, day(2025, 12, 26), *next)

	dates, err := f.scheduler.PreviewOccurrences(context.Background(), p, day(2025, 12, 23), 3)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2025, 12, 24), day(2025, 12, 26), day(2025, 12, 27)}, dates)
}
