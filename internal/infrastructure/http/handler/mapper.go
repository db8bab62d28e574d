package handler

import (
	"fmt"
	"time"

	"github.com/rezkam/shopfloor/internal/application/scheduler"
	"github.com/rezkam/shopfloor/internal/domain"
)

// PatternDTO is the wire shape of a recurrence pattern. Dates use YYYY-MM-DD
// and weekdays their English names.
type PatternDTO struct {
	Frequency            string   `json:"frequency"`
	Interval             int      `json:"interval,omitempty"`
	StartDate            string   `json:"start_date"`
	EndDate              *string  `json:"end_date,omitempty"`
	EndAfterOccurrences  *int     `json:"end_after_occurrences,omitempty"`
	DaysOfWeek           []string `json:"days_of_week,omitempty"`
	DayOfMonth           *int     `json:"day_of_month,omitempty"`
	WeekOfMonth          *int     `json:"week_of_month,omitempty"`
	DayOfWeekMonthly     *string  `json:"day_of_week_monthly,omitempty"`
	Month                *int     `json:"month,omitempty"`
	CustomDates          []string `json:"custom_dates,omitempty"`
	CustomExpression     string   `json:"custom_expression,omitempty"`
	SkipWeekends         bool     `json:"skip_weekends"`
	SkipHolidays         bool     `json:"skip_holidays"`
	Holidays             []string `json:"holidays,omitempty"`
	DisabledDateHandling string   `json:"disabled_date_handling,omitempty"`
}

// DefinitionDTO is the wire shape of a recurring project definition.
type DefinitionDTO struct {
	ID                   string             `json:"id"`
	TemplateID           string             `json:"template_id,omitempty"`
	Name                 string             `json:"name"`
	Description          string             `json:"description,omitempty"`
	ClientID             *string            `json:"client_id,omitempty"`
	DurationDays         int                `json:"duration_days"`
	Components           []domain.Component `json:"components,omitempty"`
	Pattern              PatternDTO         `json:"pattern"`
	IsActive             bool               `json:"is_active"`
	AutoGenerate         bool               `json:"auto_generate"`
	AdvanceNoticeDays    int                `json:"advance_notice_days"`
	ProjectSuffix        *string            `json:"project_suffix,omitempty"`
	NextOccurrence       *string            `json:"next_occurrence,omitempty"`
	LastOccurrence       *string            `json:"last_occurrence,omitempty"`
	TotalOccurrences     int                `json:"total_occurrences"`
	RemainingOccurrences *int               `json:"remaining_occurrences,omitempty"`
	ConsecutiveFailures  int                `json:"consecutive_failures"`
	NeedsAttention       bool               `json:"needs_attention"`
	AttentionReason      *string            `json:"attention_reason,omitempty"`
	GeneratedProjects    []RecordDTO        `json:"generated_projects,omitempty"`
	CreatedAt            *time.Time         `json:"created_at,omitempty"`
	UpdatedAt            *time.Time         `json:"updated_at,omitempty"`
	Etag                 string             `json:"etag,omitempty"`
}

// RecordDTO is the wire shape of a ledger record.
type RecordDTO struct {
	ID                   string    `json:"id"`
	ProjectID            *string   `json:"project_id,omitempty"`
	OccurrenceNumber     int       `json:"occurrence_number"`
	ScheduledDate        string    `json:"scheduled_date"`
	ActualGenerationDate time.Time `json:"actual_generation_date"`
	Status               string    `json:"status"`
	Notes                string    `json:"notes,omitempty"`
}

// ActionDTO reports the outcome of a tick or manual generation.
type ActionDTO struct {
	Action    string      `json:"action"`
	Reason    string      `json:"reason,omitempty"`
	Candidate *string     `json:"candidate,omitempty"`
	Record    *RecordDTO  `json:"record,omitempty"`
	Project   *ProjectDTO `json:"project,omitempty"`
}

// ProjectDTO identifies a project created for an occurrence.
type ProjectDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomizationsDTO carries per-occurrence overrides for manual generation.
type CustomizationsDTO struct {
	Name         *string            `json:"name,omitempty"`
	Description  *string            `json:"description,omitempty"`
	Components   []domain.Component `json:"components,omitempty"`
	DurationDays *int               `json:"duration_days,omitempty"`
}

// fieldError is a request value that failed to parse.
type fieldError struct {
	field string
	issue string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.issue)
}

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

func formatDates(in []time.Time) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, t := range in {
		out[i] = formatDate(t)
	}
	return out
}

func ptrTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func parseDateField(field, s string) (time.Time, error) {
	t, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, &fieldError{field: field, issue: "must be a date in YYYY-MM-DD format"}
	}
	return t, nil
}

func parseDates(field string, in []string) ([]time.Time, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]time.Time, len(in))
	for i, s := range in {
		t, err := parseDateField(field, s)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// MapPatternToDTO converts a domain pattern to its wire shape.
func MapPatternToDTO(p domain.RecurrencePattern) PatternDTO {
	dto := PatternDTO{
		Frequency:            string(p.Frequency),
		Interval:             p.Interval,
		StartDate:            formatDate(p.StartDate),
		EndDate:              formatDatePtr(p.EndDate),
		EndAfterOccurrences:  p.EndAfterOccurrences,
		DayOfMonth:           p.DayOfMonth,
		WeekOfMonth:          p.WeekOfMonth,
		CustomDates:          formatDates(p.CustomDates),
		CustomExpression:     p.CustomExpression,
		SkipWeekends:         p.SkipWeekends,
		SkipHolidays:         p.SkipHolidays,
		Holidays:             formatDates(p.Holidays),
		DisabledDateHandling: string(p.DisabledDateHandling),
	}
	for _, wd := range p.DaysOfWeek {
		dto.DaysOfWeek = append(dto.DaysOfWeek, wd.String())
	}
	if p.DayOfWeekMonthly != nil {
		name := p.DayOfWeekMonthly.String()
		dto.DayOfWeekMonthly = &name
	}
	if p.Month != nil {
		m := int(*p.Month)
		dto.Month = &m
	}
	return dto
}

// MapPatternFromDTO parses a wire pattern. Structural validation is left to
// the domain; only unparseable values are rejected here.
func MapPatternFromDTO(dto PatternDTO) (domain.RecurrencePattern, error) {
	freq, err := domain.NewFrequency(dto.Frequency)
	if err != nil {
		return domain.RecurrencePattern{}, &fieldError{field: "pattern.frequency", issue: err.Error()}
	}
	handling, err := domain.NewDisabledDateHandling(dto.DisabledDateHandling)
	if err != nil {
		return domain.RecurrencePattern{}, &fieldError{field: "pattern.disabled_date_handling", issue: err.Error()}
	}

	p := domain.RecurrencePattern{
		Frequency:            freq,
		Interval:             dto.Interval,
		EndAfterOccurrences:  dto.EndAfterOccurrences,
		DayOfMonth:           dto.DayOfMonth,
		WeekOfMonth:          dto.WeekOfMonth,
		CustomExpression:     dto.CustomExpression,
		SkipWeekends:         dto.SkipWeekends,
		SkipHolidays:         dto.SkipHolidays,
		DisabledDateHandling: handling,
	}
	if p.Interval == 0 {
		p.Interval = 1
	}

	if p.StartDate, err = parseDateField("pattern.start_date", dto.StartDate); err != nil {
		return domain.RecurrencePattern{}, err
	}
	if dto.EndDate != nil {
		end, err := parseDateField("pattern.end_date", *dto.EndDate)
		if err != nil {
			return domain.RecurrencePattern{}, err
		}
		p.EndDate = &end
	}
	if p.CustomDates, err = parseDates("pattern.custom_dates", dto.CustomDates); err != nil {
		return domain.RecurrencePattern{}, err
	}
	if p.Holidays, err = parseDates("pattern.holidays", dto.Holidays); err != nil {
		return domain.RecurrencePattern{}, err
	}

	for _, name := range dto.DaysOfWeek {
		wd, err := domain.ParseWeekday(name)
		if err != nil {
			return domain.RecurrencePattern{}, &fieldError{field: "pattern.days_of_week", issue: err.Error()}
		}
		p.DaysOfWeek = append(p.DaysOfWeek, wd)
	}
	if dto.DayOfWeekMonthly != nil {
		wd, err := domain.ParseWeekday(*dto.DayOfWeekMonthly)
		if err != nil {
			return domain.RecurrencePattern{}, &fieldError{field: "pattern.day_of_week_monthly", issue: err.Error()}
		}
		p.DayOfWeekMonthly = &wd
	}
	if dto.Month != nil {
		if *dto.Month < 1 || *dto.Month > 12 {
			return domain.RecurrencePattern{}, &fieldError{field: "pattern.month", issue: "must be between 1 and 12"}
		}
		m := time.Month(*dto.Month)
		p.Month = &m
	}

	return p, nil
}

// MapDefinitionToDTO converts a domain definition to its wire shape.
func MapDefinitionToDTO(def *domain.RecurringProjectDefinition) DefinitionDTO {
	dto := DefinitionDTO{
		ID:                   def.ID,
		TemplateID:           def.TemplateID,
		Name:                 def.Name,
		Description:          def.Description,
		ClientID:             def.ClientID,
		DurationDays:         def.Duration,
		Components:           def.Components,
		Pattern:              MapPatternToDTO(def.Pattern),
		IsActive:             def.IsActive,
		AutoGenerate:         def.AutoGenerate,
		AdvanceNoticeDays:    def.AdvanceNoticeDays,
		ProjectSuffix:        def.ProjectSuffix,
		NextOccurrence:       formatDatePtr(def.NextOccurrence),
		LastOccurrence:       formatDatePtr(def.LastOccurrence),
		TotalOccurrences:     def.TotalOccurrences,
		RemainingOccurrences: def.RemainingOccurrences,
		ConsecutiveFailures:  def.ConsecutiveFailures,
		NeedsAttention:       def.NeedsAttention,
		AttentionReason:      def.AttentionReason,
		CreatedAt:            ptrTime(def.CreatedAt),
		UpdatedAt:            ptrTime(def.UpdatedAt),
		Etag:                 def.Etag(),
	}
	if len(def.GeneratedProjects) > 0 {
		dto.GeneratedProjects = MapRecordsToDTO(def.GeneratedProjects)
	}
	return dto
}

// MapDefinitionFromDTO builds a new definition from a registration request.
// Bookkeeping fields in the request are ignored.
func MapDefinitionFromDTO(dto DefinitionDTO) (*domain.RecurringProjectDefinition, error) {
	pattern, err := MapPatternFromDTO(dto.Pattern)
	if err != nil {
		return nil, err
	}

	return &domain.RecurringProjectDefinition{
		ID:                dto.ID,
		TemplateID:        dto.TemplateID,
		Name:              dto.Name,
		Description:       dto.Description,
		ClientID:          dto.ClientID,
		Duration:          dto.DurationDays,
		Components:        dto.Components,
		Pattern:           pattern,
		IsActive:          true,
		AutoGenerate:      dto.AutoGenerate,
		AdvanceNoticeDays: dto.AdvanceNoticeDays,
		ProjectSuffix:     dto.ProjectSuffix,
	}, nil
}

// MapRecordToDTO converts a ledger record to its wire shape.
func MapRecordToDTO(rec domain.GeneratedProjectRecord) RecordDTO {
	return RecordDTO{
		ID:                   rec.ID,
		ProjectID:            rec.ProjectID,
		OccurrenceNumber:     rec.OccurrenceNumber,
		ScheduledDate:        formatDate(rec.ScheduledDate),
		ActualGenerationDate: rec.ActualGenerationDate,
		Status:               string(rec.Status),
		Notes:                rec.Notes,
	}
}

// MapRecordsToDTO converts a ledger history; an empty history maps to an
// empty array rather than null.
func MapRecordsToDTO(records []domain.GeneratedProjectRecord) []RecordDTO {
	out := make([]RecordDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, MapRecordToDTO(rec))
	}
	return out
}

// MapActionToDTO converts a scheduler action to its wire shape.
func MapActionToDTO(action scheduler.Action) ActionDTO {
	dto := ActionDTO{
		Action:    string(action.Kind),
		Reason:    action.Reason,
		Candidate: formatDatePtr(action.Candidate),
	}
	if action.Record != nil {
		rec := MapRecordToDTO(*action.Record)
		dto.Record = &rec
	}
	if action.Project != nil {
		dto.Project = &ProjectDTO{
			ID:        action.Project.ID,
			Name:      action.Project.Name,
			CreatedAt: action.Project.CreatedAt,
		}
	}
	return dto
}

// MapCustomizationsFromDTO converts overrides; nil stays nil.
func MapCustomizationsFromDTO(dto *CustomizationsDTO) *domain.Customizations {
	if dto == nil {
		return nil
	}
	return &domain.Customizations{
		Name:        dto.Name,
		Description: dto.Description,
		Components:  dto.Components,
		Duration:    dto.DurationDays,
	}
}
