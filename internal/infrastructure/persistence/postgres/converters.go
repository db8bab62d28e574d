package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rezkam/shopfloor/internal/domain"
)

// === pgtype Conversion Helpers ===

// parseUUID parses a textual ID into pgtype.UUID, mapping bad input to domain.ErrInvalidID.
func parseUUID(id string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("%w: %s", domain.ErrInvalidID, id)
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

// parseUUIDPtr is parseUUID for optional IDs; nil stores NULL.
func parseUUIDPtr(id *string) (pgtype.UUID, error) {
	if id == nil {
		return pgtype.UUID{Valid: false}, nil
	}
	return parseUUID(*id)
}

// pgtypeToUUIDString converts pgtype.UUID to string (empty if invalid).
func pgtypeToUUIDString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

// pgtypeToUUIDStringPtr converts pgtype.UUID to *string (nil if invalid).
func pgtypeToUUIDStringPtr(id pgtype.UUID) *string {
	if !id.Valid {
		return nil
	}
	s := pgtypeToUUIDString(id)
	return &s
}

// timeToPgtype converts time.Time to pgtype.Timestamptz.
func timeToPgtype(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// pgtypeToTime converts pgtype.Timestamptz to time.Time (zero if invalid).
// Always returns time in UTC location for consistent timezone handling.
func pgtypeToTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

// dateToPgtype converts time.Time to pgtype.Date.
func dateToPgtype(t time.Time) pgtype.Date {
	return pgtype.Date{Time: domain.DateOf(t), Valid: true}
}

// datePtrToPgtype converts *time.Time to pgtype.Date; nil stores NULL.
func datePtrToPgtype(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{Valid: false}
	}
	return dateToPgtype(*t)
}

// pgtypeToDate converts pgtype.Date to a UTC midnight time.Time.
func pgtypeToDate(d pgtype.Date) time.Time {
	if !d.Valid {
		return time.Time{}
	}
	return domain.DateOf(d.Time)
}

// pgtypeToDatePtr converts pgtype.Date to *time.Time (nil if invalid).
func pgtypeToDatePtr(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := pgtypeToDate(d)
	return &t
}

// intPtrToPgtype converts *int to pgtype.Int4; nil stores NULL.
func intPtrToPgtype(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

// pgtypeToIntPtr converts pgtype.Int4 to *int (nil if invalid).
func pgtypeToIntPtr(v pgtype.Int4) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int32)
	return &i
}

// === Row Conversions ===

const definitionColumns = `id, template_id, name, description, client_id, duration_days,
	components, pattern, is_active, auto_generate, advance_notice_days, project_suffix,
	next_occurrence, last_occurrence, total_occurrences, remaining_occurrences,
	consecutive_failures, needs_attention, attention_reason, created_at, updated_at, version`

// scanDefinition reads one recurring_definitions row selected with definitionColumns.
func scanDefinition(row pgx.Row) (*domain.RecurringProjectDefinition, error) {
	var (
		def                  domain.RecurringProjectDefinition
		duration, notice     int32
		total, failures, ver int32
		components, pattern  []byte
		nextOcc, lastOcc     pgtype.Date
		remaining            pgtype.Int4
		createdAt, updatedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&def.ID, &def.TemplateID, &def.Name, &def.Description, &def.ClientID, &duration,
		&components, &pattern, &def.IsActive, &def.AutoGenerate, &notice, &def.ProjectSuffix,
		&nextOcc, &lastOcc, &total, &remaining,
		&failures, &def.NeedsAttention, &def.AttentionReason, &createdAt, &updatedAt, &ver,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(components, &def.Components); err != nil {
		return nil, fmt.Errorf("failed to decode components of %s: %w", def.ID, err)
	}
	if err := json.Unmarshal(pattern, &def.Pattern); err != nil {
		return nil, fmt.Errorf("failed to decode pattern of %s: %w", def.ID, err)
	}

	def.Duration = int(duration)
	def.AdvanceNoticeDays = int(notice)
	def.NextOccurrence = pgtypeToDatePtr(nextOcc)
	def.LastOccurrence = pgtypeToDatePtr(lastOcc)
	def.TotalOccurrences = int(total)
	def.RemainingOccurrences = pgtypeToIntPtr(remaining)
	def.ConsecutiveFailures = int(failures)
	def.CreatedAt = pgtypeToTime(createdAt)
	def.UpdatedAt = pgtypeToTime(updatedAt)
	def.Version = int(ver)
	return &def, nil
}

// definitionArgs returns the column values of def in definitionColumns order.
func definitionArgs(def *domain.RecurringProjectDefinition) ([]any, error) {
	components, err := json.Marshal(componentsOrEmpty(def.Components))
	if err != nil {
		return nil, fmt.Errorf("failed to encode components: %w", err)
	}
	pattern, err := json.Marshal(def.Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pattern: %w", err)
	}

	return []any{
		def.ID, def.TemplateID, def.Name, def.Description, def.ClientID, int32(def.Duration),
		components, pattern, def.IsActive, def.AutoGenerate, int32(def.AdvanceNoticeDays), def.ProjectSuffix,
		datePtrToPgtype(def.NextOccurrence), datePtrToPgtype(def.LastOccurrence),
		int32(def.TotalOccurrences), intPtrToPgtype(def.RemainingOccurrences),
		int32(def.ConsecutiveFailures), def.NeedsAttention, def.AttentionReason,
		timeToPgtype(def.CreatedAt), timeToPgtype(def.UpdatedAt), int32(def.Version),
	}, nil
}

const recordColumns = `id, project_id, recurring_project_id, occurrence_number,
	scheduled_date, actual_generation_date, status, notes`

// scanRecord reads one generated_projects row selected with recordColumns.
func scanRecord(row pgx.CollectableRow) (domain.GeneratedProjectRecord, error) {
	var (
		rec         domain.GeneratedProjectRecord
		id, project pgtype.UUID
		n           int32
		scheduled   pgtype.Date
		generatedAt pgtype.Timestamptz
		status      string
	)

	err := row.Scan(&id, &project, &rec.RecurringProjectID, &n, &scheduled, &generatedAt, &status, &rec.Notes)
	if err != nil {
		return domain.GeneratedProjectRecord{}, err
	}

	rec.ID = pgtypeToUUIDString(id)
	rec.ProjectID = pgtypeToUUIDStringPtr(project)
	rec.OccurrenceNumber = int(n)
	rec.ScheduledDate = pgtypeToDate(scheduled)
	rec.ActualGenerationDate = pgtypeToTime(generatedAt)
	rec.Status = domain.RecordStatus(status)
	return rec, nil
}

func componentsOrEmpty(c []domain.Component) []domain.Component {
	if c == nil {
		return []domain.Component{}
	}
	return c
}
