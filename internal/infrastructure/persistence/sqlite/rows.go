package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rezkam/shopfloor/internal/domain"
)

// Timestamps are stored as RFC 3339 text in UTC, calendar dates as YYYY-MM-DD.
const timestampLayout = time.RFC3339Nano

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatDatePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(domain.DateLayout), Valid: true}
}

func parseDatePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := domain.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

const definitionColumns = `id, template_id, name, description, client_id, duration_days,
	components, pattern, is_active, auto_generate, advance_notice_days, project_suffix,
	next_occurrence, last_occurrence, total_occurrences, remaining_occurrences,
	consecutive_failures, needs_attention, attention_reason, created_at, updated_at, version`

func scanDefinition(row scanner) (*domain.RecurringProjectDefinition, error) {
	var (
		def                      domain.RecurringProjectDefinition
		clientID, suffix, reason sql.NullString
		nextOcc, lastOcc         sql.NullString
		remaining                sql.NullInt64
		components, pattern      string
		createdAt, updatedAt     string
	)

	err := row.Scan(
		&def.ID, &def.TemplateID, &def.Name, &def.Description, &clientID, &def.Duration,
		&components, &pattern, &def.IsActive, &def.AutoGenerate, &def.AdvanceNoticeDays, &suffix,
		&nextOcc, &lastOcc, &def.TotalOccurrences, &remaining,
		&def.ConsecutiveFailures, &def.NeedsAttention, &reason, &createdAt, &updatedAt, &def.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(components), &def.Components); err != nil {
		return nil, fmt.Errorf("failed to decode components of %s: %w", def.ID, err)
	}
	if err := json.Unmarshal([]byte(pattern), &def.Pattern); err != nil {
		return nil, fmt.Errorf("failed to decode pattern of %s: %w", def.ID, err)
	}

	def.ClientID = stringPtr(clientID)
	def.ProjectSuffix = stringPtr(suffix)
	def.AttentionReason = stringPtr(reason)
	def.RemainingOccurrences = intPtr(remaining)
	if def.NextOccurrence, err = parseDatePtr(nextOcc); err != nil {
		return nil, err
	}
	if def.LastOccurrence, err = parseDatePtr(lastOcc); err != nil {
		return nil, err
	}
	if def.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if def.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &def, nil
}

func definitionArgs(def *domain.RecurringProjectDefinition) ([]any, error) {
	components := def.Components
	if components == nil {
		components = []domain.Component{}
	}
	encodedComponents, err := json.Marshal(components)
	if err != nil {
		return nil, fmt.Errorf("failed to encode components: %w", err)
	}
	pattern, err := json.Marshal(def.Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pattern: %w", err)
	}

	return []any{
		def.ID, def.TemplateID, def.Name, def.Description, nullString(def.ClientID), def.Duration,
		string(encodedComponents), string(pattern), def.IsActive, def.AutoGenerate, def.AdvanceNoticeDays,
		nullString(def.ProjectSuffix), formatDatePtr(def.NextOccurrence), formatDatePtr(def.LastOccurrence),
		def.TotalOccurrences, nullInt(def.RemainingOccurrences), def.ConsecutiveFailures,
		def.NeedsAttention, nullString(def.AttentionReason),
		formatTime(def.CreatedAt), formatTime(def.UpdatedAt), def.Version,
	}, nil
}

const recordColumns = `id, project_id, recurring_project_id, occurrence_number,
	scheduled_date, actual_generation_date, status, notes`

func scanRecord(row scanner) (domain.GeneratedProjectRecord, error) {
	var (
		rec                  domain.GeneratedProjectRecord
		projectID            sql.NullString
		scheduled, generated string
		status               string
	)

	err := row.Scan(&rec.ID, &projectID, &rec.RecurringProjectID, &rec.OccurrenceNumber,
		&scheduled, &generated, &status, &rec.Notes)
	if err != nil {
		return domain.GeneratedProjectRecord{}, err
	}

	rec.ProjectID = stringPtr(projectID)
	rec.Status = domain.RecordStatus(status)
	if rec.ScheduledDate, err = domain.ParseDate(scheduled); err != nil {
		return domain.GeneratedProjectRecord{}, err
	}
	if rec.ActualGenerationDate, err = parseTime(generated); err != nil {
		return domain.GeneratedProjectRecord{}, err
	}
	return rec, nil
}
