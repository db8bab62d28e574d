package document

import (
	"encoding/json"
	"time"

	"github.com/rezkam/shopfloor/internal/domain"
)

// definitionDocument is the stored JSON shape of a definition.
type definitionDocument struct {
	ID                   string                   `json:"id"`
	TemplateID           string                   `json:"template_id"`
	Name                 string                   `json:"name"`
	Description          string                   `json:"description,omitempty"`
	ClientID             *string                  `json:"client_id,omitempty"`
	DurationDays         int                      `json:"duration_days"`
	Components           []domain.Component       `json:"components,omitempty"`
	Pattern              domain.RecurrencePattern `json:"pattern"`
	IsActive             bool                     `json:"is_active"`
	AutoGenerate         bool                     `json:"auto_generate"`
	AdvanceNoticeDays    int                      `json:"advance_notice_days"`
	ProjectSuffix        *string                  `json:"project_suffix,omitempty"`
	NextOccurrence       *time.Time               `json:"next_occurrence,omitempty"`
	LastOccurrence       *time.Time               `json:"last_occurrence,omitempty"`
	TotalOccurrences     int                      `json:"total_occurrences"`
	RemainingOccurrences *int                     `json:"remaining_occurrences,omitempty"`
	ConsecutiveFailures  int                      `json:"consecutive_failures"`
	NeedsAttention       bool                     `json:"needs_attention"`
	AttentionReason      *string                  `json:"attention_reason,omitempty"`
	CreatedAt            time.Time                `json:"created_at"`
	UpdatedAt            time.Time                `json:"updated_at"`
	Version              int                      `json:"version"`
}

func newDefinitionDocument(def *domain.RecurringProjectDefinition) definitionDocument {
	return definitionDocument{
		ID:                   def.ID,
		TemplateID:           def.TemplateID,
		Name:                 def.Name,
		Description:          def.Description,
		ClientID:             def.ClientID,
		DurationDays:         def.Duration,
		Components:           def.Components,
		Pattern:              def.Pattern,
		IsActive:             def.IsActive,
		AutoGenerate:         def.AutoGenerate,
		AdvanceNoticeDays:    def.AdvanceNoticeDays,
		ProjectSuffix:        def.ProjectSuffix,
		NextOccurrence:       def.NextOccurrence,
		LastOccurrence:       def.LastOccurrence,
		TotalOccurrences:     def.TotalOccurrences,
		RemainingOccurrences: def.RemainingOccurrences,
		ConsecutiveFailures:  def.ConsecutiveFailures,
		NeedsAttention:       def.NeedsAttention,
		AttentionReason:      def.AttentionReason,
		CreatedAt:            def.CreatedAt.UTC(),
		UpdatedAt:            def.UpdatedAt.UTC(),
		Version:              def.Version,
	}
}

func decodeDefinition(data []byte) (*domain.RecurringProjectDefinition, error) {
	var doc definitionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return &domain.RecurringProjectDefinition{
		ID:                   doc.ID,
		TemplateID:           doc.TemplateID,
		Name:                 doc.Name,
		Description:          doc.Description,
		ClientID:             doc.ClientID,
		Duration:             doc.DurationDays,
		Components:           doc.Components,
		Pattern:              doc.Pattern,
		IsActive:             doc.IsActive,
		AutoGenerate:         doc.AutoGenerate,
		AdvanceNoticeDays:    doc.AdvanceNoticeDays,
		ProjectSuffix:        doc.ProjectSuffix,
		NextOccurrence:       doc.NextOccurrence,
		LastOccurrence:       doc.LastOccurrence,
		TotalOccurrences:     doc.TotalOccurrences,
		RemainingOccurrences: doc.RemainingOccurrences,
		ConsecutiveFailures:  doc.ConsecutiveFailures,
		NeedsAttention:       doc.NeedsAttention,
		AttentionReason:      doc.AttentionReason,
		CreatedAt:            doc.CreatedAt,
		UpdatedAt:            doc.UpdatedAt,
		Version:              doc.Version,
	}, nil
}

type recordDocument struct {
	ID                   string              `json:"id"`
	ProjectID            *string             `json:"project_id,omitempty"`
	RecurringProjectID   string              `json:"recurring_project_id"`
	OccurrenceNumber     int                 `json:"occurrence_number"`
	ScheduledDate        string              `json:"scheduled_date"`
	ActualGenerationDate time.Time           `json:"actual_generation_date"`
	Status               domain.RecordStatus `json:"status"`
	Notes                string              `json:"notes,omitempty"`
}

func newRecordDocument(rec *domain.GeneratedProjectRecord) recordDocument {
	return recordDocument{
		ID:                   rec.ID,
		ProjectID:            rec.ProjectID,
		RecurringProjectID:   rec.RecurringProjectID,
		OccurrenceNumber:     rec.OccurrenceNumber,
		ScheduledDate:        rec.ScheduledDate.Format(domain.DateLayout),
		ActualGenerationDate: rec.ActualGenerationDate.UTC(),
		Status:               rec.Status,
		Notes:                rec.Notes,
	}
}

func decodeRecord(data []byte) (*domain.GeneratedProjectRecord, error) {
	var doc recordDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	scheduled, err := domain.ParseDate(doc.ScheduledDate)
	if err != nil {
		return nil, err
	}

	return &domain.GeneratedProjectRecord{
		ID:                   doc.ID,
		ProjectID:            doc.ProjectID,
		RecurringProjectID:   doc.RecurringProjectID,
		OccurrenceNumber:     doc.OccurrenceNumber,
		ScheduledDate:        scheduled,
		ActualGenerationDate: doc.ActualGenerationDate,
		Status:               doc.Status,
		Notes:                doc.Notes,
	}, nil
}

type projectDocument struct {
	ID                 string               `json:"id"`
	Name               string               `json:"name"`
	Description        string               `json:"description,omitempty"`
	ClientID           *string              `json:"client_id,omitempty"`
	TemplateID         string               `json:"template_id,omitempty"`
	StartDate          string               `json:"start_date"`
	DueDate            string               `json:"due_date"`
	Status             domain.ProjectStatus `json:"status"`
	Components         []domain.Component   `json:"components,omitempty"`
	RecurringProjectID string               `json:"recurring_project_id"`
	OccurrenceNumber   int                  `json:"occurrence_number"`
	GeneratedAt        time.Time            `json:"generated_at"`
	CreatedAt          time.Time            `json:"created_at"`
}

func newProjectDocument(id string, p domain.ProjectPayload, created time.Time) projectDocument {
	return projectDocument{
		ID:                 id,
		Name:               p.Name,
		Description:        p.Description,
		ClientID:           p.ClientID,
		TemplateID:         p.TemplateID,
		StartDate:          p.StartDate.Format(domain.DateLayout),
		DueDate:            p.DueDate.Format(domain.DateLayout),
		Status:             p.Status,
		Components:         p.Components,
		RecurringProjectID: p.RecurringProjectID,
		OccurrenceNumber:   p.OccurrenceNumber,
		GeneratedAt:        p.GeneratedAt.UTC(),
		CreatedAt:          created,
	}
}
