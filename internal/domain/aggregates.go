package domain

import (
	"fmt"
	"time"
)

// Component is one part of a project template (a subassembly, a material line, a task).
// Components are snapshotted into the definition and deep-copied into every generated project.
type Component struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Quantity  float64        `json:"quantity"`
	Unit      string         `json:"unit,omitempty"`
	Notes     string         `json:"notes,omitempty"`
	Materials []MaterialLine `json:"materials,omitempty"`
	Children  []Component    `json:"children,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MaterialLine is a material requirement attached to a component.
type MaterialLine struct {
	MaterialID string  `json:"material_id"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit,omitempty"`
}

// Clone returns a deep copy of the component tree.
func (c Component) Clone() Component {
	out := c
	if c.Materials != nil {
		out.Materials = make([]MaterialLine, len(c.Materials))
		copy(out.Materials, c.Materials)
	}
	if c.Children != nil {
		out.Children = CloneComponents(c.Children)
	}
	if c.Metadata != nil {
		out.Metadata = cloneMap(c.Metadata)
	}
	return out
}

// CloneComponents deep-copies a component list. Nil stays nil.
func CloneComponents(in []Component) []Component {
	if in == nil {
		return nil
	}
	out := make([]Component, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// RecurringProjectDefinition is an aggregate root describing a project that repeats
// on a schedule.
//
// The scheduler is the only writer of the bookkeeping fields (LastOccurrence,
// NextOccurrence, TotalOccurrences, RemainingOccurrences, ConsecutiveFailures,
// NeedsAttention). Deactivation (IsActive=false) is the logical delete; the
// generation history in the ledger is kept.
type RecurringProjectDefinition struct {
	ID          string
	TemplateID  string
	Name        string
	Description string
	ClientID    *string
	Duration    int // Days from occurrence date to project due date
	Components  []Component

	Pattern RecurrencePattern

	IsActive          bool
	AutoGenerate      bool
	AdvanceNoticeDays int
	ProjectSuffix     *string // Naming template containing {n}; nil uses DefaultProjectSuffix

	// Scheduling cursor
	NextOccurrence       *time.Time
	LastOccurrence       *time.Time
	TotalOccurrences     int
	RemainingOccurrences *int

	// Failure escalation
	ConsecutiveFailures int
	NeedsAttention      bool
	AttentionReason     *string

	// Read model over the ledger, populated on demand
	GeneratedProjects []GeneratedProjectRecord

	CreatedAt time.Time
	UpdatedAt time.Time

	// Optimistic locking version for concurrent update protection
	Version int
}

// DefaultProjectSuffix is appended to the definition name when ProjectSuffix is unset.
const DefaultProjectSuffix = "#{n}"

// Etag returns the entity tag for this definition.
func (d *RecurringProjectDefinition) Etag() string {
	return fmt.Sprintf("%d", d.Version)
}

// Validate checks the definition's own fields and its pattern.
func (d *RecurringProjectDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: definition name is required", ErrConfiguration)
	}
	if d.Duration < 0 {
		return fmt.Errorf("%w: duration must not be negative, got %d", ErrConfiguration, d.Duration)
	}
	if d.AdvanceNoticeDays < 0 {
		return fmt.Errorf("%w: advance notice days must not be negative, got %d", ErrConfiguration, d.AdvanceNoticeDays)
	}
	return d.Pattern.Validate()
}

// InitRemaining derives RemainingOccurrences from the pattern's occurrence limit.
func (d *RecurringProjectDefinition) InitRemaining() {
	if d.Pattern.EndAfterOccurrences == nil {
		d.RemainingOccurrences = nil
		return
	}
	remaining := max(*d.Pattern.EndAfterOccurrences-d.TotalOccurrences, 0)
	d.RemainingOccurrences = &remaining
}

// GeneratedProjectRecord is an append-only ledger entry for one materialized or
// attempted occurrence.
type GeneratedProjectRecord struct {
	ID                   string
	ProjectID            *string // nil when generation failed
	RecurringProjectID   string
	OccurrenceNumber     int // 1-based, strictly increasing per definition
	ScheduledDate        time.Time
	ActualGenerationDate time.Time
	Status               RecordStatus
	Notes                string
}

// ProjectPayload is the canonical project shape produced by materialization.
// Adapters convert it to their storage or API representation explicitly.
type ProjectPayload struct {
	Name        string
	Description string
	ClientID    *string
	TemplateID  string
	StartDate   time.Time
	DueDate     time.Time
	Status      ProjectStatus
	Components  []Component

	// Traceability back to the schedule
	RecurringProjectID string
	OccurrenceNumber   int

	GeneratedAt time.Time
}

// PersistedProject is what the project-creation collaborator returns.
type PersistedProject struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Customizations are per-occurrence overrides applied during manual generation.
// They never flow back into the definition.
type Customizations struct {
	Name        *string
	Description *string
	Components  []Component
	Duration    *int
}
