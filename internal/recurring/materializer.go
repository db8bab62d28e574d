package recurring

import (
	"strconv"
	"strings"
	"time"

	"github.com/rezkam/shopfloor/internal/domain"
)

// OccurrencePlaceholder is replaced by the occurrence number in project suffixes.
const OccurrencePlaceholder = "{n}"

// Materialize turns a recurring definition and a chosen occurrence into a
// concrete project payload.
//
// The definition is never modified: components are deep-copied and
// customizations only affect the returned payload. Calling it twice with the
// same inputs yields equal payloads.
func Materialize(def *domain.RecurringProjectDefinition, occurrenceDate time.Time, occurrenceNumber int, custom *domain.Customizations, now time.Time) domain.ProjectPayload {
	date := domain.DateOf(occurrenceDate)

	duration := def.Duration
	name := ProjectName(def, occurrenceNumber)
	description := def.Description
	components := def.Components

	if custom != nil {
		if custom.Name != nil {
			name = *custom.Name
		}
		if custom.Description != nil {
			description = *custom.Description
		}
		if custom.Components != nil {
			components = custom.Components
		}
		if custom.Duration != nil {
			duration = *custom.Duration
		}
	}

	var clientID *string
	if def.ClientID != nil {
		id := *def.ClientID
		clientID = &id
	}

	return domain.ProjectPayload{
		Name:               name,
		Description:        description,
		ClientID:           clientID,
		TemplateID:         def.TemplateID,
		StartDate:          date,
		DueDate:            date.AddDate(0, 0, duration),
		Status:             domain.ProjectStatusPlanning,
		Components:         domain.CloneComponents(components),
		RecurringProjectID: def.ID,
		OccurrenceNumber:   occurrenceNumber,
		GeneratedAt:        now.UTC(),
	}
}

// ProjectName builds "<definition name> <suffix>" with {n} replaced by the occurrence number.
func ProjectName(def *domain.RecurringProjectDefinition, occurrenceNumber int) string {
	suffix := domain.DefaultProjectSuffix
	if def.ProjectSuffix != nil {
		suffix = *def.ProjectSuffix
	}

	suffix = strings.ReplaceAll(suffix, OccurrencePlaceholder, strconv.Itoa(occurrenceNumber))
	if suffix == "" {
		return def.Name
	}
	return def.Name + " " + suffix
}
