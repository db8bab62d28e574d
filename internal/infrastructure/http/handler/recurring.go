package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/shopfloor/internal/infrastructure/http/response"
)

// defaultPreviewLimit is used when a preview request omits limit.
const defaultPreviewLimit = 10

// ManualOccurrenceRequest is the body of POST /occurrences.
type ManualOccurrenceRequest struct {
	ScheduledDate  string             `json:"scheduled_date"`
	Customizations *CustomizationsDTO `json:"customizations,omitempty"`
}

// PreviewRequest is the body of POST /v1/recurrence-patterns/preview.
type PreviewRequest struct {
	Pattern PatternDTO `json:"pattern"`
	From    *string    `json:"from,omitempty"`
	Limit   int        `json:"limit,omitempty"`
}

// PreviewResponse lists upcoming occurrence dates.
type PreviewResponse struct {
	Occurrences []string `json:"occurrences"`
}

// GeneratedProjectsResponse lists a definition's ledger history.
type GeneratedProjectsResponse struct {
	GeneratedProjects []RecordDTO `json:"generated_projects"`
}

// writeFieldError answers with a validation error for request parse
// failures and falls back to domain mapping otherwise.
func writeFieldError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *fieldError
	if errors.As(err, &fe) {
		response.ValidationError(w, fe.field, fe.issue)
		return
	}
	response.FromDomainError(w, r, err)
}

// RegisterDefinition handles POST /v1/recurring-projects.
func (h *SchedulerHandler) RegisterDefinition(w http.ResponseWriter, r *http.Request) {
	var req DefinitionDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	def, err := MapDefinitionFromDTO(req)
	if err != nil {
		writeFieldError(w, r, err)
		return
	}

	if err := h.scheduler.RegisterDefinition(r.Context(), def); err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.Created(w, MapDefinitionToDTO(def))
}

// GetDefinition handles GET /v1/recurring-projects/{id}.
func (h *SchedulerHandler) GetDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := h.scheduler.GetDefinition(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.OK(w, MapDefinitionToDTO(def))
}

// DeactivateDefinition handles DELETE /v1/recurring-projects/{id}.
// The definition is deactivated, never removed.
func (h *SchedulerHandler) DeactivateDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := h.scheduler.DeactivateDefinition(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.OK(w, MapDefinitionToDTO(def))
}

// ListGeneratedProjects handles GET /v1/recurring-projects/{id}/generated-projects.
func (h *SchedulerHandler) ListGeneratedProjects(w http.ResponseWriter, r *http.Request) {
	records, err := h.scheduler.ListGeneratedProjects(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.OK(w, GeneratedProjectsResponse{GeneratedProjects: MapRecordsToDTO(records)})
}

// Tick handles POST /v1/recurring-projects/{id}/tick.
func (h *SchedulerHandler) Tick(w http.ResponseWriter, r *http.Request) {
	action, err := h.scheduler.Tick(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.OK(w, MapActionToDTO(action))
}

// GenerateManualOccurrence handles POST /v1/recurring-projects/{id}/occurrences.
func (h *SchedulerHandler) GenerateManualOccurrence(w http.ResponseWriter, r *http.Request) {
	var req ManualOccurrenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	date, err := parseDateField("scheduled_date", req.ScheduledDate)
	if err != nil {
		writeFieldError(w, r, err)
		return
	}

	action, err := h.scheduler.GenerateManualOccurrence(r.Context(), chi.URLParam(r, "id"), date,
		MapCustomizationsFromDTO(req.Customizations))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.Created(w, MapActionToDTO(action))
}

// PreviewOccurrences handles POST /v1/recurrence-patterns/preview.
// Nothing is read or written; the pattern is evaluated as given.
func (h *SchedulerHandler) PreviewOccurrences(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pattern, err := MapPatternFromDTO(req.Pattern)
	if err != nil {
		writeFieldError(w, r, err)
		return
	}

	from := pattern.StartDate
	if req.From != nil {
		if from, err = parseDateField("from", *req.From); err != nil {
			writeFieldError(w, r, err)
			return
		}
	}

	limit := req.Limit
	switch {
	case limit == 0:
		limit = defaultPreviewLimit
	case limit < 0 || limit > maxPreviewLimit:
		response.ValidationError(w, "limit", "must be between 1 and 366")
		return
	}

	dates, err := h.scheduler.PreviewOccurrences(r.Context(), pattern, from, limit)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	out := formatDates(dates)
	if out == nil {
		out = []string{}
	}
	response.OK(w, PreviewResponse{Occurrences: out})
}
