// Package handler exposes the recurring project scheduler over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/shopfloor/internal/application/scheduler"
	"github.com/rezkam/shopfloor/internal/infrastructure/http/response"
)

// maxPreviewLimit caps how many occurrences one preview request may list.
const maxPreviewLimit = 366

// SchedulerHandler adapts HTTP requests to scheduler calls.
type SchedulerHandler struct {
	scheduler *scheduler.Scheduler
}

// NewSchedulerHandler creates a new HTTP API handler.
func NewSchedulerHandler(s *scheduler.Scheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: s}
}

// Routes returns the API router. It is mounted under /api by the server;
// tests serve it directly.
func (h *SchedulerHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/v1/recurring-projects", func(r chi.Router) {
		r.Post("/", h.RegisterDefinition)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetDefinition)
			r.Delete("/", h.DeactivateDefinition)
			r.Get("/generated-projects", h.ListGeneratedProjects)
			r.Post("/tick", h.Tick)
			r.Post("/occurrences", h.GenerateManualOccurrence)
		})
	})
	r.Post("/v1/recurrence-patterns/preview", h.PreviewOccurrences)

	return r
}

// decodeJSON reads the request body into dst, writing the error response
// itself when decoding fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(w)
			return false
		}
		response.BadRequest(w, "invalid JSON")
		return false
	}
	return true
}
