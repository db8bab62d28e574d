package response_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/shopfloor/internal/application/scheduler"
	"github.com/rezkam/shopfloor/internal/domain"
	"github.com/rezkam/shopfloor/internal/infrastructure/http/response"
)

// unencodableType simulates a type that fails during JSON encoding.
type unencodableType struct {
	BadField chan int `json:"bad_field"`
}

func (u unencodableType) MarshalJSON() ([]byte, error) {
	_, err := json.Marshal(u.BadField)
	return nil, err
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var body response.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestOK_EncodingFailure_Returns500WithErrorJSON(t *testing.T) {
	w := httptest.NewRecorder()

	response.OK(w, unencodableType{})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	body := decodeError(t, w)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "failed to encode response", body.Error.Message)
}

func TestCreated_Success_ReturnsValidJSON(t *testing.T) {
	w := httptest.NewRecorder()

	response.Created(w, map[string]string{"id": "rec-123"})

	assert.Equal(t, http.StatusCreated, w.Code)
	var decoded map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&decoded))
	assert.Equal(t, "rec-123", decoded["id"])
}

func TestValidationError_ReturnsFieldDetails(t *testing.T) {
	w := httptest.NewRecorder()

	response.ValidationError(w, "scheduled_date", "must be YYYY-MM-DD")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	require.Len(t, body.Error.Details, 1)
	assert.Equal(t, response.ErrorField{Field: "scheduled_date", Issue: "must be YYYY-MM-DD"}, body.Error.Details[0])
}

func TestFromDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"configuration", fmt.Errorf("%w: interval must be at least 1", domain.ErrConfiguration), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"invalid id", domain.ErrInvalidID, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"definition not found", fmt.Errorf("%w: def-9", domain.ErrDefinitionNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"inactive", domain.ErrDefinitionInactive, http.StatusConflict, "CONFLICT"},
		{"already generated", domain.ErrAlreadyGenerated, http.StatusConflict, "CONFLICT"},
		{"version conflict", domain.ErrVersionConflict, http.StatusConflict, "CONFLICT"},
		{"generation failure", &scheduler.GenerationFailure{DefinitionID: "def-1", OccurrenceNumber: 3, Err: domain.ErrProjectCreation}, http.StatusBadGateway, "GENERATION_FAILED"},
		{"timeout", fmt.Errorf("create project: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "TIMEOUT"},
		{"unknown", fmt.Errorf("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/v1/recurring-projects/def-1/tick", nil)

			response.FromDomainError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Error.Code)
		})
	}
}

func TestFromDomainError_InternalErrorHidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/recurring-projects/def-1", nil)

	response.FromDomainError(w, r, fmt.Errorf("pq: password authentication failed for user shopfloor"))

	body := decodeError(t, w)
	assert.Equal(t, "an internal error occurred", body.Error.Message)
}
