// Package compliance holds the behaviour every scheduler store adapter must share.
package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/shopfloor/internal/application/scheduler"
	"github.com/rezkam/shopfloor/internal/domain"
	"github.com/rezkam/shopfloor/internal/ptr"
)

// Store is the full set of ports a persistence adapter provides to the scheduler.
type Store interface {
	scheduler.DefinitionRepository
	scheduler.Ledger
	scheduler.ProjectCreator
}

// sampleDefinition exercises every persisted field.
func sampleDefinition(id string) *domain.RecurringProjectDefinition {
	created := time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)
	thursday := time.Thursday
	return &domain.RecurringProjectDefinition{
		ID:          id,
		TemplateID:  "tpl-1",
		Name:        "Compressor service",
		Description: "Monthly compressor service",
		ClientID:    ptr.To("client-42"),
		Duration:    3,
		Components: []domain.Component{{
			ID:        "c1",
			Name:      "Filter",
			Quantity:  2,
			Unit:      "pcs",
			Materials: []domain.MaterialLine{{MaterialID: "m-9", Quantity: 1.5, Unit: "l"}},
			Children:  []domain.Component{{ID: "c1a", Name: "Gasket", Quantity: 4}},
			Metadata:  map[string]any{"supplier": "acme"},
		}},
		Pattern: domain.RecurrencePattern{
			Frequency:            domain.FrequencyMonthly,
			Interval:             1,
			StartDate:            domain.Date(2025, 1, 1),
			EndDate:              ptr.To(domain.Date(2026, 1, 1)),
			EndAfterOccurrences:  ptr.To(10),
			WeekOfMonth:          ptr.To(2),
			DayOfWeekMonthly:     &thursday,
			SkipWeekends:         true,
			SkipHolidays:         true,
			Holidays:             []time.Time{domain.Date(2025, 12, 25)},
			DisabledDateHandling: domain.DisabledDateSkip,
		},
		IsActive:             true,
		AutoGenerate:         true,
		AdvanceNoticeDays:    7,
		ProjectSuffix:        ptr.To("(run {n})"),
		NextOccurrence:       ptr.To(domain.Date(2025, 2, 13)),
		LastOccurrence:       ptr.To(domain.Date(2025, 1, 9)),
		TotalOccurrences:     1,
		RemainingOccurrences: ptr.To(9),
		ConsecutiveFailures:  2,
		NeedsAttention:       true,
		AttentionReason:      ptr.To("supplier outage"),
		CreatedAt:            created,
		UpdatedAt:            created.Add(time.Hour),
	}
}

func record(defID string, n int, status domain.RecordStatus, at time.Time) *domain.GeneratedProjectRecord {
	rec := &domain.GeneratedProjectRecord{
		ID:                   uuid.Must(uuid.NewV7()).String(),
		RecurringProjectID:   defID,
		OccurrenceNumber:     n,
		ScheduledDate:        domain.Date(2025, 1, 1).AddDate(0, n, 0),
		ActualGenerationDate: at,
		Status:               status,
	}
	if status == domain.RecordStatusGenerated {
		rec.ProjectID = ptr.To(uuid.Must(uuid.NewV7()).String())
	} else {
		rec.Notes = "project service unavailable"
	}
	return rec
}

func assertDefinitionEqual(t *testing.T, want, got *domain.RecurringProjectDefinition) {
	t.Helper()

	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created at: want %s got %s", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated at: want %s got %s", want.UpdatedAt, got.UpdatedAt)

	w, g := *want, *got
	w.CreatedAt, g.CreatedAt = time.Time{}, time.Time{}
	w.UpdatedAt, g.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, w, g)
}

// RunStoreComplianceTest runs a standard set of tests against a scheduler store.
// setup is a function that returns a fresh (clean) Store instance for the test.
// cleanup is called after the test to clean up resources (if any).
func RunStoreComplianceTest(t *testing.T, setup func() (Store, func())) {
	t.Run("SaveAndFindDefinition", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		def := sampleDefinition("def-" + uuid.NewString())
		require.NoError(t, store.Save(ctx, def))
		assert.Equal(t, 1, def.Version)

		got, err := store.FindByID(ctx, def.ID)
		require.NoError(t, err)
		assertDefinitionEqual(t, def, got)
	})

	t.Run("SaveUpdatesAndBumpsVersion", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		def := sampleDefinition("def-" + uuid.NewString())
		require.NoError(t, store.Save(ctx, def))

		def.TotalOccurrences = 2
		def.LastOccurrence = ptr.To(domain.Date(2025, 2, 13))
		def.NextOccurrence = nil
		def.AttentionReason = nil
		def.NeedsAttention = false
		require.NoError(t, store.Save(ctx, def))
		assert.Equal(t, 2, def.Version)

		got, err := store.FindByID(ctx, def.ID)
		require.NoError(t, err)
		assertDefinitionEqual(t, def, got)
	})

	t.Run("SaveStaleVersionConflicts", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		def := sampleDefinition("def-" + uuid.NewString())
		require.NoError(t, store.Save(ctx, def))

		stale, err := store.FindByID(ctx, def.ID)
		require.NoError(t, err)

		def.TotalOccurrences = 5
		require.NoError(t, store.Save(ctx, def))

		stale.TotalOccurrences = 3
		assert.ErrorIs(t, store.Save(ctx, stale), domain.ErrVersionConflict)

		duplicate := sampleDefinition(def.ID)
		assert.ErrorIs(t, store.Save(ctx, duplicate), domain.ErrVersionConflict)

		got, err := store.FindByID(ctx, def.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.TotalOccurrences)
	})

	t.Run("SaveUnknownDefinitionWithVersion", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()

		def := sampleDefinition("def-" + uuid.NewString())
		def.Version = 3
		assert.ErrorIs(t, store.Save(context.Background(), def), domain.ErrDefinitionNotFound)
	})

	t.Run("FindMissingDefinition", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()

		_, err := store.FindByID(context.Background(), "def-"+uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrDefinitionNotFound)
	})

	t.Run("ListActive", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		prefix := "def-" + uuid.NewString()
		for _, suffix := range []string{"-c", "-a", "-b"} {
			def := sampleDefinition(prefix + suffix)
			def.IsActive = suffix != "-b"
			require.NoError(t, store.Save(ctx, def))
		}

		active, err := store.ListActive(ctx)
		require.NoError(t, err)

		var ids []string
		for _, def := range active {
			assert.True(t, def.IsActive)
			ids = append(ids, def.ID)
		}
		assert.Equal(t, []string{prefix + "-a", prefix + "-c"}, ids)
	})

	t.Run("RecordAndHas", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		def := sampleDefinition("def-" + uuid.NewString())
		require.NoError(t, store.Save(ctx, def))
		at := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

		require.NoError(t, store.Record(ctx, record(def.ID, 1, domain.RecordStatusFailed, at)))
		has, err := store.Has(ctx, def.ID, 1)
		require.NoError(t, err)
		assert.False(t, has, "failed attempts do not count as generated")

		require.NoError(t, store.Record(ctx, record(def.ID, 1, domain.RecordStatusGenerated, at.Add(time.Minute))))
		has, err = store.Has(ctx, def.ID, 1)
		require.NoError(t, err)
		assert.True(t, has)

		has, err = store.Has(ctx, def.ID, 2)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("DuplicateGeneratedRejected", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		def := sampleDefinition("def-" + uuid.NewString())
		require.NoError(t, store.Save(ctx, def))
		at := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

		require.NoError(t, store.Record(ctx, record(def.ID, 4, domain.RecordStatusGenerated, at)))
		err := store.Record(ctx, record(def.ID, 4, domain.RecordStatusGenerated, at.Add(time.Second)))
		assert.ErrorIs(t, err, domain.ErrAlreadyGenerated)

		// Failed attempts may still be recorded for the same occurrence.
		require.NoError(t, store.Record(ctx, record(def.ID, 4, domain.RecordStatusFailed, at.Add(2*time.Second))))

		records, err := store.ListByDefinition(ctx, def.ID)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("ListByDefinitionOrdering", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		def := sampleDefinition("def-" + uuid.NewString())
		other := sampleDefinition("def-" + uuid.NewString())
		require.NoError(t, store.Save(ctx, def))
		require.NoError(t, store.Save(ctx, other))
		at := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

		second := record(def.ID, 2, domain.RecordStatusGenerated, at.Add(2*time.Hour))
		failed := record(def.ID, 1, domain.RecordStatusFailed, at)
		first := record(def.ID, 1, domain.RecordStatusGenerated, at.Add(time.Hour))
		for _, rec := range []*domain.GeneratedProjectRecord{second, failed, first} {
			require.NoError(t, store.Record(ctx, rec))
		}
		require.NoError(t, store.Record(ctx, record(other.ID, 1, domain.RecordStatusGenerated, at)))

		records, err := store.ListByDefinition(ctx, def.ID)
		require.NoError(t, err)
		require.Len(t, records, 3)

		assert.Equal(t, failed.ID, records[0].ID)
		assert.Equal(t, first.ID, records[1].ID)
		assert.Equal(t, second.ID, records[2].ID)

		assert.Nil(t, records[0].ProjectID)
		assert.Equal(t, "project service unavailable", records[0].Notes)
		assert.Equal(t, *first.ProjectID, *records[1].ProjectID)
		assert.Equal(t, first.ScheduledDate, records[1].ScheduledDate)
		assert.True(t, first.ActualGenerationDate.Equal(records[1].ActualGenerationDate))

		again, err := store.ListByDefinition(ctx, def.ID)
		require.NoError(t, err)
		assert.Equal(t, records, again, "listing is restartable")

		empty, err := store.ListByDefinition(ctx, "def-"+uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("CreateProject", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		def := sampleDefinition("def-" + uuid.NewString())
		require.NoError(t, store.Save(ctx, def))

		payload := domain.ProjectPayload{
			Name:               "Compressor service (run 2)",
			ClientID:           def.ClientID,
			TemplateID:         def.TemplateID,
			StartDate:          domain.Date(2025, 2, 13),
			DueDate:            domain.Date(2025, 2, 16),
			Status:             domain.ProjectStatusPlanning,
			Components:         def.Components,
			RecurringProjectID: def.ID,
			OccurrenceNumber:   2,
			GeneratedAt:        time.Date(2025, 2, 6, 0, 0, 0, 0, time.UTC),
		}

		first, err := store.CreateProject(ctx, payload)
		require.NoError(t, err)
		second, err := store.CreateProject(ctx, payload)
		require.NoError(t, err)

		assert.NotEmpty(t, first.ID)
		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, payload.Name, first.Name)
		assert.False(t, first.CreatedAt.IsZero())
	})
}
