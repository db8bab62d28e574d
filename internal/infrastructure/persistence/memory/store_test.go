package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/shopfloor/internal/domain"
	"github.com/rezkam/shopfloor/internal/infrastructure/persistence/compliance"
)

func TestMemoryStore_Compliance(t *testing.T) {
	compliance.RunStoreComplianceTest(t, func() (compliance.Store, func()) {
		return New(), func() {}
	})
}

func TestMemoryStore_CopiesOnReadAndWrite(t *testing.T) {
	store := New()
	ctx := context.Background()

	def := &domain.RecurringProjectDefinition{
		ID:         "def-1",
		Name:       "Press maintenance",
		Components: []domain.Component{{ID: "c1", Name: "Hydraulic oil"}},
		Pattern: domain.RecurrencePattern{
			Frequency:  domain.FrequencyWeekly,
			Interval:   1,
			StartDate:  domain.Date(2025, 1, 6),
			DaysOfWeek: []time.Weekday{time.Monday},
		},
	}
	require.NoError(t, store.Save(ctx, def))

	def.Components[0].Name = "changed"
	def.Pattern.DaysOfWeek[0] = time.Friday

	got, err := store.FindByID(ctx, "def-1")
	require.NoError(t, err)
	assert.Equal(t, "Hydraulic oil", got.Components[0].Name)
	assert.Equal(t, time.Monday, got.Pattern.DaysOfWeek[0])

	got.Components[0].Name = "mutated"
	again, err := store.FindByID(ctx, "def-1")
	require.NoError(t, err)
	assert.Equal(t, "Hydraulic oil", again.Components[0].Name)
}
