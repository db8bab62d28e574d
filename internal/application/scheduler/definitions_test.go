package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/shopfloor/internal/domain"
	"github.com/rezkam/shopfloor/internal/ptr"
)

func TestRegisterDefinition(t *testing.T) {
	f := newFixture(t, day(2025, 1, 2))
	ctx := context.Background()

	def := weeklyDefinition()
	def.Pattern.EndAfterOccurrences = ptr.To(4)
	def.TotalOccurrences = 9
	def.NeedsAttention = true

	require.NoError(t, f.scheduler.RegisterDefinition(ctx, def))
	assert.Equal(t, 1, def.Version)

	stored := f.load(t, def.ID)
	assert.Equal(t, 0, stored.TotalOccurrences)
	assert.False(t, stored.NeedsAttention)
	require.NotNil(t, stored.RemainingOccurrences)
	assert.Equal(t, 4, *stored.RemainingOccurrences)
	assert.Equal(t, day(2025, 1, 2), stored.CreatedAt)
	require.NotNil(t, stored.NextOccurrence)
	assert.Equal(t, day(2025, 1, 13), *stored.NextOccurrence)

	t.Run("duplicate id conflicts", func(t *testing.T) {
		err := f.scheduler.RegisterDefinition(ctx, weeklyDefinition())
		assert.ErrorIs(t, err, domain.ErrVersionConflict)
	})

	t.Run("missing id", func(t *testing.T) {
		def := weeklyDefinition()
		def.ID = ""
		assert.ErrorIs(t, f.scheduler.RegisterDefinition(ctx, def), domain.ErrInvalidID)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		def := weeklyDefinition()
		def.ID = "broken"
		def.Pattern.Interval = 0
		assert.ErrorIs(t, f.scheduler.RegisterDefinition(ctx, def), domain.ErrConfiguration)

		_, err := f.store.FindByID(ctx, "broken")
		assert.ErrorIs(t, err, domain.ErrDefinitionNotFound)
	})

	t.Run("pattern without a first occurrence", func(t *testing.T) {
		def := weeklyDefinition()
		def.ID = "already-over"
		def.Pattern = domain.RecurrencePattern{
			Frequency:   domain.FrequencyCustom,
			Interval:    1,
			StartDate:   day(2025, 1, 6),
			CustomDates: []time.Time{day(2025, 1, 1), day(2025, 1, 6)},
		}
		assert.ErrorIs(t, f.scheduler.RegisterDefinition(ctx, def), domain.ErrConfiguration)

		_, err := f.store.FindByID(ctx, "already-over")
		assert.ErrorIs(t, err, domain.ErrDefinitionNotFound)
	})
}

func TestDeactivateDefinition(t *testing.T) {
	f := newFixture(t, day(2025, 1, 10))
	ctx := context.Background()
	f.seed(t, weeklyDefinition())

	def, err := f.scheduler.DeactivateDefinition(ctx, "weekly-line-check")
	require.NoError(t, err)
	assert.False(t, def.IsActive)

	action, err := f.scheduler.Tick(ctx, "weekly-line-check")
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, action.Kind)
	assert.Equal(t, ReasonInactive, action.Reason)

	again, err := f.scheduler.DeactivateDefinition(ctx, "weekly-line-check")
	require.NoError(t, err)
	assert.Equal(t, def.Version, again.Version)

	_, err = f.scheduler.DeactivateDefinition(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrDefinitionNotFound)
}
