package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/shopfloor/internal/domain"
	"github.com/rezkam/shopfloor/internal/infrastructure/persistence/compliance"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "shopfloor.db"))
	require.NoError(t, err)
	return store
}

func TestSQLiteStore_Compliance(t *testing.T) {
	compliance.RunStoreComplianceTest(t, func() (compliance.Store, func()) {
		store := openTestStore(t)
		return store, func() { store.Close() }
	})
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shopfloor.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	def := &domain.RecurringProjectDefinition{
		ID:   "def-1",
		Name: "Compressor inspection",
		Pattern: domain.RecurrencePattern{
			Frequency: domain.FrequencyDaily,
			Interval:  1,
			StartDate: domain.Date(2025, 1, 1),
		},
		IsActive: true,
	}
	require.NoError(t, store.Save(ctx, def))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.FindByID(ctx, "def-1")
	require.NoError(t, err)
	assert.Equal(t, "Compressor inspection", got.Name)
	assert.Equal(t, 1, got.Version)
}

func TestSQLiteStore_RecordForUnknownDefinition(t *testing.T) {
	store := openTestStore(t)
	defer store.Close()

	err := store.Record(context.Background(), &domain.GeneratedProjectRecord{
		ID:                   uuid.NewString(),
		RecurringProjectID:   "def-missing",
		OccurrenceNumber:     1,
		ScheduledDate:        domain.Date(2025, 1, 6),
		ActualGenerationDate: time.Now().UTC(),
		Status:               domain.RecordStatusFailed,
	})
	assert.ErrorIs(t, err, domain.ErrDefinitionNotFound)
}
