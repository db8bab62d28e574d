package document

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/shopfloor/internal/domain"
	"github.com/rezkam/shopfloor/internal/infrastructure/persistence/compliance"
	"github.com/rezkam/shopfloor/internal/ptr"
	"github.com/rezkam/shopfloor/internal/storage"
	"github.com/rezkam/shopfloor/internal/storage/fs"
	"github.com/rezkam/shopfloor/internal/storage/gcs"
)

func TestDocumentStore_FS_Compliance(t *testing.T) {
	compliance.RunStoreComplianceTest(t, func() (compliance.Store, func()) {
		bucket, err := fs.NewStore(t.TempDir())
		require.NoError(t, err)
		return NewStore(bucket), func() {}
	})
}

func TestDocumentStore_GCS_Compliance(t *testing.T) {
	bucketName := os.Getenv("SHOPFLOOR_TEST_GCS_BUCKET")
	if bucketName == "" {
		t.Skip("SHOPFLOOR_TEST_GCS_BUCKET not set, skipping GCS tests")
	}

	compliance.RunStoreComplianceTest(t, func() (compliance.Store, func()) {
		bucket, err := gcs.NewStore(context.Background(), bucketName, "documents-"+uuid.NewString())
		require.NoError(t, err)

		return NewStore(bucket), func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := bucket.Delete(ctx); err != nil {
				t.Logf("Warning: failed to clean up test objects: %v", err)
			}
			bucket.Close()
		}
	})
}

// mockBucket wraps a real bucket, counts Creates and lets a test fail them.
type mockBucket struct {
	storage.Bucket
	mu       sync.Mutex
	creates  int
	createFn func(ctx context.Context, key string, data []byte) error
}

func (m *mockBucket) Create(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	m.creates++
	fn := m.createFn
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, key, data); err != nil {
			return err
		}
	}
	return m.Bucket.Create(ctx, key, data)
}

func generatedRecord(id string, n int) *domain.GeneratedProjectRecord {
	return &domain.GeneratedProjectRecord{
		ID:                   id,
		ProjectID:            ptr.To("project-" + id),
		RecurringProjectID:   "press",
		OccurrenceNumber:     n,
		ScheduledDate:        domain.Date(2025, 1, 13),
		ActualGenerationDate: time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC),
		Status:               domain.RecordStatusGenerated,
	}
}

func TestRecord_GeneratedIsSingleWrite(t *testing.T) {
	ctx := context.Background()
	fsBucket, err := fs.NewStore(t.TempDir())
	require.NoError(t, err)
	bucket := &mockBucket{Bucket: fsBucket}
	store := NewStore(bucket)

	require.NoError(t, store.Record(ctx, generatedRecord("r1", 1)))
	assert.Equal(t, 1, bucket.creates)

	has, err := store.Has(ctx, "press", 1)
	require.NoError(t, err)
	assert.True(t, has)

	records, err := store.ListByDefinition(ctx, "press")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0].ID)
	assert.Equal(t, "project-r1", *records[0].ProjectID)

	err = store.Record(ctx, generatedRecord("r2", 1))
	assert.ErrorIs(t, err, domain.ErrAlreadyGenerated)

	records, err = store.ListByDefinition(ctx, "press")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecord_FailedWriteLeavesNoClaim(t *testing.T) {
	ctx := context.Background()
	fsBucket, err := fs.NewStore(t.TempDir())
	require.NoError(t, err)
	bucket := &mockBucket{
		Bucket: fsBucket,
		createFn: func(context.Context, string, []byte) error {
			return errors.New("bucket unavailable")
		},
	}
	store := NewStore(bucket)

	require.Error(t, store.Record(ctx, generatedRecord("r1", 1)))

	has, err := store.Has(ctx, "press", 1)
	require.NoError(t, err)
	assert.False(t, has)

	records, err := store.ListByDefinition(ctx, "press")
	require.NoError(t, err)
	assert.Empty(t, records)

	bucket.mu.Lock()
	bucket.createFn = nil
	bucket.mu.Unlock()

	require.NoError(t, store.Record(ctx, generatedRecord("r2", 1)))
	records, err = store.ListByDefinition(ctx, "press")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r2", records[0].ID)
}
