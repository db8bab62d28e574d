package gcs

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	bucket "github.com/rezkam/shopfloor/internal/storage"
	"github.com/rezkam/shopfloor/internal/storage/compliance"
)

func TestGCSStore_Compliance(t *testing.T) {
	bucketName := os.Getenv("SHOPFLOOR_TEST_GCS_BUCKET")
	if bucketName == "" {
		t.Skip("SHOPFLOOR_TEST_GCS_BUCKET not set, skipping GCS tests")
	}

	compliance.RunBucketComplianceTest(t, func() (bucket.Bucket, func()) {
		// Note: This assumes Application Default Credentials are set up
		// and point to a valid project with access to the bucket.
		ctx := context.Background()

		store, err := NewStore(ctx, bucketName, "compliance-"+uuid.NewString())
		require.NoError(t, err)

		cleanup := func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := store.Delete(cleanupCtx); err != nil {
				t.Logf("Warning: failed to clean up test objects: %v", err)
			}
			store.Close()
		}

		return store, cleanup
	})
}
