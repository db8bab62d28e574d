package fs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/shopfloor/internal/storage"
	"github.com/rezkam/shopfloor/internal/storage/compliance"
)

func TestFSStore_Compliance(t *testing.T) {
	compliance.RunBucketComplianceTest(t, func() (storage.Bucket, func()) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)
		return store, func() {}
	})
}

func TestFSStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "../outside.json", "a/../../outside.json"} {
		assert.Error(t, store.Write(context.Background(), key, []byte(`{}`)), "key %q", key)
	}
}
