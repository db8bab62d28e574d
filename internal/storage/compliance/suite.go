package compliance

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/shopfloor/internal/storage"
)

// RunBucketComplianceTest runs a standard set of tests against a Bucket implementation.
// setup is a function that returns a fresh (clean) Bucket instance for the test.
// cleanup is called after the test to clean up resources (if any).
func RunBucketComplianceTest(t *testing.T, setup func() (storage.Bucket, func())) {
	t.Run("WriteAndRead", func(t *testing.T) {
		b, teardown := setup()
		defer teardown()
		ctx := context.Background()

		require.NoError(t, b.Write(ctx, "definitions/a.json", []byte(`{"id":"a"}`)))

		data, err := b.Read(ctx, "definitions/a.json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"a"}`, string(data))
	})

	t.Run("WriteReplaces", func(t *testing.T) {
		b, teardown := setup()
		defer teardown()
		ctx := context.Background()

		require.NoError(t, b.Write(ctx, "k.json", []byte(`1`)))
		require.NoError(t, b.Write(ctx, "k.json", []byte(`2`)))

		data, err := b.Read(ctx, "k.json")
		require.NoError(t, err)
		assert.Equal(t, "2", string(data))
	})

	t.Run("ReadMissing", func(t *testing.T) {
		b, teardown := setup()
		defer teardown()

		_, err := b.Read(context.Background(), "missing.json")
		assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	})

	t.Run("CreateIsExclusive", func(t *testing.T) {
		b, teardown := setup()
		defer teardown()
		ctx := context.Background()

		require.NoError(t, b.Create(ctx, "ledger/x/1", []byte(`first`)))
		err := b.Create(ctx, "ledger/x/1", []byte(`second`))
		assert.ErrorIs(t, err, storage.ErrObjectExists)

		data, err := b.Read(ctx, "ledger/x/1")
		require.NoError(t, err)
		assert.Equal(t, "first", string(data))
	})

	t.Run("ConcurrentCreateHasOneWinner", func(t *testing.T) {
		b, teardown := setup()
		defer teardown()
		ctx := context.Background()

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := range 8 {
			wg.Go(func() {
				if err := b.Create(ctx, "race/marker", fmt.Appendf(nil, "%d", i)); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			})
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
	})

	t.Run("ListByPrefix", func(t *testing.T) {
		b, teardown := setup()
		defer teardown()
		ctx := context.Background()

		for _, key := range []string{"ledger/b/2.json", "ledger/a/1.json", "ledger/b/1.json", "projects/p.json"} {
			require.NoError(t, b.Write(ctx, key, []byte(`{}`)))
		}

		keys, err := b.List(ctx, "ledger/b/")
		require.NoError(t, err)
		assert.Equal(t, []string{"ledger/b/1.json", "ledger/b/2.json"}, keys)

		none, err := b.List(ctx, "nothing/")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
