package kvutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	electortest "github.com/arloliu/elector/testing"
)

func TestEnsureKVBucketWithRetry(t *testing.T) {
	_, nc := electortest.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	t.Run("creates missing bucket", func(t *testing.T) {
		kv, err := EnsureKVBucketWithRetry(t.Context(), js, jetstream.KeyValueConfig{
			Bucket:  "create-once",
			History: 1,
		}, 3)
		require.NoError(t, err)
		require.Equal(t, "create-once", kv.Bucket())
	})

	t.Run("opens existing bucket", func(t *testing.T) {
		cfg := jetstream.KeyValueConfig{Bucket: "existing", History: 1}
		_, err := js.CreateKeyValue(t.Context(), cfg)
		require.NoError(t, err)

		// Different config forces ErrBucketExists on create.
		cfg.Description = "changed"
		kv, err := EnsureKVBucketWithRetry(t.Context(), js, cfg, 3)
		require.NoError(t, err)
		require.Equal(t, "existing", kv.Bucket())
	})

	t.Run("concurrent candidates share one bucket", func(t *testing.T) {
		const candidates = 5

		var wg sync.WaitGroup
		errs := make([]error, candidates)
		for i := range candidates {
			wg.Go(func() {
				_, errs[i] = EnsureKVBucketWithRetry(t.Context(), js, jetstream.KeyValueConfig{
					Bucket:  "shared",
					History: 1,
				}, 5)
			})
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{Bucket: "never"}, 3)
		require.Error(t, err)
	})

	t.Run("timeout context", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)

		_, err := EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{Bucket: "never-either"}, 2)
		require.Error(t, err)
	})
}
