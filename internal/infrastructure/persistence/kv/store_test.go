package kv_test

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learning-hub/internal/infrastructure/persistence/kv"
	redisstore "github.com/learnhub/learning-hub/internal/infrastructure/persistence/redis"
	"github.com/learnhub/learning-hub/internal/infrastructure/persistence/sqlite"
)

// =============================================================================
// Store factory: every test runs against each backend that needs no external
// server. Redis runs in-process through miniredis.
// =============================================================================

type storeFactory func(t *testing.T) (kv.Store, error)

func newRedisStore(t *testing.T) (kv.Store, error) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		return nil, err
	}
	c, err := redisstore.NewClient(redisstore.Config{
		Host:        mr.Host(),
		Port:        port,
		KeyPrefix:   "test:",
		DialTimeout: time.Second,
	})
	if err != nil {
		return nil, err
	}
	return redisstore.NewKVStore(c), nil
}

func runTestsForAllStores(t *testing.T, testName string, testFn func(t *testing.T, store kv.Store)) {
	factories := map[string]storeFactory{
		"MemoryStore": func(*testing.T) (kv.Store, error) { return kv.NewMemoryStore(), nil },
		"SQLiteStore": func(*testing.T) (kv.Store, error) { return sqlite.NewInMemory() },
		"RedisStore":  newRedisStore,
	}

	for name, factory := range factories {
		t.Run(name+"/"+testName, func(t *testing.T) {
			store, err := factory(t)
			require.NoError(t, err, "Failed to create store")
			defer store.Close()
			testFn(t, store)
		})
	}
}

func strs(vals [][]byte) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		out = append(out, string(v))
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// Contract
// =============================================================================

func TestGetMissing(t *testing.T) {
	runTestsForAllStores(t, "GetMissing", func(t *testing.T, store kv.Store) {
		_, err := store.Get(context.Background(), "user:nobody")
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})
}

func TestSetGetOverwrite(t *testing.T) {
	runTestsForAllStores(t, "SetGetOverwrite", func(t *testing.T, store kv.Store) {
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "course:c1", []byte(`{"v":1}`)))
		got, err := store.Get(ctx, "course:c1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":1}`, string(got))

		require.NoError(t, store.Set(ctx, "course:c1", []byte(`{"v":2}`)))
		got, err = store.Get(ctx, "course:c1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(got))
	})
}

func TestDeleteIsIdempotent(t *testing.T) {
	runTestsForAllStores(t, "Delete", func(t *testing.T, store kv.Store) {
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "path:p1", []byte(`{}`)))
		require.NoError(t, store.Delete(ctx, "path:p1"))
		require.NoError(t, store.Delete(ctx, "path:p1"))

		_, err := store.Get(ctx, "path:p1")
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})
}

func TestGetByPrefix(t *testing.T) {
	runTestsForAllStores(t, "GetByPrefix", func(t *testing.T, store kv.Store) {
		ctx := context.Background()

		for k, v := range map[string]string{
			"enrollment:u1:c1": `1`,
			"enrollment:u1:c2": `2`,
			"enrollment:u10:c1": `3`,
			"enrollment:u2:c1": `4`,
			"user:u1":          `5`,
		} {
			require.NoError(t, store.Set(ctx, k, []byte(v)))
		}

		got, err := store.GetByPrefix(ctx, kv.UserEnrollmentsPrefix("u1"))
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2"}, strs(got))

		got, err = store.GetByPrefix(ctx, kv.PrefixEnrollment)
		require.NoError(t, err)
		assert.Len(t, got, 4)

		got, err = store.GetByPrefix(ctx, "nothing:")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestMultiGetAligned(t *testing.T) {
	runTestsForAllStores(t, "MultiGet", func(t *testing.T, store kv.Store) {
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, "course:a", []byte(`"a"`)))
		require.NoError(t, store.Set(ctx, "course:c", []byte(`"c"`)))

		got, err := store.MultiGet(ctx, []string{"course:c", "course:b", "course:a", "course:c"})
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, `"c"`, string(got[0]))
		assert.Nil(t, got[1])
		assert.Equal(t, `"a"`, string(got[2]))
		assert.Equal(t, `"c"`, string(got[3]))

		empty, err := store.MultiGet(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestPing(t *testing.T) {
	runTestsForAllStores(t, "Ping", func(t *testing.T, store kv.Store) {
		assert.NoError(t, store.Ping(context.Background()))
	})
}

func TestConcurrentWrites(t *testing.T) {
	runTestsForAllStores(t, "ConcurrentWrites", func(t *testing.T, store kv.Store) {
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, store.Set(ctx, fmt.Sprintf("user:%02d", i), []byte(`{}`)))
			}(i)
		}
		wg.Wait()

		got, err := store.GetByPrefix(ctx, kv.PrefixUser)
		require.NoError(t, err)
		assert.Len(t, got, 20)
	})
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemoryStore()

	v := []byte(`"x"`)
	require.NoError(t, s.Set(ctx, "k", v))
	v[1] = 'y'

	got, _ := s.Get(ctx, "k")
	assert.Equal(t, `"x"`, string(got))
	assert.Equal(t, 1, s.Len())
}

func TestPrefixUpperBound(t *testing.T) {
	up, ok := kv.PrefixUpperBound("user:")
	assert.True(t, ok)
	assert.Equal(t, "user;", up)

	_, ok = kv.PrefixUpperBound("\xff\xff")
	assert.False(t, ok)

	up, ok = kv.PrefixUpperBound("a\xff")
	assert.True(t, ok)
	assert.Equal(t, "b", up)
}
