package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.Now = clock.Now
	return store, clock
}

func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	val, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 30*time.Minute))

	clock.now = clock.now.Add(29 * time.Minute)
	_, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok)

	clock.now = clock.now.Add(time.Minute)
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_NoTTL(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	clock.now = clock.now.Add(365 * 24 * time.Hour)

	_, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok)
}

func TestMemoryStore_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	_ = store.Set(ctx, "a", []byte("1"), 0)
	_ = store.Set(ctx, "b", []byte("2"), 0)

	require.NoError(t, store.Delete(ctx, "a"))
	_, ok, _ := store.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()

	in := []byte("abc")
	_ = store.Set(ctx, "k", in, 0)
	in[0] = 'z'

	out, _, _ := store.Get(ctx, "k")
	assert.Equal(t, "abc", string(out))
}

func TestLoad_CachesSuccess(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	calls := 0

	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"Go"}, nil
	}

	v, err := Load(ctx, store, nil, "skills", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, v)

	v, err = Load(ctx, store, nil, "skills", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, v)
	assert.Equal(t, 1, calls)
}

func TestLoad_DoesNotCacheFailure(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	calls := 0

	failing := func(context.Context) (int, error) {
		calls++
		return 0, errors.New("backend down")
	}

	_, err := Load(ctx, store, nil, "k", time.Hour, failing)
	require.Error(t, err)
	_, err = Load(ctx, store, nil, "k", time.Hour, failing)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, store.Len())
}

func TestLoadIf_SkipsIncompleteValues(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	complete := false
	calls := 0

	load := func(context.Context) ([]string, bool, error) {
		calls++
		if !complete {
			return []string{}, false, nil
		}
		return []string{"Go"}, true, nil
	}

	v, err := LoadIf(ctx, store, nil, "skills", time.Hour, load)
	require.NoError(t, err)
	assert.Empty(t, v)
	assert.Equal(t, 0, store.Len())

	complete = true
	v, err = LoadIf(ctx, store, nil, "skills", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, v)

	v, err = LoadIf(ctx, store, nil, "skills", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, v)
	assert.Equal(t, 2, calls)
}

func TestLoad_NilStore(t *testing.T) {
	v, err := Load(context.Background(), nil, nil, "k", time.Hour, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestGetJSON_CorruptValueIsMiss(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	_ = store.Set(ctx, "k", []byte("{not json"), 0)

	var out map[string]int
	ok, err := GetJSON(ctx, store, "k", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestRedisStore_Integration runs only when REDIS_URL points at a disposable instance.
func TestRedisStore_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping redis integration test")
	}

	ctx := context.Background()
	rdb, err := ConnectRedis(ctx, url)
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()

	store := NewRedisStore(rdb, "skillverifier-test:")
	require.NoError(t, store.Clear(ctx))

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	val, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, store.Clear(ctx))
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
