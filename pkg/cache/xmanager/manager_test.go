package xmanager

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xjcache/pkg/cache/xcache"
	"github.com/omeyang/xjcache/pkg/cache/xstats"
	"github.com/omeyang/xjcache/pkg/cache/xstore"
)

func newMemory[V any](t *testing.T) *xstore.Memory[string, V] {
	t.Helper()
	s, err := xstore.NewMemory[string, V]()
	require.NoError(t, err)
	return s
}

func TestManager_CreateGetNames(t *testing.T) {
	m := New()
	defer m.Close()

	users, err := Create(m, "users", newMemory[int](t), xcache.Config[string, int]{}, xcache.WithOwnedStore())
	require.NoError(t, err)
	assert.Equal(t, "users", users.Name())

	_, err = Create(m, "names", newMemory[string](t), xcache.Config[string, string]{}, xcache.WithOwnedStore())
	require.NoError(t, err)

	got, err := Get[string, int](m, "users")
	require.NoError(t, err)
	assert.Same(t, users, got)

	_, err = Get[string, string](m, "users")
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = Get[string, int](m, "absent")
	assert.ErrorIs(t, err, ErrCacheNotFound)

	assert.Equal(t, []string{"names", "users"}, m.Names())

	_, err = Create(m, "users", newMemory[int](t), xcache.Config[string, int]{})
	assert.ErrorIs(t, err, ErrCacheExists)
	_, err = Create(m, "", newMemory[int](t), xcache.Config[string, int]{})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestManager_CreateInvalidConfig(t *testing.T) {
	m := New()
	defer m.Close()

	_, err := Create(m, "bad", newMemory[int](t), xcache.Config[string, int]{ReadThrough: true})
	assert.ErrorIs(t, err, xcache.ErrInvalidConfig)
	assert.Empty(t, m.Names())
}

func TestManager_FileConfigOverrides(t *testing.T) {
	fc, err := ParseConfig([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)
	m := New(WithConfig(fc))
	defer m.Close()

	c, err := Create(m, "users", newMemory[int](t), xcache.Config[string, int]{}, xcache.WithOwnedStore())
	require.NoError(t, err)

	cfg := c.Config()
	assert.True(t, cfg.StatisticsEnabled)
	assert.True(t, cfg.ManagementEnabled)
	mg, ok := c.Management()
	require.True(t, ok)
	assert.Equal(t, "users", mg.Name)
}

func TestManager_Toggles(t *testing.T) {
	m := New()
	defer m.Close()
	c, err := Create(m, "users", newMemory[int](t), xcache.Config[string, int]{}, xcache.WithOwnedStore())
	require.NoError(t, err)

	require.NoError(t, m.EnableStatistics("users", true))
	require.NoError(t, m.EnableManagement("users", true))
	assert.ErrorIs(t, m.EnableStatistics("absent", true), ErrCacheNotFound)
	assert.ErrorIs(t, m.EnableManagement("absent", true), ErrCacheNotFound)

	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "a", 1))
	_, _, _ = c.Get(ctx, "a")

	stats := m.Stats()
	require.Contains(t, stats, "users")
	assert.Equal(t, uint64(1), stats["users"].Hits)

	mc, err := m.Lookup("users")
	require.NoError(t, err)
	_, ok := mc.Management()
	assert.True(t, ok)
}

func TestManager_Destroy(t *testing.T) {
	m := New()
	defer m.Close()
	store := newMemory[int](t)
	c, err := Create(m, "users", store, xcache.Config[string, int]{}, xcache.WithOwnedStore())
	require.NoError(t, err)
	require.NoError(t, c.Put(context.Background(), "a", 1))

	require.NoError(t, m.Destroy(context.Background(), "users"))
	assert.True(t, c.IsClosed())
	assert.Empty(t, m.Names())
	assert.ErrorIs(t, m.Destroy(context.Background(), "users"), ErrCacheNotFound)

	_, err = Create(m, "users", newMemory[int](t), xcache.Config[string, int]{}, xcache.WithOwnedStore())
	assert.NoError(t, err)
}

func TestManager_Close(t *testing.T) {
	m := New()
	c, err := Create(m, "users", newMemory[int](t), xcache.Config[string, int]{}, xcache.WithOwnedStore())
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())
	assert.True(t, c.IsClosed())

	_, err = Create(m, "x", newMemory[int](t), xcache.Config[string, int]{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.Lookup("users")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Destroy(context.Background(), "users"), ErrClosed)
}

func TestManager_RecorderFactory(t *testing.T) {
	var mu sync.Mutex
	var names []string
	m := New(WithRecorderFactory(func(name string) xstats.Recorder {
		mu.Lock()
		names = append(names, name)
		mu.Unlock()
		return xstats.NoopRecorder{}
	}))
	defer m.Close()

	_, err := Create(m, "a", newMemory[int](t), xcache.Config[string, int]{}, xcache.WithOwnedStore())
	require.NoError(t, err)
	_, err = Create(m, "b", newMemory[int](t), xcache.Config[string, int]{}, xcache.WithOwnedStore())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}
