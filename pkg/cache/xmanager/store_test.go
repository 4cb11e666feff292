package xmanager

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xjcache/pkg/cache/xstore"
)

func TestBuildStore(t *testing.T) {
	mr := miniredis.RunT(t)
	tests := []struct {
		name string
		sc   StoreConfig
		want any
	}{
		{"default", StoreConfig{}, &xstore.Memory[string, int]{}},
		{"memory", StoreConfig{Type: "Memory", LockShards: 8}, &xstore.Memory[string, int]{}},
		{"lru", StoreConfig{Type: "lru", Size: 10}, &xstore.LRU[string, int]{}},
		{"ristretto", StoreConfig{Type: "ristretto", Size: 1000}, &xstore.Ristretto[string, int]{}},
		{"redis", StoreConfig{Type: "redis", Addr: mr.Addr(), KeyPrefix: "cfg:"}, &xstore.Redis[int]{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := BuildStore[int](tt.sc)
			require.NoError(t, err)
			defer s.Close()
			assert.IsType(t, tt.want, s)

			ctx := context.Background()
			require.NoError(t, s.Put(ctx, "k", 1, time.Time{}))
			if tt.name == "ristretto" {
				// ristretto 异步写入
				assert.Eventually(t, func() bool {
					ok, _ := s.Contains(ctx, "k")
					return ok
				}, time.Second, 5*time.Millisecond)
				return
			}
			e, ok, err := s.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 1, e.Value)
		})
	}
	assert.True(t, mr.Exists("cfg:k"))
}

func TestBuildStore_Errors(t *testing.T) {
	_, err := BuildStore[int](StoreConfig{Type: "lru"})
	assert.ErrorIs(t, err, ErrInvalidStore)

	_, err = BuildStore[int](StoreConfig{Type: "redis"})
	assert.ErrorIs(t, err, ErrInvalidStore)

	_, err = BuildStore[int](StoreConfig{Type: "etcd"})
	assert.ErrorIs(t, err, ErrInvalidStore)
}

func TestBuildStore_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := BuildStore[int](StoreConfig{Type: "redis", Addr: mr.Addr(), DistributedLockTTL: time.Second})
	require.NoError(t, err)
	defer s.Close()

	rs, ok := s.(*xstore.Redis[int])
	require.True(t, ok)
	assert.True(t, rs.Distributed())

	unlock, err := s.Lock(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, mr.Exists("xjcache-lock:xjcache:k"))
	unlock()
}
