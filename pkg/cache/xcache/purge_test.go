package xcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xjcache/pkg/cache/xevent"
	"github.com/omeyang/xjcache/pkg/cache/xexpiry"
)

func TestPurgeExpired(t *testing.T) {
	c, clock := newTestCache(t, Config[string, int]{
		ExpiryPolicy:      xexpiry.Created(time.Minute),
		StatisticsEnabled: true,
	})
	events := listen(t, c, true)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "a", 1))
	require.NoError(t, c.Put(ctx, "b", 2))
	clock.Advance(30 * time.Second)
	require.NoError(t, c.Put(ctx, "c", 3))
	clock.Advance(40 * time.Second)

	n, err := c.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	size, err := c.Store().Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	var expired []string
	for _, ev := range events.all() {
		if ev.Type == xevent.Expired {
			expired = append(expired, ev.Key)
		}
	}
	assert.ElementsMatch(t, []string{"a", "b"}, expired)

	snap, ok := c.Stats()
	require.True(t, ok)
	assert.Equal(t, uint64(2), snap.Evictions)

	// 再次清理无事可做
	n, err = c.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPurgeExpired_CanceledContext(t *testing.T) {
	c, _ := newTestCache(t, Config[string, int]{})
	require.NoError(t, c.Put(context.Background(), "a", 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.PurgeExpired(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPurgeExpired_Closed(t *testing.T) {
	c, _ := newTestCache(t, Config[string, int]{})
	require.NoError(t, c.Close())
	_, err := c.PurgeExpired(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPurgeExpired_SkipsBusyKeys(t *testing.T) {
	c, clock := newTestCache(t, Config[string, int]{
		ExpiryPolicy:      xexpiry.Created(time.Minute),
		ManagementEnabled: true,
	})
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "a", 1))
	require.NoError(t, c.Put(ctx, "b", 2))
	clock.Advance(2 * time.Minute)

	unlock, err := c.Store().Lock(ctx, "a")
	require.NoError(t, err)
	m, ok := c.Management()
	require.True(t, ok)
	assert.Equal(t, 1, m.LockedKeys)

	// 不等待被占用的 key
	n, err := c.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unlock()
	n, err = c.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m, _ = c.Management()
	assert.Zero(t, m.LockedKeys)
}
