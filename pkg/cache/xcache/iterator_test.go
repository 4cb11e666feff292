package xcache

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xjcache/pkg/cache/xevent"
	"github.com/omeyang/xjcache/pkg/cache/xexpiry"
)

func TestIterator_VisitsLiveEntries(t *testing.T) {
	c, _ := newTestCache(t, Config[string, int]{})
	ctx := context.Background()
	require.NoError(t, c.PutAll(ctx, map[string]int{"a": 1, "b": 2, "c": 3}))

	it, err := c.Iterator(ctx)
	require.NoError(t, err)

	// 迭代开始后删除的 key 被跳过
	_, err = c.Remove(ctx, "b")
	require.NoError(t, err)

	got := map[string]int{}
	for it.Next() {
		got[it.Key()] = it.Value()
	}
	require.NoError(t, it.Err())
	assert.Equal(t, map[string]int{"a": 1, "c": 3}, got)
	assert.False(t, it.Next())
}

func TestIterator_Remove(t *testing.T) {
	writer := newMapWriter()
	c, _ := newTestCache(t, Config[string, int]{WriteThrough: true, Writer: writer})
	ctx := context.Background()
	require.NoError(t, c.PutAll(ctx, map[string]int{"a": 1, "b": 2}))

	it, err := c.Iterator(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, it.Remove(), ErrIteratorState)

	require.True(t, it.Next())
	first := it.Key()
	require.NoError(t, it.Remove())
	assert.ErrorIs(t, it.Remove(), ErrIteratorState)

	present, _ := c.ContainsKey(ctx, first)
	assert.False(t, present)
	assert.Equal(t, []string{first}, writer.deleted())

	// 值在返回后被修改时 Remove 为空操作
	require.True(t, it.Next())
	second := it.Key()
	require.NoError(t, c.Put(ctx, second, 42))
	require.NoError(t, it.Remove())
	present, _ = c.ContainsKey(ctx, second)
	assert.True(t, present)
}

func TestIterator_ReportsExpired(t *testing.T) {
	c, clock := newTestCache(t, Config[string, int]{ExpiryPolicy: xexpiry.Created(time.Second)})
	events := listen(t, c, false)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "a", 1))
	clock.Advance(time.Second)

	it, err := c.Iterator(ctx)
	require.NoError(t, err)
	assert.False(t, it.Next())
	assert.Equal(t, []xevent.Type{xevent.Created, xevent.Expired}, events.types())
}

func TestCache_All(t *testing.T) {
	c, _ := newTestCache(t, Config[string, int]{})
	ctx := context.Background()
	require.NoError(t, c.PutAll(ctx, map[string]int{"a": 1, "b": 2, "c": 3}))

	var keys []string
	for k, v := range c.All(ctx) {
		keys = append(keys, k)
		assert.NotZero(t, v)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	var n int
	for range c.All(ctx) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}
