package xcache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/omeyang/xjcache/pkg/cache/xevent"
	"github.com/omeyang/xjcache/pkg/cache/xexpiry"
)

func TestWriteThrough_FailedPutRollsBack(t *testing.T) {
	writer := newMapWriter("bad")
	c, _ := newTestCache(t, Config[string, int]{WriteThrough: true, Writer: writer})
	events := listen(t, c, false)
	ctx := context.Background()

	err := c.Put(ctx, "bad", 1)
	var we *WriterError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, []any{"bad"}, we.Keys)
	assert.ErrorIs(t, err, errBoom)

	present, err := c.ContainsKey(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, present)
	assert.Empty(t, events.all())
}

func TestWriteThrough_FailedUpdateRestoresOldValue(t *testing.T) {
	writer := newMapWriter()
	c, _ := newTestCache(t, Config[string, int]{WriteThrough: true, Writer: writer})
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "k", 1))

	writer.fail["k"] = true
	err := c.Put(ctx, "k", 2)
	require.Error(t, err)

	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// 删除失败同样回滚
	_, err = c.Remove(ctx, "k")
	require.Error(t, err)
	v, ok, _ = c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestWriteThrough_RemoveAbsentStillDeletes(t *testing.T) {
	writer := newMapWriter()
	c, _ := newTestCache(t, Config[string, int]{WriteThrough: true, Writer: writer})

	removed, err := c.Remove(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, []string{"absent"}, writer.deleted())
}

func TestWriteThrough_PutAllPartialFailure(t *testing.T) {
	writer := newMapWriter("bad")
	c, _ := newTestCache(t, Config[string, int]{WriteThrough: true, Writer: writer})
	ctx := context.Background()

	err := c.PutAll(ctx, map[string]int{"good": 1, "bad": 2, "fine": 3})
	var we *WriterError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, []any{"bad"}, we.Keys)

	got, err := c.GetAll(ctx, []string{"good", "bad", "fine"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"good": 1, "fine": 3}, got)
}

func TestWriteThrough_RemoveKeysKeepsFailed(t *testing.T) {
	writer := newMapWriter()
	c, _ := newTestCache(t, Config[string, int]{WriteThrough: true, Writer: writer})
	ctx := context.Background()
	require.NoError(t, c.PutAll(ctx, map[string]int{"a": 1, "b": 2}))

	writer.fail["b"] = true
	err := c.RemoveKeys(ctx, []string{"a", "b"})
	var we *WriterError
	require.ErrorAs(t, err, &we)

	got, err := c.GetAll(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"b": 2}, got)
}

func TestWriteThrough_MockWriter(t *testing.T) {
	ctrl := gomock.NewController(t)
	writer := NewMockWriter[string, int](ctrl)
	c, _ := newTestCache(t, Config[string, int]{WriteThrough: true, Writer: writer})
	ctx := context.Background()

	gomock.InOrder(
		writer.EXPECT().Write(gomock.Any(), "k", 1).Return(nil),
		writer.EXPECT().Write(gomock.Any(), "k", 2).Return(errors.New("disk full")),
		writer.EXPECT().Delete(gomock.Any(), "k").Return(nil),
	)

	require.NoError(t, c.Put(ctx, "k", 1))
	require.Error(t, c.Put(ctx, "k", 2))
	removed, err := c.Remove(ctx, "k")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestWriteThrough_WriteAllErrorWithoutKeysFailsAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	writer := NewMockWriter[string, int](ctrl)
	c, _ := newTestCache(t, Config[string, int]{WriteThrough: true, Writer: writer})
	events := listen(t, c, false)
	ctx := context.Background()

	writer.EXPECT().WriteAll(gomock.Any(), gomock.Len(2)).Return(nil, errors.New("unavailable"))

	err := c.PutAll(ctx, map[string]int{"a": 1, "b": 2})
	var we *WriterError
	require.ErrorAs(t, err, &we)
	assert.ElementsMatch(t, []any{"a", "b"}, we.Keys)
	assert.Empty(t, events.all())
}

func TestWriteThrough_LoadDoesNotWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	writer := NewMockWriter[string, int](ctrl) // 未设置期望，任何调用都会失败
	loader := newMapLoader(map[string]int{"k": 1})
	c, _ := newTestCache(t, Config[string, int]{
		ReadThrough: true, Loader: loader,
		WriteThrough: true, Writer: writer,
	})
	events := listen(t, c, false)

	v, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, []xevent.Type{xevent.Created}, events.types())
}

func TestWriteThrough_FailedRemoveRestoresValue(t *testing.T) {
	tests := []struct {
		name   string
		remove func(ctx context.Context, c *Cache[string, int]) error
	}{
		{"Remove", func(ctx context.Context, c *Cache[string, int]) error {
			_, err := c.Remove(ctx, "k")
			return err
		}},
		{"GetAndRemove", func(ctx context.Context, c *Cache[string, int]) error {
			_, _, err := c.GetAndRemove(ctx, "k")
			return err
		}},
		{"InvokeRemove", func(ctx context.Context, c *Cache[string, int]) error {
			_, err := Invoke(ctx, c, "k", func(_ context.Context, e *MutableEntry[string, int], _ ...any) (struct{}, error) {
				e.Remove()
				return struct{}{}, nil
			})
			return err
		}},
		{"RemoveKeys", func(ctx context.Context, c *Cache[string, int]) error {
			return c.RemoveKeys(ctx, []string{"k"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := newMapWriter()
			c, _ := newTestCache(t, Config[string, int]{WriteThrough: true, Writer: writer})
			ctx := context.Background()
			require.NoError(t, c.Put(ctx, "k", 1))
			events := listen(t, c, true)

			writer.fail["k"] = true
			err := tt.remove(ctx, c)
			var we *WriterError
			require.ErrorAs(t, err, &we)
			assert.Equal(t, []any{"k"}, we.Keys)
			assert.ErrorIs(t, err, errBoom)

			v, ok, err := c.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 1, v)
			got, _ := writer.get("k")
			assert.Equal(t, 1, got)
			assert.Empty(t, events.all())
		})
	}
}

func TestWriteThrough_ImmediateUpdateExpiresWithoutDelete(t *testing.T) {
	writer := newMapWriter()
	policy := xexpiry.Funcs{Creation: xexpiry.Eternal, Update: xexpiry.Immediate}
	c, _ := newTestCache(t, Config[string, int]{ExpiryPolicy: policy, WriteThrough: true, Writer: writer})
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "k", 1))
	events := listen(t, c, false)

	require.NoError(t, c.Put(ctx, "k", 2))

	got, ok := writer.get("k")
	require.True(t, ok)
	assert.Equal(t, 2, got)
	assert.Empty(t, writer.deleted())
	present, err := c.ContainsKey(ctx, "k")
	require.NoError(t, err)
	assert.False(t, present)
	assert.Equal(t, []xevent.Type{xevent.Expired}, events.types())
}
