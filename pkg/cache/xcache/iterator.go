package xcache

import (
	"context"
	"iter"
	"log/slog"

	"github.com/omeyang/xjcache/pkg/cache/xstore"
)

// Iterator 是对调用时刻 key 快照的单次惰性遍历，不可重启。
//
// Next 逐个重新校验 key：期间被删除或已过期的 key 被跳过（过期会发送 Expired 事件），
// 命中的条目按 Get 的方式应用访问过期。
type Iterator[K comparable, V any] struct {
	c    *Cache[K, V]
	ctx  context.Context
	keys []K
	pos  int

	key     K
	value   V
	hasLast bool
	err     error
}

// Iterator 返回遍历器。
func (c *Cache[K, V]) Iterator(ctx context.Context) (*Iterator[K, V], error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	return &Iterator[K, V]{c: c, ctx: ctx, keys: keys}, nil
}

// Next 前进到下一个有效条目。返回 false 表示结束或出错，出错时 Err 非 nil。
func (it *Iterator[K, V]) Next() bool {
	it.hasLast = false
	for it.err == nil && it.pos < len(it.keys) {
		if it.c.closed.Load() {
			it.err = ErrClosed
			return false
		}
		k := it.keys[it.pos]
		it.pos++

		v, ok, err := it.c.peek(it.ctx, k)
		if err != nil {
			it.err = err
			return false
		}
		if ok {
			it.key, it.value, it.hasLast = k, v, true
			return true
		}
	}
	return false
}

// Key 返回当前条目的 key。
func (it *Iterator[K, V]) Key() K { return it.key }

// Value 返回当前条目的值。
func (it *Iterator[K, V]) Value() V { return it.value }

// Err 返回遍历中遇到的错误。
func (it *Iterator[K, V]) Err() error { return it.err }

// Remove 删除最近一次 Next 返回的条目，仅当其值自返回后未改变时生效。
// Next 之前或重复调用返回 ErrIteratorState。
func (it *Iterator[K, V]) Remove() error {
	if !it.hasLast {
		return ErrIteratorState
	}
	it.hasLast = false
	c, key, want := it.c, it.key, it.value
	if c.closed.Load() {
		return ErrClosed
	}
	return c.mutate(it.ctx, key, func(cur xstore.Entry[K, V], exists bool, evs *events[K, V]) error {
		if !exists || !c.cfg.Equal(cur.Value, want) {
			return nil
		}
		return c.remove(it.ctx, cur, c.cfg.WriteThrough, evs)
	})
}

// All 返回全部有效条目的 iter.Seq2。遍历出错时停止并记录日志。
func (c *Cache[K, V]) All(ctx context.Context) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		it, err := c.Iterator(ctx)
		if err != nil {
			c.logger.Warn("xcache: iteration aborted", slog.Any("error", err))
			return
		}
		for it.Next() {
			if !yield(it.Key(), it.Value()) {
				return
			}
		}
		if err := it.Err(); err != nil {
			c.logger.Warn("xcache: iteration aborted", slog.Any("error", err))
		}
	}
}
