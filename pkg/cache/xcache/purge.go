package xcache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/omeyang/xjcache/pkg/cache/xstats"
	"github.com/omeyang/xjcache/pkg/cache/xstore"
)

// PurgeExpired 扫描全部 key，删除已过期条目并发送 Expired 事件，返回删除数。
//
// 过期条目平时在访问时惰性删除，没有访问的条目会一直占用存储；
// 定期调用 PurgeExpired 可回收这部分空间。每个 key 在持锁期间判断；
// 锁正被占用的 key 直接跳过，留给持锁方或下一轮处理。
// ctx 结束时返回已删除数与 ctx 错误。
func (c *Cache[K, V]) PurgeExpired(ctx context.Context) (purged int, err error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpPurge)
	defer func() { span.End(xstats.OutcomeOK, err) }()

	keys, err := c.store.Keys(ctx)
	if err != nil {
		return 0, err
	}
	var busy int
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		expired, locked, err := c.purgeOne(ctx, key)
		if err != nil {
			return purged, err
		}
		if !locked {
			busy++
		}
		if expired {
			purged++
		}
	}
	if purged > 0 || busy > 0 {
		c.logger.Debug("xcache: expired entries purged",
			slog.Int("purged", purged), slog.Int("busy", busy))
	}
	return purged, nil
}

// purgeOne 在不等待的前提下锁住 key 并删除过期条目。
func (c *Cache[K, V]) purgeOne(ctx context.Context, key K) (expired, locked bool, err error) {
	unlock, ok, err := c.store.TryLock(ctx, key)
	if errors.Is(err, xstore.ErrClosed) {
		return false, false, ErrClosed
	}
	if err != nil || !ok {
		return false, ok, err
	}
	var evs events[K, V]
	_, _, err = c.live(ctx, key, &evs)
	unlock()
	c.dispatch(ctx, evs)
	return len(evs) > 0, true, err
}
