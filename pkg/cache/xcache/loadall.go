package xcache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/omeyang/xjcache/internal/xpool"
	"github.com/omeyang/xjcache/pkg/cache/xstats"
)

// CompletionFunc 在 LoadAll 完成时被调用一次，err 为 nil 表示全部成功。
type CompletionFunc func(err error)

// LoadAll 在后台加载 keys，不阻塞调用方。
//
// replaceExisting 为 false 时跳过已存在的 key。任一 key 加载失败即中止剩余部分，
// 以 *LoaderError 调用 onDone；全部成功以 nil 调用 onDone。未配置 Loader 时立即以 nil 调用。
// 后台队列已满时以 ErrLoadAllRejected 调用 onDone。onDone 总在其他 goroutine 中执行。
// 返回的错误只表示参数非法或缓存已关闭，此时不会调用 onDone。
// 后台加载不随 ctx 取消，但保留其中的值。
func (c *Cache[K, V]) LoadAll(ctx context.Context, keys []K, replaceExisting bool, onDone CompletionFunc) error {
	if err := c.checkKeys(keys); err != nil {
		return err
	}
	if onDone == nil {
		onDone = func(error) {}
	}
	if c.cfg.Loader == nil {
		go onDone(nil)
		return nil
	}

	keys = append([]K(nil), keys...)
	bg := context.WithoutCancel(ctx)
	err := c.loadPool.Submit(func() {
		onDone(c.loadAll(bg, keys, replaceExisting))
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, xpool.ErrQueueFull):
		c.logger.Warn("xcache: loadAll rejected", slog.Int("keys", len(keys)))
		go onDone(ErrLoadAllRejected)
		return nil
	default:
		return ErrClosed
	}
}

func (c *Cache[K, V]) loadAll(ctx context.Context, keys []K, replace bool) (err error) {
	ctx, span := c.recorder.Start(ctx, xstats.OpLoadAll)
	defer func() { span.End(writeOutcome(true, err), err) }()

	// 是否已有值在各 key 的锁内判断
	pending := orderKeys(keys)
	if batch, ok := c.cfg.Loader.(BatchLoader[K, V]); ok && len(pending) > 0 {
		if _, err := c.loadBatch(ctx, batch, pending, replace); err != nil {
			c.logger.Warn("xcache: loadAll aborted", slog.Any("error", err))
			return asLoaderError(any(pending), err)
		}
		return nil
	}

	for _, k := range pending {
		if err := c.loadOne(ctx, k, replace); err != nil {
			c.logger.Warn("xcache: loadAll aborted", slog.Any("key", k), slog.Any("error", err))
			return asLoaderError(k, err)
		}
	}
	return nil
}

// loadOne 锁住 key 后重新读取，仍需加载时调用 Loader 并写入，全程持锁。
func (c *Cache[K, V]) loadOne(ctx context.Context, key K, replace bool) error {
	unlock, err := c.lock(ctx, key)
	if err != nil {
		return err
	}
	var evs events[K, V]
	defer func() {
		unlock()
		c.dispatch(ctx, evs)
	}()

	old, existed, err := c.live(ctx, key, &evs)
	if err != nil {
		return err
	}
	if existed && !replace {
		return nil
	}
	v, found, err := c.loadValue(ctx, key)
	if err != nil || !found {
		return err
	}
	if v, err = c.copyIn(v); err != nil {
		return err
	}
	_, err = c.put(ctx, key, v, old, existed, false, &evs)
	return err
}
