package xcache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xjcache/pkg/cache/xstats"
	"github.com/omeyang/xjcache/pkg/cache/xstore"
)

// EntryProcessor 在 key 锁内对条目执行读-改-写。
type EntryProcessor[K comparable, V any, R any] func(ctx context.Context, entry *MutableEntry[K, V], args ...any) (R, error)

// Result 是 InvokeAll 中单个 key 的结果。
type Result[R any] struct {
	Value R
	Err   error
}

// Invoke 在 key 锁内调用 processor 并提交其对条目的修改。
//
// 条目不存在且开启读穿透时，先调用 Loader 加载。processor 返回错误或 panic 时
// 不提交任何修改，错误包装为 *EntryProcessorError（缓存自身的错误原样返回）。
func Invoke[K comparable, V any, R any](ctx context.Context, c *Cache[K, V], key K, processor EntryProcessor[K, V, R], args ...any) (result R, err error) {
	if err = c.checkKey(key); err != nil {
		return result, err
	}
	if processor == nil {
		return result, fmt.Errorf("%w: nil entry processor", ErrInvalidConfig)
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpInvoke)
	defer func() { span.End(writeOutcome(true, err), err) }()

	err = c.invoke(ctx, key, func(entry *MutableEntry[K, V]) error {
		var perr error
		result, perr = runProcessor(ctx, key, entry, processor, args)
		return perr
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}

// runProcessor 调用 processor，恢复 panic 并包装错误。
func runProcessor[K comparable, V any, R any](ctx context.Context, key K, entry *MutableEntry[K, V], processor EntryProcessor[K, V, R], args []any) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &EntryProcessorError{Key: key, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	result, err = processor(ctx, entry, args...)
	if err != nil && !isCacheError(err) {
		err = &EntryProcessorError{Key: key, Err: err}
	}
	return result, err
}

// invoke 执行加锁、读取或加载、处理与提交。process 返回错误时不提交。
func (c *Cache[K, V]) invoke(ctx context.Context, key K, process func(*MutableEntry[K, V]) error) error {
	return c.mutate(ctx, key, func(cur xstore.Entry[K, V], exists bool, evs *events[K, V]) error {
		entry := &MutableEntry[K, V]{key: key, initial: cur, existed: exists}
		if exists {
			v, err := c.copyOut(cur.Value)
			if err != nil {
				return err
			}
			entry.value, entry.present = v, true
		} else if c.cfg.ReadThrough {
			v, found, err := c.loadValue(ctx, key)
			if err != nil {
				return err
			}
			if found {
				entry.value, entry.present, entry.fromLoader = v, true, true
			}
		}

		if err := process(entry); err != nil {
			return err
		}
		return c.apply(ctx, entry, evs)
	})
}

// apply 按 MutableEntry 的最终状态提交。
func (c *Cache[K, V]) apply(ctx context.Context, e *MutableEntry[K, V], evs *events[K, V]) error {
	start := time.Now()
	switch e.state {
	case stateRemoved:
		if !e.existed {
			return nil
		}
		if err := c.remove(ctx, e.initial, c.cfg.WriteThrough, evs); err != nil {
			return err
		}
		c.recordRemove(true, start)
		return nil

	case stateSet:
		v, err := c.copyIn(e.value)
		if err != nil {
			return err
		}
		stored, err := c.put(ctx, e.key, v, e.initial, e.existed, c.cfg.WriteThrough, evs)
		c.recordPut(stored, start)
		return err

	default:
		if e.fromLoader {
			v, err := c.copyIn(e.value)
			if err != nil {
				return err
			}
			stored, err := c.put(ctx, e.key, v, xstore.Entry[K, V]{}, false, false, evs)
			c.recordPut(stored, start)
			return err
		}
		if e.accessed {
			c.recordGet(e.existed)
			if e.existed {
				return c.access(ctx, e.initial, evs)
			}
		}
		return nil
	}
}

// InvokeAll 对每个 key 并发调用 Invoke，并发度受 Config.InvokeAllParallelism 限制。
// 结果只包含 processor 返回非 nil 结果或出错的 key；单个 key 失败不影响其他 key。
// 任一 key 为 nil 时整体拒绝。
func InvokeAll[K comparable, V any, R any](ctx context.Context, c *Cache[K, V], keys []K, processor EntryProcessor[K, V, R], args ...any) (map[K]Result[R], error) {
	if err := c.checkKeys(keys); err != nil {
		return nil, err
	}
	if processor == nil {
		return nil, fmt.Errorf("%w: nil entry processor", ErrInvalidConfig)
	}

	uniq := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		uniq[k] = struct{}{}
	}
	results := make(map[K]Result[R], len(uniq))
	type item struct {
		key K
		res Result[R]
	}
	out := make(chan item, len(uniq))

	var g errgroup.Group
	g.SetLimit(c.cfg.InvokeAllParallelism)
	for k := range uniq {
		g.Go(func() error {
			r, err := Invoke(ctx, c, k, processor, args...)
			if err != nil || !isNil(r) {
				out <- item{key: k, res: Result[R]{Value: r, Err: err}}
			}
			return nil
		})
	}
	_ = g.Wait()
	close(out)
	for it := range out {
		results[it.key] = it.res
	}
	return results, nil
}
