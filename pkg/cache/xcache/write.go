package xcache

import (
	"context"
	"errors"
	"time"

	"github.com/omeyang/xjcache/pkg/cache/xevent"
	"github.com/omeyang/xjcache/pkg/cache/xstats"
	"github.com/omeyang/xjcache/pkg/cache/xstore"
)

// mutation 在 key 锁内基于当前有效条目执行变更。
type mutation[K comparable, V any] func(cur xstore.Entry[K, V], exists bool, evs *events[K, V]) error

// mutate 获取 key 锁、读取当前条目并执行 fn，解锁后分发事件。
func (c *Cache[K, V]) mutate(ctx context.Context, key K, fn mutation[K, V]) error {
	unlock, err := c.lock(ctx, key)
	if err != nil {
		return err
	}
	var evs events[K, V]
	defer func() {
		unlock()
		c.dispatch(ctx, evs)
	}()

	cur, exists, err := c.live(ctx, key, &evs)
	if err != nil {
		return err
	}
	return fn(cur, exists, &evs)
}

// checkValue 校验 key 与 value，并按值存储时复制 value。
func (c *Cache[K, V]) checkValue(key K, value V) (V, error) {
	if err := c.checkKey(key); err != nil {
		return value, err
	}
	if isNil(value) {
		return value, ErrNullValue
	}
	return c.copyIn(value)
}

func (c *Cache[K, V]) recordPut(stored bool, start time.Time) {
	if stored && c.statsOn() {
		c.stats.RecordPuts(1)
		c.stats.AddPutTime(time.Since(start))
	}
}

func (c *Cache[K, V]) recordRemove(removed bool, start time.Time) {
	if removed && c.statsOn() {
		c.stats.RecordRemovals(1)
		c.stats.AddRemoveTime(time.Since(start))
	}
}

func (c *Cache[K, V]) recordGet(hit bool) {
	if !c.statsOn() {
		return
	}
	if hit {
		c.stats.RecordHits(1)
	} else {
		c.stats.RecordMisses(1)
	}
}

// Put 写入 key 的值。开启写穿透时 Writer 失败会回滚并返回 *WriterError。
//
// 过期策略对本次写入给出立即过期时，值仍会交给 Writer.Write，随后条目移出缓存
// 并发送 Expired 事件；这属于过期而非删除，不调用 Writer.Delete。
// 新建条目立即过期时不写入存储，也不发送事件。
func (c *Cache[K, V]) Put(ctx context.Context, key K, value V) (err error) {
	value, err = c.checkValue(key, value)
	if err != nil {
		return err
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpPut)
	var stored bool
	defer func() { span.End(writeOutcome(stored, err), err) }()

	start := time.Now()
	err = c.mutate(ctx, key, func(cur xstore.Entry[K, V], exists bool, evs *events[K, V]) error {
		var err error
		stored, err = c.put(ctx, key, value, cur, exists, c.cfg.WriteThrough, evs)
		return err
	})
	c.recordPut(stored, start)
	return err
}

// GetAndPut 写入 key 的值并返回旧值。hadOld=false 表示此前没有值。
func (c *Cache[K, V]) GetAndPut(ctx context.Context, key K, value V) (old V, hadOld bool, err error) {
	value, err = c.checkValue(key, value)
	if err != nil {
		return old, false, err
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpPut)
	defer func() { span.End(outcome(hadOld, err), err) }()

	start := time.Now()
	var stored bool
	err = c.mutate(ctx, key, func(cur xstore.Entry[K, V], exists bool, evs *events[K, V]) error {
		var err error
		if stored, err = c.put(ctx, key, value, cur, exists, c.cfg.WriteThrough, evs); err != nil {
			return err
		}
		old, hadOld = cur.Value, exists
		return nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	c.recordGet(hadOld)
	c.recordPut(stored, start)
	if hadOld {
		old, err = c.copyOut(old)
	}
	return old, hadOld, err
}

// PutIfAbsent 仅在 key 没有值时写入，返回是否写入。
func (c *Cache[K, V]) PutIfAbsent(ctx context.Context, key K, value V) (written bool, err error) {
	value, err = c.checkValue(key, value)
	if err != nil {
		return false, err
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpPut)
	defer func() { span.End(writeOutcome(written, err), err) }()

	start := time.Now()
	var stored bool
	err = c.mutate(ctx, key, func(cur xstore.Entry[K, V], exists bool, evs *events[K, V]) error {
		if exists {
			return nil
		}
		var err error
		stored, err = c.put(ctx, key, value, cur, false, c.cfg.WriteThrough, evs)
		written = err == nil
		return err
	})
	c.recordPut(stored, start)
	return written && err == nil, err
}

// Remove 删除 key，返回此前是否存在。开启写穿透时即使 key 不存在也会调用 Writer.Delete。
func (c *Cache[K, V]) Remove(ctx context.Context, key K) (removed bool, err error) {
	if err = c.checkKey(key); err != nil {
		return false, err
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpRemove)
	defer func() { span.End(writeOutcome(removed, err), err) }()

	start := time.Now()
	err = c.mutate(ctx, key, func(cur xstore.Entry[K, V], exists bool, evs *events[K, V]) error {
		if !exists {
			return c.deleteAbsent(ctx, key)
		}
		if err := c.remove(ctx, cur, c.cfg.WriteThrough, evs); err != nil {
			return err
		}
		removed = true
		return nil
	})
	c.recordRemove(removed, start)
	return removed && err == nil, err
}

// RemoveIfEquals 仅在当前值等于 old 时删除。值不相等时视为一次访问。
func (c *Cache[K, V]) RemoveIfEquals(ctx context.Context, key K, old V) (removed bool, err error) {
	if err = c.checkKey(key); err != nil {
		return false, err
	}
	if isNil(old) {
		return false, ErrNullValue
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpRemove)
	defer func() { span.End(writeOutcome(removed, err), err) }()

	start := time.Now()
	var hit bool
	err = c.mutate(ctx, key, func(cur xstore.Entry[K, V], exists bool, evs *events[K, V]) error {
		if !exists {
			return nil
		}
		hit = true
		if !c.cfg.Equal(cur.Value, old) {
			return c.access(ctx, cur, evs)
		}
		if err := c.remove(ctx, cur, c.cfg.WriteThrough, evs); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err == nil {
		c.recordGet(hit)
	}
	c.recordRemove(removed, start)
	return removed && err == nil, err
}

// GetAndRemove 删除 key 并返回旧值。
func (c *Cache[K, V]) GetAndRemove(ctx context.Context, key K) (old V, hadOld bool, err error) {
	if err = c.checkKey(key); err != nil {
		return old, false, err
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpRemove)
	defer func() { span.End(outcome(hadOld, err), err) }()

	start := time.Now()
	err = c.mutate(ctx, key, func(cur xstore.Entry[K, V], exists bool, evs *events[K, V]) error {
		if !exists {
			return c.deleteAbsent(ctx, key)
		}
		if err := c.remove(ctx, cur, c.cfg.WriteThrough, evs); err != nil {
			return err
		}
		old, hadOld = cur.Value, true
		return nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	c.recordGet(hadOld)
	c.recordRemove(hadOld, start)
	if hadOld {
		old, err = c.copyOut(old)
	}
	return old, hadOld, err
}

// Replace 仅在 key 已有值时覆盖，返回是否覆盖。
func (c *Cache[K, V]) Replace(ctx context.Context, key K, value V) (replaced bool, err error) {
	value, err = c.checkValue(key, value)
	if err != nil {
		return false, err
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpReplace)
	defer func() { span.End(writeOutcome(replaced, err), err) }()

	start := time.Now()
	var stored bool
	err = c.mutate(ctx, key, func(cur xstore.Entry[K, V], exists bool, evs *events[K, V]) error {
		if !exists {
			return nil
		}
		var err error
		stored, err = c.put(ctx, key, value, cur, true, c.cfg.WriteThrough, evs)
		replaced = err == nil
		return err
	})
	if err == nil {
		c.recordGet(replaced)
	}
	c.recordPut(stored, start)
	return replaced && err == nil, err
}

// ReplaceIfEquals 仅在当前值等于 old 时覆盖为 value。值不相等时视为一次访问。
func (c *Cache[K, V]) ReplaceIfEquals(ctx context.Context, key K, old, value V) (replaced bool, err error) {
	value, err = c.checkValue(key, value)
	if err != nil {
		return false, err
	}
	if isNil(old) {
		return false, ErrNullValue
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpReplace)
	defer func() { span.End(writeOutcome(replaced, err), err) }()

	start := time.Now()
	var stored, hit bool
	err = c.mutate(ctx, key, func(cur xstore.Entry[K, V], exists bool, evs *events[K, V]) error {
		if !exists {
			return nil
		}
		hit = true
		if !c.cfg.Equal(cur.Value, old) {
			return c.access(ctx, cur, evs)
		}
		var err error
		stored, err = c.put(ctx, key, value, cur, true, c.cfg.WriteThrough, evs)
		replaced = err == nil
		return err
	})
	if err == nil {
		c.recordGet(hit)
	}
	c.recordPut(stored, start)
	return replaced && err == nil, err
}

// GetAndReplace 仅在 key 已有值时覆盖，并返回旧值。
func (c *Cache[K, V]) GetAndReplace(ctx context.Context, key K, value V) (old V, hadOld bool, err error) {
	value, err = c.checkValue(key, value)
	if err != nil {
		return old, false, err
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpReplace)
	defer func() { span.End(outcome(hadOld, err), err) }()

	start := time.Now()
	var stored bool
	err = c.mutate(ctx, key, func(cur xstore.Entry[K, V], exists bool, evs *events[K, V]) error {
		if !exists {
			return nil
		}
		var err error
		if stored, err = c.put(ctx, key, value, cur, true, c.cfg.WriteThrough, evs); err != nil {
			return err
		}
		old, hadOld = cur.Value, true
		return nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	c.recordGet(hadOld)
	c.recordPut(stored, start)
	if hadOld {
		old, err = c.copyOut(old)
	}
	return old, hadOld, err
}

// PutAll 写入多个条目。任一 key 或 value 为 nil 时整体拒绝。
//
// 所有 key 按固定顺序加锁后重新读取当前值，开启写穿透时在持锁期间调用一次
// Writer.WriteAll；Writer 报告失败的条目不写入缓存，其余条目写入并保持提交。
// 返回的 *WriterError 列出失败的 key。
func (c *Cache[K, V]) PutAll(ctx context.Context, entries map[K]V) (err error) {
	for k, v := range entries {
		if isNil(k) {
			return ErrNullKey
		}
		if isNil(v) {
			return ErrNullValue
		}
	}
	if c.closed.Load() {
		return ErrClosed
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpPutAll)
	defer func() { span.End(writeOutcome(len(entries) > 0, err), err) }()

	values := make(map[K]V, len(entries))
	keys := make([]K, 0, len(entries))
	for k, v := range entries {
		if values[k], err = c.copyIn(v); err != nil {
			return err
		}
		keys = append(keys, k)
	}
	keys = orderKeys(keys)

	unlock, err := c.lockKeys(ctx, keys)
	if err != nil {
		return err
	}
	var evs events[K, V]
	defer func() {
		unlock()
		c.dispatch(ctx, evs)
	}()

	start := time.Now()
	var errs []error
	cur := c.snapshot(ctx, keys, &evs, &errs)
	targets := make([]K, 0, len(cur))
	for _, k := range keys {
		if _, ok := cur[k]; ok {
			targets = append(targets, k)
		}
	}

	skip := map[K]struct{}{}
	if c.cfg.WriteThrough && len(targets) > 0 {
		batch := make(map[K]V, len(targets))
		for _, k := range targets {
			batch[k] = values[k]
		}
		failed, werr := c.cfg.Writer.WriteAll(ctx, batch)
		skip = failedSet(targets, failed, werr)
		if len(skip) > 0 {
			if werr == nil {
				werr = errors.New("writer reported failed entries")
			}
			errs = append(errs, writerError(werr, failedKeys(targets, skip)...))
		}
	}

	for _, k := range targets {
		if _, failed := skip[k]; failed {
			continue
		}
		now := cur[k]
		stored, err := c.put(ctx, k, values[k], now.entry, now.exists, false, &evs)
		c.recordPut(stored, start)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrs(errs)
}

// failedKeys 按 keys 的顺序返回位于 skip 中的 key。
func failedKeys[K comparable](keys []K, skip map[K]struct{}) []K {
	out := make([]K, 0, len(skip))
	for _, k := range keys {
		if _, ok := skip[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// RemoveKeys 删除多个 key。开启写穿透时先调用一次 Writer.DeleteAll，
// Writer 报告失败的 key 保留在缓存中。
func (c *Cache[K, V]) RemoveKeys(ctx context.Context, keys []K) (err error) {
	if err = c.checkKeys(keys); err != nil {
		return err
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpRemoveAll)
	defer func() { span.End(writeOutcome(len(keys) > 0, err), err) }()
	return c.removeKeys(ctx, keys, true)
}

// RemoveAll 删除当前全部 key，只发送一次 RemovedAll 事件。
func (c *Cache[K, V]) RemoveAll(ctx context.Context) (err error) {
	if c.closed.Load() {
		return ErrClosed
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpRemoveAll)
	defer func() { span.End(xstats.OutcomeOK, err) }()

	keys, err := c.store.Keys(ctx)
	if err != nil {
		return err
	}
	if err := c.removeKeys(ctx, keys, false); err != nil {
		return err
	}
	c.notifier.Dispatch(ctx, xevent.Event[K, V]{Type: xevent.RemovedAll})
	return nil
}

// removeKeys 删除 keys。所有 key 按固定顺序加锁后重新读取，开启写穿透时在持锁期间
// 调用一次 Writer.DeleteAll（包括缓存中不存在的 key）。
// perKeyEvents 为 false 时不发送单条事件（过期事件除外）。
func (c *Cache[K, V]) removeKeys(ctx context.Context, keys []K, perKeyEvents bool) error {
	keys = orderKeys(keys)
	unlock, err := c.lockKeys(ctx, keys)
	if err != nil {
		return err
	}
	var evs events[K, V]
	defer func() {
		unlock()
		c.dispatch(ctx, evs)
	}()

	start := time.Now()
	var errs []error
	cur := c.snapshot(ctx, keys, &evs, &errs)
	targets := make([]K, 0, len(cur))
	for _, k := range keys {
		if _, ok := cur[k]; ok {
			targets = append(targets, k)
		}
	}

	skip := map[K]struct{}{}
	if c.cfg.WriteThrough && len(targets) > 0 {
		failed, werr := c.cfg.Writer.DeleteAll(ctx, targets)
		skip = failedSet(targets, failed, werr)
		if len(skip) > 0 {
			if werr == nil {
				werr = errors.New("writer reported failed keys")
			}
			errs = append(errs, writerError(werr, failedKeys(targets, skip)...))
		}
	}

	for _, k := range targets {
		now := cur[k]
		if _, failed := skip[k]; failed || !now.exists {
			continue
		}
		var local events[K, V]
		err := c.remove(ctx, now.entry, false, &local)
		c.recordRemove(err == nil, start)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if perKeyEvents {
			evs = append(evs, local...)
		}
	}
	return joinErrs(errs)
}

// Clear 清空存储，不调用 Writer，不发送事件。
func (c *Cache[K, V]) Clear(ctx context.Context) (err error) {
	if c.closed.Load() {
		return ErrClosed
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpClear)
	defer func() { span.End(xstats.OutcomeOK, err) }()
	return c.store.Clear(ctx)
}
