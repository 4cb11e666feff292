package xcache

import (
	"context"
	"time"

	"github.com/omeyang/xjcache/pkg/cache/xstats"
)

// Get 返回 key 对应的值。命中时应用访问过期策略；
// 未命中且开启读穿透时调用 Loader。ok=false 表示没有值。
func (c *Cache[K, V]) Get(ctx context.Context, key K) (value V, ok bool, err error) {
	if err = c.checkKey(key); err != nil {
		return value, false, err
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpGet)
	defer func() { span.End(outcome(ok, err), err) }()

	start := time.Now()
	value, ok, hit, err := c.get(ctx, key)
	if err != nil {
		return value, false, err
	}
	if c.statsOn() {
		if hit {
			c.stats.RecordHits(1)
		} else {
			c.stats.RecordMisses(1)
		}
		c.stats.AddGetTime(time.Since(start))
	}
	if !ok {
		return value, false, nil
	}
	value, err = c.copyOut(value)
	return value, err == nil, err
}

// get 在 key 锁内读取，必要时读穿透。hit 表示命中缓存（而非加载）。
func (c *Cache[K, V]) get(ctx context.Context, key K) (value V, ok, hit bool, err error) {
	unlock, err := c.lock(ctx, key)
	if err != nil {
		return value, false, false, err
	}
	var evs events[K, V]
	defer func() {
		unlock()
		c.dispatch(ctx, evs)
	}()

	e, found, err := c.live(ctx, key, &evs)
	if err != nil {
		return value, false, false, err
	}
	if found {
		if err := c.access(ctx, e, &evs); err != nil {
			return value, false, false, err
		}
		return e.Value, true, true, nil
	}
	if !c.cfg.ReadThrough {
		return value, false, false, nil
	}
	value, ok, err = c.load(ctx, key, &evs)
	return value, ok, false, err
}

// GetAll 返回多个 key 的值，结果中省略没有值的 key。
// 任一 key 为 nil 时整体拒绝。开启读穿透且 Loader 实现 BatchLoader 时，
// 未命中的 key 通过一次 LoadAll 批量加载。
func (c *Cache[K, V]) GetAll(ctx context.Context, keys []K) (result map[K]V, err error) {
	if err = c.checkKeys(keys); err != nil {
		return nil, err
	}
	ctx, span := c.recorder.Start(ctx, xstats.OpGetAll)
	defer func() { span.End(outcome(len(result) > 0, err), err) }()

	batch, useBatch := c.cfg.Loader.(BatchLoader[K, V])
	useBatch = useBatch && c.cfg.ReadThrough

	result = make(map[K]V, len(keys))
	var missing []K
	seen := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		if useBatch {
			v, ok, err := c.peek(ctx, k)
			if err != nil {
				return nil, err
			}
			if ok {
				result[k] = v
			} else {
				missing = append(missing, k)
			}
			continue
		}
		v, ok, err := c.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			result[k] = v
		}
	}

	if len(missing) > 0 {
		loaded, err := c.loadBatch(ctx, batch, missing, false)
		if err != nil {
			return nil, err
		}
		for k, v := range loaded {
			if v, err = c.copyOut(v); err != nil {
				return nil, err
			}
			result[k] = v
		}
	}
	return result, nil
}

// peek 读取已缓存的值并应用访问过期，不读穿透。
func (c *Cache[K, V]) peek(ctx context.Context, key K) (V, bool, error) {
	start := time.Now()
	unlock, err := c.lock(ctx, key)
	var zero V
	if err != nil {
		return zero, false, err
	}
	var evs events[K, V]
	e, ok, err := c.live(ctx, key, &evs)
	if err == nil && ok {
		err = c.access(ctx, e, &evs)
	}
	unlock()
	c.dispatch(ctx, evs)
	if err != nil {
		return zero, false, err
	}
	if c.statsOn() {
		if ok {
			c.stats.RecordHits(1)
		} else {
			c.stats.RecordMisses(1)
		}
		c.stats.AddGetTime(time.Since(start))
	}
	if !ok {
		return zero, false, nil
	}
	v, err := c.copyOut(e.Value)
	return v, err == nil, err
}

// loadBatch 按固定顺序锁住 keys，重新读取后通过一次 BatchLoader.LoadAll 加载
// 仍需加载的 key，并在锁内写入。replace 为 false 时，已有值的 key 不加载，
// 结果中返回其现值。
func (c *Cache[K, V]) loadBatch(ctx context.Context, loader BatchLoader[K, V], keys []K, replace bool) (map[K]V, error) {
	keys = orderKeys(keys)
	unlock, err := c.lockKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	var evs events[K, V]
	defer func() {
		unlock()
		c.dispatch(ctx, evs)
	}()

	out := make(map[K]V, len(keys))
	olds := make(map[K]current[K, V], len(keys))
	pending := make([]K, 0, len(keys))
	for _, k := range keys {
		e, ok, err := c.live(ctx, k, &evs)
		if err != nil {
			return nil, err
		}
		if ok && !replace {
			out[k] = e.Value
			continue
		}
		olds[k] = current[K, V]{entry: e, exists: ok}
		pending = append(pending, k)
	}
	if len(pending) == 0 {
		return out, nil
	}

	lctx, span := c.recorder.Start(ctx, xstats.OpLoad)
	values, err := loader.LoadAll(lctx, pending)
	span.End(outcome(len(values) > 0, err), err)
	if err != nil {
		return nil, &LoaderError{Key: pending, Err: err}
	}

	for _, k := range pending {
		v, found := values[k]
		if !found || isNil(v) {
			continue
		}
		if v, err = c.copyIn(v); err != nil {
			return nil, err
		}
		old := olds[k]
		if _, err := c.put(ctx, k, v, old.entry, old.exists, false, &evs); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// ContainsKey 报告 key 是否存在且未过期。不加载，不影响访问过期。
func (c *Cache[K, V]) ContainsKey(ctx context.Context, key K) (bool, error) {
	if err := c.checkKey(key); err != nil {
		return false, err
	}
	return c.store.Contains(ctx, key)
}
