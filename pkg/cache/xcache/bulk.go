package xcache

import (
	"cmp"
	"context"
	"fmt"
	"hash/maphash"
	"slices"
	"strings"

	"github.com/omeyang/xjcache/pkg/cache/xstore"
)

// lockSeed 是批量加锁排序的哈希种子，进程内固定。
var lockSeed = maphash.MakeSeed()

// current 是持锁期间读到的条目状态。
type current[K comparable, V any] struct {
	entry  xstore.Entry[K, V]
	exists bool
}

// orderKeys 去重并按全序排列 keys。批量操作一律按该顺序加锁，
// 两个批量操作之间不会交叉等待。string key 按字典序，跨进程一致；
// 其他类型按 %#v 文本排序，文本相同时按哈希。
func orderKeys[K comparable](keys []K) []K {
	type ranked struct {
		key  K
		text string
		hash uint64
	}
	var zero K
	_, isString := any(zero).(string)

	seen := make(map[K]struct{}, len(keys))
	rs := make([]ranked, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		r := ranked{key: k}
		if isString {
			r.text = any(k).(string)
		} else {
			r.text = fmt.Sprintf("%#v", k)
			r.hash = maphash.Comparable(lockSeed, k)
		}
		rs = append(rs, r)
	}
	slices.SortFunc(rs, func(a, b ranked) int {
		if c := strings.Compare(a.text, b.text); c != 0 {
			return c
		}
		return cmp.Compare(a.hash, b.hash)
	})

	out := make([]K, len(rs))
	for i, r := range rs {
		out[i] = r.key
	}
	return out
}

// lockKeys 按顺序获取 keys 的锁，keys 必须来自 orderKeys。
// 任一 key 加锁失败时释放已获取的锁并返回错误。
func (c *Cache[K, V]) lockKeys(ctx context.Context, keys []K) (func(), error) {
	unlocks := make([]xstore.Unlock, 0, len(keys))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, k := range keys {
		unlock, err := c.lock(ctx, k)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// snapshot 在持锁期间读取 keys 的当前条目。读取失败的 key 从结果中省略，
// 其错误追加到 errs。
func (c *Cache[K, V]) snapshot(ctx context.Context, keys []K, evs *events[K, V], errs *[]error) map[K]current[K, V] {
	cur := make(map[K]current[K, V], len(keys))
	for _, k := range keys {
		e, ok, err := c.live(ctx, k, evs)
		if err != nil {
			*errs = append(*errs, err)
			continue
		}
		cur[k] = current[K, V]{entry: e, exists: ok}
	}
	return cur
}

// failedSet 把 Writer 的批量结果归一为失败集合。err 非 nil 且未列出失败 key 时，
// 视为 all 全部失败。
func failedSet[K comparable](all []K, failed []K, err error) map[K]struct{} {
	if err != nil && len(failed) == 0 {
		failed = all
	}
	set := make(map[K]struct{}, len(failed))
	for _, k := range failed {
		set[k] = struct{}{}
	}
	return set
}
