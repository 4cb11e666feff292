package xkeylock

import (
	"context"
	"sync"
	"sync/atomic"
)

// keyLockImpl 是 Locker 的分片实现。
type keyLockImpl[K comparable] struct {
	shards   []shard[K]
	mask     uint64
	opts     *options[K]
	closed   atomic.Bool
	keyCount atomic.Int64
	done     chan struct{}
}

type shard[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*lockEntry
}

// lockEntry 表示一个 key 的锁条目。
// ch 是 size=1 的 channel，用作互斥量：
//   - 发送成功 = 获取锁
//   - 发送阻塞 = 锁被占用
//   - 接收 = 释放锁
type lockEntry struct {
	ch chan struct{}
	// refcnt 跟踪引用此条目的 goroutine 数量（持有者 + 等待者），归零时从 map 删除。
	refcnt atomic.Int32
}

type handle[K comparable] struct {
	kl    *keyLockImpl[K]
	key   K
	entry *lockEntry
	done  atomic.Bool
}

func newKeyLockImpl[K comparable](opts *options[K]) *keyLockImpl[K] {
	shards := make([]shard[K], opts.shardCount)
	for i := range shards {
		shards[i].entries = make(map[K]*lockEntry)
	}
	return &keyLockImpl[K]{
		shards: shards,
		mask:   uint64(opts.shardCount - 1),
		opts:   opts,
		done:   make(chan struct{}),
	}
}

func (kl *keyLockImpl[K]) getShard(key K) *shard[K] {
	return &kl.shards[kl.opts.hash(key)&kl.mask]
}

// getOrCreate 获取或创建 lockEntry，并增加引用计数。
func (kl *keyLockImpl[K]) getOrCreate(key K) (*lockEntry, error) {
	s := kl.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if kl.closed.Load() {
		return nil, ErrClosed
	}

	e, ok := s.entries[key]
	if !ok {
		if kl.opts.maxKeys > 0 {
			// CAS 严格限制 key 数量，避免跨分片并发突破上限。
			for {
				cur := kl.keyCount.Load()
				if cur >= int64(kl.opts.maxKeys) {
					return nil, ErrMaxKeysExceeded
				}
				if kl.keyCount.CompareAndSwap(cur, cur+1) {
					break
				}
			}
		} else {
			kl.keyCount.Add(1)
		}
		e = &lockEntry{ch: make(chan struct{}, 1)}
		s.entries[key] = e
	}
	e.refcnt.Add(1)
	return e, nil
}

// releaseRef 减少引用计数，归零时从 map 删除。
func (kl *keyLockImpl[K]) releaseRef(key K, entry *lockEntry) {
	s := kl.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.refcnt.Add(-1) == 0 {
		delete(s.entries, key)
		kl.keyCount.Add(-1)
	}
}

func (kl *keyLockImpl[K]) Acquire(ctx context.Context, key K) (Handle[K], error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	// ctx 已取消时避免进入 getOrCreate 造成不必要的锁竞争。
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if kl.closed.Load() {
		return nil, ErrClosed
	}
	entry, err := kl.getOrCreate(key)
	if err != nil {
		return nil, err
	}
	select {
	case entry.ch <- struct{}{}:
		return &handle[K]{kl: kl, key: key, entry: entry}, nil
	case <-ctx.Done():
		kl.releaseRef(key, entry)
		return nil, ctx.Err()
	case <-kl.done:
		kl.releaseRef(key, entry)
		return nil, ErrClosed
	}
}

func (kl *keyLockImpl[K]) TryAcquire(key K) (Handle[K], error) {
	if kl.closed.Load() {
		return nil, ErrClosed
	}
	entry, err := kl.getOrCreate(key)
	if err != nil {
		return nil, err
	}
	select {
	case entry.ch <- struct{}{}:
		return &handle[K]{kl: kl, key: key, entry: entry}, nil
	default:
		kl.releaseRef(key, entry)
		return nil, ErrLockOccupied
	}
}

func (kl *keyLockImpl[K]) Len() int {
	return int(max(kl.keyCount.Load(), 0))
}

func (kl *keyLockImpl[K]) Close() error {
	if !kl.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(kl.done)
	return nil
}

func (h *handle[K]) Unlock() error {
	if !h.done.CompareAndSwap(false, true) {
		return ErrLockNotHeld
	}
	<-h.entry.ch
	h.kl.releaseRef(h.key, h.entry)
	return nil
}

func (h *handle[K]) Key() K {
	return h.key
}

// 编译期接口检查。
var (
	_ Locker[string] = (*keyLockImpl[string])(nil)
	_ Handle[string] = (*handle[string])(nil)
)
