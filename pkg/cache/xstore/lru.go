package xstore

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// maxLRUSize LRU 存储最大条目数上限。
const maxLRUSize = 1 << 24

// LRU 是按条目数淘汰的内存存储，底层为 hashicorp/golang-lru/v2。
// 容量淘汰不经过门面，因此不产生事件；Evictions 返回累计淘汰数。
type LRU[K comparable, V any] struct {
	keyLocks[K]

	cache     *lru.Cache[K, Entry[K, V]]
	clock     Clock
	closed    atomic.Bool
	evictions atomic.Uint64
}

// NewLRU 创建容量为 size 的 LRU 存储。
// size 必须在 (0, 16777216] 内，否则返回 ErrInvalidSize。
func NewLRU[K comparable, V any](size int, opts ...Option) (*LRU[K, V], error) {
	if size <= 0 || size > maxLRUSize {
		return nil, ErrInvalidSize
	}
	o := applyOptions(opts)
	kl, err := newLocker[K](o)
	if err != nil {
		return nil, err
	}
	c, err := lru.New[K, Entry[K, V]](size)
	if err != nil {
		return nil, err
	}
	return &LRU[K, V]{
		keyLocks: keyLocks[K]{kl: kl},
		cache:    c,
		clock:    o.clock,
	}, nil
}

// add 写入条目并统计容量淘汰。
func (s *LRU[K, V]) add(key K, e Entry[K, V]) {
	if s.cache.Add(key, e) {
		s.evictions.Add(1)
	}
}

// Evictions 返回因容量被淘汰的条目累计数（不含显式删除）。
func (s *LRU[K, V]) Evictions() uint64 {
	return s.evictions.Load()
}

func (s *LRU[K, V]) Get(_ context.Context, key K) (Entry[K, V], bool, error) {
	if s.closed.Load() {
		return Entry[K, V]{}, false, ErrClosed
	}
	e, ok := s.cache.Get(key)
	return e, ok, nil
}

func (s *LRU[K, V]) Put(_ context.Context, key K, value V, expireAt time.Time) error {
	if s.closed.Load() {
		return ErrClosed
	}
	old, ok := s.cache.Peek(key)
	s.add(key, stamp(old, ok, key, value, expireAt, s.clock.Now()))
	return nil
}

func (s *LRU[K, V]) Restore(_ context.Context, entry Entry[K, V]) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.add(entry.Key, entry)
	return nil
}

func (s *LRU[K, V]) Touch(_ context.Context, key K, expireAt time.Time) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if e, ok := s.cache.Peek(key); ok {
		e.Accessed = s.clock.Now()
		e.ExpireAt = expireAt
		s.add(key, e)
	}
	return nil
}

func (s *LRU[K, V]) Remove(_ context.Context, key K) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	return s.cache.Remove(key), nil
}

func (s *LRU[K, V]) Contains(_ context.Context, key K) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	e, ok := s.cache.Peek(key)
	return ok && !e.Expired(s.clock.Now()), nil
}

func (s *LRU[K, V]) Keys(_ context.Context) ([]K, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.cache.Keys(), nil
}

func (s *LRU[K, V]) Len(_ context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return s.cache.Len(), nil
}

func (s *LRU[K, V]) Clear(_ context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.cache.Purge()
	return nil
}

func (s *LRU[K, V]) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	s.cache.Purge()
	return s.kl.Close()
}

var _ Store[string, int] = (*LRU[string, int])(nil)
