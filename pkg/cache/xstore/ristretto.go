package xstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// RistrettoKey 是 Ristretto 存储支持的 key 类型。
type RistrettoKey interface {
	uint64 | string | byte | int | int32 | uint32 | int64
}

// RistrettoConfig 定义 Ristretto 存储的容量参数。
type RistrettoConfig[V any] struct {
	// NumCounters 频率计数器数量，建议为预期条目数的 10 倍。默认 1e6。
	NumCounters int64

	// MaxCost 总容量。默认 1e5，配合默认 Cost 即最多约 10 万个条目。
	MaxCost int64

	// BufferItems 写入缓冲区大小。默认 64。
	BufferItems int64

	// Cost 计算单个值的 cost，nil 表示每个条目 cost 为 1。
	Cost func(value V) int64
}

func (c *RistrettoConfig[V]) normalize() {
	if c.NumCounters <= 0 {
		c.NumCounters = 1e6
	}
	if c.MaxCost <= 0 {
		c.MaxCost = 1e5
	}
	if c.BufferItems <= 0 {
		c.BufferItems = 64
	}
}

// RistrettoStats 是底层 ristretto 的统计信息。
type RistrettoStats struct {
	Hits        uint64
	Misses      uint64
	HitRatio    float64
	KeysAdded   uint64
	KeysEvicted uint64
	CostAdded   uint64
	CostEvicted uint64
}

// Ristretto 是基于 dgraph-io/ristretto/v2 的准入控制内存存储。
//
// ristretto 异步写入，本实现在每次写入后调用 Wait，保证写后读可见。
// 缓存满时新条目可能被准入策略拒绝，此时写入等价于立即被淘汰。
// ristretto 不支持枚举 key，本实现另行维护 key 集合，
// 被淘汰或拒绝的 key 通过回调移除。
type Ristretto[K RistrettoKey, V any] struct {
	keyLocks[K]

	cache  *ristretto.Cache[K, Entry[K, V]]
	cost   func(V) int64
	clock  Clock
	closed atomic.Bool

	keysMu sync.Mutex
	keys   map[K]struct{}
}

// NewRistretto 创建 Ristretto 存储。
func NewRistretto[K RistrettoKey, V any](cfg RistrettoConfig[V], opts ...Option) (*Ristretto[K, V], error) {
	cfg.normalize()
	o := applyOptions(opts)
	kl, err := newLocker[K](o)
	if err != nil {
		return nil, err
	}
	s := &Ristretto[K, V]{
		keyLocks: keyLocks[K]{kl: kl},
		cost:     cfg.Cost,
		clock:    o.clock,
		keys:     make(map[K]struct{}),
	}
	forget := func(item *ristretto.Item[Entry[K, V]]) {
		if item != nil {
			s.forgetKey(item.Value.Key)
		}
	}
	cache, err := ristretto.NewCache(&ristretto.Config[K, Entry[K, V]]{
		NumCounters:        cfg.NumCounters,
		MaxCost:            cfg.MaxCost,
		BufferItems:        cfg.BufferItems,
		Metrics:            true,
		IgnoreInternalCost: true,
		OnEvict:            forget,
		OnReject:           forget,
	})
	if err != nil {
		_ = kl.Close()
		return nil, fmt.Errorf("xstore: create ristretto cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

func (s *Ristretto[K, V]) rememberKey(key K) {
	s.keysMu.Lock()
	s.keys[key] = struct{}{}
	s.keysMu.Unlock()
}

func (s *Ristretto[K, V]) forgetKey(key K) {
	s.keysMu.Lock()
	delete(s.keys, key)
	s.keysMu.Unlock()
}

// set 写入并等待缓冲区落地。返回 false 表示被丢弃或拒绝。
func (s *Ristretto[K, V]) set(e Entry[K, V]) bool {
	var ttl time.Duration
	if !e.ExpireAt.IsZero() {
		ttl = e.ExpireAt.Sub(s.clock.Now())
		if ttl <= 0 {
			s.cache.Del(e.Key)
			s.forgetKey(e.Key)
			return false
		}
	}
	cost := int64(1)
	if s.cost != nil {
		cost = s.cost(e.Value)
	}
	s.rememberKey(e.Key)
	ok := s.cache.SetWithTTL(e.Key, e, cost, ttl)
	s.cache.Wait()
	if !ok {
		s.forgetKey(e.Key)
	}
	return ok
}

func (s *Ristretto[K, V]) Get(_ context.Context, key K) (Entry[K, V], bool, error) {
	if s.closed.Load() {
		return Entry[K, V]{}, false, ErrClosed
	}
	e, ok := s.cache.Get(key)
	return e, ok, nil
}

func (s *Ristretto[K, V]) Put(_ context.Context, key K, value V, expireAt time.Time) error {
	if s.closed.Load() {
		return ErrClosed
	}
	old, ok := s.cache.Get(key)
	s.set(stamp(old, ok, key, value, expireAt, s.clock.Now()))
	return nil
}

func (s *Ristretto[K, V]) Restore(_ context.Context, entry Entry[K, V]) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.set(entry)
	return nil
}

func (s *Ristretto[K, V]) Touch(_ context.Context, key K, expireAt time.Time) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if e, ok := s.cache.Get(key); ok {
		e.Accessed = s.clock.Now()
		e.ExpireAt = expireAt
		s.set(e)
	}
	return nil
}

func (s *Ristretto[K, V]) Remove(_ context.Context, key K) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	_, ok := s.cache.Get(key)
	s.cache.Del(key)
	s.cache.Wait()
	s.forgetKey(key)
	return ok, nil
}

func (s *Ristretto[K, V]) Contains(_ context.Context, key K) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	e, ok := s.cache.Get(key)
	return ok && !e.Expired(s.clock.Now()), nil
}

// Keys 返回仍然存在的 key，顺便清理 key 集合中已被后端过期的条目。
func (s *Ristretto[K, V]) Keys(_ context.Context) ([]K, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.keysMu.Lock()
	candidates := make([]K, 0, len(s.keys))
	for k := range s.keys {
		candidates = append(candidates, k)
	}
	s.keysMu.Unlock()

	keys := candidates[:0]
	for _, k := range candidates {
		if _, ok := s.cache.Get(k); ok {
			keys = append(keys, k)
		} else {
			s.forgetKey(k)
		}
	}
	return keys, nil
}

func (s *Ristretto[K, V]) Len(ctx context.Context) (int, error) {
	keys, err := s.Keys(ctx)
	return len(keys), err
}

func (s *Ristretto[K, V]) Clear(_ context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.cache.Clear()
	s.keysMu.Lock()
	clear(s.keys)
	s.keysMu.Unlock()
	return nil
}

// Stats 返回底层 ristretto 统计信息。
func (s *Ristretto[K, V]) Stats() RistrettoStats {
	if s.closed.Load() {
		return RistrettoStats{}
	}
	m := s.cache.Metrics
	if m == nil {
		return RistrettoStats{}
	}
	return RistrettoStats{
		Hits:        m.Hits(),
		Misses:      m.Misses(),
		HitRatio:    m.Ratio(),
		KeysAdded:   m.KeysAdded(),
		KeysEvicted: m.KeysEvicted(),
		CostAdded:   m.CostAdded(),
		CostEvicted: m.CostEvicted(),
	}
}

func (s *Ristretto[K, V]) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	s.cache.Close()
	return s.kl.Close()
}

var _ Store[string, int] = (*Ristretto[string, int])(nil)
