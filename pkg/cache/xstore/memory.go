package xstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Memory 是基于 map 的无界内存存储。
// 过期条目在被删除前会原样留在 map 中，由门面在访问时清理并通知。
type Memory[K comparable, V any] struct {
	keyLocks[K]

	mu     sync.RWMutex
	data   map[K]Entry[K, V]
	clock  Clock
	closed atomic.Bool
}

// NewMemory 创建内存存储。
func NewMemory[K comparable, V any](opts ...Option) (*Memory[K, V], error) {
	o := applyOptions(opts)
	kl, err := newLocker[K](o)
	if err != nil {
		return nil, err
	}
	return &Memory[K, V]{
		keyLocks: keyLocks[K]{kl: kl},
		data:     make(map[K]Entry[K, V]),
		clock:    o.clock,
	}, nil
}

func (m *Memory[K, V]) Get(_ context.Context, key K) (Entry[K, V], bool, error) {
	if m.closed.Load() {
		return Entry[K, V]{}, false, ErrClosed
	}
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	return e, ok, nil
}

func (m *Memory[K, V]) Put(_ context.Context, key K, value V, expireAt time.Time) error {
	if m.closed.Load() {
		return ErrClosed
	}
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.data[key]
	m.data[key] = stamp(old, ok, key, value, expireAt, now)
	return nil
}

func (m *Memory[K, V]) Restore(_ context.Context, entry Entry[K, V]) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.mu.Lock()
	m.data[entry.Key] = entry
	m.mu.Unlock()
	return nil
}

func (m *Memory[K, V]) Touch(_ context.Context, key K, expireAt time.Time) error {
	if m.closed.Load() {
		return ErrClosed
	}
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.data[key]; ok {
		e.Accessed = now
		e.ExpireAt = expireAt
		m.data[key] = e
	}
	return nil
}

func (m *Memory[K, V]) Remove(_ context.Context, key K) (bool, error) {
	if m.closed.Load() {
		return false, ErrClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	delete(m.data, key)
	return ok, nil
}

func (m *Memory[K, V]) Contains(_ context.Context, key K) (bool, error) {
	if m.closed.Load() {
		return false, ErrClosed
	}
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	return ok && !e.Expired(m.clock.Now()), nil
}

func (m *Memory[K, V]) Keys(_ context.Context) ([]K, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]K, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *Memory[K, V]) Len(_ context.Context) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data), nil
}

func (m *Memory[K, V]) Clear(_ context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.mu.Lock()
	clear(m.data)
	m.mu.Unlock()
	return nil
}

// Close 关闭存储并唤醒所有等待 key 锁的调用方。重复调用返回 ErrClosed。
func (m *Memory[K, V]) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	m.mu.Lock()
	m.data = make(map[K]Entry[K, V])
	m.mu.Unlock()
	return m.kl.Close()
}

// stamp 根据已有条目计算新条目的时间戳。
func stamp[K comparable, V any](old Entry[K, V], existed bool, key K, value V, expireAt, now time.Time) Entry[K, V] {
	created := now
	if existed {
		created = old.Created
	}
	return Entry[K, V]{
		Key:      key,
		Value:    value,
		Created:  created,
		Updated:  now,
		Accessed: now,
		ExpireAt: expireAt,
	}
}

var _ Store[string, int] = (*Memory[string, int])(nil)
