package xstore

import (
	"context"
	"io"
	"time"
)

// Entry 是存储中的一个条目。时间戳由存储维护。
type Entry[K comparable, V any] struct {
	Key   K
	Value V

	// Created 首次写入时间，后续更新保持不变。
	Created time.Time
	// Updated 最近一次 Put 时间。
	Updated time.Time
	// Accessed 最近一次 Put 或 Touch 时间。
	Accessed time.Time
	// ExpireAt 绝对截止时间，零值表示永不过期。
	ExpireAt time.Time
}

// Expired 报告条目在 now 时刻是否已过期。
func (e Entry[K, V]) Expired(now time.Time) bool {
	return !e.ExpireAt.IsZero() && !now.Before(e.ExpireAt)
}

// Unlock 释放一次 Lock 获取的 key 锁，多次调用安全。
type Unlock func()

// Store 是门面消费的后端存储适配器。所有方法并发安全。
//
// Lock 提供按 key 的排他锁，其余方法本身不加 key 锁：
// 读-判定-写序列的原子性由调用方在持锁期间保证。
type Store[K comparable, V any] interface {
	io.Closer

	// Get 读取条目，不更新访问时间。不存在时返回 ok=false。
	// Memory/LRU 可能返回已过期但尚未删除的条目。
	Get(ctx context.Context, key K) (entry Entry[K, V], ok bool, err error)

	// Put 写入值并设置截止时间（零值表示永不过期）。
	// 新条目写入 Created，已有条目保留 Created；Updated 与 Accessed 置为当前时间。
	Put(ctx context.Context, key K, value V, expireAt time.Time) error

	// Restore 原样写回一个条目（包括时间戳），用于回滚。
	Restore(ctx context.Context, entry Entry[K, V]) error

	// Touch 记录一次访问并更新截止时间。条目不存在时为空操作。
	Touch(ctx context.Context, key K, expireAt time.Time) error

	// Remove 删除条目，返回条目此前是否存在。
	Remove(ctx context.Context, key K) (bool, error)

	// Contains 报告条目是否存在且未过期。
	Contains(ctx context.Context, key K) (bool, error)

	// Keys 返回调用时刻 key 的快照，顺序不保证。
	Keys(ctx context.Context) ([]K, error)

	// Len 返回条目数（可能包含已过期未清理的条目）。
	Len(ctx context.Context) (int, error)

	// Clear 删除全部条目。
	Clear(ctx context.Context) error

	// Lock 获取 key 的排他锁，阻塞直到获取成功、ctx 结束或存储关闭。
	Lock(ctx context.Context, key K) (Unlock, error)

	// TryLock 尝试获取 key 的排他锁，不等待。锁被占用时返回 ok=false 且 err 为 nil。
	TryLock(ctx context.Context, key K) (unlock Unlock, ok bool, err error)

	// LockedKeys 返回本进程内持有或等待 key 锁的 key 数。
	LockedKeys() int
}
