package xkeylock

import (
	"context"
	"io"
)

// Handle 表示一次成功的锁获取。
type Handle[K comparable] interface {
	// Unlock 释放锁。
	// 幂等：第一次调用返回 nil，后续调用返回 [ErrLockNotHeld]。
	Unlock() error

	// Key 返回锁的 key，Unlock 之后仍可调用。
	Key() K
}

// Locker 提供基于 key 的进程内互斥锁。所有方法都是并发安全的。
type Locker[K comparable] interface {
	io.Closer

	// Acquire 阻塞式获取锁。
	// ctx 取消时返回 ctx.Err()；Locker 已关闭时返回 [ErrClosed]；
	// ctx 为 nil 时返回 [ErrNilContext]。
	//
	// 等待期间若 Close 与 ctx 取消同时发生，两种错误均可能返回。
	Acquire(ctx context.Context, key K) (Handle[K], error)

	// TryAcquire 非阻塞获取锁，锁被占用时返回 (nil, [ErrLockOccupied])。
	TryAcquire(key K) (Handle[K], error)

	// Len 返回当前活跃的 key 数量（持有者与等待者），单次原子读取。
	// xstore 以此暴露锁压力。
	Len() int
}

// New 创建一个新的 Locker 实例。
// 配置无效时返回错误（如分片数不是 2 的幂）。
func New[K comparable](opts ...Option[K]) (Locker[K], error) {
	o := defaultOptions[K]()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return newKeyLockImpl(&o), nil
}
