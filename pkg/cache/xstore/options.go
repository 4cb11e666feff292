package xstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/omeyang/xjcache/pkg/util/xkeylock"
)

// Clock 提供当前时间，便于测试注入。
type Clock interface {
	Now() time.Time
}

// ClockFunc 将函数适配为 Clock。
type ClockFunc func() time.Time

// Now 实现 Clock。
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock 使用 time.Now。
var SystemClock Clock = ClockFunc(time.Now)

// Option 定义存储的通用配置项。
type Option func(*options)

type options struct {
	clock       Clock
	lockShards  int
	maxLockKeys int
	keyPrefix   string
	logger      *slog.Logger

	distLock      bool
	distLockTTL   time.Duration
	distLockRetry time.Duration
}

func defaultOptions() *options {
	return &options{
		clock:      SystemClock,
		lockShards: 32,
		keyPrefix:  "xjcache:",
		logger:     slog.Default(),

		distLockRetry: 50 * time.Millisecond,
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithClock 设置时间源。传入 nil 被忽略。
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLockShards 设置 key 锁的分片数，必须为 2 的幂。默认 32。
func WithLockShards(n int) Option {
	return func(o *options) {
		o.lockShards = n
	}
}

// WithMaxLockKeys 限制同时被锁定（含等待）的 key 数，<= 0 表示不限制。
func WithMaxLockKeys(n int) Option {
	return func(o *options) {
		o.maxLockKeys = n
	}
}

// WithKeyPrefix 设置远端 key 前缀，仅 Redis 使用。默认 "xjcache:"。
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.keyPrefix = prefix
	}
}

// WithDistributedLock 为 Redis 存储启用基于 redsync 的跨进程 key 锁。
// ttl 为锁在 Redis 中的过期时间，必须大于 0；持锁时间超过 ttl 时锁会被自动释放。
// 仅 Redis 使用，其他实现忽略该选项。
func WithDistributedLock(ttl time.Duration) Option {
	return func(o *options) {
		o.distLock = true
		o.distLockTTL = ttl
	}
}

// WithDistributedLockRetry 设置分布式锁争用时的重试间隔。默认 50ms。
func WithDistributedLockRetry(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.distLockRetry = d
		}
	}
}

// WithLogger 设置日志记录器。传入 nil 被忽略。
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// newLocker 按配置创建 key 锁。
func newLocker[K comparable](o *options) (xkeylock.Locker[K], error) {
	return xkeylock.New(
		xkeylock.WithShardCount[K](o.lockShards),
		xkeylock.WithMaxKeys[K](o.maxLockKeys),
	)
}

// keyLocks 把 xkeylock 适配为 Store.Lock 语义，供各实现内嵌。
type keyLocks[K comparable] struct {
	kl xkeylock.Locker[K]
}

// Lock 获取 key 锁。
func (l keyLocks[K]) Lock(ctx context.Context, key K) (Unlock, error) {
	h, err := l.kl.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, xkeylock.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return func() { _ = h.Unlock() }, nil
}

// TryLock 尝试获取 key 锁，被占用时返回 ok=false。
func (l keyLocks[K]) TryLock(_ context.Context, key K) (Unlock, bool, error) {
	h, err := l.kl.TryAcquire(key)
	switch {
	case errors.Is(err, xkeylock.ErrLockOccupied):
		return nil, false, nil
	case errors.Is(err, xkeylock.ErrClosed):
		return nil, false, ErrClosed
	case err != nil:
		return nil, false, err
	}
	return func() { _ = h.Unlock() }, true, nil
}

// LockedKeys 返回活跃的 key 锁数量。
func (l keyLocks[K]) LockedKeys() int {
	return l.kl.Len()
}
