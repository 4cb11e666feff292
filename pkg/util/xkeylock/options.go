package xkeylock

import (
	"fmt"
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
)

const (
	defaultShardCount = 32
	maxShardCount     = 1 << 16 // 65536
)

// HashFunc 将 key 映射为分片选择用的哈希值。
type HashFunc[K comparable] func(key K) uint64

// Option 定义 Locker 可选配置。
type Option[K comparable] func(*options[K])

type options[K comparable] struct {
	maxKeys    int
	shardCount int
	hash       HashFunc[K]
}

func defaultOptions[K comparable]() options[K] {
	return options[K]{
		shardCount: defaultShardCount,
		hash:       defaultHash[K](),
	}
}

// defaultHash 返回默认哈希函数：string 走 xxhash，其余类型走 maphash。
func defaultHash[K comparable]() HashFunc[K] {
	seed := maphash.MakeSeed()
	return func(key K) uint64 {
		if s, ok := any(key).(string); ok {
			return xxhash.Sum64String(s)
		}
		return maphash.Comparable(seed, key)
	}
}

// WithMaxKeys 设置最大 key 数量。
// 达到上限时，新的 Acquire/TryAcquire 返回 [ErrMaxKeysExceeded]。
// n <= 0 表示不限制（默认）。
func WithMaxKeys[K comparable](n int) Option[K] {
	if n < 0 {
		n = 0
	}
	return func(o *options[K]) {
		o.maxKeys = n
	}
}

// WithShardCount 设置分片数量。
// n 必须为 2 的幂，上限 65536，否则 New 返回 [ErrInvalidShardCount]。默认 32。
func WithShardCount[K comparable](n int) Option[K] {
	return func(o *options[K]) {
		o.shardCount = n
	}
}

// WithHash 替换分片哈希函数。传入 nil 被忽略。
func WithHash[K comparable](fn HashFunc[K]) Option[K] {
	return func(o *options[K]) {
		if fn != nil {
			o.hash = fn
		}
	}
}

func (o *options[K]) validate() error {
	sc := o.shardCount
	if sc <= 0 || sc > maxShardCount || sc&(sc-1) != 0 {
		return fmt.Errorf("%w: must be a positive power of 2 (max %d), got %d",
			ErrInvalidShardCount, maxShardCount, sc)
	}
	return nil
}
