package xmanager

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xjcache/pkg/cache/xstore"
)

// BuildStore 按配置创建以 string 为键的存储。opts 追加在配置推导出的选项之后。
// redis 存储拥有其客户端，关闭存储即关闭客户端。
func BuildStore[V any](sc StoreConfig, opts ...xstore.Option) (xstore.Store[string, V], error) {
	base := make([]xstore.Option, 0, len(opts)+2)
	if sc.LockShards > 0 {
		base = append(base, xstore.WithLockShards(sc.LockShards))
	}
	if sc.KeyPrefix != "" {
		base = append(base, xstore.WithKeyPrefix(sc.KeyPrefix))
	}
	opts = append(base, opts...)

	switch strings.ToLower(sc.Type) {
	case "", "memory":
		s, err := xstore.NewMemory[string, V](opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "lru":
		s, err := xstore.NewLRU[string, V](sc.Size, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidStore, err)
		}
		return s, nil
	case "ristretto":
		cfg := xstore.RistrettoConfig[V]{}
		if sc.Size > 0 {
			cfg.MaxCost = int64(sc.Size)
			cfg.NumCounters = int64(sc.Size) * 10
		}
		s, err := xstore.NewRistretto[string, V](cfg, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		if sc.Addr == "" {
			return nil, fmt.Errorf("%w: redis requires addr", ErrInvalidStore)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     sc.Addr,
			Password: sc.Password,
			DB:       sc.DB,
		})
		if sc.DistributedLockTTL > 0 {
			opts = append([]xstore.Option{xstore.WithDistributedLock(sc.DistributedLockTTL)}, opts...)
		}
		s, err := xstore.NewRedis[V](client, opts...)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidStore, sc.Type)
	}
}
