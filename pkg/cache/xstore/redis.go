package xstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const (
	// scanBatch 单次 SCAN 的建议返回数。
	scanBatch = 256

	// lockNamespace 是分布式锁 key 的固定前缀，不参与 Keys 枚举。
	lockNamespace = "xjcache-lock:"

	// lockTries 单次 redsync 获取的最大尝试次数，外层循环直到 ctx 结束。
	lockTries = 4
)

// redisRecord 是条目在 Redis 中的 JSON 表示。
type redisRecord[V any] struct {
	Value    V         `json:"v"`
	Created  time.Time `json:"c"`
	Updated  time.Time `json:"u"`
	Accessed time.Time `json:"a"`
	ExpireAt time.Time `json:"e,omitzero"`
}

// Redis 是基于 redis/go-redis/v9 的存储，key 类型固定为 string。
//
// 每个条目存为一个 JSON 字符串，截止时间映射为 PX 过期，
// 到期条目由 Redis 原生删除（不产生事件）。Keys 使用 SCAN 按前缀枚举。
// 默认 key 锁是进程内锁；使用 WithDistributedLock 时在进程内锁之上
// 再获取 redsync 互斥锁，为共享同一前缀的多个进程提供互斥。
type Redis[V any] struct {
	keyLocks[string]

	client redis.UniversalClient
	prefix string
	clock  Clock
	logger *slog.Logger
	closed atomic.Bool

	rs        *redsync.Redsync
	lockTTL   time.Duration
	lockRetry time.Duration
}

// NewRedis 创建 Redis 存储。client 必须已初始化，Close 时一并关闭。
func NewRedis[V any](client redis.UniversalClient, opts ...Option) (*Redis[V], error) {
	if client == nil {
		return nil, ErrNilClient
	}
	o := applyOptions(opts)
	if o.distLock && o.distLockTTL <= 0 {
		return nil, ErrInvalidLockTTL
	}
	kl, err := newLocker[string](o)
	if err != nil {
		return nil, err
	}
	s := &Redis[V]{
		keyLocks: keyLocks[string]{kl: kl},
		client:   client,
		prefix:   o.keyPrefix,
		clock:    o.clock,
		logger:   o.logger,
	}
	if o.distLock {
		s.rs = redsync.New(goredis.NewPool(client))
		s.lockTTL = o.distLockTTL
		s.lockRetry = o.distLockRetry
	}
	return s, nil
}

// Distributed 报告是否启用了跨进程 key 锁。
func (s *Redis[V]) Distributed() bool {
	return s.rs != nil
}

// Lock 获取 key 锁。启用分布式锁时先取进程内锁，再取 redsync 锁，
// 进程内的竞争不会打到 Redis。
func (s *Redis[V]) Lock(ctx context.Context, key string) (Unlock, error) {
	unlock, err := s.keyLocks.Lock(ctx, key)
	if err != nil || s.rs == nil {
		return unlock, err
	}
	m := s.rs.NewMutex(s.lockKey(key),
		redsync.WithExpiry(s.lockTTL),
		redsync.WithTries(lockTries),
		redsync.WithRetryDelay(s.lockRetry),
	)
	if err := s.acquire(ctx, m); err != nil {
		unlock()
		return nil, err
	}
	return s.release(m, key, unlock), nil
}

// TryLock 尝试获取 key 锁，进程内锁或 redsync 锁被占用时返回 ok=false。
func (s *Redis[V]) TryLock(ctx context.Context, key string) (Unlock, bool, error) {
	unlock, ok, err := s.keyLocks.TryLock(ctx, key)
	if err != nil || !ok || s.rs == nil {
		return unlock, ok, err
	}
	m := s.rs.NewMutex(s.lockKey(key), redsync.WithExpiry(s.lockTTL))
	if err := m.TryLockContext(ctx); err != nil {
		unlock()
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %w", ErrLockFailed, err)
	}
	return s.release(m, key, unlock), true, nil
}

// release 返回先释放 redsync 锁、再释放进程内锁的 Unlock。
func (s *Redis[V]) release(m *redsync.Mutex, key string, unlock Unlock) Unlock {
	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		// 调用方的 ctx 可能已结束，释放不能依赖它
		if ok, err := m.UnlockContext(context.Background()); err != nil || !ok {
			s.logger.Warn("xstore: distributed unlock failed",
				slog.String("key", key), slog.Any("error", err))
		}
		unlock()
	}
}

// acquire 循环尝试获取 redsync 锁，直到成功或 ctx 结束。
func (s *Redis[V]) acquire(ctx context.Context, m *redsync.Mutex) error {
	for {
		if s.closed.Load() {
			return ErrClosed
		}
		err := m.LockContext(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var taken *redsync.ErrTaken
		if !errors.As(err, &taken) && !errors.Is(err, redsync.ErrFailed) {
			return fmt.Errorf("%w: %w", ErrLockFailed, err)
		}
	}
}

func (s *Redis[V]) lockKey(key string) string {
	return lockNamespace + s.prefix + key
}

// Client 返回底层 go-redis 客户端。
func (s *Redis[V]) Client() redis.UniversalClient {
	return s.client
}

func (s *Redis[V]) redisKey(key string) string {
	return s.prefix + key
}

func (s *Redis[V]) read(ctx context.Context, key string) (redisRecord[V], bool, error) {
	var rec redisRecord[V]
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, false, fmt.Errorf("%w: decode %q: %w", ErrCodec, key, err)
	}
	return rec, true, nil
}

// write 写入记录。截止时间已过时直接删除。
func (s *Redis[V]) write(ctx context.Context, key string, rec redisRecord[V]) error {
	var ttl time.Duration
	if !rec.ExpireAt.IsZero() {
		ttl = rec.ExpireAt.Sub(s.clock.Now())
		if ttl <= 0 {
			return s.client.Del(ctx, s.redisKey(key)).Err()
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %w", ErrCodec, key, err)
	}
	return s.client.Set(ctx, s.redisKey(key), data, ttl).Err()
}

func (s *Redis[V]) Get(ctx context.Context, key string) (Entry[string, V], bool, error) {
	if s.closed.Load() {
		return Entry[string, V]{}, false, ErrClosed
	}
	rec, ok, err := s.read(ctx, key)
	if err != nil || !ok {
		return Entry[string, V]{}, false, err
	}
	return Entry[string, V]{
		Key:      key,
		Value:    rec.Value,
		Created:  rec.Created,
		Updated:  rec.Updated,
		Accessed: rec.Accessed,
		ExpireAt: rec.ExpireAt,
	}, true, nil
}

func (s *Redis[V]) Put(ctx context.Context, key string, value V, expireAt time.Time) error {
	if s.closed.Load() {
		return ErrClosed
	}
	now := s.clock.Now()
	created := now
	if old, ok, err := s.read(ctx, key); err == nil && ok {
		created = old.Created
	} else if err != nil && !errors.Is(err, ErrCodec) {
		return err
	}
	return s.write(ctx, key, redisRecord[V]{
		Value:    value,
		Created:  created,
		Updated:  now,
		Accessed: now,
		ExpireAt: expireAt,
	})
}

func (s *Redis[V]) Restore(ctx context.Context, entry Entry[string, V]) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.write(ctx, entry.Key, redisRecord[V]{
		Value:    entry.Value,
		Created:  entry.Created,
		Updated:  entry.Updated,
		Accessed: entry.Accessed,
		ExpireAt: entry.ExpireAt,
	})
}

func (s *Redis[V]) Touch(ctx context.Context, key string, expireAt time.Time) error {
	if s.closed.Load() {
		return ErrClosed
	}
	rec, ok, err := s.read(ctx, key)
	if err != nil || !ok {
		return err
	}
	rec.Accessed = s.clock.Now()
	rec.ExpireAt = expireAt
	return s.write(ctx, key, rec)
}

func (s *Redis[V]) Remove(ctx context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	n, err := s.client.Del(ctx, s.redisKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Redis[V]) Contains(ctx context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	n, err := s.client.Exists(ctx, s.redisKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Keys 通过 SCAN 枚举前缀下的 key，返回去掉前缀后的结果。
func (s *Redis[V]) Keys(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var keys []string
	seen := make(map[string]struct{})
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		raw := iter.Val()
		if strings.HasPrefix(raw, lockNamespace) {
			continue
		}
		k := strings.TrimPrefix(raw, s.prefix)
		// SCAN 在 rehash 期间可能重复返回同一 key
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Redis[V]) Len(ctx context.Context) (int, error) {
	keys, err := s.Keys(ctx)
	return len(keys), err
}

// Clear 删除前缀下的全部 key。
func (s *Redis[V]) Clear(ctx context.Context) error {
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		batch := make([]string, 0, end-start)
		for _, k := range keys[start:end] {
			batch = append(batch, s.redisKey(k))
		}
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return err
		}
	}
	s.logger.Debug("xstore: redis cleared", slog.String("prefix", s.prefix), slog.Int("keys", len(keys)))
	return nil
}

// Close 关闭 key 锁与底层客户端。
func (s *Redis[V]) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return errors.Join(s.kl.Close(), s.client.Close())
}

var _ Store[string, int] = (*Redis[int])(nil)
