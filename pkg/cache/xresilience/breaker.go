package xresilience

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xjcache/pkg/cache/xcache"
)

// Breaker 是可被多个 Loader 与 Writer 共享的熔断器。
// 指向同一后端的加载与写入通常应共享一个 Breaker。
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreaker 创建熔断器。默认连续失败 5 次后打开，30s 后进入半开。
// 上下文取消不计为失败。
func NewBreaker(opts ...BreakerOption) *Breaker {
	o := defaultBreakerOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	threshold := o.failures
	logger := o.logger
	st := gobreaker.Settings{
		Name:        o.name,
		MaxRequests: o.maxRequests,
		Interval:    o.interval,
		Timeout:     o.timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("xresilience: breaker state changed",
				slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	}
	return &Breaker{name: o.name, cb: gobreaker.NewCircuitBreaker[any](st)}
}

// Name 返回熔断器名称。
func (b *Breaker) Name() string { return b.name }

// State 返回当前状态。
func (b *Breaker) State() State { return b.cb.State() }

// Counts 返回当前统计窗口的计数。
func (b *Breaker) Counts() gobreaker.Counts { return b.cb.Counts() }

func execute[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, wrapBreakerError(err, b.name, b.State())
	}
	typed, _ := res.(T)
	return typed, nil
}

// =============================================================================
// Loader
// =============================================================================

type breakerLoader[K comparable, V any] struct {
	inner xcache.Loader[K, V]
	b     *Breaker
}

func (l *breakerLoader[K, V]) Load(ctx context.Context, key K) (V, bool, error) {
	res, err := execute(ctx, l.b, func() (loaded[V], error) {
		v, found, err := l.inner.Load(ctx, key)
		return loaded[V]{value: v, found: found}, err
	})
	return res.value, res.found, err
}

type breakerBatchLoader[K comparable, V any] struct {
	*breakerLoader[K, V]
	batch xcache.BatchLoader[K, V]
}

func (l *breakerBatchLoader[K, V]) LoadAll(ctx context.Context, keys []K) (map[K]V, error) {
	return execute(ctx, l.b, func() (map[K]V, error) {
		return l.batch.LoadAll(ctx, keys)
	})
}

// BreakerLoader 返回受熔断保护的 Loader。熔断打开时返回 *BreakerError，不调用 inner。
func BreakerLoader[K comparable, V any](inner xcache.Loader[K, V], b *Breaker) (xcache.Loader[K, V], error) {
	if inner == nil {
		return nil, ErrNilLoader
	}
	if b == nil {
		return nil, ErrNilBreaker
	}
	l := &breakerLoader[K, V]{inner: inner, b: b}
	if batch, ok := inner.(xcache.BatchLoader[K, V]); ok {
		return &breakerBatchLoader[K, V]{breakerLoader: l, batch: batch}, nil
	}
	return l, nil
}

// =============================================================================
// Writer
// =============================================================================

type breakerWriter[K comparable, V any] struct {
	inner xcache.Writer[K, V]
	b     *Breaker
}

// BreakerWriter 返回受熔断保护的 Writer。
// 熔断打开时批量操作把全部 key 报告为失败。
func BreakerWriter[K comparable, V any](inner xcache.Writer[K, V], b *Breaker) (xcache.Writer[K, V], error) {
	if inner == nil {
		return nil, ErrNilWriter
	}
	if b == nil {
		return nil, ErrNilBreaker
	}
	return &breakerWriter[K, V]{inner: inner, b: b}, nil
}

func (w *breakerWriter[K, V]) Write(ctx context.Context, key K, value V) error {
	_, err := execute(ctx, w.b, func() (struct{}, error) {
		return struct{}{}, w.inner.Write(ctx, key, value)
	})
	return err
}

func (w *breakerWriter[K, V]) Delete(ctx context.Context, key K) error {
	_, err := execute(ctx, w.b, func() (struct{}, error) {
		return struct{}{}, w.inner.Delete(ctx, key)
	})
	return err
}

func (w *breakerWriter[K, V]) WriteAll(ctx context.Context, entries map[K]V) ([]K, error) {
	var failed []K
	_, err := execute(ctx, w.b, func() (struct{}, error) {
		var err error
		failed, err = w.inner.WriteAll(ctx, entries)
		return struct{}{}, err
	})
	return failed, err
}

func (w *breakerWriter[K, V]) DeleteAll(ctx context.Context, keys []K) ([]K, error) {
	var failed []K
	_, err := execute(ctx, w.b, func() (struct{}, error) {
		var err error
		failed, err = w.inner.DeleteAll(ctx, keys)
		return struct{}{}, err
	})
	return failed, err
}
