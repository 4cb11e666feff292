package xresilience

import (
	"context"
	"log/slog"

	retry "github.com/avast/retry-go/v5"

	"github.com/omeyang/xjcache/pkg/cache/xcache"
)

// retrier 保存构建 retry-go 选项所需的配置，可被并发使用。
type retrier struct {
	opts *retryOptions
}

func newRetrier(opts []RetryOption) (*retrier, error) {
	o := defaultRetryOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &retrier{opts: o}, nil
}

// options 每次调用重新构建，retry-go 的 Retrier 不跨调用复用。
func (r *retrier) options(ctx context.Context, op string) []retry.Option {
	o := r.opts
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(o.attempts),
		retry.Delay(o.delay),
		retry.MaxDelay(o.maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(o.retryIf),
		retry.OnRetry(func(n uint, err error) {
			o.logger.Debug("xresilience: retrying",
				slog.String("op", op), slog.Uint64("attempt", uint64(n)+1), slog.Any("error", err))
		}),
	}
}

func (r *retrier) do(ctx context.Context, op string, fn func() error) error {
	return retry.New(r.options(ctx, op)...).Do(fn)
}

func retryData[T any](ctx context.Context, r *retrier, op string, fn func() (T, error)) (T, error) {
	return retry.NewWithData[T](r.options(ctx, op)...).Do(fn)
}

// =============================================================================
// Loader
// =============================================================================

type loaded[V any] struct {
	value V
	found bool
}

type retryLoader[K comparable, V any] struct {
	inner xcache.Loader[K, V]
	r     *retrier
}

func (l *retryLoader[K, V]) Load(ctx context.Context, key K) (V, bool, error) {
	res, err := retryData(ctx, l.r, "load", func() (loaded[V], error) {
		v, found, err := l.inner.Load(ctx, key)
		return loaded[V]{value: v, found: found}, err
	})
	return res.value, res.found, err
}

type retryBatchLoader[K comparable, V any] struct {
	*retryLoader[K, V]
	batch xcache.BatchLoader[K, V]
}

func (l *retryBatchLoader[K, V]) LoadAll(ctx context.Context, keys []K) (map[K]V, error) {
	return retryData(ctx, l.r, "loadAll", func() (map[K]V, error) {
		return l.batch.LoadAll(ctx, keys)
	})
}

// RetryLoader 返回失败时重试的 Loader。found=false 不是失败，不会重试。
func RetryLoader[K comparable, V any](inner xcache.Loader[K, V], opts ...RetryOption) (xcache.Loader[K, V], error) {
	if inner == nil {
		return nil, ErrNilLoader
	}
	r, err := newRetrier(opts)
	if err != nil {
		return nil, err
	}
	l := &retryLoader[K, V]{inner: inner, r: r}
	if batch, ok := inner.(xcache.BatchLoader[K, V]); ok {
		return &retryBatchLoader[K, V]{retryLoader: l, batch: batch}, nil
	}
	return l, nil
}

// =============================================================================
// Writer
// =============================================================================

type retryWriter[K comparable, V any] struct {
	inner xcache.Writer[K, V]
	r     *retrier
}

// RetryWriter 返回失败时重试的 Writer。
func RetryWriter[K comparable, V any](inner xcache.Writer[K, V], opts ...RetryOption) (xcache.Writer[K, V], error) {
	if inner == nil {
		return nil, ErrNilWriter
	}
	r, err := newRetrier(opts)
	if err != nil {
		return nil, err
	}
	return &retryWriter[K, V]{inner: inner, r: r}, nil
}

func (w *retryWriter[K, V]) Write(ctx context.Context, key K, value V) error {
	return w.r.do(ctx, "write", func() error {
		return w.inner.Write(ctx, key, value)
	})
}

func (w *retryWriter[K, V]) Delete(ctx context.Context, key K) error {
	return w.r.do(ctx, "delete", func() error {
		return w.inner.Delete(ctx, key)
	})
}

// WriteAll 每次重试只提交上次失败的条目。
func (w *retryWriter[K, V]) WriteAll(ctx context.Context, entries map[K]V) ([]K, error) {
	pending := entries
	err := w.r.do(ctx, "writeAll", func() error {
		failed, err := w.inner.WriteAll(ctx, pending)
		if err != nil {
			pending = narrowMap(pending, failed)
		}
		return err
	})
	if err == nil {
		return nil, nil
	}
	failed := make([]K, 0, len(pending))
	for k := range pending {
		failed = append(failed, k)
	}
	return failed, err
}

// DeleteAll 每次重试只提交上次失败的 key。
func (w *retryWriter[K, V]) DeleteAll(ctx context.Context, keys []K) ([]K, error) {
	pending := keys
	err := w.r.do(ctx, "deleteAll", func() error {
		failed, err := w.inner.DeleteAll(ctx, pending)
		if err != nil {
			pending = narrowKeys(pending, failed)
		}
		return err
	})
	if err == nil {
		return nil, nil
	}
	return pending, err
}

// narrowMap 保留 failed 中的条目；failed 为空或全部未知时视为全部失败。
func narrowMap[K comparable, V any](entries map[K]V, failed []K) map[K]V {
	next := make(map[K]V, len(failed))
	for _, k := range failed {
		if v, ok := entries[k]; ok {
			next[k] = v
		}
	}
	if len(next) == 0 {
		return entries
	}
	return next
}

func narrowKeys[K comparable](keys, failed []K) []K {
	known := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		known[k] = struct{}{}
	}
	next := make([]K, 0, len(failed))
	for _, k := range failed {
		if _, ok := known[k]; ok {
			next = append(next, k)
			delete(known, k)
		}
	}
	if len(next) == 0 {
		return keys
	}
	return next
}
