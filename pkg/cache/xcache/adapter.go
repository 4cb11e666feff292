package xcache

import (
	"context"

	"github.com/omeyang/xjcache/pkg/util/xjson"
)

// Loader 在读穿透时从外部数据源加载值。
// found=false 表示数据源中没有该 key，不是错误。
type Loader[K comparable, V any] interface {
	Load(ctx context.Context, key K) (value V, found bool, err error)
}

// BatchLoader 由支持批量加载的 Loader 实现，GetAll 与 LoadAll 优先使用。
// 返回的 map 只包含找到的 key。
type BatchLoader[K comparable, V any] interface {
	Loader[K, V]
	LoadAll(ctx context.Context, keys []K) (map[K]V, error)
}

// LoaderFunc 将函数适配为 Loader。
type LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, bool, error)

// Load 实现 Loader。
func (f LoaderFunc[K, V]) Load(ctx context.Context, key K) (V, bool, error) {
	return f(ctx, key)
}

// Writer 在写穿透时把变更同步到外部数据源。
//
// WriteAll 与 DeleteAll 返回失败的 key；err 非 nil 且 failed 为空时视为全部失败。
type Writer[K comparable, V any] interface {
	Write(ctx context.Context, key K, value V) error
	WriteAll(ctx context.Context, entries map[K]V) (failed []K, err error)
	Delete(ctx context.Context, key K) error
	DeleteAll(ctx context.Context, keys []K) (failed []K, err error)
}

// Copier 复制值，用于按值存储。
type Copier[V any] interface {
	Copy(v V) (V, error)
}

// CopierFunc 将函数适配为 Copier。
type CopierFunc[V any] func(v V) (V, error)

// Copy 实现 Copier。
func (f CopierFunc[V]) Copy(v V) (V, error) { return f(v) }

// JSONCopier 返回通过 JSON 往返复制值的 Copier。
func JSONCopier[V any]() Copier[V] {
	return CopierFunc[V](xjson.Clone[V])
}
