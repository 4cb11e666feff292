package xcache

import (
	"fmt"
	"log/slog"
	"reflect"
	"runtime"

	"github.com/omeyang/xjcache/pkg/cache/xevent"
	"github.com/omeyang/xjcache/pkg/cache/xexpiry"
	"github.com/omeyang/xjcache/pkg/cache/xstats"
	"github.com/omeyang/xjcache/pkg/cache/xstore"
)

// Config 是缓存创建时的配置，创建后不可变。
// StatisticsEnabled 与 ManagementEnabled 可在创建后通过 Cache 的方法切换。
type Config[K comparable, V any] struct {
	// ReadThrough 为 true 时未命中会调用 Loader，要求 Loader 非 nil。
	ReadThrough bool

	// WriteThrough 为 true 时变更会同步调用 Writer，要求 Writer 非 nil。
	WriteThrough bool

	// StoreByValue 为 true 时写入与读出都经过 Copier 复制。
	StoreByValue bool

	// Copier 为 nil 时使用 JSONCopier。
	Copier Copier[V]

	StatisticsEnabled bool
	ManagementEnabled bool

	// ExpiryPolicy 为 nil 时条目永不过期。
	ExpiryPolicy xexpiry.Policy

	Loader Loader[K, V]
	Writer Writer[K, V]

	// Listeners 在创建时注册。
	Listeners []*xevent.ListenerConfig[K, V]

	// Equal 用于条件操作的值比较，nil 时使用 reflect.DeepEqual。
	Equal func(a, b V) bool

	// InvokeAllParallelism 限制 InvokeAll 的并发度，<= 0 时为 GOMAXPROCS。
	InvokeAllParallelism int
}

func (c *Config[K, V]) validate() error {
	if c.ReadThrough && c.Loader == nil {
		return fmt.Errorf("%w: read-through requires a loader", ErrInvalidConfig)
	}
	if c.WriteThrough && c.Writer == nil {
		return fmt.Errorf("%w: write-through requires a writer", ErrInvalidConfig)
	}
	for _, l := range c.Listeners {
		if l == nil || l.Listener == nil {
			return fmt.Errorf("%w: nil listener", ErrInvalidConfig)
		}
	}
	return nil
}

func (c *Config[K, V]) normalize() {
	if c.StoreByValue && c.Copier == nil {
		c.Copier = JSONCopier[V]()
	}
	if c.Equal == nil {
		c.Equal = func(a, b V) bool { return reflect.DeepEqual(a, b) }
	}
	if c.InvokeAllParallelism <= 0 {
		c.InvokeAllParallelism = runtime.GOMAXPROCS(0)
	}
	if c.ExpiryPolicy == nil {
		c.ExpiryPolicy = xexpiry.EternalPolicy()
	}
	c.Listeners = append([]*xevent.ListenerConfig[K, V](nil), c.Listeners...)
}

// Option 配置 Cache 的运行时依赖。
type Option func(*options)

type options struct {
	name              string
	clock             xstore.Clock
	logger            *slog.Logger
	recorder          xstats.Recorder
	ownsStore         bool
	loadAllWorkers    int
	loadAllQueue      int
	listenerQueueSize int
}

func defaultOptions() *options {
	return &options{
		name:           "default",
		clock:          xstore.SystemClock,
		logger:         slog.Default(),
		recorder:       xstats.NoopRecorder{},
		loadAllWorkers: 4,
		loadAllQueue:   256,
	}
}

func (o *options) validate() error {
	if o.loadAllWorkers < 1 || o.loadAllQueue < 1 {
		return fmt.Errorf("%w: loadAll pool %d workers, queue %d", ErrInvalidConfig, o.loadAllWorkers, o.loadAllQueue)
	}
	return nil
}

// WithName 设置缓存名称，用于日志与指标。默认 "default"。
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithClock 设置计算截止时间的时间源，应与存储使用同一时间源。
func WithClock(c xstore.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger 设置日志记录器，默认 slog.Default()。传入 nil 被忽略。
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder 设置操作观测器，默认不记录。
func WithRecorder(r xstats.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithOwnedStore 声明缓存拥有存储，Close 时一并关闭存储。
func WithOwnedStore() Option {
	return func(o *options) {
		o.ownsStore = true
	}
}

// WithLoadAllPool 设置 LoadAll 后台 worker 数与队列长度。默认 4 与 256。
func WithLoadAllPool(workers, queueSize int) Option {
	return func(o *options) {
		o.loadAllWorkers = workers
		o.loadAllQueue = queueSize
	}
}

// WithListenerQueueSize 设置每个异步监听器的队列长度。
func WithListenerQueueSize(n int) Option {
	return func(o *options) {
		o.listenerQueueSize = n
	}
}
