package xmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/xjcache/pkg/cache/xcache"
	"github.com/omeyang/xjcache/pkg/cache/xstats"
	"github.com/omeyang/xjcache/pkg/cache/xstore"
)

// Managed 是 Manager 对缓存的类型无关视图，*xcache.Cache 实现该接口。
type Managed interface {
	Name() string
	EnableStatistics(enabled bool)
	EnableManagement(enabled bool)
	Stats() (xstats.Snapshot, bool)
	Management() (xcache.Management, bool)
	Clear(ctx context.Context) error
	PurgeExpired(ctx context.Context) (int, error)
	IsClosed() bool
	Close() error
}

// Option 配置 Manager。
type Option func(*options)

type options struct {
	logger       *slog.Logger
	config       *FileConfig
	recorder     func(name string) xstats.Recorder
	sweepTimeout time.Duration
}

// WithLogger 设置日志记录器，同时传给创建的缓存。默认 slog.Default()。
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithConfig 设置初始配置文件内容。
func WithConfig(fc *FileConfig) Option {
	return func(o *options) {
		o.config = fc
	}
}

// WithRecorderFactory 为每个新建缓存按名称创建观测器。
func WithRecorderFactory(fn func(name string) xstats.Recorder) Option {
	return func(o *options) {
		o.recorder = fn
	}
}

// WithSweepTimeout 设置单次定期清理的超时。默认 1 分钟，<= 0 被忽略。
func WithSweepTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sweepTimeout = d
		}
	}
}

// Manager 按名称管理缓存。并发安全。
type Manager struct {
	logger       *slog.Logger
	recorder     func(name string) xstats.Recorder
	sweepTimeout time.Duration
	cron         *cron.Cron

	mu          sync.RWMutex
	caches      map[string]Managed
	config      *FileConfig
	watchers    []*Watcher
	sweeps      map[string]sweepJob
	cronStarted bool
	closed      bool
}

// New 创建 Manager。
func New(opts ...Option) *Manager {
	o := &options{logger: slog.Default(), sweepTimeout: time.Minute}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Manager{
		logger:       o.logger,
		recorder:     o.recorder,
		sweepTimeout: o.sweepTimeout,
		cron:         cron.New(cron.WithParser(sweepParser)),
		caches:       make(map[string]Managed),
		config:       o.config,
		sweeps:       make(map[string]sweepJob),
	}
}

// Create 在 m 中创建名为 name 的缓存。缓存名称由 Manager 设置，
// 配置文件中存在同名缓存时其开关与过期策略覆盖 cfg，
// 并按其 sweep 计划定期清理过期条目。创建失败时不会关闭 store。
func Create[K comparable, V any](m *Manager, name string, store xstore.Store[K, V], cfg xcache.Config[K, V], opts ...xcache.Option) (*xcache.Cache[K, V], error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if _, ok := m.caches[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheExists, name)
	}

	base := []xcache.Option{xcache.WithLogger(m.logger)}
	if m.recorder != nil {
		base = append(base, xcache.WithRecorder(m.recorder(name)))
	}
	cc, hasFile := m.config.Cache(name)
	if hasFile {
		if err := Apply(cc, &cfg); err != nil {
			return nil, fmt.Errorf("cache %q: %w", name, err)
		}
		base = append(base, cc.Options()...)
	}
	opts = append(append(base, opts...), xcache.WithName(name))

	c, err := xcache.New(store, cfg, opts...)
	if err != nil {
		return nil, err
	}
	m.caches[name] = c
	if hasFile {
		// Apply 已校验 sweep 表达式
		_ = m.schedule(name, cc.Sweep)
	}
	m.logger.Info("xmanager: cache created", slog.String("cache", name))
	return c, nil
}

// Get 返回名为 name 的缓存，键值类型必须一致。
func Get[K comparable, V any](m *Manager, name string) (*xcache.Cache[K, V], error) {
	mc, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	c, ok := mc.(*xcache.Cache[K, V])
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeMismatch, name)
	}
	return c, nil
}

// Lookup 返回类型无关的缓存视图。
func (m *Manager) Lookup(name string) (Managed, error) {
	return m.lookup(name)
}

func (m *Manager) lookup(name string) (Managed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	c, ok := m.caches[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheNotFound, name)
	}
	return c, nil
}

// Names 返回已创建缓存的名称，按字典序排列。
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Destroy 清空并关闭缓存，然后从 Manager 中移除。之后可以重新创建同名缓存。
func (m *Manager) Destroy(ctx context.Context, name string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	c, ok := m.caches[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCacheNotFound, name)
	}
	delete(m.caches, name)
	m.unschedule(name)
	m.mu.Unlock()

	err := errors.Join(c.Clear(ctx), c.Close())
	m.logger.Info("xmanager: cache destroyed", slog.String("cache", name), slog.Any("error", err))
	return err
}

// EnableStatistics 切换缓存的统计开关。
func (m *Manager) EnableStatistics(name string, enabled bool) error {
	c, err := m.lookup(name)
	if err != nil {
		return err
	}
	c.EnableStatistics(enabled)
	return nil
}

// EnableManagement 切换缓存的管理视图开关。
func (m *Manager) EnableManagement(name string, enabled bool) error {
	c, err := m.lookup(name)
	if err != nil {
		return err
	}
	c.EnableManagement(enabled)
	return nil
}

// Stats 返回所有开启统计的缓存的快照。
func (m *Manager) Stats() map[string]xstats.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]xstats.Snapshot, len(m.caches))
	for name, c := range m.caches {
		if snap, ok := c.Stats(); ok {
			out[name] = snap
		}
	}
	return out
}

// Config 返回当前配置文件内容，可能为 nil。
func (m *Manager) Config() *FileConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// applyConfig 替换配置，并把统计与管理开关以及清理计划应用到已创建的缓存。
func (m *Manager) applyConfig(fc *FileConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.config = fc
	for name, c := range m.caches {
		cc, ok := fc.Cache(name)
		if !ok {
			m.unschedule(name)
			continue
		}
		if err := m.schedule(name, cc.Sweep); err != nil {
			m.logger.Warn("xmanager: sweep not rescheduled", slog.String("cache", name), slog.Any("error", err))
		}
		c.EnableStatistics(cc.StatisticsEnabled)
		c.EnableManagement(cc.ManagementEnabled)
		m.logger.Debug("xmanager: flags applied", slog.String("cache", name),
			slog.Bool("statistics", cc.StatisticsEnabled), slog.Bool("management", cc.ManagementEnabled))
	}
}

// IsClosed 报告 Manager 是否已关闭。
func (m *Manager) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Close 停止所有 Watcher 与清理任务，然后关闭所有缓存。重复调用为空操作。
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	caches := m.caches
	watchers := m.watchers
	m.caches = make(map[string]Managed)
	m.watchers = nil
	m.sweeps = make(map[string]sweepJob)
	m.mu.Unlock()

	var errs []error
	for _, w := range watchers {
		errs = append(errs, w.Stop())
	}
	// 等待正在执行的清理结束
	<-m.cron.Stop().Done()
	for name, c := range caches {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
