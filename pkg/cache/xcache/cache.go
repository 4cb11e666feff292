package xcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/omeyang/xjcache/internal/xpool"
	"github.com/omeyang/xjcache/pkg/cache/xevent"
	"github.com/omeyang/xjcache/pkg/cache/xexpiry"
	"github.com/omeyang/xjcache/pkg/cache/xstats"
	"github.com/omeyang/xjcache/pkg/cache/xstore"
)

// Cache 是位于调用方与后端存储之间的缓存门面。并发安全。
//
// 同一 key 上的变更严格串行；不同 key 之间无顺序保证。
// 批量操作只对单个 key 原子。
type Cache[K comparable, V any] struct {
	name     string
	cfg      Config[K, V]
	store    xstore.Store[K, V]
	clock    xstore.Clock
	logger   *slog.Logger
	recorder xstats.Recorder
	notifier *xevent.Notifier[K, V]
	loadPool *xpool.Pool[func()]

	ownsStore bool
	closed    atomic.Bool

	stats             xstats.Stats
	statisticsEnabled atomic.Bool
	managementEnabled atomic.Bool
}

// New 创建缓存。store 不能为 nil；cfg 在创建时校验并复制。
func New[K comparable, V any](store xstore.Store[K, V], cfg Config[K, V], opts ...Option) (*Cache[K, V], error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.normalize()

	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	logger := o.logger.With(slog.String("cache", o.name))
	pool, err := xpool.New(o.loadAllWorkers, o.loadAllQueue, func(task func()) { task() },
		xpool.WithLogger(logger), xpool.WithName(o.name+":loadAll"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	c := &Cache[K, V]{
		name:      o.name,
		cfg:       cfg,
		store:     store,
		clock:     o.clock,
		logger:    logger,
		recorder:  o.recorder,
		notifier:  xevent.NewNotifier[K, V](xevent.WithLogger(logger), xevent.WithQueueSize(o.listenerQueueSize)),
		loadPool:  pool,
		ownsStore: o.ownsStore,
	}
	c.statisticsEnabled.Store(cfg.StatisticsEnabled)
	c.managementEnabled.Store(cfg.ManagementEnabled)

	for _, l := range cfg.Listeners {
		if _, err := c.notifier.Register(l); err != nil {
			_ = c.notifier.Close()
			_ = pool.Close()
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return c, nil
}

// Name 返回缓存名称。
func (c *Cache[K, V]) Name() string { return c.name }

// Store 返回后端存储。
func (c *Cache[K, V]) Store() xstore.Store[K, V] { return c.store }

// Config 返回配置副本，Listeners 为当前已注册的监听器，
// 统计与管理开关为当前值。
func (c *Cache[K, V]) Config() Config[K, V] {
	cfg := c.cfg
	cfg.Listeners = c.notifier.Configs()
	cfg.StatisticsEnabled = c.statisticsEnabled.Load()
	cfg.ManagementEnabled = c.managementEnabled.Load()
	return cfg
}

// RegisterListener 注册监听器。
func (c *Cache[K, V]) RegisterListener(l *xevent.ListenerConfig[K, V]) error {
	if c.closed.Load() {
		return ErrClosed
	}
	id, err := c.notifier.Register(l)
	if errors.Is(err, xevent.ErrClosed) {
		return ErrClosed
	}
	if err == nil {
		c.logger.Info("xcache: listener registered", slog.String("id", id))
	}
	return err
}

// DeregisterListener 注销监听器。
func (c *Cache[K, V]) DeregisterListener(l *xevent.ListenerConfig[K, V]) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.notifier.Deregister(l)
}

// EnableStatistics 切换统计开关。关闭期间计数器保持不变。
func (c *Cache[K, V]) EnableStatistics(enabled bool) {
	c.statisticsEnabled.Store(enabled)
}

// EnableManagement 切换管理视图开关。
func (c *Cache[K, V]) EnableManagement(enabled bool) {
	c.managementEnabled.Store(enabled)
}

// Stats 返回统计快照。统计关闭时返回 ok=false。
func (c *Cache[K, V]) Stats() (xstats.Snapshot, bool) {
	if !c.statisticsEnabled.Load() {
		return xstats.Snapshot{}, false
	}
	return c.stats.Snapshot(), true
}

// ClearStatistics 清零统计计数器。
func (c *Cache[K, V]) ClearStatistics() {
	c.stats.Reset()
}

// Management 是缓存配置的只读管理视图。LockedKeys 是本进程内持有或等待锁的 key 数。
type Management struct {
	Name              string `json:"name"`
	KeyType           string `json:"key_type"`
	ValueType         string `json:"value_type"`
	ReadThrough       bool   `json:"read_through"`
	WriteThrough      bool   `json:"write_through"`
	StoreByValue      bool   `json:"store_by_value"`
	StatisticsEnabled bool   `json:"statistics_enabled"`
	ManagementEnabled bool   `json:"management_enabled"`
	LockedKeys        int    `json:"locked_keys"`
}

// Management 返回管理视图。管理关闭时返回 ok=false。
func (c *Cache[K, V]) Management() (Management, bool) {
	if !c.managementEnabled.Load() {
		return Management{}, false
	}
	return Management{
		Name:              c.name,
		KeyType:           reflect.TypeFor[K]().String(),
		ValueType:         reflect.TypeFor[V]().String(),
		ReadThrough:       c.cfg.ReadThrough,
		WriteThrough:      c.cfg.WriteThrough,
		StoreByValue:      c.cfg.StoreByValue,
		StatisticsEnabled: c.statisticsEnabled.Load(),
		ManagementEnabled: true,
		LockedKeys:        c.store.LockedKeys(),
	}, true
}

// IsClosed 报告缓存是否已关闭。
func (c *Cache[K, V]) IsClosed() bool { return c.closed.Load() }

// Close 关闭缓存：等待进行中的 LoadAll，排空异步监听器，
// 并在 WithOwnedStore 时关闭存储。重复调用为空操作。
func (c *Cache[K, V]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	errs := []error{c.loadPool.Close(), c.notifier.Close()}
	if c.ownsStore {
		errs = append(errs, c.store.Close())
	}
	c.logger.Debug("xcache: closed")
	return errors.Join(errs...)
}

// =============================================================================
// 内部工具
// =============================================================================

func (c *Cache[K, V]) statsOn() bool { return c.statisticsEnabled.Load() }

func (c *Cache[K, V]) now() time.Time { return c.clock.Now() }

// checkKey 校验 key 并检查缓存状态。
func (c *Cache[K, V]) checkKey(key K) error {
	if isNil(key) {
		return ErrNullKey
	}
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (c *Cache[K, V]) checkKeys(keys []K) error {
	for _, k := range keys {
		if isNil(k) {
			return ErrNullKey
		}
	}
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

// lock 获取 key 锁。
func (c *Cache[K, V]) lock(ctx context.Context, key K) (xstore.Unlock, error) {
	unlock, err := c.store.Lock(ctx, key)
	if errors.Is(err, xstore.ErrClosed) {
		return nil, ErrClosed
	}
	return unlock, err
}

// copyIn 按值存储时复制写入值。
func (c *Cache[K, V]) copyIn(v V) (V, error) {
	if !c.cfg.StoreByValue {
		return v, nil
	}
	out, err := c.cfg.Copier.Copy(v)
	if err != nil {
		return out, fmt.Errorf("xcache: copy value: %w", err)
	}
	return out, nil
}

// copyOut 按值存储时复制读出值。
func (c *Cache[K, V]) copyOut(v V) (V, error) {
	return c.copyIn(v)
}

// events 收集持锁期间产生的事件，解锁后统一分发。
type events[K comparable, V any] []xevent.Event[K, V]

func (e *events[K, V]) add(t xevent.Type, key K, value, old V, hasOld bool) {
	*e = append(*e, xevent.Event[K, V]{Type: t, Key: key, Value: value, OldValue: old, HasOldValue: hasOld})
}

func (c *Cache[K, V]) dispatch(ctx context.Context, evs events[K, V]) {
	if len(evs) > 0 {
		c.notifier.Dispatch(ctx, evs...)
	}
}

// live 在持锁期间读取有效条目。已过期条目被删除并记录 Expired 事件。
func (c *Cache[K, V]) live(ctx context.Context, key K, evs *events[K, V]) (xstore.Entry[K, V], bool, error) {
	e, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return xstore.Entry[K, V]{}, false, err
	}
	if e.Expired(c.now()) {
		if err := c.expire(ctx, e, evs); err != nil {
			return xstore.Entry[K, V]{}, false, err
		}
		return xstore.Entry[K, V]{}, false, nil
	}
	return e, true, nil
}

// expire 删除过期条目。过期不经过 Writer。
func (c *Cache[K, V]) expire(ctx context.Context, e xstore.Entry[K, V], evs *events[K, V]) error {
	if _, err := c.store.Remove(ctx, e.Key); err != nil {
		return err
	}
	evs.add(xevent.Expired, e.Key, e.Value, e.Value, true)
	if c.statsOn() {
		c.stats.RecordEvictions(1)
	}
	return nil
}

// access 对已存在的条目应用访问过期决策。
func (c *Cache[K, V]) access(ctx context.Context, e xstore.Entry[K, V], evs *events[K, V]) error {
	d := xexpiry.For(c.cfg.ExpiryPolicy, xexpiry.EventAccess)
	switch {
	case d.IsUnchanged():
		return nil
	case d.IsImmediate():
		return c.expire(ctx, e, evs)
	default:
		return c.store.Touch(ctx, e.Key, d.ExpireAt(c.now(), e.ExpireAt))
	}
}

// put 在持锁期间执行写入协议。old/existed 为当前有效条目。
// writeThrough 为 false 时跳过 Writer（加载路径或已批量写出）。
// 返回值表示条目是否实际写入存储。
func (c *Cache[K, V]) put(ctx context.Context, key K, value V, old xstore.Entry[K, V], existed, writeThrough bool, evs *events[K, V]) (bool, error) {
	ev := xexpiry.EventCreation
	if existed {
		ev = xexpiry.EventUpdate
	}
	d := xexpiry.For(c.cfg.ExpiryPolicy, ev)

	if d.IsImmediate() {
		if writeThrough {
			if err := c.cfg.Writer.Write(ctx, key, value); err != nil {
				return false, writerError(err, key)
			}
		}
		if existed {
			// 更新即过期：条目移出缓存，不再调用 Writer.Delete
			return false, c.expire(ctx, old, evs)
		}
		return false, nil
	}

	if err := c.store.Put(ctx, key, value, d.ExpireAt(c.now(), old.ExpireAt)); err != nil {
		return false, err
	}
	if writeThrough {
		if err := c.cfg.Writer.Write(ctx, key, value); err != nil {
			c.rollback(ctx, key, old, existed)
			return false, writerError(err, key)
		}
	}
	if existed {
		evs.add(xevent.Updated, key, value, old.Value, true)
	} else {
		var zero V
		evs.add(xevent.Created, key, value, zero, false)
	}
	return true, nil
}

// remove 在持锁期间执行删除协议。
func (c *Cache[K, V]) remove(ctx context.Context, old xstore.Entry[K, V], writeThrough bool, evs *events[K, V]) error {
	if _, err := c.store.Remove(ctx, old.Key); err != nil {
		return err
	}
	if writeThrough {
		if err := c.cfg.Writer.Delete(ctx, old.Key); err != nil {
			c.rollback(ctx, old.Key, old, true)
			return writerError(err, old.Key)
		}
	}
	evs.add(xevent.Removed, old.Key, old.Value, old.Value, true)
	return nil
}

// deleteAbsent 对缓存中不存在的 key 仍通知 Writer 删除。
func (c *Cache[K, V]) deleteAbsent(ctx context.Context, key K) error {
	if !c.cfg.WriteThrough {
		return nil
	}
	if err := c.cfg.Writer.Delete(ctx, key); err != nil {
		return writerError(err, key)
	}
	return nil
}

// rollback 把 key 恢复到写入前的状态。
func (c *Cache[K, V]) rollback(ctx context.Context, key K, old xstore.Entry[K, V], existed bool) {
	var err error
	if existed {
		err = c.store.Restore(ctx, old)
	} else {
		_, err = c.store.Remove(ctx, key)
	}
	if err != nil {
		c.logger.Error("xcache: rollback failed",
			slog.Any("key", key),
			slog.Bool("existed", existed),
			slog.Any("error", err),
		)
	}
}

// loadValue 调用 Loader 并记录加载观测，失败包装为 *LoaderError。
// found=false 表示 Loader 没有数据。返回的值尚未按值复制。
func (c *Cache[K, V]) loadValue(ctx context.Context, key K) (V, bool, error) {
	ctx, span := c.recorder.Start(ctx, xstats.OpLoad)
	v, found, err := c.cfg.Loader.Load(ctx, key)
	var zero V
	switch {
	case err != nil:
		span.End(xstats.OutcomeError, err)
		return zero, false, asLoaderError(key, err)
	case !found || isNil(v):
		span.End(xstats.OutcomeMiss, nil)
		return zero, false, nil
	}
	span.End(xstats.OutcomeOK, nil)
	return v, true, nil
}

// load 在持锁期间调用 Loader 并以创建语义写入，不经过 Writer。
func (c *Cache[K, V]) load(ctx context.Context, key K, evs *events[K, V]) (V, bool, error) {
	v, found, err := c.loadValue(ctx, key)
	if err != nil || !found {
		return v, false, err
	}
	if v, err = c.copyIn(v); err != nil {
		return v, false, err
	}
	if _, err := c.put(ctx, key, v, xstore.Entry[K, V]{}, false, false, evs); err != nil {
		return v, false, err
	}
	return v, true, nil
}

func asLoaderError[K comparable](key K, err error) error {
	var le *LoaderError
	if errors.As(err, &le) {
		return err
	}
	return &LoaderError{Key: key, Err: err}
}

// joinErrs 合并错误，只有一个时原样返回。
func joinErrs(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

// isNil 报告 v 是否为 nil 接口或 nil 的指针、map、slice、func、channel。
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}

// outcome 把 (found, err) 映射为观测结果。
func outcome(found bool, err error) xstats.Outcome {
	switch {
	case err != nil:
		return xstats.OutcomeError
	case found:
		return xstats.OutcomeHit
	default:
		return xstats.OutcomeMiss
	}
}

func writeOutcome(changed bool, err error) xstats.Outcome {
	switch {
	case err != nil:
		return xstats.OutcomeError
	case changed:
		return xstats.OutcomeOK
	default:
		return xstats.OutcomeNoop
	}
}
