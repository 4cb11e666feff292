package xevent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"github.com/omeyang/xjcache/internal/xpool"
)

// defaultQueueSize 异步注册的默认队列长度。
const defaultQueueSize = 1024

// Option 配置 Notifier。
type Option func(*options)

type options struct {
	logger    *slog.Logger
	queueSize int
}

// WithLogger 设置日志记录器，默认 slog.Default()。传入 nil 被忽略。
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithQueueSize 设置每个异步注册的队列长度，<= 0 使用默认值 1024。
// 队列满时事件被丢弃并记录告警。
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// delivery 是异步队列中的一项。
type delivery[K comparable, V any] struct {
	ctx context.Context
	ev  Event[K, V]
}

type registration[K comparable, V any] struct {
	id     string
	cfg    *ListenerConfig[K, V]
	caps   Capability
	filter Filter[K, V]
	pool   *xpool.Pool[delivery[K, V]] // 同步注册为 nil
}

// Notifier 管理监听器注册并分发事件。并发安全。
type Notifier[K comparable, V any] struct {
	logger    *slog.Logger
	queueSize int

	mu     sync.RWMutex
	regs   []*registration[K, V]
	closed bool
}

// NewNotifier 创建通知器。
func NewNotifier[K comparable, V any](opts ...Option) *Notifier[K, V] {
	o := options{logger: slog.Default(), queueSize: defaultQueueSize}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Notifier[K, V]{logger: o.logger, queueSize: o.queueSize}
}

// Register 注册监听器，返回注册 ID。
func (n *Notifier[K, V]) Register(cfg *ListenerConfig[K, V]) (string, error) {
	if cfg == nil || cfg.Listener == nil {
		return "", ErrNilListener
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return "", ErrClosed
	}
	for _, r := range n.regs {
		if r.cfg == cfg {
			return "", ErrDuplicateListener
		}
	}

	reg := &registration[K, V]{
		id:     uuid.NewString(),
		cfg:    cfg,
		caps:   cfg.capability(),
		filter: cfg.Filter,
	}
	if !cfg.Synchronous {
		pool, err := xpool.New(1, n.queueSize, func(d delivery[K, V]) {
			n.deliver(d.ctx, reg, d.ev)
		}, xpool.WithLogger(n.logger), xpool.WithName("xevent:"+reg.id))
		if err != nil {
			return "", fmt.Errorf("xevent: start async delivery: %w", err)
		}
		reg.pool = pool
	}

	// 写时复制，Dispatch 持有的快照不受影响
	regs := make([]*registration[K, V], len(n.regs), len(n.regs)+1)
	copy(regs, n.regs)
	n.regs = append(regs, reg)

	n.logger.Debug("xevent: listener registered",
		slog.String("id", reg.id),
		slog.String("capabilities", reg.caps.String()),
		slog.Bool("synchronous", cfg.Synchronous),
	)
	return reg.id, nil
}

// Deregister 注销监听器。异步注册会等待已排队事件投递完成。
func (n *Notifier[K, V]) Deregister(cfg *ListenerConfig[K, V]) error {
	if cfg == nil {
		return ErrNilListener
	}
	n.mu.Lock()
	idx := -1
	for i, r := range n.regs {
		if r.cfg == cfg {
			idx = i
			break
		}
	}
	if idx < 0 {
		n.mu.Unlock()
		return ErrListenerNotFound
	}
	reg := n.regs[idx]
	regs := make([]*registration[K, V], 0, len(n.regs)-1)
	regs = append(regs, n.regs[:idx]...)
	n.regs = append(regs, n.regs[idx+1:]...)
	n.mu.Unlock()

	n.logger.Debug("xevent: listener deregistered", slog.String("id", reg.id))
	if reg.pool != nil {
		return reg.pool.Close()
	}
	return nil
}

// Len 返回当前注册数。
func (n *Notifier[K, V]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.regs)
}

// Configs 返回当前全部注册配置。
func (n *Notifier[K, V]) Configs() []*ListenerConfig[K, V] {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*ListenerConfig[K, V], 0, len(n.regs))
	for _, r := range n.regs {
		out = append(out, r.cfg)
	}
	return out
}

// Dispatch 按顺序分发事件。同步注册在返回前执行完毕。
func (n *Notifier[K, V]) Dispatch(ctx context.Context, events ...Event[K, V]) {
	if len(events) == 0 {
		return
	}
	n.mu.RLock()
	regs := n.regs
	n.mu.RUnlock()
	if len(regs) == 0 {
		return
	}
	// 异步投递不随调用方 ctx 取消
	asyncCtx := context.WithoutCancel(ctx)
	for _, reg := range regs {
		for _, ev := range events {
			if !reg.caps.Accepts(ev.Type) {
				continue
			}
			if !reg.cfg.OldValueRequired {
				ev = ev.withoutOldValue()
			}
			if reg.filter != nil && !n.accept(reg, ev) {
				continue
			}
			if reg.pool == nil {
				n.deliver(ctx, reg, ev)
				continue
			}
			err := reg.pool.Submit(delivery[K, V]{ctx: asyncCtx, ev: ev})
			if err != nil && !errors.Is(err, xpool.ErrPoolStopped) {
				n.logger.Warn("xevent: event dropped",
					slog.String("id", reg.id),
					slog.String("type", ev.Type.String()),
					slog.Any("error", err),
				)
			}
		}
	}
}

func (n *Notifier[K, V]) accept(reg *registration[K, V], ev Event[K, V]) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			n.logPanic(reg, ev, "filter", r)
			ok = false
		}
	}()
	return reg.filter(ev)
}

func (n *Notifier[K, V]) deliver(ctx context.Context, reg *registration[K, V], ev Event[K, V]) {
	defer func() {
		if r := recover(); r != nil {
			n.logPanic(reg, ev, "listener", r)
		}
	}()
	reg.cfg.Listener.OnEvent(ctx, ev)
}

func (n *Notifier[K, V]) logPanic(reg *registration[K, V], ev Event[K, V], where string, r any) {
	n.logger.Error("xevent: "+where+" panic recovered",
		slog.String("id", reg.id),
		slog.String("type", ev.Type.String()),
		slog.Any("panic", r),
		slog.String("stack", string(debug.Stack())),
	)
}

// Close 注销全部监听器，等待异步队列排空。重复调用返回 ErrClosed。
func (n *Notifier[K, V]) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrClosed
	}
	n.closed = true
	regs := n.regs
	n.regs = nil
	n.mu.Unlock()

	var errs []error
	for _, reg := range regs {
		if reg.pool != nil {
			errs = append(errs, reg.pool.Close())
		}
	}
	return errors.Join(errs...)
}
