package xpool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
)

const (
	maxWorkers   = 1 << 16
	maxQueueSize = 1 << 24
)

// Pool 是泛型有界 worker pool。
type Pool[T any] struct {
	handler func(T)
	queue   chan T
	logger  *slog.Logger
	name    string
	workers int

	mu       sync.RWMutex // 保护 stopped 与向 queue 发送的互斥
	stopped  bool
	stopOnce sync.Once
	wg       sync.WaitGroup
	done     chan struct{}
}

// New 创建并启动 pool。
// workers 取值 [1, 65536]，queueSize 取值 [1, 16777216]。
func New[T any](workers, queueSize int, handler func(T), opts ...Option) (*Pool[T], error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if workers < 1 || workers > maxWorkers {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkers, workers)
	}
	if queueSize < 1 || queueSize > maxQueueSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQueueSize, queueSize)
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	p := &Pool[T]{
		handler: handler,
		queue:   make(chan T, queueSize),
		logger:  o.logger,
		name:    o.name,
		workers: workers,
		done:    make(chan struct{}),
	}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p, nil
}

func (p *Pool[T]) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

func (p *Pool[T]) run(task T) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("xpool: task panic recovered",
				slog.String("pool", p.name),
				slog.String("task_type", fmt.Sprintf("%T", task)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	p.handler(task)
}

// Submit 非阻塞地提交任务。
func (p *Pool[T]) Submit(task T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close 停止接收任务并等待全部已提交任务完成。重复调用安全。
func (p *Pool[T]) Close() error {
	return p.Shutdown(context.Background())
}

// Shutdown 停止接收任务并等待已提交任务完成，ctx 结束时提前返回 ctx 错误。
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.queue)
		p.mu.Unlock()
		go func() {
			p.wg.Wait()
			close(p.done)
		}()
	})
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done 返回在所有 worker 退出后关闭的 channel。
func (p *Pool[T]) Done() <-chan struct{} {
	return p.done
}

// Workers 返回 worker 数量。
func (p *Pool[T]) Workers() int {
	return p.workers
}

// Pending 返回队列中等待处理的任务数。
func (p *Pool[T]) Pending() int {
	return len(p.queue)
}

var _ io.Closer = (*Pool[int])(nil)
