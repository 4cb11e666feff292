package xresilience

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryOption 配置重试装饰器。
type RetryOption func(*retryOptions)

type retryOptions struct {
	attempts uint
	delay    time.Duration
	maxDelay time.Duration
	retryIf  func(error) bool
	logger   *slog.Logger
}

func defaultRetryOptions() *retryOptions {
	return &retryOptions{
		attempts: 3,
		delay:    50 * time.Millisecond,
		maxDelay: 2 * time.Second,
		retryIf:  Retryable,
		logger:   slog.Default(),
	}
}

func (o *retryOptions) validate() error {
	if o.attempts < 1 {
		return ErrInvalidAttempts
	}
	return nil
}

// WithAttempts 设置总尝试次数（含首次），默认 3。
func WithAttempts(n uint) RetryOption {
	return func(o *retryOptions) {
		o.attempts = n
	}
}

// WithDelay 设置首次重试前的等待时间，之后指数增长。默认 50ms。
func WithDelay(d time.Duration) RetryOption {
	return func(o *retryOptions) {
		if d >= 0 {
			o.delay = d
		}
	}
}

// WithMaxDelay 设置单次等待的上限，默认 2s。
func WithMaxDelay(d time.Duration) RetryOption {
	return func(o *retryOptions) {
		if d > 0 {
			o.maxDelay = d
		}
	}
}

// WithRetryIf 设置错误是否值得重试的判断，默认 Retryable。
func WithRetryIf(fn func(error) bool) RetryOption {
	return func(o *retryOptions) {
		if fn != nil {
			o.retryIf = fn
		}
	}
}

// WithRetryLogger 设置日志记录器，默认 slog.Default()。
func WithRetryLogger(l *slog.Logger) RetryOption {
	return func(o *retryOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Retryable 是默认的重试判断：上下文取消、超时与熔断拒绝不重试。
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !IsOpen(err)
}

// BreakerOption 配置熔断器。
type BreakerOption func(*breakerOptions)

type breakerOptions struct {
	name        string
	maxRequests uint32
	interval    time.Duration
	timeout     time.Duration
	failures    uint32
	logger      *slog.Logger
}

func defaultBreakerOptions() *breakerOptions {
	return &breakerOptions{
		name:        "xjcache",
		maxRequests: 1,
		timeout:     30 * time.Second,
		failures:    5,
		logger:      slog.Default(),
	}
}

// WithBreakerName 设置熔断器名称，用于日志与错误信息。
func WithBreakerName(name string) BreakerOption {
	return func(o *breakerOptions) {
		if name != "" {
			o.name = name
		}
	}
}

// WithMaxRequests 设置半开状态允许通过的请求数，默认 1。
func WithMaxRequests(n uint32) BreakerOption {
	return func(o *breakerOptions) {
		if n > 0 {
			o.maxRequests = n
		}
	}
}

// WithInterval 设置关闭状态下清零计数的周期，0 表示从不清零。
func WithInterval(d time.Duration) BreakerOption {
	return func(o *breakerOptions) {
		if d >= 0 {
			o.interval = d
		}
	}
}

// WithTimeout 设置打开状态持续多久后进入半开，默认 30s。
func WithTimeout(d time.Duration) BreakerOption {
	return func(o *breakerOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithFailureThreshold 设置触发熔断的连续失败次数，默认 5。
func WithFailureThreshold(n uint32) BreakerOption {
	return func(o *breakerOptions) {
		if n > 0 {
			o.failures = n
		}
	}
}

// WithBreakerLogger 设置日志记录器，默认 slog.Default()。
func WithBreakerLogger(l *slog.Logger) BreakerOption {
	return func(o *breakerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
