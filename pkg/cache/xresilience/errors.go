package xresilience

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

var (
	// ErrNilLoader 被包装的 Loader 为 nil。
	ErrNilLoader = errors.New("xresilience: nil loader")

	// ErrNilWriter 被包装的 Writer 为 nil。
	ErrNilWriter = errors.New("xresilience: nil writer")

	// ErrNilBreaker 熔断器为 nil。
	ErrNilBreaker = errors.New("xresilience: nil breaker")

	// ErrInvalidAttempts 重试次数必须 >= 1。
	ErrInvalidAttempts = errors.New("xresilience: attempts must be >= 1")
)

// 熔断器状态，与 gobreaker 一致。
type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// BreakerError 表示请求被熔断器拒绝，底层操作没有执行。
type BreakerError struct {
	Name  string
	State State
	Err   error
}

func (e *BreakerError) Error() string {
	return fmt.Sprintf("xresilience: breaker %q is %s: %v", e.Name, e.State, e.Err)
}

func (e *BreakerError) Unwrap() error { return e.Err }

// IsOpen 报告 err 是否表示熔断器拒绝了请求（打开或半开限流）。
func IsOpen(err error) bool {
	var be *BreakerError
	return errors.As(err, &be)
}

func wrapBreakerError(err error, name string, state State) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return &BreakerError{Name: name, State: state, Err: err}
	}
	return err
}
