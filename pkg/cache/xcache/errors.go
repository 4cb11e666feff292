package xcache

import (
	"errors"
	"fmt"

	"github.com/omeyang/xjcache/pkg/cache/xevent"
)

var (
	// ErrNullKey 表示 key 为 nil（nil 接口、nil 指针、map、slice、func 或 channel）。
	ErrNullKey = errors.New("xcache: null key")

	// ErrNullValue 表示 value 为 nil。
	ErrNullValue = errors.New("xcache: null value")

	// ErrClosed 表示缓存已关闭。
	ErrClosed = errors.New("xcache: cache closed")

	// ErrInvalidConfig 表示缓存配置无效。
	ErrInvalidConfig = errors.New("xcache: invalid config")

	// ErrIteratorState 表示迭代器状态不允许当前操作，如 Next 之前调用 Remove。
	ErrIteratorState = errors.New("xcache: illegal iterator state")

	// ErrLoadAllRejected 表示 LoadAll 任务因后台队列已满被拒绝。
	ErrLoadAllRejected = errors.New("xcache: loadAll rejected")

	// ErrDuplicateListener 表示监听器配置已注册。
	ErrDuplicateListener = xevent.ErrDuplicateListener

	// ErrListenerNotFound 表示监听器配置未注册。
	ErrListenerNotFound = xevent.ErrListenerNotFound
)

// LoaderError 包装 Loader 返回的错误。
type LoaderError struct {
	Key any
	Err error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("xcache: load %v: %v", e.Key, e.Err)
}

func (e *LoaderError) Unwrap() error { return e.Err }

// WriterError 包装 Writer 返回的错误，Keys 为写入或删除失败的 key。
// 失败的变更已在缓存中回滚。
type WriterError struct {
	Keys []any
	Err  error
}

func (e *WriterError) Error() string {
	if len(e.Keys) == 1 {
		return fmt.Sprintf("xcache: write %v: %v", e.Keys[0], e.Err)
	}
	return fmt.Sprintf("xcache: write %d keys: %v", len(e.Keys), e.Err)
}

func (e *WriterError) Unwrap() error { return e.Err }

// EntryProcessorError 包装条目处理器返回的错误或 panic。
type EntryProcessorError struct {
	Key any
	Err error
}

func (e *EntryProcessorError) Error() string {
	return fmt.Sprintf("xcache: entry processor %v: %v", e.Key, e.Err)
}

func (e *EntryProcessorError) Unwrap() error { return e.Err }

// isCacheError 报告 err 是否已是缓存自身的错误，这类错误从处理器原样透出。
func isCacheError(err error) bool {
	var (
		le *LoaderError
		we *WriterError
		pe *EntryProcessorError
	)
	return errors.As(err, &le) || errors.As(err, &we) || errors.As(err, &pe) ||
		errors.Is(err, ErrNullKey) || errors.Is(err, ErrNullValue) || errors.Is(err, ErrClosed)
}

func writerError[K comparable](err error, keys ...K) *WriterError {
	anyKeys := make([]any, len(keys))
	for i, k := range keys {
		anyKeys[i] = k
	}
	return &WriterError{Keys: anyKeys, Err: err}
}
