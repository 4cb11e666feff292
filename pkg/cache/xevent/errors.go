package xevent

import "errors"

var (
	// ErrNilListener 表示注册配置或监听器为 nil。
	ErrNilListener = errors.New("xevent: nil listener")

	// ErrDuplicateListener 表示同一个 *ListenerConfig 被重复注册。
	ErrDuplicateListener = errors.New("xevent: listener already registered")

	// ErrListenerNotFound 表示注销的配置未注册。
	ErrListenerNotFound = errors.New("xevent: listener not registered")

	// ErrClosed 表示通知器已关闭。
	ErrClosed = errors.New("xevent: notifier closed")
)
