package xstore

import "errors"

var (
	// ErrClosed 表示存储已关闭。
	ErrClosed = errors.New("xstore: closed")

	// ErrNilClient 表示传入的后端客户端为 nil。
	ErrNilClient = errors.New("xstore: nil client")

	// ErrInvalidSize 表示容量配置无效。
	ErrInvalidSize = errors.New("xstore: size must be greater than 0")

	// ErrInvalidLockTTL 表示分布式锁的过期时间无效。
	ErrInvalidLockTTL = errors.New("xstore: distributed lock ttl must be greater than 0")

	// ErrLockFailed 表示分布式锁获取失败。
	ErrLockFailed = errors.New("xstore: distributed lock failed")

	// ErrCodec 表示记录编解码失败。
	ErrCodec = errors.New("xstore: codec failure")
)
