package xmanager

import "errors"

var (
	// ErrClosed Manager 已关闭。
	ErrClosed = errors.New("xmanager: manager closed")

	// ErrEmptyName 缓存名称为空。
	ErrEmptyName = errors.New("xmanager: empty cache name")

	// ErrCacheExists 同名缓存已存在。
	ErrCacheExists = errors.New("xmanager: cache already exists")

	// ErrCacheNotFound 缓存不存在。
	ErrCacheNotFound = errors.New("xmanager: cache not found")

	// ErrTypeMismatch 缓存存在但键值类型与请求不一致。
	ErrTypeMismatch = errors.New("xmanager: cache type mismatch")

	// ErrEmptyPath 配置文件路径为空。
	ErrEmptyPath = errors.New("xmanager: empty config path")

	// ErrUnsupportedFormat 不支持的配置格式。
	ErrUnsupportedFormat = errors.New("xmanager: unsupported config format")

	// ErrLoadFailed 配置文件读取失败。
	ErrLoadFailed = errors.New("xmanager: failed to load config")

	// ErrParseFailed 配置解析或反序列化失败。
	ErrParseFailed = errors.New("xmanager: failed to parse config")

	// ErrInvalidStore 存储配置非法。
	ErrInvalidStore = errors.New("xmanager: invalid store config")

	// ErrInvalidSweep 清理计划的 cron 表达式非法。
	ErrInvalidSweep = errors.New("xmanager: invalid sweep schedule")
)
