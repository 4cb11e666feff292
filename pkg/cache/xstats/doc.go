// Package xstats 提供缓存统计。
//
// Stats 是一组原子计数器，对应缓存统计视图：命中、未命中、读取、写入、
// 删除、驱逐次数，以及读/写/删的平均耗时。门面仅在统计开启时更新它。
//
// Recorder 把每次缓存操作上报到外部可观测系统。NoopRecorder 为默认实现，
// NewOTelRecorder 基于 OpenTelemetry 记录计数器、耗时直方图和 span：
//
//	xjcache.operation.total     {cache, operation, outcome}
//	xjcache.operation.duration  {cache, operation, outcome}，单位秒
package xstats
