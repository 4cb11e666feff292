// Package xpool 提供缓存内部使用的有界 worker pool。
//
// Pool 用于两类后台工作：LoadAll 批量加载，以及异步监听器的事件投递
// （每个异步监听器独占一个单 worker 的 Pool，保证单监听器内有序）。
//
// # 注意事项
//
//   - New 创建后自动启动 worker
//   - Submit 非阻塞，队列满时返回 ErrQueueFull，关闭后返回 ErrPoolStopped
//   - Close 等待队列中剩余任务处理完成
//   - Shutdown(ctx) 在 ctx 结束时提前返回，残留任务在后台继续执行，可通过 Done 等待
//   - Close/Shutdown 不可在 handler 内调用，否则会死锁
//   - handler 中的 panic 会被恢复并记录日志，任务被丢弃
package xpool
