// Package xkeylock 提供基于 key 的进程内互斥锁。
//
// 它是 xjcache 中"单 key 至多一个并发修改者"约束的唯一互斥原语：
// 每个存储适配器（xstore）都持有一个 Locker，门面（xcache）的每个操作
// 在读-判定-写序列期间持有对应 key 的锁。
//
// # 特性
//
//   - 泛型 key：任意 comparable 类型；string key 使用 xxhash 选择分片，
//     其他类型使用 hash/maphash.Comparable
//   - Context 支持：Acquire 在等待期间响应取消和超时
//   - TryAcquire：非阻塞获取，锁被占用时返回 [ErrLockOccupied]，
//     后台清理据此跳过正被使用的 key
//   - Len：活跃 key 数，作为锁压力指标
//   - Handle 语义：Unlock 幂等（首次返回 nil，后续返回 [ErrLockNotHeld]）
//   - 分片 map：默认 32 分片，减少管理锁争用
//   - 内存安全：WithMaxKeys(n) 限制同时存在的 key 数
//   - 关闭语义：Close() 拒绝新请求并唤醒所有等待者，已持有的锁不受影响
//
// 锁是非可重入的，与 sync.Mutex 一致。同一 goroutine 对同一 key 重复
// Acquire 会一直阻塞到 ctx 结束。
package xkeylock
