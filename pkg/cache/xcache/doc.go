// Package xcache 实现缓存条目生命周期管理门面。
//
// Cache 位于调用方与后端存储（xstore.Store）之间，提供：
//
//   - 读穿透：未命中时调用 Loader 加载并写入
//   - 写穿透：变更同步调用 Writer，失败时回滚缓存并返回 *WriterError
//   - 过期策略：按创建、访问、更新事件计算截止时间（xexpiry.Policy）
//   - 条目处理器：Invoke/InvokeAll 在 key 锁内原子地读-改-写
//   - 变更通知：Created/Updated/Removed/Expired/RemovedAll（xevent）
//   - 统计与管理视图（xstats）
//
// # 并发模型
//
// 每个操作先校验参数，再获取 key 锁（批量操作逐个加锁），在锁内读取存储、
// 调用 Loader/Writer、计算过期并修改存储，解锁后分发事件。
// 同一 key 的操作严格串行，Loader/Writer 调用期间持有该 key 的锁。
// 只有 LoadAll 与异步监听器在后台 goroutine 中执行。
//
// ctx 在获取锁之前取消时操作以 ctx.Err() 中止；获取锁之后操作执行到底。
//
// # 过期
//
// 截止时间由缓存的时间源计算（WithClock），应与存储使用同一时间源。
// 过期条目在被访问时删除并发送 Expired 事件；存储自身的容量淘汰不产生事件。
// 创建时决策为立即过期的值不写入存储，开启写穿透时 Writer 仍会收到写入；
// 更新时决策为立即过期的条目被移出缓存并发送 Expired 事件。
//
// # 空值
//
// nil 接口以及 nil 的指针、map、slice、func、channel 被视为空值，
// 作为 key 返回 ErrNullKey，作为 value 返回 ErrNullValue。
package xcache
