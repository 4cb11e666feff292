// Package cache 提供缓存条目生命周期管理相关的子包。
//
// 子包列表：
//   - xcache: 缓存门面，通读/通写、过期、条目处理器、迭代、监听器与后台加载
//   - xstore: 存储适配，内存、LRU、Ristretto 与 Redis
//   - xexpiry: 过期策略与过期决策
//   - xevent: 条目事件与监听器分发
//   - xstats: 命中率统计与 OpenTelemetry 观测
//   - xresilience: Loader/Writer 的重试与熔断包装
//   - xmanager: 按名称管理缓存，配置文件、热加载与定期清理
package cache
