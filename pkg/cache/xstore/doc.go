// Package xstore 定义缓存门面消费的后端存储适配器，并提供四种实现。
//
// # 设计理念
//
// 存储只负责 get/put/remove/keys 与按 key 加锁，条目时间戳由存储维护；
// 读穿透、写穿透、过期策略与事件通知都在上层 xcache 门面中完成。
// 存储自身的淘汰（容量、原生 TTL）不产生事件。
//
// # 实现
//
//	实现        底层                      key 类型          说明
//	──────────────────────────────────────────────────────────────────────
//	Memory      map + RWMutex             任意 comparable    无界，过期条目惰性保留
//	LRU         hashicorp/golang-lru/v2   任意 comparable    按条目数淘汰
//	Ristretto   dgraph-io/ristretto/v2    整数或 string      按 cost 准入/淘汰，原生 TTL
//	Redis       redis/go-redis/v9         string             JSON 记录，PX 过期，SCAN 枚举
//
// 所有实现都内嵌一个 xkeylock.Locker 作为按 key 互斥锁，互斥范围是本进程。
// Redis 可通过 [WithDistributedLock] 在进程内锁之上叠加 redsync 锁，
// 使共享同一前缀的多个进程互斥；锁 key 位于独立命名空间，不出现在 Keys 中。
//
// # 过期
//
// Put/Touch 接收绝对截止时间（零值表示永不过期）。Memory 与 LRU 在 Get 时
// 原样返回已过期但尚未删除的条目，由调用方（门面）判定 [Entry.Expired]
// 并负责删除与通知；Ristretto 与 Redis 依赖后端原生 TTL。
package xstore
