// Package xevent 实现缓存条目的变更通知。
//
// 事件类型：
//
//	Created     新条目写入（含读穿透加载）
//	Updated     已有条目被覆盖
//	Removed     条目被显式删除
//	Expired     条目在访问时被发现过期，或过期策略要求立即过期
//	RemovedAll  RemoveAll 的单次汇总信号，Key/Value 为零值
//
// 每个注册（ListenerConfig）在注册时确定一次能力集合 Capability：
// 优先取 ListenerConfig.Capabilities，其次取监听器实现的 CapabilityDeclarer，
// 都没有时接收全部事件。RemovedAll 投递给具备 OnRemoved 能力的注册。
//
// 未设置 OldValueRequired 的注册收到的事件不携带旧值。
// 同步注册在缓存操作返回前于调用方 goroutine 内执行；
// 异步注册各自拥有一个单 worker 队列，同一注册内的事件保持顺序。
// 监听器 panic 会被恢复并记录日志，不影响缓存操作。
package xevent
