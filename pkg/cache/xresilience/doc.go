// Package xresilience 为 xcache 的 Loader 与 Writer 提供重试和熔断装饰器。
//
// 重试基于 avast/retry-go/v5，熔断基于 sony/gobreaker/v2。
// 装饰器保留被包装对象的批量能力：被包装的 Loader 实现了
// xcache.BatchLoader 时，返回值同样实现 BatchLoader。
//
// 组合顺序推荐先熔断后重试，即重试包在熔断外层：
//
//	br := xresilience.NewBreaker(xresilience.WithBreakerName("users-db"))
//	loader, _ := xresilience.RetryLoader(xresilience.BreakerLoader(dbLoader, br))
//
// 熔断打开时返回的 *BreakerError 不会被重试。
//
// # 批量写入的重试
//
// RetryWriter 的 WriteAll 与 DeleteAll 每次重试只提交上一次失败的 key，
// 最终返回仍然失败的 key 列表。
package xresilience
