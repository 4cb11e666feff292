// Package xmanager 提供缓存注册表 Manager，以及基于 koanf 的缓存配置文件。
//
// Manager 按名称持有多个不同键值类型的缓存，负责创建、查找、销毁与统一关闭。
// 没有包级全局状态，进程内可以同时存在多个 Manager。
//
// # 配置文件
//
// 配置文件为 YAML 或 JSON，按扩展名识别：
//
//	caches:
//	  users:
//	    statistics: true
//	    management: true
//	    expiry:
//	      policy: accessed
//	      ttl: 10m
//	    store:
//	      type: lru
//	      size: 10000
//	    sweep: "@every 1m"
//
// Create 时若配置文件中存在同名缓存，文件中的开关与过期策略覆盖代码中的值；
// Loader、Writer 与监听器始终来自代码。
//
// # 定期清理
//
// sweep 为 robfig/cron 表达式（五段式、可选秒字段或 @every 描述符），
// Manager 按计划调用缓存的 PurgeExpired，回收长期未访问的过期条目。
//
// # 热更新
//
// Watch 基于 fsnotify 监视配置文件目录，文件变更后重新解析，
// 把 statistics 与 management 开关以及 sweep 计划应用到已创建的缓存。
// 其余字段只在下次 Create 时生效。
package xmanager
