// Package util 提供缓存实现共用的工具子包。
//
// 子包列表：
//   - xjson: JSON 序列化工具，Pretty 格式化输出
//   - xkeylock: 基于 key 的进程内互斥锁，支持 context 超时和非阻塞获取
package util
