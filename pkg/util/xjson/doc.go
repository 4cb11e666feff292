// Package xjson 提供 JSON 序列化工具函数。
//
//   - [Clone]: 通过 JSON 往返深拷贝一个值，缓存按值存储时的默认拷贝方式。
//     未导出字段、函数与 channel 不会被拷贝。
//   - [PrettyE]: 将任意值序列化为格式化的 JSON 字符串，失败时返回 [ErrMarshal] 包装的错误。
//   - [Pretty]: 便捷版本，用于日志和命令行输出。失败时返回 "<marshal error: ...>"。
package xjson
