// Package xexpiry 定义缓存条目的过期策略。
//
// 策略是纯函数：针对创建（Creation）、访问（Access）、更新（Update）三类事件
// 分别给出一个 [Decision]：
//
//	Eternal      永不过期
//	Duration(d)  d 之后过期（d <= 0 等价于 Immediate）
//	Immediate    立即过期：创建时不写入，访问/更新时删除
//	Unchanged    保持当前截止时间（仅对访问/更新有意义）
//
// Decision 每次事件重新计算，不单独持久化；存储层只保存由
// [Decision.ExpireAt] 推导出的绝对截止时间。
//
// 内置策略与常见语义对应：
//
//	策略        创建   访问   更新
//	─────────────────────────────────
//	Eternal     永久   不变   不变
//	Created     d      不变   不变
//	Accessed    d      d      不变
//	Modified    d      不变   d
//	Touched     d      d      d
package xexpiry
