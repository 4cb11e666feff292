package xexpiry

import "time"

// Event 表示触发过期计算的事件。
type Event uint8

const (
	// EventCreation 条目首次创建（put 或 load）。
	EventCreation Event = iota
	// EventAccess 读取已存在的条目。
	EventAccess
	// EventUpdate 覆盖已存在的条目。
	EventUpdate
)

// Policy 为每类事件给出过期决策。
// 实现必须是并发安全的纯函数。
type Policy interface {
	// ForCreation 返回创建事件的决策。Unchanged 按 Eternal 处理。
	ForCreation() Decision
	// ForAccess 返回访问事件的决策。
	ForAccess() Decision
	// ForUpdate 返回更新事件的决策。
	ForUpdate() Decision
}

// For 按事件类型查询策略。nil 策略视为 Eternal。
func For(p Policy, ev Event) Decision {
	if p == nil {
		if ev == EventCreation {
			return Eternal()
		}
		return Unchanged()
	}
	switch ev {
	case EventCreation:
		d := p.ForCreation()
		if d.IsUnchanged() {
			return Eternal()
		}
		return d
	case EventAccess:
		return p.ForAccess()
	default:
		return p.ForUpdate()
	}
}

// fixed 是由三个固定决策组成的策略。
type fixed struct {
	creation, access, update Decision
}

func (f fixed) ForCreation() Decision { return f.creation }
func (f fixed) ForAccess() Decision   { return f.access }
func (f fixed) ForUpdate() Decision   { return f.update }

// EternalPolicy 返回条目永不过期的策略。
func EternalPolicy() Policy {
	return fixed{creation: Eternal()}
}

// Created 返回自创建起 d 后过期的策略，访问与更新不影响截止时间。
func Created(d time.Duration) Policy {
	return fixed{creation: After(d)}
}

// Accessed 返回自最近一次创建或访问起 d 后过期的策略。
func Accessed(d time.Duration) Policy {
	return fixed{creation: After(d), access: After(d)}
}

// Modified 返回自最近一次创建或更新起 d 后过期的策略。
func Modified(d time.Duration) Policy {
	return fixed{creation: After(d), update: After(d)}
}

// Touched 返回自最近一次创建、访问或更新起 d 后过期的策略。
func Touched(d time.Duration) Policy {
	return fixed{creation: After(d), access: After(d), update: After(d)}
}

// Funcs 用函数组装策略，nil 字段表示 Unchanged（创建时为 Eternal）。
type Funcs struct {
	Creation func() Decision
	Access   func() Decision
	Update   func() Decision
}

// ForCreation 实现 Policy。
func (f Funcs) ForCreation() Decision { return call(f.Creation) }

// ForAccess 实现 Policy。
func (f Funcs) ForAccess() Decision { return call(f.Access) }

// ForUpdate 实现 Policy。
func (f Funcs) ForUpdate() Decision { return call(f.Update) }

func call(fn func() Decision) Decision {
	if fn == nil {
		return Unchanged()
	}
	return fn()
}

var (
	_ Policy = fixed{}
	_ Policy = Funcs{}
)
