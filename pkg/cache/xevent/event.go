package xevent

import (
	"context"
	"fmt"
	"strings"
)

// Type 是事件类型。
type Type uint8

const (
	Created Type = iota + 1
	Updated
	Removed
	Expired
	RemovedAll
)

func (t Type) String() string {
	switch t {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	case Expired:
		return "expired"
	case RemovedAll:
		return "removed_all"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Capability 是监听器可接收事件的位集合。
type Capability uint8

const (
	OnCreated Capability = 1 << iota
	OnUpdated
	OnRemoved
	OnExpired

	// CapAll 接收全部事件。
	CapAll = OnCreated | OnUpdated | OnRemoved | OnExpired
)

// Accepts 报告能力集合是否包含事件类型 t。
func (c Capability) Accepts(t Type) bool {
	switch t {
	case Created:
		return c&OnCreated != 0
	case Updated:
		return c&OnUpdated != 0
	case Removed, RemovedAll:
		return c&OnRemoved != 0
	case Expired:
		return c&OnExpired != 0
	default:
		return false
	}
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	for _, p := range []struct {
		bit  Capability
		name string
	}{{OnCreated, "created"}, {OnUpdated, "updated"}, {OnRemoved, "removed"}, {OnExpired, "expired"}} {
		if c&p.bit != 0 {
			parts = append(parts, p.name)
		}
	}
	return strings.Join(parts, "|")
}

// Event 是一次条目变更。
type Event[K comparable, V any] struct {
	Type  Type
	Key   K
	Value V

	// OldValue 仅在 HasOldValue 为 true 时有效。
	OldValue    V
	HasOldValue bool
}

// withoutOldValue 返回去掉旧值的副本。
func (e Event[K, V]) withoutOldValue() Event[K, V] {
	var zero V
	e.OldValue = zero
	e.HasOldValue = false
	return e
}

// Listener 接收事件。
type Listener[K comparable, V any] interface {
	OnEvent(ctx context.Context, ev Event[K, V])
}

// ListenerFunc 将函数适配为 Listener。
type ListenerFunc[K comparable, V any] func(ctx context.Context, ev Event[K, V])

// OnEvent 实现 Listener。
func (f ListenerFunc[K, V]) OnEvent(ctx context.Context, ev Event[K, V]) { f(ctx, ev) }

// CapabilityDeclarer 由希望自行声明能力集合的监听器实现。
type CapabilityDeclarer interface {
	Capabilities() Capability
}

// Filter 决定事件是否投递给监听器，返回 false 表示丢弃。
type Filter[K comparable, V any] func(ev Event[K, V]) bool

// ListenerConfig 描述一个监听器注册。
// 同一个 *ListenerConfig 只能注册一次，注册后不应再修改。
type ListenerConfig[K comparable, V any] struct {
	Listener Listener[K, V]

	// Capabilities 为 0 时由 CapabilityDeclarer 或 CapAll 决定。
	Capabilities Capability

	// Filter 为 nil 表示不过滤。
	Filter Filter[K, V]

	// Synchronous 为 true 时在缓存操作返回前投递。
	Synchronous bool

	// OldValueRequired 为 true 时 Updated/Removed/Expired 事件携带旧值。
	OldValueRequired bool
}

// capability 计算注册的能力集合。
func (c *ListenerConfig[K, V]) capability() Capability {
	if c.Capabilities != 0 {
		return c.Capabilities
	}
	if d, ok := c.Listener.(CapabilityDeclarer); ok {
		return d.Capabilities()
	}
	return CapAll
}
