package xcache

import "github.com/omeyang/xjcache/pkg/cache/xstore"

// entryState 是处理器对条目的处置。
type entryState uint8

const (
	stateUnchanged entryState = iota
	stateSet
	stateRemoved
)

// MutableEntry 是条目处理器看到的可变条目，只在一次 Invoke 内有效。
//
// 处理器返回后按最终状态提交：SetValue 写入（创建或更新），
// Remove 删除（条目在调用前不存在时不做任何事），
// 未修改但读取过时应用访问过期，由 Loader 加载的值即使未修改也会写入缓存。
type MutableEntry[K comparable, V any] struct {
	key     K
	initial xstore.Entry[K, V]
	existed bool // 调用前在缓存中

	value   V
	present bool
	state   entryState

	fromLoader bool
	accessed   bool
}

// Key 返回 key。
func (e *MutableEntry[K, V]) Key() K { return e.key }

// Value 返回当前值并标记为已读取。
func (e *MutableEntry[K, V]) Value() (V, bool) {
	e.accessed = true
	return e.value, e.present
}

// Exists 报告当前是否有值。
func (e *MutableEntry[K, V]) Exists() bool { return e.present }

// SetValue 设置新值。value 为 nil 时返回 ErrNullValue。
func (e *MutableEntry[K, V]) SetValue(value V) error {
	if isNil(value) {
		return ErrNullValue
	}
	e.value = value
	e.present = true
	e.state = stateSet
	return nil
}

// Remove 删除条目。
func (e *MutableEntry[K, V]) Remove() {
	var zero V
	e.value = zero
	e.present = false
	e.state = stateRemoved
}

// Unwrap 返回调用前存储中的条目，不存在时 ok=false。
func (e *MutableEntry[K, V]) Unwrap() (entry xstore.Entry[K, V], ok bool) {
	return e.initial, e.existed
}
