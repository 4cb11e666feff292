package xexpiry

import (
	"strconv"
	"time"
)

// Kind 表示过期决策的类型。
type Kind uint8

const (
	// KindUnchanged 保持条目当前的截止时间。
	KindUnchanged Kind = iota
	// KindEternal 永不过期。
	KindEternal
	// KindDuration 在 TTL 之后过期。
	KindDuration
	// KindImmediate 立即过期。
	KindImmediate
)

// String 返回 Kind 的可读表示。
func (k Kind) String() string {
	switch k {
	case KindUnchanged:
		return "Unchanged"
	case KindEternal:
		return "Eternal"
	case KindDuration:
		return "Duration"
	case KindImmediate:
		return "Immediate"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Decision 是一次事件的过期决策。零值等价于 Unchanged。
type Decision struct {
	kind Kind
	ttl  time.Duration
}

// Eternal 返回永不过期的决策。
func Eternal() Decision { return Decision{kind: KindEternal} }

// Immediate 返回立即过期的决策。
func Immediate() Decision { return Decision{kind: KindImmediate} }

// Unchanged 返回保持当前截止时间的决策。
func Unchanged() Decision { return Decision{kind: KindUnchanged} }

// After 返回 d 之后过期的决策。d <= 0 时返回 Immediate。
func After(d time.Duration) Decision {
	if d <= 0 {
		return Immediate()
	}
	return Decision{kind: KindDuration, ttl: d}
}

// Kind 返回决策类型。
func (d Decision) Kind() Kind { return d.kind }

// TTL 返回 Duration 决策的时长，其他类型返回 0。
func (d Decision) TTL() time.Duration { return d.ttl }

// IsImmediate 报告决策是否为立即过期。
func (d Decision) IsImmediate() bool { return d.kind == KindImmediate }

// IsUnchanged 报告决策是否保持当前截止时间。
func (d Decision) IsUnchanged() bool { return d.kind == KindUnchanged }

// ExpireAt 计算决策对应的绝对截止时间。零值 time.Time 表示永不过期。
//
// current 是条目当前的截止时间，仅 Unchanged 使用；
// 新建条目没有截止时间，传入零值即得到永不过期。
func (d Decision) ExpireAt(now, current time.Time) time.Time {
	switch d.kind {
	case KindEternal:
		return time.Time{}
	case KindDuration:
		return now.Add(d.ttl)
	case KindImmediate:
		return now
	default:
		return current
	}
}

// String 返回决策的可读表示。
func (d Decision) String() string {
	if d.kind == KindDuration {
		return "Duration(" + d.ttl.String() + ")"
	}
	return d.kind.String()
}
