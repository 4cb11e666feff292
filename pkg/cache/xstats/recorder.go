package xstats

import "context"

// Op 是被观测的缓存操作名。
type Op string

const (
	OpGet       Op = "get"
	OpGetAll    Op = "get_all"
	OpPut       Op = "put"
	OpPutAll    Op = "put_all"
	OpRemove    Op = "remove"
	OpRemoveAll Op = "remove_all"
	OpReplace   Op = "replace"
	OpInvoke    Op = "invoke"
	OpLoad      Op = "load"
	OpLoadAll   Op = "load_all"
	OpClear     Op = "clear"
	OpPurge     Op = "purge"
)

// Outcome 是操作结果分类。
type Outcome string

const (
	OutcomeHit   Outcome = "hit"
	OutcomeMiss  Outcome = "miss"
	OutcomeOK    Outcome = "ok"
	OutcomeNoop  Outcome = "noop"
	OutcomeError Outcome = "error"
)

// Span 表示一次进行中的观测。End 只应调用一次。
type Span interface {
	End(outcome Outcome, err error)
}

// Recorder 观测缓存操作。实现必须并发安全。
type Recorder interface {
	Start(ctx context.Context, op Op) (context.Context, Span)
}

// NoopRecorder 不做任何记录。
type NoopRecorder struct{}

// Start 实现 Recorder。
func (NoopRecorder) Start(ctx context.Context, _ Op) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(Outcome, error) {}
