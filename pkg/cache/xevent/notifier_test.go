package xevent

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder 收集收到的事件。
type recorder struct {
	mu     sync.Mutex
	events []Event[string, int]
}

func (r *recorder) OnEvent(_ context.Context, ev Event[string, int]) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []Event[string, int] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event[string, int](nil), r.events...)
}

// createdOnly 通过 CapabilityDeclarer 只声明 OnCreated。
type createdOnly struct{ recorder }

func (*createdOnly) Capabilities() Capability { return OnCreated }

func TestCapability_Accepts(t *testing.T) {
	assert.True(t, OnCreated.Accepts(Created))
	assert.False(t, OnCreated.Accepts(Updated))
	assert.True(t, OnRemoved.Accepts(RemovedAll))
	assert.True(t, CapAll.Accepts(Expired))
	assert.False(t, CapAll.Accepts(Type(0)))
	assert.Equal(t, "created|expired", (OnCreated | OnExpired).String())
	assert.Equal(t, "none", Capability(0).String())
	assert.Equal(t, "removed_all", RemovedAll.String())
}

func TestNotifier_Register(t *testing.T) {
	n := NewNotifier[string, int]()
	defer n.Close()

	_, err := n.Register(nil)
	assert.ErrorIs(t, err, ErrNilListener)
	_, err = n.Register(&ListenerConfig[string, int]{})
	assert.ErrorIs(t, err, ErrNilListener)

	cfg := &ListenerConfig[string, int]{Listener: &recorder{}, Synchronous: true}
	id, err := n.Register(cfg)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	_, err = n.Register(cfg)
	assert.ErrorIs(t, err, ErrDuplicateListener)
	assert.Equal(t, 1, n.Len())
	assert.Equal(t, []*ListenerConfig[string, int]{cfg}, n.Configs())

	require.NoError(t, n.Deregister(cfg))
	assert.ErrorIs(t, n.Deregister(cfg), ErrListenerNotFound)
	assert.Zero(t, n.Len())
}

func TestNotifier_SyncDispatch_StripsOldValue(t *testing.T) {
	n := NewNotifier[string, int]()
	defer n.Close()

	plain, withOld := &recorder{}, &recorder{}
	_, err := n.Register(&ListenerConfig[string, int]{Listener: plain, Synchronous: true})
	require.NoError(t, err)
	_, err = n.Register(&ListenerConfig[string, int]{Listener: withOld, Synchronous: true, OldValueRequired: true})
	require.NoError(t, err)

	n.Dispatch(context.Background(), Event[string, int]{Type: Updated, Key: "k", Value: 2, OldValue: 1, HasOldValue: true})

	require.Len(t, plain.snapshot(), 1)
	assert.False(t, plain.snapshot()[0].HasOldValue)
	assert.Zero(t, plain.snapshot()[0].OldValue)

	require.Len(t, withOld.snapshot(), 1)
	assert.Equal(t, 1, withOld.snapshot()[0].OldValue)
	assert.True(t, withOld.snapshot()[0].HasOldValue)
}

func TestNotifier_CapabilitiesAndFilter(t *testing.T) {
	n := NewNotifier[string, int]()
	defer n.Close()

	declared := &createdOnly{}
	explicit := &recorder{}
	filtered := &recorder{}
	_, err := n.Register(&ListenerConfig[string, int]{Listener: declared, Synchronous: true})
	require.NoError(t, err)
	_, err = n.Register(&ListenerConfig[string, int]{Listener: explicit, Capabilities: OnRemoved, Synchronous: true})
	require.NoError(t, err)
	_, err = n.Register(&ListenerConfig[string, int]{
		Listener:    filtered,
		Synchronous: true,
		Filter:      func(ev Event[string, int]) bool { return ev.Key != "skip" },
	})
	require.NoError(t, err)

	n.Dispatch(context.Background(),
		Event[string, int]{Type: Created, Key: "a", Value: 1},
		Event[string, int]{Type: Removed, Key: "a", Value: 1},
		Event[string, int]{Type: RemovedAll},
		Event[string, int]{Type: Created, Key: "skip", Value: 2},
	)

	assert.Len(t, declared.snapshot(), 2)
	got := explicit.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, Removed, got[0].Type)
	assert.Equal(t, RemovedAll, got[1].Type)
	assert.Len(t, filtered.snapshot(), 3)
}

func TestNotifier_AsyncDispatchOrdered(t *testing.T) {
	n := NewNotifier[string, int](WithQueueSize(256))
	rec := &recorder{}
	cfg := &ListenerConfig[string, int]{Listener: rec}
	_, err := n.Register(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	for i := range 100 {
		n.Dispatch(ctx, Event[string, int]{Type: Created, Key: "k", Value: i})
	}
	cancel()

	// 注销会等待队列排空
	require.NoError(t, n.Deregister(cfg))
	got := rec.snapshot()
	require.Len(t, got, 100)
	for i, ev := range got {
		assert.Equal(t, i, ev.Value)
	}
	require.NoError(t, n.Close())
}

func TestNotifier_ListenerPanicRecovered(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier[string, int](WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	defer n.Close()

	after := &recorder{}
	_, err := n.Register(&ListenerConfig[string, int]{
		Listener: ListenerFunc[string, int](func(context.Context, Event[string, int]) {
			panic("listener failure")
		}),
		Synchronous: true,
	})
	require.NoError(t, err)
	_, err = n.Register(&ListenerConfig[string, int]{
		Listener:    after,
		Synchronous: true,
		Filter:      func(Event[string, int]) bool { panic("filter failure") },
	})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		n.Dispatch(context.Background(), Event[string, int]{Type: Created, Key: "a"})
	})
	assert.Contains(t, buf.String(), "listener panic recovered")
	assert.Contains(t, buf.String(), "filter panic recovered")
	assert.Empty(t, after.snapshot())
}

func TestNotifier_Closed(t *testing.T) {
	n := NewNotifier[string, int]()
	_, err := n.Register(&ListenerConfig[string, int]{Listener: &recorder{}})
	require.NoError(t, err)
	require.NoError(t, n.Close())
	assert.ErrorIs(t, n.Close(), ErrClosed)

	_, err = n.Register(&ListenerConfig[string, int]{Listener: &recorder{}})
	assert.ErrorIs(t, err, ErrClosed)

	// 关闭后分发为空操作
	n.Dispatch(context.Background(), Event[string, int]{Type: Created})
}
