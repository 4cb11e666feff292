package xcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omeyang/xjcache/pkg/cache/xevent"
	"github.com/omeyang/xjcache/pkg/cache/xstore"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestCache 创建基于 Memory 存储的缓存，存储与缓存共享时间源。
func newTestCache[V any](t *testing.T, cfg Config[string, V], opts ...Option) (*Cache[string, V], *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store, err := xstore.NewMemory[string, V](xstore.WithClock(clock))
	require.NoError(t, err)
	opts = append([]Option{WithClock(clock), WithOwnedStore()}, opts...)
	c, err := New(store, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

// mapLoader 从 map 加载并统计调用次数。
type mapLoader struct {
	mu    sync.Mutex
	data  map[string]int
	calls atomic.Int32
	fail  map[string]bool
}

func newMapLoader(data map[string]int) *mapLoader {
	return &mapLoader{data: data, fail: map[string]bool{}}
}

func (l *mapLoader) Load(_ context.Context, key string) (int, bool, error) {
	l.calls.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail[key] {
		return 0, false, errBoom
	}
	v, ok := l.data[key]
	return v, ok, nil
}

// batchLoader 在 mapLoader 之上实现 BatchLoader。
type batchLoader struct {
	*mapLoader
	batches atomic.Int32
}

func (l *batchLoader) LoadAll(ctx context.Context, keys []string) (map[string]int, error) {
	l.batches.Add(1)
	out := make(map[string]int)
	for _, k := range keys {
		v, ok, err := l.mapLoader.Load(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

// mapWriter 是写入 map 的 Writer，fail 中的 key 写入或删除失败。
type mapWriter struct {
	mu      sync.Mutex
	data    map[string]int
	fail    map[string]bool
	writes  int
	deletes []string
}

func newMapWriter(fail ...string) *mapWriter {
	w := &mapWriter{data: map[string]int{}, fail: map[string]bool{}}
	for _, k := range fail {
		w.fail[k] = true
	}
	return w
}

func (w *mapWriter) Write(_ context.Context, key string, value int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	if w.fail[key] {
		return errBoom
	}
	w.data[key] = value
	return nil
}

func (w *mapWriter) WriteAll(ctx context.Context, entries map[string]int) ([]string, error) {
	var failed []string
	for k, v := range entries {
		if err := w.Write(ctx, k, v); err != nil {
			failed = append(failed, k)
		}
	}
	if len(failed) > 0 {
		return failed, errBoom
	}
	return nil, nil
}

func (w *mapWriter) Delete(_ context.Context, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deletes = append(w.deletes, key)
	if w.fail[key] {
		return errBoom
	}
	delete(w.data, key)
	return nil
}

func (w *mapWriter) DeleteAll(ctx context.Context, keys []string) ([]string, error) {
	var failed []string
	for _, k := range keys {
		if err := w.Delete(ctx, k); err != nil {
			failed = append(failed, k)
		}
	}
	if len(failed) > 0 {
		return failed, errBoom
	}
	return nil, nil
}

func (w *mapWriter) get(key string) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.data[key]
	return v, ok
}

func (w *mapWriter) deleted() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.deletes...)
}

// eventLog 是同步监听器，记录收到的事件。
type eventLog struct {
	mu     sync.Mutex
	events []xevent.Event[string, int]
}

func (l *eventLog) OnEvent(_ context.Context, ev xevent.Event[string, int]) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) all() []xevent.Event[string, int] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]xevent.Event[string, int](nil), l.events...)
}

func (l *eventLog) types() []xevent.Type {
	var out []xevent.Type
	for _, ev := range l.all() {
		out = append(out, ev.Type)
	}
	return out
}

// listen 注册同步监听器。
func listen(t *testing.T, c *Cache[string, int], oldValue bool) *eventLog {
	t.Helper()
	log := &eventLog{}
	require.NoError(t, c.RegisterListener(&xevent.ListenerConfig[string, int]{
		Listener:         log,
		Synchronous:      true,
		OldValueRequired: oldValue,
	}))
	return log
}

func mustMemory[K comparable, V any](t testing.TB) *xstore.Memory[K, V] {
	t.Helper()
	s, err := xstore.NewMemory[K, V]()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
