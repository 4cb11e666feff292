package xmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadCallback 在每次重载后调用，err 非 nil 表示重载失败、配置未变。
type ReloadCallback func(fc *FileConfig, err error)

// WatchOption 配置 Watcher。
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
	callback ReloadCallback
}

// WithDebounce 设置防抖时间，期间的多次变更只触发一次重载。默认 100ms。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithReloadCallback 设置重载回调。
func WithReloadCallback(fn ReloadCallback) WatchOption {
	return func(o *watchOptions) {
		o.callback = fn
	}
}

// Watcher 监视配置文件并把变更应用到 Manager。
type Watcher struct {
	m        *Manager
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	callback ReloadCallback
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// Watch 加载 path 并开始监视。首次加载失败时返回错误且不启动监视。
// 监视的是文件所在目录，以覆盖编辑器先删除再创建或原子重命名的保存方式。
// Manager 关闭时 Watcher 随之停止。
func (m *Manager) Watch(path string, opts ...WatchOption) (*Watcher, error) {
	o := &watchOptions{debounce: 100 * time.Millisecond}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	fc, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xmanager: create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		return nil, errors.Join(fmt.Errorf("xmanager: watch directory %s: %w", dir, err), fsw.Close())
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		m:        m,
		path:     path,
		watcher:  fsw,
		debounce: o.debounce,
		callback: o.callback,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return nil, errors.Join(ErrClosed, fsw.Close())
	}
	m.watchers = append(m.watchers, w)
	m.mu.Unlock()

	m.applyConfig(fc)
	go w.run()
	m.logger.Info("xmanager: watching config", slog.String("path", path))
	return w, nil
}

// Stop 停止监视并等待后台循环退出。重复调用为空操作。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	filename := filepath.Base(w.path)
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev, filename)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.m.logger.Warn("xmanager: watch error", slog.Any("error", err))
			w.notify(nil, fmt.Errorf("xmanager: watch: %w", err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event, filename string) {
	if filepath.Base(ev.Name) != filename {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	if w.ctx.Err() != nil {
		return
	}
	fc, err := LoadConfig(w.path)
	if err != nil {
		w.m.logger.Warn("xmanager: config reload failed", slog.String("path", w.path), slog.Any("error", err))
		w.notify(nil, err)
		return
	}
	w.m.applyConfig(fc)
	w.m.logger.Info("xmanager: config reloaded", slog.String("path", w.path))
	w.notify(fc, nil)
}

func (w *Watcher) notify(fc *FileConfig, err error) {
	if w.callback != nil {
		w.callback(fc, err)
	}
}
