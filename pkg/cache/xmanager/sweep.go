package xmanager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// sweepParser 解析清理计划：标准五段式，可选秒字段，支持 @every 等描述符。
var sweepParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// sweepJob 记录一个缓存的清理任务。
type sweepJob struct {
	id   cron.EntryID
	spec string
}

// Purge 立即清理名为 name 的缓存中的过期条目，返回删除数。
func (m *Manager) Purge(ctx context.Context, name string) (int, error) {
	c, err := m.lookup(name)
	if err != nil {
		return 0, err
	}
	return c.PurgeExpired(ctx)
}

// schedule 按 spec 设置 name 的清理任务，spec 未变化时保持原任务。
// 调用方持有 m.mu。
func (m *Manager) schedule(name, spec string) error {
	if old, ok := m.sweeps[name]; ok {
		if old.spec == spec {
			return nil
		}
		m.cron.Remove(old.id)
		delete(m.sweeps, name)
	}
	if spec == "" {
		return nil
	}
	sched, err := sweepParser.Parse(spec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSweep, err)
	}
	id := m.cron.Schedule(sched, cron.FuncJob(func() { m.sweep(name) }))
	m.sweeps[name] = sweepJob{id: id, spec: spec}
	if !m.cronStarted {
		m.cron.Start()
		m.cronStarted = true
	}
	m.logger.Debug("xmanager: sweep scheduled", slog.String("cache", name), slog.String("spec", spec))
	return nil
}

// unschedule 移除 name 的清理任务。调用方持有 m.mu。
func (m *Manager) unschedule(name string) {
	if job, ok := m.sweeps[name]; ok {
		m.cron.Remove(job.id)
		delete(m.sweeps, name)
	}
}

// sweep 在 cron 协程中执行一次清理。
func (m *Manager) sweep(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.sweepTimeout)
	defer cancel()

	start := time.Now()
	n, err := m.Purge(ctx, name)
	if err != nil {
		m.logger.Warn("xmanager: sweep failed", slog.String("cache", name), slog.Any("error", err))
		return
	}
	m.logger.Debug("xmanager: sweep finished", slog.String("cache", name),
		slog.Int("purged", n), slog.Duration("elapsed", time.Since(start)))
}
