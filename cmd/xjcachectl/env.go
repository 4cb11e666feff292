package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/omeyang/xjcache/pkg/cache/xcache"
	"github.com/omeyang/xjcache/pkg/cache/xmanager"
	"github.com/omeyang/xjcache/pkg/cache/xstats"
)

// 日志文件轮转参数。
const (
	logMaxSizeMB  = 100
	logMaxBackups = 5
	logMaxAgeDays = 7
)

// env 是单次命令执行期间打开的资源。
type env struct {
	logger  *slog.Logger
	logSink io.Closer
	mgr     *xmanager.Manager
	cache   *xcache.Cache[string, string]
	conf    xmanager.CacheConfig
}

// newLogger 按 --log-file 与 --log-level 创建 JSON 日志记录器。
// 返回的 Closer 在未写文件时为 nil。
func newLogger(cmd *cli.Command) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
		return nil, nil, usagef("invalid log level %q", cmd.String("log-level"))
	}
	opts := &slog.HandlerOptions{Level: level}

	path := cmd.String("log-file")
	if path == "" {
		return slog.New(slog.NewJSONHandler(cmd.Root().ErrWriter, opts)), nil, nil
	}
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(sink, opts)), sink, nil
}

// cacheConfig 合并配置文件与命令行覆盖项。
func cacheConfig(cmd *cli.Command) (*xmanager.FileConfig, xmanager.CacheConfig, error) {
	name := cmd.String("cache")
	fc := &xmanager.FileConfig{}
	if path := cmd.String("config"); path != "" {
		loaded, err := xmanager.LoadConfig(path)
		if err != nil {
			return nil, xmanager.CacheConfig{}, err
		}
		fc = loaded
	}
	cc, _ := fc.Cache(name)
	if cmd.IsSet("store") {
		cc.Store.Type = strings.ToLower(cmd.String("store"))
	}
	if cmd.IsSet("redis-addr") {
		cc.Store.Addr = cmd.String("redis-addr")
		if cc.Store.Type == "" {
			cc.Store.Type = "redis"
		}
	}
	if fc.Caches == nil {
		fc.Caches = make(map[string]xmanager.CacheConfig)
	}
	fc.Caches[name] = cc
	return fc, cc, nil
}

// openEnv 创建日志、Manager 与缓存。cfg 提供代码侧配置（Loader 等）。
func openEnv(cmd *cli.Command, cfg xcache.Config[string, string]) (*env, error) {
	logger, sink, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}
	closeSink := func() {
		if sink != nil {
			_ = sink.Close()
		}
	}

	fc, cc, err := cacheConfig(cmd)
	if err != nil {
		closeSink()
		return nil, err
	}

	mgr := xmanager.New(
		xmanager.WithLogger(logger),
		xmanager.WithConfig(fc),
		xmanager.WithRecorderFactory(func(name string) xstats.Recorder {
			r, err := xstats.NewOTelRecorder(name)
			if err != nil {
				logger.Warn("otel recorder unavailable", slog.Any("error", err))
				return xstats.NoopRecorder{}
			}
			return r
		}),
	)

	store, err := xmanager.BuildStore[string](cc.Store)
	if err != nil {
		closeSink()
		return nil, err
	}
	c, err := xmanager.Create(mgr, cmd.String("cache"), store, cfg, xcache.WithOwnedStore())
	if err != nil {
		closeSink()
		return nil, errors.Join(err, store.Close())
	}
	return &env{logger: logger, logSink: sink, mgr: mgr, cache: c, conf: cc}, nil
}

func (e *env) Close() error {
	err := e.mgr.Close()
	if e.logSink != nil {
		err = errors.Join(err, e.logSink.Close())
	}
	return err
}

// withEnv 在超时上下文中执行 fn，结束后释放资源。
func withEnv(ctx context.Context, cmd *cli.Command, cfg xcache.Config[string, string], fn func(ctx context.Context, e *env) error) (err error) {
	e, err := openEnv(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close: %w", cerr))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()
	return fn(ctx, e)
}
