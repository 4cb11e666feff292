package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xjcache/pkg/cache/xcache"
	"github.com/omeyang/xjcache/pkg/cache/xresilience"
	"github.com/omeyang/xjcache/pkg/cache/xstats"
	"github.com/omeyang/xjcache/pkg/util/xjson"
)

var errSyntheticLoad = errors.New("synthetic load failure")

func createBenchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "对缓存执行读写混合压测",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "ops", Usage: "总操作数", Value: 10000},
			&cli.IntFlag{Name: "workers", Usage: "并发数", Value: 4},
			&cli.IntFlag{Name: "keys", Usage: "key 空间大小", Value: 1000},
			&cli.FloatFlag{Name: "read-ratio", Usage: "读操作比例 [0, 1]", Value: 0.8},
			&cli.BoolFlag{Name: "read-through", Usage: "未命中时从模拟数据源加载"},
			&cli.FloatFlag{Name: "load-fail-rate", Usage: "模拟数据源的失败率 [0, 1]"},
			&cli.DurationFlag{Name: "load-latency", Usage: "模拟数据源的延迟"},
		},
		Action: cmdBench,
	}
}

// benchParams 是解析后的压测参数。
type benchParams struct {
	ops       int
	workers   int
	keys      int
	readRatio float64
}

// benchReport 是压测结果。
type benchReport struct {
	Ops       int64          `json:"ops"`
	Errors    int64          `json:"errors"`
	Elapsed   string         `json:"elapsed"`
	OpsPerSec float64        `json:"ops_per_sec"`
	Stats     xstats.Snapshot `json:"stats"`
}

func parseBenchParams(cmd *cli.Command) (benchParams, error) {
	p := benchParams{
		ops:       int(cmd.Int("ops")),
		workers:   int(cmd.Int("workers")),
		keys:      int(cmd.Int("keys")),
		readRatio: cmd.Float("read-ratio"),
	}
	switch {
	case p.ops <= 0:
		return p, usagef("--ops must be > 0")
	case p.workers <= 0:
		return p, usagef("--workers must be > 0")
	case p.keys <= 0:
		return p, usagef("--keys must be > 0")
	case p.readRatio < 0 || p.readRatio > 1:
		return p, usagef("--read-ratio must be in [0, 1]")
	}
	if r := cmd.Float("load-fail-rate"); r < 0 || r > 1 {
		return p, usagef("--load-fail-rate must be in [0, 1]")
	}
	return p, nil
}

// syntheticLoader 模拟一个有延迟且会失败的数据源。
func syntheticLoader(latency time.Duration, failRate float64) xcache.Loader[string, string] {
	return xcache.LoaderFunc[string, string](func(ctx context.Context, key string) (string, bool, error) {
		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-ctx.Done():
				return "", false, ctx.Err()
			}
		}
		if rand.Float64() < failRate {
			return "", false, errSyntheticLoad
		}
		return "value-" + key, true, nil
	})
}

// benchConfig 构建压测用的缓存配置。开启读穿透时数据源经过熔断与重试。
func benchConfig(cmd *cli.Command) (xcache.Config[string, string], error) {
	cfg := xcache.Config[string, string]{StatisticsEnabled: true}
	if !cmd.Bool("read-through") {
		return cfg, nil
	}
	br := xresilience.NewBreaker(xresilience.WithBreakerName("bench-source"), xresilience.WithTimeout(time.Second))
	guarded, err := xresilience.BreakerLoader(syntheticLoader(cmd.Duration("load-latency"), cmd.Float("load-fail-rate")), br)
	if err != nil {
		return cfg, err
	}
	loader, err := xresilience.RetryLoader(guarded, xresilience.WithDelay(time.Millisecond), xresilience.WithAttempts(3))
	if err != nil {
		return cfg, err
	}
	cfg.ReadThrough = true
	cfg.Loader = loader
	return cfg, nil
}

func cmdBench(ctx context.Context, cmd *cli.Command) error {
	p, err := parseBenchParams(cmd)
	if err != nil {
		return err
	}
	cfg, err := benchConfig(cmd)
	if err != nil {
		return err
	}
	return withEnv(ctx, cmd, cfg, func(ctx context.Context, e *env) error {
		// 配置文件可能关闭了统计，这里显式打开。
		e.cache.EnableStatistics(true)
		report, err := runBench(ctx, e.cache, p)
		if err != nil {
			return err
		}
		e.logger.Info("bench finished", slog.Int64("ops", report.Ops), slog.Int64("errors", report.Errors))
		fmt.Fprintln(cmd.Root().Writer, xjson.Pretty(report))
		return nil
	})
}

// runBench 由 p.workers 个 goroutine 均分 p.ops 次操作。
// 单次操作失败只计数，上下文取消时提前结束。
func runBench(ctx context.Context, c *xcache.Cache[string, string], p benchParams) (benchReport, error) {
	var done, failed atomic.Int64
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for w := range p.workers {
		n := p.ops / p.workers
		if w < p.ops%p.workers {
			n++
		}
		g.Go(func() error {
			for range n {
				if err := ctx.Err(); err != nil {
					return err
				}
				key := "key-" + strconv.Itoa(rand.IntN(p.keys))
				var err error
				if rand.Float64() < p.readRatio {
					_, _, err = c.Get(ctx, key)
				} else {
					err = c.Put(ctx, key, strconv.FormatInt(done.Load(), 10))
				}
				done.Add(1)
				if err != nil {
					failed.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return benchReport{}, err
	}

	elapsed := time.Since(start)
	snap, _ := c.Stats()
	report := benchReport{
		Ops:     done.Load(),
		Errors:  failed.Load(),
		Elapsed: elapsed.String(),
		Stats:   snap,
	}
	if elapsed > 0 {
		report.OpsPerSec = float64(report.Ops) / elapsed.Seconds()
	}
	return report, nil
}
