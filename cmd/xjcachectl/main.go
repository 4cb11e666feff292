// xjcachectl 是 xjcache 的命令行工具，对按配置创建的缓存执行操作与压测。
//
// 用法:
//
//	xjcachectl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config      缓存配置文件（YAML 或 JSON）
//	-n, --cache       缓存名称 (默认: default)
//	    --store       覆盖配置中的存储类型 (memory/lru/ristretto/redis)
//	    --redis-addr  覆盖配置中的 Redis 地址
//	    --log-file    日志文件路径，按大小轮转；为空时输出到 stderr
//	    --log-level   日志级别 (debug/info/warn/error)
//	-t, --timeout     命令超时时间 (默认: 30s)
//
// 命令:
//
//	get <key>...          读取
//	put <key> <value>     写入
//	remove <key>...       删除
//	keys                  列出所有 key
//	clear                 清空
//	info                  查看缓存管理视图与生效配置
//	validate <file>       校验配置文件
//	bench                 压测
//
// 退出码:
//
//	0: 成功
//	1: 执行失败
//	2: 参数错误
//
// 示例:
//
//	xjcachectl -c cache.yaml -n users get u1 u2
//	xjcachectl --store redis --redis-addr 127.0.0.1:6379 put u1 alice
//	xjcachectl bench --ops 100000 --workers 8 --read-ratio 0.9
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
)

const defaultTimeout = 30 * time.Second

// 版本信息，可通过 -ldflags 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xjcachectl",
		Usage:     "xjcache 命令行工具",
		Version:   fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "缓存配置文件（YAML 或 JSON）",
			},
			&cli.StringFlag{
				Name:    "cache",
				Aliases: []string{"n"},
				Usage:   "缓存名称",
				Value:   "default",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "覆盖存储类型 (memory/lru/ristretto/redis)",
			},
			&cli.StringFlag{
				Name:  "redis-addr",
				Usage: "覆盖 Redis 地址",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "日志文件路径，按大小轮转",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 (debug/info/warn/error)",
				Value: "warn",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "命令超时时间",
				Value:   defaultTimeout,
			},
		},
		Commands: createCommands(),
		// 退出码统一由 run 映射，不让 cli 直接调用 os.Exit。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(stderr, err)
			}
		},
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := createApp(stdout, stderr).Run(ctx, args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

// usageError 表示命令参数错误。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
