package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xjcache/pkg/cache/xcache"
	"github.com/omeyang/xjcache/pkg/cache/xmanager"
	"github.com/omeyang/xjcache/pkg/util/xjson"
)

func createCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "get",
			Usage:     "读取一个或多个 key",
			ArgsUsage: "<key>...",
			Action:    cmdGet,
		},
		{
			Name:      "put",
			Usage:     "写入一个 key",
			ArgsUsage: "<key> <value>",
			Action:    cmdPut,
		},
		{
			Name:      "remove",
			Aliases:   []string{"rm"},
			Usage:     "删除一个或多个 key",
			ArgsUsage: "<key>...",
			Action:    cmdRemove,
		},
		{
			Name:   "keys",
			Usage:  "列出所有 key",
			Action: cmdKeys,
		},
		{
			Name:   "clear",
			Usage:  "清空缓存，不触发事件",
			Action: cmdClear,
		},
		{
			Name:   "purge",
			Usage:  "删除已过期条目",
			Action: cmdPurge,
		},
		{
			Name:   "info",
			Usage:  "查看管理视图与生效配置",
			Action: cmdInfo,
		},
		{
			Name:      "validate",
			Usage:     "校验配置文件",
			ArgsUsage: "<file>",
			Action:    cmdValidate,
		},
		createBenchCommand(),
	}
}

func cmdGet(ctx context.Context, cmd *cli.Command) error {
	keys := cmd.Args().Slice()
	if len(keys) == 0 {
		return usagef("get requires at least one key")
	}
	return withEnv(ctx, cmd, xcache.Config[string, string]{}, func(ctx context.Context, e *env) error {
		got, err := e.cache.GetAll(ctx, keys)
		if err != nil {
			return err
		}
		out := cmd.Root().Writer
		for _, k := range keys {
			if v, ok := got[k]; ok {
				fmt.Fprintf(out, "%s\t%s\n", k, v)
			} else {
				fmt.Fprintf(out, "%s\t(nil)\n", k)
			}
		}
		return nil
	})
}

func cmdPut(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return usagef("put requires <key> <value>")
	}
	key, value := cmd.Args().Get(0), cmd.Args().Get(1)
	return withEnv(ctx, cmd, xcache.Config[string, string]{}, func(ctx context.Context, e *env) error {
		old, had, err := e.cache.GetAndPut(ctx, key, value)
		if err != nil {
			return err
		}
		if had {
			fmt.Fprintf(cmd.Root().Writer, "updated %s (was %s)\n", key, old)
		} else {
			fmt.Fprintf(cmd.Root().Writer, "created %s\n", key)
		}
		return nil
	})
}

func cmdRemove(ctx context.Context, cmd *cli.Command) error {
	keys := cmd.Args().Slice()
	if len(keys) == 0 {
		return usagef("remove requires at least one key")
	}
	return withEnv(ctx, cmd, xcache.Config[string, string]{}, func(ctx context.Context, e *env) error {
		removed := 0
		for _, k := range keys {
			ok, err := e.cache.Remove(ctx, k)
			if err != nil {
				return err
			}
			if ok {
				removed++
			}
		}
		fmt.Fprintf(cmd.Root().Writer, "removed %d\n", removed)
		return nil
	})
}

func cmdKeys(ctx context.Context, cmd *cli.Command) error {
	return withEnv(ctx, cmd, xcache.Config[string, string]{}, func(ctx context.Context, e *env) error {
		it, err := e.cache.Iterator(ctx)
		if err != nil {
			return err
		}
		var keys []string
		for it.Next() {
			keys = append(keys, it.Key())
		}
		if err := it.Err(); err != nil {
			return err
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintln(cmd.Root().Writer, k)
		}
		return nil
	})
}

func cmdClear(ctx context.Context, cmd *cli.Command) error {
	return withEnv(ctx, cmd, xcache.Config[string, string]{}, func(ctx context.Context, e *env) error {
		if err := e.cache.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.Root().Writer, "cleared")
		return nil
	})
}

func cmdPurge(ctx context.Context, cmd *cli.Command) error {
	return withEnv(ctx, cmd, xcache.Config[string, string]{}, func(ctx context.Context, e *env) error {
		n, err := e.mgr.Purge(ctx, e.cache.Name())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.Root().Writer, "purged %d\n", n)
		return nil
	})
}

// info 输出的结构。
type infoView struct {
	Management xcache.Management    `json:"management"`
	Config     xmanager.CacheConfig `json:"config"`
	Size       int                  `json:"size"`
}

func cmdInfo(ctx context.Context, cmd *cli.Command) error {
	return withEnv(ctx, cmd, xcache.Config[string, string]{ManagementEnabled: true}, func(ctx context.Context, e *env) error {
		// 配置文件可能关闭了管理视图，这里显式打开。
		e.cache.EnableManagement(true)
		m, _ := e.cache.Management()
		n, err := e.cache.Store().Len(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.Root().Writer, xjson.Pretty(infoView{Management: m, Config: e.conf, Size: n}))
		return nil
	})
}

func cmdValidate(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return usagef("validate requires <file>")
	}
	fc, err := xmanager.LoadConfig(cmd.Args().First())
	if err != nil {
		return err
	}
	out, err := xjson.PrettyE(fc)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, out)
	return nil
}
