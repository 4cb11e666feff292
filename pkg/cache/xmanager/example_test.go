package xmanager_test

import (
	"context"
	"fmt"
	"log"

	"github.com/omeyang/xjcache/pkg/cache/xcache"
	"github.com/omeyang/xjcache/pkg/cache/xmanager"
)

func ExampleCreate() {
	fc, err := xmanager.ParseConfig([]byte(`
caches:
  users:
    statistics: true
    expiry:
      policy: accessed
      ttl: 10m
    store:
      type: lru
      size: 1000
`), xmanager.FormatYAML)
	if err != nil {
		log.Fatal(err)
	}

	m := xmanager.New(xmanager.WithConfig(fc))
	defer m.Close()

	cc, _ := fc.Cache("users")
	store, err := xmanager.BuildStore[string](cc.Store)
	if err != nil {
		log.Fatal(err)
	}
	users, err := xmanager.Create(m, "users", store, xcache.Config[string, string]{}, xcache.WithOwnedStore())
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	_ = users.Put(ctx, "u1", "alice")
	_, _, _ = users.Get(ctx, "u1")

	fmt.Println(m.Names(), m.Stats()["users"].Hits)
	// Output: [users] 1
}
