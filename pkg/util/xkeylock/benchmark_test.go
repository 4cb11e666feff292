package xkeylock

import (
	"context"
	"strconv"
	"testing"
)

// entryKey 模拟缓存中常见的复合 key。
type entryKey struct {
	tenant uint32
	id     uint64
}

func BenchmarkAcquire_StringKey(b *testing.B) {
	kl, _ := New[string]()
	defer kl.Close()

	ctx := context.Background()
	for b.Loop() {
		h, err := kl.Acquire(ctx, "user:42")
		if err != nil {
			b.Fatal(err)
		}
		_ = h.Unlock()
	}
}

func BenchmarkAcquire_StructKey(b *testing.B) {
	kl, _ := New[entryKey]()
	defer kl.Close()

	ctx := context.Background()
	key := entryKey{tenant: 7, id: 42}
	for b.Loop() {
		h, err := kl.Acquire(ctx, key)
		if err != nil {
			b.Fatal(err)
		}
		_ = h.Unlock()
	}
}

// BenchmarkAcquire_Parallel 对比不同分片数与热点比例下的争用。
func BenchmarkAcquire_Parallel(b *testing.B) {
	for _, keys := range []int{1, 64, 4096} {
		for _, shards := range []int{1, 32} {
			b.Run("keys="+strconv.Itoa(keys)+"/shards="+strconv.Itoa(shards), func(b *testing.B) {
				kl, _ := New(WithShardCount[uint64](shards))
				defer kl.Close()

				ctx := context.Background()
				b.RunParallel(func(pb *testing.PB) {
					var n uint64
					for pb.Next() {
						h, err := kl.Acquire(ctx, n%uint64(keys))
						if err != nil {
							b.Error(err)
							return
						}
						_ = h.Unlock()
						n++
					}
				})
			})
		}
	}
}
