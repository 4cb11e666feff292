package xstats

import (
	"sync/atomic"
	"time"
)

// Stats 是缓存统计计数器。零值可用，并发安全。
type Stats struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	puts      atomic.Uint64
	removals  atomic.Uint64
	evictions atomic.Uint64

	getNanos    atomic.Int64
	putNanos    atomic.Int64
	removeNanos atomic.Int64
}

// Snapshot 是某一时刻的统计快照。
type Snapshot struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Gets      uint64 `json:"gets"`
	Puts      uint64 `json:"puts"`
	Removals  uint64 `json:"removals"`
	Evictions uint64 `json:"evictions"`

	// HitPercentage 与 MissPercentage 取值 [0, 100]，无读取时为 0。
	HitPercentage  float64 `json:"hit_percentage"`
	MissPercentage float64 `json:"miss_percentage"`

	AverageGetTime    time.Duration `json:"average_get_time_ns"`
	AveragePutTime    time.Duration `json:"average_put_time_ns"`
	AverageRemoveTime time.Duration `json:"average_remove_time_ns"`
}

func (s *Stats) RecordHits(n int)      { s.hits.Add(uint64(n)) }
func (s *Stats) RecordMisses(n int)    { s.misses.Add(uint64(n)) }
func (s *Stats) RecordPuts(n int)      { s.puts.Add(uint64(n)) }
func (s *Stats) RecordRemovals(n int)  { s.removals.Add(uint64(n)) }
func (s *Stats) RecordEvictions(n int) { s.evictions.Add(uint64(n)) }

// AddGetTime 累加读取耗时。
func (s *Stats) AddGetTime(d time.Duration) { s.getNanos.Add(int64(d)) }

// AddPutTime 累加写入耗时。
func (s *Stats) AddPutTime(d time.Duration) { s.putNanos.Add(int64(d)) }

// AddRemoveTime 累加删除耗时。
func (s *Stats) AddRemoveTime(d time.Duration) { s.removeNanos.Add(int64(d)) }

// Snapshot 返回当前统计快照。各字段分别原子读取，彼此之间不保证一致。
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Puts:      s.puts.Load(),
		Removals:  s.removals.Load(),
		Evictions: s.evictions.Load(),
	}
	snap.Gets = snap.Hits + snap.Misses
	if snap.Gets > 0 {
		snap.HitPercentage = float64(snap.Hits) / float64(snap.Gets) * 100
		snap.MissPercentage = float64(snap.Misses) / float64(snap.Gets) * 100
	}
	snap.AverageGetTime = average(s.getNanos.Load(), snap.Gets)
	snap.AveragePutTime = average(s.putNanos.Load(), snap.Puts)
	snap.AverageRemoveTime = average(s.removeNanos.Load(), snap.Removals)
	return snap
}

// Reset 清零全部计数。
func (s *Stats) Reset() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.puts.Store(0)
	s.removals.Store(0)
	s.evictions.Store(0)
	s.getNanos.Store(0)
	s.putNanos.Store(0)
	s.removeNanos.Store(0)
}

func average(total int64, n uint64) time.Duration {
	if n == 0 {
		return 0
	}
	return time.Duration(total / int64(n))
}
