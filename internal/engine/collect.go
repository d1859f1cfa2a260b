package engine

import (
	"context"
	"time"

	"golang.org/x/exp/slog"

	"gc_master/internal/bitset"
	"gc_master/internal/errs"
	"gc_master/internal/freelist"
	"gc_master/internal/mem"
)

// Collect 停顿式标记清除，一次跑完：
// 清空空闲块池与占用位图，从根集标记，按占用位图重建空闲块池，压缩对象表。
func (gc *GC) Collect(b Behavior) {
	if gc.closed {
		return
	}
	errs.Assertf(b != nil, "gc: collect without behavior")
	errs.Assertf(gc.state == Idle, "gc: collect re-entered during %s", gc.state)
	profile := b.Profile()
	t0 := time.Now()

	gc.state = Resetting
	gc.pool.Reset()
	gc.heap.Occupancy().Reset()
	marks := bitset.New(uint64(gc.table.Len()))

	gc.state = Marking
	marked := gc.mark(b, marks)
	t1 := time.Now()

	gc.state = SweepingHeap
	free := gc.sweepHeap()

	gc.state = SweepingTable
	freed := gc.sweepTable(b, marks)
	t2 := time.Now()

	gc.state = Idle

	if gc.cfg.Verify || profile {
		errs.Assertf(free+marked == gc.heap.Size(),
			"gc: free %d + marked %d != heap %d", free, marked, gc.heap.Size())
	}
	gc.stats.Collections++
	gc.stats.LastMarkedBytes = marked
	gc.stats.LastFreedObjects = freed
	if profile {
		gc.stats.MarkTime += t1.Sub(t0)
		gc.stats.SweepTime += t2.Sub(t1)
		if marked > gc.stats.MaxOccupancy {
			gc.stats.MaxOccupancy = marked
		}
	}

	level := slog.LevelDebug
	if b.Verbose() {
		level = slog.LevelInfo
	}
	gc.log.Log(context.Background(), level, "gc: collect",
		"cycle", gc.stats.Collections,
		"marked", marked,
		"freed_objects", freed,
		"live_objects", gc.table.Len(),
		"free", free,
		"free_blocks", gc.pool.Len(),
		"mark", t1.Sub(t0),
		"sweep", t2.Sub(t1))
}

// sweepHeap 扫描占用位图，每段连续未标记字节作为一个空闲块插入，返回空闲字节数。
func (gc *GC) sweepHeap() uint64 {
	occ := gc.heap.Occupancy()
	n := occ.Len()
	var free uint64
	for off := uint64(0); off < n; {
		lo, ok := occ.NextClear(off)
		if !ok {
			break
		}
		hi, ok := occ.NextSet(lo)
		if !ok {
			hi = n
		}
		free += gc.pool.Insert(freelist.Block{Start: gc.heap.Addr(lo), Length: hi - lo})
		off = hi
	}
	return free
}

// sweepTable 移除未标记的对象并压缩对象表，返回移除的个数。
func (gc *GC) sweepTable(b Behavior, marks *bitset.Bitset) int {
	var drop func(int, mem.Addr)
	if gc.cfg.Finalizers {
		drop = func(_ int, p mem.Addr) { b.Finalize(p) }
	}
	return gc.table.Compact(marks, drop)
}
