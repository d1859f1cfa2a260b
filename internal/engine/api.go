package engine

import (
	"github.com/cockroachdb/errors"

	"gc_master/internal/errs"
	"gc_master/internal/freelist"
	"gc_master/internal/mem"
)

// Alloc 按 best-fit 取 size 字节并清零，返回存储起始地址（头部所在处）。
// 没有合适的块时回收一次再试一次，仍失败返回 ErrNoSpace；超过整个堆的请求直接返回 ErrNoSpace。
// b 不能为 nil。
func (gc *GC) Alloc(size uint64, b Behavior) (mem.Addr, error) {
	if gc.closed {
		return mem.Null, errs.ErrClosed
	}
	if b == nil || size == 0 {
		return mem.Null, errors.Wrapf(errs.ErrBadArgument, "alloc %d bytes", size)
	}
	if size > gc.heap.Size() {
		gc.stats.FailedAllocs++
		return mem.Null, errors.Wrapf(errs.ErrNoSpace, "alloc %d bytes exceeds heap of %d", size, gc.heap.Size())
	}
	p, ok := gc.pool.BestFit(size)
	if !ok {
		gc.Collect(b)
		p, ok = gc.pool.BestFit(size)
	}
	if !ok {
		gc.stats.FailedAllocs++
		gc.log.Warn("gc: out of heap space", "size", size, "free", gc.pool.FreeBytes(), "blocks", gc.pool.Len())
		return mem.Null, errors.Wrapf(errs.ErrNoSpace, "alloc %d bytes", size)
	}
	gc.heap.Zero(p, size)
	gc.stats.Allocs++
	gc.stats.AllocatedBytes += size
	return p, nil
}

// Resize 原地调整对象 obj 的大小。
//
// 增长只能吞并紧随其后的空闲块，找不到时返回 ErrCannotResize，堆保持不变；
// 该错误不可重试，回收器不会移动对象。缩小时把尾部归还空闲块池。
// 成功后宿主须让 SizeOf(obj) 报告 newSize。
func (gc *GC) Resize(obj mem.Addr, newSize uint64, b Behavior) error {
	if gc.closed {
		return errs.ErrClosed
	}
	if b == nil || !gc.heap.Contains(obj) || newSize < gc.cfg.HeaderSize || newSize == 0 {
		return errors.Wrapf(errs.ErrBadArgument, "resize %s to %d bytes", obj, newSize)
	}
	if _, ok := gc.table.FindID(obj); !ok {
		return errors.Wrapf(errs.ErrBadArgument, "resize %s: not a registered object", obj)
	}
	start := gc.storageStart(obj)
	cur := b.SizeOf(obj)
	switch {
	case newSize == cur:
		return nil
	case newSize < cur:
		gc.pool.Insert(freelist.Block{Start: start.Add(newSize), Length: cur - newSize})
		return nil
	}
	if err := gc.pool.GrowInPlace(start, cur, newSize); err != nil {
		return err
	}
	gc.heap.Zero(start.Add(cur), newSize-cur)
	gc.stats.AllocatedBytes += newSize - cur
	return nil
}

// Register 登记一个构造完毕的对象，obj 指向头部之后的第一个字节。
func (gc *GC) Register(obj mem.Addr) error {
	if gc.closed {
		return errs.ErrClosed
	}
	if !gc.heap.Contains(obj) || obj.Sub(gc.heap.Bottom()) < gc.cfg.HeaderSize {
		return errors.Wrapf(errs.ErrBadArgument, "register %s outside heap", obj)
	}
	gc.table.Register(obj)
	return nil
}

// FreeBytes 返回空闲块字节总数。
func (gc *GC) FreeBytes() uint64 { return gc.pool.FreeBytes() }

// Objects 返回存活对象，下标即当前 id。
func (gc *GC) Objects() []mem.Addr { return gc.table.Slots() }

// ObjectID 返回对象当前 id，只在下一次回收前有效。
func (gc *GC) ObjectID(obj mem.Addr) (int, bool) { return gc.table.FindID(obj) }

// FreeBlocks 返回空闲块的拷贝。
func (gc *GC) FreeBlocks() []freelist.Block { return gc.pool.Blocks() }

// Validate 检查空闲块互不重叠、对象与空闲块互不重叠，且二者字节数之和等于堆大小。
func (gc *GC) Validate(b Behavior) error {
	if gc.closed {
		return errs.ErrClosed
	}
	if b == nil {
		return errors.Wrap(errs.ErrBadArgument, "validate without behavior")
	}
	if err := gc.pool.Validate(); err != nil {
		return err
	}
	type span struct {
		lo, hi mem.Addr
	}
	var spans []span
	var live uint64
	for _, obj := range gc.table.Slots() {
		start := gc.storageStart(obj)
		size := b.SizeOf(obj)
		spans = append(spans, span{start, start.Add(size)})
		live += size
	}
	for _, fb := range gc.pool.Blocks() {
		spans = append(spans, span{fb.Start, fb.End()})
	}
	for i, a := range spans {
		if a.lo < gc.heap.Bottom() || a.hi > gc.heap.Top() {
			return errors.Wrapf(errs.ErrCorrupt, "range [%s,%s) outside heap", a.lo, a.hi)
		}
		for _, c := range spans[i+1:] {
			if a.lo < c.hi && c.lo < a.hi {
				return errors.Wrapf(errs.ErrCorrupt, "ranges [%s,%s) and [%s,%s) overlap", a.lo, a.hi, c.lo, c.hi)
			}
		}
	}
	if free := gc.pool.FreeBytes(); free+live != gc.heap.Size() {
		return errors.Wrapf(errs.ErrCorrupt, "free %d + live %d != heap %d", free, live, gc.heap.Size())
	}
	return nil
}

func (gc *GC) storageStart(obj mem.Addr) mem.Addr {
	return obj - mem.Addr(gc.cfg.HeaderSize)
}
