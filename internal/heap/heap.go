package heap

import (
	"os"
	"unsafe"

	"github.com/cockroachdb/errors"

	"gc_master/internal/bitset"
	"gc_master/internal/errs"
	"gc_master/internal/mem"
	"gc_master/internal/mmap"
)

// Options 决定堆内存的来源。
type Options struct {
	// Mmap 为 true 时用匿名映射，否则用 Go 切片。
	Mmap bool
	// Path 非空时把堆映射到该文件，优先于 Mmap。
	Path string
}

// Heap 单块定长堆：字节区、[bottom, top) 边界、每字节一位的占用位图。
type Heap struct {
	path   string
	f      *os.File
	data   []byte
	mapped bool

	bottom mem.Addr
	top    mem.Addr
	occ    *bitset.Bitset
}

// Open 创建 size 字节的堆，size 须为页大小的整数倍。
func Open(size uint64, opts Options) (*Heap, error) {
	ps := mmap.PageSize()
	if size == 0 || size%ps != 0 {
		return nil, errors.Wrapf(errs.ErrBadArgument, "heap size %d is not a positive multiple of page size %d", size, ps)
	}
	h := &Heap{path: opts.Path}
	var err error
	switch {
	case opts.Path != "":
		err = h.mapFile(size)
	case opts.Mmap:
		h.data, err = mmap.MapAnon(int(size))
		if errors.Is(err, mmap.ErrNotSupported) {
			h.data, err = make([]byte, size), nil
		} else {
			h.mapped = err == nil
		}
	default:
		h.data = make([]byte, size)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "heap: allocate %d bytes", size)
	}
	h.bottom = mem.Addr(uintptr(unsafe.Pointer(&h.data[0])))
	h.top = h.bottom.Add(size)
	h.occ = bitset.New(size)
	return h, nil
}

func (h *Heap) mapFile(size uint64) error {
	f, err := os.OpenFile(h.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	if err := f.Truncate(int64(size)); err != nil {
		_ = f.Close()
		return err
	}
	data, err := mmap.Map(f.Fd(), int(size))
	if err != nil {
		_ = f.Close()
		return err
	}
	h.f = f
	h.data = data
	h.mapped = true
	// 文件里可能残留上次的内容，堆总是从全零开始
	clear(h.data)
	return nil
}

// Bottom 返回堆起始地址。
func (h *Heap) Bottom() mem.Addr { return h.bottom }

// Top 返回堆末尾地址（不含）。
func (h *Heap) Top() mem.Addr { return h.top }

// Size 返回堆字节数。
func (h *Heap) Size() uint64 { return h.top.Sub(h.bottom) }

// Mapped 报告堆是否来自 mmap。
func (h *Heap) Mapped() bool { return h.mapped }

// Contains 当且仅当 bottom < p < top，边界本身不是合法对象地址。
func (h *Heap) Contains(p mem.Addr) bool {
	return h.bottom < p && p < h.top
}

// Offset 返回 p 相对 bottom 的偏移。
func (h *Heap) Offset(p mem.Addr) uint64 {
	errs.Assertf(p >= h.bottom && p <= h.top, "heap: address %s outside [%s,%s]", p, h.bottom, h.top)
	return p.Sub(h.bottom)
}

// Addr 返回偏移 off 处的地址。
func (h *Heap) Addr(off uint64) mem.Addr {
	errs.Assertf(off <= h.Size(), "heap: offset %d past size %d", off, h.Size())
	return h.bottom.Add(off)
}

// Bytes 返回 [p, p+n) 的切片视图，Close 后勿用。
func (h *Heap) Bytes(p mem.Addr, n uint64) []byte {
	off := h.Offset(p)
	errs.Assertf(n <= h.Size()-off, "heap: range %s+%d past top %s", p, n, h.top)
	return h.data[off : off+n : off+n]
}

// Zero 将 [p, p+n) 清零。
func (h *Heap) Zero(p mem.Addr, n uint64) {
	clear(h.Bytes(p, n))
}

// Slot 返回 p 处引用槽的指针，p 须按字对齐。
func (h *Heap) Slot(p mem.Addr) *mem.Addr {
	off := h.Offset(p)
	errs.Assertf(off%mem.WordSize == 0 && off+mem.WordSize <= h.Size(), "heap: misaligned slot %s", p)
	return (*mem.Addr)(unsafe.Pointer(&h.data[off]))
}

// Occupancy 返回占用位图，每字节一位。
func (h *Heap) Occupancy() *bitset.Bitset { return h.occ }

// MarkRange 在占用位图中标记 [start, start+n)，越界或与已标记字节重叠即 panic。
func (h *Heap) MarkRange(start mem.Addr, n uint64) {
	errs.Assertf(start >= h.bottom && start < h.top && n <= h.top.Sub(start),
		"heap: object [%s,+%d) outside heap [%s,%s)", start, n, h.bottom, h.top)
	off := start.Sub(h.bottom)
	overlap := h.occ.SetRange(off, off+n)
	errs.Assertf(overlap == 0, "heap: object [%s,+%d) overlaps %d marked bytes", start, n, overlap)
}

// Close 释放堆内存；文件堆先刷盘再解除映射。
func (h *Heap) Close() error {
	if h.data != nil {
		if h.mapped {
			if h.f != nil {
				if err := mmap.Sync(h.data); err != nil {
					return err
				}
			}
			if err := mmap.Unmap(h.data); err != nil {
				return err
			}
		}
		h.data = nil
	}
	if h.f != nil {
		if err := h.f.Close(); err != nil {
			return err
		}
		h.f = nil
	}
	h.occ = nil
	return nil
}
