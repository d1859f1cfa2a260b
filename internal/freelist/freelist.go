// Package freelist 维护堆内全部空闲区间。
//
// 空闲块按插入顺序保存在一个按固定步长扩容的数组里，任意两块互不重叠，
// 相邻或重叠的块在插入时合并。
package freelist

import (
	"github.com/cockroachdb/errors"

	"gc_master/internal/errs"
	"gc_master/internal/mem"
)

// DefaultChunk 数组满时每次扩容的块数。
const DefaultChunk = 64

// Block 空闲区间 [Start, Start+Length)。
type Block struct {
	Start  mem.Addr
	Length uint64
}

// End 返回区间末尾（不含）。
func (b Block) End() mem.Addr { return b.Start.Add(b.Length) }

// Pool 空闲块池。
type Pool struct {
	blocks []Block
	chunk  int
}

// New 创建空池，chunk <= 0 时使用 DefaultChunk。
func New(chunk int) *Pool {
	if chunk <= 0 {
		chunk = DefaultChunk
	}
	return &Pool{blocks: make([]Block, 0, chunk), chunk: chunk}
}

// Len 返回块数。
func (p *Pool) Len() int { return len(p.blocks) }

// At 返回第 i 块。
func (p *Pool) At(i int) Block {
	errs.Assertf(i >= 0 && i < len(p.blocks), "freelist: index %d out of range [0,%d)", i, len(p.blocks))
	return p.blocks[i]
}

// Blocks 返回当前块的拷贝。
func (p *Pool) Blocks() []Block {
	return append([]Block(nil), p.blocks...)
}

// FreeBytes 返回空闲字节总数。
func (p *Pool) FreeBytes() uint64 {
	var n uint64
	for _, b := range p.blocks {
		n += b.Length
	}
	return n
}

// Reset 删除全部块，保留底层存储。
func (p *Pool) Reset() {
	p.blocks = p.blocks[:0]
}

// BestFit 选出剩余最小的可用块，从头部切下 size 字节并返回切下前的起始地址。
// 剩余相同时保留先找到的块。
func (p *Pool) BestFit(size uint64) (mem.Addr, bool) {
	if size == 0 {
		return mem.Null, false
	}
	best := -1
	for i, b := range p.blocks {
		if b.Length < size {
			continue
		}
		if best < 0 || b.Length-size < p.blocks[best].Length-size {
			best = i
		}
	}
	if best < 0 {
		return mem.Null, false
	}
	start := p.blocks[best].Start
	p.shrinkFront(best, size)
	return start, true
}

// Insert 把新释放的区间并入池中，返回新计入空闲的字节数。
//
// 插入前池内块互不重叠也不相邻，只有被扩展或追加的那一块可能吞并其他块。
func (p *Pool) Insert(nb Block) uint64 {
	if nb.Length == 0 {
		return 0
	}
	idx := -1
	var before uint64
	for i := range p.blocks {
		b := &p.blocks[i]
		if b.Start <= nb.Start && b.End() >= nb.Start {
			before = b.Length
			if nb.End() > b.End() {
				b.Length = nb.End().Sub(b.Start)
			}
			idx = i
			break
		}
	}
	if idx < 0 {
		p.append(nb)
		idx = len(p.blocks) - 1
	}
	idx, absorbed := p.absorb(idx)
	return p.blocks[idx].Length - before - absorbed
}

// RemoveAt 删除第 i 块，后续块依次前移。
func (p *Pool) RemoveAt(i int) {
	errs.Assertf(i >= 0 && i < len(p.blocks), "freelist: remove %d out of range [0,%d)", i, len(p.blocks))
	copy(p.blocks[i:], p.blocks[i+1:])
	p.blocks = p.blocks[:len(p.blocks)-1]
}

// GrowInPlace 将起始于 start、当前 cur 字节的对象原地扩展到 next 字节。
// 只有紧随对象之后恰好有一块足够大的空闲块时才成功，否则返回 ErrCannotResize 且不修改池。
func (p *Pool) GrowInPlace(start mem.Addr, cur, next uint64) error {
	if next <= cur {
		return nil
	}
	delta := next - cur
	end := start.Add(cur)
	for i, b := range p.blocks {
		if b.Start == end && b.Length >= delta {
			p.shrinkFront(i, delta)
			return nil
		}
	}
	return errors.Wrapf(errs.ErrCannotResize, "object %s: %d -> %d bytes", start, cur, next)
}

// Validate 检查块长度为正且两两不重叠。
func (p *Pool) Validate() error {
	for i, a := range p.blocks {
		if a.Length == 0 {
			return errors.Wrapf(errs.ErrCorrupt, "free block %d at %s has zero length", i, a.Start)
		}
		for j := i + 1; j < len(p.blocks); j++ {
			b := p.blocks[j]
			if a.Start < b.End() && b.Start < a.End() {
				return errors.Wrapf(errs.ErrCorrupt, "free blocks %d [%s,%s) and %d [%s,%s) overlap",
					i, a.Start, a.End(), j, b.Start, b.End())
			}
		}
	}
	return nil
}

func (p *Pool) shrinkFront(i int, n uint64) {
	b := &p.blocks[i]
	errs.Assertf(b.Length >= n, "freelist: shrink block %d by %d, length %d", i, n, b.Length)
	b.Start = b.Start.Add(n)
	b.Length -= n
	if b.Length == 0 {
		p.RemoveAt(i)
	}
}

func (p *Pool) append(b Block) {
	if len(p.blocks) == cap(p.blocks) {
		grown := make([]Block, len(p.blocks), cap(p.blocks)+p.chunk)
		copy(grown, p.blocks)
		p.blocks = grown
	}
	p.blocks = append(p.blocks, b)
}

// absorb 让第 idx 块吞并起点落在它内部（含紧邻末尾）的块，
// 返回该块吞并后的下标与被吞并块的长度之和。
func (p *Pool) absorb(idx int) (int, uint64) {
	var absorbed uint64
	for j := 0; j < len(p.blocks); {
		outer, inner := p.blocks[idx], p.blocks[j]
		if j == idx || inner.Start < outer.Start || inner.Start > outer.End() {
			j++
			continue
		}
		if inner.End() > outer.End() {
			p.blocks[idx].Length = inner.End().Sub(outer.Start)
		}
		absorbed += inner.Length
		p.RemoveAt(j)
		if j < idx {
			idx--
		}
	}
	return idx, absorbed
}
