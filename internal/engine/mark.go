package engine

import (
	"gc_master/internal/bitset"
	"gc_master/internal/errs"
	"gc_master/internal/mem"
)

// tracer 用显式栈做深度优先标记，栈深与对象图深度无关。
type tracer struct {
	gc    *GC
	b     Behavior
	marks *bitset.Bitset
	ids   map[mem.Addr]int
	stack []mem.Addr
	bytes uint64
}

// mark 从根集出发标记所有可达对象，返回标记的字节数。
func (gc *GC) mark(b Behavior, marks *bitset.Bitset) uint64 {
	t := &tracer{
		gc:    gc,
		b:     b,
		marks: marks,
		ids:   gc.table.Snapshot(),
	}
	for _, root := range uniqueRoots(b.RootSet()) {
		t.stack = append(t.stack, root)
		t.drain()
	}
	return t.bytes
}

// uniqueRoots 丢弃空槽，同一地址只保留一次。
func uniqueRoots(slots []*mem.Addr) []mem.Addr {
	seen := make(map[mem.Addr]struct{}, len(slots))
	roots := make([]mem.Addr, 0, len(slots))
	for _, s := range slots {
		if s == nil || *s == mem.Null {
			continue
		}
		if _, ok := seen[*s]; ok {
			continue
		}
		seen[*s] = struct{}{}
		roots = append(roots, *s)
	}
	return roots
}

func (t *tracer) drain() {
	h := t.gc.heap
	for len(t.stack) > 0 {
		obj := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]

		// 未登记或堆外的值静默忽略
		if !h.Contains(obj) {
			continue
		}
		id, ok := t.ids[obj]
		if !ok {
			continue
		}
		if t.marks.TestAndSet(uint64(id)) {
			continue
		}

		size := t.b.SizeOf(obj)
		errs.Assertf(size > 0 && size >= t.gc.cfg.HeaderSize,
			"gc: object %s reports size %d with header %d", obj, size, t.gc.cfg.HeaderSize)
		h.MarkRange(t.gc.storageStart(obj), size)
		t.bytes += size

		refs := t.b.References(obj)
		for i := len(refs) - 1; i >= 0; i-- {
			if refs[i] == nil {
				continue
			}
			if r := *refs[i]; h.Contains(r) {
				t.stack = append(t.stack, r)
			}
		}
	}
}
