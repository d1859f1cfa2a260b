// Package objtable 记录全部存活对象的指针，数组下标即对象 id。
//
// id 只在两次回收之间有效：Compact 会把幸存对象前移以填补空洞。
package objtable

import (
	"gc_master/internal/bitset"
	"gc_master/internal/errs"
	"gc_master/internal/mem"
)

// DefaultChunk 数组满时每次扩容的槽数。
const DefaultChunk = 64

// Bounds 判断地址是否落在堆内。
type Bounds interface {
	Contains(p mem.Addr) bool
}

// Table 存活对象表。
type Table struct {
	slots  []mem.Addr
	chunk  int
	bounds Bounds
}

// New 创建空表。
func New(chunk int, bounds Bounds) *Table {
	if chunk <= 0 {
		chunk = DefaultChunk
	}
	return &Table{slots: make([]mem.Addr, 0, chunk), chunk: chunk, bounds: bounds}
}

// Len 返回对象数。
func (t *Table) Len() int { return len(t.slots) }

// At 返回 id 对应的对象指针。
func (t *Table) At(id int) mem.Addr {
	errs.Assertf(id >= 0 && id < len(t.slots), "objtable: id %d out of range [0,%d)", id, len(t.slots))
	return t.slots[id]
}

// Slots 返回当前对象指针的拷贝，按 id 排列。
func (t *Table) Slots() []mem.Addr {
	return append([]mem.Addr(nil), t.slots...)
}

// Register 追加一个对象并返回其 id，不去重。
func (t *Table) Register(p mem.Addr) int {
	errs.Assertf(p != mem.Null, "objtable: register nil")
	if len(t.slots) == cap(t.slots) {
		grown := make([]mem.Addr, len(t.slots), cap(t.slots)+t.chunk)
		copy(grown, t.slots)
		t.slots = grown
	}
	t.slots = append(t.slots, p)
	return len(t.slots) - 1
}

// FindID 线性查找 p 的 id；nil 或堆外地址直接返回 false。
func (t *Table) FindID(p mem.Addr) (int, bool) {
	if p == mem.Null || (t.bounds != nil && !t.bounds.Contains(p)) {
		return 0, false
	}
	for id, s := range t.slots {
		if s == p {
			return id, true
		}
	}
	return 0, false
}

// Snapshot 返回指针到 id 的映射，结果与逐个 FindID 相同（重复登记时取首个）。
func (t *Table) Snapshot() map[mem.Addr]int {
	m := make(map[mem.Addr]int, len(t.slots))
	for id, s := range t.slots {
		if _, ok := m[s]; !ok {
			m[s] = id
		}
	}
	return m
}

// Compact 清除 marked 中未置位的对象，drop 非空时对每个被清除的对象调用一次；
// 随后把幸存对象前移填补空洞。返回清除的个数。
func (t *Table) Compact(marked *bitset.Bitset, drop func(id int, p mem.Addr)) int {
	errs.Assertf(marked.Len() >= uint64(len(t.slots)),
		"objtable: mark bitmap of %d bits for %d objects", marked.Len(), len(t.slots))
	removed := 0
	for id, p := range t.slots {
		if marked.Test(uint64(id)) {
			continue
		}
		if drop != nil {
			drop(id, p)
		}
		t.slots[id] = mem.Null
		removed++
	}
	for i := 0; i < len(t.slots); {
		if t.slots[i] != mem.Null {
			i++
			continue
		}
		j := i
		for j < len(t.slots) && t.slots[j] == mem.Null {
			j++
		}
		n := copy(t.slots[i:], t.slots[j:])
		t.slots = t.slots[:i+n]
	}
	return removed
}

// Reset 清空表。
func (t *Table) Reset() {
	t.slots = t.slots[:0]
}
