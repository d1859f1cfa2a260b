// Package bitset 提供按 uint64 打包的定长位图，用于堆占用位图与对象标记位图。
package bitset

import (
	"math/bits"

	"gc_master/internal/errs"
)

const wordBits = 64

// Bitset 定长位图，长度在创建时确定。
type Bitset struct {
	words []uint64
	n     uint64
}

// New 创建 n 位的位图，存储按整字向上取整。
func New(n uint64) *Bitset {
	return &Bitset{words: make([]uint64, (n+wordBits-1)/wordBits), n: n}
}

// Len 返回位数。
func (b *Bitset) Len() uint64 { return b.n }

// Words 返回底层字数。
func (b *Bitset) Words() int { return len(b.words) }

func (b *Bitset) check(i uint64) {
	errs.Assertf(i < b.n, "bitset: index %d out of range [0,%d)", i, b.n)
}

// Set 置位。
func (b *Bitset) Set(i uint64) {
	b.check(i)
	b.words[i/wordBits] |= 1 << (i % wordBits)
}

// Clear 清位。
func (b *Bitset) Clear(i uint64) {
	b.check(i)
	b.words[i/wordBits] &^= 1 << (i % wordBits)
}

// Test 查询第 i 位。
func (b *Bitset) Test(i uint64) bool {
	b.check(i)
	return b.words[i/wordBits]&(1<<(i%wordBits)) != 0
}

// TestAndSet 置位并返回置位前的值。
func (b *Bitset) TestAndSet(i uint64) bool {
	b.check(i)
	w := &b.words[i/wordBits]
	mask := uint64(1) << (i % wordBits)
	old := *w&mask != 0
	*w |= mask
	return old
}

// SetRange 将 [lo, hi) 全部置位，返回区间内置位前已置位的个数。
func (b *Bitset) SetRange(lo, hi uint64) uint64 {
	if lo >= hi {
		return 0
	}
	errs.Assertf(hi <= b.n, "bitset: range [%d,%d) out of range [0,%d)", lo, hi, b.n)
	var already uint64
	for i := lo; i < hi; {
		w := i / wordBits
		off := i % wordBits
		span := uint64(wordBits) - off
		if hi-i < span {
			span = hi - i
		}
		mask := ^uint64(0)
		if span < wordBits {
			mask = (uint64(1)<<span - 1) << off
		}
		already += uint64(bits.OnesCount64(b.words[w] & mask))
		b.words[w] |= mask
		i += span
	}
	return already
}

// Count 返回置位总数。
func (b *Bitset) Count() uint64 {
	var c uint64
	for _, w := range b.words {
		c += uint64(bits.OnesCount64(w))
	}
	return c
}

// Reset 清空全部位。
func (b *Bitset) Reset() {
	clear(b.words)
}

// NextSet 返回 >= i 的第一个置位下标。
func (b *Bitset) NextSet(i uint64) (uint64, bool) {
	return b.next(i, 0)
}

// NextClear 返回 >= i 的第一个未置位下标。
func (b *Bitset) NextClear(i uint64) (uint64, bool) {
	return b.next(i, ^uint64(0))
}

// next 在 w^flip 中找第一个 1。
func (b *Bitset) next(i uint64, flip uint64) (uint64, bool) {
	if i >= b.n {
		return 0, false
	}
	w := i / wordBits
	word := (b.words[w] ^ flip) >> (i % wordBits)
	if word != 0 {
		j := i + uint64(bits.TrailingZeros64(word))
		return j, j < b.n
	}
	for w++; w < uint64(len(b.words)); w++ {
		if word = b.words[w] ^ flip; word != 0 {
			j := w*wordBits + uint64(bits.TrailingZeros64(word))
			return j, j < b.n
		}
	}
	return 0, false
}
